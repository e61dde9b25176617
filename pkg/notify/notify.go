package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a notification.
type Kind string

const (
	KindSaveFailed     Kind = "save_failed"
	KindFinalizeFailed Kind = "finalize_failed"
)

// Notification is an out-of-band message about a background operation that
// finished after its initiator stopped listening.
type Notification struct {
	Kind    Kind      `json:"kind"`
	DraftID string    `json:"draftId,omitempty"`
	Message string    `json:"message"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// New builds a notification stamped with the current time.
func New(kind Kind, draftID, message string, err error) Notification {
	n := Notification{
		Kind:    kind,
		DraftID: draftID,
		Message: message,
		At:      time.Now().UTC(),
	}
	if err != nil {
		n.Err = err.Error()
	}
	return n
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Outbox keeps notifications in memory until drained.
type Outbox struct {
	mu      sync.Mutex
	pending []Notification
}

// NewOutbox returns an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Notify(_ context.Context, n Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, n)
	return nil
}

// Len returns the number of undrained notifications.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Drain returns and clears the pending notifications in arrival order.
func (o *Outbox) Drain() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	return out
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier wraps logger; nil falls back to a no-op logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Warn(n.Message,
		zap.String("kind", string(n.Kind)),
		zap.String("draft_id", n.DraftID),
		zap.String("error", n.Err),
		zap.Time("at", n.At))
	return nil
}

// Multi fans a notification out to every notifier, joining their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = (*Outbox)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
	_ Notifier = Func(nil)
)
