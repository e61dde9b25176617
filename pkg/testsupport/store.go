package testsupport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
)

// ErrInjected is returned by ScriptedStore for scheduled failures.
var ErrInjected = errors.New("testsupport: injected failure")

// Store operations understood by ScriptedStore.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpGet    = "get"
	OpDelete = "delete"
)

// ScriptedStore wraps a draft.Store with scheduled failures, an optional
// delay, a hold gate and per-operation call counters.
type ScriptedStore struct {
	Inner draft.Store
	Delay time.Duration

	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	gate     chan struct{}
	entered  chan string
}

// NewScriptedStore wraps inner, defaulting to a fresh MemoryStore.
func NewScriptedStore(inner draft.Store) *ScriptedStore {
	if inner == nil {
		inner = draft.NewMemoryStore()
	}
	return &ScriptedStore{
		Inner:    inner,
		failures: make(map[string]int),
		calls:    make(map[string]int),
		entered:  make(chan string, 64),
	}
}

// FailNext schedules n failures for op.
func (s *ScriptedStore) FailNext(op string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] += n
}

// Calls returns how many times op reached the store.
func (s *ScriptedStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Hold blocks every subsequent call until release is invoked.
func (s *ScriptedStore) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Entered yields the operation name each time a call reaches the store.
func (s *ScriptedStore) Entered() <-chan string {
	return s.entered
}

func (s *ScriptedStore) before(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	gate := s.gate
	fail := s.failures[op] > 0
	if fail {
		s.failures[op]--
	}
	s.mu.Unlock()

	select {
	case s.entered <- op:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return ErrInjected
	}
	return nil
}

func (s *ScriptedStore) Create(ctx context.Context, documentType string, values model.Values) (string, error) {
	if err := s.before(ctx, OpCreate); err != nil {
		return "", err
	}
	return s.Inner.Create(ctx, documentType, values)
}

func (s *ScriptedStore) Update(ctx context.Context, id string, values model.Values, status draft.Status) (draft.Ack, error) {
	if err := s.before(ctx, OpUpdate); err != nil {
		return draft.Ack{}, err
	}
	return s.Inner.Update(ctx, id, values, status)
}

func (s *ScriptedStore) Get(ctx context.Context, id string) (draft.Record, error) {
	if err := s.before(ctx, OpGet); err != nil {
		return draft.Record{}, err
	}
	return s.Inner.Get(ctx, id)
}

func (s *ScriptedStore) Delete(ctx context.Context, id string) error {
	if err := s.before(ctx, OpDelete); err != nil {
		return err
	}
	return s.Inner.Delete(ctx, id)
}

var _ draft.Store = (*ScriptedStore)(nil)
