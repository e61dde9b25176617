package wizard

import (
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
)

// DefaultReadinessDebounce is the quiet period after the last field change
// before the whole document is re-validated.
const DefaultReadinessDebounce = 500 * time.Millisecond

// Option customises a Controller.
type Option func(*Controller)

// WithValues hydrates the controller with previously stored values. Values
// are taken as-is and do not mark the session dirty.
func WithValues(values model.Values) Option {
	return func(c *Controller) {
		c.values = values.Clone()
	}
}

// WithStartStep positions the controller without validation.
func WithStartStep(ordinal int) Option {
	return func(c *Controller) {
		c.current = ordinal
	}
}

// WithLogger injects a zap logger. Nil loggers are ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReadinessDebounce overrides DefaultReadinessDebounce. Non-positive
// durations keep the default.
func WithReadinessDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.readinessDelay = d
		}
	}
}

// WithNotifier sets where late background failures are delivered. Defaults
// to a notifier writing to the controller logger.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithAutosave saves dirty sessions every interval until Close.
func WithAutosave(interval time.Duration) Option {
	return func(c *Controller) {
		c.autosaveEvery = interval
	}
}
