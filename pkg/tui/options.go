package tui

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/notify"
)

// Theme captures optional prefixes the runner applies when printing messages.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// DefaultTheme is used when no theme is configured.
var DefaultTheme = Theme{InfoPrefix: "", ErrorPrefix: "! "}

// Option configures the runner.
type Option func(*Runner)

// WithPromptDriver overrides the prompt driver used by the runner.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutbox sets the outbox drained and printed when the runner exits. It
// should be the same outbox the controller notifies.
func WithOutbox(outbox *notify.Outbox) Option {
	return func(r *Runner) {
		r.outbox = outbox
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Runner) {
		r.theme = theme
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}
