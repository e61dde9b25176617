package resume

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// ErrHydration reports that the controller did not hold the stored values
// after hydration.
var ErrHydration = errors.New("resume: hydrated values differ from the stored record")

// Validator is the subset of the validation provider the sweep needs.
type Validator interface {
	ValidateSubset(values model.Values, fields []model.FieldName) model.ValidationErrors
}

// Option customises a Loader.
type Option func(*Loader)

// WithLogger injects a zap logger. Nil loggers are ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEngineOptions forwards options to every validation engine the loader
// compiles.
func WithEngineOptions(options ...validation.Option) Option {
	return func(l *Loader) {
		l.engineOptions = append(l.engineOptions, options...)
	}
}

// Loader reopens stored drafts as wizard controllers positioned on their
// first incomplete step.
type Loader struct {
	store         draft.Store
	registry      *steps.Registry
	logger        *zap.Logger
	engineOptions []validation.Option

	fetches singleflight.Group
}

// NewLoader binds a store to the registry describing its document types.
func NewLoader(store draft.Store, registry *steps.Registry, options ...Option) (*Loader, error) {
	if store == nil {
		return nil, fmt.Errorf("resume: store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("resume: registry is required")
	}
	l := &Loader{
		store:    store,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Fetch returns the stored record. Concurrent fetches of one id share a
// single store round trip. Records holding non-scalar values are rejected.
func (l *Loader) Fetch(ctx context.Context, id string) (draft.Record, error) {
	v, err, _ := l.fetches.Do(id, func() (any, error) {
		return l.store.Get(ctx, id)
	})
	if err != nil {
		if errors.Is(err, draft.ErrNotFound) {
			return draft.Record{}, fmt.Errorf("resume: %s: %w", id, err)
		}
		return draft.Record{}, &draft.PersistenceError{Op: "get", ID: id, Err: err}
	}
	rec := v.(draft.Record)
	if err := rec.Values.Check(); err != nil {
		return draft.Record{}, fmt.Errorf("resume: %s: %w", id, err)
	}
	rec.Values = rec.Values.Clone()
	return rec, nil
}

// Load fetches the draft, hydrates a controller with its values and identity,
// then silently sweeps the steps to position the controller on the first
// step with invalid or missing data, or on the last step when the draft is
// complete. Finalized drafts cannot be resumed.
func (l *Loader) Load(ctx context.Context, id string, options ...wizard.Option) (*wizard.Controller, error) {
	rec, err := l.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == draft.StatusFinalized {
		return nil, fmt.Errorf("resume: %s: %w", id, draft.ErrFinalized)
	}

	def, err := l.registry.Get(rec.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("resume: %s: %w", id, err)
	}
	engine, err := validation.New(def, append([]validation.Option{validation.WithLogger(l.logger)}, l.engineOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	gw, err := draft.NewGateway(l.store, def.DocumentType, draft.WithIdentity(rec.ID), draft.WithLogger(l.logger))
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	opts := append([]wizard.Option{wizard.WithLogger(l.logger)}, options...)
	opts = append(opts, wizard.WithValues(rec.Values), wizard.WithStartStep(0))
	ctrl, err := wizard.New(def, engine, gw, opts...)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	hydrated := ctrl.Values()
	if !hydrated.Equal(rec.Values) {
		ctrl.Close()
		return nil, fmt.Errorf("%w (%s)", ErrHydration, id)
	}

	target := FirstIncompleteStep(def, engine, hydrated)
	if _, err := ctrl.JumpTo(target); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("resume: %w", err)
	}
	l.logger.Debug("draft resumed",
		zap.String("draft_id", rec.ID),
		zap.String("document_type", rec.DocumentType),
		zap.Int("step", target))
	return ctrl, nil
}

// FirstIncompleteStep validates the effective fields of every step in order
// and returns the first failing ordinal, or the last ordinal when all pass.
// Errors are discarded; the sweep only positions the session.
func FirstIncompleteStep(def *steps.Definition, validator Validator, values model.Values) int {
	for ordinal := 0; ordinal < def.Len(); ordinal++ {
		fields := def.EffectiveFields(ordinal, values)
		if len(fields) == 0 {
			continue
		}
		if errs := validator.ValidateSubset(values, fields); len(errs) > 0 {
			return ordinal
		}
	}
	return def.Last()
}
