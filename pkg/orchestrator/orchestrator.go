package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/resume"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// ErrListUnsupported is returned by List when the store cannot enumerate
// drafts.
var ErrListUnsupported = errors.New("orchestrator: store does not support listing")

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithRegistry injects a definition registry. Without it the embedded
// document types are loaded.
func WithRegistry(registry *steps.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefinitionsFS registers every definition found in fsys on top of the
// registry. Duplicate document types fail initialisation.
func WithDefinitionsFS(fsys fs.FS) Option {
	return func(o *Orchestrator) {
		if fsys != nil {
			o.definitionFS = append(o.definitionFS, fsys)
		}
	}
}

// WithStore injects the draft store. Defaults to an in-memory store.
func WithStore(store draft.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithLogger injects a zap logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEngineOptions forwards options to every validation engine.
func WithEngineOptions(options ...validation.Option) Option {
	return func(o *Orchestrator) {
		o.engineOptions = append(o.engineOptions, options...)
	}
}

// WithWizardOptions applies options to every controller the orchestrator
// opens, before per-call options.
func WithWizardOptions(options ...wizard.Option) Option {
	return func(o *Orchestrator) {
		o.wizardOptions = append(o.wizardOptions, options...)
	}
}

// WithTiming sets the readiness debounce and autosave interval of every
// controller. Zero values keep the controller defaults.
func WithTiming(readinessDebounce, autosaveInterval time.Duration) Option {
	return func(o *Orchestrator) {
		if readinessDebounce > 0 {
			o.wizardOptions = append(o.wizardOptions, wizard.WithReadinessDebounce(readinessDebounce))
		}
		if autosaveInterval > 0 {
			o.wizardOptions = append(o.wizardOptions, wizard.WithAutosave(autosaveInterval))
		}
	}
}

// Orchestrator coordinates the definition registry, the draft store and the
// resume loader so callers can open and inspect sessions through one value.
type Orchestrator struct {
	registry      *steps.Registry
	definitionFS  []fs.FS
	store         draft.Store
	logger        *zap.Logger
	engineOptions []validation.Option
	wizardOptions []wizard.Option

	loader        *resume.Loader
	initialiseErr error
}

// New constructs an Orchestrator. Initialisation failures are reported by
// Err and by every operation.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

func (o *Orchestrator) applyDefaults() {
	if o.registry == nil {
		registry, err := steps.Default()
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default definitions: %w", err)
			return
		}
		o.registry = registry
	}
	for _, fsys := range o.definitionFS {
		if err := mergeDefinitions(o.registry, fsys); err != nil {
			o.initialiseErr = err
			return
		}
	}
	if o.store == nil {
		o.store = draft.NewMemoryStore()
	}

	loader, err := resume.NewLoader(o.store, o.registry,
		resume.WithLogger(o.logger),
		resume.WithEngineOptions(o.engineOptions...))
	if err != nil {
		o.initialiseErr = fmt.Errorf("orchestrator: %w", err)
		return
	}
	o.loader = loader
}

func mergeDefinitions(registry *steps.Registry, fsys fs.FS) error {
	extra, err := steps.LoadFS(fsys)
	if err != nil {
		return fmt.Errorf("orchestrator: load definitions: %w", err)
	}
	if err := registry.Merge(extra); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	return nil
}

// Err reports an initialisation failure.
func (o *Orchestrator) Err() error {
	return o.initialiseErr
}

// Registry returns the definition registry.
func (o *Orchestrator) Registry() *steps.Registry {
	return o.registry
}

// Store returns the draft store.
func (o *Orchestrator) Store() draft.Store {
	return o.store
}

// DocumentTypes lists the registered document types.
func (o *Orchestrator) DocumentTypes() []string {
	if o.registry == nil {
		return nil
	}
	return o.registry.List()
}

// Start opens a new, unsaved session for documentType on its first step.
func (o *Orchestrator) Start(ctx context.Context, documentType string, options ...wizard.Option) (*wizard.Controller, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	def, err := o.registry.Get(documentType)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	engine, err := o.engine(def)
	if err != nil {
		return nil, err
	}
	gw, err := draft.NewGateway(o.store, def.DocumentType, draft.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	ctrl, err := wizard.New(def, engine, gw, o.controllerOptions(options)...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.logger.Debug("session started", zap.String("document_type", documentType))
	return ctrl, nil
}

// Resume reopens a stored draft on its first incomplete step.
func (o *Orchestrator) Resume(ctx context.Context, id string, options ...wizard.Option) (*wizard.Controller, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	return o.loader.Load(ctx, id, o.controllerOptions(options)...)
}

// Report is a read-only validation summary of a stored draft.
type Report struct {
	Record       draft.Record
	Ready        bool
	Errors       model.ValidationErrors
	ErroredSteps []int
	// ResumeStep is where Resume would position a session.
	ResumeStep int
}

// Check validates a stored draft without opening a session.
func (o *Orchestrator) Check(ctx context.Context, id string) (Report, error) {
	if err := o.ready(ctx); err != nil {
		return Report{}, err
	}
	rec, err := o.loader.Fetch(ctx, id)
	if err != nil {
		return Report{}, err
	}
	def, err := o.registry.Get(rec.DocumentType)
	if err != nil {
		return Report{}, fmt.Errorf("orchestrator: %s: %w", id, err)
	}
	engine, err := o.engine(def)
	if err != nil {
		return Report{}, err
	}

	errs := engine.ValidateAll(rec.Values)
	return Report{
		Record:       rec,
		Ready:        len(errs) == 0,
		Errors:       errs,
		ErroredSteps: engine.MapErrorsToSteps(rec.Values, errs),
		ResumeStep:   resume.FirstIncompleteStep(def, engine, rec.Values),
	}, nil
}

// List returns the stored drafts of documentType, or of every type when it
// is empty.
func (o *Orchestrator) List(ctx context.Context, documentType string) ([]draft.Record, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	lister, ok := o.store.(draft.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.List(ctx, documentType)
}

// Delete removes a stored draft.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.ready(ctx); err != nil {
		return err
	}
	if err := o.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("orchestrator: delete %s: %w", id, err)
	}
	return nil
}

func (o *Orchestrator) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.initialiseErr
}

func (o *Orchestrator) engine(def *steps.Definition) (*validation.Engine, error) {
	options := append([]validation.Option{validation.WithLogger(o.logger)}, o.engineOptions...)
	engine, err := validation.New(def, options...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return engine, nil
}

func (o *Orchestrator) controllerOptions(extra []wizard.Option) []wizard.Option {
	options := make([]wizard.Option, 0, 1+len(o.wizardOptions)+len(extra))
	options = append(options, wizard.WithLogger(o.logger))
	options = append(options, o.wizardOptions...)
	return append(options, extra...)
}
