package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formwizard/internal/debounce"
	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Validator is the validation provider the controller consults before every
// transition. *validation.Engine satisfies it.
type Validator interface {
	ValidateSubset(values model.Values, fields []model.FieldName) model.ValidationErrors
	ValidateAll(values model.Values) model.ValidationErrors
	Normalize(name model.FieldName, value any) any
}

// Saver persists snapshots of the session. *draft.Gateway satisfies it.
type Saver interface {
	Save(ctx context.Context, values model.Values) (draft.Result, error)
	Finalize(ctx context.Context, values model.Values) (draft.Result, error)
	Identity() string
}

// Phase is the coarse lifecycle state of a controller.
type Phase int

const (
	PhaseEditing Phase = iota
	PhaseFinalizing
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Session is a point-in-time view of the controller state.
type Session struct {
	CurrentStep     int
	ErroredSteps    []int
	Dirty           bool
	DraftIdentity   string
	SaveGateReached bool
	Phase           Phase
}

// Readiness is the outcome of the latest whole-document pass.
type Readiness struct {
	Checked      bool
	Ready        bool
	ErroredSteps []int
	// Revision is the edit revision the pass validated.
	Revision uint64
}

// Controller drives one wizard session over a step definition. All methods
// are safe for concurrent use; transitions are serialised so a validation
// pass always resolves before the next transition starts.
type Controller struct {
	def       *steps.Definition
	validator Validator
	saver     Saver
	logger    *zap.Logger
	notifier  notify.Notifier

	readinessDelay time.Duration
	autosaveEvery  time.Duration

	mu           sync.Mutex
	values       model.Values
	current      int
	phase        Phase
	erroredSteps []int
	readiness    Readiness
	revision     uint64
	savedRev     uint64
	gateLatched  bool
	closed       bool

	debouncer *debounce.Debouncer
	flights   singleflight.Group
	inflight  sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

// New builds a controller. The definition must already be validated.
func New(def *steps.Definition, validator Validator, saver Saver, options ...Option) (*Controller, error) {
	if def == nil || def.Len() == 0 {
		return nil, fmt.Errorf("wizard: definition is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("wizard: validator is required")
	}
	if saver == nil {
		return nil, fmt.Errorf("wizard: saver is required")
	}

	c := &Controller{
		def:            def,
		validator:      validator,
		saver:          saver,
		logger:         zap.NewNop(),
		readinessDelay: DefaultReadinessDebounce,
		values:         model.Values{},
		stop:           make(chan struct{}),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	if c.notifier == nil {
		c.notifier = notify.NewLogNotifier(c.logger)
	}
	if c.current < 0 || c.current >= def.Len() {
		return nil, integrity("new", "start step %d out of range [0,%d)", c.current, def.Len())
	}
	c.latchGate(c.current)
	c.debouncer = debounce.New(c.readinessDelay, c.sweepReadiness)

	if c.autosaveEvery > 0 {
		go c.autosaveLoop(c.autosaveEvery)
	}
	return c, nil
}

// Definition returns the step definition driving the session.
func (c *Controller) Definition() *steps.Definition {
	return c.def
}

// Current returns the current step ordinal.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Values returns a copy of the working values.
func (c *Controller) Values() model.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Clone()
}

// Value returns a single working value.
func (c *Controller) Value(name model.FieldName) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.Get(name)
}

// CurrentFields returns the effective field set of the current step.
func (c *Controller) CurrentFields() []model.FieldName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.def.EffectiveFields(c.current, c.values)
}

// IsDirty reports whether any mutation happened since the last successful
// save.
func (c *Controller) IsDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyLocked()
}

// SaveGateReached reports whether a draft identity exists or the
// definition's save gate step has been reached.
func (c *Controller) SaveGateReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateReachedLocked()
}

func (c *Controller) gateReachedLocked() bool {
	return c.gateLatched || c.saver.Identity() != ""
}

// Snapshot returns the session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	identity := c.saver.Identity()
	return Session{
		CurrentStep:     c.current,
		ErroredSteps:    append([]int(nil), c.erroredSteps...),
		Dirty:           c.dirtyLocked(),
		DraftIdentity:   identity,
		SaveGateReached: c.gateReachedLocked(),
		Phase:           c.phase,
	}
}

// SetValue normalises and stores one field value, marks the session dirty
// and schedules a debounced readiness pass. Setting an equal value is a
// no-op. Non-scalar values fail with model.ErrUnsupportedValue.
func (c *Controller) SetValue(name model.FieldName, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked("set value"); err != nil {
		return err
	}
	if _, ok := c.def.Field(name); !ok {
		return integrity("set value", "unknown field %q", name)
	}

	normalized := c.validator.Normalize(name, value)
	if !model.IsScalar(normalized) {
		return fmt.Errorf("wizard: set value: %w", &model.ValueError{Field: name, Value: normalized})
	}
	existing, had := c.values[name]
	if normalized == nil {
		if !had {
			return nil
		}
		delete(c.values, name)
	} else {
		if had && model.SameValue(existing, normalized) {
			return nil
		}
		c.values[name] = normalized
	}

	c.revision++
	c.debouncer.Trigger()
	return nil
}

// Readiness returns the latest debounced whole-document result.
func (c *Controller) Readiness() Readiness {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.readiness
	r.ErroredSteps = append([]int(nil), r.ErroredSteps...)
	return r
}

// CheckNow runs the whole-document pass immediately.
func (c *Controller) CheckNow() Readiness {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fullPassLocked()
	r := c.readiness
	r.ErroredSteps = append([]int(nil), r.ErroredSteps...)
	return r
}

// Close cancels pending readiness passes and the autosave loop. Saves
// already in flight keep running; their failures are delivered to the
// notifier. Later mutations fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.debouncer.Stop()
	c.stopOnce.Do(func() { close(c.stop) })
}

// Wait blocks until every save started by the controller has completed.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) sweepReadiness() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.phase != PhaseEditing {
		return
	}
	c.fullPassLocked()
	c.logger.Debug("readiness pass",
		zap.Bool("ready", c.readiness.Ready),
		zap.Ints("errored_steps", c.readiness.ErroredSteps))
}

// fullPassLocked validates the whole document and derives erroredSteps from
// the result. It is the only writer of erroredSteps.
func (c *Controller) fullPassLocked() model.ValidationErrors {
	errs := c.validator.ValidateAll(c.values)
	c.erroredSteps = validation.MapErrorsToSteps(c.def, c.values, errs)
	c.readiness = Readiness{
		Checked:      true,
		Ready:        len(errs) == 0,
		ErroredSteps: append([]int(nil), c.erroredSteps...),
		Revision:     c.revision,
	}
	return errs
}

func (c *Controller) editableLocked(op string) error {
	if c.closed {
		return fmt.Errorf("wizard: %s: %w", op, ErrClosed)
	}
	switch c.phase {
	case PhaseFinalized:
		return fmt.Errorf("wizard: %s: %w", op, draft.ErrFinalized)
	case PhaseFinalizing:
		return fmt.Errorf("wizard: %s: %w", op, ErrFinalizing)
	}
	return nil
}

func (c *Controller) dirtyLocked() bool {
	return c.revision != c.savedRev
}

func (c *Controller) latchGate(ordinal int) {
	if ordinal >= c.def.SaveGateStep {
		c.gateLatched = true
	}
}
