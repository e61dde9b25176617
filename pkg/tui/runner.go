package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// Outcome describes how an interactive session ended.
type Outcome int

const (
	// OutcomeLeft means the user left with nothing unsaved.
	OutcomeLeft Outcome = iota
	// OutcomeDiscarded means unsaved edits were abandoned.
	OutcomeDiscarded
	// OutcomeSaved means the draft was saved on the way out.
	OutcomeSaved
	// OutcomeFinalized means the document was finalized.
	OutcomeFinalized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeSaved:
		return "saved"
	case OutcomeFinalized:
		return "finalized"
	default:
		return "left"
	}
}

// Result is returned by Run.
type Result struct {
	Outcome Outcome
	DraftID string
}

const (
	menuMessage    = "What next?"
	jumpMessage    = "Jump to step"
	discardMessage = "Discard unsaved changes?"
	leaveMessage   = "You have unsaved changes"
)

type action string

const (
	actionNext     action = "Next step"
	actionBack     action = "Previous step"
	actionEdit     action = "Edit this step"
	actionJump     action = "Jump to step"
	actionSave     action = "Save draft"
	actionFinalize action = "Finalize"
	actionQuit     action = "Quit"
)

const (
	leaveSave    = "Save and leave"
	leaveStay    = "Save and stay"
	leaveDiscard = "Leave without saving"
	leaveCancel  = "Stay"
)

// Runner walks a user through a wizard controller one step at a time.
type Runner struct {
	ctrl   *wizard.Controller
	driver PromptDriver
	outbox *notify.Outbox
	theme  Theme
	logger *zap.Logger
}

// NewRunner builds a runner over ctrl. Without WithPromptDriver it prompts on
// the terminal through survey.
func NewRunner(ctrl *wizard.Controller, options ...Option) (*Runner, error) {
	if ctrl == nil {
		return nil, errors.New("tui: controller is required")
	}
	r := &Runner{
		ctrl:   ctrl,
		theme:  DefaultTheme,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	return r, nil
}

// Run prompts the fields of the current step, then offers navigation until
// the user finalizes or leaves. Leaving with unsaved edits goes through the
// navigation guard. Pending notifications are printed before Run returns.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	defer r.Flush(context.WithoutCancel(ctx))

	prompted := -1
	for {
		if err := ctx.Err(); err != nil {
			return r.result(OutcomeLeft), err
		}

		current := r.ctrl.Current()
		if current != prompted {
			r.infof(ctx, "%s", r.stepHeader(current))
			err := r.promptStep(ctx)
			prompted = current
			switch {
			case errors.Is(err, ErrAborted):
				if res, done, err := r.leave(ctx); err != nil || done {
					return res, err
				}
				continue
			case err != nil:
				return r.result(OutcomeLeft), err
			}
		}

		act, err := r.menu(ctx)
		switch {
		case errors.Is(err, ErrAborted):
			act = actionQuit
		case err != nil:
			return r.result(OutcomeLeft), err
		}

		switch act {
		case actionNext:
			if t := r.ctrl.Advance(); !t.OK() {
				r.reportErrors(ctx, t.Errors)
				prompted = -1
			}
		case actionBack:
			r.ctrl.Retreat()
		case actionEdit:
			prompted = -1
		case actionJump:
			ok, err := r.jump(ctx)
			if err != nil {
				return r.result(OutcomeLeft), err
			}
			if !ok {
				prompted = -1
			}
		case actionSave:
			if res, err := r.ctrl.Save(ctx); err != nil {
				r.errorf(ctx, "Save failed: %v", err)
			} else {
				r.infof(ctx, "Saved draft %s", res.ID)
			}
		case actionFinalize:
			done, err := r.finalize(ctx)
			if err != nil {
				return r.result(OutcomeLeft), err
			}
			if done {
				return r.result(OutcomeFinalized), nil
			}
			prompted = -1
		case actionQuit:
			if res, done, err := r.leave(ctx); err != nil || done {
				return res, err
			}
		}
	}
}

// promptStep asks every effective field of the current step. The field list
// is re-read after each answer so a discriminator change adds or removes
// branch fields immediately. Blank answers clear the field.
func (r *Runner) promptStep(ctx context.Context) error {
	def := r.ctrl.Definition()
	asked := make(map[model.FieldName]struct{})
	for {
		name, ok := nextUnasked(r.ctrl.CurrentFields(), asked)
		if !ok {
			return nil
		}
		asked[name] = struct{}{}

		field, ok := def.Field(name)
		if !ok {
			continue
		}
		value, err := r.ask(ctx, field)
		if err != nil {
			return err
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			value = nil
		}
		if err := r.ctrl.SetValue(name, value); err != nil {
			return err
		}
	}
}

func nextUnasked(fields []model.FieldName, asked map[model.FieldName]struct{}) (model.FieldName, bool) {
	for _, name := range fields {
		if _, done := asked[name]; !done {
			return name, true
		}
	}
	return "", false
}

func (r *Runner) ask(ctx context.Context, field model.Field) (any, error) {
	values := r.ctrl.Values()
	message := field.DisplayLabel()

	switch field.Type {
	case model.FieldTypeBoolean:
		current, _ := values[field.Name].(bool)
		return r.driver.Confirm(ctx, ConfirmConfig{
			Message: message,
			Default: current,
			Help:    field.Description,
		})
	case model.FieldTypeSelect:
		return r.askSelect(ctx, field, values.String(field.Name))
	case model.FieldTypeText:
		return r.driver.TextArea(ctx, TextAreaConfig{
			Message: message,
			Default: values.String(field.Name),
			Help:    field.Description,
		})
	default:
		cfg := InputConfig{
			Message: message,
			Default: values.String(field.Name),
			Help:    field.Description,
		}
		if field.Numeric() {
			cfg.Validator = numericValidator(field)
		}
		return r.driver.Input(ctx, cfg)
	}
}

// askSelect offers the field options. A configured placeholder is listed
// first and maps back to an empty value.
func (r *Runner) askSelect(ctx context.Context, field model.Field, current string) (any, error) {
	options := append([]string(nil), field.Options...)
	offset := 0
	if field.Placeholder != "" {
		options = append([]string{field.Placeholder}, options...)
		offset = 1
	}
	selected := indexOf(field.Options, current)
	if selected < 0 {
		selected = 0
	} else {
		selected += offset
	}

	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      field.DisplayLabel(),
		Options:      options,
		DefaultIndex: selected,
		Help:         field.Description,
	})
	if err != nil {
		return nil, err
	}
	if idx < offset || idx >= len(options) {
		return "", nil
	}
	return options[idx], nil
}

func numericValidator(field model.Field) func(string) error {
	return func(raw string) error {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		if field.Type == model.FieldTypeInteger {
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				return fmt.Errorf("%s must be a whole number", field.DisplayLabel())
			}
			return nil
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("%s must be a number", field.DisplayLabel())
		}
		return nil
	}
}

func (r *Runner) menu(ctx context.Context) (action, error) {
	actions := r.actions()
	options := make([]string, len(actions))
	for i, a := range actions {
		options[i] = string(a)
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      menuMessage,
		Options:      options,
		DefaultIndex: 0,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(actions) {
		return actionEdit, nil
	}
	return actions[idx], nil
}

func (r *Runner) actions() []action {
	current := r.ctrl.Current()
	last := r.ctrl.Definition().Last()

	out := make([]action, 0, 7)
	if current < last {
		out = append(out, actionNext)
	} else {
		out = append(out, actionFinalize)
	}
	if current > 0 {
		out = append(out, actionBack)
	}
	return append(out, actionEdit, actionJump, actionSave, actionQuit)
}

// jump reports whether the requested step was reached without errors.
func (r *Runner) jump(ctx context.Context) (bool, error) {
	def := r.ctrl.Definition()
	values := r.ctrl.Values()

	options := make([]string, def.Len())
	for i := range options {
		label := r.stepLabel(i)
		if !def.StepActive(i, values) {
			label += " (skipped)"
		}
		options[i] = label
	}
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      jumpMessage,
		Options:      options,
		DefaultIndex: r.ctrl.Current(),
	})
	if errors.Is(err, ErrAborted) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	t, err := r.ctrl.JumpTo(idx)
	if err != nil {
		return false, err
	}
	if !t.OK() {
		r.reportErrors(ctx, t.Errors)
		return false, nil
	}
	return true, nil
}

// finalize reports whether the document was finalized. Validation failures
// move the user to the lowest step that needs attention.
func (r *Runner) finalize(ctx context.Context) (bool, error) {
	res, err := r.ctrl.Finalize(ctx)
	if errors.Is(err, wizard.ErrIntegrity) {
		return false, err
	}
	if err != nil {
		r.errorf(ctx, "Finalize failed: %v", err)
		return false, nil
	}
	if res.Finalized {
		r.infof(ctx, "Finalized draft %s", res.Draft.ID)
		return true, nil
	}

	r.reportErrors(ctx, res.Errors)
	labels := make([]string, len(res.ErroredSteps))
	for i, ordinal := range res.ErroredSteps {
		labels[i] = r.stepLabel(ordinal)
	}
	r.errorf(ctx, "Steps needing attention: %s", strings.Join(labels, ", "))

	if _, err := r.ctrl.JumpTo(res.Remediation); err != nil {
		return false, err
	}
	return false, nil
}

// leave runs the navigation guard. done is false when the user stays.
func (r *Runner) leave(ctx context.Context) (Result, bool, error) {
	state := r.ctrl.Bridge()

	switch wizard.GuardPrompt(state) {
	case wizard.PromptDiscard:
		discard, err := r.driver.Confirm(ctx, ConfirmConfig{Message: discardMessage})
		if errors.Is(err, ErrAborted) {
			return Result{}, false, nil
		}
		if err != nil {
			return r.result(OutcomeLeft), true, err
		}
		if !discard {
			return Result{}, false, nil
		}
		return r.result(OutcomeDiscarded), true, nil

	case wizard.PromptSaveOrLeave:
		options := []string{leaveSave, leaveStay, leaveDiscard, leaveCancel}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message: leaveMessage,
			Options: options,
		})
		if errors.Is(err, ErrAborted) {
			return Result{}, false, nil
		}
		if err != nil {
			return r.result(OutcomeLeft), true, err
		}
		if idx < 0 || idx >= len(options) {
			return Result{}, false, nil
		}

		switch options[idx] {
		case leaveSave, leaveStay:
			if err := state.Save(ctx); err != nil {
				r.errorf(ctx, "Save failed: %v", err)
				return Result{}, false, nil
			}
			r.infof(ctx, "Saved draft %s", state.DraftIdentity())
			if options[idx] == leaveStay {
				return Result{}, false, nil
			}
			return r.result(OutcomeSaved), true, nil
		case leaveDiscard:
			return r.result(OutcomeDiscarded), true, nil
		default:
			return Result{}, false, nil
		}

	default:
		return r.result(OutcomeLeft), true, nil
	}
}

func (r *Runner) result(outcome Outcome) Result {
	return Result{Outcome: outcome, DraftID: r.ctrl.Snapshot().DraftIdentity}
}

func (r *Runner) stepHeader(ordinal int) string {
	return fmt.Sprintf("Step %d of %d: %s", ordinal+1, r.ctrl.Definition().Len(), r.stepTitle(ordinal))
}

func (r *Runner) stepLabel(ordinal int) string {
	return fmt.Sprintf("%d. %s", ordinal+1, r.stepTitle(ordinal))
}

func (r *Runner) stepTitle(ordinal int) string {
	step, ok := r.ctrl.Definition().Step(ordinal)
	if !ok {
		return ""
	}
	if step.Title != "" {
		return step.Title
	}
	return step.ID
}

func (r *Runner) reportErrors(ctx context.Context, errs model.ValidationErrors) {
	def := r.ctrl.Definition()
	for _, e := range errs {
		label := string(e.Field)
		if field, ok := def.Field(e.Field); ok {
			label = field.DisplayLabel()
		}
		r.errorf(ctx, "%s: %s", label, e.Message)
	}
}

// Flush prints and drains pending outbox notifications. Run flushes on exit;
// call it again after the controller's in-flight saves have completed.
func (r *Runner) Flush(ctx context.Context) {
	if r.outbox == nil {
		return
	}
	for _, n := range r.outbox.Drain() {
		msg := n.Message
		if n.Err != "" {
			msg += ": " + n.Err
		}
		r.errorf(ctx, "%s", msg)
	}
}

func (r *Runner) infof(ctx context.Context, format string, args ...any) {
	r.print(ctx, r.theme.InfoPrefix+fmt.Sprintf(format, args...))
}

func (r *Runner) errorf(ctx context.Context, format string, args ...any) {
	r.print(ctx, r.theme.ErrorPrefix+fmt.Sprintf(format, args...))
}

func (r *Runner) print(ctx context.Context, msg string) {
	if err := r.driver.Info(ctx, msg); err != nil {
		r.logger.Debug("tui info failed", zap.Error(err))
	}
}
