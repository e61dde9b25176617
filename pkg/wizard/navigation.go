package wizard

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
)

// Transition describes the outcome of a navigation request. When Errors is
// non-empty the request failed: To is where the controller now stands and
// Focus names the first offending field of that step.
type Transition struct {
	From   int
	To     int
	Errors model.ValidationErrors
	Focus  model.FieldName
}

// OK reports whether the transition passed validation.
func (t Transition) OK() bool {
	return len(t.Errors) == 0
}

// Moved reports whether the current step changed.
func (t Transition) Moved() bool {
	return t.From != t.To
}

// FinalizeResult is the outcome of Finalize. On validation failure the
// controller stays on the last step and Remediation names the lowest errored
// step for the caller to navigate to.
type FinalizeResult struct {
	Finalized    bool
	Errors       model.ValidationErrors
	ErroredSteps []int
	Remediation  int
	Draft        draft.Result
}

// Advance validates the effective fields of the current step and moves
// forward. A discriminator holding its sentinel moves to the branch
// continuation instead of the next step. Advancing from the last step is a
// no-op.
func (c *Controller) Advance() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.current
	if c.phase != PhaseEditing || from == c.def.Last() {
		return Transition{From: from, To: from}
	}
	if failed := c.checkStepLocked(from); !failed.OK() {
		return failed
	}

	to := from + 1
	if c.def.Skipping(from, c.values) {
		step, _ := c.def.Step(from)
		to = step.Branch.Continuation
	}
	c.moveLocked(to)
	return Transition{From: from, To: to}
}

// Retreat moves back one step, skipping a continuation step made inactive
// by a sentinel. Retreating from the first step is a no-op.
func (c *Controller) Retreat() Transition {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.current
	if c.phase != PhaseEditing || from == 0 {
		return Transition{From: from, To: from}
	}
	to := from - 1
	for to > 0 && !c.def.StepActive(to, c.values) {
		to--
	}
	c.moveLocked(to)
	return Transition{From: from, To: to}
}

// JumpTo moves to target. Backward jumps always succeed. Forward jumps are
// unconditional once the save gate is reached; before that every step in
// [current, target) must validate and the controller stops on the first one
// that does not. A target outside the definition is an integrity violation.
// Jumping onto an inactive step lands on the step the branch continues to.
func (c *Controller) JumpTo(target int) (Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if target < 0 || target >= c.def.Len() {
		return Transition{}, integrity("jump", "target %d out of range [0,%d)", target, c.def.Len())
	}
	if err := c.editableLocked("jump"); err != nil {
		return Transition{}, err
	}

	from := c.current
	if target == from {
		return Transition{From: from, To: from}, nil
	}
	if target < from {
		for target > 0 && !c.def.StepActive(target, c.values) {
			target--
		}
		c.moveLocked(target)
		return Transition{From: from, To: target}, nil
	}

	if !c.gateReachedLocked() {
		for ordinal := from; ordinal < target; ordinal++ {
			if failed := c.checkStepLocked(ordinal); !failed.OK() {
				failed.From = from
				c.moveLocked(ordinal)
				return failed, nil
			}
		}
	}
	for target < c.def.Last() && !c.def.StepActive(target, c.values) {
		target++
	}
	c.moveLocked(target)
	return Transition{From: from, To: target}, nil
}

// Finalize validates the whole document from the last step and persists it
// as FINALIZED. Validation failures are returned as data without a
// transition. A persistence failure leaves the controller editable on the
// last step.
func (c *Controller) Finalize(ctx context.Context) (FinalizeResult, error) {
	c.mu.Lock()
	if err := c.editableLocked("finalize"); err != nil {
		c.mu.Unlock()
		return FinalizeResult{}, err
	}
	if c.current != c.def.Last() {
		current := c.current
		c.mu.Unlock()
		return FinalizeResult{}, integrity("finalize", "current step %d is not the last step %d", current, c.def.Last())
	}
	if err := ctx.Err(); err != nil {
		c.mu.Unlock()
		return FinalizeResult{}, err
	}

	if errs := c.fullPassLocked(); len(errs) > 0 {
		result := FinalizeResult{
			Errors:       errs,
			ErroredSteps: append([]int(nil), c.erroredSteps...),
			Remediation:  c.current,
		}
		if len(result.ErroredSteps) > 0 {
			result.Remediation = result.ErroredSteps[0]
		}
		c.mu.Unlock()
		return result, nil
	}

	c.phase = PhaseFinalizing
	snapshot := c.values.Clone()
	rev := c.revision
	c.mu.Unlock()

	res, err := c.persist(ctx, notify.KindFinalizeFailed, c.saver.Finalize, snapshot, func(res draft.Result, err error) {
		if err != nil {
			c.phase = PhaseEditing
			return
		}
		c.phase = PhaseFinalized
		c.markSavedLocked(rev)
		c.logger.Info("document finalized", zap.String("draft_id", res.ID))
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	c.debouncer.Stop()
	return FinalizeResult{Finalized: true, Remediation: c.def.Last(), Draft: res}, nil
}

// checkStepLocked validates the effective fields of ordinal, returning a
// failed transition anchored at that step or a zero Transition.
func (c *Controller) checkStepLocked(ordinal int) Transition {
	fields := c.def.EffectiveFields(ordinal, c.values)
	errs := c.validator.ValidateSubset(c.values, fields)
	if len(errs) == 0 {
		return Transition{}
	}
	return Transition{
		From:   ordinal,
		To:     ordinal,
		Errors: errs,
		Focus:  firstOffending(fields, errs),
	}
}

func (c *Controller) moveLocked(to int) {
	c.current = to
	c.latchGate(to)
}

func firstOffending(fields []model.FieldName, errs model.ValidationErrors) model.FieldName {
	for _, f := range fields {
		if errs.Has(f) {
			return f
		}
	}
	if len(errs) > 0 {
		return errs[0].Field
	}
	return ""
}
