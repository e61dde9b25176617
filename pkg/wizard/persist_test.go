package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
	"github.com/goliatone/go-formwizard/pkg/validation"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func TestSaveCreatesOnceThenUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	mustSet(t, h.ctrl, "title", "First title")
	first, err := h.ctrl.Save(ctx)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	mustSet(t, h.ctrl, "title", "Second title")
	second, err := h.ctrl.Save(ctx)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if first.ID == "" || second.ID != first.ID {
		t.Fatalf("identity changed: %q -> %q", first.ID, second.ID)
	}
	if h.mem.Creates() != 1 {
		t.Fatalf("created %d records, want 1", h.mem.Creates())
	}
	rec, err := h.mem.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Values.String("title") != "Second title" {
		t.Fatalf("record holds %q", rec.Values.String("title"))
	}
	if h.ctrl.Snapshot().DraftIdentity != first.ID {
		t.Fatalf("snapshot identity mismatch")
	}
}

func TestImmediateConcurrentSavesCreateOnce(t *testing.T) {
	h := newHarness(t)
	h.store.Delay = 15 * time.Millisecond
	mustSet(t, h.ctrl, "title", "Racing")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ctrl.Save(context.Background()); err != nil {
				t.Errorf("save: %v", err)
			}
		}()
	}
	wg.Wait()

	if h.mem.Creates() != 1 {
		t.Fatalf("created %d records, want 1", h.mem.Creates())
	}
}

func TestDirtyClearsOnlyForUnchangedRevision(t *testing.T) {
	h := newHarness(t)
	if h.ctrl.IsDirty() {
		t.Fatalf("fresh session should be clean")
	}
	mustSet(t, h.ctrl, "title", "One")

	release := h.store.Hold()
	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Save(context.Background())
		done <- err
	}()
	<-h.store.Entered()
	mustSet(t, h.ctrl, "title", "Two")
	release()
	if err := <-done; err != nil {
		t.Fatalf("save: %v", err)
	}
	if !h.ctrl.IsDirty() {
		t.Fatalf("edit during save must keep the session dirty")
	}

	if _, err := h.ctrl.Save(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if h.ctrl.IsDirty() {
		t.Fatalf("session should be clean after saving the latest values")
	}
}

func TestFailedSaveKeepsValuesAndDirty(t *testing.T) {
	h := newHarness(t)
	mustSet(t, h.ctrl, "title", "Keep me")
	h.store.FailNext(testsupport.OpCreate, 1)

	_, err := h.ctrl.Save(context.Background())
	var perr *draft.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if !h.ctrl.IsDirty() || h.ctrl.Values().String("title") != "Keep me" {
		t.Fatalf("failed save must not touch state")
	}
	if h.ctrl.Snapshot().DraftIdentity != "" {
		t.Fatalf("identity assigned after failed create")
	}
	if h.outbox.Len() != 0 {
		t.Fatalf("inline failure should not be notified out of band")
	}
}

func TestFinalizeRequiresLastStep(t *testing.T) {
	h := newHarness(t, wizard.WithValues(testsupport.ValidValues()), wizard.WithStartStep(8))
	_, err := h.ctrl.Finalize(context.Background())
	if !errors.Is(err, wizard.ErrIntegrity) {
		t.Fatalf("finalize away from last step: %v", err)
	}
}

func TestFinalizeFailureMapsErroredSteps(t *testing.T) {
	values := testsupport.ValidValues()
	delete(values, "title")
	delete(values, "step7_extra")
	values["summary"] = ""
	h := newHarness(t, wizard.WithValues(values), wizard.WithStartStep(9))

	res, err := h.ctrl.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Finalized {
		t.Fatalf("finalize must fail")
	}
	if diff := cmp.Diff([]int{0, 5, 7}, res.ErroredSteps); diff != "" {
		t.Fatalf("errored steps mismatch (-want +got):\n%s", diff)
	}
	if res.Remediation != 0 {
		t.Fatalf("remediation = %d, want 0", res.Remediation)
	}
	if h.ctrl.Current() != 9 || h.ctrl.Phase() != wizard.PhaseEditing {
		t.Fatalf("failed finalize transitioned: step %d phase %s", h.ctrl.Current(), h.ctrl.Phase())
	}
	if diff := cmp.Diff(res.ErroredSteps, h.ctrl.Snapshot().ErroredSteps); diff != "" {
		t.Fatalf("session errored steps mismatch (-want +got):\n%s", diff)
	}

	// Every error falls in an errored step and every errored step owns an error.
	def := h.ctrl.Definition()
	union := map[model.FieldName]bool{}
	for _, ordinal := range res.ErroredSteps {
		owned := false
		for _, f := range def.EffectiveFields(ordinal, values) {
			union[f] = true
			owned = owned || res.Errors.Has(f)
		}
		if !owned {
			t.Fatalf("step %d reported without an error", ordinal)
		}
	}
	for _, f := range res.Errors.Fields() {
		if !union[f] {
			t.Fatalf("error field %s outside errored steps", f)
		}
	}
	engine := testsupport.Engine(t, def)
	if diff := cmp.Diff(engine.ValidateAll(values).Fields(), res.Errors.Fields()); diff != "" {
		t.Fatalf("finalize errors differ from ValidateAll (-want +got):\n%s", diff)
	}
	if h.mem.Creates() != 0 {
		t.Fatalf("failed finalize must not persist")
	}
}

func TestFinalizeSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, wizard.WithValues(testsupport.SkippingValues()), wizard.WithStartStep(9))

	res, err := h.ctrl.Finalize(ctx)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !res.Finalized || res.Draft.ID == "" {
		t.Fatalf("finalize result %#v", res)
	}
	rec, err := h.mem.Get(ctx, res.Draft.ID)
	if err != nil || rec.Status != draft.StatusFinalized {
		t.Fatalf("record %#v err %v", rec, err)
	}
	if h.ctrl.Phase() != wizard.PhaseFinalized || h.ctrl.IsDirty() {
		t.Fatalf("phase %s dirty %v", h.ctrl.Phase(), h.ctrl.IsDirty())
	}
	if err := h.ctrl.SetValue("title", "late edit"); !errors.Is(err, draft.ErrFinalized) {
		t.Fatalf("edit after finalize: %v", err)
	}
	if _, err := h.ctrl.Finalize(ctx); !errors.Is(err, draft.ErrFinalized) {
		t.Fatalf("second finalize: %v", err)
	}
	if tr := h.ctrl.Retreat(); tr.Moved() {
		t.Fatalf("navigation after finalize moved: %#v", tr)
	}
}

func TestFinalizePersistenceFailureStaysEditable(t *testing.T) {
	h := newHarness(t, wizard.WithValues(testsupport.ValidValues()), wizard.WithStartStep(9))
	h.store.FailNext(testsupport.OpCreate, 1)

	_, err := h.ctrl.Finalize(context.Background())
	if !errors.Is(err, testsupport.ErrInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if h.ctrl.Phase() != wizard.PhaseEditing || h.ctrl.Current() != 9 {
		t.Fatalf("phase %s step %d after failed finalize", h.ctrl.Phase(), h.ctrl.Current())
	}
	if _, err := h.ctrl.Finalize(context.Background()); err != nil {
		t.Fatalf("retry finalize: %v", err)
	}
}

func TestLateFailureAfterCloseIsNotified(t *testing.T) {
	h := newHarness(t)
	mustSet(t, h.ctrl, "title", "Leaving")
	h.store.FailNext(testsupport.OpCreate, 1)
	release := h.store.Hold()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Save(ctx)
		done <- err
	}()
	<-h.store.Entered()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned save returned %v", err)
	}

	h.ctrl.Close()
	release()
	h.ctrl.Wait()

	got := h.outbox.Drain()
	if len(got) != 1 || got[0].Kind != notify.KindSaveFailed || got[0].Err == "" {
		t.Fatalf("notifications %#v", got)
	}
	if !h.ctrl.IsDirty() {
		t.Fatalf("failed background save must leave the session dirty")
	}
}

func TestSaveGate(t *testing.T) {
	h := newHarness(t, wizard.WithValues(testsupport.ValidThrough(3)))
	if h.ctrl.SaveGateReached() {
		t.Fatalf("gate reached on a fresh session")
	}
	for i := 0; i < 3; i++ {
		h.ctrl.Advance()
	}
	if h.ctrl.Current() != 3 || !h.ctrl.SaveGateReached() {
		t.Fatalf("gate should latch on step 3 (current %d)", h.ctrl.Current())
	}
	h.ctrl.Retreat()
	if !h.ctrl.SaveGateReached() {
		t.Fatalf("gate should stay latched after retreating")
	}

	// A latched gate lets forward jumps through without a save.
	mustSet(t, h.ctrl, "title", "")
	h.ctrl.JumpTo(0)
	tr, _ := h.ctrl.JumpTo(4)
	if !tr.OK() || tr.To != 4 {
		t.Fatalf("jump past a latched gate: %#v", tr)
	}

	saved := newHarness(t)
	if _, err := saved.ctrl.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved.ctrl.SaveGateReached() {
		t.Fatalf("identity should reach the gate")
	}
}

func TestGuardPrompt(t *testing.T) {
	h := newHarness(t, wizard.WithValues(testsupport.ValidThrough(3)))
	guard := h.ctrl.Bridge()

	if got := wizard.GuardPrompt(guard); got != wizard.PromptNone {
		t.Fatalf("clean session prompt = %s", got)
	}
	mustSet(t, h.ctrl, "subtitle", "changed")
	if got := wizard.GuardPrompt(guard); got != wizard.PromptDiscard {
		t.Fatalf("dirty early session prompt = %s", got)
	}
	for i := 0; i < 3; i++ {
		h.ctrl.Advance()
	}
	if got := wizard.GuardPrompt(guard); got != wizard.PromptSaveOrLeave {
		t.Fatalf("dirty gated session prompt = %s", got)
	}

	if err := guard.Save(context.Background()); err != nil {
		t.Fatalf("guard save: %v", err)
	}
	snap := guard.Snapshot()
	if snap.Dirty || snap.DraftIdentity == "" || guard.DraftIdentity() != snap.DraftIdentity || guard.IsDirty() {
		t.Fatalf("guard snapshot after save %#v", snap)
	}
	if got := wizard.GuardPrompt(guard); got != wizard.PromptNone {
		t.Fatalf("saved session prompt = %s", got)
	}
}

func TestReadinessIsDebounced(t *testing.T) {
	h := newHarness(t,
		wizard.WithValues(testsupport.ValidValues()),
		wizard.WithReadinessDebounce(30*time.Millisecond))

	mustSet(t, h.ctrl, "title", "")
	if h.ctrl.Readiness().Checked {
		t.Fatalf("readiness ran without a quiet period")
	}
	waitFor(t, time.Second, func() bool { return h.ctrl.Readiness().Checked })

	r := h.ctrl.Readiness()
	if r.Ready || !cmp.Equal([]int{0}, r.ErroredSteps) {
		t.Fatalf("readiness %#v", r)
	}

	mustSet(t, h.ctrl, "title", "Restored")
	now := h.ctrl.CheckNow()
	if !now.Ready || len(now.ErroredSteps) != 0 || len(h.ctrl.Snapshot().ErroredSteps) != 0 {
		t.Fatalf("immediate readiness %#v", now)
	}
}

func TestCloseCancelsPendingReadiness(t *testing.T) {
	h := newHarness(t, wizard.WithReadinessDebounce(20*time.Millisecond))
	mustSet(t, h.ctrl, "title", "x")
	h.ctrl.Close()
	time.Sleep(60 * time.Millisecond)
	if h.ctrl.Readiness().Checked {
		t.Fatalf("readiness ran after close")
	}
	if err := h.ctrl.SetValue("title", "late"); !errors.Is(err, wizard.ErrClosed) {
		t.Fatalf("set after close: %v", err)
	}
	if _, err := h.ctrl.Save(context.Background()); !errors.Is(err, wizard.ErrClosed) {
		t.Fatalf("save after close: %v", err)
	}
}

func TestAutosave(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ctrl.Autosave(context.Background()); err != nil {
		t.Fatalf("clean autosave: %v", err)
	}
	if h.store.Calls(testsupport.OpCreate) != 0 {
		t.Fatalf("clean autosave reached the store")
	}

	mustSet(t, h.ctrl, "title", "Auto")
	h.store.Delay = 20 * time.Millisecond
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.ctrl.Autosave(context.Background()); err != nil {
				t.Errorf("autosave: %v", err)
			}
		}()
	}
	wg.Wait()
	if h.mem.Creates() != 1 || h.ctrl.IsDirty() {
		t.Fatalf("creates %d dirty %v", h.mem.Creates(), h.ctrl.IsDirty())
	}
}

func TestAutosaveLoop(t *testing.T) {
	h := newHarness(t, wizard.WithAutosave(10*time.Millisecond))
	mustSet(t, h.ctrl, "title", "Periodic")
	waitFor(t, time.Second, func() bool { return !h.ctrl.IsDirty() })
	if h.mem.Creates() != 1 {
		t.Fatalf("creates = %d", h.mem.Creates())
	}
}

func TestControllerWithStubValidator(t *testing.T) {
	def := testsupport.TenStep()
	gw, _ := draft.NewGateway(draft.NewMemoryStore(), def.DocumentType)
	stub := stubValidator{errs: model.ValidationErrors{{Field: "subtitle", Message: "nope"}}}

	ctrl, err := wizard.New(def, stub, gw)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer ctrl.Close()

	tr := ctrl.Advance()
	if tr.OK() || tr.Focus != "subtitle" {
		t.Fatalf("stub errors should block advance: %#v", tr)
	}
}

type stubValidator struct {
	errs model.ValidationErrors
}

func (s stubValidator) ValidateSubset(model.Values, []model.FieldName) model.ValidationErrors {
	return s.errs
}

func (s stubValidator) ValidateAll(model.Values) model.ValidationErrors { return s.errs }

func (s stubValidator) Normalize(_ model.FieldName, value any) any { return value }

var _ wizard.Validator = (*validation.Engine)(nil)
