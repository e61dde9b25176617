package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/orchestrator"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

const extraDefinition = `
documentType: extra
fields:
  - name: note
    required: true
steps:
  - fields: [note]
`

func newOrchestrator(t *testing.T, options ...orchestrator.Option) (*orchestrator.Orchestrator, *draft.MemoryStore) {
	t.Helper()
	store := draft.NewMemoryStore()
	options = append([]orchestrator.Option{
		orchestrator.WithRegistry(testsupport.Registry()),
		orchestrator.WithStore(store),
	}, options...)
	o := orchestrator.New(options...)
	if err := o.Err(); err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	return o, store
}

func startAndSave(t *testing.T, o *orchestrator.Orchestrator, through int) string {
	t.Helper()
	ctx := context.Background()
	ctrl, err := o.Start(ctx, testsupport.TenStepType)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctrl.Close()
		ctrl.Wait()
	}()
	for name, value := range testsupport.ValidThrough(through) {
		if err := ctrl.SetValue(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	res, err := ctrl.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return res.ID
}

func TestDefaultsLoadEmbeddedDefinitions(t *testing.T) {
	o := orchestrator.New()
	if err := o.Err(); err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	if diff := cmp.Diff([]string{"handover-brief", "handover-report"}, o.DocumentTypes()); diff != "" {
		t.Fatalf("document types mismatch (-want +got):\n%s", diff)
	}
	if _, ok := o.Store().(*draft.MemoryStore); !ok {
		t.Fatalf("default store = %T, want *draft.MemoryStore", o.Store())
	}
}

func TestStartOpensFirstStep(t *testing.T) {
	o, store := newOrchestrator(t)
	ctrl, err := o.Start(context.Background(), testsupport.TenStepType)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.Close()

	snap := ctrl.Snapshot()
	if snap.CurrentStep != 0 || snap.DraftIdentity != "" || snap.Dirty {
		t.Fatalf("snapshot %#v", snap)
	}
	if store.Creates() != 0 {
		t.Fatalf("starting a session must not create a draft")
	}
}

func TestStartAppliesWizardOptions(t *testing.T) {
	o, _ := newOrchestrator(t, orchestrator.WithWizardOptions(wizard.WithStartStep(2)))
	ctrl, err := o.Start(context.Background(), testsupport.TenStepType)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.Close()
	if ctrl.Current() != 2 {
		t.Fatalf("current = %d, want 2", ctrl.Current())
	}

	override, err := o.Start(context.Background(), testsupport.TenStepType, wizard.WithStartStep(4))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer override.Close()
	if override.Current() != 4 {
		t.Fatalf("per-call options should win, current = %d", override.Current())
	}
}

func TestStartUnknownType(t *testing.T) {
	o, _ := newOrchestrator(t)
	if _, err := o.Start(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown document type")
	}
}

func TestResumeAndCheck(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	id := startAndSave(t, o, 2)

	report, err := o.Check(ctx, id)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if report.Ready || report.ResumeStep != 3 || report.Record.ID != id {
		t.Fatalf("report %#v", report)
	}
	if len(report.ErroredSteps) == 0 || report.ErroredSteps[0] != 3 {
		t.Fatalf("errored steps %v", report.ErroredSteps)
	}

	ctrl, err := o.Resume(ctx, id)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer ctrl.Close()
	if snap := ctrl.Snapshot(); snap.CurrentStep != 3 || snap.DraftIdentity != id {
		t.Fatalf("snapshot %#v", snap)
	}
}

func TestCheckCompleteDraft(t *testing.T) {
	o, _ := newOrchestrator(t)
	id := startAndSave(t, o, 9)

	report, err := o.Check(context.Background(), id)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !report.Ready || len(report.Errors) != 0 || report.ResumeStep != 9 {
		t.Fatalf("report %#v", report)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	first := startAndSave(t, o, 0)
	second := startAndSave(t, o, 1)

	records, err := o.List(ctx, testsupport.TenStepType)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	if err := o.Delete(ctx, first); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := o.Check(ctx, first); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("check deleted draft: %v", err)
	}
	if err := o.Delete(ctx, first); !errors.Is(err, draft.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := o.Check(ctx, second); err != nil {
		t.Fatalf("check remaining draft: %v", err)
	}
}

func TestListUnsupported(t *testing.T) {
	o := orchestrator.New(
		orchestrator.WithRegistry(testsupport.Registry()),
		orchestrator.WithStore(testsupport.NewScriptedStore(nil)),
	)
	if _, err := o.List(context.Background(), ""); !errors.Is(err, orchestrator.ErrListUnsupported) {
		t.Fatalf("list: %v", err)
	}
}

func TestDefinitionsFS(t *testing.T) {
	fsys := fstest.MapFS{"extra.yaml": {Data: []byte(extraDefinition)}}
	o, _ := newOrchestrator(t, orchestrator.WithDefinitionsFS(fsys))
	if diff := cmp.Diff([]string{"extra", testsupport.TenStepType}, o.DocumentTypes()); diff != "" {
		t.Fatalf("document types mismatch (-want +got):\n%s", diff)
	}

	dup := orchestrator.New(
		orchestrator.WithRegistry(testsupport.Registry()),
		orchestrator.WithDefinitionsFS(fsys),
		orchestrator.WithDefinitionsFS(fsys),
	)
	if dup.Err() == nil {
		t.Fatalf("duplicate document types should fail initialisation")
	}
	if _, err := dup.Start(context.Background(), "extra"); err == nil {
		t.Fatalf("start should report the initialisation error")
	}
}

func TestCanceledContext(t *testing.T) {
	o, _ := newOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Start(ctx, testsupport.TenStepType); !errors.Is(err, context.Canceled) {
		t.Fatalf("start: %v", err)
	}
}
