package steps_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
)

const jsonDefinition = `{
  "documentType": "mini",
  "saveGateStep": 1,
  "fields": [
    {"name": "a", "type": "string", "required": true},
    {"name": "kind", "type": "select", "options": ["X", "NONE"]},
    {"name": "x_detail", "type": "text"},
    {"name": "b", "type": "string"},
    {"name": "c", "type": "string"}
  ],
  "steps": [
    {"fields": ["a", "kind"], "branch": {"discriminator": "kind", "sentinel": "NONE"}},
    {"fields": ["b"]},
    {"fields": ["c"]}
  ],
  "branches": {"kind": {"X": {"fields": ["x_detail"]}}}
}`

const yamlDefinition = `
documentType: other
fields:
  - name: only
steps:
  - fields: [only]
saveGateStep: 0
`

func TestParseJSONDefaults(t *testing.T) {
	def, err := steps.Parse([]byte(jsonDefinition), "mini.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if def.SaveGateStep != 1 {
		t.Fatalf("save gate = %d, want 1", def.SaveGateStep)
	}
	if def.Steps[0].ID != "step-1" {
		t.Fatalf("default step id = %q", def.Steps[0].ID)
	}
	if got := def.Steps[0].Branch.Continuation; got != 2 {
		t.Fatalf("continuation = %d, want 2", got)
	}
	content, ok := def.BranchContent("kind", "X")
	if !ok || content.Kind != steps.ContentQuestionSet {
		t.Fatalf("branch content = %#v, %v", content, ok)
	}
}

func TestLoadFSRegistersYAMLAndJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"mini.json":    {Data: []byte(jsonDefinition)},
		"notes.txt":    {Data: []byte("ignored")},
		"nested/x.yml": {Data: []byte(yamlDefinition)},
	}

	reg, err := steps.LoadFS(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"mini", "other"}, reg.List()); diff != "" {
		t.Fatalf("document types mismatch (-want +got):\n%s", diff)
	}
	def, err := reg.Get("other")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if field, _ := def.Field("only"); field.Type != model.FieldTypeString {
		t.Fatalf("default field type = %q", field.Type)
	}
}

func TestLoadFSRejectsDuplicatesAndInvalid(t *testing.T) {
	_, err := steps.LoadFS(fstest.MapFS{
		"a.json": {Data: []byte(jsonDefinition)},
		"b.json": {Data: []byte(jsonDefinition)},
	})
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	_, err = steps.LoadFS(fstest.MapFS{"bad.yaml": {Data: []byte("documentType: [")}})
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaultDefinitions(t *testing.T) {
	reg, err := steps.Default()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	if diff := cmp.Diff([]string{"handover-brief", "handover-report"}, reg.List()); diff != "" {
		t.Fatalf("embedded types mismatch (-want +got):\n%s", diff)
	}
	report, _ := reg.Get("handover-report")
	if report.Len() != 13 || report.SaveGateStep != 3 {
		t.Fatalf("report shape: %d steps, gate %d", report.Len(), report.SaveGateStep)
	}
	if !report.StepActive(7, nil) || report.StepActive(7, model.Values{"pending_matters_status": "NOT_APPLICABLE"}) {
		t.Fatalf("pending matters detail step should follow the sentinel")
	}
}
