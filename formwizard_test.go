package formwizard

import (
	"context"
	"io/fs"
	"testing"
)

func TestEmbeddedDefinitionsContainsHandoverReport(t *testing.T) {
	data, err := fs.ReadFile(EmbeddedDefinitions(), "handover_report.yaml")
	if err != nil {
		t.Fatalf("expected embedded definition to be readable: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("embedded definition is empty")
	}
}

func TestLoadDefinitions(t *testing.T) {
	reg, err := LoadDefinitions(EmbeddedDefinitions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, err := reg.Get("handover-report")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if def.Len() != 13 {
		t.Fatalf("handover-report steps = %d, want 13", def.Len())
	}
}

func TestStartUsesEmbeddedDefinitions(t *testing.T) {
	ctrl, err := Start(context.Background(), "handover-brief")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer ctrl.Close()
	if ctrl.Current() != 0 || ctrl.Definition().DocumentType != "handover-brief" {
		t.Fatalf("unexpected session %#v", ctrl.Snapshot())
	}
}
