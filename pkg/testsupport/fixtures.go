package testsupport

import (
	"context"
	_ "embed"
	"fmt"
	"testing"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// TenStepType is the document type of the bundled fixture.
const TenStepType = "ten-step"

//go:embed testdata/ten_step.yaml
var tenStepYAML []byte

// TenStep returns a fresh, validated copy of the ten step fixture. Step 7
// owns the branch on step7_choice; NOT_APPLICABLE skips step 8 and lands on
// step 9.
func TenStep() *steps.Definition {
	def, err := steps.Parse(tenStepYAML, "testdata/ten_step.yaml")
	if err != nil {
		panic(fmt.Sprintf("testsupport: parse fixture: %v", err))
	}
	if err := def.Validate(); err != nil {
		panic(fmt.Sprintf("testsupport: validate fixture: %v", err))
	}
	return def
}

// Registry returns a registry holding the ten step fixture.
func Registry() *steps.Registry {
	reg := steps.NewRegistry()
	reg.MustRegister(TenStep())
	return reg
}

// Engine compiles a validation engine for def, failing the test on error.
func Engine(t testing.TB, def *steps.Definition, options ...validation.Option) *validation.Engine {
	t.Helper()
	engine, err := validation.New(def, options...)
	if err != nil {
		t.Fatalf("validation engine: %v", err)
	}
	return engine
}

var stepValues = []model.Values{
	{"title": "Quarterly plan", "subtitle": "draft"},
	{"owner_id": "AB1234"},
	{"headcount": 4, "budget": 1500.5},
	{"start_date": "2025-01-15"},
	{"category": "alpha"},
	{"summary": "Scope and goals"},
	{"confirmed_scope": true},
	{"step7_choice": "YES", "step7_extra": "extra detail"},
	{"step8_detail": "detail text"},
	{"signature": "J. Doe"},
}

// ValidThrough returns values satisfying every step up to and including
// ordinal. The branch at step 7 selects YES.
func ValidThrough(ordinal int) model.Values {
	out := model.Values{}
	for i := 0; i <= ordinal && i < len(stepValues); i++ {
		for k, v := range stepValues[i] {
			out[k] = v
		}
	}
	return out
}

// ValidValues returns a complete, valid value set.
func ValidValues() model.Values {
	return ValidThrough(len(stepValues) - 1)
}

// SkippingValues returns a complete value set selecting the sentinel at step
// 7, so step 8 and the branch block are absent.
func SkippingValues() model.Values {
	values := ValidValues()
	values["step7_choice"] = "NOT_APPLICABLE"
	delete(values, "step7_extra")
	delete(values, "step8_detail")
	return values
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
