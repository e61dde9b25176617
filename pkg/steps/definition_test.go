package steps_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
)

func TestEffectiveFieldsFollowDiscriminator(t *testing.T) {
	def := testsupport.TenStep()

	cases := []struct {
		name   string
		values model.Values
		want   []model.FieldName
	}{
		{"unset", model.Values{}, []model.FieldName{"step7_choice"}},
		{"selected", model.Values{"step7_choice": "YES"}, []model.FieldName{"step7_choice", "step7_extra"}},
		{"sentinel", model.Values{"step7_choice": "NOT_APPLICABLE"}, []model.FieldName{"step7_choice"}},
		{"unknown value", model.Values{"step7_choice": "MAYBE"}, []model.FieldName{"step7_choice"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := def.EffectiveFields(7, tc.values)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("effective fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSentinelDeactivatesContinuationStep(t *testing.T) {
	def := testsupport.TenStep()

	skipping := model.Values{"step7_choice": "NOT_APPLICABLE"}
	if def.StepActive(8, skipping) {
		t.Fatalf("step 8 should be inactive while the sentinel is selected")
	}
	if got := def.EffectiveFields(8, skipping); len(got) != 0 {
		t.Fatalf("inactive step should have no effective fields, got %v", got)
	}
	if !def.StepActive(9, skipping) {
		t.Fatalf("continuation step should stay active")
	}
	if !def.StepActive(8, model.Values{"step7_choice": "YES"}) {
		t.Fatalf("step 8 should be active for a non-sentinel value")
	}
	if !def.Skipping(7, skipping) || def.Skipping(7, model.Values{}) {
		t.Fatalf("Skipping should only report the sentinel")
	}
}

func TestStepOfResolvesBranchFields(t *testing.T) {
	def := testsupport.TenStep()

	for field, want := range map[model.FieldName]int{
		"title":        0,
		"step7_choice": 7,
		"step7_extra":  7,
		"step8_detail": 8,
	} {
		got, ok := def.StepOf(field)
		if !ok || got != want {
			t.Fatalf("StepOf(%s) = %d,%v want %d", field, got, ok, want)
		}
	}
	if _, ok := def.StepOf("missing"); ok {
		t.Fatalf("expected unknown field to have no owner")
	}
}

func TestStepOfConcurrentReadersWithoutValidate(t *testing.T) {
	def := &steps.Definition{
		DocumentType: "plain",
		Steps: []steps.Step{
			{Ordinal: 0, ID: "first", Fields: []model.FieldName{"a"}},
			{Ordinal: 1, ID: "second", Fields: []model.FieldName{"b", "c"}},
		},
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, ok := def.StepOf("c"); !ok || got != 1 {
				errs <- "StepOf(c) mismatch"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestValidateRejectsBrokenDefinitions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*steps.Definition)
		want   string
	}{
		{
			name:   "continuation not ordinal plus two",
			mutate: func(d *steps.Definition) { d.Steps[7].Branch.Continuation = 8 },
			want:   "continuation 8, want 9",
		},
		{
			name:   "discriminator outside owner",
			mutate: func(d *steps.Definition) { d.Steps[7].Branch.Discriminator = "signature" },
			want:   "is not a field of step 7",
		},
		{
			name:   "unknown field",
			mutate: func(d *steps.Definition) { d.Steps[0].Fields = append(d.Steps[0].Fields, "ghost") },
			want:   `unknown field "ghost"`,
		},
		{
			name:   "double ownership",
			mutate: func(d *steps.Definition) { d.Steps[1].Fields = append(d.Steps[1].Fields, "title") },
			want:   "owned by steps",
		},
		{
			name: "content keyed by sentinel",
			mutate: func(d *steps.Definition) {
				d.Branches["step7_choice"]["NOT_APPLICABLE"] = steps.BranchContent{Kind: steps.ContentFreeText}
			},
			want: "keyed by its sentinel",
		},
		{
			name:   "save gate out of range",
			mutate: func(d *steps.Definition) { d.SaveGateStep = 10 },
			want:   "save gate step 10 out of range",
		},
		{
			name:   "non contiguous ordinals",
			mutate: func(d *steps.Definition) { d.Steps[4].Ordinal = 5 },
			want:   "has ordinal 5, want 4",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := testsupport.TenStep()
			tc.mutate(def)
			err := def.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
