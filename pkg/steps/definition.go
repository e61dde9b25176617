package steps

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// DefaultSaveGateStep is the step ordinal after which unsaved-exit prompts
// switch from "discard" to "save and leave/stay" when a definition does not
// configure its own gate.
const DefaultSaveGateStep = 3

// ContentKind classifies the block of fields a discriminator value activates.
type ContentKind string

const (
	ContentQuestionSet ContentKind = "question-set"
	ContentFreeText    ContentKind = "free-text"
)

// Branch marks a step as owning a discriminator selector. Selecting the
// sentinel value skips the step right after the owner and lands on
// Continuation, which is always Ordinal+2.
type Branch struct {
	Discriminator model.FieldName `json:"discriminator" yaml:"discriminator"`
	Sentinel      string          `json:"sentinel" yaml:"sentinel"`
	Continuation  int             `json:"continuation" yaml:"continuation"`
}

// Step is one page of the wizard. Fields lists the static members; branch
// fields are resolved from the definition's Branches map.
type Step struct {
	Ordinal int               `json:"ordinal" yaml:"ordinal"`
	ID      string            `json:"id" yaml:"id"`
	Title   string            `json:"title,omitempty" yaml:"title,omitempty"`
	Fields  []model.FieldName `json:"fields" yaml:"fields"`
	Branch  *Branch           `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// BranchContent is the block activated by a non-sentinel discriminator value.
type BranchContent struct {
	Kind   ContentKind       `json:"kind" yaml:"kind"`
	Fields []model.FieldName `json:"fields" yaml:"fields"`
}

// Definition is the static, read-only configuration of a document type. It is
// safe for concurrent readers once validated.
type Definition struct {
	DocumentType string
	Title        string
	SaveGateStep int
	Steps        []Step
	Fields       map[model.FieldName]model.Field
	// Branches is keyed by discriminator field, then by discriminator value.
	Branches map[model.FieldName]map[string]BranchContent

	owners map[model.FieldName]int
}

var (
	errDocumentTypeMissing = errors.New("steps: document type is required")
	errNoSteps             = errors.New("steps: definition has no steps")
)

// Len returns the number of steps.
func (d *Definition) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Steps)
}

// Last returns the ordinal of the final step.
func (d *Definition) Last() int {
	return d.Len() - 1
}

// Step returns the step at ordinal.
func (d *Definition) Step(ordinal int) (Step, bool) {
	if d == nil || ordinal < 0 || ordinal >= len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[ordinal], true
}

// Field looks up a catalog field.
func (d *Definition) Field(name model.FieldName) (model.Field, bool) {
	if d == nil {
		return model.Field{}, false
	}
	f, ok := d.Fields[name]
	return f, ok
}

// FieldNames returns every catalog field sorted by name.
func (d *Definition) FieldNames() []model.FieldName {
	names := make([]model.FieldName, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// BranchContent returns the block a discriminator value activates. The
// sentinel never resolves to content.
func (d *Definition) BranchContent(discriminator model.FieldName, value string) (BranchContent, bool) {
	if d == nil || value == "" {
		return BranchContent{}, false
	}
	byValue, ok := d.Branches[discriminator]
	if !ok {
		return BranchContent{}, false
	}
	content, ok := byValue[value]
	return content, ok
}

// Skipping reports whether the step at ordinal owns a branch whose
// discriminator currently holds the sentinel.
func (d *Definition) Skipping(ordinal int, values model.Values) bool {
	step, ok := d.Step(ordinal)
	if !ok || step.Branch == nil {
		return false
	}
	return values.String(step.Branch.Discriminator) == step.Branch.Sentinel
}

// StepActive reports whether the step participates in navigation and
// validation. Only the continuation-skipped step is ever inactive.
func (d *Definition) StepActive(ordinal int, values model.Values) bool {
	if ordinal <= 0 {
		return ordinal == 0 && d.Len() > 0
	}
	if ordinal >= d.Len() {
		return false
	}
	return !d.Skipping(ordinal-1, values)
}

// EffectiveFields returns the static fields of the step plus the branch block
// selected by its discriminator. Inactive steps have no effective fields.
func (d *Definition) EffectiveFields(ordinal int, values model.Values) []model.FieldName {
	step, ok := d.Step(ordinal)
	if !ok || !d.StepActive(ordinal, values) {
		return nil
	}
	out := make([]model.FieldName, 0, len(step.Fields))
	out = append(out, step.Fields...)
	if step.Branch == nil {
		return out
	}
	selected := values.String(step.Branch.Discriminator)
	if selected == step.Branch.Sentinel {
		return out
	}
	if content, ok := d.BranchContent(step.Branch.Discriminator, selected); ok {
		out = append(out, content.Fields...)
	}
	return out
}

// StepOf returns the ordinal of the step owning a field, either statically or
// through one of its branch blocks. The index is built by Validate; an
// unvalidated definition is scanned on every call.
func (d *Definition) StepOf(field model.FieldName) (int, bool) {
	if d == nil {
		return 0, false
	}
	owners := d.owners
	if owners == nil {
		owners = d.indexOwners()
	}
	ordinal, ok := owners[field]
	return ordinal, ok
}

func (d *Definition) indexOwners() map[model.FieldName]int {
	owners := make(map[model.FieldName]int)
	for _, step := range d.Steps {
		for _, f := range step.Fields {
			owners[f] = step.Ordinal
		}
		if step.Branch == nil {
			continue
		}
		for _, content := range d.Branches[step.Branch.Discriminator] {
			for _, f := range content.Fields {
				owners[f] = step.Ordinal
			}
		}
	}
	return owners
}

// Validate enforces the structural guarantees the wizard relies on.
func (d *Definition) Validate() error {
	if d == nil {
		return errNoSteps
	}
	if d.DocumentType == "" {
		return errDocumentTypeMissing
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w (%s)", errNoSteps, d.DocumentType)
	}
	if d.SaveGateStep < 0 || d.SaveGateStep >= len(d.Steps) {
		return fmt.Errorf("steps: %s: save gate step %d out of range [0,%d)", d.DocumentType, d.SaveGateStep, len(d.Steps))
	}

	owners := make(map[model.FieldName]int)
	claim := func(field model.FieldName, ordinal int) error {
		if _, ok := d.Fields[field]; !ok {
			return fmt.Errorf("steps: %s: step %d references unknown field %q", d.DocumentType, ordinal, field)
		}
		if prev, taken := owners[field]; taken {
			return fmt.Errorf("steps: %s: field %q owned by steps %d and %d", d.DocumentType, field, prev, ordinal)
		}
		owners[field] = ordinal
		return nil
	}

	discriminators := make(map[model.FieldName]int)
	for idx, step := range d.Steps {
		if step.Ordinal != idx {
			return fmt.Errorf("steps: %s: step %q has ordinal %d, want %d", d.DocumentType, step.ID, step.Ordinal, idx)
		}
		for _, f := range step.Fields {
			if err := claim(f, idx); err != nil {
				return err
			}
		}
		if step.Branch == nil {
			continue
		}
		br := step.Branch
		if !containsField(step.Fields, br.Discriminator) {
			return fmt.Errorf("steps: %s: discriminator %q is not a field of step %d", d.DocumentType, br.Discriminator, idx)
		}
		if br.Sentinel == "" {
			return fmt.Errorf("steps: %s: step %d branch sentinel is empty", d.DocumentType, idx)
		}
		if br.Continuation != idx+2 {
			return fmt.Errorf("steps: %s: step %d continuation %d, want %d", d.DocumentType, idx, br.Continuation, idx+2)
		}
		if br.Continuation >= len(d.Steps) {
			return fmt.Errorf("steps: %s: step %d continuation %d out of range", d.DocumentType, idx, br.Continuation)
		}
		if d.Steps[idx+1].Branch != nil {
			return fmt.Errorf("steps: %s: skippable step %d cannot own a branch", d.DocumentType, idx+1)
		}
		discriminators[br.Discriminator] = idx
	}

	for discriminator, byValue := range d.Branches {
		ordinal, ok := discriminators[discriminator]
		if !ok {
			return fmt.Errorf("steps: %s: branch content for %q has no owning step", d.DocumentType, discriminator)
		}
		sentinel := d.Steps[ordinal].Branch.Sentinel
		for value, content := range byValue {
			if value == sentinel {
				return fmt.Errorf("steps: %s: branch %q keyed by its sentinel %q", d.DocumentType, discriminator, value)
			}
			switch content.Kind {
			case ContentQuestionSet, ContentFreeText:
			default:
				return fmt.Errorf("steps: %s: branch %q value %q has unknown kind %q", d.DocumentType, discriminator, value, content.Kind)
			}
		}
		// Blocks of one discriminator are alternatives; a field may appear in
		// several of them but in no other step.
		seen := make(map[model.FieldName]struct{})
		for _, content := range byValue {
			for _, f := range content.Fields {
				if _, dup := seen[f]; dup {
					continue
				}
				seen[f] = struct{}{}
				if err := claim(f, ordinal); err != nil {
					return err
				}
			}
		}
	}

	d.owners = owners
	return nil
}

func containsField(fields []model.FieldName, name model.FieldName) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
