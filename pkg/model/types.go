package model

// FieldName identifies a single entry in a document's field universe.
type FieldName string

// FieldType is the simplified enum for wizard field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeText    FieldType = "text"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeSelect  FieldType = "select"
)

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ValidationRule represents a single constraint applied to a field. Numeric
// bounds and length limits encode their threshold in Params["value"] while
// pattern rules keep the expression in Params["pattern"].
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Field describes one input of a document type. RequiredWhen holds an optional
// condition expression; when present the field is only required while the
// expression evaluates to true against the current values.
type Field struct {
	Name         FieldName         `json:"name" yaml:"name"`
	Type         FieldType         `json:"type" yaml:"type"`
	Label        string            `json:"label,omitempty" yaml:"label,omitempty"`
	Required     bool              `json:"required" yaml:"required"`
	RequiredWhen string            `json:"requiredWhen,omitempty" yaml:"requiredWhen,omitempty"`
	Placeholder  string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Options      []string          `json:"options,omitempty" yaml:"options,omitempty"`
	Validations  []ValidationRule  `json:"validations,omitempty" yaml:"validations,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DisplayLabel returns the label or falls back to the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return string(f.Name)
}

// Numeric reports whether the field holds integer or number values.
func (f Field) Numeric() bool {
	return f.Type == FieldTypeInteger || f.Type == FieldTypeNumber
}

// ValidationError is a field-level, recoverable validation outcome. It is
// always returned as data and never as an error value.
type ValidationError struct {
	Field   FieldName `json:"field"`
	Message string    `json:"message"`
}

// ValidationErrors is an ordered list of field errors.
type ValidationErrors []ValidationError

// Fields returns the distinct field names in first-seen order.
func (errs ValidationErrors) Fields() []FieldName {
	if len(errs) == 0 {
		return nil
	}
	seen := make(map[FieldName]struct{}, len(errs))
	out := make([]FieldName, 0, len(errs))
	for _, e := range errs {
		if _, ok := seen[e.Field]; ok {
			continue
		}
		seen[e.Field] = struct{}{}
		out = append(out, e.Field)
	}
	return out
}

// Has reports whether any error targets the given field.
func (errs ValidationErrors) Has(field FieldName) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

// ByField groups messages by field.
func (errs ValidationErrors) ByField() map[FieldName][]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[FieldName][]string, len(errs))
	for _, e := range errs {
		out[e.Field] = append(out[e.Field], e.Message)
	}
	return out
}
