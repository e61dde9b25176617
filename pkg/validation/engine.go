package validation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/steps"
)

const dateLayout = "2006-01-02"

// Messages holds the user-facing texts produced by the engine.
type Messages struct {
	Required     string
	UnknownField string
	InvalidDate  string
}

// DefaultMessages returns the built-in messages.
func DefaultMessages() Messages {
	return Messages{
		Required:     "required",
		UnknownField: "unknown field",
		InvalidDate:  "must be a date (YYYY-MM-DD)",
	}
}

// Option customises the engine.
type Option func(*Engine)

// WithLogger injects a zap logger. Nil loggers are ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMessages overrides the built-in messages; empty entries keep defaults.
func WithMessages(msgs Messages) Option {
	return func(e *Engine) {
		if msgs.Required != "" {
			e.messages.Required = msgs.Required
		}
		if msgs.UnknownField != "" {
			e.messages.UnknownField = msgs.UnknownField
		}
		if msgs.InvalidDate != "" {
			e.messages.InvalidDate = msgs.InvalidDate
		}
	}
}

type fieldRule struct {
	field        model.Field
	schema       schemaChecker
	requiredWhen condition.Expr
}

// Engine validates field subsets or whole documents of one document type.
// It holds no per-session state and is safe for concurrent use.
type Engine struct {
	def      *steps.Definition
	rules    map[model.FieldName]fieldRule
	messages Messages
	logger   *zap.Logger
}

// New compiles every catalog field of def into a rule set.
func New(def *steps.Definition, options ...Option) (*Engine, error) {
	if def == nil {
		return nil, fmt.Errorf("validation: definition is required")
	}
	e := &Engine{
		def:      def,
		rules:    make(map[model.FieldName]fieldRule, len(def.Fields)),
		messages: DefaultMessages(),
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}

	for _, name := range def.FieldNames() {
		field := def.Fields[name]
		schema, err := compileSchema(field)
		if err != nil {
			return nil, fmt.Errorf("validation: field %q: %w", name, err)
		}
		rule := fieldRule{field: field, schema: schema}
		if field.RequiredWhen != "" {
			expr, err := condition.Compile(field.RequiredWhen)
			if err != nil {
				return nil, fmt.Errorf("validation: field %q requiredWhen: %w", name, err)
			}
			rule.requiredWhen = expr
		}
		e.rules[name] = rule
	}
	return e, nil
}

// Definition returns the definition the engine was compiled from.
func (e *Engine) Definition() *steps.Definition {
	return e.def
}

// ValidateSubset validates only the listed fields, in order. Fields outside
// the subset are never reported even when they are currently invalid.
func (e *Engine) ValidateSubset(values model.Values, fields []model.FieldName) model.ValidationErrors {
	var errs model.ValidationErrors
	seen := make(map[model.FieldName]struct{}, len(fields))
	for _, name := range fields {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if msg, ok := e.checkField(name, values); !ok {
			errs = append(errs, model.ValidationError{Field: name, Message: msg})
		}
	}
	return errs
}

// ValidateStep validates the effective field set of one step.
func (e *Engine) ValidateStep(values model.Values, ordinal int) model.ValidationErrors {
	return e.ValidateSubset(values, e.def.EffectiveFields(ordinal, values))
}

// ValidateAll validates the effective fields of every active step in step
// order. Branch blocks count only while their discriminator holds a
// non-sentinel value; the step skipped by a sentinel is not required.
func (e *Engine) ValidateAll(values model.Values) model.ValidationErrors {
	var errs model.ValidationErrors
	for ordinal := 0; ordinal < e.def.Len(); ordinal++ {
		errs = append(errs, e.ValidateStep(values, ordinal)...)
	}
	return errs
}

// EffectiveFields proxies the definition lookup.
func (e *Engine) EffectiveFields(ordinal int, values model.Values) []model.FieldName {
	return e.def.EffectiveFields(ordinal, values)
}

// MapErrorsToSteps returns, in ascending order, every step whose effective
// field set intersects the error fields.
func (e *Engine) MapErrorsToSteps(values model.Values, errs model.ValidationErrors) []int {
	return MapErrorsToSteps(e.def, values, errs)
}

// MapErrorsToSteps is the definition-level form of Engine.MapErrorsToSteps.
func MapErrorsToSteps(def *steps.Definition, values model.Values, errs model.ValidationErrors) []int {
	if len(errs) == 0 {
		return nil
	}
	failing := make(map[model.FieldName]struct{}, len(errs))
	for _, err := range errs {
		failing[err.Field] = struct{}{}
	}
	var out []int
	for ordinal := 0; ordinal < def.Len(); ordinal++ {
		for _, name := range def.EffectiveFields(ordinal, values) {
			if _, ok := failing[name]; ok {
				out = append(out, ordinal)
				break
			}
		}
	}
	return out
}

func (e *Engine) checkField(name model.FieldName, values model.Values) (string, bool) {
	rule, ok := e.rules[name]
	if !ok {
		return e.messages.UnknownField, false
	}
	value, _ := values.Get(name)

	if model.IsEmpty(value, rule.field.Placeholder) {
		if e.required(rule, values) {
			return e.messages.Required, false
		}
		return "", true
	}

	if rule.field.Type == model.FieldTypeDate {
		if _, err := time.Parse(dateLayout, fmt.Sprint(value)); err != nil {
			return e.messages.InvalidDate, false
		}
	}

	if err := rule.schema.check(coerce(rule.field, value)); err != nil {
		return err.Error(), false
	}
	return "", true
}

func (e *Engine) required(rule fieldRule, values model.Values) bool {
	if rule.requiredWhen == nil {
		return rule.field.Required
	}
	ok, err := rule.requiredWhen.Eval(values)
	if err != nil {
		e.logger.Warn("requiredWhen evaluation failed",
			zap.String("field", string(rule.field.Name)),
			zap.Error(err))
		return true
	}
	return ok
}
