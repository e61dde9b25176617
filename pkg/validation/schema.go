package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// schemaChecker wraps the kin-openapi schema compiled for one field.
type schemaChecker struct {
	schema *openapi3.Schema
}

func (c schemaChecker) check(value any) error {
	if c.schema == nil {
		return nil
	}
	err := c.schema.VisitJSON(value)
	if err == nil {
		return nil
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) && schemaErr.Reason != "" {
		return errors.New(schemaErr.Reason)
	}
	return err
}

// compileSchema converts the field catalog entry into a JSON schema so value
// checks share the OpenAPI validation semantics.
func compileSchema(field model.Field) (schemaChecker, error) {
	var schema *openapi3.Schema
	switch field.Type {
	case model.FieldTypeInteger:
		schema = openapi3.NewIntegerSchema()
	case model.FieldTypeNumber:
		schema = openapi3.NewFloat64Schema()
	case model.FieldTypeBoolean:
		schema = openapi3.NewBoolSchema()
	default:
		schema = openapi3.NewStringSchema()
	}

	if len(field.Options) > 0 {
		enum := make([]any, 0, len(field.Options))
		for _, option := range field.Options {
			enum = append(enum, option)
		}
		schema.WithEnum(enum...)
	}

	for _, rule := range field.Validations {
		switch rule.Kind {
		case model.ValidationRuleMin, model.ValidationRuleMax:
			bound, err := strconv.ParseFloat(strings.TrimSpace(rule.Params["value"]), 64)
			if err != nil {
				return schemaChecker{}, fmt.Errorf("rule %s: invalid value %q", rule.Kind, rule.Params["value"])
			}
			if rule.Kind == model.ValidationRuleMin {
				schema.WithMin(bound)
			} else {
				schema.WithMax(bound)
			}
		case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
			n, err := strconv.ParseInt(strings.TrimSpace(rule.Params["value"]), 10, 64)
			if err != nil || n < 0 {
				return schemaChecker{}, fmt.Errorf("rule %s: invalid value %q", rule.Kind, rule.Params["value"])
			}
			if rule.Kind == model.ValidationRuleMinLength {
				schema.WithMinLength(n)
			} else {
				schema.WithMaxLength(n)
			}
		case model.ValidationRulePattern:
			expr := rule.Params["pattern"]
			if _, err := regexp.Compile(expr); err != nil {
				return schemaChecker{}, fmt.Errorf("rule pattern: %w", err)
			}
			schema.WithPattern(expr)
		default:
			return schemaChecker{}, fmt.Errorf("unknown rule %q", rule.Kind)
		}
	}

	return schemaChecker{schema: schema}, nil
}

// coerce maps stored values onto the JSON types the schema expects. Values
// that cannot be converted are passed through so the schema reports them.
func coerce(field model.Field, value any) any {
	switch field.Type {
	case model.FieldTypeInteger, model.FieldTypeNumber:
		switch v := value.(type) {
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case int32:
			return float64(v)
		case float32:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
		return value
	case model.FieldTypeBoolean:
		if s, ok := value.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
		return value
	default:
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprint(value)
	}
}
