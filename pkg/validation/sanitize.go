package validation

import (
	"html"
	"strconv"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formwizard/pkg/model"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// Normalize prepares raw user input for storage: strings are trimmed and
// stripped of markup, numeric strings become numbers for numeric fields.
// Unknown fields are returned unchanged.
func (e *Engine) Normalize(name model.FieldName, value any) any {
	rule, ok := e.rules[name]
	if !ok {
		return value
	}
	return normalizeValue(rule.field, value)
}

func normalizeValue(field model.Field, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	s = sanitizeText(s)
	switch field.Type {
	case model.FieldTypeInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return float64(n)
		}
	case model.FieldTypeNumber:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case model.FieldTypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

func sanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.ContainsAny(trimmed, "<>") {
		return trimmed
	}
	cleaned := textSanitizer().Sanitize(trimmed)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
