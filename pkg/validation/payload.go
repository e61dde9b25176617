package validation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// PayloadMapping splits a server error payload into field-level errors and
// form-level messages.
type PayloadMapping struct {
	Fields model.ValidationErrors
	Form   []string
}

// MapPayload normalises server error payloads keyed by JSON pointer or dotted
// paths (`/body/name`, `data.owner`, `$.values[0]`) onto known field names.
// Unknown paths are treated as form-level errors so messages are not lost.
func MapPayload(known []model.FieldName, payload map[string][]string) PayloadMapping {
	var mapping PayloadMapping
	if len(payload) == 0 {
		return mapping
	}

	fields := make(map[string]struct{}, len(known))
	for _, name := range known {
		fields[string(name)] = struct{}{}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, rawPath := range keys {
		messages := normalizeMessages(payload[rawPath])
		if len(messages) == 0 {
			continue
		}
		name, ok := mapErrorPath(rawPath, fields)
		if !ok {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		for _, msg := range messages {
			mapping.Fields = append(mapping.Fields, model.ValidationError{Field: model.FieldName(name), Message: msg})
		}
	}

	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mapErrorPath resolves the last known field segment of a path after wrapper
// and index segments are removed.
func mapErrorPath(raw string, fields map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", false
	}
	segments := dropWrapperSegments(stripNumericSegments(parsePathSegments(trimmed)))
	for i := len(segments) - 1; i >= 0; i-- {
		if _, ok := fields[segments[i]]; ok {
			return segments[i], true
		}
	}
	return "", false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimLeft(strings.TrimSpace(path), "#/.$")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)
	clean = strings.Trim(clean, "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

var wrapperSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
	"values":     {},
	"fields":     {},
}

func dropWrapperSegments(segments []string) []string {
	out := segments
	for len(out) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(out[0])]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

func stripNumericSegments(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "base", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
