package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrUnsupportedValue reports a field value that is not a scalar.
var ErrUnsupportedValue = errors.New("model: unsupported field value")

// ValueError names the field holding an unsupported value.
type ValueError struct {
	Field FieldName
	Value any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("model: field %s: unsupported value of type %T", e.Field, e.Value)
}

// Is matches ErrUnsupportedValue.
func (e *ValueError) Is(target error) bool {
	return target == ErrUnsupportedValue
}

// Values holds the scalar field values of a document keyed by field name.
// Supported scalars are strings, numbers and booleans.
type Values map[FieldName]any

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Get returns the value stored for the field.
func (v Values) Get(name FieldName) (any, bool) {
	if v == nil {
		return nil, false
	}
	val, ok := v[name]
	return val, ok
}

// String returns the string form of a value, or "" when unset.
func (v Values) String(name FieldName) string {
	val, ok := v.Get(name)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}

// Equal compares two value maps treating numerically equal integers and
// floats as the same value.
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, a := range v {
		b, ok := other[k]
		if !ok {
			return false
		}
		if !scalarEqual(a, b) {
			return false
		}
	}
	return true
}

// Plain converts the map into string keys, matching the persisted record shape.
func (v Values) Plain() map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[string(k)] = val
	}
	return out
}

// FromPlain converts a decoded record payload into Values, rejecting
// anything that is not a scalar.
func FromPlain(in map[string]any) (Values, error) {
	out := make(Values, len(in))
	for k, val := range in {
		out[FieldName(k)] = val
	}
	if err := out.Check(); err != nil {
		return nil, err
	}
	return out, nil
}

// Check returns a *ValueError for the first field, in name order, whose value
// is not nil, a string, a number or a boolean.
func (v Values) Check() error {
	names := make([]FieldName, 0, len(v))
	for k, val := range v {
		if !IsScalar(val) {
			names = append(names, k)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return &ValueError{Field: names[0], Value: v[names[0]]}
}

// IsScalar reports whether value can be stored as a field value.
func IsScalar(value any) bool {
	switch value.(type) {
	case nil, string, bool:
		return true
	}
	_, ok := asFloat(value)
	return ok
}

// IsEmpty reports whether value counts as "not provided": nil, a blank string
// or a string equal to the field placeholder.
func IsEmpty(value any, placeholder string) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return true
		}
		return placeholder != "" && trimmed == strings.TrimSpace(placeholder)
	default:
		return false
	}
}

// SameValue reports whether two scalars are equal, treating numerically equal
// integers and floats as the same value.
func SameValue(a, b any) bool {
	return scalarEqual(a, b)
}

func scalarEqual(a, b any) bool {
	af, aNum := asFloat(a)
	bf, bNum := asFloat(b)
	if aNum && bNum {
		return af == bf
	}
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
