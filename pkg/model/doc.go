// Package model defines the field catalog and value types shared by the
// wizard packages. Validation rules use the canonical identifiers (min/max,
// minLength/maxLength, pattern) with string parameters so document
// definitions stay stable when serialised to YAML or JSON. Values are kept as
// a flat map keyed by field name; only scalars are supported.
package model
