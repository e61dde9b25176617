// Package validation evaluates field values against the rules of a document
// definition. Results are plain data: a ValidationError describes one field
// and is never returned as an error value.
//
// Every catalog field is compiled once into a kin-openapi schema so type,
// enum, bound, length and pattern checks share the OpenAPI semantics. Empty
// values are handled before the schema runs: a required field reports
// "required" and an optional one passes without further checks.
package validation
