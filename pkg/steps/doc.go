// Package steps holds the static step configuration of each document type:
// the ordered steps, their field membership, and the discriminator branches a
// step may own. Definitions load from JSON or YAML documents and are
// validated on registration so the wizard can rely on contiguous ordinals and
// in-range branch continuations.
package steps
