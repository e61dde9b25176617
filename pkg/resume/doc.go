// Package resume reopens saved drafts. A resumed session starts with its
// draft identity already assigned, so forward jumps are unconditional and the
// save gate counts as reached.
package resume
