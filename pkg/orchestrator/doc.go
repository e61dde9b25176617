// Package orchestrator wires the definition registry, a draft store and the
// resume loader behind one entry point for starting, resuming, checking and
// deleting wizard sessions.
package orchestrator
