// Package wizard implements the navigation state machine of a multi-step
// document session.
//
// A Controller walks the steps of a definition, validating the effective
// fields of a step before leaving it. A discriminator set to its sentinel
// skips exactly one step in both directions. Before a draft exists forward
// jumps must pass through valid steps; afterwards they are unconditional.
// Finalize is only reachable from the last step and never transitions on a
// failed whole-document pass.
//
// Saves go through a Saver that owns the draft identity. The controller
// tracks an edit revision so a save only clears the dirty flag when nothing
// changed while it was in flight. Bridge exposes the dirty state to a
// navigation guard owned by the host application.
package wizard
