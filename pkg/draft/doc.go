// Package draft persists document sessions. The Gateway owns the draft
// identity of one session and serialises every create and update, so a
// document is created at most once no matter how many saves are requested
// concurrently.
package draft
