// Package notify carries messages about background work, such as a draft
// save that failed after the wizard was closed, to whoever is still around
// to read them.
package notify
