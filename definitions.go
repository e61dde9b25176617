package formwizard

import (
	"io/fs"

	"github.com/goliatone/go-formwizard/pkg/steps"
)

// EmbeddedDefinitions exposes the bundled document definitions so callers can
// reuse or extend them without importing the steps package directly.
func EmbeddedDefinitions() fs.FS {
	return steps.EmbeddedFS()
}

// LoadDefinitions parses every JSON or YAML definition in fsys into a new
// registry.
func LoadDefinitions(fsys fs.FS) (*steps.Registry, error) {
	return steps.LoadFS(fsys)
}
