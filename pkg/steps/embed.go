package steps

import (
	"embed"
	"io/fs"
)

//go:embed definitions/*.yaml
var embeddedDefinitions embed.FS

// EmbeddedFS returns the bundled document definitions. Callers may pass this
// filesystem to LoadFS to use the default document types.
func EmbeddedFS() fs.FS {
	sub, err := fs.Sub(embeddedDefinitions, "definitions")
	if err != nil {
		// The embed directive guarantees the subpath exists.
		panic(err)
	}
	return sub
}

// Default loads the embedded document types.
func Default() (*Registry, error) {
	return LoadFS(EmbeddedFS())
}
