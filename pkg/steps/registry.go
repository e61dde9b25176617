package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores document definitions by type, providing discovery and
// duplication safeguards.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// Register validates and adds a definition keyed by its DocumentType.
// Duplicate document types return an error.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("steps: definition is required")
	}
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.definitions[def.DocumentType]; exists {
		return fmt.Errorf("steps: document type %q already registered", def.DocumentType)
	}
	r.definitions[def.DocumentType] = def
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Merge registers every definition of other. It stops at the first
// duplicate document type.
func (r *Registry) Merge(other *Registry) error {
	if other == nil {
		return nil
	}
	for _, name := range other.List() {
		def, err := other.Get(name)
		if err != nil {
			return err
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a definition by document type.
func (r *Registry) Get(documentType string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[documentType]
	if !ok {
		return nil, fmt.Errorf("steps: document type %q not found", documentType)
	}
	return def, nil
}

// List returns the registered document types sorted by name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a document type is registered.
func (r *Registry) Has(documentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.definitions[documentType]
	return ok
}
