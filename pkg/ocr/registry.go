package ocr

import (
	"fmt"
	"sort"
	"strings"
)

// Registry manages all available engines
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a new engine registry
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine to the registry
func (r *Registry) Register(engine Engine) {
	r.engines[strings.ToLower(engine.Name())] = engine
}

// Get retrieves an engine by name
func (r *Registry) Get(name string) (Engine, error) {
	engine, exists := r.engines[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("engine %s not found (available: %s)", name, strings.Join(r.List(), ", "))
	}
	return engine, nil
}

// List returns all registered engine names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
