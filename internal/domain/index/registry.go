// Package index computes named spectral indices from per-scene band grids.
//
// Indices are registered in a static mapping from name to (required bands,
// formula) so new indices can be added without touching selection or
// aggregation. Formulas are pure functions of band arrays: no state, any
// order, any scene.
package index

import (
	"fmt"
	"sort"

	"github.com/croplens/croplens/internal/domain/scene"
)

// Bands maps a band name (e.g. "B04") to its clipped grid for one scene.
type Bands map[string]scene.Grid

// Get returns the first present band among the given alternatives.
func (b Bands) Get(names ...string) (scene.Grid, bool) {
	for _, n := range names {
		if g, ok := b[n]; ok {
			return g, true
		}
	}
	return nil, false
}

// Requirement is a set of interchangeable band names; it is satisfied when at
// least one of them is present (e.g. NIR falls back from B08 to B8A).
type Requirement []string

func (r Requirement) satisfied(b Bands) bool {
	_, ok := b.Get(r...)
	return ok
}

// Definition couples an index's band requirements with its formula.
type Definition struct {
	Requires []Requirement
	Compute  func(b Bands) scene.Grid
}

// Computable reports whether every requirement is satisfied by b.
func (d Definition) Computable(b Bands) bool {
	for _, req := range d.Requires {
		if !req.satisfied(b) {
			return false
		}
	}
	return true
}

// Registry holds the enumerable set of known indices.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry returns a registry preloaded with the builtin index catalog.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	for name, def := range builtins() {
		r.defs[name] = def
	}
	return r
}

// Register adds or replaces an index definition.
func (r *Registry) Register(name string, def Definition) error {
	if name == "" {
		return fmt.Errorf("%w: empty index name", ErrInvalidDefinition)
	}
	if def.Compute == nil {
		return fmt.Errorf("%w: nil compute func for %q", ErrInvalidDefinition, name)
	}
	r.defs[name] = def
	return nil
}

// Has reports whether name is a known index.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns all registered index names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Compute evaluates the requested indices against one scene's bands. Indices
// whose required bands are absent are skipped, not errors; their names are
// returned so callers can account for them. An unknown index name is a
// configuration error.
func (r *Registry) Compute(b Bands, names []string) (map[string]scene.Grid, []string, error) {
	out := make(map[string]scene.Grid, len(names))
	var skipped []string
	for _, name := range names {
		def, ok := r.defs[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownIndex, name)
		}
		if !def.Computable(b) {
			skipped = append(skipped, name)
			continue
		}
		out[name] = def.Compute(b)
	}
	return out, skipped, nil
}
