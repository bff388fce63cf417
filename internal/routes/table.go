// Package routes holds the route table: an explicit, instance-owned registry of
// route definitions, plus loading it from TOML/YAML files and watching them.
package routes

import (
	"sync"

	"navkit/internal/model"
)

// Table is an ordered registry of route definitions keyed by path.
// It is safe for concurrent use; readers work on snapshots.
type Table struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]model.RouteDefinition
}

// NewTable creates a table from an initial batch. Index is assigned in batch order.
func NewTable(defs ...model.RouteDefinition) *Table {
	t := &Table{defs: make(map[string]model.RouteDefinition, len(defs))}
	for i, def := range defs {
		def.Index = i
		t.Register(def)
	}
	return t
}

// Register upserts a definition. Re-registering a path replaces the previous
// definition in place (last writer wins).
func (t *Table) Register(def model.RouteDefinition) model.RouteDefinition {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.defs[def.Path]; !exists {
		t.order = append(t.order, def.Path)
	}
	t.defs[def.Path] = def
	return def
}

// Snapshot returns the definitions in registration order, hidden ones included.
// The returned slice is owned by the caller.
func (t *Table) Snapshot() []model.RouteDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.RouteDefinition, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.defs[p])
	}
	return out
}

// Lookup returns the definition registered under path.
func (t *Table) Lookup(path string) (model.RouteDefinition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.defs[path]
	return def, ok
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
