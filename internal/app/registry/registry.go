// Package registry is the Manager's live-instance catalogue: one map per
// unit kind, keyed by UnitName (§4.5 "Owns the live-instance catalogue").
package registry

import (
	"sync"

	"jigctl/internal/app/process"
	"jigctl/internal/app/state"
	"jigctl/internal/app/unit"
	"jigctl/internal/app/unitfile"
)

// Instance is a live unit instance: created from a Description only after
// compatibility succeeds, carrying an optional child-process handle for
// Interface/Logger/Trigger kinds (§3 "Live instance").
type Instance struct {
	Name        unit.Name
	Description unitfile.Description
	Process     process.Process
	Machine     *state.Machine
}

// Registry is the single source of truth for live unit instances.
type Registry interface {
	// Put inserts or replaces the instance for inst.Name.
	Put(inst *Instance)
	Get(name unit.Name) (*Instance, bool)
	// Remove deletes and returns the instance for name, if present.
	Remove(name unit.Name) (*Instance, bool)
	// Names lists every currently-loaded name of kind, in ascending order.
	Names(kind unit.Kind) []unit.Name
	// All returns a snapshot of every live instance of kind.
	All(kind unit.Kind) []*Instance
	// IsLoaded reports whether an instance for name currently exists
	// (§4.5 jig_is_loaded, generalised to every kind).
	IsLoaded(name unit.Name) bool
}

type registry struct {
	mu     sync.Mutex
	byKind map[unit.Kind]map[string]*Instance
}

// New creates an empty Registry with one map pre-allocated per known kind.
func New() Registry {
	r := &registry{byKind: make(map[unit.Kind]map[string]*Instance, len(unit.AllKinds))}

	for _, k := range unit.AllKinds {
		r.byKind[k] = make(map[string]*Instance)
	}

	return r
}

func (r *registry) Put(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byKind[inst.Name.Kind][inst.Name.ID] = inst
}

func (r *registry) Get(name unit.Name) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.byKind[name.Kind][name.ID]

	return inst, ok
}

func (r *registry) Remove(name unit.Name) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.byKind[name.Kind][name.ID]
	if ok {
		delete(r.byKind[name.Kind], name.ID)
	}

	return inst, ok
}

func (r *registry) Names(kind unit.Kind) []unit.Name {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]unit.Name, 0, len(r.byKind[kind]))
	for id := range r.byKind[kind] {
		names = append(names, unit.Name{ID: id, Kind: kind})
	}

	unit.SortNames(names)

	return names
}

func (r *registry) All(kind unit.Kind) []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Instance, 0, len(r.byKind[kind]))
	for _, inst := range r.byKind[kind] {
		out = append(out, inst)
	}

	return out
}

func (r *registry) IsLoaded(name unit.Name) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byKind[name.Kind][name.ID]

	return ok
}
