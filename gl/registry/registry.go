// Package registry implements the global uniform-name binding table. The GPU
// backend has no shader reflection, so uniform names cannot be resolved against
// a program at runtime; instead the application (or the built-in seed set)
// declares up front which (stage, binding) slot each name maps to, and lookups
// resolve against this table regardless of which program is bound. The table is
// intentionally process-wide rather than per-program so that one registration
// covers every shader that declares the conventional slot layout.
package registry

import (
	"errors"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
)

// DefaultCapacity is the registry capacity used when no WithCapacity option is
// given. Capacity is fixed at construction; registering a new name beyond it
// fails with ErrTableFull.
const DefaultCapacity = 64

// ErrTableFull is returned by Register when the table is at capacity and the
// name being registered is not already present.
var ErrTableFull = errors.New("registry: uniform table full")

// Built-in uniform names seeded into every registry before any application
// registration is observable. Applications may shadow these with their own
// Register calls to remap the defaults for bespoke shaders.
const (
	// BuiltinMVP is the conventional model-view-projection matrix uniform,
	// seeded at (vertex, 0).
	BuiltinMVP = "u_mvp"

	// BuiltinColor is the conventional flat color uniform, seeded at (fragment, 0).
	BuiltinColor = "u_color"
)

// entry is a single name → (stage, binding) mapping. builtin entries survive
// ClearUser.
type entry struct {
	stage   common.Stage
	binding int
	builtin bool
}

// registry is the implementation of the Registry interface.
type registry struct {
	capacity int
	entries  map[string]entry
}

// Registry defines the interface for the uniform-name binding table. Names are
// case-sensitive. The table is single-owner state: register once at start-up,
// then treat as read-only; concurrent registration and lookup require external
// synchronization by the caller.
type Registry interface {
	// Register inserts or overwrites the mapping for name. Overwriting an
	// existing entry (built-in or user) always succeeds and the new mapping
	// wins; inserting a new name fails with ErrTableFull when the table is at
	// capacity.
	//
	// Parameters:
	//   - name: the uniform name to map
	//   - stage: the shader stage the binding belongs to
	//   - binding: the constant-buffer slot index, in [0, location.MaxBindings)
	//
	// Returns:
	//   - error: nil on success, ErrTableFull when capacity is exhausted, or a
	//     validation error for an out-of-range stage or binding
	Register(name string, stage common.Stage, binding int) error

	// Lookup resolves a name to its (stage, binding) mapping. Pure read, no
	// side effects.
	//
	// Parameters:
	//   - name: the uniform name to resolve
	//
	// Returns:
	//   - common.Stage: the mapped stage, valid only when found
	//   - int: the mapped binding slot, valid only when found
	//   - bool: true if the name is registered, false otherwise
	Lookup(name string) (common.Stage, int, bool)

	// Location resolves a name directly to its encoded opaque location, or
	// location.Invalid when the name is not registered.
	//
	// Parameters:
	//   - name: the uniform name to resolve
	//
	// Returns:
	//   - int32: the encoded location, or location.Invalid on a miss
	Location(name string) int32

	// ClearUser removes every entry not marked built-in. Built-ins remain
	// untouched. Idempotent.
	ClearUser()

	// Len returns the number of live entries, built-ins included.
	//
	// Returns:
	//   - int: the entry count
	Len() int

	// Capacity returns the fixed table capacity set at construction.
	//
	// Returns:
	//   - int: the maximum number of entries the table can hold
	Capacity() int
}

var _ Registry = &registry{}

// NewRegistry creates a new Registry with the built-in names seeded and all
// provided options applied. Seeding happens before options run, so an option
// (or any later Register call) may shadow a built-in.
//
// Parameters:
//   - options: a variadic list of options to configure the registry
//
// Returns:
//   - Registry: a new Registry instance with the provided configuration
func NewRegistry(options ...RegistryBuilderOption) Registry {
	r := &registry{
		capacity: DefaultCapacity,
		entries:  make(map[string]entry),
	}
	r.entries[BuiltinMVP] = entry{stage: common.StageVertex, binding: 0, builtin: true}
	r.entries[BuiltinColor] = entry{stage: common.StageFragment, binding: 0, builtin: true}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *registry) Register(name string, stage common.Stage, binding int) error {
	if location.Encode(stage, binding) == location.Invalid {
		return errors.New("registry: stage or binding out of range")
	}
	prev, exists := r.entries[name]
	if !exists && len(r.entries) >= r.capacity {
		return ErrTableFull
	}
	// Re-registering a built-in name shadows its mapping but keeps the
	// built-in mark, so the name still survives ClearUser.
	r.entries[name] = entry{stage: stage, binding: binding, builtin: exists && prev.builtin}
	return nil
}

func (r *registry) Lookup(name string) (common.Stage, int, bool) {
	e, ok := r.entries[name]
	if !ok {
		return 0, 0, false
	}
	return e.stage, e.binding, true
}

func (r *registry) Location(name string) int32 {
	e, ok := r.entries[name]
	if !ok {
		return location.Invalid
	}
	return location.Encode(e.stage, e.binding)
}

func (r *registry) ClearUser() {
	for name, e := range r.entries {
		if !e.builtin {
			delete(r.entries, name)
		}
	}
}

func (r *registry) Len() int {
	return len(r.entries)
}

func (r *registry) Capacity() int {
	return r.capacity
}
