package registry

import (
	"github.com/gnaghi/SwitchGLES-sub001/common"
)

// RegistryBuilderOption is a functional option applied to a registry during construction via NewRegistry.
type RegistryBuilderOption func(*registry)

// WithCapacity sets the fixed table capacity. Values below the number of
// built-in entries are clamped so the seed set always fits.
//
// Parameters:
//   - capacity: the maximum number of entries the table can hold
//
// Returns:
//   - RegistryBuilderOption: a function that applies the capacity option to a registry
func WithCapacity(capacity int) RegistryBuilderOption {
	return func(r *registry) {
		if capacity < len(r.entries) {
			capacity = len(r.entries)
		}
		r.capacity = capacity
	}
}

// WithBuiltin seeds an additional built-in entry during construction. The
// entry survives ClearUser like the default built-ins. Out-of-range pairs are
// ignored.
//
// Parameters:
//   - name: the uniform name to seed
//   - stage: the shader stage the binding belongs to
//   - binding: the constant-buffer slot index
//
// Returns:
//   - RegistryBuilderOption: a function that seeds the built-in entry on a registry
func WithBuiltin(name string, stage common.Stage, binding int) RegistryBuilderOption {
	return func(r *registry) {
		if !stage.Valid() || binding < 0 {
			return
		}
		r.entries[name] = entry{stage: stage, binding: binding, builtin: true}
	}
}
