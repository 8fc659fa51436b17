package gl

import (
	"github.com/gnaghi/SwitchGLES-sub001/gl/registry"
)

// ContextBuilderOption is a functional option applied to a context during construction via NewContext.
type ContextBuilderOption func(*context)

// WithRegistry injects a pre-built binding registry instead of the default
// fresh instance. Lets an embedder share one registry across contexts, or a
// test construct an isolated one with custom capacity.
//
// Parameters:
//   - r: the registry to use
//
// Returns:
//   - ContextBuilderOption: a function that applies the registry option to a context
func WithRegistry(r registry.Registry) ContextBuilderOption {
	return func(c *context) {
		c.registry = r
	}
}

// WithRegistryOptions builds the context's registry with the given registry
// options. Ignored when WithRegistry is also supplied.
//
// Parameters:
//   - options: registry builder options forwarded to registry.NewRegistry
//
// Returns:
//   - ContextBuilderOption: a function that applies the registry options to a context
func WithRegistryOptions(options ...registry.RegistryBuilderOption) ContextBuilderOption {
	return func(c *context) {
		if c.registry == nil {
			c.registry = registry.NewRegistry(options...)
		}
	}
}
