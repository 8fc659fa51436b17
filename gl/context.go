// Package gl is the public surface of the shim: a GLES2-shaped API that lets
// application code written against name-addressed uniforms run unmodified on
// a backend whose shader binaries carry statically numbered bindings baked in
// at offline-compile time. Name resolution goes through the process-wide
// binding registry instead of shader reflection; the opaque locations it
// returns encode (stage, binding) and route later uniform writes to the
// correct constant-buffer slot.
package gl

import (
	"errors"
	"fmt"
	"log"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/backend"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
	"github.com/gnaghi/SwitchGLES-sub001/gl/program"
	"github.com/gnaghi/SwitchGLES-sub001/gl/registry"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
	"github.com/gnaghi/SwitchGLES-sub001/gl/uniform"
)

// ErrNoProgram is recorded when a uniform write or draw is issued with no
// program in use.
var ErrNoProgram = errors.New("gl: no program in use")

// context is the implementation of the Context interface.
type context struct {
	registry registry.Registry
	shaders  shader.Store
	programs program.Store
	backend  backend.Backend

	// current is the program in use, or 0 for none.
	current program.Handle

	// lastErr is the sticky error record, GL-style: set by the silently
	// tolerated failure paths, cleared when read through Err.
	lastErr error

	// droppedLogged limits the unbound-write diagnostic to one log line per
	// location, since applications legitimately write stale locations every
	// frame.
	droppedLogged map[int32]struct{}
}

// Context owns all registry, shader, program, and uniform state for one
// logical rendering context. All calls are synchronous and must be issued
// from the single thread that owns the context.
type Context interface {
	// RegisterUniform inserts or overwrites the name → (stage, binding)
	// mapping in the context's registry. Intended for start-up; see the
	// registry package for capacity and overwrite semantics.
	//
	// Parameters:
	//   - name: the uniform name to map
	//   - stage: the shader stage of the binding
	//   - binding: the constant-buffer slot index
	//
	// Returns:
	//   - error: nil on success, registry.ErrTableFull when at capacity
	RegisterUniform(name string, stage common.Stage, binding int) error

	// ClearRegisteredUniforms removes every user registration, keeping the
	// built-in names.
	ClearRegisteredUniforms()

	// GetUniformLocation resolves a uniform name to an opaque location, or
	// -1 if the name is not registered. Locations are stable for the life
	// of the process and may be cached across frames.
	//
	// Parameters:
	//   - name: the uniform name to resolve
	//
	// Returns:
	//   - int32: the encoded location, or -1 on a miss
	GetUniformLocation(name string) int32

	// CreateShader allocates an unloaded shader object for a stage.
	//
	// Parameters:
	//   - stage: the pipeline stage, fixed for the object's lifetime
	//
	// Returns:
	//   - shader.Handle: the new handle, or 0 for an invalid stage
	CreateShader(stage common.Stage) shader.Handle

	// ShaderBinary loads a precompiled container file into a shader object.
	// On failure the object keeps its prior content.
	//
	// Parameters:
	//   - h: the shader handle to load into
	//   - path: the container file path
	//
	// Returns:
	//   - error: nil on success, a shader.ErrLoad-wrapping error otherwise
	ShaderBinary(h shader.Handle, path string) error

	// DeleteShader removes a shader object. Pipelines already linked from it
	// are unaffected.
	//
	// Parameters:
	//   - h: the handle to delete
	DeleteShader(h shader.Handle)

	// CreateProgram allocates a new program object with no attachments.
	//
	// Returns:
	//   - program.Handle: the new handle
	CreateProgram() program.Handle

	// AttachShader attaches a shader object to a program for its stage,
	// replacing any previous attachment of that stage.
	//
	// Parameters:
	//   - p: the program handle
	//   - s: the shader handle to attach
	//
	// Returns:
	//   - error: nil on success, or an error for unknown handles
	AttachShader(p program.Handle, s shader.Handle) error

	// LinkProgram links the program's current attachment set into a backend
	// pipeline. A failed link leaves any previous pipeline usable.
	//
	// Parameters:
	//   - p: the program handle to link
	//
	// Returns:
	//   - error: nil on success, a program.ErrLink-wrapping error otherwise
	LinkProgram(p program.Handle) error

	// UseProgram makes a linked program current for uniform writes and
	// draws. Handle 0 unbinds. Using an unknown or unlinked program records
	// a sticky error and leaves the current program unchanged.
	//
	// Parameters:
	//   - p: the program handle to use, or 0
	UseProgram(p program.Handle)

	// DeleteProgram removes a program object. If it is current it is
	// unbound first.
	//
	// Parameters:
	//   - p: the handle to delete
	DeleteProgram(p program.Handle)

	// Uniform1f writes a single float through a location. See UniformBytes
	// for the routing semantics.
	Uniform1f(loc int32, v float32)

	// Uniform4f writes a vec4 through a location.
	Uniform4f(loc int32, x, y, z, w float32)

	// Uniform4fv writes a packed float vector through a location.
	Uniform4fv(loc int32, values []float32)

	// UniformMatrix4fv writes a 4x4 column-major matrix through a location.
	//
	// Parameters:
	//   - loc: the encoded uniform location
	//   - m: the matrix values (at least 16 elements)
	UniformMatrix4fv(loc int32, m []float32)

	// UniformBytes writes a raw payload through a location into the current
	// program's constant store. A -1 or undecodable location is a silent
	// no-op; a write to a slot the current pipeline does not declare is
	// dropped and recorded via Err.
	//
	// Parameters:
	//   - loc: the encoded uniform location
	//   - data: the value payload
	UniformBytes(loc int32, data []byte)

	// BeginFrame prepares the backend for this frame's draws.
	//
	// Returns:
	//   - error: nil on success, or the backend's failure
	BeginFrame() error

	// DrawArrays flushes the current program's dirty constant-store slots to
	// the backend and submits a draw.
	//
	// Parameters:
	//   - vertexCount: the number of vertices to submit
	//   - instanceCount: the number of instances (min 1)
	//
	// Returns:
	//   - error: nil on success, ErrNoProgram or the backend's rejection
	DrawArrays(vertexCount, instanceCount int) error

	// EndFrame finishes and submits the frame's command stream.
	EndFrame()

	// Present presents the finished frame to the surface.
	Present()

	// Resize reconfigures the backend surface for a new size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// Err returns and clears the sticky error recorded by the silently
	// tolerated failure paths (unbound uniform writes, use of an unlinked
	// program, writes with no program bound).
	//
	// Returns:
	//   - error: the recorded error, or nil if none since the last call
	Err() error

	// Registry exposes the context's binding registry.
	//
	// Returns:
	//   - registry.Registry: the registry instance
	Registry() registry.Registry

	// CurrentProgram returns the program in use, or nil if none.
	//
	// Returns:
	//   - program.Program: the current program or nil
	CurrentProgram() program.Program

	// Release frees the backend and all context state.
	Release()
}

var _ Context = &context{}

// NewContext creates a Context over the given backend with all provided
// options applied. The registry defaults to a fresh instance with the
// built-in names seeded; tests and embedders can inject their own via
// WithRegistry.
//
// Parameters:
//   - b: the GPU backend to drive
//   - options: a variadic list of options to configure the context
//
// Returns:
//   - Context: a new Context instance with the provided configuration
func NewContext(b backend.Backend, options ...ContextBuilderOption) Context {
	c := &context{
		backend:       b,
		shaders:       shader.NewStore(),
		droppedLogged: make(map[int32]struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.registry == nil {
		c.registry = registry.NewRegistry()
	}
	c.programs = program.NewStore(c.shaders, b)
	return c
}

func (c *context) RegisterUniform(name string, stage common.Stage, binding int) error {
	return c.registry.Register(name, stage, binding)
}

func (c *context) ClearRegisteredUniforms() {
	c.registry.ClearUser()
}

func (c *context) GetUniformLocation(name string) int32 {
	return c.registry.Location(name)
}

func (c *context) CreateShader(stage common.Stage) shader.Handle {
	return c.shaders.Create(stage)
}

func (c *context) ShaderBinary(h shader.Handle, path string) error {
	return c.shaders.Load(h, path)
}

func (c *context) DeleteShader(h shader.Handle) {
	c.shaders.Delete(h)
}

func (c *context) CreateProgram() program.Handle {
	return c.programs.Create()
}

func (c *context) AttachShader(p program.Handle, s shader.Handle) error {
	return c.programs.Attach(p, s)
}

func (c *context) LinkProgram(p program.Handle) error {
	return c.programs.Link(p)
}

func (c *context) UseProgram(p program.Handle) {
	if p == 0 {
		c.current = 0
		return
	}
	obj := c.programs.Program(p)
	if obj == nil {
		c.record(fmt.Errorf("gl: use of unknown program %d", p))
		return
	}
	if !obj.Linked() {
		c.record(fmt.Errorf("gl: use of unlinked program %d", p))
		return
	}
	c.current = p
}

func (c *context) DeleteProgram(p program.Handle) {
	if c.current == p {
		c.current = 0
	}
	c.programs.Delete(p)
}

func (c *context) Uniform1f(loc int32, v float32) {
	c.UniformBytes(loc, common.StructToBytes(&v))
}

func (c *context) Uniform4f(loc int32, x, y, z, w float32) {
	v := [4]float32{x, y, z, w}
	c.UniformBytes(loc, common.SliceToBytes(v[:]))
}

func (c *context) Uniform4fv(loc int32, values []float32) {
	c.UniformBytes(loc, common.SliceToBytes(values))
}

func (c *context) UniformMatrix4fv(loc int32, m []float32) {
	if loc == location.Invalid {
		return
	}
	if len(m) < 16 {
		c.record(fmt.Errorf("gl: matrix uniform needs 16 elements, got %d", len(m)))
		return
	}
	c.UniformBytes(loc, common.SliceToBytes(m[:16]))
}

func (c *context) UniformBytes(loc int32, data []byte) {
	if loc == location.Invalid {
		// Standard tolerance: applications query once and write every frame
		// regardless of which pipeline is bound.
		return
	}
	obj := c.currentObject()
	if obj == nil {
		c.record(ErrNoProgram)
		return
	}
	if err := obj.Constants().Write(loc, data); err != nil {
		c.record(err)
		if errors.Is(err, uniform.ErrUnbound) {
			if _, seen := c.droppedLogged[loc]; !seen {
				c.droppedLogged[loc] = struct{}{}
				log.Printf("[gl] dropped uniform write: %v", err)
			}
		}
	}
}

func (c *context) BeginFrame() error {
	return c.backend.BeginFrame()
}

func (c *context) DrawArrays(vertexCount, instanceCount int) error {
	obj := c.currentObject()
	if obj == nil {
		return ErrNoProgram
	}
	obj.Constants().Flush(c.backend)
	return c.backend.Draw(obj.Pipeline(), vertexCount, instanceCount)
}

func (c *context) EndFrame() {
	c.backend.EndFrame()
}

func (c *context) Present() {
	c.backend.Present()
}

func (c *context) Resize(width, height int) {
	c.backend.Resize(width, height)
}

func (c *context) Err() error {
	err := c.lastErr
	c.lastErr = nil
	return err
}

func (c *context) Registry() registry.Registry {
	return c.registry
}

func (c *context) CurrentProgram() program.Program {
	if c.current == 0 {
		return nil
	}
	return c.programs.Program(c.current)
}

func (c *context) Release() {
	c.backend.Release()
}

// record stores a sticky error. The first error since the last Err read
// wins, matching glGetError semantics.
func (c *context) record(err error) {
	if c.lastErr == nil {
		c.lastErr = err
	}
}

// currentObject resolves the in-use program to a linked object, or nil.
func (c *context) currentObject() program.Program {
	if c.current == 0 {
		return nil
	}
	obj := c.programs.Program(c.current)
	if obj == nil || !obj.Linked() {
		return nil
	}
	return obj
}
