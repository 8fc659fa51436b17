// Package backend abstracts the GPU API the shim drives. The program linker
// hands two precompiled stage binaries to a Backend and gets back a Pipeline
// that carries its own declared-binding capability set; the uniform write
// router later checks writes against that set and flushes the surviving ones
// back through the Backend before a draw.
package backend

import (
	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
)

// BackendType identifies the GPU backend implementation in use.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend driving a real device.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHeadless selects the CPU-only backend with host-visible
	// constant buffers. Used by tests and offscreen tooling.
	BackendTypeHeadless
)

// ConstantWrite describes a single pending constant-buffer write targeting a
// specific (stage, binding) slot of a pipeline at a given byte offset.
type ConstantWrite struct {
	Stage   common.Stage
	Binding int
	Offset  uint64
	Data    []byte
}

// Pipeline is a drawable pipeline built from one vertex and one fragment
// binary. It owns a snapshot of the binding declarations embedded in the two
// binaries at link time, so binding-slot checks never have to query the GPU.
type Pipeline interface {
	// Label returns the debug label the pipeline was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// Declares reports whether the pipeline's stage binary declared the given
	// constant-buffer slot at link time.
	//
	// Parameters:
	//   - stage: the shader stage to check
	//   - binding: the slot index to check
	//
	// Returns:
	//   - bool: true if the slot is part of the pipeline's capability set
	Declares(stage common.Stage, binding int) bool

	// BindingSize returns the declared byte size of a constant-buffer slot.
	//
	// Parameters:
	//   - stage: the shader stage to check
	//   - binding: the slot index to look up
	//
	// Returns:
	//   - int: the declared byte size, 0 if not declared
	//   - bool: true if the slot is part of the pipeline's capability set
	BindingSize(stage common.Stage, binding int) (int, bool)

	// Bindings returns the full binding table snapshot for a stage.
	//
	// Parameters:
	//   - stage: the shader stage to list
	//
	// Returns:
	//   - []shader.BindingDecl: the declared slots, sorted by slot index
	Bindings(stage common.Stage) []shader.BindingDecl

	// Raw returns the underlying backend pipeline object, or nil for backends
	// without one. The caller is responsible for type asserting the result.
	//
	// Returns:
	//   - any: the backend-specific pipeline object
	Raw() any
}

// Backend is the GPU API boundary. All calls are synchronous; faults below
// this boundary (driver out-of-memory and the like) are the backend's to
// surface and are the only conditions allowed to be fatal.
type Backend interface {
	// CreatePipeline compiles a drawable pipeline from a vertex and a
	// fragment binary. The binaries are link-time snapshots owned by the
	// caller; the pipeline keeps its own reference and stays valid however
	// the source shader objects change afterwards.
	//
	// Parameters:
	//   - label: a debug label for the pipeline
	//   - vertex: the vertex stage binary
	//   - fragment: the fragment stage binary
	//
	// Returns:
	//   - Pipeline: the built pipeline on success
	//   - error: nil on success, the backend's rejection otherwise
	CreatePipeline(label string, vertex, fragment *shader.Binary) (Pipeline, error)

	// WriteConstants uploads pending constant-buffer writes to the pipeline's
	// backing stores. Writes to slots the pipeline does not declare are
	// skipped; the router has already filtered them, this is the backstop
	// that keeps a stale write from faulting.
	//
	// Parameters:
	//   - p: the pipeline whose constant stores are targeted
	//   - writes: the pending writes, in application order
	WriteConstants(p Pipeline, writes []ConstantWrite)

	// BeginFrame prepares the backend for a frame's draw submissions.
	//
	// Returns:
	//   - error: nil on success, or the backend's failure to acquire a target
	BeginFrame() error

	// Draw submits a draw call using the given pipeline. Constant store
	// contents at each declared slot are whatever was last flushed via
	// WriteConstants before this call.
	//
	// Parameters:
	//   - p: the pipeline to draw with
	//   - vertexCount: the number of vertices to submit
	//   - instanceCount: the number of instances to submit (min 1)
	//
	// Returns:
	//   - error: nil on success, or the backend's rejection
	Draw(p Pipeline, vertexCount, instanceCount int) error

	// EndFrame finishes and submits the frame's command stream.
	EndFrame()

	// Resize reconfigures the backend for a new surface size. A no-op for
	// backends without a surface.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	Resize(width, height int)

	// Present presents the finished frame to the surface. A no-op for
	// backends without a surface.
	Present()

	// Release frees all backend resources. The backend is unusable afterwards.
	Release()
}

// capabilitySet is the per-pipeline declared-binding snapshot shared by every
// backend implementation.
type capabilitySet struct {
	label    string
	bindings map[common.Stage][]shader.BindingDecl
}

func newCapabilitySet(label string, vertex, fragment *shader.Binary) capabilitySet {
	cs := capabilitySet{
		label:    label,
		bindings: make(map[common.Stage][]shader.BindingDecl, 2),
	}
	cs.bindings[common.StageVertex] = append([]shader.BindingDecl(nil), vertex.Bindings...)
	cs.bindings[common.StageFragment] = append([]shader.BindingDecl(nil), fragment.Bindings...)
	return cs
}

func (cs *capabilitySet) Label() string {
	return cs.label
}

func (cs *capabilitySet) Declares(stage common.Stage, binding int) bool {
	_, ok := cs.BindingSize(stage, binding)
	return ok
}

func (cs *capabilitySet) BindingSize(stage common.Stage, binding int) (int, bool) {
	for _, d := range cs.bindings[stage] {
		if d.Slot == binding {
			return d.Size, true
		}
	}
	return 0, false
}

func (cs *capabilitySet) Bindings(stage common.Stage) []shader.BindingDecl {
	return cs.bindings[stage]
}
