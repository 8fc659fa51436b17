// Package shader holds precompiled shader objects and the loader that ingests
// offline-compiled container files. Shader objects are addressed by opaque
// handles through a Store, the way the public API hands them out; the handle
// stays stable for the object's whole lifetime regardless of how the store
// organizes its backing map.
package shader

import (
	"fmt"
	"os"

	"github.com/gnaghi/SwitchGLES-sub001/common"
)

// Handle identifies a shader object within a Store. The zero handle is never
// allocated and acts as the "no shader" value.
type Handle uint32

// shaderObject is the implementation of the Shader interface.
type shaderObject struct {
	handle Handle
	stage  common.Stage

	// blob is the raw container file content of the last successful load.
	blob []byte
	// binary is the validated, parsed form of blob.
	binary *Binary
	// compiled reports whether a load has succeeded for this object.
	compiled bool
}

// Shader is the read-only view of a loaded shader object, consumed by the
// program linker.
type Shader interface {
	// Handle returns the store handle identifying this object.
	//
	// Returns:
	//   - Handle: the object's handle
	Handle() Handle

	// Stage returns the pipeline stage fixed at creation time. Loads whose
	// container declares a different stage are rejected.
	//
	// Returns:
	//   - common.Stage: the declared stage
	Stage() common.Stage

	// Compiled reports whether the object holds a successfully loaded binary.
	//
	// Returns:
	//   - bool: true after a successful Load, false before
	Compiled() bool

	// Binary returns the validated binary of the last successful load, or nil
	// if the object has never been loaded.
	//
	// Returns:
	//   - *Binary: the parsed binary or nil
	Binary() *Binary

	// Blob returns the raw container bytes of the last successful load, or
	// nil if the object has never been loaded.
	//
	// Returns:
	//   - []byte: the raw container bytes or nil
	Blob() []byte
}

var _ Shader = &shaderObject{}

func (s *shaderObject) Handle() Handle      { return s.handle }
func (s *shaderObject) Stage() common.Stage { return s.stage }
func (s *shaderObject) Compiled() bool      { return s.compiled }
func (s *shaderObject) Binary() *Binary     { return s.binary }
func (s *shaderObject) Blob() []byte        { return s.blob }

// store is the implementation of the Store interface.
type store struct {
	next    Handle
	objects map[Handle]*shaderObject
}

// Store owns all shader objects of a context and provides the handle
// indirection the public API is built on.
type Store interface {
	// Create allocates a new, unloaded shader object for the given stage.
	// The stage is fixed for the object's lifetime.
	//
	// Parameters:
	//   - stage: the pipeline stage the object will hold a binary for
	//
	// Returns:
	//   - Handle: the handle of the new object, or 0 if the stage is invalid
	Create(stage common.Stage) Handle

	// Shader returns the object for a handle, or nil for an unknown or
	// deleted handle.
	//
	// Parameters:
	//   - h: the handle to resolve
	//
	// Returns:
	//   - Shader: the object or nil
	Shader(h Handle) Shader

	// Load reads the container file at path in full, validates it, and stores
	// the result on the object for h, replacing any previous load. On any
	// failure the object keeps its prior content; no partial mutation is
	// visible. Programs already linked against the old content keep their
	// pipelines, since linking captures a snapshot.
	//
	// Parameters:
	//   - h: the handle of the object to load into
	//   - path: the container file path
	//
	// Returns:
	//   - error: nil on success, an ErrLoad-wrapping error otherwise
	Load(h Handle, path string) error

	// Delete removes the object for a handle. Deleting after linking does not
	// invalidate already-built pipelines. Unknown handles are ignored.
	//
	// Parameters:
	//   - h: the handle to delete
	Delete(h Handle)

	// Len returns the number of live shader objects.
	//
	// Returns:
	//   - int: the object count
	Len() int
}

var _ Store = &store{}

// NewStore creates an empty shader object store.
//
// Returns:
//   - Store: a new Store instance
func NewStore() Store {
	return &store{
		next:    1,
		objects: make(map[Handle]*shaderObject),
	}
}

func (st *store) Create(stage common.Stage) Handle {
	if !stage.Valid() {
		return 0
	}
	h := st.next
	st.next++
	st.objects[h] = &shaderObject{handle: h, stage: stage}
	return h
}

func (st *store) Shader(h Handle) Shader {
	obj, ok := st.objects[h]
	if !ok {
		return nil
	}
	return obj
}

func (st *store) Load(h Handle, path string) error {
	obj, ok := st.objects[h]
	if !ok {
		return fmt.Errorf("%w: unknown shader handle %d", ErrLoad, h)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	b, err := ParseBinary(data)
	if err != nil {
		return err
	}
	if b.Stage != obj.stage {
		return fmt.Errorf("%w: container targets %s stage but shader %d was created for %s",
			ErrLoad, b.Stage, h, obj.stage)
	}
	obj.blob = data
	obj.binary = b
	obj.compiled = true
	return nil
}

func (st *store) Delete(h Handle) {
	delete(st.objects, h)
}

func (st *store) Len() int {
	return len(st.objects)
}
