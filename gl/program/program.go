// Package program implements program objects and the link step that turns a
// pair of attached stage binaries into a drawable backend pipeline. Linking
// snapshots the attached binaries, so shader objects can be re-loaded or
// deleted afterwards without disturbing an already-built pipeline. A failed
// link never clobbers the last successful one: the previous pipeline and its
// constant store stay usable until a re-link replaces them.
package program

import (
	"errors"
	"fmt"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/backend"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
	"github.com/gnaghi/SwitchGLES-sub001/gl/uniform"
)

// ErrLink is the sentinel all link failures wrap: a missing or unloaded
// stage, incompatible stage interfaces, or backend rejection.
var ErrLink = errors.New("program: link failed")

// Handle identifies a program object within a Store. The zero handle is
// never allocated and acts as the "no program" value.
type Handle uint32

// programObject is the implementation of the Program interface.
type programObject struct {
	handle Handle

	// attached maps each stage to the shader handle currently attached for
	// it. Attachment is by handle: linking resolves the handle against the
	// shader store at link time.
	attached map[common.Stage]shader.Handle

	// pipeline and constants are set together on every successful link and
	// never partially.
	pipeline  backend.Pipeline
	constants uniform.Store
}

// Program is the read-only view of a program object.
type Program interface {
	// Handle returns the store handle identifying this object.
	//
	// Returns:
	//   - Handle: the object's handle
	Handle() Handle

	// Attached returns the shader handle attached for a stage, or 0 if none.
	//
	// Parameters:
	//   - stage: the stage to query
	//
	// Returns:
	//   - shader.Handle: the attached shader handle or 0
	Attached(stage common.Stage) shader.Handle

	// Linked reports whether the program holds a successfully linked pipeline.
	//
	// Returns:
	//   - bool: true after at least one successful link
	Linked() bool

	// Pipeline returns the pipeline of the last successful link, or nil.
	//
	// Returns:
	//   - backend.Pipeline: the linked pipeline or nil
	Pipeline() backend.Pipeline

	// Constants returns the constant store built by the last successful
	// link, or nil. The store's buffers are sized from the binding tables
	// the link snapshotted.
	//
	// Returns:
	//   - uniform.Store: the program's constant store or nil
	Constants() uniform.Store
}

var _ Program = &programObject{}

func (p *programObject) Handle() Handle { return p.handle }

func (p *programObject) Attached(stage common.Stage) shader.Handle {
	return p.attached[stage]
}

func (p *programObject) Linked() bool {
	return p.pipeline != nil
}

func (p *programObject) Pipeline() backend.Pipeline {
	return p.pipeline
}

func (p *programObject) Constants() uniform.Store {
	return p.constants
}

// store is the implementation of the Store interface.
type store struct {
	next     Handle
	objects  map[Handle]*programObject
	shaders  shader.Store
	pipeline backend.Backend
}

// Store owns all program objects of a context and performs the link step.
type Store interface {
	// Create allocates a new program object with no attachments.
	//
	// Returns:
	//   - Handle: the handle of the new object
	Create() Handle

	// Program returns the object for a handle, or nil for an unknown or
	// deleted handle.
	//
	// Parameters:
	//   - h: the handle to resolve
	//
	// Returns:
	//   - Program: the object or nil
	Program(h Handle) Program

	// Attach attaches a shader object to the program for the shader's stage.
	// Attaching a second shader of the same stage replaces the previous
	// attachment. Attachment has no effect on an existing linked pipeline
	// until the next Link.
	//
	// Parameters:
	//   - h: the program handle
	//   - sh: the shader handle to attach
	//
	// Returns:
	//   - error: nil on success, or an error for unknown handles
	Attach(h Handle, sh shader.Handle) error

	// Link builds a backend pipeline from the currently attached shaders.
	// Both stages must be attached and successfully loaded, and the vertex
	// binary's output signature must satisfy the fragment binary's input
	// signature. On success the program's pipeline and constant store are
	// replaced together; on failure the previous link, if any, is untouched.
	//
	// Parameters:
	//   - h: the program handle to link
	//
	// Returns:
	//   - error: nil on success, an ErrLink-wrapping error otherwise
	Link(h Handle) error

	// Delete removes the object for a handle. Unknown handles are ignored.
	//
	// Parameters:
	//   - h: the handle to delete
	Delete(h Handle)

	// Len returns the number of live program objects.
	//
	// Returns:
	//   - int: the object count
	Len() int
}

var _ Store = &store{}

// NewStore creates an empty program store that resolves attachments against
// the given shader store and links through the given backend.
//
// Parameters:
//   - shaders: the shader object store attachments are resolved against
//   - b: the backend that compiles pipelines
//
// Returns:
//   - Store: a new Store instance
func NewStore(shaders shader.Store, b backend.Backend) Store {
	return &store{
		next:     1,
		objects:  make(map[Handle]*programObject),
		shaders:  shaders,
		pipeline: b,
	}
}

func (st *store) Create() Handle {
	h := st.next
	st.next++
	st.objects[h] = &programObject{
		handle:   h,
		attached: make(map[common.Stage]shader.Handle, 2),
	}
	return h
}

func (st *store) Program(h Handle) Program {
	obj, ok := st.objects[h]
	if !ok {
		return nil
	}
	return obj
}

func (st *store) Attach(h Handle, sh shader.Handle) error {
	obj, ok := st.objects[h]
	if !ok {
		return fmt.Errorf("program: unknown program handle %d", h)
	}
	s := st.shaders.Shader(sh)
	if s == nil {
		return fmt.Errorf("program: unknown shader handle %d", sh)
	}
	obj.attached[s.Stage()] = sh
	return nil
}

func (st *store) Link(h Handle) error {
	obj, ok := st.objects[h]
	if !ok {
		return fmt.Errorf("%w: unknown program handle %d", ErrLink, h)
	}

	vertex, err := st.stageBinary(obj, common.StageVertex)
	if err != nil {
		return err
	}
	fragment, err := st.stageBinary(obj, common.StageFragment)
	if err != nil {
		return err
	}

	if err := checkInterfaceMatch(vertex, fragment); err != nil {
		return err
	}

	// Snapshot the binaries so later re-loads of the attached shader handles
	// cannot reach into this pipeline.
	p, err := st.pipeline.CreatePipeline(fmt.Sprintf("program %d", h), vertex.Clone(), fragment.Clone())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLink, err)
	}

	obj.pipeline = p
	obj.constants = uniform.NewStore(p)
	return nil
}

func (st *store) Delete(h Handle) {
	delete(st.objects, h)
}

func (st *store) Len() int {
	return len(st.objects)
}

// stageBinary resolves the attachment for a stage to its loaded binary.
func (st *store) stageBinary(obj *programObject, stage common.Stage) (*shader.Binary, error) {
	sh, ok := obj.attached[stage]
	if !ok {
		return nil, fmt.Errorf("%w: no %s shader attached", ErrLink, stage)
	}
	s := st.shaders.Shader(sh)
	if s == nil {
		return nil, fmt.Errorf("%w: attached %s shader %d no longer exists", ErrLink, stage, sh)
	}
	if !s.Compiled() {
		return nil, fmt.Errorf("%w: attached %s shader %d has no loaded binary", ErrLink, stage, sh)
	}
	return s.Binary(), nil
}

// checkInterfaceMatch verifies that every fragment input varying is produced
// by the vertex binary at the same location with the same format. Extra
// vertex outputs are allowed and ignored by the backend.
func checkInterfaceMatch(vertex, fragment *shader.Binary) error {
	for _, in := range fragment.Varyings {
		found := false
		for _, out := range vertex.Varyings {
			if out.Location != in.Location {
				continue
			}
			if out.Format != in.Format {
				return fmt.Errorf("%w: interface location %d format mismatch between stages", ErrLink, in.Location)
			}
			found = true
			break
		}
		if !found {
			return fmt.Errorf("%w: fragment input at location %d has no matching vertex output", ErrLink, in.Location)
		}
	}
	return nil
}
