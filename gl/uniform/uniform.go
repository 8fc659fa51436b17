// Package uniform implements the per-pipeline constant stores and the write
// router that feeds them. Application uniform writes arrive as (location,
// payload) pairs; the router decodes the location, checks it against the
// pipeline's declared-binding capability set, and copies the payload into the
// host-side store for that slot. Dirty slots are coalesced and uploaded
// through the backend before the next draw, so the values visible to a draw
// are those last written before it was issued.
package uniform

import (
	"errors"
	"fmt"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/backend"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
)

// ErrUnbound is returned for a write through a valid location whose binding
// slot is not declared by the pipeline the store was built for. The write is
// dropped; the error exists so callers can diagnose the drop, not to abort.
var ErrUnbound = errors.New("uniform: write to undeclared binding")

// slotKey identifies one dirty constant-store slot.
type slotKey struct {
	stage   common.Stage
	binding int
}

// store is the implementation of the Store interface.
type store struct {
	pipeline backend.Pipeline

	// buffers is the host-side constant store: per stage, per declared slot,
	// one byte buffer sized from the binary's binding table.
	buffers map[common.Stage]map[int][]byte

	// dirty marks slots written since the last Flush.
	dirty map[slotKey]struct{}
}

// Store is the per-program constant-store state built at link time. Writes go
// through Write; Flush pushes the coalesced dirty set to the backend.
type Store interface {
	// Pipeline returns the pipeline this store was built for.
	//
	// Returns:
	//   - backend.Pipeline: the owning pipeline
	Pipeline() backend.Pipeline

	// Write routes a uniform write. An invalid or undecodable location is a
	// silent no-op, matching GL tolerance for locations obtained from a
	// failed name lookup. A decodable location whose slot the pipeline does
	// not declare is dropped and reported with ErrUnbound. Otherwise the
	// payload is copied to the slot's buffer and the slot is marked dirty.
	//
	// Parameters:
	//   - loc: the encoded uniform location
	//   - data: the value payload to copy
	//
	// Returns:
	//   - error: nil on success or silent no-op, ErrUnbound (wrapped) on a
	//     dropped write, or a size error for an oversized payload
	Write(loc int32, data []byte) error

	// Flush uploads every dirty slot to the backend as one coalesced batch
	// and clears the dirty set. Called before each draw that uses the
	// owning program.
	//
	// Parameters:
	//   - b: the backend to upload through
	Flush(b backend.Backend)

	// Bytes reads back the host-side buffer of a declared slot.
	//
	// Parameters:
	//   - stage: the shader stage of the slot
	//   - binding: the slot index
	//
	// Returns:
	//   - []byte: the buffer contents, nil if the slot is not declared
	//   - bool: true if the slot was found
	Bytes(stage common.Stage, binding int) ([]byte, bool)

	// DirtyCount returns the number of slots pending upload.
	//
	// Returns:
	//   - int: the dirty slot count
	DirtyCount() int
}

var _ Store = &store{}

// NewStore allocates the host-side constant buffers for a freshly linked
// pipeline, one zeroed buffer per slot the pipeline declares.
//
// Parameters:
//   - p: the pipeline whose binding tables size the store
//
// Returns:
//   - Store: a new Store instance backing p
func NewStore(p backend.Pipeline) Store {
	s := &store{
		pipeline: p,
		buffers:  make(map[common.Stage]map[int][]byte, 2),
		dirty:    make(map[slotKey]struct{}),
	}
	for _, stage := range []common.Stage{common.StageVertex, common.StageFragment} {
		decls := p.Bindings(stage)
		s.buffers[stage] = make(map[int][]byte, len(decls))
		for _, d := range decls {
			s.buffers[stage][d.Slot] = make([]byte, d.Size)
		}
	}
	return s
}

func (s *store) Pipeline() backend.Pipeline {
	return s.pipeline
}

func (s *store) Write(loc int32, data []byte) error {
	stage, binding, ok := location.Decode(loc)
	if !ok {
		// Locations from failed lookups flow through here every frame;
		// dropping them without complaint is deliberate.
		return nil
	}
	buf, declared := s.buffers[stage][binding]
	if !declared {
		return fmt.Errorf("%w: %s binding %d not declared by pipeline %q", ErrUnbound, stage, binding, s.pipeline.Label())
	}
	if len(data) > len(buf) {
		return fmt.Errorf("uniform: payload of %d bytes exceeds %s binding %d size %d", len(data), stage, binding, len(buf))
	}
	copy(buf, data)
	s.dirty[slotKey{stage: stage, binding: binding}] = struct{}{}
	return nil
}

func (s *store) Flush(b backend.Backend) {
	if len(s.dirty) == 0 {
		return
	}
	writes := make([]backend.ConstantWrite, 0, len(s.dirty))
	// Walk the pipeline's binding tables rather than the dirty map so the
	// upload order is deterministic.
	for _, stage := range []common.Stage{common.StageVertex, common.StageFragment} {
		for _, d := range s.pipeline.Bindings(stage) {
			key := slotKey{stage: stage, binding: d.Slot}
			if _, isDirty := s.dirty[key]; !isDirty {
				continue
			}
			writes = append(writes, backend.ConstantWrite{
				Stage:   stage,
				Binding: d.Slot,
				Offset:  0,
				Data:    s.buffers[stage][d.Slot],
			})
		}
	}
	b.WriteConstants(s.pipeline, writes)
	clear(s.dirty)
}

func (s *store) Bytes(stage common.Stage, binding int) ([]byte, bool) {
	buf, ok := s.buffers[stage][binding]
	return buf, ok
}

func (s *store) DirtyCount() int {
	return len(s.dirty)
}
