package backend

import (
	"errors"
	"fmt"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
)

// headlessPipeline keeps its constant stores in host memory, one byte buffer
// per declared slot per stage, sized from the binding table.
type headlessPipeline struct {
	capabilitySet
	stores map[common.Stage]map[int][]byte
}

var _ Pipeline = &headlessPipeline{}

func (p *headlessPipeline) Raw() any {
	return nil
}

// drawRecord captures what one submitted draw observed: the pipeline and a
// copy of its constant stores at draw time.
type drawRecord struct {
	pipeline  *headlessPipeline
	constants map[common.Stage]map[int][]byte
}

// headlessBackend is the CPU-only Backend implementation. It performs the
// same pipeline composition and constant-store bookkeeping as the device
// backends without touching a GPU, which is what makes write-then-read-back
// verification possible in tests and offscreen tooling. Each draw snapshots
// the pipeline's constant stores, so the values a given draw observed stay
// inspectable after later writes.
type headlessBackend struct {
	inFrame bool
	draws   []drawRecord
}

var _ Backend = &headlessBackend{}

// NewHeadless creates a CPU-only backend with host-visible constant buffers.
//
// Returns:
//   - Backend: a new headless backend instance
func NewHeadless() Backend {
	return &headlessBackend{}
}

func (b *headlessBackend) CreatePipeline(label string, vertex, fragment *shader.Binary) (Pipeline, error) {
	if vertex == nil || fragment == nil {
		return nil, errors.New("backend: both vertex and fragment binaries must be set to create a pipeline")
	}
	if vertex.Stage != common.StageVertex || fragment.Stage != common.StageFragment {
		return nil, fmt.Errorf("backend: stage binaries attached in wrong order (%s, %s)", vertex.Stage, fragment.Stage)
	}
	p := &headlessPipeline{
		capabilitySet: newCapabilitySet(label, vertex, fragment),
		stores:        make(map[common.Stage]map[int][]byte, 2),
	}
	for stage, decls := range p.bindings {
		p.stores[stage] = make(map[int][]byte, len(decls))
		for _, d := range decls {
			p.stores[stage][d.Slot] = make([]byte, d.Size)
		}
	}
	return p, nil
}

func (b *headlessBackend) WriteConstants(p Pipeline, writes []ConstantWrite) {
	hp, ok := p.(*headlessPipeline)
	if !ok {
		return
	}
	for _, w := range writes {
		buf, ok := hp.stores[w.Stage][w.Binding]
		if !ok {
			continue
		}
		end := int(w.Offset) + len(w.Data)
		if end > len(buf) {
			continue
		}
		copy(buf[w.Offset:end], w.Data)
	}
}

func (b *headlessBackend) BeginFrame() error {
	if b.inFrame {
		return errors.New("backend: previous frame not yet ended")
	}
	b.inFrame = true
	return nil
}

func (b *headlessBackend) Draw(p Pipeline, vertexCount, instanceCount int) error {
	if !b.inFrame {
		return errors.New("backend: draw outside of a frame")
	}
	hp, ok := p.(*headlessPipeline)
	if !ok {
		return errors.New("backend: pipeline was not created by this backend")
	}
	b.draws = append(b.draws, drawRecord{pipeline: hp, constants: snapshotStores(hp.stores)})
	return nil
}

func snapshotStores(stores map[common.Stage]map[int][]byte) map[common.Stage]map[int][]byte {
	out := make(map[common.Stage]map[int][]byte, len(stores))
	for stage, slots := range stores {
		out[stage] = make(map[int][]byte, len(slots))
		for slot, buf := range slots {
			out[stage][slot] = append([]byte(nil), buf...)
		}
	}
	return out
}

func (b *headlessBackend) EndFrame() {
	b.inFrame = false
}

func (b *headlessBackend) Resize(width, height int) {}

func (b *headlessBackend) Present() {}

func (b *headlessBackend) Release() {}

// ConstantBytes reads back the host-side constant store of a headless
// pipeline. Only meaningful for pipelines created by a headless backend.
//
// Parameters:
//   - p: the pipeline to read from
//   - stage: the shader stage of the slot
//   - binding: the slot index
//
// Returns:
//   - []byte: the store contents, nil if the slot is not declared or the
//     pipeline is not headless
//   - bool: true if the slot was found
func ConstantBytes(p Pipeline, stage common.Stage, binding int) ([]byte, bool) {
	hp, ok := p.(*headlessPipeline)
	if !ok {
		return nil, false
	}
	buf, ok := hp.stores[stage][binding]
	return buf, ok
}

// DrawCount returns the number of draws a headless backend has recorded, 0
// for any other backend.
//
// Parameters:
//   - b: the backend to query
//
// Returns:
//   - int: the recorded draw count
func DrawCount(b Backend) int {
	hb, ok := b.(*headlessBackend)
	if !ok {
		return 0
	}
	return len(hb.draws)
}

// DrawConstantBytes reads back the constant bytes a recorded draw observed at
// submission time. Only meaningful for headless backends.
//
// Parameters:
//   - b: the backend the draw was submitted to
//   - draw: the zero-based index of the draw, in submission order
//   - stage: the shader stage of the slot
//   - binding: the slot index
//
// Returns:
//   - []byte: the slot contents the draw observed, nil if out of range or not
//     declared
//   - bool: true if the draw and slot were found
func DrawConstantBytes(b Backend, draw int, stage common.Stage, binding int) ([]byte, bool) {
	hb, ok := b.(*headlessBackend)
	if !ok || draw < 0 || draw >= len(hb.draws) {
		return nil, false
	}
	buf, ok := hb.draws[draw].constants[stage][binding]
	return buf, ok
}
