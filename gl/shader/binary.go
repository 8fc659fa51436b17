package shader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
)

// Container format constants. A shader binary is produced offline by the
// shader toolchain; this layer validates the container and stage, never
// shading-language syntax.
const (
	// Magic is the container magic number, "SGSB" in little-endian byte order.
	Magic uint32 = 0x42534753

	// FormatVersion is the container format version this loader accepts.
	FormatVersion uint32 = 1

	// spirvMagic is the magic number every SPIR-V module begins with.
	spirvMagic uint32 = 0x07230203
)

// ErrLoad is the sentinel all shader load failures wrap: missing or truncated
// file, bad magic or version, stage mismatch, or an out-of-range binding
// declaration. A failed load leaves the shader object untouched.
var ErrLoad = errors.New("shader: load failed")

// VaryingFormat identifies the component format of a single stage-interface
// varying (a vertex output or fragment input).
type VaryingFormat uint32

const (
	VaryingFloat VaryingFormat = iota
	VaryingVec2
	VaryingVec3
	VaryingVec4
)

// BindingDecl describes one constant-buffer slot declared inside a precompiled
// binary: the slot index baked in at offline-compile time and the byte size of
// the buffer backing it.
type BindingDecl struct {
	Slot int
	Size int
}

// Varying describes one entry of a stage's interface signature. For a vertex
// binary these are outputs; for a fragment binary, inputs. The linker matches
// the two signatures location-by-location.
type Varying struct {
	Location int
	Format   VaryingFormat
}

// Binary is the validated in-memory form of a precompiled shader container.
// It carries everything the pipeline compiler and the uniform write router
// need: the stage tag, the declared binding table, the interface signature,
// and the backend shader payload.
type Binary struct {
	// Stage is the pipeline stage this binary was compiled for.
	Stage common.Stage

	// Bindings is the constant-buffer slot table declared by the binary,
	// sorted by slot.
	Bindings []BindingDecl

	// Varyings is the stage interface signature, sorted by location.
	Varyings []Varying

	// SPIRV is the backend shader payload, consumed verbatim by the pipeline
	// compiler.
	SPIRV []byte
}

// Declares reports whether the binary declares the given constant-buffer slot.
//
// Parameters:
//   - binding: the slot index to check
//
// Returns:
//   - bool: true if the slot appears in the binding table
func (b *Binary) Declares(binding int) bool {
	_, ok := b.BindingSize(binding)
	return ok
}

// BindingSize returns the declared byte size of a constant-buffer slot.
//
// Parameters:
//   - binding: the slot index to look up
//
// Returns:
//   - int: the declared byte size, 0 if the slot is not declared
//   - bool: true if the slot appears in the binding table
func (b *Binary) BindingSize(binding int) (int, bool) {
	for _, d := range b.Bindings {
		if d.Slot == binding {
			return d.Size, true
		}
	}
	return 0, false
}

// Clone returns a deep copy of the binary. Linking snapshots attached binaries
// with this, so a later re-load of the shader handle cannot mutate an already
// linked pipeline.
//
// Returns:
//   - *Binary: an independent copy of the receiver
func (b *Binary) Clone() *Binary {
	c := &Binary{
		Stage:    b.Stage,
		Bindings: make([]BindingDecl, len(b.Bindings)),
		Varyings: make([]Varying, len(b.Varyings)),
		SPIRV:    make([]byte, len(b.SPIRV)),
	}
	copy(c.Bindings, b.Bindings)
	copy(c.Varyings, b.Varyings)
	copy(c.SPIRV, b.SPIRV)
	return c
}

// cursor is a little-endian word reader over the raw container bytes. Any read
// past the end marks the cursor truncated; callers check once at the end of a
// section rather than after every word.
type cursor struct {
	data      []byte
	off       int
	truncated bool
}

func (c *cursor) u32() uint32 {
	if c.off+4 > len(c.data) {
		c.truncated = true
		return 0
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v
}

func (c *cursor) bytes(n int) []byte {
	if n < 0 || c.off+n > len(c.data) {
		c.truncated = true
		return nil
	}
	v := c.data[c.off : c.off+n]
	c.off += n
	return v
}

// ParseBinary validates a raw shader container and decodes it into a Binary.
// All failures wrap ErrLoad and leave no partial result.
//
// Parameters:
//   - data: the raw container bytes as read from the file
//
// Returns:
//   - *Binary: the decoded binary on success, nil on failure
//   - error: nil on success, an ErrLoad-wrapping error otherwise
func ParseBinary(data []byte) (*Binary, error) {
	c := &cursor{data: data}

	magic := c.u32()
	if c.truncated {
		return nil, fmt.Errorf("%w: truncated header", ErrLoad)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrLoad, magic)
	}
	if v := c.u32(); v != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrLoad, v)
	}
	stage := common.Stage(c.u32())
	if c.truncated {
		return nil, fmt.Errorf("%w: truncated header", ErrLoad)
	}
	if !stage.Valid() {
		return nil, fmt.Errorf("%w: invalid stage tag %d", ErrLoad, int(stage))
	}

	b := &Binary{Stage: stage}

	bindingCount := int(c.u32())
	if bindingCount > location.MaxBindings {
		return nil, fmt.Errorf("%w: binding count %d exceeds %d slots", ErrLoad, bindingCount, location.MaxBindings)
	}
	for i := 0; i < bindingCount; i++ {
		slot := int(c.u32())
		size := int(c.u32())
		if c.truncated {
			return nil, fmt.Errorf("%w: truncated binding table", ErrLoad)
		}
		if slot < 0 || slot >= location.MaxBindings {
			return nil, fmt.Errorf("%w: binding slot %d out of range", ErrLoad, slot)
		}
		if size <= 0 {
			return nil, fmt.Errorf("%w: binding slot %d has invalid size %d", ErrLoad, slot, size)
		}
		if b.Declares(slot) {
			return nil, fmt.Errorf("%w: binding slot %d declared twice", ErrLoad, slot)
		}
		b.Bindings = append(b.Bindings, BindingDecl{Slot: slot, Size: size})
	}

	varyingCount := int(c.u32())
	if c.truncated {
		return nil, fmt.Errorf("%w: truncated interface table", ErrLoad)
	}
	for i := 0; i < varyingCount; i++ {
		loc := int(c.u32())
		format := VaryingFormat(c.u32())
		if c.truncated {
			return nil, fmt.Errorf("%w: truncated interface table", ErrLoad)
		}
		if format > VaryingVec4 {
			return nil, fmt.Errorf("%w: interface location %d has unknown format %d", ErrLoad, loc, uint32(format))
		}
		b.Varyings = append(b.Varyings, Varying{Location: loc, Format: format})
	}

	payloadLen := int(c.u32())
	payload := c.bytes(payloadLen)
	if c.truncated {
		return nil, fmt.Errorf("%w: truncated payload", ErrLoad)
	}
	if payloadLen < 4 || payloadLen%4 != 0 {
		return nil, fmt.Errorf("%w: payload length %d is not a positive multiple of 4", ErrLoad, payloadLen)
	}
	if m := binary.LittleEndian.Uint32(payload); m != spirvMagic {
		return nil, fmt.Errorf("%w: payload is not a SPIR-V module (magic %#08x)", ErrLoad, m)
	}
	b.SPIRV = make([]byte, payloadLen)
	copy(b.SPIRV, payload)

	if c.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after payload", ErrLoad, len(data)-c.off)
	}
	return b, nil
}

// WriteBinary encodes a Binary into the container wire format. This is the
// inverse of ParseBinary and is what the offline toolchain uses to emit
// loadable files.
//
// Parameters:
//   - b: the binary to encode
//
// Returns:
//   - []byte: the raw container bytes
func WriteBinary(b *Binary) []byte {
	out := make([]byte, 0, 28+8*len(b.Bindings)+8*len(b.Varyings)+len(b.SPIRV))
	put := func(v uint32) {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	put(Magic)
	put(FormatVersion)
	put(uint32(b.Stage))
	put(uint32(len(b.Bindings)))
	for _, d := range b.Bindings {
		put(uint32(d.Slot))
		put(uint32(d.Size))
	}
	put(uint32(len(b.Varyings)))
	for _, v := range b.Varyings {
		put(uint32(v.Location))
		put(uint32(v.Format))
	}
	put(uint32(len(b.SPIRV)))
	out = append(out, b.SPIRV...)
	return out
}
