// Package location implements the opaque uniform-location encoding used by the
// public API surface. A location returned to application code is a plain signed
// integer, but internally it carries a (stage, binding) pair so a later uniform
// write can be routed to the correct per-stage constant-buffer slot without any
// shader reflection. The encoding is stable for the lifetime of the process, so
// applications may cache locations across frames exactly as they would cache a
// glGetUniformLocation result.
package location

import (
	"github.com/gnaghi/SwitchGLES-sub001/common"
)

const (
	// bindingBits is the number of low bits reserved for the binding slot index.
	bindingBits = 5

	// MaxBindings is the number of constant-buffer slots addressable per stage.
	MaxBindings = 1 << bindingBits

	// Invalid is the sentinel location returned for unresolvable names. It is
	// never produced by Encode for any valid (stage, binding) pair.
	Invalid int32 = -1
)

// Encode flattens a (stage, binding) pair into an opaque location integer.
// The low bits carry the binding slot and the next bit carries the stage tag,
// so every valid encoding is a small non-negative integer and can never
// collide with the Invalid sentinel.
//
// Parameters:
//   - stage: the shader stage the binding belongs to
//   - binding: the constant-buffer slot index, in [0, MaxBindings)
//
// Returns:
//   - int32: the encoded location, or Invalid if stage or binding is out of range
func Encode(stage common.Stage, binding int) int32 {
	if !stage.Valid() || binding < 0 || binding >= MaxBindings {
		return Invalid
	}
	return int32(stage)<<bindingBits | int32(binding)
}

// Decode recovers the (stage, binding) pair from an encoded location.
// Decoding the Invalid sentinel, a negative value, or a value outside the
// encodable range reports ok=false; callers treat that as a silent no-op to
// match GL tolerance for writes through failed lookups.
//
// Parameters:
//   - loc: the encoded location to decode
//
// Returns:
//   - common.Stage: the stage encoded in the location
//   - int: the binding slot encoded in the location
//   - bool: true if the location was a valid encoding, false otherwise
func Decode(loc int32) (common.Stage, int, bool) {
	if loc < 0 || loc >= int32(MaxBindings)<<1 {
		return 0, 0, false
	}
	stage := common.Stage(loc >> bindingBits)
	binding := int(loc & (MaxBindings - 1))
	return stage, binding, true
}
