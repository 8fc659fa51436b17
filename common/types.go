// package common contains common types that are used throughout this shim. They are not interface-wrapped structs, just plain types that express
// commonly used data-types.
package common

// Stage identifies one of the two shader pipeline phases a precompiled binary targets.
type Stage int

const (
	// StageVertex is the vertex shader stage, used for vertex processing in render pipelines.
	StageVertex Stage = iota

	// StageFragment is the fragment shader stage, used for fragment processing in pair with a vertex stage.
	StageFragment
)

// Valid reports whether the stage is one of the two supported pipeline stages.
//
// Returns:
//   - bool: true for StageVertex or StageFragment, false otherwise
func (s Stage) Valid() bool {
	return s == StageVertex || s == StageFragment
}

// String returns a human-readable name for the stage, used in error messages and debug labels.
//
// Returns:
//   - string: "vertex", "fragment", or "unknown"
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}
