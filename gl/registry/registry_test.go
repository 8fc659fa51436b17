package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("x", common.StageVertex, 3))
	stage, binding, ok := r.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, common.StageVertex, stage)
	assert.Equal(t, 3, binding)
}

func TestRegisterOverwriteWins(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("x", common.StageVertex, 3))
	require.NoError(t, r.Register("x", common.StageFragment, 1))

	stage, binding, ok := r.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, common.StageFragment, stage)
	assert.Equal(t, 1, binding)
}

func TestBuiltinsSeeded(t *testing.T) {
	r := NewRegistry()

	stage, binding, ok := r.Lookup(BuiltinMVP)
	require.True(t, ok)
	assert.Equal(t, common.StageVertex, stage)
	assert.Equal(t, 0, binding)

	stage, binding, ok = r.Lookup(BuiltinColor)
	require.True(t, ok)
	assert.Equal(t, common.StageFragment, stage)
	assert.Equal(t, 0, binding)
}

func TestClearUserKeepsBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x", common.StageVertex, 3))

	r.ClearUser()

	_, _, ok := r.Lookup("x")
	assert.False(t, ok)
	_, _, ok = r.Lookup(BuiltinMVP)
	assert.True(t, ok, "built-in must survive ClearUser")

	// Idempotent.
	r.ClearUser()
	_, _, ok = r.Lookup(BuiltinMVP)
	assert.True(t, ok)
}

func TestShadowedBuiltinSurvivesClear(t *testing.T) {
	r := NewRegistry()
	// Remapping a default for a bespoke shader keeps the built-in mark.
	require.NoError(t, r.Register(BuiltinMVP, common.StageVertex, 5))

	r.ClearUser()

	_, binding, ok := r.Lookup(BuiltinMVP)
	require.True(t, ok)
	assert.Equal(t, 5, binding)
}

func TestTableFull(t *testing.T) {
	r := NewRegistry(WithCapacity(4))
	require.NoError(t, r.Register("a", common.StageVertex, 1))
	require.NoError(t, r.Register("b", common.StageFragment, 2))

	err := r.Register("c", common.StageVertex, 3)
	require.ErrorIs(t, err, ErrTableFull)

	// Overwriting an existing name still succeeds at capacity.
	require.NoError(t, r.Register("a", common.StageVertex, 9))

	// Everything previously registered remains resolvable.
	_, binding, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 9, binding)
	_, _, ok = r.Lookup("b")
	assert.True(t, ok)
}

func TestRegisterRejectsOutOfRange(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("bad", common.StageVertex, location.MaxBindings))
	assert.Error(t, r.Register("bad", common.Stage(9), 0))
	_, _, ok := r.Lookup("bad")
	assert.False(t, ok)
}

func TestLookupCaseSensitive(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("u_Model", common.StageVertex, 2))
	_, _, ok := r.Lookup("u_model")
	assert.False(t, ok)
}

func TestLocation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x", common.StageFragment, 4))

	loc := r.Location("x")
	stage, binding, ok := location.Decode(loc)
	require.True(t, ok)
	assert.Equal(t, common.StageFragment, stage)
	assert.Equal(t, 4, binding)

	assert.Equal(t, location.Invalid, r.Location("missing"))
}

func TestWithBuiltinOption(t *testing.T) {
	r := NewRegistry(WithBuiltin("u_time", common.StageVertex, 7))
	r.ClearUser()
	_, binding, ok := r.Lookup("u_time")
	require.True(t, ok)
	assert.Equal(t, 7, binding)
}

func TestCapacityClampedToSeedSet(t *testing.T) {
	r := NewRegistry(WithCapacity(0))
	assert.GreaterOrEqual(t, r.Capacity(), r.Len())

	// The clamped table is full; new names must fail, built-ins must remain.
	err := r.Register("extra", common.StageVertex, 1)
	require.ErrorIs(t, err, ErrTableFull)
	_, _, ok := r.Lookup(BuiltinMVP)
	assert.True(t, ok)
}
