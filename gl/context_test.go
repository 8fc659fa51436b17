package gl

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/backend"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
	"github.com/gnaghi/SwitchGLES-sub001/gl/registry"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
	"github.com/gnaghi/SwitchGLES-sub001/gl/uniform"
)

func testSPIRV() []byte {
	out := make([]byte, 0, 20)
	for _, w := range []uint32{0x07230203, 0x00010300, 0, 1, 0} {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

// linkedContext builds a headless context with one linked, in-use program
// whose vertex stage declares slot 0 (64 bytes, the MVP matrix) and whose
// fragment stage declares slot 1 (16 bytes, a vec4 tint).
func linkedContext(t *testing.T) (Context, backend.Backend) {
	t.Helper()
	b := backend.NewHeadless()
	ctx := NewContext(b)

	dir := t.TempDir()
	writeStage := func(name string, bin *shader.Binary) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, shader.WriteBinary(bin), 0o644))
		return path
	}
	vPath := writeStage("v.sgsb", &shader.Binary{
		Stage:    common.StageVertex,
		Bindings: []shader.BindingDecl{{Slot: 0, Size: 64}},
		Varyings: []shader.Varying{{Location: 0, Format: shader.VaryingVec4}},
		SPIRV:    testSPIRV(),
	})
	fPath := writeStage("f.sgsb", &shader.Binary{
		Stage:    common.StageFragment,
		Bindings: []shader.BindingDecl{{Slot: 1, Size: 16}},
		Varyings: []shader.Varying{{Location: 0, Format: shader.VaryingVec4}},
		SPIRV:    testSPIRV(),
	})

	vs := ctx.CreateShader(common.StageVertex)
	fs := ctx.CreateShader(common.StageFragment)
	require.NoError(t, ctx.ShaderBinary(vs, vPath))
	require.NoError(t, ctx.ShaderBinary(fs, fPath))

	prog := ctx.CreateProgram()
	require.NoError(t, ctx.AttachShader(prog, vs))
	require.NoError(t, ctx.AttachShader(prog, fs))
	require.NoError(t, ctx.LinkProgram(prog))
	ctx.UseProgram(prog)
	require.NoError(t, ctx.Err())
	return ctx, b
}

func TestIdentityMatrixReachesConstantStore(t *testing.T) {
	ctx, _ := linkedContext(t)

	// The built-in MVP name resolves without any explicit registration.
	loc := ctx.GetUniformLocation(registry.BuiltinMVP)
	require.NotEqual(t, location.Invalid, loc)
	stage, binding, ok := location.Decode(loc)
	require.True(t, ok)
	assert.Equal(t, common.StageVertex, stage)
	assert.Equal(t, 0, binding)

	var identity [16]float32
	common.Identity(identity[:])
	ctx.UniformMatrix4fv(loc, identity[:])
	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, ctx.DrawArrays(3, 1))
	ctx.EndFrame()

	got, ok := backend.ConstantBytes(ctx.CurrentProgram().Pipeline(), common.StageVertex, 0)
	require.True(t, ok)
	assert.Equal(t, common.SliceToBytes(identity[:]), got)
	assert.NoError(t, ctx.Err())
}

func TestEachDrawObservesLatestWrites(t *testing.T) {
	ctx, b := linkedContext(t)
	loc := ctx.GetUniformLocation(registry.BuiltinMVP)

	var first, second [16]float32
	common.Identity(first[:])
	common.Identity(second[:])
	second[12], second[13] = 3, -7

	require.NoError(t, ctx.BeginFrame())
	ctx.UniformMatrix4fv(loc, first[:])
	require.NoError(t, ctx.DrawArrays(3, 1))
	ctx.UniformMatrix4fv(loc, second[:])
	require.NoError(t, ctx.DrawArrays(3, 1))
	ctx.EndFrame()

	require.Equal(t, 2, backend.DrawCount(b))

	got, ok := backend.DrawConstantBytes(b, 0, common.StageVertex, 0)
	require.True(t, ok)
	assert.Equal(t, common.SliceToBytes(first[:]), got,
		"first draw must see the matrix written before it, not the frame's last")

	got, ok = backend.DrawConstantBytes(b, 1, common.StageVertex, 0)
	require.True(t, ok)
	assert.Equal(t, common.SliceToBytes(second[:]), got)
}

func TestUniformMatrix4fvRejectsShortSlice(t *testing.T) {
	ctx, _ := linkedContext(t)
	loc := ctx.GetUniformLocation(registry.BuiltinMVP)

	var full [16]float32
	common.Identity(full[:])
	ctx.UniformMatrix4fv(loc, full[:])
	require.NoError(t, ctx.Err())

	ctx.UniformMatrix4fv(loc, full[:9])
	require.Error(t, ctx.Err())

	// The slot keeps the last complete matrix.
	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, ctx.DrawArrays(3, 1))
	ctx.EndFrame()
	got, ok := backend.ConstantBytes(ctx.CurrentProgram().Pipeline(), common.StageVertex, 0)
	require.True(t, ok)
	assert.Equal(t, common.SliceToBytes(full[:]), got)

	// A short write through a miss location stays silent, like any other
	// write through -1.
	ctx.UniformMatrix4fv(location.Invalid, full[:9])
	assert.NoError(t, ctx.Err())
}

func TestRegisteredNameRoutesToFragmentSlot(t *testing.T) {
	ctx, _ := linkedContext(t)
	require.NoError(t, ctx.RegisterUniform("u_tint", common.StageFragment, 1))

	loc := ctx.GetUniformLocation("u_tint")
	require.NotEqual(t, location.Invalid, loc)

	ctx.Uniform4f(loc, 1, 0.5, 0.25, 1)
	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, ctx.DrawArrays(3, 1))
	ctx.EndFrame()

	got, ok := backend.ConstantBytes(ctx.CurrentProgram().Pipeline(), common.StageFragment, 1)
	require.True(t, ok)
	want := [4]float32{1, 0.5, 0.25, 1}
	assert.Equal(t, common.SliceToBytes(want[:]), got)
}

func TestUnregisteredNameWritesAreSilent(t *testing.T) {
	ctx, _ := linkedContext(t)

	loc := ctx.GetUniformLocation("u_never_registered")
	assert.Equal(t, location.Invalid, loc)

	// Writing through the miss location must not record an error.
	ctx.Uniform1f(loc, 3.14)
	assert.NoError(t, ctx.Err())
}

func TestUnboundWriteIsDroppedAndSticky(t *testing.T) {
	ctx, _ := linkedContext(t)
	require.NoError(t, ctx.RegisterUniform("u_ghost", common.StageVertex, 9))

	loc := ctx.GetUniformLocation("u_ghost")
	require.NotEqual(t, location.Invalid, loc)

	ctx.Uniform4f(loc, 1, 2, 3, 4)

	err := ctx.Err()
	require.ErrorIs(t, err, uniform.ErrUnbound)
	// Err clears on read.
	assert.NoError(t, ctx.Err())

	// The dropped write must not disturb declared slots or the draw path.
	require.NoError(t, ctx.BeginFrame())
	require.NoError(t, ctx.DrawArrays(3, 1))
	ctx.EndFrame()
}

func TestStickyErrorFirstWins(t *testing.T) {
	ctx, _ := linkedContext(t)
	require.NoError(t, ctx.RegisterUniform("u_ghost", common.StageVertex, 9))
	loc := ctx.GetUniformLocation("u_ghost")

	ctx.Uniform1f(loc, 1)
	ctx.UseProgram(999) // second failure must not overwrite the first

	err := ctx.Err()
	require.ErrorIs(t, err, uniform.ErrUnbound)
}

func TestUseProgramEdgeCases(t *testing.T) {
	b := backend.NewHeadless()
	ctx := NewContext(b)

	// Unknown handle: sticky error, nothing bound.
	ctx.UseProgram(42)
	assert.Error(t, ctx.Err())
	assert.Nil(t, ctx.CurrentProgram())

	// Unlinked program: sticky error, nothing bound.
	p := ctx.CreateProgram()
	ctx.UseProgram(p)
	assert.Error(t, ctx.Err())
	assert.Nil(t, ctx.CurrentProgram())

	// Handle 0 always unbinds without error.
	ctx.UseProgram(0)
	assert.NoError(t, ctx.Err())
}

func TestDrawWithoutProgram(t *testing.T) {
	ctx := NewContext(backend.NewHeadless())
	err := ctx.DrawArrays(3, 1)
	require.ErrorIs(t, err, ErrNoProgram)
}

func TestUniformWriteWithoutProgram(t *testing.T) {
	ctx := NewContext(backend.NewHeadless())
	ctx.Uniform1f(location.Encode(common.StageVertex, 0), 1)
	require.ErrorIs(t, ctx.Err(), ErrNoProgram)
}

func TestDeleteCurrentProgramUnbinds(t *testing.T) {
	ctx, _ := linkedContext(t)
	prog := ctx.CurrentProgram().Handle()

	ctx.DeleteProgram(prog)
	assert.Nil(t, ctx.CurrentProgram())
	require.ErrorIs(t, ctx.DrawArrays(3, 1), ErrNoProgram)
}

func TestClearRegisteredUniformsKeepsBuiltins(t *testing.T) {
	ctx := NewContext(backend.NewHeadless())
	require.NoError(t, ctx.RegisterUniform("u_custom", common.StageVertex, 2))

	ctx.ClearRegisteredUniforms()

	assert.Equal(t, location.Invalid, ctx.GetUniformLocation("u_custom"))
	assert.NotEqual(t, location.Invalid, ctx.GetUniformLocation(registry.BuiltinMVP))
}

func TestLocationsStableAcrossRelink(t *testing.T) {
	ctx, _ := linkedContext(t)

	before := ctx.GetUniformLocation(registry.BuiltinMVP)
	prog := ctx.CurrentProgram().Handle()
	require.NoError(t, ctx.LinkProgram(prog))
	ctx.UseProgram(prog)

	assert.Equal(t, before, ctx.GetUniformLocation(registry.BuiltinMVP))
}

func TestWithRegistryOption(t *testing.T) {
	r := registry.NewRegistry(registry.WithBuiltin("u_time", common.StageVertex, 3))
	ctx := NewContext(backend.NewHeadless(), WithRegistry(r))

	loc := ctx.GetUniformLocation("u_time")
	stage, binding, ok := location.Decode(loc)
	require.True(t, ok)
	assert.Equal(t, common.StageVertex, stage)
	assert.Equal(t, 3, binding)
}
