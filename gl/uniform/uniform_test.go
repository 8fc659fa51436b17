package uniform

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnaghi/SwitchGLES-sub001/common"
	"github.com/gnaghi/SwitchGLES-sub001/gl/backend"
	"github.com/gnaghi/SwitchGLES-sub001/gl/location"
	"github.com/gnaghi/SwitchGLES-sub001/gl/shader"
)

func testSPIRV() []byte {
	out := make([]byte, 0, 20)
	for _, w := range []uint32{0x07230203, 0x00010300, 0, 1, 0} {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

// testPipeline builds a headless pipeline declaring (vertex, 0) at 64 bytes
// and (fragment, 1) at 16 bytes.
func testPipeline(t *testing.T) (backend.Backend, backend.Pipeline) {
	t.Helper()
	b := backend.NewHeadless()
	p, err := b.CreatePipeline("test", &shader.Binary{
		Stage:    common.StageVertex,
		Bindings: []shader.BindingDecl{{Slot: 0, Size: 64}},
		SPIRV:    testSPIRV(),
	}, &shader.Binary{
		Stage:    common.StageFragment,
		Bindings: []shader.BindingDecl{{Slot: 1, Size: 16}},
		SPIRV:    testSPIRV(),
	})
	require.NoError(t, err)
	return b, p
}

func TestWriteInvalidLocationIsNoOp(t *testing.T) {
	_, p := testPipeline(t)
	s := NewStore(p)

	require.NoError(t, s.Write(location.Invalid, []byte{1, 2, 3, 4}))
	require.NoError(t, s.Write(-42, []byte{1, 2, 3, 4}))
	assert.Zero(t, s.DirtyCount())
}

func TestWriteUnboundIsDroppedAndReported(t *testing.T) {
	_, p := testPipeline(t)
	s := NewStore(p)

	// Valid encoding, but slot 5 is not declared by this pipeline.
	err := s.Write(location.Encode(common.StageVertex, 5), []byte{1, 2, 3, 4})
	require.ErrorIs(t, err, ErrUnbound)
	assert.Zero(t, s.DirtyCount())
}

func TestWriteOversizedPayloadRejected(t *testing.T) {
	_, p := testPipeline(t)
	s := NewStore(p)

	err := s.Write(location.Encode(common.StageFragment, 1), make([]byte, 17))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnbound)
	assert.Zero(t, s.DirtyCount())
}

func TestWriteCopiesPayloadAndMarksDirty(t *testing.T) {
	_, p := testPipeline(t)
	s := NewStore(p)

	payload := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	require.NoError(t, s.Write(location.Encode(common.StageFragment, 1), payload))
	assert.Equal(t, 1, s.DirtyCount())

	buf, ok := s.Bytes(common.StageFragment, 1)
	require.True(t, ok)
	assert.Equal(t, payload, buf[:4])

	// The store owns its copy; mutating the caller's slice changes nothing.
	payload[0] = 0
	assert.Equal(t, byte(0xAA), buf[0])
}

func TestFlushUploadsAndClearsDirty(t *testing.T) {
	b, p := testPipeline(t)
	s := NewStore(p)

	mat := make([]byte, 64)
	for i := range mat {
		mat[i] = byte(i)
	}
	require.NoError(t, s.Write(location.Encode(common.StageVertex, 0), mat))

	s.Flush(b)
	assert.Zero(t, s.DirtyCount())

	got, ok := backend.ConstantBytes(p, common.StageVertex, 0)
	require.True(t, ok)
	assert.Equal(t, mat, got)

	// Coalescing: the last write before the flush wins.
	mat2 := make([]byte, 64)
	require.NoError(t, s.Write(location.Encode(common.StageVertex, 0), mat))
	require.NoError(t, s.Write(location.Encode(common.StageVertex, 0), mat2))
	s.Flush(b)
	got, _ = backend.ConstantBytes(p, common.StageVertex, 0)
	assert.Equal(t, mat2, got)
}

func TestFlushWithNothingDirtyIsNoOp(t *testing.T) {
	b, p := testPipeline(t)
	s := NewStore(p)
	s.Flush(b) // must not panic or upload
	assert.Zero(t, s.DirtyCount())
}
