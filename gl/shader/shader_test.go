package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnaghi/SwitchGLES-sub001/common"
)

// writeContainer writes a container file for the given binary into dir and
// returns its path.
func writeContainer(t *testing.T, dir string, name string, b *Binary) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, WriteBinary(b), 0o644))
	return path
}

func TestCreateAssignsStableHandles(t *testing.T) {
	st := NewStore()

	v := st.Create(common.StageVertex)
	f := st.Create(common.StageFragment)
	require.NotZero(t, v)
	require.NotZero(t, f)
	assert.NotEqual(t, v, f)

	assert.Equal(t, common.StageVertex, st.Shader(v).Stage())
	assert.Equal(t, common.StageFragment, st.Shader(f).Stage())
	assert.Zero(t, st.Create(common.Stage(7)), "invalid stage must not allocate")
}

func TestLoadSuccess(t *testing.T) {
	st := NewStore()
	h := st.Create(common.StageVertex)
	path := writeContainer(t, t.TempDir(), "v.sgsb", testBinary(common.StageVertex))

	require.NoError(t, st.Load(h, path))

	s := st.Shader(h)
	require.True(t, s.Compiled())
	require.NotNil(t, s.Binary())
	assert.Equal(t, common.StageVertex, s.Binary().Stage)
	assert.NotEmpty(t, s.Blob())
}

func TestLoadMissingFileLeavesObjectUntouched(t *testing.T) {
	st := NewStore()
	h := st.Create(common.StageVertex)

	err := st.Load(h, filepath.Join(t.TempDir(), "nope.sgsb"))
	require.ErrorIs(t, err, ErrLoad)

	s := st.Shader(h)
	assert.False(t, s.Compiled())
	assert.Nil(t, s.Binary())
}

func TestLoadFailureKeepsPriorContent(t *testing.T) {
	st := NewStore()
	h := st.Create(common.StageVertex)
	dir := t.TempDir()

	good := writeContainer(t, dir, "good.sgsb", testBinary(common.StageVertex))
	require.NoError(t, st.Load(h, good))

	// Corrupt container: magic zeroed.
	bad := filepath.Join(dir, "bad.sgsb")
	data := WriteBinary(testBinary(common.StageVertex))
	data[0] = 0
	require.NoError(t, os.WriteFile(bad, data, 0o644))

	err := st.Load(h, bad)
	require.ErrorIs(t, err, ErrLoad)

	s := st.Shader(h)
	assert.True(t, s.Compiled(), "prior load must remain visible")
	assert.Equal(t, common.StageVertex, s.Binary().Stage)
}

func TestLoadStageMismatch(t *testing.T) {
	st := NewStore()
	h := st.Create(common.StageFragment)
	path := writeContainer(t, t.TempDir(), "v.sgsb", testBinary(common.StageVertex))

	err := st.Load(h, path)
	require.ErrorIs(t, err, ErrLoad)
	assert.False(t, st.Shader(h).Compiled())
}

func TestReloadReplacesContent(t *testing.T) {
	st := NewStore()
	h := st.Create(common.StageVertex)
	dir := t.TempDir()

	first := testBinary(common.StageVertex)
	require.NoError(t, st.Load(h, writeContainer(t, dir, "a.sgsb", first)))

	second := testBinary(common.StageVertex)
	second.Bindings = []BindingDecl{{Slot: 2, Size: 32}}
	require.NoError(t, st.Load(h, writeContainer(t, dir, "b.sgsb", second)))

	b := st.Shader(h).Binary()
	assert.True(t, b.Declares(2))
	assert.False(t, b.Declares(0))
}

func TestDelete(t *testing.T) {
	st := NewStore()
	h := st.Create(common.StageVertex)
	require.Equal(t, 1, st.Len())

	st.Delete(h)
	assert.Nil(t, st.Shader(h))
	assert.Zero(t, st.Len())

	// Unknown handles are ignored.
	st.Delete(h)
}

func TestLoadUnknownHandle(t *testing.T) {
	st := NewStore()
	err := st.Load(42, "anything")
	require.ErrorIs(t, err, ErrLoad)
}
