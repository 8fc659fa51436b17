package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnaghi/SwitchGLES-sub001/common"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, stage := range []common.Stage{common.StageVertex, common.StageFragment} {
		for binding := 0; binding < MaxBindings; binding++ {
			loc := Encode(stage, binding)
			require.NotEqual(t, Invalid, loc, "encode(%s, %d) produced the invalid sentinel", stage, binding)

			gotStage, gotBinding, ok := Decode(loc)
			require.True(t, ok, "decode(%d) failed", loc)
			assert.Equal(t, stage, gotStage)
			assert.Equal(t, binding, gotBinding)
		}
	}
}

func TestEncodeStable(t *testing.T) {
	// Applications cache locations across frames; two calls with the same
	// inputs must always agree.
	a := Encode(common.StageFragment, 7)
	b := Encode(common.StageFragment, 7)
	assert.Equal(t, a, b)
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	assert.Equal(t, Invalid, Encode(common.StageVertex, -1))
	assert.Equal(t, Invalid, Encode(common.StageVertex, MaxBindings))
	assert.Equal(t, Invalid, Encode(common.Stage(5), 0))
}

func TestDecodeRejectsInvalid(t *testing.T) {
	for _, loc := range []int32{Invalid, -7, int32(MaxBindings) << 1, 1 << 20} {
		_, _, ok := Decode(loc)
		assert.False(t, ok, "decode(%d) should fail", loc)
	}
}
