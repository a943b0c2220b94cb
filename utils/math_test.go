package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/utils"
)

func TestLastPowerOfTwo(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Input    uint64
		Expected uint64
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{511, 256},
		{512, 512},
		{599, 512},
		{1 << 40, 1 << 40},
	} {
		require.Equal(t, test.Expected, utils.LastPowerOfTwo(test.Input), "input %d", test.Input)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	t.Parallel()

	require.False(t, utils.IsPowerOfTwo(0))
	require.True(t, utils.IsPowerOfTwo(1))
	require.True(t, utils.IsPowerOfTwo(512))
	require.False(t, utils.IsPowerOfTwo(600))
}
