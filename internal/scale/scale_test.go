package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_SortsAndRejectsDuplicates(t *testing.T) {
	t.Parallel()

	set, err := FromInts(64, 16, 32)
	require.NoError(t, err)
	assert.Equal(t, Set{16, 32, 64}, set)
	assert.True(t, set.Contains(32))
	assert.False(t, set.Contains(8))

	_, err = FromInts(16, 16)
	require.ErrorContains(t, err, "duplicate scale 16")

	_, err = FromInts(0)
	require.Error(t, err)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	keys := Keys(map[Scale]uint64{32: 1, 16: 2})
	assert.True(t, keys.Equal(Set{16, 32}))
	assert.False(t, keys.Equal(Set{16, 64}))
}

func TestParseAndString(t *testing.T) {
	t.Parallel()

	s, err := Parse(" 128 ")
	require.NoError(t, err)
	assert.Equal(t, Scale(128), s)
	assert.Equal(t, "128x128", s.String())

	s, err = Parse(s.String())
	require.NoError(t, err)
	assert.Equal(t, Scale(128), s)

	for _, bad := range []string{"-4", "abc", "16x32", "x16", "0x0", ""} {
		_, err = Parse(bad)
		require.Error(t, err, bad)
	}
}
