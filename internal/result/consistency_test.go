package result

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/scalegrid/internal/scale"
)

func datasetWithTemps(t *testing.T, temps ...string) *Dataset {
	t.Helper()
	var b strings.Builder
	b.WriteString("temp, e:1\n")
	for _, temp := range temps {
		b.WriteString(temp + ", 0, 0, 0, 0\n")
	}
	d, err := Parse("x", strings.NewReader(b.String()))
	require.NoError(t, err)
	return d
}

func TestCompareTemperatures_Equal(t *testing.T) {
	t.Parallel()

	c := CompareTemperatures(map[scale.Scale]*Dataset{
		16: datasetWithTemps(t, "1.0", "2.0"),
		32: datasetWithTemps(t, "1.0", "2.0"),
		64: datasetWithTemps(t, "1.0", "2.0"),
	})
	assert.True(t, c.Consistent, "identical grids in distinct datasets must compare equal")
	assert.Empty(t, c.Mismatches)
	assert.Empty(t, c.Warnings)
}

func TestCompareTemperatures_Differences(t *testing.T) {
	t.Parallel()

	c := CompareTemperatures(map[scale.Scale]*Dataset{
		16: datasetWithTemps(t, "1.0", "2.0"),
		32: datasetWithTemps(t, "1.0", "2.5"),
		64: datasetWithTemps(t, "5.0"),
	})
	assert.False(t, c.Consistent)
	assert.Equal(t, []Pair{{16, 32}, {16, 64}, {32, 64}}, c.Mismatches)
	assert.Equal(t, []Pair{{16, 64}, {32, 64}}, c.Disjoint)
	assert.Len(t, c.Warnings, 3)
}

func TestCompareTemperatures_SingleDataset(t *testing.T) {
	t.Parallel()

	c := CompareTemperatures(map[scale.Scale]*Dataset{16: datasetWithTemps(t, "1.0")})
	assert.True(t, c.Consistent)
}
