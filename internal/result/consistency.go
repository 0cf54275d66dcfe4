package result

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/scalegrid/internal/scale"
)

// Pair names two scales whose temperature grids were compared.
type Pair struct {
	A, B scale.Scale
}

// Consistency is the outcome of comparing temperature grids across scales.
type Consistency struct {
	// Consistent is true when every pair of datasets has element-wise equal
	// temperature grids. It is vacuously true for fewer than two datasets.
	Consistent bool
	// Mismatches lists every pair whose grids differ.
	Mismatches []Pair
	// Disjoint lists the pairs that share no temperature at all.
	Disjoint []Pair
	// Warnings are human-readable notes; they never indicate a hard failure.
	Warnings []string
}

// CompareTemperatures checks every pair of datasets for element-wise equal
// temperature grids.
func CompareTemperatures(datasets map[scale.Scale]*Dataset) Consistency {
	keys := slices.Sorted(maps.Keys(datasets))
	c := Consistency{Consistent: true}

	for i, a := range keys {
		for _, b := range keys[i+1:] {
			ta, tb := datasets[a].temperatures, datasets[b].temperatures
			if slices.Equal(ta, tb) {
				continue
			}
			pair := Pair{A: a, B: b}
			c.Consistent = false
			c.Mismatches = append(c.Mismatches, pair)
			if disjoint(ta, tb) {
				c.Disjoint = append(c.Disjoint, pair)
				c.Warnings = append(c.Warnings, fmt.Sprintf("scales %s and %s share no temperature points", a, b))
			} else {
				c.Warnings = append(c.Warnings, fmt.Sprintf("scales %s and %s have different temperature grids (%d vs %d points)", a, b, len(ta), len(tb)))
			}
		}
	}
	return c
}

func disjoint(a, b []float64) bool {
	seen := make(map[float64]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := seen[v]; ok {
			return false
		}
	}
	return true
}
