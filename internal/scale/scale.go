// Package scale defines the problem-size identifier shared by every
// component of an experiment.
package scale

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Scale is the linear dimension of a square simulation domain. It uniquely
// identifies one unit of work within an experiment.
type Scale int

// String renders the scale as a domain, e.g. "16x16".
func (s Scale) String() string {
	return fmt.Sprintf("%dx%d", s, s)
}

// Parse converts "32" or the domain form "32x32" into a Scale.
func Parse(s string) (Scale, error) {
	text := strings.TrimSpace(s)
	if rows, cols, found := strings.Cut(text, "x"); found {
		if rows != cols {
			return 0, fmt.Errorf("invalid scale %q: domain must be square", s)
		}
		text = rows
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid scale %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid scale %q: must be positive", s)
	}
	return Scale(n), nil
}

// Set is an ordered, duplicate-free collection of scales.
type Set []Scale

// NewSet sorts and deduplicates the given scales. It rejects non-positive
// values and duplicates rather than silently dropping them.
func NewSet(scales ...Scale) (Set, error) {
	seen := make(map[Scale]struct{}, len(scales))
	for _, s := range scales {
		if s <= 0 {
			return nil, fmt.Errorf("invalid scale %d: must be positive", s)
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("duplicate scale %d", s)
		}
		seen[s] = struct{}{}
	}
	out := slices.Clone(scales)
	slices.Sort(out)
	return Set(out), nil
}

// FromInts is a convenience wrapper around NewSet.
func FromInts(values ...int) (Set, error) {
	scales := make([]Scale, len(values))
	for i, v := range values {
		scales[i] = Scale(v)
	}
	return NewSet(scales...)
}

// Contains reports whether s is a member of the set.
func (set Set) Contains(s Scale) bool {
	_, found := slices.BinarySearch(set, s)
	return found
}

// Ints returns the scales as plain integers.
func (set Set) Ints() []int {
	out := make([]int, len(set))
	for i, s := range set {
		out[i] = int(s)
	}
	return out
}

// Keys returns the sorted key set of a scale-indexed map.
func Keys[V any](m map[Scale]V) Set {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return Set(keys)
}

// Equal reports whether both sets contain exactly the same scales.
func (set Set) Equal(other Set) bool {
	return slices.Equal(set, other)
}
