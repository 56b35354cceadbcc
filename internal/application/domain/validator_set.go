package domain

import (
	"iter"
	"slices"
)

// ValidatorSet is the set of validators simulated by one engine. Iteration is
// in ascending index order.
type ValidatorSet struct {
	indices []ValidatorIndex
}

// NewValidatorSet copies, sorts and de-duplicates the given indices.
func NewValidatorSet(indices ...ValidatorIndex) ValidatorSet {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	return ValidatorSet{indices: slices.Compact(sorted)}
}

// ValidatorRange returns the set [from, to).
func ValidatorRange(from, to ValidatorIndex) ValidatorSet {
	if to <= from {
		return ValidatorSet{}
	}
	indices := make([]ValidatorIndex, 0, to-from)
	for v := from; v < to; v++ {
		indices = append(indices, v)
	}
	return ValidatorSet{indices: indices}
}

func (s ValidatorSet) Len() int { return len(s.indices) }

func (s ValidatorSet) Contains(v ValidatorIndex) bool {
	_, found := slices.BinarySearch(s.indices, v)
	return found
}

// Max returns the largest index in the set.
func (s ValidatorSet) Max() (ValidatorIndex, bool) {
	if len(s.indices) == 0 {
		return 0, false
	}
	return s.indices[len(s.indices)-1], true
}

func (s ValidatorSet) All() iter.Seq[ValidatorIndex] {
	return slices.Values(s.indices)
}

// Indices returns a copy of the members.
func (s ValidatorSet) Indices() []ValidatorIndex {
	return slices.Clone(s.indices)
}

// Split partitions the set into n disjoint contiguous chunks whose sizes
// differ by at most one. Chunks may be empty when n exceeds the set size.
func (s ValidatorSet) Split(n int) []ValidatorSet {
	if n <= 0 {
		return nil
	}
	out := make([]ValidatorSet, n)
	size, rem := len(s.indices)/n, len(s.indices)%n
	start := 0
	for i := range out {
		end := start + size
		if i < rem {
			end++
		}
		out[i] = ValidatorSet{indices: s.indices[start:end:end]}
		start = end
	}
	return out
}
