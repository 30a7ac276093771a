package tree

import (
	"fmt"
	"math/bits"
)

// SegmentTree is a sum tree tuned for weighted random sampling: point
// updates and "first index whose prefix sum exceeds x" lookups in O(log n).
type SegmentTree struct {
	tree         []float64 // 2 * alignedSize nodes, leaves start at alignedSize
	originalSize int
	alignedSize  int
}

// NewSegmentTree creates an all-zero tree holding size weights.
func NewSegmentTree(size int) (*SegmentTree, error) {
	if size <= 0 {
		return nil, fmt.Errorf("segment tree size must be positive, got %d", size)
	}
	alignedSize := 1 << bits.Len(uint(size))
	return &SegmentTree{
		tree:         make([]float64, 2*alignedSize),
		originalSize: size,
		alignedSize:  alignedSize,
	}, nil
}

// FromWeights builds a tree already filled with weights.
func FromWeights(weights []float64) (*SegmentTree, error) {
	st, err := NewSegmentTree(len(weights))
	if err != nil {
		return nil, err
	}
	if err := st.Rebuild(weights); err != nil {
		return nil, err
	}
	return st, nil
}

// Size returns the number of weights the tree holds.
func (st *SegmentTree) Size() int {
	return st.originalSize
}

// Rebuild replaces every weight. len(weights) must equal Size().
func (st *SegmentTree) Rebuild(weights []float64) error {
	if len(weights) != st.originalSize {
		return fmt.Errorf("weights length %d does not match tree size %d", len(weights), st.originalSize)
	}
	for i, w := range weights {
		if w < 0 {
			return fmt.Errorf("weight at %d is negative: %f", i, w)
		}
		st.tree[st.alignedSize+i] = w
	}
	for i := st.originalSize; i < st.alignedSize; i++ {
		st.tree[st.alignedSize+i] = 0
	}
	for i := st.alignedSize - 1; i > 0; i-- {
		st.tree[i] = st.tree[2*i] + st.tree[2*i+1]
	}
	return nil
}

// Update sets the weight at index and refreshes its ancestors.
func (st *SegmentTree) Update(index int, value float64) error {
	if index < 0 || index >= st.originalSize {
		return fmt.Errorf("index %d out of range [0, %d)", index, st.originalSize)
	}
	if value < 0 {
		return fmt.Errorf("weight must not be negative: %f", value)
	}
	pos := st.alignedSize + index
	st.tree[pos] = value
	for pos > 1 {
		pos /= 2
		st.tree[pos] = st.tree[2*pos] + st.tree[2*pos+1]
	}
	return nil
}

// Query returns the weight stored at index.
func (st *SegmentTree) Query(index int) (float64, error) {
	if index < 0 || index >= st.originalSize {
		return 0, fmt.Errorf("index %d out of range [0, %d)", index, st.originalSize)
	}
	return st.tree[st.alignedSize+index], nil
}

// PrefixSum returns the sum of weights in [0, index].
func (st *SegmentTree) PrefixSum(index int) (float64, error) {
	if index < 0 || index >= st.originalSize {
		return 0, fmt.Errorf("index %d out of range [0, %d)", index, st.originalSize)
	}
	sum := 0.0
	l, r := st.alignedSize, st.alignedSize+index+1
	for l < r {
		if l&1 == 1 {
			sum += st.tree[l]
			l++
		}
		if r&1 == 1 {
			r--
			sum += st.tree[r]
		}
		l /= 2
		r /= 2
	}
	return sum, nil
}

// Find returns the index i whose cumulative range [prefix(i-1), prefix(i))
// contains value. value must lie in [0, TotalSum()); zero-weight slots are
// never returned.
func (st *SegmentTree) Find(value float64) (int, error) {
	total := st.tree[1]
	if total <= 0 {
		return -1, fmt.Errorf("segment tree has no positive weight")
	}
	if value < 0 || value >= total {
		return -1, fmt.Errorf("value %f outside [0, %f)", value, total)
	}

	pos := 1
	for pos < st.alignedSize {
		left := 2 * pos
		if value < st.tree[left] {
			pos = left
		} else {
			value -= st.tree[left]
			pos = left + 1
		}
	}
	index := pos - st.alignedSize
	// Rounding can walk past the last real slot; fall back to the last positive one.
	if index >= st.originalSize || st.tree[pos] == 0 {
		for i := st.originalSize - 1; i >= 0; i-- {
			if st.tree[st.alignedSize+i] > 0 {
				return i, nil
			}
		}
	}
	return index, nil
}

// TotalSum returns the sum of all weights.
func (st *SegmentTree) TotalSum() float64 {
	return st.tree[1]
}
