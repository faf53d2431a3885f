package partitions

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvenSplit covers a single dimension dividing evenly
func TestEvenSplit(t *testing.T) {
	it := NewShapePartitionIterator([]int64{128}, []int64{4})
	require.Equal(t, int64(4), it.TotalPartitionCount())

	for i := int64(0); i < 4; i++ {
		p := it.Partition(i)
		require.Len(t, p, 1)
		assert.Equal(t, 32*i, p[0].Lower)
		assert.Equal(t, int64(32), p[0].Size)
	}
}

// TestRemainderSplit verifies the last chunk absorbs the remainder
func TestRemainderSplit(t *testing.T) {
	it := NewShapePartitionIterator([]int64{10}, []int64{4})
	require.Equal(t, int64(4), it.TotalPartitionCount())

	sizes := make([]int64, 0, 4)
	next := int64(0)
	for i := int64(0); i < 4; i++ {
		p := it.Partition(i)
		assert.Equal(t, next, p[0].Lower, "chunks must be contiguous")
		sizes = append(sizes, p[0].Size)
		next = p[0].Lower + p[0].Size
	}
	assert.Equal(t, []int64{2, 2, 2, 4}, sizes)
	assert.Equal(t, int64(10), next, "chunks must cover the extent")
}

// TestOuterDimensionOnly partitions only the outer dimension of a rank-2
// shape: two partitions covering rows [0,2) and [2,4).
func TestOuterDimensionOnly(t *testing.T) {
	it := NewShapePartitionIterator([]int64{4, 4}, []int64{2})
	require.Equal(t, int64(2), it.TotalPartitionCount())

	p0 := it.Partition(0)
	p1 := it.Partition(1)
	require.Len(t, p0, 1)
	assert.Equal(t, DimensionPartition{Lower: 0, Size: 2}, p0[0])
	assert.Equal(t, DimensionPartition{Lower: 2, Size: 2}, p1[0])
}

// TestMixedRadixOrdering checks that partition indices decompose with the
// outermost dimension varying slowest.
func TestMixedRadixOrdering(t *testing.T) {
	it := NewShapePartitionIterator([]int64{6, 4}, []int64{3, 2})
	require.Equal(t, int64(6), it.TotalPartitionCount())

	// index = outerChunk*2 + innerChunk
	p := it.Partition(3)
	assert.Equal(t, int64(2), p[0].Lower, "outer chunk 1 starts at row 2")
	assert.Equal(t, int64(2), p[1].Lower, "inner chunk 1 starts at column 2)")
}

// TestCoverage verifies, per configured dimension, that the chunks tile the
// extent with no gaps and no overlaps.
func TestCoverage(t *testing.T) {
	shapes := [][]int64{{7, 9}, {16}, {5, 5, 8}}
	counts := [][]int64{{3, 2}, {5}, {2, 3}}

	for c, shape := range shapes {
		it := NewShapePartitionIterator(shape, counts[c])
		total := it.TotalPartitionCount()

		for d := range counts[c] {
			seen := make(map[[2]int64]bool)
			for p := int64(0); p < total; p++ {
				dim := it.Partition(p)[d]
				seen[[2]int64{dim.Lower, dim.Lower + dim.Size}] = true
			}

			chunks := make([][2]int64, 0, len(seen))
			for ch := range seen {
				chunks = append(chunks, ch)
			}
			sort.Slice(chunks, func(i, j int) bool { return chunks[i][0] < chunks[j][0] })

			next := int64(0)
			for _, ch := range chunks {
				require.Equal(t, next, ch[0], "shape %v dim %d has a gap or overlap", shape, d)
				require.LessOrEqual(t, ch[0], ch[1])
				next = ch[1]
			}
			require.Equal(t, shape[d], next, "shape %v dim %d not fully covered", shape, d)
		}
	}
}

func TestTotalPartitionCount(t *testing.T) {
	assert.Equal(t, int64(1), TotalPartitionCount([]int64{1}))
	assert.Equal(t, int64(24), TotalPartitionCount([]int64{2, 3, 4}))
}

func TestInvalidConfiguration(t *testing.T) {
	assert.Panics(t, func() { NewShapePartitionIterator([]int64{8}, nil) })
	assert.Panics(t, func() { NewShapePartitionIterator([]int64{8}, []int64{2, 2}) })
	assert.Panics(t, func() { NewShapePartitionIterator([]int64{8}, []int64{0}) })
	it := NewShapePartitionIterator([]int64{8}, []int64{2})
	assert.Panics(t, func() { it.Partition(2) })
}
