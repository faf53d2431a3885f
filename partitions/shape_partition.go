// Package partitions splits dense rectangular shapes into contiguous
// per-dimension slices for partition-parallel kernel execution.
//
// The outermost dimensions of a shape are each split into a configured
// number of chunks; a partition is one combination of chunks, identified by
// a single linear partition index. Per dimension the chunks are contiguous,
// gap-free and non-overlapping, and together cover the full extent.
package partitions

import (
	"fmt"
)

// DimensionPartition is one dimension's slice of a partition: the elements
// [Lower, Lower+Size) of that dimension.
type DimensionPartition struct {
	Lower int64
	Size  int64
}

// ShapePartitionIterator enumerates the partitions of a shape split along
// its outer dimensions. Partition indices are linear over the mixed-radix
// space of per-dimension chunk counts, outermost dimension varying slowest.
type ShapePartitionIterator struct {
	shape  []int64
	counts []int64
}

// NewShapePartitionIterator creates an iterator over the partitions of
// shape, where outerDimensionPartitions lists how many chunks each outer
// dimension is split into, outermost first.
func NewShapePartitionIterator(shape []int64, outerDimensionPartitions []int64) *ShapePartitionIterator {
	if len(outerDimensionPartitions) == 0 {
		panic("outer dimension partitions cannot be empty")
	}
	if len(outerDimensionPartitions) > len(shape) {
		panic(fmt.Sprintf("cannot partition %d dimensions of a rank-%d shape",
			len(outerDimensionPartitions), len(shape)))
	}
	for d, c := range outerDimensionPartitions {
		if c < 1 {
			panic(fmt.Sprintf("dimension %d has non-positive partition count %d", d, c))
		}
	}

	it := &ShapePartitionIterator{
		shape:  make([]int64, len(shape)),
		counts: make([]int64, len(outerDimensionPartitions)),
	}
	copy(it.shape, shape)
	copy(it.counts, outerDimensionPartitions)
	return it
}

// TotalPartitionCount returns the number of partitions the shape splits into
func (it *ShapePartitionIterator) TotalPartitionCount() int64 {
	return TotalPartitionCount(it.counts)
}

// Partition returns the per-dimension slices of partition index. The index
// is decomposed mixed-radix over the chunk counts, outermost dimension
// first. Each dimension's extent divides into equal chunks of extent/count
// elements, with the last chunk absorbing the remainder.
func (it *ShapePartitionIterator) Partition(index int64) []DimensionPartition {
	total := it.TotalPartitionCount()
	if index < 0 || index >= total {
		panic(fmt.Sprintf("partition index %d out of range [0, %d)", index, total))
	}

	out := make([]DimensionPartition, len(it.counts))
	for d := len(it.counts) - 1; d >= 0; d-- {
		chunk := index % it.counts[d]
		index /= it.counts[d]

		extent := it.shape[d]
		base := extent / it.counts[d]
		lower := chunk * base
		size := base
		if chunk == it.counts[d]-1 {
			size = extent - lower
		}
		out[d] = DimensionPartition{Lower: lower, Size: size}
	}
	return out
}

// TotalPartitionCount returns the product of the per-dimension chunk counts
func TotalPartitionCount(outerDimensionPartitions []int64) int64 {
	total := int64(1)
	for _, c := range outerDimensionPartitions {
		total *= c
	}
	return total
}
