package emitter

import (
	"fmt"

	"github.com/tenscale/kernelgen/codegen"
	"github.com/tenscale/kernelgen/ops"
	"github.com/tenscale/kernelgen/partitions"
)

// PartitionBounds is one partitioned dimension's iteration range for the
// executing partition: runtime values loaded from the embedded bounds table.
type PartitionBounds struct {
	Lower *codegen.Value
	Upper *codegen.Value
}

// buildPartitionBoundsTable enumerates every partition of shape and packs
// its per-dimension (lower, upper) bounds into a flat row-major table:
// entry (p, d, s) lives at index (p*D + d)*2 + s, with s = 0 for the lower
// bound and 1 for the upper.
func buildPartitionBoundsTable(shape ops.Shape, outerDimensionPartitions []int64) []int64 {
	it := partitions.NewShapePartitionIterator(shape, outerDimensionPartitions)
	total := it.TotalPartitionCount()
	numDims := int64(len(outerDimensionPartitions))

	table := make([]int64, 0, total*numDims*2)
	for p := int64(0); p < total; p++ {
		for _, dim := range it.Partition(p) {
			table = append(table, dim.Lower, dim.Lower+dim.Size)
		}
	}
	return table
}

// emitParallelPartitionBounds embeds the partition bounds table for shape as
// a private constant in the module and emits, for every configured
// dimension, two loads indexed by the runtime partition id (the prototype's
// thread-index x component). The returned pairs are the current partition's
// iteration bounds in configuration order.
func emitParallelPartitionBounds(b *codegen.Builder, prototype *codegen.KernelPrototype,
	config *ParallelConfig, shape ops.Shape, name string) []PartitionBounds {

	numDims := len(config.OuterDimensionPartitions)
	table := buildPartitionBoundsTable(shape, config.OuterDimensionPartitions)
	symbol := b.Module().AddConstInt64Array(name+"_parallel_bounds", table)

	partition := prototype.ThreadID.X

	bounds := make([]PartitionBounds, 0, numDims)
	for i := 0; i < numDims; i++ {
		lower := b.DeclInt64(fmt.Sprintf("lo_dim_%d", i),
			fmt.Sprintf("%s[(%s * %d + %d) * 2 + 0]", symbol, partition, numDims, i))
		upper := b.DeclInt64(fmt.Sprintf("up_dim_%d", i),
			fmt.Sprintf("%s[(%s * %d + %d) * 2 + 1]", symbol, partition, numDims, i))
		bounds = append(bounds, PartitionBounds{Lower: lower, Upper: upper})
	}
	return bounds
}
