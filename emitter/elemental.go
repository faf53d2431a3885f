// Package emitter compiles a single operation into a runnable kernel: an
// OCCA C source module plus the launch metadata (thread sizing, buffer
// bindings) needed to execute it. One generated kernel body runs correctly
// whether launched serially or split into partitions: each execution unit
// resolves its own iteration bounds from an embedded constant table indexed
// by its thread id.
package emitter

import (
	"fmt"

	"github.com/tenscale/kernelgen/codegen"
	"github.com/tenscale/kernelgen/elemental"
	"github.com/tenscale/kernelgen/ops"
	"github.com/tenscale/kernelgen/partitions"
)

// ElementalKernelEmitter compiles one operation into a KernelSpec. The
// emitter wraps exactly one operation for its lifetime; EmitKernelSpec is
// meaningful at most once per instance.
type ElementalKernelEmitter struct {
	graph *ops.Graph
	node  ops.NodeID

	bufferAssignment *codegen.BufferAssignment
}

// NewElementalKernelEmitter creates an emitter for the operation node in
// graph. The graph outlives the emitter; operand references stay indices
// into it.
func NewElementalKernelEmitter(graph *ops.Graph, node ops.NodeID) *ElementalKernelEmitter {
	if graph == nil {
		panic("graph cannot be nil")
	}
	return &ElementalKernelEmitter{graph: graph, node: node}
}

// EmitKernelSpec builds a fresh module, emits the operation's kernel into
// it, and packages the result. On failure nothing useful is produced and
// the partially built module is discarded by the caller.
func (e *ElementalKernelEmitter) EmitKernelSpec() (*KernelSpec, error) {
	op := e.graph.Node(e.node)

	module := codegen.NewModule(op.Name + "_elemental_kernel_module")

	prototype, err := codegen.EmitKernelPrototype(module, e.graph, e.node, e.bufferAssignment, "_kernel")
	if err != nil {
		return nil, err
	}
	b := prototype.Body

	operandGenerators := make(elemental.OperandGenerators, len(op.Operands))
	for i := range op.Operands {
		arg := prototype.Arguments[i]
		operandGenerators[i] = func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
			return []*codegen.Value{arg.EmitReadElement(b, index)}, nil
		}
	}

	generator, err := elemental.MakeElementGenerator(e.graph, e.node, operandGenerators)
	if err != nil {
		return nil, err
	}

	threadDims, err := e.emitElementalLoops(b, op, prototype, generator)
	if err != nil {
		return nil, err
	}

	return &KernelSpec{
		ThreadDims:        threadDims,
		BufferAllocations: nil,
		BufferUses:        BufferUses{},
		Module:            module,
		ExportedName:      prototype.Name,
	}, nil
}

// emitElementalLoops selects the emission strategy for the operation and
// emits its loops. The precondition comes first: operations with more than
// one result are only emittable for fusion, reduce and reduce-window
// opcodes. Multi-result emission is always serial; a parallel config on a
// multi-result operation is ignored, not an error. A single-result
// operation with a parallel config gets a partitioned loop over the bounds
// table and reports the total partition count as its thread sizing.
func (e *ElementalKernelEmitter) emitElementalLoops(b *codegen.Builder, op *ops.Operation,
	prototype *codegen.KernelPrototype, generator elemental.ElementGenerator) (ThreadDim, error) {

	multipleResults := len(prototype.Results) > 1
	supportsMultipleResults := op.Op == ops.Fusion ||
		op.Op == ops.Reduce ||
		op.Op == ops.ReduceWindow

	if multipleResults && !supportsMultipleResults {
		return ThreadDim{}, fmt.Errorf(
			"multi-output host kernels are not supported for %s operations", op.Op)
	}

	parallelConfig := GetParallelConfig(op)

	if multipleResults {
		if err := NewLoopEmitter(generator, prototype.Results, b).EmitLoop(loopName(op)); err != nil {
			return ThreadDim{}, err
		}
		return SerialThreadDim(), nil
	}

	result := prototype.Results[0]

	// A single parallel partition with dynamic bounds computed from the
	// thread index.
	if parallelConfig != nil {
		bounds := emitParallelPartitionBounds(b, prototype, parallelConfig, op.Shape, op.Name)
		if err := NewParallelLoopEmitter(generator, result, bounds, b).EmitLoop(loopName(op)); err != nil {
			return ThreadDim{}, err
		}
		return ThreadDim{
			X: partitions.TotalPartitionCount(parallelConfig.OuterDimensionPartitions),
		}, nil
	}

	if err := NewLoopEmitter(generator, []codegen.ArrayRef{result}, b).EmitLoop(loopName(op)); err != nil {
		return ThreadDim{}, err
	}
	return SerialThreadDim(), nil
}

func loopName(op *ops.Operation) string {
	if op.Name != "" {
		return op.Name
	}
	return op.Op.String()
}
