package emitter

import (
	"fmt"

	"github.com/tenscale/kernelgen/codegen"
	"github.com/tenscale/kernelgen/elemental"
)

// LoopEmitter emits a whole-buffer loop nest covering the full result shape
// and writing every result buffer. The innermost loop carries the OCCA
// @inner annotation; rank-0 results get a unit inner loop so the kernel
// still satisfies the @outer/@inner structure.
type LoopEmitter struct {
	generator elemental.ElementGenerator
	results   []codegen.ArrayRef
	b         *codegen.Builder
}

// NewLoopEmitter creates a whole-buffer loop emitter over one or more
// result buffers sharing an iteration shape.
func NewLoopEmitter(generator elemental.ElementGenerator, results []codegen.ArrayRef, b *codegen.Builder) *LoopEmitter {
	return &LoopEmitter{generator: generator, results: results, b: b}
}

// EmitLoop emits the loop nest. name scopes the loop induction variables.
func (e *LoopEmitter) EmitLoop(name string) error {
	shape := e.results[0].Shape
	rank := shape.Rank()

	index := make(codegen.Index, rank)
	opened := 0
	if rank == 0 {
		e.b.OpenLoop(name+"_i", codegen.I64(0), codegen.I64(1), codegen.InnerLoop)
		opened = 1
	}
	for d := 0; d < rank; d++ {
		kind := codegen.SerialLoop
		if d == rank-1 {
			kind = codegen.InnerLoop
		}
		index[d] = e.b.OpenLoop(fmt.Sprintf("%s_i%d", name, d),
			codegen.I64(0), codegen.I64(shape.Dim(d)), kind)
		opened++
	}

	if err := e.emitBody(index); err != nil {
		return err
	}

	for ; opened > 0; opened-- {
		e.b.CloseLoop()
	}
	return nil
}

func (e *LoopEmitter) emitBody(index codegen.Index) error {
	values, err := e.generator(e.b, index)
	if err != nil {
		return err
	}
	if len(values) != len(e.results) {
		return fmt.Errorf("element generator produced %d values for %d result buffers",
			len(values), len(e.results))
	}
	for i, result := range e.results {
		result.EmitWriteElement(e.b, index, values[i])
	}
	return nil
}

// ParallelLoopEmitter emits a loop nest over a single result buffer where
// the leading configured dimensions iterate only the executing partition's
// bounds; remaining dimensions iterate their full extent.
type ParallelLoopEmitter struct {
	generator elemental.ElementGenerator
	result    codegen.ArrayRef
	bounds    []PartitionBounds
	b         *codegen.Builder
}

// NewParallelLoopEmitter creates a partitioned loop emitter writing into one
// result buffer, clamped to the given per-dimension partition bounds.
func NewParallelLoopEmitter(generator elemental.ElementGenerator, result codegen.ArrayRef,
	bounds []PartitionBounds, b *codegen.Builder) *ParallelLoopEmitter {
	return &ParallelLoopEmitter{generator: generator, result: result, bounds: bounds, b: b}
}

// EmitLoop emits the partitioned loop nest. name scopes the loop induction
// variables.
func (e *ParallelLoopEmitter) EmitLoop(name string) error {
	shape := e.result.Shape
	rank := shape.Rank()
	if len(e.bounds) > rank {
		return fmt.Errorf("%d partition bounds for rank-%d result", len(e.bounds), rank)
	}

	index := make(codegen.Index, rank)
	for d := 0; d < rank; d++ {
		lower, upper := codegen.I64(0), codegen.I64(shape.Dim(d))
		if d < len(e.bounds) {
			lower, upper = e.bounds[d].Lower, e.bounds[d].Upper
		}
		kind := codegen.SerialLoop
		if d == rank-1 {
			kind = codegen.InnerLoop
		}
		index[d] = e.b.OpenLoop(fmt.Sprintf("%s_i%d", name, d), lower, upper, kind)
	}

	values, err := e.generator(e.b, index)
	if err != nil {
		return err
	}
	if len(values) != 1 {
		return fmt.Errorf("element generator produced %d values for a single result buffer", len(values))
	}
	e.result.EmitWriteElement(e.b, index, values[0])

	for d := 0; d < rank; d++ {
		e.b.CloseLoop()
	}
	return nil
}
