package emitter

import (
	"github.com/tenscale/kernelgen/codegen"
)

// ThreadDim tells the launcher how many parallel execution units the kernel
// expects. Only the x dimension carries partitions; serial kernels report 1.
type ThreadDim struct {
	X int64
}

// SerialThreadDim is the sizing of a kernel launched as a single unit
func SerialThreadDim() ThreadDim {
	return ThreadDim{X: 1}
}

// BufferAllocation describes one backing buffer of a kernel. Unpopulated by
// this generator: specs carry an empty allocation list until emission from a
// buffer-assigned graph is supported.
type BufferAllocation struct {
	Index int64
	Size  int64
}

// BufferUse classifies how a kernel touches a buffer
type BufferUse int

const (
	BufferRead BufferUse = iota
	BufferWrite
)

// BufferUses maps buffer parameter names to their usage kind
type BufferUses map[string]BufferUse

// KernelSpec is the kernel artifact produced by emission: launch sizing,
// buffer metadata, and the generated module with the kernel's exported
// symbol name. The caller becomes sole owner of the spec and its module.
type KernelSpec struct {
	ThreadDims        ThreadDim
	BufferAllocations []BufferAllocation
	BufferUses        BufferUses
	Module            *codegen.Module
	ExportedName      string
}
