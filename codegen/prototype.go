package codegen

import (
	"fmt"
	"strings"

	"github.com/tenscale/kernelgen/ops"
)

// ArrayRef is a view of one kernel buffer parameter: its C parameter name
// and the shape it is addressed with. Element access is row-major over the
// flattened buffer.
type ArrayRef struct {
	Name  string
	Shape ops.Shape
}

// linearize renders a row-major flat offset for a multi-dimensional index
func (a ArrayRef) linearize(index Index) string {
	if len(index) != a.Shape.Rank() {
		panic(fmt.Sprintf("index rank %d does not match array %s rank %d",
			len(index), a.Name, a.Shape.Rank()))
	}
	if len(index) == 0 {
		return "0"
	}
	expr := index[0].String()
	for d := 1; d < len(index); d++ {
		expr = fmt.Sprintf("(%s) * %d + %s", expr, a.Shape.Dim(d), index[d])
	}
	return expr
}

// EmitReadElement loads the element at index into a fresh local
func (a ArrayRef) EmitReadElement(b *Builder, index Index) *Value {
	return b.DeclReal(a.Name+"_val", fmt.Sprintf("%s[%s]", a.Name, a.linearize(index)))
}

// EmitWriteElement stores a value into the element at index
func (a ArrayRef) EmitWriteElement(b *Builder, index Index, v *Value) {
	b.Linef("%s[%s] = %s;", a.Name, a.linearize(index), v)
}

// ThreadID exposes the kernel's thread-index inputs. Only the x component
// exists: it is the partition id of the executing thread.
type ThreadID struct {
	X *Value
}

// BufferAssignment is the buffer-allocation bookkeeping context a kernel
// prototype is built against. Unpopulated in this generator: argument and
// result buffers are derived directly from the operation's arity.
type BufferAssignment struct{}

// KernelPrototype describes a generated kernel's callable surface: the
// argument and result buffer views, the thread-index input, and the builder
// positioned at the body insertion point (inside the partition loop).
type KernelPrototype struct {
	Name      string
	Arguments []ArrayRef
	Results   []ArrayRef
	ThreadID  ThreadID
	Body      *Builder
}

// EmitKernelPrototype emits a kernel function skeleton for an operation into
// the module: the signature carries a thread-count scalar, one const pointer
// per operand and one mutable pointer per result, and the body opens an
// @outer loop over thread ids whose induction variable is the partition id.
// The returned prototype's builder is positioned inside that loop.
func EmitKernelPrototype(m *Module, g *ops.Graph, id ops.NodeID, ba *BufferAssignment, suffix string) (*KernelPrototype, error) {
	op := g.Node(id)

	results := op.Results()
	if len(results) == 0 {
		return nil, fmt.Errorf("operation %s has no results", op.Name)
	}

	params := []string{"const long num_threads"}
	args := make([]ArrayRef, len(op.Operands))
	for i, operand := range op.Operands {
		name := fmt.Sprintf("arg%d", i)
		args[i] = ArrayRef{Name: name, Shape: g.Node(operand).Shape}
		params = append(params, fmt.Sprintf("const real_t* %s", name))
	}
	res := make([]ArrayRef, len(results))
	for i, shape := range results {
		name := fmt.Sprintf("res%d", i)
		res[i] = ArrayRef{Name: name, Shape: shape}
		params = append(params, fmt.Sprintf("real_t* %s", name))
	}

	kernel := &Kernel{
		name:   sanitizeSymbol(op.Name) + suffix,
		params: params,
	}
	m.addKernel(kernel)

	b := newBuilder(m, kernel)
	part := b.OpenLoop("part", I64(0), NewValue("num_threads"), OuterLoop)

	return &KernelPrototype{
		Name:      kernel.name,
		Arguments: args,
		Results:   res,
		ThreadID:  ThreadID{X: part},
		Body:      b,
	}, nil
}

// sanitizeSymbol rewrites an operation name into a valid C identifier
func sanitizeSymbol(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_kernel"
	}
	return sb.String()
}
