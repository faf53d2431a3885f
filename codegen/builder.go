package codegen

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a handle to a generated C expression, usually the name of a local
// declared by a Builder. Values are immutable once created.
type Value struct {
	expr string
}

// NewValue wraps a raw C expression as a value handle
func NewValue(expr string) *Value {
	return &Value{expr: expr}
}

func (v *Value) String() string {
	return v.expr
}

// I64 returns a value handle for an integer literal
func I64(v int64) *Value {
	return &Value{expr: strconv.FormatInt(v, 10)}
}

// Index is an ordered multi-dimensional element index, outermost first
type Index []*Value

// Kernel is a generated kernel function: a signature plus a body of
// statement lines at tracked nesting depth. Blocks left open when emission
// finishes (the prototype's partition loop) are closed at render time.
type Kernel struct {
	name   string
	params []string
	lines  []string
	depth  int
}

// Name returns the kernel's exported symbol name
func (k *Kernel) Name() string {
	return k.name
}

func (k *Kernel) render() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("@kernel void %s(%s) {\n", k.name, strings.Join(k.params, ",\n\t")))
	for _, line := range k.lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	for d := k.depth; d > 0; d-- {
		sb.WriteString(strings.Repeat("  ", d))
		sb.WriteString("}\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Builder emits statements into one kernel body. It tracks nesting depth for
// indentation and hands out collision-free local names.
type Builder struct {
	module *Module
	kernel *Kernel
	names  map[string]int
}

// newBuilder creates a builder positioned at the start of a kernel body
func newBuilder(m *Module, k *Kernel) *Builder {
	return &Builder{
		module: m,
		kernel: k,
		names:  make(map[string]int),
	}
}

// Module returns the module the builder emits globals into
func (b *Builder) Module() *Module {
	return b.module
}

// Fresh reserves a local name, suffixing on collision
func (b *Builder) Fresh(prefix string) string {
	n := b.names[prefix]
	b.names[prefix] = n + 1
	if n == 0 {
		return prefix
	}
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Linef emits one formatted statement line at the current nesting depth
func (b *Builder) Linef(format string, args ...interface{}) {
	indent := strings.Repeat("  ", b.kernel.depth+1)
	b.kernel.lines = append(b.kernel.lines, indent+fmt.Sprintf(format, args...))
}

// DeclInt64 declares a const long local initialized to expr
func (b *Builder) DeclInt64(name, expr string) *Value {
	local := b.Fresh(name)
	b.Linef("const long %s = %s;", local, expr)
	return &Value{expr: local}
}

// DeclReal declares a const real_t local initialized to expr
func (b *Builder) DeclReal(name, expr string) *Value {
	local := b.Fresh(name)
	b.Linef("const real_t %s = %s;", local, expr)
	return &Value{expr: local}
}

// DeclMutableReal declares an assignable real_t local initialized to expr
func (b *Builder) DeclMutableReal(name, expr string) *Value {
	local := b.Fresh(name)
	b.Linef("real_t %s = %s;", local, expr)
	return &Value{expr: local}
}

// Assign emits an assignment to a previously declared mutable local
func (b *Builder) Assign(target *Value, expr string) {
	b.Linef("%s = %s;", target, expr)
}

// LoopKind selects the OCCA annotation attached to an emitted loop
type LoopKind int

const (
	SerialLoop LoopKind = iota // plain C for loop
	OuterLoop                  // OCCA @outer parallel loop
	InnerLoop                  // OCCA @inner parallel loop
)

func (lk LoopKind) annotation() string {
	switch lk {
	case OuterLoop:
		return "; @outer"
	case InnerLoop:
		return "; @inner"
	default:
		return ""
	}
}

// OpenLoop emits a for-loop header over [lower, upper) and enters its body.
// The returned value is the loop induction variable. Every OpenLoop must be
// paired with CloseLoop, except the prototype's partition loop which stays
// open for the kernel's lifetime and is closed at render time.
func (b *Builder) OpenLoop(name string, lower, upper *Value, kind LoopKind) *Value {
	iv := b.Fresh(name)
	b.Linef("for (long %s = %s; %s < %s; ++%s%s) {", iv, lower, iv, upper, iv, kind.annotation())
	b.kernel.depth++
	return &Value{expr: iv}
}

// CloseLoop leaves the innermost open loop body
func (b *Builder) CloseLoop() {
	if b.kernel.depth == 0 {
		panic("CloseLoop without matching OpenLoop")
	}
	b.kernel.depth--
	b.Linef("}")
}
