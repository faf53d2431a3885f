package codegen

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/tenscale/kernelgen/ops"
)

func TestEmitKernelPrototype(t *testing.T) {
	g := ops.NewGraph()
	x := g.AddParameter("x", 0, ops.Shape{16})
	y := g.AddParameter("y", 1, ops.Shape{16})
	sum := g.AddBinary("sum", ops.Add, x, y)

	m := NewModule("test_module")
	proto, err := EmitKernelPrototype(m, g, sum, nil, "_kernel")
	if err != nil {
		t.Fatalf("EmitKernelPrototype failed: %v", err)
	}

	if proto.Name != "sum_kernel" {
		t.Errorf("unexpected kernel name %q", proto.Name)
	}
	if len(proto.Arguments) != 2 || len(proto.Results) != 1 {
		t.Fatalf("unexpected arity: %d args, %d results", len(proto.Arguments), len(proto.Results))
	}
	if proto.ThreadID.X.String() != "part" {
		t.Errorf("unexpected thread id %q", proto.ThreadID.X)
	}

	src := m.Source()
	for _, want := range []string{
		"@kernel void sum_kernel(const long num_threads",
		"const real_t* arg0",
		"const real_t* arg1",
		"real_t* res0",
		"for (long part = 0; part < num_threads; ++part; @outer)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q:\n%s", want, src)
		}
	}
}

func TestPrototypeSanitizesSymbols(t *testing.T) {
	g := ops.NewGraph()
	x := g.AddParameter("x", 0, ops.Shape{4})
	neg := g.AddUnary("my-op.1", ops.Negate, x)

	m := NewModule("test_module")
	proto, err := EmitKernelPrototype(m, g, neg, nil, "_kernel")
	if err != nil {
		t.Fatalf("EmitKernelPrototype failed: %v", err)
	}
	if proto.Name != "my_op_1_kernel" {
		t.Errorf("unexpected sanitized name %q", proto.Name)
	}
}

func TestArrayRefLinearization(t *testing.T) {
	g := ops.NewGraph()
	x := g.AddParameter("x", 0, ops.Shape{2, 3, 4})
	neg := g.AddUnary("neg", ops.Negate, x)

	m := NewModule("test_module")
	proto, err := EmitKernelPrototype(m, g, neg, nil, "_kernel")
	if err != nil {
		t.Fatalf("EmitKernelPrototype failed: %v", err)
	}

	b := proto.Body
	idx := Index{NewValue("i"), NewValue("j"), NewValue("k")}
	v := proto.Arguments[0].EmitReadElement(b, idx)
	proto.Results[0].EmitWriteElement(b, idx, v)

	src := m.Source()
	if !strings.Contains(src, "arg0[((i) * 3 + j) * 4 + k]") {
		t.Errorf("read not linearized row-major:\n%s", src)
	}
	if !strings.Contains(src, "res0[((i) * 3 + j) * 4 + k] = arg0_val;") {
		t.Errorf("write not linearized row-major:\n%s", src)
	}
}

func TestAddConstInt64Array(t *testing.T) {
	m := NewModule("test_module")
	sym := m.AddConstInt64Array("bounds", []int64{0, 32, 32, 64})
	if sym != "bounds" {
		t.Errorf("unexpected symbol %q", sym)
	}
	if !strings.Contains(m.Source(), "static const long bounds[4] = {0, 32, 32, 64};") {
		t.Errorf("constant array not emitted:\n%s", m.Source())
	}
}

func TestGlobalNameCollisions(t *testing.T) {
	m := NewModule("test_module")
	first := m.AddConstInt64Array("tbl", []int64{1})
	second := m.AddConstInt64Array("tbl", []int64{2})
	if first == second {
		t.Errorf("colliding globals share symbol %q", first)
	}
	if second != "tbl_1" {
		t.Errorf("unexpected uniquified symbol %q", second)
	}
}

func TestAddStaticMatrix(t *testing.T) {
	m := NewModule("test_module")
	mtx := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	sym := m.AddStaticMatrix("M", mtx)

	src := m.Source()
	if !strings.Contains(src, "static const real_t "+sym+"[2][2] = {") {
		t.Errorf("static matrix not emitted:\n%s", src)
	}
	if !strings.Contains(src, "4.000000000000000e+00") {
		t.Errorf("matrix values not formatted:\n%s", src)
	}
}

func TestFloat32Module(t *testing.T) {
	m := NewModule("test_module")
	m.SetFloatType(Float32)
	m.AddStaticMatrix("M", mat.NewDense(1, 1, []float64{1.5}))
	m.AddConstRealArray("vec", []float64{0.25})

	src := m.Source()
	if !strings.Contains(src, "typedef float real_t;") {
		t.Errorf("float typedef missing:\n%s", src)
	}
	if !strings.Contains(src, "1.5000000e+00f") {
		t.Errorf("matrix literal missing float suffix:\n%s", src)
	}
	if !strings.Contains(src, "2.5000000e-01f") {
		t.Errorf("array literal missing float suffix:\n%s", src)
	}
}

func TestBuilderLoopsCloseAtRender(t *testing.T) {
	g := ops.NewGraph()
	x := g.AddParameter("x", 0, ops.Shape{8})
	neg := g.AddUnary("neg", ops.Negate, x)

	m := NewModule("test_module")
	proto, err := EmitKernelPrototype(m, g, neg, nil, "_kernel")
	if err != nil {
		t.Fatalf("EmitKernelPrototype failed: %v", err)
	}

	b := proto.Body
	iv := b.OpenLoop("i", I64(0), I64(8), InnerLoop)
	b.Linef("res0[%s] = -arg0[%s];", iv, iv)
	b.CloseLoop()

	src := m.Source()
	open := strings.Count(src, "{")
	closed := strings.Count(src, "}")
	if open != closed {
		t.Errorf("unbalanced braces (%d open, %d closed):\n%s", open, closed, src)
	}
	if !strings.Contains(src, "for (long i = 0; i < 8; ++i; @inner)") {
		t.Errorf("inner loop not annotated:\n%s", src)
	}
}

func TestBuilderFreshNames(t *testing.T) {
	g := ops.NewGraph()
	x := g.AddParameter("x", 0, ops.Shape{8})
	neg := g.AddUnary("neg", ops.Negate, x)

	m := NewModule("test_module")
	proto, _ := EmitKernelPrototype(m, g, neg, nil, "_kernel")

	b := proto.Body
	if b.Fresh("t") != "t" || b.Fresh("t") != "t_1" || b.Fresh("t") != "t_2" {
		t.Error("Fresh does not uniquify names")
	}
}
