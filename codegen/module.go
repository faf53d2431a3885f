package codegen

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Module is a generated OCCA C translation unit under construction: type
// definitions, read-only global data, and kernel functions. Once emission
// completes the module is treated as immutable; Source renders the whole
// unit as a single compilable string.
type Module struct {
	name      string
	floatType DataType

	globals     []string
	globalNames map[string]int

	kernels []*Kernel
}

// NewModule creates an empty module with double-precision real_t
func NewModule(name string) *Module {
	return &Module{
		name:        name,
		floatType:   Float64,
		globalNames: make(map[string]int),
	}
}

// Name returns the module name
func (m *Module) Name() string {
	return m.name
}

// FloatType returns the data type backing real_t
func (m *Module) FloatType() DataType {
	return m.floatType
}

// SetFloatType selects the precision backing real_t in generated source
func (m *Module) SetFloatType(dt DataType) {
	m.floatType = dt
}

// uniqueGlobalName reserves a collision-free global symbol name. The first
// request for a name gets it verbatim; later requests get a numeric suffix.
func (m *Module) uniqueGlobalName(name string) string {
	n := m.globalNames[name]
	m.globalNames[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, n)
}

// AddConstInt64Array emits a flat private read-only array of 64-bit integers
// and returns the symbol name it was emitted under.
func (m *Module) AddConstInt64Array(name string, data []int64) string {
	sym := m.uniqueGlobalName(name)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("static const long %s[%d] = {", sym, len(data)))
	for i, v := range data {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d", v))
	}
	sb.WriteString("};\n")

	m.globals = append(m.globals, sb.String())
	return sym
}

// AddConstRealArray emits a flat private read-only array of real_t values
// and returns the symbol name it was emitted under.
func (m *Module) AddConstRealArray(name string, data []float64) string {
	sym := m.uniqueGlobalName(name)
	suffix := TypeSuffix(m.floatType)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("static const real_t %s[%d] = {", sym, len(data)))
	for i, v := range data {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(m.formatReal(v, suffix))
	}
	sb.WriteString("};\n")

	m.globals = append(m.globals, sb.String())
	return sym
}

// AddStaticMatrix emits a rank-2 matrix as a static const 2-D array and
// returns the symbol name it was emitted under.
func (m *Module) AddStaticMatrix(name string, mtx mat.Matrix) string {
	sym := m.uniqueGlobalName(name)
	rows, cols := mtx.Dims()
	suffix := TypeSuffix(m.floatType)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("static const real_t %s[%d][%d] = {\n", sym, rows, cols))
	for i := 0; i < rows; i++ {
		sb.WriteString("    {")
		for j := 0; j < cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.formatReal(mtx.At(i, j), suffix))
		}
		sb.WriteString("}")
		if i < rows-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("};\n")

	m.globals = append(m.globals, sb.String())
	return sym
}

func (m *Module) formatReal(v float64, suffix string) string {
	if m.floatType == Float32 {
		return fmt.Sprintf("%.7e%s", v, suffix)
	}
	return fmt.Sprintf("%.15e", v)
}

// addKernel registers a kernel function with the module
func (m *Module) addKernel(k *Kernel) {
	m.kernels = append(m.kernels, k)
}

// Source renders the module as a complete OCCA C translation unit:
// typedefs, then globals, then kernel functions, in emission order.
func (m *Module) Source() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("// module: %s\n", m.name))
	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n\n", TypeName(m.floatType)))

	for _, g := range m.globals {
		sb.WriteString(g)
	}
	if len(m.globals) > 0 {
		sb.WriteString("\n")
	}

	for _, k := range m.kernels {
		sb.WriteString(k.render())
		sb.WriteString("\n")
	}

	return sb.String()
}
