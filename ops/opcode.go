package ops

// OpCode identifies the computation performed by an Operation
type OpCode int

const (
	// Structural opcodes
	Parameter OpCode = iota // placeholder bound to an operand position
	Constant                // embedded literal data
	Iota                    // index value along one dimension

	// Elementwise unary opcodes
	Negate
	Abs
	Exp

	// Elementwise binary opcodes
	Add
	Subtract
	Multiply
	Divide
	Maximum
	Minimum

	// Composite opcodes
	Fusion
	Reduce
	ReduceWindow
)

var opCodeNames = map[OpCode]string{
	Parameter:    "Parameter",
	Constant:     "Constant",
	Iota:         "Iota",
	Negate:       "Negate",
	Abs:          "Abs",
	Exp:          "Exp",
	Add:          "Add",
	Subtract:     "Subtract",
	Multiply:     "Multiply",
	Divide:       "Divide",
	Maximum:      "Maximum",
	Minimum:      "Minimum",
	Fusion:       "Fusion",
	Reduce:       "Reduce",
	ReduceWindow: "ReduceWindow",
}

// String returns the bare opcode name used in diagnostics and symbol naming
func (o OpCode) String() string {
	if name, ok := opCodeNames[o]; ok {
		return name
	}
	return "Unknown"
}

// IsUnary reports whether the opcode is an elementwise unary operation
func (o OpCode) IsUnary() bool {
	switch o {
	case Negate, Abs, Exp:
		return true
	}
	return false
}

// IsBinary reports whether the opcode is an elementwise binary operation
func (o OpCode) IsBinary() bool {
	switch o {
	case Add, Subtract, Multiply, Divide, Maximum, Minimum:
		return true
	}
	return false
}
