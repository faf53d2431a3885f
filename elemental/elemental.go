// Package elemental turns a single operation into a generator of per-element
// C expressions. A generator, given a builder and an output element index,
// emits the statements computing that element and returns handles to the
// computed values, one per result. Generators are restartable: each call is
// independent and carries no state between indices.
package elemental

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tenscale/kernelgen/codegen"
	"github.com/tenscale/kernelgen/ops"
)

// ElementGenerator emits the computation of one output element at index
type ElementGenerator func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error)

// OperandGenerators maps operand positions to their element generators
type OperandGenerators []ElementGenerator

// MakeElementGenerator builds the element generator for an operation, given
// generators for its operands. Operand generators are indexed positionally:
// the generator for the operation's i-th operand sits at position i.
func MakeElementGenerator(g *ops.Graph, id ops.NodeID, operands OperandGenerators) (ElementGenerator, error) {
	op := g.Node(id)

	switch {
	case op.Op.IsUnary():
		return makeUnaryGenerator(op, operands)
	case op.Op.IsBinary():
		return makeBinaryGenerator(op, operands)
	}

	switch op.Op {
	case ops.Constant:
		return makeConstantGenerator(op)
	case ops.Iota:
		return makeIotaGenerator(op)
	case ops.Parameter:
		if op.ParameterIndex < 0 || op.ParameterIndex >= len(operands) {
			return nil, fmt.Errorf("parameter %s binds position %d but only %d operand generators are provided",
				op.Name, op.ParameterIndex, len(operands))
		}
		return operands[op.ParameterIndex], nil
	case ops.Fusion:
		return makeFusionGenerator(g, op, operands)
	case ops.Reduce:
		return makeReduceGenerator(g, op, operands)
	case ops.ReduceWindow:
		return makeReduceWindowGenerator(g, op, operands)
	}

	return nil, fmt.Errorf("no element generator for %s operation %s", op.Op, op.Name)
}

// single invokes an operand generator expected to produce exactly one value
func single(gen ElementGenerator, b *codegen.Builder, index codegen.Index) (*codegen.Value, error) {
	vals, err := gen(b, index)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("operand generator produced %d values, want 1", len(vals))
	}
	return vals[0], nil
}

func makeUnaryGenerator(op *ops.Operation, operands OperandGenerators) (ElementGenerator, error) {
	if len(operands) != 1 {
		return nil, fmt.Errorf("%s %s has %d operand generators, want 1", op.Op, op.Name, len(operands))
	}
	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		x, err := single(operands[0], b, index)
		if err != nil {
			return nil, err
		}
		expr, err := unaryExpr(op.Op, x.String())
		if err != nil {
			return nil, err
		}
		return []*codegen.Value{b.DeclReal("v", expr)}, nil
	}, nil
}

func makeBinaryGenerator(op *ops.Operation, operands OperandGenerators) (ElementGenerator, error) {
	if len(operands) != 2 {
		return nil, fmt.Errorf("%s %s has %d operand generators, want 2", op.Op, op.Name, len(operands))
	}
	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		x, err := single(operands[0], b, index)
		if err != nil {
			return nil, err
		}
		y, err := single(operands[1], b, index)
		if err != nil {
			return nil, err
		}
		expr, err := binaryExpr(op.Op, x.String(), y.String())
		if err != nil {
			return nil, err
		}
		return []*codegen.Value{b.DeclReal("v", expr)}, nil
	}, nil
}

// makeConstantGenerator embeds the literal into the module on first use and
// indexes it per element. Rank-2 literals are embedded as static matrices,
// scalars are inlined, everything else becomes a flat constant array.
func makeConstantGenerator(op *ops.Operation) (ElementGenerator, error) {
	lit := op.Literal
	if lit == nil {
		return nil, fmt.Errorf("constant %s has no literal", op.Name)
	}

	symbol := ""
	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		if lit.IsScalar() {
			return []*codegen.Value{b.DeclReal("cst", formatScalar(lit.Data[0]))}, nil
		}
		if len(index) != lit.Shape.Rank() {
			return nil, fmt.Errorf("constant %s indexed with rank %d, shape is %s",
				op.Name, len(index), lit.Shape)
		}

		if lit.Shape.Rank() == 2 {
			if symbol == "" {
				m, err := lit.Matrix()
				if err != nil {
					return nil, err
				}
				symbol = b.Module().AddStaticMatrix(op.Name+"_data", m)
			}
			expr := fmt.Sprintf("%s[%s][%s]", symbol, index[0], index[1])
			return []*codegen.Value{b.DeclReal("cst", expr)}, nil
		}

		if symbol == "" {
			symbol = b.Module().AddConstRealArray(op.Name+"_data", lit.Data)
		}
		ref := codegen.ArrayRef{Name: symbol, Shape: lit.Shape}
		return []*codegen.Value{ref.EmitReadElement(b, index)}, nil
	}, nil
}

func makeIotaGenerator(op *ops.Operation) (ElementGenerator, error) {
	dim := op.IotaDimension
	if dim < 0 || dim >= op.Shape.Rank() {
		return nil, fmt.Errorf("iota %s dimension %d out of range for shape %s", op.Name, dim, op.Shape)
	}
	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		return []*codegen.Value{b.DeclReal("iota", fmt.Sprintf("(real_t)(%s)", index[dim]))}, nil
	}, nil
}

// makeFusionGenerator recursively builds generators over the fused subgraph.
// Parameter nodes bind to the fusion's operand generators; every fusion root
// contributes one result value.
func makeFusionGenerator(g *ops.Graph, op *ops.Operation, operands OperandGenerators) (ElementGenerator, error) {
	if len(op.FusionRoots) == 0 {
		return nil, fmt.Errorf("fusion %s has no roots", op.Name)
	}
	if len(op.FusionRoots) != op.NumResults() {
		return nil, fmt.Errorf("fusion %s has %d roots but %d results",
			op.Name, len(op.FusionRoots), op.NumResults())
	}

	memo := make(map[ops.NodeID]ElementGenerator)
	var nodeGenerator func(id ops.NodeID) (ElementGenerator, error)
	nodeGenerator = func(id ops.NodeID) (ElementGenerator, error) {
		if gen, ok := memo[id]; ok {
			return gen, nil
		}
		node := g.Node(id)
		nested := make(OperandGenerators, len(node.Operands))
		for i, operand := range node.Operands {
			gen, err := nodeGenerator(operand)
			if err != nil {
				return nil, err
			}
			nested[i] = gen
		}
		if node.Op == ops.Parameter {
			nested = operands
		}
		gen, err := MakeElementGenerator(g, id, nested)
		if err != nil {
			return nil, err
		}
		memo[id] = gen
		return gen, nil
	}

	roots := make([]ElementGenerator, len(op.FusionRoots))
	for i, root := range op.FusionRoots {
		gen, err := nodeGenerator(root)
		if err != nil {
			return nil, err
		}
		roots[i] = gen
	}

	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		out := make([]*codegen.Value, 0, len(roots))
		for _, root := range roots {
			v, err := single(root, b, index)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}, nil
}

// makeReduceGenerator emits, per output element, an accumulator loop over
// the reduced dimensions of the input, combining with the reduce opcode.
func makeReduceGenerator(g *ops.Graph, op *ops.Operation, operands OperandGenerators) (ElementGenerator, error) {
	if op.NumResults() > 1 {
		return nil, fmt.Errorf("variadic reduce %s is not supported", op.Name)
	}
	if len(op.Operands) == 0 || len(operands) == 0 {
		return nil, fmt.Errorf("reduce %s has no input operand", op.Name)
	}
	if op.Init == nil || !op.Init.IsScalar() {
		return nil, fmt.Errorf("reduce %s requires a scalar init literal", op.Name)
	}
	if !op.Combiner.IsBinary() {
		return nil, fmt.Errorf("reduce %s combiner %s is not a binary opcode", op.Name, op.Combiner)
	}

	inputShape := g.Node(op.Operands[0]).Shape
	reduced := make(map[int]bool, len(op.ReduceDims))
	for _, d := range op.ReduceDims {
		if d < 0 || int(d) >= inputShape.Rank() {
			return nil, fmt.Errorf("reduce %s dimension %d out of range for input shape %s",
				op.Name, d, inputShape)
		}
		reduced[int(d)] = true
	}
	reducedDims := make([]int, 0, len(reduced))
	for d := range reduced {
		reducedDims = append(reducedDims, d)
	}
	sort.Ints(reducedDims)

	input := operands[0]
	init := formatScalar(op.Init.Data[0])

	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		acc := b.DeclMutableReal("acc", init)

		ivs := make(map[int]*codegen.Value, len(reducedDims))
		for _, d := range reducedDims {
			ivs[d] = b.OpenLoop(fmt.Sprintf("r%d", d), codegen.I64(0), codegen.I64(inputShape.Dim(d)), codegen.SerialLoop)
		}

		full := make(codegen.Index, inputShape.Rank())
		kept := 0
		for d := 0; d < inputShape.Rank(); d++ {
			if reduced[d] {
				full[d] = ivs[d]
			} else {
				full[d] = index[kept]
				kept++
			}
		}

		v, err := single(input, b, full)
		if err != nil {
			return nil, err
		}
		expr, err := binaryExpr(op.Combiner, acc.String(), v.String())
		if err != nil {
			return nil, err
		}
		b.Assign(acc, expr)

		for range reducedDims {
			b.CloseLoop()
		}
		return []*codegen.Value{acc}, nil
	}, nil
}

// makeReduceWindowGenerator emits a window accumulation per output element.
// Windows slide with unit stride and no padding: input index = output index
// plus the in-window offset.
func makeReduceWindowGenerator(g *ops.Graph, op *ops.Operation, operands OperandGenerators) (ElementGenerator, error) {
	if op.NumResults() > 1 {
		return nil, fmt.Errorf("variadic reduce-window %s is not supported", op.Name)
	}
	if len(op.Operands) == 0 || len(operands) == 0 {
		return nil, fmt.Errorf("reduce-window %s has no input operand", op.Name)
	}
	if op.Init == nil || !op.Init.IsScalar() {
		return nil, fmt.Errorf("reduce-window %s requires a scalar init literal", op.Name)
	}
	if !op.Combiner.IsBinary() {
		return nil, fmt.Errorf("reduce-window %s combiner %s is not a binary opcode", op.Name, op.Combiner)
	}

	inputShape := g.Node(op.Operands[0]).Shape
	if len(op.WindowDims) != inputShape.Rank() {
		return nil, fmt.Errorf("reduce-window %s has %d window dimensions for input shape %s",
			op.Name, len(op.WindowDims), inputShape)
	}

	input := operands[0]
	init := formatScalar(op.Init.Data[0])
	window := op.WindowDims

	return func(b *codegen.Builder, index codegen.Index) ([]*codegen.Value, error) {
		acc := b.DeclMutableReal("acc", init)

		full := make(codegen.Index, inputShape.Rank())
		open := 0
		for d := 0; d < inputShape.Rank(); d++ {
			if window[d] <= 1 {
				full[d] = index[d]
				continue
			}
			iv := b.OpenLoop(fmt.Sprintf("w%d", d), codegen.I64(0), codegen.I64(window[d]), codegen.SerialLoop)
			full[d] = codegen.NewValue(fmt.Sprintf("%s + %s", index[d], iv))
			open++
		}

		v, err := single(input, b, full)
		if err != nil {
			return nil, err
		}
		expr, err := binaryExpr(op.Combiner, acc.String(), v.String())
		if err != nil {
			return nil, err
		}
		b.Assign(acc, expr)

		for ; open > 0; open-- {
			b.CloseLoop()
		}
		return []*codegen.Value{acc}, nil
	}, nil
}

func unaryExpr(op ops.OpCode, x string) (string, error) {
	switch op {
	case ops.Negate:
		return fmt.Sprintf("-(%s)", x), nil
	case ops.Abs:
		return fmt.Sprintf("fabs(%s)", x), nil
	case ops.Exp:
		return fmt.Sprintf("exp(%s)", x), nil
	}
	return "", fmt.Errorf("no unary expression for opcode %s", op)
}

func binaryExpr(op ops.OpCode, x, y string) (string, error) {
	switch op {
	case ops.Add:
		return fmt.Sprintf("%s + %s", x, y), nil
	case ops.Subtract:
		return fmt.Sprintf("%s - %s", x, y), nil
	case ops.Multiply:
		return fmt.Sprintf("%s * %s", x, y), nil
	case ops.Divide:
		return fmt.Sprintf("%s / %s", x, y), nil
	case ops.Maximum:
		return fmt.Sprintf("fmax(%s, %s)", x, y), nil
	case ops.Minimum:
		return fmt.Sprintf("fmin(%s, %s)", x, y), nil
	}
	return "", fmt.Errorf("no binary expression for opcode %s", op)
}

func formatScalar(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
