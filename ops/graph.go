package ops

import (
	"encoding/json"
	"fmt"
)

// NodeID is a non-owning reference to an operation within a Graph.
// Operations never hold pointers to their operands, only NodeIDs: the graph
// store owns every node and operations may be freely shared between
// consumers without aliasing concerns.
type NodeID int

// InvalidNode is the zero-value-adjacent sentinel for "no node"
const InvalidNode NodeID = -1

// BackendConfig carries backend scheduling hints attached to an operation.
// OuterDimensionPartitions lists, outermost dimension first, how many slices
// each outer dimension of the output is split into for parallel execution.
type BackendConfig struct {
	OuterDimensionPartitions []int64 `json:"outer_dimension_partitions"`
}

// Operation is a single tensor-computation node. Operands are NodeIDs into
// the owning Graph. The output shape is Shape; fusion and variadic reduce
// operations may carry additional result shapes in ExtraResults.
type Operation struct {
	Name     string
	Op       OpCode
	Shape    Shape
	Operands []NodeID

	// ExtraResults holds result shapes beyond the primary one, in order.
	ExtraResults []Shape

	// Opcode-specific payloads.
	Literal        *Literal // Constant
	ParameterIndex int      // Parameter: operand position it binds to
	IotaDimension  int      // Iota
	ReduceDims     []int64  // Reduce: dimensions of the input being reduced
	WindowDims     []int64  // ReduceWindow: window extent per dimension
	Combiner       OpCode   // Reduce, ReduceWindow: binary combining opcode
	Init           *Literal // Reduce, ReduceWindow: scalar initial value
	FusionRoots    []NodeID // Fusion: roots of the fused subgraph, one per result

	// Raw backend scheduling configuration, decoded on demand.
	backendConfig json.RawMessage
}

// Results returns the ordered result shapes of the operation
func (op *Operation) Results() []Shape {
	out := make([]Shape, 0, 1+len(op.ExtraResults))
	out = append(out, op.Shape)
	out = append(out, op.ExtraResults...)
	return out
}

// NumResults returns the result arity of the operation
func (op *Operation) NumResults() int {
	return 1 + len(op.ExtraResults)
}

// SetBackendConfigJSON attaches raw scheduling configuration to the operation
func (op *Operation) SetBackendConfigJSON(raw []byte) {
	op.backendConfig = json.RawMessage(raw)
}

// SetOuterDimensionPartitions attaches a partition-count list as backend
// scheduling configuration, outermost dimension first.
func (op *Operation) SetOuterDimensionPartitions(partitions []int64) {
	raw, err := json.Marshal(&BackendConfig{OuterDimensionPartitions: partitions})
	if err != nil {
		panic(fmt.Sprintf("marshal backend config: %v", err))
	}
	op.backendConfig = raw
}

// BackendConfig decodes the operation's scheduling configuration. It returns
// an error when no configuration is attached or the raw payload does not
// decode; callers treat either case as "not configured".
func (op *Operation) BackendConfig() (*BackendConfig, error) {
	if len(op.backendConfig) == 0 {
		return nil, fmt.Errorf("operation %s has no backend config", op.Name)
	}
	var cfg BackendConfig
	if err := json.Unmarshal(op.backendConfig, &cfg); err != nil {
		return nil, fmt.Errorf("operation %s backend config: %w", op.Name, err)
	}
	return &cfg, nil
}

// Graph is an append-only store of operations. It owns every node; all
// cross-references between nodes are NodeIDs into the store.
type Graph struct {
	nodes []*Operation
}

// NewGraph creates an empty graph store
func NewGraph() *Graph {
	return &Graph{}
}

// Add appends an operation to the store and returns its NodeID
func (g *Graph) Add(op *Operation) NodeID {
	g.nodes = append(g.nodes, op)
	return NodeID(len(g.nodes) - 1)
}

// Node returns the operation with the given id
func (g *Graph) Node(id NodeID) *Operation {
	if id < 0 || int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("node id %d out of range (graph has %d nodes)", id, len(g.nodes)))
	}
	return g.nodes[id]
}

// NumNodes returns the number of operations in the store
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// AddParameter appends a Parameter node bound to operand position index
func (g *Graph) AddParameter(name string, index int, shape Shape) NodeID {
	return g.Add(&Operation{
		Name:           name,
		Op:             Parameter,
		Shape:          shape.Clone(),
		ParameterIndex: index,
	})
}

// AddConstant appends a Constant node holding the given literal
func (g *Graph) AddConstant(name string, lit *Literal) NodeID {
	return g.Add(&Operation{
		Name:    name,
		Op:      Constant,
		Shape:   lit.Shape.Clone(),
		Literal: lit,
	})
}

// AddUnary appends an elementwise unary node over one operand
func (g *Graph) AddUnary(name string, op OpCode, operand NodeID) NodeID {
	if !op.IsUnary() {
		panic(fmt.Sprintf("%s is not a unary opcode", op))
	}
	return g.Add(&Operation{
		Name:     name,
		Op:       op,
		Shape:    g.Node(operand).Shape.Clone(),
		Operands: []NodeID{operand},
	})
}

// AddBinary appends an elementwise binary node over two same-shape operands
func (g *Graph) AddBinary(name string, op OpCode, lhs, rhs NodeID) NodeID {
	if !op.IsBinary() {
		panic(fmt.Sprintf("%s is not a binary opcode", op))
	}
	if !g.Node(lhs).Shape.Equal(g.Node(rhs).Shape) {
		panic(fmt.Sprintf("binary operand shapes differ: %s vs %s",
			g.Node(lhs).Shape, g.Node(rhs).Shape))
	}
	return g.Add(&Operation{
		Name:     name,
		Op:       op,
		Shape:    g.Node(lhs).Shape.Clone(),
		Operands: []NodeID{lhs, rhs},
	})
}
