package ops

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Literal holds constant tensor data in row-major order
type Literal struct {
	Shape Shape
	Data  []float64
}

// NewLiteral creates a literal, validating that the data covers the shape
func NewLiteral(shape Shape, data []float64) (*Literal, error) {
	if int64(len(data)) != shape.NumElements() {
		return nil, fmt.Errorf("literal data length %d does not match shape %s (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Literal{Shape: shape.Clone(), Data: data}, nil
}

// ScalarLiteral creates a rank-0 literal holding a single value
func ScalarLiteral(v float64) *Literal {
	return &Literal{Shape: Shape{}, Data: []float64{v}}
}

// LiteralFromMatrix creates a rank-2 literal from a matrix, row-major
func LiteralFromMatrix(m mat.Matrix) *Literal {
	rows, cols := m.Dims()
	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = m.At(i, j)
		}
	}
	return &Literal{Shape: Shape{int64(rows), int64(cols)}, Data: data}
}

// Matrix returns a rank-2 literal as a dense matrix
func (l *Literal) Matrix() (mat.Matrix, error) {
	if l.Shape.Rank() != 2 {
		return nil, fmt.Errorf("literal of shape %s is not a matrix", l.Shape)
	}
	return mat.NewDense(int(l.Shape.Dim(0)), int(l.Shape.Dim(1)), l.Data), nil
}

// IsScalar reports whether the literal holds a single rank-0 value
func (l *Literal) IsScalar() bool {
	return l.Shape.Rank() == 0
}
