package ops

import (
	"fmt"
	"strings"
)

// Shape is an ordered sequence of dimension extents, outermost first
type Shape []int64

// Rank returns the number of dimensions
func (s Shape) Rank() int {
	return len(s)
}

// Dim returns the extent of dimension i
func (s Shape) Dim(i int) int64 {
	return s[i]
}

// NumElements returns the total element count of the shape
func (s Shape) NumElements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical extents
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, d := range s {
		if d != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the shape
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
