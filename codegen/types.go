package codegen

// DataType represents the precision of numerical data
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	INT32
	INT64
)

// TypeName returns the C type name for a data type
func TypeName(dt DataType) string {
	switch dt {
	case Float32:
		return "float"
	case Float64:
		return "double"
	case INT32:
		return "int"
	case INT64:
		return "long"
	default:
		return "double"
	}
}

// SizeOfType returns the size in bytes of a data type
func SizeOfType(dt DataType) int64 {
	switch dt {
	case Float32, INT32:
		return 4
	default:
		return 8
	}
}

// TypeSuffix returns the numeric suffix for floating point literals
func TypeSuffix(dt DataType) string {
	if dt == Float32 {
		return "f"
	}
	return ""
}
