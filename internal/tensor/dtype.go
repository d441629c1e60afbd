// Package tensor provides the numeric primitives shared by the placement core:
// the floating point constraint selecting the working precision, runtime type
// tags, device residency tags and flat vector kernels.
package tensor

import "fmt"

// Float is the constraint for the selectable working precision.
//
// Positions, gradients, cached exponentials and optimizer state are all stored
// in the same Float type so that value and gradient paths agree bit for bit
// on rounding.
type Float interface {
	float32 | float64
}

// DataType represents runtime type information for position arrays.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseDataType converts a name such as "float32" into a DataType.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, fmt.Errorf("tensor: unknown dtype %q", s)
	}
}

// DataTypeOf infers the DataType from a generic type T.
func DataTypeOf[T Float]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return Float32
	default:
		return Float64
	}
}
