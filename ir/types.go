package ir

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/waveir/waveir/transform"
)

// AddressSpace says where a memref's storage lives on the device.
type AddressSpace int

const (
	// AddressSpaceGlobal is device-global memory.
	AddressSpaceGlobal AddressSpace = iota

	// AddressSpaceWorkgroup is block-shared memory (LDS): visible to every
	// lane of a workgroup.
	AddressSpaceWorkgroup

	// AddressSpacePrivate is per-lane register storage.
	AddressSpacePrivate
)

// String implements fmt.Stringer.
func (s AddressSpace) String() string {
	switch s {
	case AddressSpaceGlobal:
		return "global"
	case AddressSpaceWorkgroup:
		return "workgroup"
	case AddressSpacePrivate:
		return "private"
	default:
		return fmt.Sprintf("AddressSpace(%d)", int(s))
	}
}

// Type is the type of a Value. The concrete types are IndexType,
// ScalarType, VectorType and MemRefType.
type Type interface {
	fmt.Stringer

	// Equal reports whether the two types are identical.
	Equal(other Type) bool
}

// IndexType is the type of loop induction variables, thread ids and
// address arithmetic.
type IndexType struct{}

// String implements fmt.Stringer.
func (IndexType) String() string { return "index" }

// Equal implements Type.
func (IndexType) Equal(other Type) bool {
	_, ok := other.(IndexType)
	return ok
}

// Index is the canonical IndexType value.
var Index = IndexType{}

// ScalarType is a single element of the given DType.
type ScalarType struct {
	DType dtypes.DType
}

// String implements fmt.Stringer.
func (t ScalarType) String() string { return t.DType.String() }

// Equal implements Type.
func (t ScalarType) Equal(other Type) bool {
	o, ok := other.(ScalarType)
	return ok && o.DType == t.DType
}

// VectorType is a fixed-length vector of scalars, the operand shape of
// vectorized loads/stores and of instruction-matrix GEMM arguments and
// accumulators.
type VectorType struct {
	DType dtypes.DType
	Len   int64
}

// String implements fmt.Stringer.
func (t VectorType) String() string { return fmt.Sprintf("vector<%dx%s>", t.Len, t.DType) }

// Equal implements Type.
func (t VectorType) Equal(other Type) bool {
	o, ok := other.(VectorType)
	return ok && o == t
}

// MemRefType is a multi-dimensional buffer of static shape in a given
// address space. Buffers at this layer are symbolic: later passes map them
// to real hardware memory.
type MemRefType struct {
	DType dtypes.DType
	Shape []int64
	Space AddressSpace
}

// MakeMemRef returns a MemRefType with the given element type, address
// space and dimensions.
func MakeMemRef(dtype dtypes.DType, space AddressSpace, dims ...int64) MemRefType {
	return MemRefType{DType: dtype, Shape: dims, Space: space}
}

// Rank returns the number of dimensions.
func (t MemRefType) Rank() int { return len(t.Shape) }

// NumElements returns the product of all dimensions.
func (t MemRefType) NumElements() int64 {
	return transform.Product(t.Shape)
}

// String implements fmt.Stringer.
func (t MemRefType) String() string {
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("memref<%sx%s, %s>", strings.Join(dims, "x"), t.DType, t.Space)
}

// Equal implements Type.
func (t MemRefType) Equal(other Type) bool {
	o, ok := other.(MemRefType)
	if !ok || o.DType != t.DType || o.Space != t.Space || len(o.Shape) != len(t.Shape) {
		return false
	}
	for i, d := range t.Shape {
		if o.Shape[i] != d {
			return false
		}
	}
	return true
}
