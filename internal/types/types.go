// Package types implements SysY's scalar/array/pointer type algebra.
//
// cmd/bin2ll/ll.go describes every x86 operand width and stack slot
// with github.com/llir/llvm/ir/types (types.Void, types.I32,
// types.NewPointer, types.NewArray, ...). SysY's own scalar/array/
// pointer algebra is a strict subset of that vocabulary, so rather
// than re-deriving an equivalent type lattice from scratch, ValueType
// wraps llir/llvm's types.Type directly and adds SysY-specific
// convenience constructors and queries.
package types

import (
	"fmt"

	lltypes "github.com/llir/llvm/ir/types"
)

// ValueType is the recursive algebraic type of every SysY value. It is a
// thin, comparable wrapper: two ValueTypes are equal iff their
// underlying llir/llvm types.Type values are structurally identical,
// which is exactly llir/llvm's own types.Equal contract.
type ValueType struct {
	t lltypes.Type
}

var (
	Void = ValueType{lltypes.Void}
	Bool = ValueType{lltypes.I1}
	SignedChar = ValueType{lltypes.I8}
	Int = ValueType{lltypes.I32}
	Float = ValueType{lltypes.Float}
)

// Array builds an n-element array type. n must be strictly positive
//; elem must not be Void.
func Array(elem ValueType, n int64) ValueType {
	if n <= 0 {
		panic(fmt.Sprintf("types.Array: non-positive length %d", n))
	}
	if elem.IsVoid() {
		panic("types.Array: void element type")
	}
	return ValueType{lltypes.NewArray(uint64(n), elem.t)}
}

// Pointer builds the address type of an identifier (global or
// alloca) whose pointee is elem.
func Pointer(elem ValueType) ValueType {
	return ValueType{lltypes.NewPointer(elem.t)}
}

func (v ValueType) IsVoid() bool { return v.t == lltypes.Void }
func (v ValueType) IsBool() bool { return v.t == lltypes.I1 }
func (v ValueType) IsFloat() bool { return v.t == lltypes.Float }

// IsInteger reports whether v is any of {Bool, SignedChar, Int} —
// the integer-family scalar kinds carried by integer-opcode
// instructions.
func (v ValueType) IsInteger() bool {
	return v.t == lltypes.I1 || v.t == lltypes.I8 || v.t == lltypes.I32
}

func (v ValueType) IsArray() bool {
	_, ok := v.t.(*lltypes.ArrayType)
	return ok
}

func (v ValueType) IsPointer() bool {
	_, ok := v.t.(*lltypes.PointerType)
	return ok
}

// Elem returns the element type of an Array or the pointee of a
// Pointer. It panics for any other ValueType.
func (v ValueType) Elem() ValueType {
	switch t := v.t.(type) {
	case *lltypes.ArrayType:
		return ValueType{t.ElemType}
	case *lltypes.PointerType:
		return ValueType{t.ElemType}
	default:
		panic(fmt.Sprintf("types.Elem: %v has no element type", v))
	}
}

// Len returns the element count of an Array type. Panics otherwise.
func (v ValueType) Len() int64 {
	at, ok := v.t.(*lltypes.ArrayType)
	if !ok {
		panic(fmt.Sprintf("types.Len: %v is not an array type", v))
	}
	return int64(at.Len)
}

// Dims flattens a (possibly nested) array type into its dimension
// list and innermost scalar element type, e.g. [3 x [4 x i32]] ->
// ([3 4], i32). Used by GetElementPtr lowering to compute
// per-dimension strides.
func (v ValueType) Dims() (dims []int64, elem ValueType) {
	cur := v
	for cur.IsArray() {
		dims = append(dims, cur.Len())
		cur = cur.Elem()
	}
	return dims, cur
}

// Size returns the in-memory size, in bytes, of v. Void has no
// defined size and panics here; every pointer is 8 bytes, and every
// SysY scalar/array type used as an operand has a size.
func (v ValueType) Size() int64 {
	switch {
	case v.IsBool():
		return 1
	case v.t == lltypes.I8:
		return 1
	case v.t == lltypes.I32, v.t == lltypes.Float:
		return 4
	case v.IsPointer():
		return 8
	case v.IsArray():
		at := v.t.(*lltypes.ArrayType)
		return int64(at.Len) * ValueType{at.ElemType}.Size()
	default:
		panic(fmt.Sprintf("types.Size: unsized type %v", v))
	}
}

// Equal implements structural equality.
func (v ValueType) Equal(o ValueType) bool {
	return lltypes.Equal(v.t, o.t)
}

func (v ValueType) String() string {
	return v.t.String()
}

// LLType exposes the underlying llir/llvm type for packages (mir
// constant construction) that need to hand it to
// github.com/llir/llvm/ir/constant constructors directly.
func (v ValueType) LLType() lltypes.Type { return v.t }

// FromLL wraps an existing llir/llvm type. Used when constructing a
// ValueType from a value produced by the constant package.
func FromLL(t lltypes.Type) ValueType { return ValueType{t} }
