package mir

import (
	"fmt"
	"strings"

	llconstant "github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"

	"github.com/sysyrv/sysyrv/internal/types"
)

// Const is the constant variant: signed-char literal, int
// literal, float literal, bool literal, nested array literal, or a
// zero-initializer of a given type. It wraps a
// github.com/llir/llvm/ir/constant.Constant the same way
// internal/types wraps llir/llvm's type algebra — cmd/bin2ll/ll.go
// reaches for these exact constructors when it needs a typed immediate
// (its instINC uses constant.NewInt(1, types.I32) for its "+1"
// immediate).
type Const struct {
	val llconstant.Constant
	ty types.ValueType
}

func (c *Const) Type() types.ValueType { return c.ty }

// LLConst exposes the wrapped llir/llvm constant for callers (the
// backend's immediate materialization) that need to read its literal
// value directly.
func (c *Const) LLConst() llconstant.Constant { return c.val }

func ConstBool(v bool) *Const {
	return &Const{val: llconstant.NewBool(v), ty: types.Bool}
}

func ConstSignedChar(v int8) *Const {
	return &Const{val: llconstant.NewInt(asIntType(types.SignedChar), int64(v)), ty: types.SignedChar}
}

func ConstInt(v int32) *Const {
	return &Const{val: llconstant.NewInt(asIntType(types.Int), int64(v)), ty: types.Int}
}

func ConstFloat(v float32) *Const {
	return &Const{val: llconstant.NewFloat(asFloatType(types.Float), float64(v)), ty: types.Float}
}

// ConstZero builds the zero-initializer of ty.
func ConstZero(ty types.ValueType) *Const {
	return &Const{val: llconstant.NewZeroInitializer(ty.LLType()), ty: ty}
}

// ConstArray builds a (possibly nested, fully-elaborated) array
// literal. elems must all share elemTy; the result type is
// types.Array(elemTy, len(elems)). Partial/zero-extended array
// literals are represented by
// the frontend padding elems with ConstZero(elemTy) before calling
// this constructor — MIR itself only models fully-elaborated array
// constants.
func ConstArray(elemTy types.ValueType, elems []*Const) *Const {
	resultTy := types.Array(elemTy, int64(len(elems)))
	vals := make([]llconstant.Constant, len(elems))
	for i, e := range elems {
		vals[i] = e.val
	}
	arr := llconstant.NewArray(asArrayType(resultTy), vals...)
	return &Const{val: arr, ty: resultTy}
}

// IsZero reports whether c is definitely the zero value of its type
// (used by the backend to decide .bss vs .data emission, ).
func (c *Const) IsZero() bool {
	return llconstant.IsZero(c.val)
}

// AsInt returns the integer value of an Int/SignedChar/Bool constant.
func (c *Const) AsInt() int64 {
	ci, ok := c.val.(*llconstant.Int)
	if !ok {
		panic(fmt.Sprintf("mir: AsInt on non-integer constant %v", c.ty))
	}
	return ci.X.Int64()
}

// AsFloat returns the float value of a Float constant.
func (c *Const) AsFloat() float32 {
	cf, ok := c.val.(*llconstant.Float)
	if !ok {
		panic(fmt.Sprintf("mir: AsFloat on non-float constant %v", c.ty))
	}
	f, _ := cf.X.Float32()
	return f
}

// Elems returns the element constants of an array constant in
// declaration order, each tagged with its own (possibly still array)
// ValueType.
func (c *Const) Elems() []*Const {
	ca, ok := c.val.(*llconstant.Array)
	if !ok {
		panic(fmt.Sprintf("mir: Elems on non-array constant %v", c.ty))
	}
	innerTy := c.ty.Elem()
	out := make([]*Const, len(ca.Elems))
	for i, e := range ca.Elems {
		out[i] = &Const{val: e, ty: innerTy}
	}
	return out
}

func (c *Const) String() string {
	var sb strings.Builder
	sb.WriteString(c.val.Ident())
	return sb.String()
}

func asIntType(t types.ValueType) *lltypes.IntType {
	it, ok := t.LLType().(*lltypes.IntType)
	if !ok {
		panic(fmt.Sprintf("mir: %v is not an integer type", t))
	}
	return it
}

func asFloatType(t types.ValueType) *lltypes.FloatType {
	ft, ok := t.LLType().(*lltypes.FloatType)
	if !ok {
		panic(fmt.Sprintf("mir: %v is not a float type", t))
	}
	return ft
}

func asArrayType(t types.ValueType) *lltypes.ArrayType {
	at, ok := t.LLType().(*lltypes.ArrayType)
	if !ok {
		panic(fmt.Sprintf("mir: %v is not an array type", t))
	}
	return at
}
