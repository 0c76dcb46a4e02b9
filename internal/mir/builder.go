package mir

import (
	"fmt"

	"github.com/sysyrv/sysyrv/internal/types"
)

// Builder is IR builder: the single owner of every arena
// for a program's globals, functions, blocks and instructions. Its
// lifetime matches the program being compiled; nothing it
// hands out is ever individually freed.
type Builder struct {
	globals Arena[Global]
	functions Arena[Function]
	blocks Arena[BasicBlock]
	insts Arena[Instruction]

	nextBlockID int
	nextInstID int

	Module *Module
}

// NewBuilder creates an empty Builder with a fresh, empty Module.
func NewBuilder() *Builder {
	return &Builder{Module: &Module{}}
}

// NewGlobal allocates a module-level variable.
func (b *Builder) NewGlobal(name string, ty types.ValueType, mutable bool, init *Const) GlobalHandle {
	g := b.globals.Alloc()
	g.Name, g.Ty, g.Mutable, g.Init = name, ty, mutable, init
	b.Module.Globals = append(b.Module.Globals, g)
	return g
}

// NewFunction allocates a function with no body yet (entry/exit nil,
// i.e. initially a declaration ).
func (b *Builder) NewFunction(name string, retTy types.ValueType) FunctionHandle {
	fn := b.functions.Alloc()
	fn.Name, fn.RetType, fn.builder = name, retTy, b
	b.Module.Functions = append(b.Module.Functions, fn)
	return fn
}

// AddParam appends a new parameter to fn.
func (b *Builder) AddParam(fn *Function, name string, ty types.ValueType) ParameterHandle {
	p := &Param{Name: name, Ty: ty, Index: len(fn.Params), Owner: fn}
	fn.Params = append(fn.Params, p)
	return p
}

// NewBasicBlock allocates a block belonging to fn with a monotonic id
// and an empty sentinel-terminated instruction list. The first block
// allocated for fn becomes its Entry, which makes fn a definition.
func (b *Builder) NewBasicBlock(fn *Function, name string) BlockHandle {
	blk := b.blocks.Alloc()
	b.nextBlockID++
	blk.id = b.nextBlockID
	blk.Name = name
	blk.fn = fn
	blk.head = &Instruction{Kind: OpHead}
	blk.head.next, blk.head.prev = blk.head, blk.head
	fn.blocks = append(fn.blocks, blk)
	if fn.Entry == nil {
		fn.Entry = blk
	}
	return blk
}

// newInst is the low-level constructor behind every typed NewXxx
// helper on *BasicBlock: it allocates an id, wires up the operand
// user-lists, and leaves the parent block unset until the
// caller inserts it.
func (b *Builder) newInst(kind Op, ty types.ValueType, operands ...Operand) *Instruction {
	inst := b.insts.Alloc()
	b.nextInstID++
	inst.id = b.nextInstID
	inst.Kind = kind
	inst.valueType = ty
	if len(operands) > 0 {
		inst.operands = append([]Operand(nil), operands...)
		for _, op := range inst.operands {
			if op != nil {
				attachUser(op, inst)
			}
		}
	}
	return inst
}

// CopyInstruction clones inst's kind and payload but not its
// operands, with a fresh id.
func (b *Builder) CopyInstruction(src *Instruction) *Instruction {
	dst := b.insts.Alloc()
	b.nextInstID++
	dst.id = b.nextInstID
	dst.Kind = src.Kind
	dst.valueType = src.valueType
	dst.ICmpPred = src.ICmpPred
	dst.FCmpPred = src.FCmpPred
	dst.AllocaElemType = src.AllocaElemType
	dst.AllocaCount = src.AllocaCount
	dst.GEPElemType = src.GEPElemType
	dst.Callee = src.Callee
	dst.Name = src.Name
	if src.Kind != OpPhi {
		dst.operands = make([]Operand, len(src.operands))
	}
	return dst
}

func commonType(a, b Operand) types.ValueType {
	at, bt := a.Type(), b.Type()
	if !at.Equal(bt) {
		panic(fmt.Sprintf("mir: operand type mismatch %v vs %v", at, bt))
	}
	return at
}

// --- typed instruction constructors, appended to their block ---
//
// These mirror cmd/bin2ll/ll.go's block.NewAdd/block.NewXor/block.NewLoad
// ergonomics one-for-one: build, append, return.

func (blk *BasicBlock) builder() *Builder { return blk.fn.builder }

// Builder exposes the owning Builder so cross-package passes (e.g.
// func_inline) can clone instructions without threading a *Builder
// through every call.
func (blk *BasicBlock) Builder() *Builder { return blk.fn.builder }

func (blk *BasicBlock) emit(kind Op, ty types.ValueType, operands ...Operand) *Instruction {
	inst := blk.builder().newInst(kind, ty, operands...)
	blk.AppendInst(inst)
	return inst
}

func (blk *BasicBlock) NewAdd(l, r Operand) *Instruction { return blk.emit(OpAdd, commonType(l, r), l, r) }
func (blk *BasicBlock) NewSub(l, r Operand) *Instruction { return blk.emit(OpSub, commonType(l, r), l, r) }
func (blk *BasicBlock) NewMul(l, r Operand) *Instruction { return blk.emit(OpMul, commonType(l, r), l, r) }
func (blk *BasicBlock) NewSDiv(l, r Operand) *Instruction { return blk.emit(OpSDiv, commonType(l, r), l, r) }
func (blk *BasicBlock) NewUDiv(l, r Operand) *Instruction { return blk.emit(OpUDiv, commonType(l, r), l, r) }
func (blk *BasicBlock) NewSRem(l, r Operand) *Instruction { return blk.emit(OpSRem, commonType(l, r), l, r) }
func (blk *BasicBlock) NewURem(l, r Operand) *Instruction { return blk.emit(OpURem, commonType(l, r), l, r) }
func (blk *BasicBlock) NewShl(l, r Operand) *Instruction { return blk.emit(OpShl, commonType(l, r), l, r) }
func (blk *BasicBlock) NewLShr(l, r Operand) *Instruction { return blk.emit(OpLShr, commonType(l, r), l, r) }
func (blk *BasicBlock) NewAShr(l, r Operand) *Instruction { return blk.emit(OpAShr, commonType(l, r), l, r) }
func (blk *BasicBlock) NewAnd(l, r Operand) *Instruction { return blk.emit(OpAnd, commonType(l, r), l, r) }
func (blk *BasicBlock) NewOr(l, r Operand) *Instruction { return blk.emit(OpOr, commonType(l, r), l, r) }
func (blk *BasicBlock) NewXor(l, r Operand) *Instruction { return blk.emit(OpXor, commonType(l, r), l, r) }

func (blk *BasicBlock) NewFAdd(l, r Operand) *Instruction { return blk.emit(OpFAdd, commonType(l, r), l, r) }
func (blk *BasicBlock) NewFSub(l, r Operand) *Instruction { return blk.emit(OpFSub, commonType(l, r), l, r) }
func (blk *BasicBlock) NewFMul(l, r Operand) *Instruction { return blk.emit(OpFMul, commonType(l, r), l, r) }
func (blk *BasicBlock) NewFDiv(l, r Operand) *Instruction { return blk.emit(OpFDiv, commonType(l, r), l, r) }

func (blk *BasicBlock) NewICmp(pred ICmpPred, l, r Operand) *Instruction {
	commonType(l, r)
	inst := blk.emit(OpICmp, types.Bool, l, r)
	inst.ICmpPred = pred
	return inst
}

func (blk *BasicBlock) NewFCmp(pred FCmpPred, l, r Operand) *Instruction {
	commonType(l, r)
	inst := blk.emit(OpFCmp, types.Bool, l, r)
	inst.FCmpPred = pred
	return inst
}

func (blk *BasicBlock) newCast(kind Op, src Operand, destTy types.ValueType) *Instruction {
	return blk.emit(kind, destTy, src)
}

func (blk *BasicBlock) NewZext(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpZext, src, destTy) }
func (blk *BasicBlock) NewSext(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpSext, src, destTy) }
func (blk *BasicBlock) NewTrunc(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpTrunc, src, destTy) }
func (blk *BasicBlock) NewFpToSi(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpFpToSi, src, destTy) }
func (blk *BasicBlock) NewSiToFp(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpSiToFp, src, destTy) }
func (blk *BasicBlock) NewFpExt(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpFpExt, src, destTy) }
func (blk *BasicBlock) NewFpTrunc(src Operand, destTy types.ValueType) *Instruction { return blk.newCast(OpFpTrunc, src, destTy) }

// NewAlloca reserves a stack slot of n elements of type elemTy:
// result type is Pointer(elemTy) when n==1, else Pointer(Array(elemTy, n)).
func (blk *BasicBlock) NewAlloca(elemTy types.ValueType, n int64) *Instruction {
	if n <= 0 {
		panic("mir: NewAlloca needs n >= 1")
	}
	resultElem := elemTy
	if n > 1 {
		resultElem = types.Array(elemTy, n)
	}
	inst := blk.emit(OpAlloca, types.Pointer(resultElem))
	inst.AllocaElemType = elemTy
	inst.AllocaCount = n
	return inst
}

func (blk *BasicBlock) NewLoad(addr Operand) *Instruction {
	if !addr.Type().IsPointer() {
		panic(fmt.Sprintf("mir: NewLoad on non-pointer %v", addr.Type()))
	}
	return blk.emit(OpLoad, addr.Type().Elem(), addr)
}

func (blk *BasicBlock) NewStore(val, addr Operand) *Instruction {
	if !addr.Type().IsPointer() {
		panic(fmt.Sprintf("mir: NewStore on non-pointer %v", addr.Type()))
	}
	return blk.emit(OpStore, types.Void, val, addr)
}

// NewGetElementPtr computes an address: ty is the type
// the index list walks (first index walks the pointer itself,
// subsequent indices walk into ty's array dimensions).
func (blk *BasicBlock) NewGetElementPtr(ty types.ValueType, base Operand, indices ...Operand) *Instruction {
	if !base.Type().IsPointer() {
		panic(fmt.Sprintf("mir: NewGetElementPtr on non-pointer base %v", base.Type()))
	}
	resultElem := ty
	for range indices[1:] {
		if resultElem.IsArray() {
			resultElem = resultElem.Elem()
		}
	}
	ops := append([]Operand{base}, indices...)
	inst := blk.emit(OpGetElementPtr, types.Pointer(resultElem), ops...)
	inst.GEPElemType = ty
	return inst
}

func (blk *BasicBlock) NewCall(callee *Function, args ...Operand) *Instruction {
	inst := blk.emit(OpCall, callee.RetType, args...)
	inst.Callee = callee
	return inst
}

// NewPhi creates an (initially empty) phi node, inserted after any
// existing leading phis in blk so the "phis come first" convention
// holds.
func (blk *BasicBlock) NewPhi(ty types.ValueType) *Instruction {
	inst := blk.builder().newInst(OpPhi, ty)
	pos := blk.head.next
	for pos != blk.head && pos.Kind == OpPhi {
		pos = pos.next
	}
	blk.InsertBefore(pos, inst)
	return inst
}

func (blk *BasicBlock) NewBr(target *BasicBlock) *Instruction {
	inst := blk.emit(OpBr, types.Void)
	blk.setSuccs(target, nil)
	return inst
}

func (blk *BasicBlock) NewCondBr(cond Operand, trueSucc, falseSucc *BasicBlock) *Instruction {
	inst := blk.emit(OpBr, types.Void, cond)
	blk.setSuccs(trueSucc, falseSucc)
	return inst
}

func (blk *BasicBlock) NewRet(val Operand) *Instruction {
	var inst *Instruction
	if val != nil {
		inst = blk.emit(OpRet, types.Void, val)
	} else {
		inst = blk.emit(OpRet, types.Void)
	}
	blk.setSuccs(nil, nil)
	return inst
}
