package backend

import (
	"fmt"

	"github.com/kr/pretty"

	"github.com/sysyrv/sysyrv/internal/mir"
)

// outgoingArgPseudo addresses the stack slot a call spills its index'th
// class-overflow argument into, just below the callee's own frame; the
// stack-frame pass resolves it to an sp-relative store/load pair.
type outgoingArgPseudo struct{ index int }

func (outgoingArgPseudo) isOperand()       {}
func (p outgoingArgPseudo) String() string { return "outgoing_arg" }

var intBinOp = map[mir.Op]Op{
	mir.OpAdd: OpAdd, mir.OpSub: OpSub, mir.OpMul: OpMul,
	mir.OpSDiv: OpDiv, mir.OpUDiv: OpDivU, mir.OpSRem: OpRem, mir.OpURem: OpRemU,
	mir.OpShl: OpSll, mir.OpLShr: OpSrl, mir.OpAShr: OpSra,
	mir.OpAnd: OpAnd, mir.OpOr: OpOr, mir.OpXor: OpXor,
}

var intBinOpImm = map[mir.Op]Op{
	mir.OpAdd: OpAddi, mir.OpAnd: OpAndi, mir.OpOr: OpOri, mir.OpXor: OpXori,
	mir.OpShl: OpSlli, mir.OpLShr: OpSrli, mir.OpAShr: OpSrai,
}

var floatBinOp = map[mir.Op]Op{
	mir.OpFAdd: OpFAddS, mir.OpFSub: OpFSubS, mir.OpFMul: OpFMulS, mir.OpFDiv: OpFDivS,
}

// lowerInst lowers one MIR instruction into bb, recording its result
// (if any) in valueOf.
func lowerInst(inst *mir.Instruction, bb *Block, blockOf map[*mir.BasicBlock]*Block, valueOf map[mir.Operand]Operand, va *vregAllocator, allocaSlot map[*mir.Instruction]StackSlot) error {
	switch inst.Kind {
	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpSDiv, mir.OpUDiv, mir.OpSRem, mir.OpURem,
		mir.OpShl, mir.OpLShr, mir.OpAShr, mir.OpAnd, mir.OpOr, mir.OpXor:
		lowerIntBinOp(inst, bb, valueOf, va)

	case mir.OpFAdd, mir.OpFSub, mir.OpFMul, mir.OpFDiv:
		lhs := regOf(inst.Operand(0), valueOf, bb, va)
		rhs := regOf(inst.Operand(1), valueOf, bb, va)
		dst := va.New(ClassFloat)
		bb.Insts = append(bb.Insts, &Instruction{Op: floatBinOp[inst.Kind], Dst: dst, Src: []Operand{lhs, rhs}, Float: true})
		valueOf[inst] = dst

	case mir.OpICmp:
		lowerICmp(inst, bb, valueOf, va)

	case mir.OpFCmp:
		lowerFCmp(inst, bb, valueOf, va)

	case mir.OpZext, mir.OpSext, mir.OpTrunc:
		src := regOf(inst.Operand(0), valueOf, bb, va)
		dst := va.New(ClassInt)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpMv, Dst: dst, Src: []Operand{src}})
		valueOf[inst] = dst

	case mir.OpFpToSi:
		src := regOf(inst.Operand(0), valueOf, bb, va)
		dst := va.New(ClassInt)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFcvtWS, Dst: dst, Src: []Operand{src}})
		valueOf[inst] = dst

	case mir.OpSiToFp:
		src := regOf(inst.Operand(0), valueOf, bb, va)
		dst := va.New(ClassFloat)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFcvtSW, Dst: dst, Src: []Operand{src}, Float: true})
		valueOf[inst] = dst

	case mir.OpFpExt, mir.OpFpTrunc:
		// SysY has exactly one float width; these coercions are no-ops.
		valueOf[inst] = regOf(inst.Operand(0), valueOf, bb, va)

	case mir.OpAlloca:
		slot := allocaSlot[inst]
		dst := va.New(ClassInt)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpLocalAddr, Dst: dst, Src: []Operand{slot}})
		valueOf[inst] = dst

	case mir.OpLoad:
		addr := regOf(inst.Operand(0), valueOf, bb, va)
		width := int(inst.Type().Size())
		class := classOf(inst.Type())
		dst := va.New(class)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpLoad, Dst: dst, Src: []Operand{addr}, Width: width, Float: class == ClassFloat})
		valueOf[inst] = dst

	case mir.OpStore:
		val := regOf(inst.Operand(0), valueOf, bb, va)
		addr := regOf(inst.Operand(1), valueOf, bb, va)
		width := int(inst.Operand(0).Type().Size())
		bb.Insts = append(bb.Insts, &Instruction{Op: OpStore, Src: []Operand{addr, val}, Width: width, Float: inst.Operand(0).Type().IsFloat()})

	case mir.OpGetElementPtr:
		lowerGEP(inst, bb, valueOf, va)

	case mir.OpCall:
		lowerCall(inst, bb, valueOf, va)

	case mir.OpBr:
		lowerBr(inst, bb, blockOf, valueOf, va)

	case mir.OpRet:
		lowerRet(inst, bb, valueOf, va)

	default:
		panic(fmt.Sprintf("backend: unhandled mir op %s: %# v", inst.Kind, pretty.Formatter(inst)))
	}
	return nil
}

func lowerIntBinOp(inst *mir.Instruction, bb *Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	lhsOp, rhsOp := inst.Operand(0), inst.Operand(1)
	dst := va.New(ClassInt)
	// Fold a right-hand constant that fits a 12-bit immediate into the
	// immediate form, since every RV64I R-type op has an I-type sibling
	// except sub and mul/div/rem.
	if c, ok := rhsOp.(*mir.Const); ok {
		if iop, hasImm := intBinOpImm[inst.Kind]; hasImm {
			imm := Imm{Value: c.AsInt()}
			if imm.FitsI12() {
				lhs := regOf(lhsOp, valueOf, bb, va)
				bb.Insts = append(bb.Insts, &Instruction{Op: iop, Dst: dst, Src: []Operand{lhs, imm}})
				valueOf[inst] = dst
				return
			}
		}
	}
	lhs := regOf(lhsOp, valueOf, bb, va)
	rhs := regOf(rhsOp, valueOf, bb, va)
	bb.Insts = append(bb.Insts, &Instruction{Op: intBinOp[inst.Kind], Dst: dst, Src: []Operand{lhs, rhs}})
	valueOf[inst] = dst
}

func lowerICmp(inst *mir.Instruction, bb *Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	lhs := regOf(inst.Operand(0), valueOf, bb, va)
	rhs := regOf(inst.Operand(1), valueOf, bb, va)
	dst := va.New(ClassInt)
	pred := inst.ICmpPred
	switch pred {
	case mir.ICmpSLT:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSlt, Dst: dst, Src: []Operand{lhs, rhs}})
	case mir.ICmpSGT:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSlt, Dst: dst, Src: []Operand{rhs, lhs}})
	case mir.ICmpULT:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSltu, Dst: dst, Src: []Operand{lhs, rhs}})
	case mir.ICmpUGT:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSltu, Dst: dst, Src: []Operand{rhs, lhs}})
	case mir.ICmpSLE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSlt, Dst: dst, Src: []Operand{rhs, lhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXori, Dst: dst, Src: []Operand{dst, Imm{Value: 1}}})
	case mir.ICmpSGE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSlt, Dst: dst, Src: []Operand{lhs, rhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXori, Dst: dst, Src: []Operand{dst, Imm{Value: 1}}})
	case mir.ICmpULE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSltu, Dst: dst, Src: []Operand{rhs, lhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXori, Dst: dst, Src: []Operand{dst, Imm{Value: 1}}})
	case mir.ICmpUGE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSltu, Dst: dst, Src: []Operand{lhs, rhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXori, Dst: dst, Src: []Operand{dst, Imm{Value: 1}}})
	case mir.ICmpEQ:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXor, Dst: dst, Src: []Operand{lhs, rhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSltiu, Dst: dst, Src: []Operand{dst, Imm{Value: 1}}})
	case mir.ICmpNE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXor, Dst: dst, Src: []Operand{lhs, rhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpSltu, Dst: dst, Src: []Operand{Zero, dst}})
	}
	valueOf[inst] = dst
}

func lowerFCmp(inst *mir.Instruction, bb *Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	lhs := regOf(inst.Operand(0), valueOf, bb, va)
	rhs := regOf(inst.Operand(1), valueOf, bb, va)
	dst := va.New(ClassInt)
	switch inst.FCmpPred {
	case mir.FCmpOEQ:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFeqS, Dst: dst, Src: []Operand{lhs, rhs}})
	case mir.FCmpONE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFeqS, Dst: dst, Src: []Operand{lhs, rhs}})
		bb.Insts = append(bb.Insts, &Instruction{Op: OpXori, Dst: dst, Src: []Operand{dst, Imm{Value: 1}}})
	case mir.FCmpOLT:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFltS, Dst: dst, Src: []Operand{lhs, rhs}})
	case mir.FCmpOLE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFleS, Dst: dst, Src: []Operand{lhs, rhs}})
	case mir.FCmpOGT:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFltS, Dst: dst, Src: []Operand{rhs, lhs}})
	case mir.FCmpOGE:
		bb.Insts = append(bb.Insts, &Instruction{Op: OpFleS, Dst: dst, Src: []Operand{rhs, lhs}})
	}
	valueOf[inst] = dst
}

// lowerGEP computes base + sum(index_i * stride_i), folding constant
// indices and an array's element size into the multiply up front.
func lowerGEP(inst *mir.Instruction, bb *Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	addr := regOf(inst.Operand(0), valueOf, bb, va)
	ty := inst.GEPElemType
	for _, idxOp := range inst.Operands()[1:] {
		stride := ty.Size()
		if ty.IsArray() {
			ty = ty.Elem()
		}
		if c, ok := idxOp.(*mir.Const); ok {
			off := c.AsInt() * stride
			if off != 0 {
				addr = emitOffset(bb, va, addr, off)
			}
			continue
		}
		idx := regOf(idxOp, valueOf, bb, va)
		var scaled Operand
		switch stride {
		case 1:
			scaled = idx
		case 2, 4, 8:
			shift := map[int64]int64{2: 1, 4: 2, 8: 3}[stride]
			s := va.New(ClassInt)
			bb.Insts = append(bb.Insts, &Instruction{Op: OpSlli, Dst: s, Src: []Operand{idx, Imm{Value: shift}}})
			scaled = s
		default:
			s := va.New(ClassInt)
			lit := va.New(ClassInt)
			bb.Insts = append(bb.Insts, &Instruction{Op: OpLi, Dst: lit, Src: []Operand{Imm{Value: stride}}})
			bb.Insts = append(bb.Insts, &Instruction{Op: OpMul, Dst: s, Src: []Operand{idx, lit}})
			scaled = s
		}
		next := va.New(ClassInt)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpAdd, Dst: next, Src: []Operand{addr, scaled}})
		addr = next
	}
	valueOf[inst] = addr
}

func emitOffset(bb *Block, va *vregAllocator, base Operand, off int64) Operand {
	imm := Imm{Value: off}
	if imm.FitsI12() {
		dst := va.New(ClassInt)
		bb.Insts = append(bb.Insts, &Instruction{Op: OpAddi, Dst: dst, Src: []Operand{base, imm}})
		return dst
	}
	lit := va.New(ClassInt)
	bb.Insts = append(bb.Insts, &Instruction{Op: OpLi, Dst: lit, Src: []Operand{imm}})
	dst := va.New(ClassInt)
	bb.Insts = append(bb.Insts, &Instruction{Op: OpAdd, Dst: dst, Src: []Operand{base, lit}})
	return dst
}

func lowerCall(inst *mir.Instruction, bb *Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	var callArgs []Reg
	nextInt, nextFloat, stackIdx := 0, 0, 0
	for _, argOp := range inst.Operands() {
		arg := regOf(argOp, valueOf, bb, va)
		if argOp.Type().IsFloat() {
			if nextFloat < 8 {
				bb.Insts = append(bb.Insts, &Instruction{Op: OpMv, Dst: FloatArgRegs[nextFloat], Src: []Operand{arg}, Float: true})
				callArgs = append(callArgs, FloatArgRegs[nextFloat])
				nextFloat++
				continue
			}
		} else {
			if nextInt < 8 {
				bb.Insts = append(bb.Insts, &Instruction{Op: OpMv, Dst: IntArgRegs[nextInt], Src: []Operand{arg}})
				callArgs = append(callArgs, IntArgRegs[nextInt])
				nextInt++
				continue
			}
		}
		bb.Insts = append(bb.Insts, &Instruction{Op: OpStore, Src: []Operand{outgoingArgPseudo{index: stackIdx}, arg}, Width: 8, Float: argOp.Type().IsFloat()})
		stackIdx++
	}

	defines := append([]Reg(nil), IntCallerSaved...)
	defines = append(defines, FloatCallerSaved...)
	call := &Instruction{Op: OpCall, Callee: inst.Callee.Name, CallArgs: callArgs, CallDefines: defines}
	bb.Insts = append(bb.Insts, call)

	if !inst.Type().IsVoid() {
		dst := va.New(classOf(inst.Type()))
		ret := A0
		if inst.Type().IsFloat() {
			ret = FA0
		}
		bb.Insts = append(bb.Insts, &Instruction{Op: OpMv, Dst: dst, Src: []Operand{ret}, Float: inst.Type().IsFloat()})
		valueOf[inst] = dst
	}
}

func lowerBr(inst *mir.Instruction, bb *Block, blockOf map[*mir.BasicBlock]*Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	parent := inst.Parent()
	trueSucc, falseSucc := parent.TrueSucc(), parent.FalseSucc()
	if falseSucc == nil {
		bb.Insts = append(bb.Insts, &Instruction{Op: OpJ, Target: blockOf[trueSucc]})
		return
	}
	cond := regOf(inst.Operand(0), valueOf, bb, va)
	bb.Insts = append(bb.Insts, &Instruction{
		Op: OpBnez, Src: []Operand{cond}, Target: blockOf[trueSucc], FallThrough: blockOf[falseSucc],
	})
	bb.Insts = append(bb.Insts, &Instruction{Op: OpJ, Target: blockOf[falseSucc]})
}

func lowerRet(inst *mir.Instruction, bb *Block, valueOf map[mir.Operand]Operand, va *vregAllocator) {
	if inst.NumOperands() > 0 {
		v := regOf(inst.Operand(0), valueOf, bb, va)
		if inst.Operand(0).Type().IsFloat() {
			bb.Insts = append(bb.Insts, &Instruction{Op: OpMv, Dst: FA0, Src: []Operand{v}, Float: true})
		} else {
			bb.Insts = append(bb.Insts, &Instruction{Op: OpMv, Dst: A0, Src: []Operand{v}})
		}
	}
	bb.Insts = append(bb.Insts, &Instruction{Op: OpRet})
}
