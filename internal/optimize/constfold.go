package optimize

import "github.com/sysyrv/sysyrv/internal/mir"

// ConstFold evaluates binary/unary ops, ICmp/FCmp, and
// type coercions over constant operands, replacing the instruction's
// uses with the folded constant. The (now unused) instruction is left
// for dead_code_elim to remove, keeping this pass a pure
// local rewrite with no block-list surgery of its own.
//
// Idempotent by construction: every fold replaces all uses
// immediately and instructions with no users are skipped, so a second
// run finds nothing left to fold.
type ConstFold struct{}

func (ConstFold) Name() string { return "constant_fold" }

func (ConstFold) Run(fn *mir.Function) (bool, error) {
	changed := false
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if len(inst.Users()) == 0 {
				continue
			}
			if folded, ok := fold(inst); ok {
				inst.ReplaceSelf(folded)
				changed = true
			}
		}
	}
	return changed, nil
}

func fold(i *mir.Instruction) (*mir.Const, bool) {
	switch i.Kind {
	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpSDiv, mir.OpUDiv, mir.OpSRem, mir.OpURem,
		mir.OpShl, mir.OpLShr, mir.OpAShr, mir.OpAnd, mir.OpOr, mir.OpXor:
		return foldIntBinary(i)
	case mir.OpFAdd, mir.OpFSub, mir.OpFMul, mir.OpFDiv:
		return foldFloatBinary(i)
	case mir.OpICmp:
		return foldICmp(i)
	case mir.OpFCmp:
		return foldFCmp(i)
	case mir.OpZext, mir.OpSext, mir.OpTrunc, mir.OpFpToSi, mir.OpSiToFp, mir.OpFpExt, mir.OpFpTrunc:
		return foldCast(i)
	default:
		return nil, false
	}
}

func asConst(op mir.Operand) (*mir.Const, bool) {
	c, ok := op.(*mir.Const)
	return c, ok
}

func foldIntBinary(i *mir.Instruction) (*mir.Const, bool) {
	l, ok1 := asConst(i.Operand(0))
	r, ok2 := asConst(i.Operand(1))
	if !ok1 || !ok2 {
		return nil, false
	}
	a, b := l.AsInt(), r.AsInt()
	var v int64
	switch i.Kind {
	case mir.OpAdd:
		v = a + b
	case mir.OpSub:
		v = a - b
	case mir.OpMul:
		v = a * b
	case mir.OpSDiv:
		if b == 0 {
			return nil, false
		}
		v = a / b
	case mir.OpUDiv:
		if b == 0 {
			return nil, false
		}
		v = int64(uint64(a) / uint64(b))
	case mir.OpSRem:
		if b == 0 {
			return nil, false
		}
		v = a % b
	case mir.OpURem:
		if b == 0 {
			return nil, false
		}
		v = int64(uint64(a) % uint64(b))
	case mir.OpShl:
		v = a << uint(b)
	case mir.OpLShr:
		v = int64(uint64(a) >> uint(b))
	case mir.OpAShr:
		v = a >> uint(b)
	case mir.OpAnd:
		v = a & b
	case mir.OpOr:
		v = a | b
	case mir.OpXor:
		v = a ^ b
	}
	return mir.ConstInt(int32(v)), true
}

func foldFloatBinary(i *mir.Instruction) (*mir.Const, bool) {
	l, ok1 := asConst(i.Operand(0))
	r, ok2 := asConst(i.Operand(1))
	if !ok1 || !ok2 {
		return nil, false
	}
	a, b := l.AsFloat(), r.AsFloat()
	var v float32
	switch i.Kind {
	case mir.OpFAdd:
		v = a + b
	case mir.OpFSub:
		v = a - b
	case mir.OpFMul:
		v = a * b
	case mir.OpFDiv:
		if b == 0 {
			return nil, false
		}
		v = a / b
	}
	return mir.ConstFloat(v), true
}

func foldICmp(i *mir.Instruction) (*mir.Const, bool) {
	l, ok1 := asConst(i.Operand(0))
	r, ok2 := asConst(i.Operand(1))
	if !ok1 || !ok2 {
		return nil, false
	}
	a, b := l.AsInt(), r.AsInt()
	var v bool
	switch i.ICmpPred {
	case mir.ICmpEQ:
		v = a == b
	case mir.ICmpNE:
		v = a != b
	case mir.ICmpSLT:
		v = a < b
	case mir.ICmpSLE:
		v = a <= b
	case mir.ICmpSGT:
		v = a > b
	case mir.ICmpSGE:
		v = a >= b
	case mir.ICmpULT:
		v = uint64(a) < uint64(b)
	case mir.ICmpULE:
		v = uint64(a) <= uint64(b)
	case mir.ICmpUGT:
		v = uint64(a) > uint64(b)
	case mir.ICmpUGE:
		v = uint64(a) >= uint64(b)
	}
	return mir.ConstBool(v), true
}

func foldFCmp(i *mir.Instruction) (*mir.Const, bool) {
	l, ok1 := asConst(i.Operand(0))
	r, ok2 := asConst(i.Operand(1))
	if !ok1 || !ok2 {
		return nil, false
	}
	a, b := l.AsFloat(), r.AsFloat()
	var v bool
	switch i.FCmpPred {
	case mir.FCmpOEQ:
		v = a == b
	case mir.FCmpONE:
		v = a != b
	case mir.FCmpOLT:
		v = a < b
	case mir.FCmpOLE:
		v = a <= b
	case mir.FCmpOGT:
		v = a > b
	case mir.FCmpOGE:
		v = a >= b
	}
	return mir.ConstBool(v), true
}

func foldCast(i *mir.Instruction) (*mir.Const, bool) {
	src, ok := asConst(i.Operand(0))
	if !ok {
		return nil, false
	}
	switch i.Kind {
	case mir.OpZext, mir.OpSext:
		return mir.ConstInt(int32(src.AsInt())), true
	case mir.OpTrunc:
		return mir.ConstBool(src.AsInt() != 0), true
	case mir.OpFpToSi:
		return mir.ConstInt(int32(src.AsFloat())), true
	case mir.OpSiToFp:
		return mir.ConstFloat(float32(src.AsInt())), true
	case mir.OpFpExt, mir.OpFpTrunc:
		return mir.ConstFloat(src.AsFloat()), true
	}
	return nil, false
}
