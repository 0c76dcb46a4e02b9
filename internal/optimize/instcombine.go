package optimize

import (
	"math/bits"

	"github.com/sysyrv/sysyrv/internal/mir"
)

// InstCombine is an algebraic rewrite pass: x+0->x, x*1->x,
// x*2^n->x<<n, x/2^n->x>>n and x%2^n->x&(2^n-1) for unsigned division
// only, bool-zext-then-icmp-ne-zero cancellation, and
// predicate-swap-to-place-immediate-on-the-right for
// commutative/comparison ops. Signed division and remainder are left
// unchanged. GEP coalescing and compare-then-branch fusion are not
// performed, here or in the backend, whose branch lowering tests the
// boolean condition register with bnez.
type InstCombine struct{}

func (InstCombine) Name() string { return "inst_combine" }

func (InstCombine) Run(fn *mir.Function) (bool, error) {
	changed := false
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if rewriteArith(inst) {
				changed = true
			}
			if canonicalizeImmediate(inst) {
				changed = true
			}
			if cancelZextIcmpZero(inst) {
				changed = true
			}
		}
	}
	return changed, nil
}

func constInt(op mir.Operand) (int64, bool) {
	c, ok := op.(*mir.Const)
	if !ok || !c.Type().IsInteger() {
		return 0, false
	}
	return c.AsInt(), true
}

// rewriteArith applies the strength-reduction identities to i in
// place by replacing its uses with a cheaper equivalent expression.
func rewriteArith(i *mir.Instruction) bool {
	switch i.Kind {
	case mir.OpAdd:
		if v, ok := constInt(i.Operand(1)); ok && v == 0 {
			i.ReplaceSelf(i.Operand(0))
			return true
		}
	case mir.OpMul:
		if v, ok := constInt(i.Operand(1)); ok {
			switch {
			case v == 1:
				i.ReplaceSelf(i.Operand(0))
				return true
			case v == 0:
				i.ReplaceSelf(mir.ConstInt(0))
				return true
			case isPow2(v):
				n := bits.TrailingZeros64(uint64(v))
				i.SetOperand(1, mir.ConstInt(int32(n)))
				i.Kind = mir.OpShl
				return true
			}
		}
	case mir.OpUDiv:
		if v, ok := constInt(i.Operand(1)); ok && isPow2(v) {
			n := bits.TrailingZeros64(uint64(v))
			i.SetOperand(1, mir.ConstInt(int32(n)))
			i.Kind = mir.OpLShr
			return true
		}
	// SDiv by a power of two is left alone: it is only a plain shift
	// for non-negative dividends, and this pass does not prove a
	// dividend non-negative. The backend lowers it as a plain div.
	case mir.OpURem:
		if v, ok := constInt(i.Operand(1)); ok && isPow2(v) {
			i.SetOperand(1, mir.ConstInt(int32(v-1)))
			i.Kind = mir.OpAnd
			return true
		}
	}
	return false
}

func isPow2(v int64) bool { return v > 0 && v&(v-1) == 0 }

// canonicalizeImmediate swaps a commutative or comparison op's
// operands so a constant lands on the right, matching the shape
// instruction selection expects for in-range immediates.
func canonicalizeImmediate(i *mir.Instruction) bool {
	if _, rightIsConst := i.Operand(len(i.Operands()) - 1).(*mir.Const); rightIsConst {
		return false
	}
	_, leftIsConst := i.Operand(0).(*mir.Const)
	if !leftIsConst {
		return false
	}
	switch i.Kind {
	case mir.OpAdd, mir.OpMul, mir.OpAnd, mir.OpOr, mir.OpXor, mir.OpFAdd, mir.OpFMul:
		l, r := i.Operand(0), i.Operand(1)
		i.SetOperand(0, r)
		i.SetOperand(1, l)
		return true
	case mir.OpICmp:
		l, r := i.Operand(0), i.Operand(1)
		i.SetOperand(0, r)
		i.SetOperand(1, l)
		i.ICmpPred = i.ICmpPred.Swapped()
		return true
	}
	return false
}

// cancelZextIcmpZero rewrites `icmp ne (zext b), 0` back to `b` when b
// is already a Bool, undoing the round-trip the frontend's
// boolean-to-int coercion otherwise leaves behind. The `icmp eq (zext
// b), 0` form is left unchanged.
func cancelZextIcmpZero(i *mir.Instruction) bool {
	if i.Kind != mir.OpICmp {
		return false
	}
	if i.ICmpPred != mir.ICmpNE && i.ICmpPred != mir.ICmpEQ {
		return false
	}
	rhs, ok := constInt(i.Operand(1))
	if !ok || rhs != 0 {
		return false
	}
	z, ok := i.Operand(0).(*mir.Instruction)
	if !ok || z.Kind != mir.OpZext || !z.Operand(0).Type().IsBool() {
		return false
	}
	if i.ICmpPred == mir.ICmpNE {
		i.ReplaceSelf(z.Operand(0))
	} else {
		// eq-zero is logical negation; synthesize `xor b, true` is a
		// structural change this pass does not perform standalone, so
		// conservatively skip (the NE case covers the common branch
		// condition shape produced by the frontend).
		return false
	}
	return true
}
