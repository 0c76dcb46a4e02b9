package backend

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/mir"
	"github.com/sysyrv/sysyrv/internal/types"
)

func lowerOne(t *testing.T, build func(*mir.Builder) *mir.Function) *Function {
	t.Helper()
	b := mir.NewBuilder()
	build(b)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	bm, err := Lower(b.Module, log)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(bm.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(bm.Functions))
	}
	return bm.Functions[0]
}

func hasOp(fn *Function, op Op) bool {
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op == op {
				return true
			}
		}
	}
	return false
}

func countOp(fn *Function, op Op) int {
	n := 0
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op == op {
				n++
			}
		}
	}
	return n
}

func TestLowerFloatBinOp(t *testing.T) {
	fn := lowerOne(t, func(b *mir.Builder) *mir.Function {
		f := b.NewFunction("fadd", types.Float)
		x := b.AddParam(f, "x", types.Float)
		y := b.AddParam(f, "y", types.Float)
		entry := b.NewBasicBlock(f, "entry")
		sum := entry.NewFAdd(x, y)
		entry.NewRet(sum)
		return f
	})
	if !hasOp(fn, OpFAddS) {
		t.Fatalf("expected fadd.s lowered, got %v", fn.Blocks[0].Insts)
	}
}

func TestLowerICmpSLEExpandsToSltPlusComplement(t *testing.T) {
	fn := lowerOne(t, func(b *mir.Builder) *mir.Function {
		f := b.NewFunction("le", types.Bool)
		x := b.AddParam(f, "x", types.Int)
		y := b.AddParam(f, "y", types.Int)
		entry := b.NewBasicBlock(f, "entry")
		cmp := entry.NewICmp(mir.ICmpSLE, x, y)
		entry.NewRet(cmp)
		return f
	})
	if !hasOp(fn, OpSlt) || !hasOp(fn, OpXori) {
		t.Fatalf("expected sle lowered via slt+xori complement, got %v", fn.Blocks[0].Insts)
	}
}

func TestLowerFCmpOEQUsesFeqS(t *testing.T) {
	fn := lowerOne(t, func(b *mir.Builder) *mir.Function {
		f := b.NewFunction("feq", types.Bool)
		x := b.AddParam(f, "x", types.Float)
		y := b.AddParam(f, "y", types.Float)
		entry := b.NewBasicBlock(f, "entry")
		cmp := entry.NewFCmp(mir.FCmpOEQ, x, y)
		entry.NewRet(cmp)
		return f
	})
	if !hasOp(fn, OpFeqS) {
		t.Fatalf("expected feq.s lowered, got %v", fn.Blocks[0].Insts)
	}
}

// TestLowerCallSpillsArgumentsPastEightToStack exercises the
// outgoing-args overflow path: a call with nine integer arguments must
// marshal the first eight into a0-a7 and spill the ninth via
// outgoingArgPseudo.
func TestLowerCallSpillsArgumentsPastEightToStack(t *testing.T) {
	fn := lowerOne(t, func(b *mir.Builder) *mir.Function {
		callee := b.NewFunction("sink", types.Int)
		for i := 0; i < 9; i++ {
			b.AddParam(callee, "p", types.Int)
		}

		f := b.NewFunction("caller", types.Int)
		entry := b.NewBasicBlock(f, "entry")
		args := make([]mir.Operand, 9)
		for i := range args {
			args[i] = mir.ConstInt(int32(i))
		}
		call := entry.NewCall(callee, args...)
		entry.NewRet(call)
		return f
	})

	foundSpillStore := false
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op == OpStore {
				if p, ok := inst.Src[0].(outgoingArgPseudo); ok && p.index == 0 {
					foundSpillStore = true
				}
			}
		}
	}
	if !foundSpillStore {
		t.Fatalf("expected the 9th argument spilled to outgoing_arg[0], got %v", fn.Blocks[0].Insts)
	}
	if countOp(fn, OpMv) < 8 {
		t.Fatalf("expected the first 8 arguments marshaled via register moves, got %v", fn.Blocks[0].Insts)
	}
}

// TestLowerGEPConstantIndexFoldsIntoImmediate checks that a GEP with a
// compile-time-constant index computes its offset via an addi rather
// than a runtime multiply.
func TestLowerGEPConstantIndexFoldsIntoImmediate(t *testing.T) {
	fn := lowerOne(t, func(b *mir.Builder) *mir.Function {
		arrTy := types.Array(types.Int, 10)
		f := b.NewFunction("idx", types.Int)
		entry := b.NewBasicBlock(f, "entry")
		arr := entry.NewAlloca(types.Int, 10)
		zero := mir.ConstInt(0)
		three := mir.ConstInt(3)
		addr := entry.NewGetElementPtr(arrTy, arr, zero, three)
		loaded := entry.NewLoad(addr)
		entry.NewRet(loaded)
		return f
	})
	if !hasOp(fn, OpAddi) {
		t.Fatalf("expected the constant GEP index folded into an addi, got %v", fn.Blocks[0].Insts)
	}
	if hasOp(fn, OpMul) {
		t.Fatalf("did not expect a runtime multiply for a constant index, got %v", fn.Blocks[0].Insts)
	}
}

// TestLowerGEPDynamicIndexShiftsForPowerOfTwoStride checks a
// non-constant index into an int array uses a shift (stride 4) rather
// than a multiply.
func TestLowerGEPDynamicIndexShiftsForPowerOfTwoStride(t *testing.T) {
	fn := lowerOne(t, func(b *mir.Builder) *mir.Function {
		arrTy := types.Array(types.Int, 10)
		f := b.NewFunction("idx", types.Int)
		i := b.AddParam(f, "i", types.Int)
		entry := b.NewBasicBlock(f, "entry")
		arr := entry.NewAlloca(types.Int, 10)
		zero := mir.ConstInt(0)
		addr := entry.NewGetElementPtr(arrTy, arr, zero, i)
		loaded := entry.NewLoad(addr)
		entry.NewRet(loaded)
		return f
	})
	if !hasOp(fn, OpSlli) {
		t.Fatalf("expected a shift for the power-of-two stride, got %v", fn.Blocks[0].Insts)
	}
}
