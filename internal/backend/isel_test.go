package backend

import (
	"testing"

	"github.com/sysyrv/sysyrv/internal/mir"
	"github.com/sysyrv/sysyrv/internal/types"
)

func TestLowerGlobalAllZeroProducesNoWords(t *testing.T) {
	g := &mir.Global{Name: "g", Ty: types.Array(types.Int, 4), Init: mir.ConstZero(types.Array(types.Int, 4))}
	gd := lowerGlobal(g)
	if !gd.AllZero() {
		t.Fatalf("expected an all-zero initializer to produce no explicit words, got %v", gd.Words)
	}
}

func TestLowerGlobalFlattensSparseArrayLeavingZeroGaps(t *testing.T) {
	elemTy := types.Int
	elems := []*mir.Const{
		mir.ConstInt(1),
		mir.ConstZero(elemTy),
		mir.ConstInt(3),
		mir.ConstZero(elemTy),
	}
	arr := mir.ConstArray(elemTy, elems)
	g := &mir.Global{Name: "g", Ty: arr.Type(), Init: arr}
	gd := lowerGlobal(g)

	if len(gd.Words) != 2 {
		t.Fatalf("expected only the two non-zero elements recorded, got %v", gd.Words)
	}
	if gd.Words[0].Offset != 0 || gd.Words[0].IntVal != 1 {
		t.Fatalf("unexpected first word: %+v", gd.Words[0])
	}
	if gd.Words[1].Offset != 2*elemTy.Size() || gd.Words[1].IntVal != 3 {
		t.Fatalf("unexpected second word: %+v", gd.Words[1])
	}
}

func TestLowerGlobalFlattensNestedArray(t *testing.T) {
	inner := types.Array(types.Int, 2)
	row0 := mir.ConstArray(types.Int, []*mir.Const{mir.ConstInt(0), mir.ConstInt(5)})
	row1 := mir.ConstArray(types.Int, []*mir.Const{mir.ConstInt(6), mir.ConstInt(0)})
	outer := mir.ConstArray(inner, []*mir.Const{row0, row1})
	g := &mir.Global{Name: "m", Ty: outer.Type(), Init: outer}
	gd := lowerGlobal(g)

	if len(gd.Words) != 2 {
		t.Fatalf("expected two non-zero scalar leaves across both rows, got %v", gd.Words)
	}
	wantOffsets := map[int64]int32{types.Int.Size(): 5, inner.Size(): 6}
	for _, w := range gd.Words {
		if want, ok := wantOffsets[w.Offset]; !ok || want != w.IntVal {
			t.Fatalf("unexpected word at offset %d: %+v", w.Offset, w)
		}
	}
}

func TestSequentializeCopiesNoCycleOrdersIndependentPairs(t *testing.T) {
	d0, d1 := Reg{id: 1}, Reg{id: 2}
	s0, s1 := Reg{id: 10}, Reg{id: 11}
	out := sequentializeCopies([]copyPair{{dst: d0, src: s0}, {dst: d1, src: s1}})
	if len(out) != 2 {
		t.Fatalf("expected both independent copies preserved, got %v", out)
	}
}

func TestSequentializeCopiesDropsIdentityCopy(t *testing.T) {
	d := Reg{id: 1}
	out := sequentializeCopies([]copyPair{{dst: d, src: d}})
	if len(out) != 0 {
		t.Fatalf("expected a dst==src copy to be elided, got %v", out)
	}
}

// TestSequentializeCopiesBreaksCycleWithTemp builds a 2-cycle (dst of
// one pair is the src of the other and vice versa) where a naive
// left-to-right emission would clobber a value before it's read, and
// checks the output introduces a temporary to break it.
func TestSequentializeCopiesBreaksCycleWithTemp(t *testing.T) {
	a, b := Reg{id: 1}, Reg{id: 2}
	out := sequentializeCopies([]copyPair{{dst: a, src: b}, {dst: b, src: a}})

	if len(out) != 3 {
		t.Fatalf("expected a 2-cycle to require 3 copies (one through a temp), got %d: %v", len(out), out)
	}
	// Simulate execution and check both registers end up swapped.
	regs := map[Reg]Reg{a: a, b: b} // regs[x] tracks the value currently held in x as "which original register's value"
	for _, cp := range out {
		regs[cp.dst] = regs[cp.src]
	}
	if regs[a] != b || regs[b] != a {
		t.Fatalf("expected a 2-cycle swap, got a=%v b=%v", regs[a], regs[b])
	}
}
