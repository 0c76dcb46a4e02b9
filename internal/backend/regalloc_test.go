package backend

import "testing"

// manyLiveValuesFunc builds a single block that loads n distinct
// immediates into n distinct virtual registers, then sums them all
// into a0 at the end — every vreg is live across every other vreg's
// definition, forcing more simultaneous colors than IntAllocatable has
// when n exceeds its length.
func manyLiveValuesFunc(n int) *Function {
	va := &vregAllocator{}
	var insts []*Instruction
	vregs := make([]Reg, n)
	for i := 0; i < n; i++ {
		v := va.New(ClassInt)
		vregs[i] = v
		insts = append(insts, &Instruction{Op: OpLi, Dst: v, Src: []Operand{Imm{Value: int64(i)}}})
	}
	acc := vregs[0]
	for i := 1; i < n; i++ {
		next := va.New(ClassInt)
		insts = append(insts, &Instruction{Op: OpAdd, Dst: next, Src: []Operand{acc, vregs[i]}})
		acc = next
	}
	insts = append(insts, &Instruction{Op: OpMv, Dst: A0, Src: []Operand{acc}})
	insts = append(insts, &Instruction{Op: OpRet})

	bb := &Block{Label: "entry", Insts: insts}
	return &Function{Name: "f", Blocks: []*Block{bb}, NumVRegsI: va.next[ClassInt]}
}

func TestRegAllocColorsWithinBudget(t *testing.T) {
	fn := manyLiveValuesFunc(4)
	RegAlloc(fn)
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			for _, r := range append(inst.Defs(), inst.Uses()...) {
				if r.IsVirtual() {
					t.Fatalf("expected every vreg colored or spilled away, found %v in %v", r, inst)
				}
			}
		}
	}
}

// TestRegAllocSpillsWhenDemandExceedsAllocatable forces more
// simultaneously live integer values than IntAllocatable holds, and
// checks RegAlloc converges by spilling rather than looping forever or
// panicking.
func TestRegAllocSpillsWhenDemandExceedsAllocatable(t *testing.T) {
	n := len(IntAllocatable) + 8
	fn := manyLiveValuesFunc(n)
	RegAlloc(fn)

	if len(fn.spillSlots) == 0 {
		t.Fatal("expected at least one spill slot to have been assigned")
	}
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			for _, r := range append(inst.Defs(), inst.Uses()...) {
				if r.IsVirtual() {
					t.Fatalf("expected every vreg colored or spilled away, found %v in %v", r, inst)
				}
			}
		}
	}

	foundSpillLoad, foundSpillStore := false, false
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op == OpLoad {
				if _, ok := inst.Src[0].(StackSlot); ok {
					foundSpillLoad = true
				}
			}
			if inst.Op == OpStore {
				if _, ok := inst.Src[0].(StackSlot); ok {
					foundSpillStore = true
				}
			}
		}
	}
	if !foundSpillLoad || !foundSpillStore {
		t.Fatalf("expected spill reload and spill store instructions, load=%v store=%v", foundSpillLoad, foundSpillStore)
	}
}

func TestApplyColorsDropsDeadSelfMoves(t *testing.T) {
	color := map[Reg]Reg{A0: A0}
	bb := &Block{Label: "bb0", Insts: []*Instruction{
		{Op: OpMv, Dst: A0, Src: []Operand{A0}},
		{Op: OpRet},
	}}
	fn := &Function{Blocks: []*Block{bb}}
	applyColors(fn, color, map[Reg]Reg{})
	if len(bb.Insts) != 1 || bb.Insts[0].Op != OpRet {
		t.Fatalf("expected the dead self-move dropped, got %v", bb.Insts)
	}
}
