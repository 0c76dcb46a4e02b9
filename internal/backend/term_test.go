package backend

import "testing"

func threeBlockFunc() *Function {
	bb0 := &Block{Label: "bb0"}
	bb1 := &Block{Label: "bb1"}
	bb2 := &Block{Label: "bb2"}
	bb0.Insts = []*Instruction{
		{Op: OpBnez, Src: []Operand{A0}, Target: bb2, FallThrough: bb1},
		{Op: OpJ, Target: bb1},
	}
	bb1.Insts = []*Instruction{{Op: OpJ, Target: bb2}}
	bb2.Insts = []*Instruction{{Op: OpRet}}
	return &Function{Name: "f", Blocks: []*Block{bb0, bb1, bb2}}
}

func TestSimplifyThenDesimplifyRoundTrips(t *testing.T) {
	fn := threeBlockFunc()
	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("starting form invalid: %v", err)
	}

	SimplifyTerm(fn)
	// bb1's trailing jump to bb2 (the next block) should be gone.
	if len(fn.Blocks[1].Insts) != 0 {
		t.Fatalf("expected bb1's fallthrough jump to be dropped, got %v", fn.Blocks[1].Insts)
	}

	DesimplifyTerm(fn)
	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("desimplified form invalid: %v", err)
	}
	if len(fn.Blocks[1].Insts) != 1 || fn.Blocks[1].Insts[0].Op != OpJ || fn.Blocks[1].Insts[0].Target != fn.Blocks[2] {
		t.Fatalf("expected bb1's jump restored to bb2, got %v", fn.Blocks[1].Insts)
	}
}

func TestSimplifyTermLeavesNonFallthroughJumpsAlone(t *testing.T) {
	bb0 := &Block{Label: "bb0"}
	bb1 := &Block{Label: "bb1"}
	bb0.Insts = []*Instruction{{Op: OpJ, Target: bb1}}
	bb1.Insts = []*Instruction{{Op: OpJ, Target: bb0}} // loop back, not a fallthrough
	fn := &Function{Blocks: []*Block{bb0, bb1}}

	SimplifyTerm(fn)
	if len(fn.Blocks[0].Insts) != 0 {
		t.Fatalf("bb0's jump to the next block should be dropped")
	}
	if len(fn.Blocks[1].Insts) != 1 {
		t.Fatalf("bb1's jump is not a fallthrough (last block) and must survive")
	}
}
