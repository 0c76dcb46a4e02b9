package backend

import "testing"

func TestCheckTightTerminatorsAcceptsLoneRetAndJ(t *testing.T) {
	bb0 := &Block{Label: "bb0", Insts: []*Instruction{{Op: OpJ, Target: nil}}}
	bb1 := &Block{Label: "bb1", Insts: []*Instruction{{Op: OpRet}}}
	fn := &Function{Blocks: []*Block{bb0, bb1}}
	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestCheckTightTerminatorsAcceptsBranchThenJump(t *testing.T) {
	bb := &Block{Label: "bb0", Insts: []*Instruction{
		{Op: OpBnez, Src: []Operand{A0}},
		{Op: OpJ},
	}}
	fn := &Function{Blocks: []*Block{bb}}
	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestCheckTightTerminatorsRejectsNoTerminator(t *testing.T) {
	bb := &Block{Label: "bb0", Insts: []*Instruction{{Op: OpAdd, Dst: A0, Src: []Operand{A0, A1}}}}
	fn := &Function{Blocks: []*Block{bb}}
	if err := CheckTightTerminators(fn); err == nil {
		t.Fatal("expected an error for a block with no terminator")
	}
}

func TestCheckTightTerminatorsRejectsTrailingInstructionAfterRet(t *testing.T) {
	bb := &Block{Label: "bb0", Insts: []*Instruction{
		{Op: OpRet},
		{Op: OpAdd, Dst: A0, Src: []Operand{A0, A1}},
	}}
	fn := &Function{Blocks: []*Block{bb}}
	if err := CheckTightTerminators(fn); err == nil {
		t.Fatal("expected an error for an instruction after ret")
	}
}

func TestCheckTightTerminatorsRejectsBareJumpAfterBranchMissing(t *testing.T) {
	bb := &Block{Label: "bb0", Insts: []*Instruction{
		{Op: OpBnez, Src: []Operand{A0}},
		{Op: OpBnez, Src: []Operand{A0}},
	}}
	fn := &Function{Blocks: []*Block{bb}}
	if err := CheckTightTerminators(fn); err == nil {
		t.Fatal("expected an error when the second terminator is not a jmp")
	}
}
