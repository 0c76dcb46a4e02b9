package backend

import (
	"testing"

	"github.com/sysyrv/sysyrv/internal/mir"
)

func TestRound16(t *testing.T) {
	cases := map[int64]int64{0: 0, 1: 16, 15: 16, 16: 16, 17: 32, 33: 48}
	for in, want := range cases {
		if got := round16(in); got != want {
			t.Errorf("round16(%d) = %d, want %d", in, got, want)
		}
	}
}

// TestBuildFrameLayoutsSlotsAboveOutgoingArgs builds a function with one
// alloca'd local, one outgoing stack argument, and a callee-saved
// register clobbered in the body, then checks BuildFrame packs the
// local above the outgoing-args area and rewrites its LocalAddr into an
// sp-relative addi.
func TestBuildFrameLayoutsSlotsAboveOutgoingArgs(t *testing.T) {
	local := Reg{id: 100, Class: ClassInt}
	entry := &Block{Label: "entry"}
	entry.Insts = []*Instruction{
		{Op: OpLocalAddr, Dst: local, Src: []Operand{StackSlot{ID: 0, Size: 8}}},
		{Op: OpStore, Src: []Operand{outgoingArgPseudo{index: 0}, A0}, Width: 8},
		{Op: OpAdd, Dst: S1, Src: []Operand{S1, A0}}, // forces s1 into SavedInt
		{Op: OpRet},
	}
	fn := &Function{
		Name:        "f",
		Blocks:      []*Block{entry},
		allocaSlots: map[*mir.Instruction]StackSlot{&mir.Instruction{}: {ID: 0, Size: 8}},
	}

	BuildFrame(fn)

	if fn.Frame == nil {
		t.Fatal("expected a computed frame")
	}
	if fn.Frame.OutgoingArgsSize != wordSize {
		t.Fatalf("expected one outgoing arg word, got %d", fn.Frame.OutgoingArgsSize)
	}
	found := false
	for _, r := range fn.Frame.SavedInt {
		if r == S1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected s1 to be saved, got %v", fn.Frame.SavedInt)
	}

	// The prologue's own sp-decrement addi is prepended ahead of it, so
	// find the rewritten LocalAddr by its destination register instead
	// of by position.
	var addr *Instruction
	for _, inst := range entry.Insts {
		if inst.Op == OpAddi && inst.Dst == local {
			addr = inst
		}
	}
	if addr == nil {
		t.Fatalf("expected LocalAddr rewritten to an addi into %s, got %v", local, entry.Insts)
	}
	off, ok := addr.Src[1].(Imm)
	if !ok {
		t.Fatalf("expected an immediate offset operand, got %T", addr.Src[1])
	}
	if off.Value != fn.Frame.OutgoingArgsSize {
		t.Fatalf("expected the local to sit right above the outgoing-args area (%d), got %d", fn.Frame.OutgoingArgsSize, off.Value)
	}
}

// TestBuildFrameMaterializesOutOfRangeOffsetThroughT3 checks that an
// offset too large for a 12-bit immediate gets materialized through t3
// instead of folded into the memory instruction directly.
func TestBuildFrameMaterializesOutOfRangeOffsetThroughT3(t *testing.T) {
	// id 0 is a large filler slot so id 1 lands at an offset beyond the
	// 12-bit immediate range (2047).
	entry := &Block{Label: "entry"}
	entry.Insts = []*Instruction{
		{Op: OpLoad, Dst: A0, Src: []Operand{StackSlot{ID: 1, Size: 8}}, Width: 8},
		{Op: OpRet},
	}
	fn := &Function{
		Name:   "f",
		Blocks: []*Block{entry},
		allocaSlots: map[*mir.Instruction]StackSlot{
			{}: {ID: 0, Size: 4096},
			{}: {ID: 1, Size: 8},
		},
	}
	BuildFrame(fn)

	// The li/add/load triple isn't at a fixed index: the prologue's sp
	// decrement and ra spill are prepended ahead of it.
	var li, add, load *Instruction
	for i, inst := range entry.Insts {
		if inst.Op == OpLi {
			li = inst
			if i+2 < len(entry.Insts) {
				add = entry.Insts[i+1]
				load = entry.Insts[i+2]
			}
			break
		}
	}
	if li == nil {
		t.Fatalf("expected a li materializing the out-of-range offset, got %v", entry.Insts)
	}
	if add == nil || add.Op != OpAdd {
		t.Fatalf("expected an add computing the address right after the li, got %v", add)
	}
	if load == nil || load.Op != OpLoad || load.Offset != 0 {
		t.Fatalf("expected the load rewritten to offset 0 off t3, got %+v", load)
	}
}

// TestBuildFrameSavesAndRestoresRA checks that every OpRet-terminated
// block gets a matching ra reload before it, and the entry block a ra
// spill as part of the prologue.
func TestBuildFrameSavesAndRestoresRA(t *testing.T) {
	entry := &Block{Label: "entry", Insts: []*Instruction{{Op: OpRet}}}
	fn := &Function{Name: "f", Blocks: []*Block{entry}}
	BuildFrame(fn)

	if entry.Insts[0].Op != OpAddi {
		t.Fatalf("expected the prologue's sp decrement first, got %s", entry.Insts[0].Op)
	}
	foundSaveRA := false
	for _, inst := range entry.Insts {
		if inst.Op == OpStore && inst.Offset == fn.Frame.Size-wordSize {
			if r, ok := inst.Src[1].(Reg); ok && r == RA {
				foundSaveRA = true
			}
		}
	}
	if !foundSaveRA {
		t.Fatalf("expected ra saved in the prologue, got %v", entry.Insts)
	}
	last := entry.Insts[len(entry.Insts)-1]
	if last.Op != OpRet {
		t.Fatalf("expected the block to still end in ret, got %s", last.Op)
	}
	foundRestoreRA := false
	for _, inst := range entry.Insts {
		if inst.Op == OpLoad && inst.Dst == RA {
			foundRestoreRA = true
		}
	}
	if !foundRestoreRA {
		t.Fatalf("expected ra reloaded before ret, got %v", entry.Insts)
	}
}
