package backend

import "testing"

// farApartFunc builds a branch+jump block followed by a long run of
// filler blocks (one add each) and a final target block, so the
// estimated branch distance exceeds maxBranchRange.
func farApartFunc(fillerBlocks int) *Function {
	start := &Block{Label: "start"}
	target := &Block{Label: "target", Insts: []*Instruction{{Op: OpRet}}}
	next := &Block{Label: "next"}

	start.Insts = []*Instruction{
		{Op: OpBeq, Src: []Operand{A0, A1}, Target: target},
		{Op: OpJ, Target: next},
	}

	blocks := []*Block{start}
	cursor := next
	for i := 0; i < fillerBlocks; i++ {
		b := &Block{Label: "filler", Insts: []*Instruction{
			{Op: OpAdd, Dst: A0, Src: []Operand{A0, A1}},
		}}
		blocks = append(blocks, cursor)
		cursor.Insts = append(cursor.Insts, &Instruction{Op: OpJ, Target: b})
		cursor = b
	}
	cursor.Insts = append(cursor.Insts, &Instruction{Op: OpJ, Target: target})
	blocks = append(blocks, cursor, target)

	return &Function{Name: "f", Blocks: blocks}
}

func TestFixLongJumpsLeavesShortBranchesAlone(t *testing.T) {
	fn := farApartFunc(2)
	before := len(fn.Blocks)
	FixLongJumps(fn)
	if len(fn.Blocks) != before {
		t.Fatalf("expected no change for a short function, got %d blocks (was %d)", len(fn.Blocks), before)
	}
}

func TestFixLongJumpsInvertsAndSplitsFarBranches(t *testing.T) {
	fn := farApartFunc(6000) // 6000*4 bytes > maxBranchRange
	FixLongJumps(fn)

	start := fn.Blocks[0]
	branch := start.Insts[0]
	jump := start.Insts[1]

	if branch.Op != OpBne {
		t.Fatalf("expected beq inverted to bne, got %s", branch.Op)
	}
	if branch.Target == nil || branch.Target.Label != "start.lj" {
		t.Fatalf("expected branch retargeted to a synthetic skip block, got %v", branch.Target)
	}
	if jump.Op != OpJ {
		t.Fatalf("expected the original jmp to remain a jmp, got %s", jump.Op)
	}

	var skip *Block
	for _, b := range fn.Blocks {
		if b.Label == "start.lj" {
			skip = b
		}
	}
	if skip == nil {
		t.Fatal("expected a synthetic .lj block to be inserted")
	}
	if len(skip.Insts) != 1 || skip.Insts[0].Op != OpJ {
		t.Fatalf("expected the skip block to contain a single jmp, got %v", skip.Insts)
	}

	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("result violates the tight-terminator invariant: %v", err)
	}
}
