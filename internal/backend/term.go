package backend

// SimplifyTerm drops a block's trailing unconditional jump when its
// target is the block immediately following it in layout order —
// control falls through anyway, so the jump is dead weight that only
// gets reinstated (DesimplifyTerm) if something later reorders blocks
// or needs every block in the two-terminator form the emitter assumes.
func SimplifyTerm(fn *Function) {
	for i := 0; i < len(fn.Blocks)-1; i++ {
		bb := fn.Blocks[i]
		term := bb.Terminator()
		if term != nil && term.Op == OpJ && term.Target == fn.Blocks[i+1] {
			bb.Insts = bb.Insts[:len(bb.Insts)-1]
		}
	}
}

// DesimplifyTerm restores the explicit fallthrough jump SimplifyTerm
// drops, so every non-final block ends in the tight
// {branch,jmp}-or-{jmp}-or-{ret} form. A trailing branch gets a jmp to
// its recorded FallThrough block; a block with no terminator left gets
// a jmp to the block that follows it in the current layout.
func DesimplifyTerm(fn *Function) {
	for i := 0; i < len(fn.Blocks)-1; i++ {
		bb := fn.Blocks[i]
		term := bb.Terminator()
		if term == nil || !term.Op.IsTerminator() {
			bb.Insts = append(bb.Insts, &Instruction{Op: OpJ, Target: fn.Blocks[i+1]})
			continue
		}
		if term.Op.IsBranch() {
			bb.Insts = append(bb.Insts, &Instruction{Op: OpJ, Target: term.FallThrough})
		}
	}
}
