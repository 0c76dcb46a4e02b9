package optimize

import "github.com/sysyrv/sysyrv/internal/mir"

// BlockFuse merges a block pair a, b where a has exactly one successor
// b and b has exactly one predecessor a, and b is not the function
// entry: move b's non-terminator instructions before a's terminator,
// replace a's terminator with b's, and delete b. Phis in b (each with
// a as its only incoming block) are replaced by their value, and phis
// in b's successors take a in place of b. Monotone: every
// application strictly decreases the block count by one, so it never
// increases it.
type BlockFuse struct{}

func (BlockFuse) Name() string { return "block_fuse" }

func (BlockFuse) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	changed := false
	for {
		fused := fuseOnce(fn)
		if !fused {
			break
		}
		changed = true
	}
	return changed, nil
}

func fuseOnce(fn *mir.Function) bool {
	for _, a := range fn.Blocks() {
		succs := a.Succs()
		if len(succs) != 1 {
			continue
		}
		b := succs[0]
		if b == fn.Entry || len(b.Preds()) != 1 || b.Preds()[0] != a {
			continue
		}

		term := a.Terminator()
		term.RemoveSelf()

		for inst := b.Front(); inst != nil && inst.Kind != mir.OpBr && inst.Kind != mir.OpRet; {
			next := inst.Next()
			if inst.Kind == mir.OpPhi {
				inst.ReplaceSelf(inst.Operand(0))
				inst.RemoveSelf()
				inst = next
				continue
			}
			inst.RemoveSelf()
			a.AppendInst(inst)
			inst = next
		}
		newTerm := b.Terminator()
		trueSucc, falseSucc := b.TrueSucc(), b.FalseSucc()
		newTerm.RemoveSelf()
		a.AppendInst(newTerm)
		a.DetachSuccessors()
		a.RewireCondSuccessors(trueSucc, falseSucc)
		for _, s := range a.Succs() {
			for phi := s.Front(); phi != nil && phi.Kind == mir.OpPhi; phi = phi.Next() {
				if v, ok := phi.IncomingFor(b); ok {
					phi.RemoveIncoming(b)
					phi.AddIncoming(v, a)
				}
			}
		}

		dropBlock(fn, b)
		return true
	}
	return false
}

func dropBlock(fn *mir.Function, b *mir.BasicBlock) {
	kept := make([]*mir.BasicBlock, 0, len(fn.Blocks())-1)
	for _, x := range fn.Blocks() {
		if x != b {
			kept = append(kept, x)
		}
	}
	fn.SetBlocks(kept)
}
