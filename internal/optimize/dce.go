package optimize

import "github.com/sysyrv/sysyrv/internal/mir"

// DeadCodeElim removes instructions with no users
// whose kind is pure, and removes unreachable blocks, to a fixed
// point within a single Run call.
type DeadCodeElim struct{}

func (DeadCodeElim) Name() string { return "dead_code_elim" }

func (DeadCodeElim) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	changed := removeUnreachableBlocks(fn)
	for {
		removedAny := false
		for _, b := range fn.Blocks() {
			for inst := b.Front(); inst != nil; {
				next := inst.Next()
				if inst.Kind.IsPure() && len(inst.Users()) == 0 {
					inst.RemoveSelf()
					removedAny = true
				}
				inst = next
			}
		}
		if !removedAny {
			break
		}
		changed = true
	}
	return changed, nil
}

// removeUnreachableBlocks drops blocks not reachable from Entry,
// detaching their phi edges and terminator-successor links first so
// surviving blocks' invariants stay intact.
func removeUnreachableBlocks(fn *mir.Function) bool {
	reachable := map[*mir.BasicBlock]bool{}
	for _, b := range fn.DFSFromEntry() {
		reachable[b] = true
	}
	if len(reachable) == len(fn.Blocks()) {
		return false
	}
	kept := make([]*mir.BasicBlock, 0, len(reachable))
	for _, b := range fn.Blocks() {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
		for _, s := range b.Succs() {
			if reachable[s] {
				for inst := s.Front(); inst != nil && inst.Kind == mir.OpPhi; inst = inst.Next() {
					inst.RemoveIncoming(b)
				}
			}
		}
		b.DetachSuccessors()
	}
	fn.SetBlocks(kept)
	return true
}
