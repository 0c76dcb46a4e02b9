package optimize

import (
	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// RedundanceElim is global value numbering: walking the dominator tree, the first
// instruction seen for a value-number expression becomes the leader;
// later instructions with an equal expression dominated by the leader
// are replaced by it. Confluent by construction: leaders
// are chosen by a fixed dominator-tree preorder, so running twice
// reselects the same leaders and finds nothing left to merge.
type RedundanceElim struct{}

func (RedundanceElim) Name() string { return "redundance_elim" }

func (RedundanceElim) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	dom := analysis.BuildDomTree(fn)
	vn := analysis.NewValueNumberer()

	leaders := map[int]*mir.Instruction{}
	changed := false

	var walk func(b *mir.BasicBlock)
	walk = func(b *mir.BasicBlock) {
		for inst := b.Front(); inst != nil; {
			next := inst.Next()
			if eligibleForGVN(inst) {
				num := vn.Number(inst)
				if leader, ok := leaders[num]; ok && leader != inst {
					inst.ReplaceSelf(leader)
					changed = true
				} else {
					leaders[num] = inst
				}
			}
			inst = next
		}
		for _, c := range dom.Dominatees(b) {
			walk(c)
		}
	}
	walk(fn.Entry)
	return changed, nil
}

func eligibleForGVN(i *mir.Instruction) bool {
	if !i.Kind.IsPure() {
		return false
	}
	switch i.Kind {
	case mir.OpLoad, mir.OpCall, mir.OpAlloca, mir.OpPhi:
		return false // identity-numbered ; Memory-SSA-aware merging lives in load_elim
	default:
		return true
	}
}
