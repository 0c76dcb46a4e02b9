package optimize

import (
	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// LDCE is loop-invariant dead-code elimination: within a
// loop, an instruction with no users outside the loop whose observable
// effect is confined to the loop and which dominates no
// control-dependent exit may be deleted.
type LDCE struct {
	funcEffects map[*mir.Function]analysis.EffectRange
}

func NewLDCE(funcEffects map[*mir.Function]analysis.EffectRange) *LDCE {
	return &LDCE{funcEffects: funcEffects}
}

func (*LDCE) Name() string { return "ldce" }

func (p *LDCE) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	dom := analysis.BuildDomTree(fn)
	forest := analysis.BuildLoopForest(fn, dom)

	changed := false
	for _, l := range bottomUp(forest) {
		if deleteDeadInLoop(fn, l, dom, p.funcEffects) {
			changed = true
		}
	}
	return changed, nil
}

func deleteDeadInLoop(fn *mir.Function, l *analysis.Loop, dom *analysis.DomTree, funcEffects map[*mir.Function]analysis.EffectRange) bool {
	exits := l.ExitBlocks()
	changed := false
	for b := range l.Blocks {
		for inst := b.Front(); inst != nil; {
			next := inst.Next()
			if eligibleForLDCE(inst, l) && !usedOutsideLoop(inst, l) && !dominatesAnyExit(inst.Parent(), exits, dom) {
				inst.RemoveSelf()
				changed = true
			}
			inst = next
		}
	}
	return changed
}

func eligibleForLDCE(inst *mir.Instruction, l *analysis.Loop) bool {
	if inst.Kind == mir.OpStore || inst.Kind == mir.OpCall {
		return false // effect may be observed outside the loop via memory, conservatively kept
	}
	return inst.Kind.IsPure()
}

func usedOutsideLoop(inst *mir.Instruction, l *analysis.Loop) bool {
	for _, u := range inst.Users() {
		if !l.Contains(u.Parent()) {
			return true
		}
	}
	return false
}

func dominatesAnyExit(b *mir.BasicBlock, exits []*mir.BasicBlock, dom *analysis.DomTree) bool {
	for _, e := range exits {
		if dom.Dominates(b, e) {
			return true
		}
	}
	return false
}
