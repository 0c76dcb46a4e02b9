package optimize

import (
	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// LICM is loop-invariant code motion: for each
// instruction in a loop, if all operands are loop-invariant and the
// instruction is safe to speculate (pure, or a memory access proven
// not to alias anything written in the loop), hoist it into the
// pre-header.
type LICM struct {
	funcEffects map[*mir.Function]analysis.EffectRange
}

func NewLICM(funcEffects map[*mir.Function]analysis.EffectRange) *LICM {
	return &LICM{funcEffects: funcEffects}
}

func (*LICM) Name() string { return "licm" }

func (p *LICM) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	dom := analysis.BuildDomTree(fn)
	forest := analysis.BuildLoopForest(fn, dom)

	changed := false
	for _, l := range bottomUp(forest) {
		if l.PreHeader == nil {
			continue
		}
		if hoistInvariants(fn, l, dom, p.funcEffects) {
			changed = true
		}
	}
	return changed, nil
}

// bottomUp returns every loop, innermost first: "for each loop,
// bottom-up in the forest" traversal order.
func bottomUp(f *analysis.LoopForest) []*analysis.Loop {
	var out []*analysis.Loop
	var walk func(l *analysis.Loop)
	walk = func(l *analysis.Loop) {
		for _, s := range l.SubLoops {
			walk(s)
		}
		out = append(out, l)
	}
	for _, l := range f.TopLevel {
		walk(l)
	}
	return out
}

func hoistInvariants(fn *mir.Function, l *analysis.Loop, dom *analysis.DomTree, funcEffects map[*mir.Function]analysis.EffectRange) bool {
	invariant := map[*mir.Instruction]bool{}
	changed := false

	loopWrites := writeEffect(fn, l, funcEffects)

	progress := true
	for progress {
		progress = false
		for b := range l.Blocks {
			for inst := b.Front(); inst != nil; inst = inst.Next() {
				if invariant[inst] || !operandsInvariant(inst, l, invariant) {
					continue
				}
				if !safeToSpeculate(fn, inst, loopWrites, funcEffects) {
					continue
				}
				invariant[inst] = true
				progress = true
			}
		}
	}

	for b := range l.Blocks {
		for inst := b.Front(); inst != nil; {
			next := inst.Next()
			if invariant[inst] {
				inst.RemoveSelf()
				l.PreHeader.InsertBefore(l.PreHeader.Terminator(), inst)
				changed = true
			}
			inst = next
		}
	}
	return changed
}

func operandsInvariant(inst *mir.Instruction, l *analysis.Loop, invariant map[*mir.Instruction]bool) bool {
	for _, op := range inst.Operands() {
		switch v := op.(type) {
		case *mir.Instruction:
			if l.Contains(v.Parent()) && !invariant[v] {
				return false
			}
		}
	}
	return true
}

func safeToSpeculate(fn *mir.Function, inst *mir.Instruction, loopWrites analysis.EffectRange, funcEffects map[*mir.Function]analysis.EffectRange) bool {
	switch inst.Kind {
	case mir.OpLoad:
		eff := analysis.InstEffect(fn, funcEffects, inst)
		return !eff.CanAlias(loopWrites)
	case mir.OpStore, mir.OpCall, mir.OpBr, mir.OpRet, mir.OpPhi, mir.OpAlloca:
		return false
	default:
		return true
	}
}

func writeEffect(fn *mir.Function, l *analysis.Loop, funcEffects map[*mir.Function]analysis.EffectRange) analysis.EffectRange {
	acc := analysis.SomeEffect()
	for b := range l.Blocks {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if inst.Kind == mir.OpStore || inst.Kind == mir.OpCall {
				acc = acc.Union(analysis.InstEffect(fn, funcEffects, inst))
			}
		}
	}
	return acc
}
