package optimize

import (
	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// LoopSimplify is the first stage of the loop pipeline: for
// each loop, ensure a unique pre-header (a single predecessor outside
// the loop whose only successor is the header), synthesizing an empty
// landing block and rewiring φ nodes when a header has more than one
// out-of-loop predecessor.
type LoopSimplify struct{}

func (LoopSimplify) Name() string { return "loop_simplify" }

func (LoopSimplify) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	dom := analysis.BuildDomTree(fn)
	forest := analysis.BuildLoopForest(fn, dom)

	changed := false
	for _, l := range allLoops(forest) {
		if ensurePreHeader(fn, l) {
			changed = true
		}
	}
	return changed, nil
}

func allLoops(f *analysis.LoopForest) []*analysis.Loop {
	var out []*analysis.Loop
	var walk func(l *analysis.Loop)
	walk = func(l *analysis.Loop) {
		out = append(out, l)
		for _, s := range l.SubLoops {
			walk(s)
		}
	}
	for _, l := range f.TopLevel {
		walk(l)
	}
	return out
}

func outOfLoopPreds(l *analysis.Loop) []*mir.BasicBlock {
	var out []*mir.BasicBlock
	for _, p := range l.Header.Preds() {
		if !l.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

// ensurePreHeader synthesizes a single pre-header block for l if its
// header has more than one out-of-loop predecessor, or a single one
// that also branches elsewhere, rewiring those predecessors' edges and
// the header's φ incoming entries to route through it. A header with
// no out-of-loop predecessor is left as it is.
func ensurePreHeader(fn *mir.Function, l *analysis.Loop) bool {
	preds := outOfLoopPreds(l)
	if len(preds) == 1 && len(preds[0].Succs()) == 1 {
		l.PreHeader = preds[0]
		return false
	}
	if len(preds) == 0 {
		return false // unreachable loop header from outside; nothing to do
	}

	ph := fn.NewBasicBlock(l.Header.Name + ".preheader")
	ph.NewBr(l.Header)

	for _, p := range preds {
		redirectSuccessor(p, l.Header, ph)
	}

	for inst := l.Header.Front(); inst != nil && inst.Kind == mir.OpPhi; inst = inst.Next() {
		phPhi := ph.NewPhi(inst.Type())
		any := false
		for _, p := range preds {
			v, ok := inst.IncomingFor(p)
			if !ok {
				continue
			}
			inst.RemoveIncoming(p)
			phPhi.AddIncoming(v, p)
			any = true
		}
		if any {
			inst.AddIncoming(phPhi, ph)
		} else {
			phPhi.RemoveSelf()
		}
	}

	l.PreHeader = ph
	return true
}

func redirectSuccessor(b, from, to *mir.BasicBlock) {
	trueSucc, falseSucc := b.TrueSucc(), b.FalseSucc()
	if trueSucc == from {
		trueSucc = to
	}
	if falseSucc == from {
		falseSucc = to
	}
	b.DetachSuccessors()
	b.RewireCondSuccessors(trueSucc, falseSucc)
}
