package optimize

import (
	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// Mem2Reg is promotes an Alloca of a scalar that is never
// address-taken into SSA values, inserting φ nodes at dominance
// frontiers and renaming uses along a dominator-tree walk — the
// textbook Cytron et al. construction.
type Mem2Reg struct{}

func (Mem2Reg) Name() string { return "mem2reg" }

func (Mem2Reg) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	dom := analysis.BuildDomTree(fn)
	df := dom.DominanceFrontier()

	changed := false
	for _, alloca := range promotableAllocas(fn) {
		promoteOne(fn, dom, df, alloca)
		changed = true
	}
	return changed, nil
}

// promotableAllocas returns every Alloca of a scalar (not an array)
// whose address never escapes: every use is a direct Load or Store
// where the alloca is the address operand, never an operand of a
// GetElementPtr or Call.
func promotableAllocas(fn *mir.Function) []*mir.Instruction {
	var out []*mir.Instruction
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if inst.Kind == mir.OpAlloca && inst.AllocaCount == 1 && !addressTaken(inst) {
				out = append(out, inst)
			}
		}
	}
	return out
}

func addressTaken(alloca *mir.Instruction) bool {
	for _, u := range alloca.Users() {
		switch u.Kind {
		case mir.OpLoad:
			continue
		case mir.OpStore:
			if u.Operand(1) != mir.Operand(alloca) {
				return true // stored as a value, not used as the address
			}
		default:
			return true
		}
	}
	return false
}

// promoteOne promotes a single alloca: insert phi nodes at the
// dominance frontier of every block that stores to it, then rename
// loads/stores along a dominator-tree walk threading the "current
// value" (the reaching-definition renaming), finally deleting the
// alloca and its now-dead stores/loads.
func promoteOne(fn *mir.Function, dom *analysis.DomTree, df map[*mir.BasicBlock][]*mir.BasicBlock, alloca *mir.Instruction) {
	defBlocks := map[*mir.BasicBlock]bool{}
	for _, u := range alloca.Users() {
		if u.Kind == mir.OpStore {
			defBlocks[u.Parent()] = true
		}
	}

	phiBlocks := map[*mir.BasicBlock]bool{}
	worklist := make([]*mir.BasicBlock, 0, len(defBlocks))
	for b := range defBlocks {
		worklist = append(worklist, b)
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, f := range df[b] {
			if !phiBlocks[f] {
				phiBlocks[f] = true
				worklist = append(worklist, f)
			}
		}
	}

	elemTy := alloca.AllocaElemType
	phiOf := map[*mir.BasicBlock]*mir.Instruction{}
	for b := range phiBlocks {
		phiOf[b] = b.NewPhi(elemTy)
	}

	rename(fn.Entry, dom, alloca, phiOf, mir.ConstZero(elemTy))

	for b := range phiBlocks {
		phi := phiOf[b]
		for _, p := range b.Preds() {
			if _, ok := phi.IncomingFor(p); !ok {
				phi.AddIncoming(mir.ConstZero(elemTy), p)
			}
		}
	}

	for _, u := range append([]*mir.Instruction(nil), alloca.Users()...) {
		u.RemoveSelf()
	}
	alloca.RemoveSelf()
}

// rename walks the dominator tree from b, threading cur (the value
// the alloca currently holds along this path): each Load is replaced
// by cur, each Store updates cur and is deleted, and entering a block
// with a phi for this alloca updates cur to that phi's value first.
func rename(b *mir.BasicBlock, dom *analysis.DomTree, alloca *mir.Instruction, phiOf map[*mir.BasicBlock]*mir.Instruction, cur mir.Operand) {
	if phi, ok := phiOf[b]; ok {
		cur = phi
	}

	for inst := b.Front(); inst != nil; {
		next := inst.Next()
		switch {
		case inst.Kind == mir.OpLoad && inst.Operand(0) == mir.Operand(alloca):
			inst.ReplaceSelf(cur)
		case inst.Kind == mir.OpStore && inst.Operand(1) == mir.Operand(alloca):
			cur = inst.Operand(0)
		}
		inst = next
	}

	for _, s := range b.Succs() {
		if phi, ok := phiOf[s]; ok {
			if _, already := phi.IncomingFor(b); !already {
				phi.AddIncoming(cur, b)
			}
		}
	}

	for _, c := range dom.Dominatees(b) {
		rename(c, dom, alloca, phiOf, cur)
	}
}
