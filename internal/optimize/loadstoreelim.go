package optimize

import (
	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// LoadStoreElim uses Memory-SSA: a load whose
// reaching def is a store of a known value is replaced by that value
// (load_elim); a store that the next store to the same address
// overwrites with no read or call in between is deleted (store_elim).
// A store whose value is merely never read again before the function
// returns is kept. The
// driver reruns this pass to a fixed point, running load_elim before
// store_elim on every sweep as this requires.
type LoadStoreElim struct {
	funcEffects map[*mir.Function]analysis.EffectRange
}

// NewLoadStoreElim takes the module-wide effect map computed once by
// the driver and reused across sweeps.
func NewLoadStoreElim(funcEffects map[*mir.Function]analysis.EffectRange) *LoadStoreElim {
	return &LoadStoreElim{funcEffects: funcEffects}
}

func (*LoadStoreElim) Name() string { return "load_store_elim" }

func (p *LoadStoreElim) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	dom := analysis.BuildDomTree(fn)
	ssa := analysis.BuildMemorySSA(fn, dom, p.funcEffects)

	changed := loadElim(fn, ssa)
	if storeElim(fn, ssa) {
		changed = true
	}
	return changed, nil
}

// loadElim replaces each Load whose reaching MemNode is a MemDef
// produced by a Store with that store's stored value.
func loadElim(fn *mir.Function, ssa *analysis.MemorySSA) bool {
	changed := false
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; {
			next := inst.Next()
			if inst.Kind == mir.OpLoad {
				if node, ok := ssa.ByInst[inst]; ok && node.Def != nil && node.Def.Kind == analysis.MemDef {
					if node.Def.Inst != nil && node.Def.Inst.Kind == mir.OpStore {
						inst.ReplaceSelf(node.Def.Inst.Operand(0))
						changed = true
					}
				}
			}
			inst = next
		}
	}
	return changed
}

// storeElim deletes a Store whose MemDef node has no MemUse reading it
// and whose next def on the Memory-SSA chain is a Store to the same
// address operand. A store that is the last def of its block is
// always kept.
func storeElim(fn *mir.Function, ssa *analysis.MemorySSA) bool {
	read := map[*mir.Instruction]bool{}
	for _, node := range ssa.ByInst {
		if node.Kind == analysis.MemUse && node.Def != nil && node.Def.Inst != nil {
			read[node.Def.Inst] = true
		}
	}
	for _, node := range ssa.ByBlock {
		if node != nil && node.Kind == analysis.MemDef && node.Inst != nil && node.Inst.Kind == mir.OpStore {
			// Live out of its block (possibly visible at function
			// exit or to a successor's phi): conservatively treat as
			// read.
			read[node.Inst] = true
		}
	}
	overwritten := map[*mir.Instruction]bool{}
	for _, node := range ssa.ByInst {
		if node.Kind == analysis.MemDef && node.Inst.Kind == mir.OpStore && node.Def != nil &&
			node.Def.Kind == analysis.MemDef && node.Def.Inst.Kind == mir.OpStore &&
			node.Def.Inst.Operand(1) == node.Inst.Operand(1) {
			overwritten[node.Def.Inst] = true
		}
	}

	changed := false
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; {
			next := inst.Next()
			if inst.Kind == mir.OpStore && !read[inst] && overwritten[inst] {
				inst.RemoveSelf()
				changed = true
			}
			inst = next
		}
	}
	return changed
}
