package analysis

import "github.com/sysyrv/sysyrv/internal/mir"

// MemNode is one node of a function's Memory-SSA graph: a
// live-on-entry marker, a MemoryDef produced by a Store (or an
// opaque/effectful Call), a MemoryUse read by a Load, or a MemoryPhi
// merging defs at a join point.
type MemNode struct {
	Kind MemKind
	Inst *mir.Instruction // nil for the entry node
	Block *mir.BasicBlock

	// Def is the reaching definition: for a MemoryUse/MemoryDef, the
	// nearest dominating def whose effect can alias this node's
	// access; for a MemoryPhi, see Incoming instead.
	Def *MemNode

	Incoming []*MemNode // MemoryPhi only, parallel to Block.Preds()
}

type MemKind int

const (
	MemEntry MemKind = iota
	MemDef
	MemUse
	MemPhi
)

// MemorySSA is the complete Memory-SSA graph for one function.
type MemorySSA struct {
	Entry *MemNode
	ByInst map[*mir.Instruction]*MemNode
	ByBlock map[*mir.BasicBlock]*MemNode // the def reaching the end of the block
}

// BuildMemorySSA layers Memory-SSA over fn's heap-touching
// instructions: walks the dominator tree, threading one
// "current def" per block, inserting a MemoryPhi wherever a block has
// more than one predecessor with potentially differing incoming defs.
func BuildMemorySSA(fn *mir.Function, dom *DomTree, funcEffect map[*mir.Function]EffectRange) *MemorySSA {
	ssa := &MemorySSA{
		Entry: &MemNode{Kind: MemEntry},
		ByInst: map[*mir.Instruction]*MemNode{},
		ByBlock: map[*mir.BasicBlock]*MemNode{},
	}

	blockDef := map[*mir.BasicBlock]*MemNode{}

	order := fn.ReversePostorderFromEntry()
	for _, b := range order {
		var cur *MemNode
		if len(b.Preds()) == 0 {
			cur = ssa.Entry
		} else if len(b.Preds()) == 1 {
			cur = blockDef[b.Preds()[0]]
		} else {
			phi := &MemNode{Kind: MemPhi, Block: b}
			for _, p := range b.Preds() {
				phi.Incoming = append(phi.Incoming, blockDef[p])
			}
			cur = phi
		}
		if cur == nil {
			cur = ssa.Entry
		}

		for inst := b.Front(); inst != nil; inst = inst.Next() {
			eff := InstEffect(fn, funcEffect, inst)
			touchesMemory := eff.All || len(eff.Bases) > 0
			switch {
			case inst.Kind == mir.OpLoad:
				node := &MemNode{Kind: MemUse, Inst: inst, Block: b, Def: nearestAliasingDef(cur, eff)}
				ssa.ByInst[inst] = node
			case inst.Kind == mir.OpStore || (inst.Kind == mir.OpCall && touchesMemory):
				// A call with an effect range is conservatively
				// modeled as both reading and clobbering: it becomes
				// a MemoryDef chained onto the current def.
				node := &MemNode{Kind: MemDef, Inst: inst, Block: b, Def: cur}
				ssa.ByInst[inst] = node
				cur = node
			}
		}
		blockDef[b] = cur
		ssa.ByBlock[b] = cur
	}
	return ssa
}

// nearestAliasingDef walks the def chain from cur looking for the
// nearest MemoryDef/MemoryPhi/entry whose effect can alias eff, per
// ("a MemoryUse points at the nearest dominating MemoryDef
// whose effect can alias the use's read"). MemoryPhi, the entry node
// and a call's MemoryDef are always treated as potentially aliasing.
func nearestAliasingDef(cur *MemNode, eff EffectRange) *MemNode {
	node := cur
	for node != nil && node.Kind == MemDef {
		if node.Inst.Kind != mir.OpStore {
			return node
		}
		defEff := SomeEffect()
		if node.Inst.Kind == mir.OpStore {
			base, _ := splitGEPPrefix(node.Inst.Operand(1))
			defEff = SomeEffect(base)
		}
		if eff.CanAlias(defEff) {
			return node
		}
		node = node.Def
	}
	return node
}
