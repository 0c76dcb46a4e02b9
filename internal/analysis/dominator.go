// Package analysis implements the flow-sensitive analyses the
// optimizer builds on: dominance, natural loops, alias-aware effect
// ranges, Memory-SSA, and value-number expressions.
package analysis

import (
	"github.com/sysyrv/sysyrv/internal/mir"
)

// DomTree is the dominator tree of one function, built eagerly by
// BuildDomTree and not cached; it is stale after any pass that rewires
// the CFG (new/removed blocks or edges), so passes build a fresh one.
type DomTree struct {
	fn *mir.Function
	rpo map[*mir.BasicBlock]int
	idomOf map[*mir.BasicBlock]*mir.BasicBlock

	// pre-order interval numbering, computed once idom is known, so
	// Dominates can answer in O(1) instead of walking idom chains.
	in, out map[*mir.BasicBlock]int
}

// BuildDomTree computes fn's dominator tree using the worklist
// variant of Cooper-Harvey-Kennedy over reverse-postorder numbering:
// iterate, for each block in RPO order (skipping entry), setting idom
// to the intersection of all processed predecessors' idoms, until no
// idom changes.
func BuildDomTree(fn *mir.Function) *DomTree {
	rpoList := fn.ReversePostorderFromEntry()
	rpo := make(map[*mir.BasicBlock]int, len(rpoList))
	for i, b := range rpoList {
		rpo[b] = i
	}

	idomOf := make(map[*mir.BasicBlock]*mir.BasicBlock, len(rpoList))
	idomOf[fn.Entry] = fn.Entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpoList {
			if b == fn.Entry {
				continue
			}
			var newIdom *mir.BasicBlock
			for _, p := range b.Preds() {
				if idomOf[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(idomOf, rpo, newIdom, p)
			}
			if newIdom == nil {
				continue
			}
			if idomOf[b] != newIdom {
				idomOf[b] = newIdom
				changed = true
			}
		}
	}
	idomOf[fn.Entry] = nil // entry has no strict dominator

	t := &DomTree{fn: fn, rpo: rpo, idomOf: idomOf}
	t.computeIntervals()
	return t
}

func intersect(idomOf map[*mir.BasicBlock]*mir.BasicBlock, rpo map[*mir.BasicBlock]int, a, b *mir.BasicBlock) *mir.BasicBlock {
	for a != b {
		for rpo[a] > rpo[b] {
			a = idomOf[a]
		}
		for rpo[b] > rpo[a] {
			b = idomOf[b]
		}
	}
	return a
}

// computeIntervals does a DFS over the dominator tree (children =
// blocks whose idom is this block) assigning pre/post entry/exit
// timestamps, giving Dominates an O(1) ancestor test.
func (t *DomTree) computeIntervals() {
	children := map[*mir.BasicBlock][]*mir.BasicBlock{}
	for b, idom := range t.idomOf {
		if idom == nil {
			continue
		}
		children[idom] = append(children[idom], b)
	}
	t.in = map[*mir.BasicBlock]int{}
	t.out = map[*mir.BasicBlock]int{}
	clock := 0
	var walk func(b *mir.BasicBlock)
	walk = func(b *mir.BasicBlock) {
		clock++
		t.in[b] = clock
		for _, c := range children[b] {
			walk(c)
		}
		clock++
		t.out[b] = clock
	}
	walk(t.fn.Entry)
}

// Idom returns b's immediate dominator, or nil if b is the entry
// block.
func (t *DomTree) Idom(b *mir.BasicBlock) *mir.BasicBlock { return t.idomOf[b] }

// Dominates reports whether a dominates b, non-strict (a dominates
// itself).
func (t *DomTree) Dominates(a, b *mir.BasicBlock) bool {
	return t.in[a] <= t.in[b] && t.out[b] <= t.out[a]
}

// StrictlyDominates reports whether a dominates b and a != b.
func (t *DomTree) StrictlyDominates(a, b *mir.BasicBlock) bool {
	return a != b && t.Dominates(a, b)
}

// Dominatees returns b's immediate-dominator children.
func (t *DomTree) Dominatees(b *mir.BasicBlock) []*mir.BasicBlock {
	var out []*mir.BasicBlock
	for c, idom := range t.idomOf {
		if idom == b && c != b {
			out = append(out, c)
		}
	}
	return out
}

// LCA returns the lowest common ancestor of a and b in the dominator
// tree (the least block dominating both).
func (t *DomTree) LCA(a, b *mir.BasicBlock) *mir.BasicBlock {
	return intersect(t.idomOf, t.rpo, a, b)
}

// DominanceFrontier computes the dominance frontier of every block in
// fn using the standard Cytron et al. algorithm, used by mem2reg
// to place phi nodes.
func (t *DomTree) DominanceFrontier() map[*mir.BasicBlock][]*mir.BasicBlock {
	df := map[*mir.BasicBlock][]*mir.BasicBlock{}
	for b := range t.idomOf {
		if len(b.Preds()) < 2 {
			continue
		}
		for _, p := range b.Preds() {
			runner := p
			for runner != t.idomOf[b] && runner != nil {
				df[runner] = appendUnique(df[runner], b)
				runner = t.idomOf[runner]
			}
		}
	}
	return df
}

func appendUnique(list []*mir.BasicBlock, b *mir.BasicBlock) []*mir.BasicBlock {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}
