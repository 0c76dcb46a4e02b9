package analysis

import "github.com/sysyrv/sysyrv/internal/mir"

// Loop is a natural loop: a header, the set of blocks in
// the loop, an optional parent loop, an optional pre-header, and
// sub-loops nested one level down.
type Loop struct {
	Header *mir.BasicBlock
	Blocks map[*mir.BasicBlock]bool
	Parent *Loop
	PreHeader *mir.BasicBlock
	SubLoops []*Loop
}

// Contains reports whether b belongs to the loop, including blocks of
// its nested sub-loops.
func (l *Loop) Contains(b *mir.BasicBlock) bool { return l.Blocks[b] }

// LoopForest is the complete nested-loop structure of a function,
// plus the per-block depth the loop-depth tracer writes back onto
// mir.BasicBlock.LoopDepth.
type LoopForest struct {
	TopLevel []*Loop
	ByHeader map[*mir.BasicBlock]*Loop
}

// BuildLoopForest finds every natural loop in fn by scanning for
// back-edges u->v where v dominates u, then nests loops by
// header dominance, and writes each block's nesting depth back via
// SetLoopDepths.
func BuildLoopForest(fn *mir.Function, dom *DomTree) *LoopForest {
	forest := &LoopForest{ByHeader: map[*mir.BasicBlock]*Loop{}}

	for _, u := range fn.DFSFromEntry() {
		for _, v := range u.Succs() {
			if !dom.Dominates(v, u) {
				continue
			}
			loop, exists := forest.ByHeader[v]
			if !exists {
				loop = &Loop{Header: v, Blocks: map[*mir.BasicBlock]bool{v: true}}
				forest.ByHeader[v] = loop
			}
			collectLoopBody(loop, u)
		}
	}

	nestLoops(forest)
	SetLoopDepths(fn, forest)
	return forest
}

// collectLoopBody walks predecessors backward from the latch u,
// adding every block that reaches u without passing back through the
// header, per the standard natural-loop body construction.
func collectLoopBody(loop *Loop, latch *mir.BasicBlock) {
	if loop.Blocks[latch] {
		return
	}
	stack := []*mir.BasicBlock{latch}
	loop.Blocks[latch] = true
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range b.Preds() {
			if !loop.Blocks[p] {
				loop.Blocks[p] = true
				stack = append(stack, p)
			}
		}
	}
}

// nestLoops assigns each loop a Parent (the smallest enclosing loop)
// and populates SubLoops/TopLevel accordingly.
func nestLoops(forest *LoopForest) {
	var all []*Loop
	for _, l := range forest.ByHeader {
		all = append(all, l)
	}
	for _, l := range all {
		var parent *Loop
		for _, candidate := range all {
			if candidate == l || !candidate.Blocks[l.Header] {
				continue
			}
			if parent == nil || len(candidate.Blocks) < len(parent.Blocks) {
				parent = candidate
			}
		}
		l.Parent = parent
		if parent != nil {
			parent.SubLoops = append(parent.SubLoops, l)
		} else {
			forest.TopLevel = append(forest.TopLevel, l)
		}
	}
}

// SetLoopDepths writes the nesting depth of every block back onto
// mir.BasicBlock.LoopDepth; blocks outside any loop keep depth 0.
func SetLoopDepths(fn *mir.Function, forest *LoopForest) {
	for _, b := range fn.Blocks() {
		b.LoopDepth = 0
	}
	var walk func(l *Loop, depth int)
	walk = func(l *Loop, depth int) {
		for b := range l.Blocks {
			if b.LoopDepth < depth {
				b.LoopDepth = depth
			}
		}
		for _, sub := range l.SubLoops {
			walk(sub, depth+1)
		}
	}
	for _, l := range forest.TopLevel {
		walk(l, 1)
	}
}

// InnermostLoop returns the deepest loop in forest containing b, or
// nil if b is not in any loop.
func (f *LoopForest) InnermostLoop(b *mir.BasicBlock) *Loop {
	var best *Loop
	for _, l := range f.ByHeader {
		if l.Blocks[b] && (best == nil || len(l.Blocks) < len(best.Blocks)) {
			best = l
		}
	}
	return best
}

// ExitBlocks returns the blocks outside l that have a predecessor
// inside l — the loop's control-dependent exits, used by LDCE, which
// keeps any instruction whose block dominates one of them.
func (l *Loop) ExitBlocks() []*mir.BasicBlock {
	seen := map[*mir.BasicBlock]bool{}
	var out []*mir.BasicBlock
	for b := range l.Blocks {
		for _, s := range b.Succs() {
			if !l.Blocks[s] && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
