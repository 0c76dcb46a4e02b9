package mir

import "github.com/sysyrv/sysyrv/internal/types"

// Function is function: name, return type, ordered
// parameters, optional entry/exit blocks (both nil means a
// library/external declaration), and the Builder that allocated it.
type Function struct {
	Name string
	RetType types.ValueType
	Params []*Param

	Entry *BasicBlock
	Exit *BasicBlock

	builder *Builder
	blocks []*BasicBlock // allocation order, for stable iteration/printing
}

// IsDeclaration reports whether fn is an external/library function
// (no body).
func (fn *Function) IsDeclaration() bool { return fn.Entry == nil && fn.Exit == nil }

// Blocks returns every block belonging to fn in allocation order.
func (fn *Function) Blocks() []*BasicBlock { return fn.blocks }

// SetBlocks replaces fn's block list wholesale, e.g. after
// dead_code_elim drops unreachable blocks or inlining/block_fuse
// splices blocks together. Callers are responsible for having already
// detached any removed block's CFG edges and phi references.
func (fn *Function) SetBlocks(blocks []*BasicBlock) { fn.blocks = blocks }

// NewBasicBlock is a convenience wrapper so optimization passes that
// hold a *Function (not the *Builder that created it) can still
// synthesize new blocks, e.g. loop_simplify's pre-header insertion.
func (fn *Function) NewBasicBlock(name string) *BasicBlock {
	return fn.builder.NewBasicBlock(fn, name)
}

// --- CFG traversal ---
//
// DFS, BFS, postorder, and reverse-postorder iterators over the
// reachable CFG, starting from entry or exit. Entry-rooted traversals
// follow Succs(); exit-rooted traversals (used by
// post-dominance-flavored analyses) follow Preds().

// DFS returns blocks reachable from start in depth-first
// pre-order, following forward(block) for successors.
func dfs(start *BasicBlock, forward func(*BasicBlock) []*BasicBlock) []*BasicBlock {
	if start == nil {
		return nil
	}
	visited := map[*BasicBlock]bool{}
	var order []*BasicBlock
	var walk func(b *BasicBlock)
	walk = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		order = append(order, b)
		for _, s := range forward(b) {
			walk(s)
		}
	}
	walk(start)
	return order
}

func bfs(start *BasicBlock, forward func(*BasicBlock) []*BasicBlock) []*BasicBlock {
	if start == nil {
		return nil
	}
	visited := map[*BasicBlock]bool{start: true}
	queue := []*BasicBlock{start}
	var order []*BasicBlock
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		order = append(order, b)
		for _, s := range forward(b) {
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
	}
	return order
}

func postorder(start *BasicBlock, forward func(*BasicBlock) []*BasicBlock) []*BasicBlock {
	if start == nil {
		return nil
	}
	visited := map[*BasicBlock]bool{}
	var order []*BasicBlock
	var walk func(b *BasicBlock)
	walk = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range forward(b) {
			walk(s)
		}
		order = append(order, b)
	}
	walk(start)
	return order
}

func succsOf(b *BasicBlock) []*BasicBlock { return b.Succs() }
func predsOf(b *BasicBlock) []*BasicBlock { return b.Preds() }

// DFSFromEntry returns fn's reachable blocks in depth-first pre-order
// from Entry.
func (fn *Function) DFSFromEntry() []*BasicBlock { return dfs(fn.Entry, succsOf) }

// BFSFromEntry returns fn's reachable blocks in breadth-first order
// from Entry.
func (fn *Function) BFSFromEntry() []*BasicBlock { return bfs(fn.Entry, succsOf) }

// PostorderFromEntry returns fn's reachable blocks in postorder from
// Entry.
func (fn *Function) PostorderFromEntry() []*BasicBlock { return postorder(fn.Entry, succsOf) }

// ReversePostorderFromEntry returns fn's reachable blocks in
// reverse-postorder from Entry — the standard numbering for forward
// dataflow (dominators, LICM operand readiness).
func (fn *Function) ReversePostorderFromEntry() []*BasicBlock {
	po := fn.PostorderFromEntry()
	reverse(po)
	return po
}

// DFSFromExit/BFSFromExit/PostorderFromExit walk backwards from Exit
// via predecessors, for exit-rooted (post-dominance-flavored) uses.
func (fn *Function) DFSFromExit() []*BasicBlock { return dfs(fn.Exit, predsOf) }
func (fn *Function) BFSFromExit() []*BasicBlock { return bfs(fn.Exit, predsOf) }
func (fn *Function) PostorderFromExit() []*BasicBlock { return postorder(fn.Exit, predsOf) }

func reverse(bs []*BasicBlock) {
	for i, j := 0, len(bs)-1; i < j; i, j = i+1, j-1 {
		bs[i], bs[j] = bs[j], bs[i]
	}
}
