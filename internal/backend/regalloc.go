package backend

import (
	"fmt"
	"sort"

	"github.com/kr/pretty"
)

const maxSpillRounds = 64

// interferenceGraph is a simple adjacency-set graph over one register
// class's nodes (every vreg the class touches, plus the physical
// registers appearing as precolored neighbors).
type interferenceGraph struct {
	adj    map[Reg]map[Reg]bool
	degree map[Reg]int
}

func newGraph() *interferenceGraph {
	return &interferenceGraph{adj: map[Reg]map[Reg]bool{}, degree: map[Reg]int{}}
}

func (g *interferenceGraph) addNode(r Reg) {
	if _, ok := g.adj[r]; !ok {
		g.adj[r] = map[Reg]bool{}
		g.degree[r] = 0
	}
}

func (g *interferenceGraph) addEdge(a, b Reg) {
	if a == b {
		return
	}
	g.addNode(a)
	g.addNode(b)
	if !g.adj[a][b] {
		g.adj[a][b] = true
		g.adj[b][a] = true
		g.degree[a]++
		g.degree[b]++
	}
}

// buildInterference runs liveness then, walking each block backward,
// records that every instruction's defs conflict with everything live
// across it (except, for a plain register move, the move's own source
// — the classic move-related non-interference that makes coalescing
// profitable).
func buildInterference(fn *Function, class RegClass, live *Liveness) *interferenceGraph {
	g := newGraph()
	for _, bb := range fn.Blocks {
		liveNow := live.LiveOut[bb][class].Clone()
		for i := len(bb.Insts) - 1; i >= 0; i-- {
			inst := bb.Insts[i]
			defs := filterClass(inst.Defs(), class)
			uses := filterClass(inst.Uses(), class)

			if inst.Op == OpMv && len(defs) == 1 && len(uses) == 1 {
				liveNow.Remove(uses[0])
				for _, d := range defs {
					g.addNode(d)
					for _, l := range liveNow.Members() {
						if l != uses[0] {
							g.addEdge(d, l)
						}
					}
				}
				liveNow.Insert(uses[0])
			} else {
				for _, d := range defs {
					g.addNode(d)
					for _, l := range liveNow.Members() {
						g.addEdge(d, l)
					}
				}
			}

			for _, d := range defs {
				liveNow.Remove(d)
			}
			for _, u := range uses {
				liveNow.Insert(u)
			}
		}
	}
	return g
}

func filterClass(regs []Reg, class RegClass) []Reg {
	var out []Reg
	for _, r := range regs {
		if r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

// coalesceMoves runs a conservative pre-pass (Briggs' test: safe to
// merge a, b if their combined neighborhood has fewer than k
// significant-degree nodes) over every plain register move, rewriting
// the graph in place. This replaces the book's interleaved
// simplify/coalesce worklist bounce with a single up-front pass — an
// Open Question simplification recorded in DESIGN.md — but still
// removes the large majority of moves real MIR programs emit (phi
// copies and call argument/result shuffles).
func coalesceMoves(fn *Function, class RegClass, g *interferenceGraph, k int) map[Reg]Reg {
	alias := map[Reg]Reg{}
	find := func(r Reg) Reg {
		for alias[r] != (Reg{}) && alias[r] != r {
			r = alias[r]
		}
		return r
	}

	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op != OpMv {
				continue
			}
			d, dok := inst.Dst.(Reg)
			s, sok := inst.Src[0].(Reg)
			if !dok || !sok || d.Class != class || s.Class != class {
				continue
			}
			a, b := find(d), find(s)
			if a == b {
				continue
			}
			if !a.IsVirtual() && !b.IsVirtual() {
				continue
			}
			if g.adj[a][b] {
				continue
			}
			if briggsSafe(g, a, b, k) {
				merged, dropped := a, b
				if !a.IsVirtual() {
					merged, dropped = a, b
				} else if !b.IsVirtual() {
					merged, dropped = b, a
				}
				mergeNodes(g, merged, dropped)
				alias[dropped] = merged
			}
		}
	}
	return alias
}

func briggsSafe(g *interferenceGraph, a, b Reg, k int) bool {
	significant := 0
	seen := map[Reg]bool{}
	count := func(r Reg) {
		for n := range g.adj[r] {
			if seen[n] {
				continue
			}
			seen[n] = true
			if g.degree[n] >= k {
				significant++
			}
		}
	}
	count(a)
	count(b)
	return significant < k
}

func mergeNodes(g *interferenceGraph, keep, drop Reg) {
	for n := range g.adj[drop] {
		if n == keep {
			continue
		}
		g.addEdge(keep, n)
	}
	for n := range g.adj[drop] {
		delete(g.adj[n], drop)
	}
	delete(g.adj, drop)
	delete(g.degree, drop)
}

// allocResult is one register class's coloring outcome: every
// surviving vreg's assigned physical register, plus any vregs that
// could not be colored and must be spilled to the stack.
type allocResult struct {
	color   map[Reg]Reg
	spilled []Reg
}

// allocateClass runs simplify/select graph coloring (Chaitin-Briggs)
// over one class: nodes of degree < k are trivially colorable and are
// pushed to a stack in any order; once none remain, the
// highest-degree remaining node is optimistically pushed as a
// potential spill. Colors are assigned on the way back off the stack;
// a node that truly cannot avoid every neighbor's color becomes an
// actual spill.
func allocateClass(fn *Function, class RegClass, allocatable []Reg, live *Liveness) allocResult {
	k := len(allocatable)
	g := buildInterference(fn, class, live)
	alias := coalesceMoves(fn, class, g, k)

	type frame struct {
		reg       Reg
		neighbors []Reg
	}
	var stack []frame
	remaining := map[Reg]bool{}
	for r := range g.adj {
		if r.IsVirtual() {
			remaining[r] = true
		}
	}

	degreeOf := func(r Reg) int {
		n := 0
		for nb := range g.adj[r] {
			if remaining[nb] || !nb.IsVirtual() {
				n++
			}
		}
		return n
	}

	for len(remaining) > 0 {
		picked := false
		for r := range remaining {
			if degreeOf(r) < k {
				stack = append(stack, frame{reg: r, neighbors: neighborSlice(g, r)})
				delete(remaining, r)
				picked = true
				break
			}
		}
		if picked {
			continue
		}
		// No trivially-colorable node: optimistically spill the
		// highest-degree candidate and keep going.
		var worst Reg
		worstDeg := -1
		for r := range remaining {
			if d := degreeOf(r); d > worstDeg {
				worst, worstDeg = r, d
			}
		}
		stack = append(stack, frame{reg: worst, neighbors: neighborSlice(g, worst)})
		delete(remaining, worst)
	}

	color := map[Reg]Reg{}
	for _, p := range allocatable {
		color[p] = p // physical registers color themselves
	}
	var spilled []Reg
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		used := map[Reg]bool{}
		for _, n := range f.neighbors {
			if c, ok := color[resolve(alias, n)]; ok {
				used[c] = true
			}
		}
		assigned := false
		for _, cand := range allocatable {
			if !used[cand] {
				color[f.reg] = cand
				assigned = true
				break
			}
		}
		if !assigned {
			spilled = append(spilled, f.reg)
		}
	}
	for dropped, kept := range alias {
		if c, ok := color[resolve(alias, kept)]; ok {
			color[dropped] = c
		}
	}

	sort.Slice(spilled, func(i, j int) bool { return spilled[i].ID() < spilled[j].ID() })
	return allocResult{color: color, spilled: spilled}
}

func resolve(alias map[Reg]Reg, r Reg) Reg {
	for {
		a, ok := alias[r]
		if !ok || a == r {
			return r
		}
		r = a
	}
}

func neighborSlice(g *interferenceGraph, r Reg) []Reg {
	out := make([]Reg, 0, len(g.adj[r]))
	for n := range g.adj[r] {
		out = append(out, n)
	}
	return out
}

// RegAlloc colors fn's virtual registers for both classes, inserting
// spill loads/stores and re-running until every vreg fits in a
// physical register.
func RegAlloc(fn *Function) {
	for round := 0; round < maxSpillRounds; round++ {
		live := ComputeLiveness(fn)
		intResult := allocateClass(fn, ClassInt, IntAllocatable, live)
		floatResult := allocateClass(fn, ClassFloat, FloatAllocatable, live)

		if len(intResult.spilled) == 0 && len(floatResult.spilled) == 0 {
			applyColors(fn, intResult.color, floatResult.color)
			return
		}
		insertSpillCode(fn, append(intResult.spilled, floatResult.spilled...))
	}
	panic(fmt.Sprintf("backend: register allocation did not converge for %s: %# v", fn.Name, pretty.Formatter(fn.Blocks)))
}

// applyColors rewrites every virtual register to its assigned physical
// register, then drops any move that coalescing left as a same-color
// self-copy (mv a0, a0).
func applyColors(fn *Function, intColor, floatColor map[Reg]Reg) {
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			for _, r := range append(inst.Defs(), inst.Uses()...) {
				if !r.IsVirtual() {
					continue
				}
				var c Reg
				var ok bool
				if r.Class == ClassInt {
					c, ok = intColor[r]
				} else {
					c, ok = floatColor[r]
				}
				if ok {
					inst.ReplaceReg(r, c)
				}
			}
		}
		kept := bb.Insts[:0]
		for _, inst := range bb.Insts {
			if inst.Op == OpMv {
				if d, ok := inst.Dst.(Reg); ok {
					if s, ok := inst.Src[0].(Reg); ok && s == d {
						continue
					}
				}
			}
			kept = append(kept, inst)
		}
		bb.Insts = kept
	}
}

// insertSpillCode gives each spilled vreg its own stack slot and
// rewrites every def into a store and every use into a fresh reload,
// so the next allocation round sees strictly smaller live ranges.
func insertSpillCode(fn *Function, spilled []Reg) {
	if fn.spillSlots == nil {
		fn.spillSlots = map[Reg]StackSlot{}
	}
	slotOf := map[Reg]StackSlot{}
	for _, r := range spilled {
		slot := StackSlot{ID: fn.nextSlotID, Size: 8}
		fn.nextSlotID++
		fn.spillSlots[r] = slot
		slotOf[r] = slot
	}
	spillSet := map[Reg]bool{}
	for _, r := range spilled {
		spillSet[r] = true
	}

	va := &vregAllocator{next: [2]int{fn.NumVRegsI, fn.NumVRegsF}}
	for _, bb := range fn.Blocks {
		var rewritten []*Instruction
		for _, inst := range bb.Insts {
			for _, u := range inst.Uses() {
				if !spillSet[u] {
					continue
				}
				fresh := va.New(u.Class)
				rewritten = append(rewritten, &Instruction{
					Op: OpLoad, Dst: fresh, Src: []Operand{slotOf[u]}, Width: 8, Float: u.Class == ClassFloat,
				})
				inst.ReplaceReg(u, fresh)
			}
			rewritten = append(rewritten, inst)
			for _, d := range inst.Defs() {
				if !spillSet[d] {
					continue
				}
				fresh := va.New(d.Class)
				inst.ReplaceReg(d, fresh)
				rewritten = append(rewritten, &Instruction{
					Op: OpStore, Src: []Operand{slotOf[d], fresh}, Width: 8, Float: d.Class == ClassFloat,
				})
			}
		}
		bb.Insts = rewritten
	}
	fn.NumVRegsI = va.next[ClassInt]
	fn.NumVRegsF = va.next[ClassFloat]
}
