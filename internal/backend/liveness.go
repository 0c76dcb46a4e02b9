package backend

// Liveness holds, per backend block, the registers live at block entry
// and exit, separately for each register class.
type Liveness struct {
	LiveIn  map[*Block][2]*RegSet
	LiveOut map[*Block][2]*RegSet
}

// successors returns bb's fallthrough/branch targets among fn's blocks,
// derived from its terminators (Target/FallThrough for branches and j,
// none for ret); a branch followed by a jmp contributes both targets.
func successors(bb *Block) []*Block {
	var out []*Block
	for _, inst := range bb.Insts {
		if !inst.Op.IsTerminator() {
			continue
		}
		if inst.Target != nil {
			out = append(out, inst.Target)
		}
		if inst.FallThrough != nil {
			out = append(out, inst.FallThrough)
		}
	}
	return out
}

// ComputeLiveness runs the standard backward fixed-point dataflow:
// live_out[b] = union of live_in[succ] over b's successors, live_in[b]
// = use[b] U (live_out[b] - def[b]), iterated to a fixed point. Int
// and float registers are tracked in independent RegSets since the two
// classes never interfere with each other.
func ComputeLiveness(fn *Function) *Liveness {
	use := map[*Block][2]*RegSet{}
	def := map[*Block][2]*RegSet{}
	liveIn := map[*Block][2]*RegSet{}
	liveOut := map[*Block][2]*RegSet{}

	for _, bb := range fn.Blocks {
		u := [2]*RegSet{NewRegSet(ClassInt), NewRegSet(ClassFloat)}
		d := [2]*RegSet{NewRegSet(ClassInt), NewRegSet(ClassFloat)}
		for _, inst := range bb.Insts {
			for _, r := range inst.Uses() {
				if !d[r.Class].Contains(r) {
					u[r.Class].Insert(r)
				}
			}
			for _, r := range inst.Defs() {
				d[r.Class].Insert(r)
			}
		}
		use[bb] = u
		def[bb] = d
		liveIn[bb] = [2]*RegSet{NewRegSet(ClassInt), NewRegSet(ClassFloat)}
		liveOut[bb] = [2]*RegSet{NewRegSet(ClassInt), NewRegSet(ClassFloat)}
	}

	changed := true
	for changed {
		changed = false
		for i := len(fn.Blocks) - 1; i >= 0; i-- {
			bb := fn.Blocks[i]
			for _, succ := range successors(bb) {
				for c := 0; c < 2; c++ {
					if liveOut[bb][c].Merge(liveIn[succ][c]) {
						changed = true
					}
				}
			}
			for c := 0; c < 2; c++ {
				next := liveOut[bb][c].Clone()
				next.Minus(def[bb][c])
				next.Merge(use[bb][c])
				if next.Len() != liveIn[bb][c].Len() {
					changed = true
				}
				liveIn[bb][c] = next
			}
		}
	}

	return &Liveness{LiveIn: liveIn, LiveOut: liveOut}
}
