package optimize

import "github.com/sysyrv/sysyrv/internal/mir"

// SinkCode is the final pass: it hoists each instruction
// downward to its latest safe schedule (immediately before its
// earliest user, within the same block) to reduce register pressure
// across the block, run once after the fixed-point loop converges.
type SinkCode struct{}

func (SinkCode) Name() string { return "sink_code" }

func (SinkCode) Run(fn *mir.Function) (bool, error) {
	changed := false
	for _, b := range fn.Blocks() {
		if sinkWithinBlock(b) {
			changed = true
		}
	}
	return changed, nil
}

// sinkWithinBlock moves every pure, single-block-scoped instruction
// down to just before the earliest instruction (by program order)
// that uses it, if that is later than its current position.
func sinkWithinBlock(b *mir.BasicBlock) bool {
	order := map[*mir.Instruction]int{}
	i := 0
	for inst := b.Front(); inst != nil; inst = inst.Next() {
		order[inst] = i
		i++
	}

	changed := false
	for inst := b.Front(); inst != nil; {
		next := inst.Next()
		if !inst.Kind.IsPure() {
			inst = next
			continue
		}
		target := earliestLocalUser(inst, b, order)
		if target != nil && order[target] > order[inst]+1 {
			inst.RemoveSelf()
			b.InsertBefore(target, inst)
			changed = true
		}
		inst = next
	}
	return changed
}

// earliestLocalUser returns the program-order-first user of inst that
// lives in b, or nil if inst has no in-block user (cross-block users
// pin it at its current position: sinking across a block boundary is
// not this pass's job).
func earliestLocalUser(inst *mir.Instruction, b *mir.BasicBlock, order map[*mir.Instruction]int) *mir.Instruction {
	var best *mir.Instruction
	for _, u := range inst.Users() {
		if u.Parent() != b {
			return nil
		}
		if best == nil || order[u] < order[best] {
			best = u
		}
	}
	return best
}
