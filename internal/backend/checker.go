package backend

import "fmt"

// CheckTightTerminators verifies every block has 1 or 2 terminator
// instructions, none of them anywhere but at the block's tail: a lone
// ret or jmp, or a branch immediately followed by a jmp. Run after
// physicalization (once every pseudo-op is gone and layout is final)
// to catch a lowering or pass bug before it reaches the emitter.
func CheckTightTerminators(fn *Function) error {
	for _, bb := range fn.Blocks {
		if err := checkBlockTerminators(bb); err != nil {
			return fmt.Errorf("%s: %w", bb.Label, err)
		}
	}
	return nil
}

func checkBlockTerminators(bb *Block) error {
	var termIdx []int
	for i, inst := range bb.Insts {
		if inst.Op.IsTerminator() {
			termIdx = append(termIdx, i)
		}
	}
	switch len(termIdx) {
	case 0:
		return fmt.Errorf("block has no terminator")
	case 1:
		i := termIdx[0]
		inst := bb.Insts[i]
		if i != len(bb.Insts)-1 {
			return fmt.Errorf("terminator %s is not the last instruction", inst.Op)
		}
		if inst.Op != OpRet && inst.Op != OpJ {
			return fmt.Errorf("lone terminator %s is neither ret nor jmp", inst.Op)
		}
		return nil
	case 2:
		first, last := termIdx[0], termIdx[1]
		if last != len(bb.Insts)-1 {
			return fmt.Errorf("second terminator is not the last instruction")
		}
		if first != last-1 {
			return fmt.Errorf("terminators are not adjacent")
		}
		if !bb.Insts[first].Op.IsBranch() {
			return fmt.Errorf("first of two terminators is not a branch")
		}
		if bb.Insts[last].Op != OpJ {
			return fmt.Errorf("second of two terminators is not a jmp")
		}
		return nil
	default:
		return fmt.Errorf("block has %d terminators, want 1 or 2", len(termIdx))
	}
}
