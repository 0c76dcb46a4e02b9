package mir

import (
	"fmt"

	"github.com/sysyrv/sysyrv/internal/diag"
)

// Verify checks fn against structural invariants 1-3 (the
// invariants that apply to MIR itself, as opposed to post-mem2reg,
// post-regalloc or post-physicalization states checked by later
// stages). Every optimization pass is expected to leave fn in a state
// that passes Verify; the fixed-point driver calls this after each
// pass when running with verification enabled.
func Verify(fn *Function) error {
	if fn.IsDeclaration() {
		return nil
	}
	if err := verifyUserLists(fn); err != nil {
		return err
	}
	if err := verifyBlockShape(fn); err != nil {
		return err
	}
	if err := verifyTerminators(fn); err != nil {
		return err
	}
	return nil
}

// verifyUserLists is invariant 1: for every instruction i and operand
// o of i, i is in users(o); conversely every user of v has v among
// its own operands.
func verifyUserLists(fn *Function) error {
	for _, b := range fn.blocks {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			for _, op := range inst.Operands() {
				u, ok := op.(user)
				if !ok {
					continue
				}
				if !containsInst(u.Users(), inst) {
					return invErr(fn, "instruction %d uses %v but is absent from its user list", inst.ID(), op)
				}
			}
		}
	}
	for _, b := range fn.blocks {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			for _, u := range inst.Users() {
				if !hasOperand(u, inst) {
					return invErr(fn, "instruction %d lists %d as a user but does not reference it", inst.ID(), u.ID())
				}
			}
		}
	}
	return nil
}

// verifyBlockShape is invariant 2: every non-entry block has >= 1
// predecessor, every predecessor agrees, and every phi's incoming set
// is exactly preds(block).
func verifyBlockShape(fn *Function) error {
	for _, b := range fn.blocks {
		if b != fn.Entry && len(b.Preds()) == 0 {
			return invErr(fn, "block %s has no predecessors and is not the entry block", b.Name)
		}
		for _, p := range b.Preds() {
			if p.TrueSucc() != b && p.FalseSucc() != b {
				return invErr(fn, "block %s lists %s as predecessor but %s does not list it as a successor", b.Name, p.Name, p.Name)
			}
		}
		for inst := b.Front(); inst != nil && inst.Kind == OpPhi; inst = inst.Next() {
			if len(inst.Incoming) != len(b.Preds()) {
				return invErr(fn, "phi %d in %s has %d incoming edges, want %d (one per predecessor)", inst.ID(), b.Name, len(inst.Incoming), len(b.Preds()))
			}
			for _, p := range b.Preds() {
				if _, ok := inst.IncomingFor(p); !ok {
					return invErr(fn, "phi %d in %s has no incoming edge from predecessor %s", inst.ID(), b.Name, p.Name)
				}
			}
		}
	}
	return nil
}

// verifyTerminators is invariant 3: every block has exactly one
// terminator, and it is the last real instruction.
func verifyTerminators(fn *Function) error {
	for _, b := range fn.blocks {
		term := b.Back()
		if term == nil {
			return invErr(fn, "block %s is empty (has no terminator)", b.Name)
		}
		if !term.Kind.IsTerminator() {
			return invErr(fn, "block %s's last instruction is %s, not a terminator", b.Name, term.Kind)
		}
		for inst := b.Front(); inst != term; inst = inst.Next() {
			if inst.Kind.IsTerminator() {
				return invErr(fn, "block %s has a non-final terminator %d (%s)", b.Name, inst.ID(), inst.Kind)
			}
		}
	}
	return nil
}

func containsInst(list []*Instruction, target *Instruction) bool {
	for _, i := range list {
		if i == target {
			return true
		}
	}
	return false
}

func hasOperand(inst *Instruction, target Operand) bool {
	for _, op := range inst.Operands() {
		if op == target {
			return true
		}
	}
	return false
}

func invErr(fn *Function, format string, args ...any) error {
	return diag.Internal(diag.MiddleOptimize, diag.Location{Detail: "function " + fn.Name},
		format, args...)
}
