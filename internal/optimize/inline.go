package optimize

import "github.com/sysyrv/sysyrv/internal/mir"

// InlineThreshold bounds callee body size for the "below a threshold"
// half of the inlining criterion.
const InlineThreshold = 24

// FuncInline inlines callees whose body size is below
// InlineThreshold or that have a single call site anywhere in the
// module. Operates module-wide (it needs every function's call sites
// to evaluate the single-call-site criterion), unlike the other
// per-function passes.
type FuncInline struct {
	Module *mir.Module
}

func (*FuncInline) Name() string { return "func_inline" }

func (p *FuncInline) Run(fn *mir.Function) (bool, error) {
	if fn.Entry == nil {
		return false, nil
	}
	callSites := countCallSites(p.Module)
	changed := false
	for {
		site := findInlineCandidate(fn, callSites)
		if site == nil {
			break
		}
		inlineCall(fn, site)
		changed = true
	}
	return changed, nil
}

func countCallSites(m *mir.Module) map[*mir.Function]int {
	counts := map[*mir.Function]int{}
	for _, fn := range m.Functions {
		for _, b := range fn.Blocks() {
			for inst := b.Front(); inst != nil; inst = inst.Next() {
				if inst.Kind == mir.OpCall {
					counts[inst.Callee]++
				}
			}
		}
	}
	return counts
}

func bodySize(fn *mir.Function) int {
	n := 0
	for _, b := range fn.Blocks() {
		n += len(b.Insts())
	}
	return n
}

func findInlineCandidate(fn *mir.Function, callSites map[*mir.Function]int) *mir.Instruction {
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if inst.Kind != mir.OpCall || inst.Callee == fn || inst.Callee.IsDeclaration() {
				continue
			}
			if bodySize(inst.Callee) <= InlineThreshold || callSites[inst.Callee] == 1 {
				return inst
			}
		}
	}
	return nil
}

// inlineCall clones callee's blocks into fn, rewires parameters to the
// call's actual arguments, splits the call's block at the call site,
// and merges control back with a phi if the callee returns a value.
func inlineCall(fn *mir.Function, call *mir.Instruction) {
	callee := call.Callee
	callBlock := call.Parent()

	cloneOf := map[*mir.BasicBlock]*mir.BasicBlock{}
	valueOf := map[mir.Operand]mir.Operand{}
	for i, p := range callee.Params {
		valueOf[p] = call.Operand(i)
	}

	for _, b := range callee.Blocks() {
		cloneOf[b] = fn.NewBasicBlock(fn.Name + "." + callee.Name + "." + b.Name)
	}

	after := fn.NewBasicBlock(callBlock.Name + ".cont")
	tail := make([]*mir.Instruction, 0)
	for inst := call.Next(); inst != nil; {
		next := inst.Next()
		inst.RemoveSelf()
		tail = append(tail, inst)
		inst = next
	}
	trueSucc, falseSucc := callBlock.TrueSucc(), callBlock.FalseSucc()
	for _, inst := range tail {
		after.AppendInst(inst)
	}
	callBlock.DetachSuccessors()
	after.RewireCondSuccessors(trueSucc, falseSucc)
	for _, s := range after.Succs() {
		for phi := s.Front(); phi != nil && phi.Kind == mir.OpPhi; phi = phi.Next() {
			if v, ok := phi.IncomingFor(callBlock); ok {
				phi.RemoveIncoming(callBlock)
				phi.AddIncoming(v, after)
			}
		}
	}

	for _, b := range callee.Blocks() {
		cb := cloneOf[b]
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			cloneInto(cb, inst, valueOf, cloneOf)
		}
	}

	callBlock.NewBr(cloneOf[callee.Entry])

	var retPhi *mir.Instruction
	if !call.Type().IsVoid() {
		retPhi = after.NewPhi(call.Type())
	}
	for _, b := range callee.Blocks() {
		cb := cloneOf[b]
		term := cb.Terminator()
		if term.Kind == mir.OpRet {
			var retVal mir.Operand
			if term.NumOperands() > 0 {
				retVal = resolveClone(term.Operand(0), valueOf)
			}
			term.RemoveSelf()
			cb.NewBr(after)
			if retPhi != nil && retVal != nil {
				retPhi.AddIncoming(retVal, cb)
			}
		}
	}

	if retPhi != nil {
		call.ReplaceSelf(retPhi)
	}
	call.RemoveSelf()
}

func resolveClone(op mir.Operand, valueOf map[mir.Operand]mir.Operand) mir.Operand {
	if v, ok := valueOf[op]; ok {
		return v
	}
	return op
}

// cloneInto clones inst (from the callee) into cb, remapping operands
// through valueOf (params -> actual args, and callee instructions ->
// their own clones as they are produced) and block references through
// cloneOf.
func cloneInto(cb *mir.BasicBlock, inst *mir.Instruction, valueOf map[mir.Operand]mir.Operand, cloneOf map[*mir.BasicBlock]*mir.BasicBlock) {
	if inst.Kind == mir.OpRet {
		return // terminators are rebuilt by the caller once all blocks exist
	}
	if inst.Kind == mir.OpBr {
		if inst.NumOperands() == 0 {
			cb.NewBr(cloneOf[inst.Parent().TrueSucc()])
		} else {
			cond := resolveClone(inst.Operand(0), valueOf)
			cb.NewCondBr(cond, cloneOf[inst.Parent().TrueSucc()], cloneOf[inst.Parent().FalseSucc()])
		}
		return
	}

	clone := cb.Builder().CopyInstruction(inst)
	cb.AppendInst(clone)
	valueOf[mir.Operand(inst)] = clone

	if inst.Kind == mir.OpPhi {
		for idx, pred := range inst.Incoming {
			v := resolveClone(inst.Operand(idx), valueOf)
			clone.AddIncoming(v, cloneOf[pred])
		}
		return
	}
	for idx, op := range inst.Operands() {
		clone.SetOperand(idx, resolveClone(op, valueOf))
	}
	if inst.Kind == mir.OpAlloca {
		clone.AllocaElemType = inst.AllocaElemType
		clone.AllocaCount = inst.AllocaCount
	}
	if inst.Kind == mir.OpGetElementPtr {
		clone.GEPElemType = inst.GEPElemType
	}
}
