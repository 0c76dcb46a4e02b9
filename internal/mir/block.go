package mir

// BasicBlock is a basic block: a name, a unique id, a
// sentinel-terminated doubly-linked instruction list, a predecessor
// list, and a distinguished true/false successor.
type BasicBlock struct {
	id int
	Name string

	head *Instruction // sentinel; head.next is the first real inst

	preds []*BasicBlock
	trueSucc *BasicBlock
	falseSucc *BasicBlock // nil for an unconditional exit (Ret, or unconditional Br)

	LoopDepth int // cached by the loop-depth tracer; 0 until populated

	fn *Function
}

func (b *BasicBlock) ID() int { return b.id }
func (b *BasicBlock) Func() *Function { return b.fn }

func (b *BasicBlock) Preds() []*BasicBlock { return b.preds }
func (b *BasicBlock) TrueSucc() *BasicBlock { return b.trueSucc }
func (b *BasicBlock) FalseSucc() *BasicBlock { return b.falseSucc }

// Succs returns the (0, 1, or 2) successors of b, true-then-false.
func (b *BasicBlock) Succs() []*BasicBlock {
	var out []*BasicBlock
	if b.trueSucc != nil {
		out = append(out, b.trueSucc)
	}
	if b.falseSucc != nil {
		out = append(out, b.falseSucc)
	}
	return out
}

func (b *BasicBlock) addPred(p *BasicBlock) { b.preds = append(b.preds, p) }

func (b *BasicBlock) removePred(p *BasicBlock) {
	for i, q := range b.preds {
		if q == p {
			b.preds = append(b.preds[:i], b.preds[i+1:]...)
			return
		}
	}
}

// setSuccs records b's CFG edges and updates the targets' predecessor
// lists. Called by the Br/Ret-terminator builder methods, and by
// passes that rewire the CFG (block_fuse, loop_simplify, inlining).
func (b *BasicBlock) setSuccs(trueSucc, falseSucc *BasicBlock) {
	if b.trueSucc != nil {
		b.trueSucc.removePred(b)
	}
	if b.falseSucc != nil {
		b.falseSucc.removePred(b)
	}
	b.trueSucc, b.falseSucc = trueSucc, falseSucc
	if trueSucc != nil {
		trueSucc.addPred(b)
	}
	if falseSucc != nil {
		falseSucc.addPred(b)
	}
}

// RewireCondSuccessors re-points b's CFG edges at trueSucc/falseSucc
// (falseSucc nil for an unconditional edge), for passes that splice
// blocks together (block_fuse) or retarget branches (loop_simplify).
func (b *BasicBlock) RewireCondSuccessors(trueSucc, falseSucc *BasicBlock) {
	b.setSuccs(trueSucc, falseSucc)
}

// DetachSuccessors clears b's outgoing CFG edges, removing b from both
// former successors' predecessor lists. Used when deleting an
// unreachable block (dead_code_elim) or before splicing b out entirely
// (block_fuse).
func (b *BasicBlock) DetachSuccessors() { b.setSuccs(nil, nil) }

// --- instruction list ---

// Front returns the first real (non-sentinel) instruction, or nil if
// the block is empty.
func (b *BasicBlock) Front() *Instruction {
	if b.head.next == b.head {
		return nil
	}
	return b.head.next
}

// Back returns the last real instruction — the terminator, once the
// block is well-formed.
func (b *BasicBlock) Back() *Instruction {
	if b.head.prev == b.head {
		return nil
	}
	return b.head.prev
}

// Terminator returns Back(), which by invariant is always a Br or
// Ret once the block is complete.
func (b *BasicBlock) Terminator() *Instruction { return b.Back() }

// Insts returns every real instruction in order. Intended for
// iteration/printing, not hot-loop traversal (use Front()/Next()
// directly for that).
func (b *BasicBlock) Insts() []*Instruction {
	var out []*Instruction
	for i := b.Front(); i != nil; i = i.Next() {
		out = append(out, i)
	}
	return out
}

// Next/Prev walk the real (non-sentinel) instruction list; they
// return nil past either end.
func (i *Instruction) Next() *Instruction {
	if i.next == nil || i.next.Kind == OpHead {
		return nil
	}
	return i.next
}

func (i *Instruction) Prev() *Instruction {
	if i.prev == nil || i.prev.Kind == OpHead {
		return nil
	}
	return i.prev
}

// InsertBefore splices inst into b immediately before pos (pos may be
// the sentinel itself via AppendInst, or any real instruction).
func (b *BasicBlock) InsertBefore(pos, inst *Instruction) {
	inst.parent = b
	inst.prev = pos.prev
	inst.next = pos
	pos.prev.next = inst
	pos.prev = inst
}

// AppendInst inserts inst at the tail of b's real instruction list
// (immediately before the sentinel).
func (b *BasicBlock) AppendInst(inst *Instruction) {
	b.InsertBefore(b.head, inst)
}

// Prepend inserts inst at the head of b's real instruction list.
func (b *BasicBlock) Prepend(inst *Instruction) {
	b.InsertBefore(b.head.next, inst)
}

// RemoveSelf splices i out of its parent block's list and clears its
// operand user-list entries, per "first disconnects it
// from all operand user lists, then splices it out of the block's
// linked list." It does not touch i's own Users(); callers must
// ensure i is unused (or have already called ReplaceSelf) first.
func (i *Instruction) RemoveSelf() {
	for idx, op := range i.operands {
		if op != nil {
			detachUser(op, i)
		}
		i.operands[idx] = nil
	}
	if i.Kind == OpPhi {
		i.Incoming = nil
	}
	if i.prev != nil {
		i.prev.next = i.next
	}
	if i.next != nil {
		i.next.prev = i.prev
	}
	i.prev, i.next = nil, nil
	i.parent = nil
}
