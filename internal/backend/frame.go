package backend

// Frame is one function's finalized stack layout, computed once after
// register allocation and consumed by the prologue/epilogue emitted
// into its entry/exit blocks and by every sp-relative memory
// reference rewritten from a StackSlot/incoming/outgoing pseudo.
type Frame struct {
	Size             int64
	OutgoingArgsSize int64
	SavedInt         []Reg
	SavedFloat       []Reg
}

const wordSize = 8

func round16(n int64) int64 { return (n + 15) &^ 15 }

// BuildFrame computes fn's frame layout, rewrites every stack pseudo
// (LocalAddr, Load/Store of a StackSlot or of an incoming/outgoing
// argument pseudo) into an sp-relative memory reference, and emits the
// prologue/epilogue. Must run after RegAlloc, since the saved-register
// set and spill slot count both depend on its outcome.
func BuildFrame(fn *Function) {
	savedInt, savedFloat := usedCalleeSaved(fn)

	outgoing := maxOutgoingArgBytes(fn)
	slotsSize, slotOffset := layoutSlots(fn, outgoing)
	savedSize := int64(wordSize) * int64(1+len(savedInt)+len(savedFloat)) // +1 for ra

	frame := &Frame{
		Size:             round16(outgoing + slotsSize + savedSize),
		OutgoingArgsSize: outgoing,
		SavedInt:         savedInt,
		SavedFloat:       savedFloat,
	}
	fn.Frame = frame

	raOff := frame.Size - wordSize
	savedOff := map[Reg]int64{}
	off := raOff - wordSize
	for _, r := range savedInt {
		savedOff[r] = off
		off -= wordSize
	}
	for _, r := range savedFloat {
		savedOff[r] = off
		off -= wordSize
	}

	rewriteStackOperands(fn, frame, slotOffset)
	insertPrologueEpilogue(fn, frame, raOff, savedOff)
}

func usedCalleeSaved(fn *Function) (ints, floats []Reg) {
	usedInt := map[Reg]bool{}
	usedFloat := map[Reg]bool{}
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			for _, r := range append(inst.Defs(), inst.Uses()...) {
				if r.Class == ClassInt {
					usedInt[r] = true
				} else {
					usedFloat[r] = true
				}
			}
		}
	}
	for _, r := range IntCalleeSaved {
		if usedInt[r] {
			ints = append(ints, r)
		}
	}
	for _, r := range FloatCalleeSaved {
		if usedFloat[r] {
			floats = append(floats, r)
		}
	}
	return ints, floats
}

// maxOutgoingArgBytes scans every call's spilled-to-stack arguments
// and returns the largest outgoing-args area any single call needs;
// since calls execute sequentially this one area is safely reused.
func maxOutgoingArgBytes(fn *Function) int64 {
	var maxIdx int64 = -1
	for _, bb := range fn.Blocks {
		for _, inst := range bb.Insts {
			if inst.Op != OpStore {
				continue
			}
			if p, ok := inst.Src[0].(outgoingArgPseudo); ok {
				if int64(p.index) > maxIdx {
					maxIdx = int64(p.index)
				}
			}
		}
	}
	return (maxIdx + 1) * wordSize
}

// layoutSlots assigns each StackSlot.ID (alloca and spill, sharing one
// id space — see isel.go/regalloc.go's nextSlotID) a byte offset from
// the bottom of the frame, immediately above the outgoing-args area,
// packed in id order.
func layoutSlots(fn *Function, base int64) (int64, map[int]int64) {
	sizes := map[int]int64{}
	for _, s := range fn.allocaSlots {
		sizes[s.ID] = s.Size
	}
	for _, s := range fn.spillSlots {
		sizes[s.ID] = s.Size
	}
	offsets := map[int]int64{}
	off := base
	maxID := -1
	for id := range sizes {
		if id > maxID {
			maxID = id
		}
	}
	for id := 0; id <= maxID; id++ {
		sz, ok := sizes[id]
		if !ok {
			continue
		}
		offsets[id] = off
		off += roundWord(sz)
	}
	return off - base, offsets
}

func roundWord(n int64) int64 { return (n + 7) &^ 7 }

func rewriteStackOperands(fn *Function, frame *Frame, slotOffset map[int]int64) {
	for _, bb := range fn.Blocks {
		var out []*Instruction
		for _, inst := range bb.Insts {
			switch inst.Op {
			case OpLocalAddr:
				slot := inst.Src[0].(StackSlot)
				out = append(out, rewriteLocalAddr(inst, slotOffset[slot.ID])...)
			case OpLoad, OpStore:
				out = append(out, rewriteMemOperand(inst, frame, slotOffset)...)
			default:
				out = append(out, inst)
			}
		}
		bb.Insts = out
	}
}

// rewriteLocalAddr turns a LocalAddr pseudo into an addi (offset fits
// 12 bits) or an li-into-t3 plus add (it doesn't).
func rewriteLocalAddr(inst *Instruction, offset int64) []*Instruction {
	if fitsI12(offset) {
		return []*Instruction{{Op: OpAddi, Dst: inst.Dst, Src: []Operand{SP, Imm{Value: offset}}}}
	}
	return []*Instruction{
		{Op: OpLi, Dst: T3, Src: []Operand{Imm{Value: offset}}},
		{Op: OpAdd, Dst: inst.Dst, Src: []Operand{SP, T3}},
	}
}

// rewriteMemOperand resolves a Load/Store's StackSlot or
// incoming/outgoing argument pseudo address operand into sp plus a
// literal offset, materializing the offset through t3 first when it
// does not fit a 12-bit immediate.
func rewriteMemOperand(inst *Instruction, frame *Frame, slotOffset map[int]int64) []*Instruction {
	var offset int64
	switch a := inst.Src[0].(type) {
	case StackSlot:
		offset = slotOffset[a.ID]
	case incomingArgPseudo:
		offset = frame.Size + int64(a.index)*wordSize
	case outgoingArgPseudo:
		offset = int64(a.index) * wordSize
	default:
		return []*Instruction{inst} // already a real register address (e.g. a GEP result)
	}
	if fitsI12(offset) {
		inst.Src[0] = SP
		inst.Offset = offset
		return []*Instruction{inst}
	}
	li := &Instruction{Op: OpLi, Dst: T3, Src: []Operand{Imm{Value: offset}}}
	add := &Instruction{Op: OpAdd, Dst: T3, Src: []Operand{SP, T3}}
	inst.Src[0] = T3
	inst.Offset = 0
	return []*Instruction{li, add, inst}
}

func fitsI12(v int64) bool { return v >= -2048 && v <= 2047 }

// insertPrologueEpilogue always saves ra, even in a leaf function that
// never clobbers it — frame.Size is never 0 (ra's slot alone rounds up
// to 16) so there is no zero-frame fast path to special-case.
func insertPrologueEpilogue(fn *Function, frame *Frame, raOff int64, savedOff map[Reg]int64) {
	var prologue []*Instruction
	prologue = append(prologue, &Instruction{Op: OpAddi, Dst: SP, Src: []Operand{SP, Imm{Value: -frame.Size}}})
	prologue = append(prologue, &Instruction{Op: OpStore, Src: []Operand{SP, RA}, Width: wordSize, Offset: raOff})
	for _, r := range frame.SavedInt {
		prologue = append(prologue, &Instruction{Op: OpStore, Src: []Operand{SP, r}, Width: wordSize, Offset: savedOff[r]})
	}
	for _, r := range frame.SavedFloat {
		prologue = append(prologue, &Instruction{Op: OpStore, Src: []Operand{SP, r}, Width: wordSize, Float: true, Offset: savedOff[r]})
	}
	if len(fn.Blocks) > 0 {
		fn.Blocks[0].Insts = append(prologue, fn.Blocks[0].Insts...)
	}

	for _, bb := range fn.Blocks {
		term := bb.Terminator()
		if term == nil || term.Op != OpRet {
			continue
		}
		var epilogue []*Instruction
		epilogue = append(epilogue, &Instruction{Op: OpLoad, Dst: RA, Src: []Operand{SP}, Width: wordSize, Offset: raOff})
		for _, r := range frame.SavedInt {
			epilogue = append(epilogue, &Instruction{Op: OpLoad, Dst: r, Src: []Operand{SP}, Width: wordSize, Offset: savedOff[r]})
		}
		for _, r := range frame.SavedFloat {
			epilogue = append(epilogue, &Instruction{Op: OpLoad, Dst: r, Src: []Operand{SP}, Width: wordSize, Float: true, Offset: savedOff[r]})
		}
		epilogue = append(epilogue, &Instruction{Op: OpAddi, Dst: SP, Src: []Operand{SP, Imm{Value: frame.Size}}})
		bb.Insts = append(bb.Insts[:len(bb.Insts)-1], append(epilogue, term)...)
	}
}
