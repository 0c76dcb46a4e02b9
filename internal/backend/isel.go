package backend

import (
	"fmt"
	"math"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/mir"
	"github.com/sysyrv/sysyrv/internal/types"
)

// Lower performs instruction selection over an entire MIR module: per
// function, one backend block is created per MIR block with a label
// derived from function and block name, and every MIR instruction
// lowers to one or more backend instructions.
func Lower(m *mir.Module, log *logrus.Logger) (*Module, error) {
	out := &Module{}
	for _, g := range m.Globals {
		out.Globals = append(out.Globals, lowerGlobal(g))
	}
	for _, fn := range m.Functions {
		if fn.IsDeclaration() {
			continue
		}
		bf, err := lowerFunction(fn)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"func": fn.Name, "blocks": len(bf.Blocks)}).Debug("lowered function")
		out.Functions = append(out.Functions, bf)
	}
	return out, nil
}

func lowerGlobal(g *mir.Global) GlobalData {
	gd := GlobalData{Name: g.Name, Size: g.Ty.Size(), Mutable: g.Mutable}
	if g.Init != nil && !g.Init.IsZero() {
		flattenInit(g.Init, 0, &gd)
	}
	return gd
}

// flattenInit walks a (possibly nested) array constant and records
// every non-zero scalar leaf as an (offset, value) pair; zero leaves
// are left as implicit gaps so the emitter can interleave .word runs
// with .zero padding instead of writing out every zero word.
func flattenInit(c *mir.Const, base int64, gd *GlobalData) {
	if c.Type().IsArray() {
		elemSize := c.Type().Elem().Size()
		for i, e := range c.Elems() {
			flattenInit(e, base+int64(i)*elemSize, gd)
		}
		return
	}
	if c.IsZero() {
		return
	}
	if c.Type().IsFloat() {
		gd.Words = append(gd.Words, InitWord{Offset: base, Size: 4, Float: true, F32Val: c.AsFloat()})
	} else {
		gd.Words = append(gd.Words, InitWord{Offset: base, Size: 4, IntVal: int32(c.AsInt())})
	}
}

func classOf(t types.ValueType) RegClass {
	if t.IsFloat() {
		return ClassFloat
	}
	return ClassInt
}

type copyPair struct{ dst, src Reg }

// lowerFunction lowers one function body, then eliminates phi nodes by
// inserting parallel-copy sequences at the end of each predecessor.
func lowerFunction(fn *mir.Function) (*Function, error) {
	bf := &Function{Name: fn.Name}
	va := &vregAllocator{}
	valueOf := map[mir.Operand]Operand{}
	blockOf := map[*mir.BasicBlock]*Block{}

	for _, b := range fn.Blocks() {
		blockOf[b] = &Block{Label: fmt.Sprintf("%s.%s", fn.Name, b.Name)}
	}
	bf.Blocks = make([]*Block, 0, len(fn.Blocks()))
	for _, b := range fn.Blocks() {
		bf.Blocks = append(bf.Blocks, blockOf[b])
	}

	var entryCopies []*Instruction
	nextIntArg, nextFloatArg := 0, 0
	var incomingStack []incomingStackParam
	for _, p := range fn.Params {
		reg := va.New(classOf(p.Ty))
		valueOf[p] = reg
		if p.Ty.IsFloat() {
			if nextFloatArg < 8 {
				entryCopies = append(entryCopies, &Instruction{Op: OpMv, Dst: reg, Src: []Operand{FloatArgRegs[nextFloatArg]}, Float: true})
				nextFloatArg++
				continue
			}
		} else {
			if nextIntArg < 8 {
				entryCopies = append(entryCopies, &Instruction{Op: OpMv, Dst: reg, Src: []Operand{IntArgRegs[nextIntArg]}})
				nextIntArg++
				continue
			}
		}
		incomingStack = append(incomingStack, incomingStackParam{dst: reg, index: len(incomingStack)})
	}

	allocaSlot := map[*mir.Instruction]StackSlot{}
	nextSlot := 0
	for _, b := range fn.Blocks() {
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if inst.Kind == mir.OpAlloca {
				sz := inst.AllocaElemType.Size() * inst.AllocaCount
				allocaSlot[inst] = StackSlot{ID: nextSlot, Size: sz}
				nextSlot++
			}
		}
	}

	for _, p := range incomingStack {
		entryCopies = append(entryCopies, &Instruction{
			Op: OpLoad, Dst: p.dst, Src: []Operand{incomingArgPseudo{index: p.index}},
			Width: 8, Float: p.dst.Class == ClassFloat,
		})
	}

	for _, b := range fn.Blocks() {
		bb := blockOf[b]
		if b == fn.Entry {
			bb.Insts = append(bb.Insts, entryCopies...)
		}
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if inst.Kind == mir.OpPhi {
				valueOf[inst] = va.New(classOf(inst.Type()))
				continue
			}
			if err := lowerInst(inst, bb, blockOf, valueOf, va, allocaSlot); err != nil {
				return nil, err
			}
		}
	}

	insertPhiCopies(fn, blockOf, valueOf)

	bf.NumVRegsI = va.next[ClassInt]
	bf.NumVRegsF = va.next[ClassFloat]
	bf.allocaSlots = allocaSlot
	bf.nextSlotID = nextSlot
	return bf, nil
}

type incomingStackParam struct {
	dst   Reg
	index int
}

// incomingArgPseudo addresses the caller-provided stack argument at
// index (each slot 8 bytes, located above the callee's own frame);
// the stack-frame pass resolves it to an sp-relative load past the
// callee's frame size.
type incomingArgPseudo struct{ index int }

func (incomingArgPseudo) isOperand()       {}
func (p incomingArgPseudo) String() string { return fmt.Sprintf("incoming_arg[%d]", p.index) }

func materializeOperand(v mir.Operand, valueOf map[mir.Operand]Operand) Operand {
	if op, ok := valueOf[v]; ok {
		return op
	}
	if c, ok := v.(*mir.Const); ok {
		return c // resolved by the instruction lowerer that needs it (often folded into an immediate)
	}
	panic(fmt.Sprintf("backend: operand has no lowered value: %# v", pretty.Formatter(v)))
}

func regOf(v mir.Operand, valueOf map[mir.Operand]Operand, bb *Block, va *vregAllocator) Operand {
	op := materializeOperand(v, valueOf)
	if c, ok := op.(*mir.Const); ok {
		dst := va.New(classOf(c.Type()))
		bb.Insts = append(bb.Insts, loadConstInto(dst, c))
		return dst
	}
	return op
}

func loadConstInto(dst Reg, c *mir.Const) *Instruction {
	if c.Type().IsFloat() {
		bits := int64(math.Float32bits(c.AsFloat()))
		return &Instruction{Op: OpLi, Dst: dst, Src: []Operand{Imm{Value: bits}}, Float: true}
	}
	return &Instruction{Op: OpLi, Dst: dst, Src: []Operand{Imm{Value: c.AsInt()}}}
}

// insertPhiCopies eliminates SSA phi nodes: for every predecessor of a
// block with phis, build the set of (dst-vreg, src-operand) pairs the
// edge must establish and sequentialize them into copies inserted
// before the predecessor's terminator.
func insertPhiCopies(fn *mir.Function, blockOf map[*mir.BasicBlock]*Block, valueOf map[mir.Operand]Operand) {
	for _, b := range fn.Blocks() {
		var phis []*mir.Instruction
		for inst := b.Front(); inst != nil; inst = inst.Next() {
			if inst.Kind == mir.OpPhi {
				phis = append(phis, inst)
			}
		}
		if len(phis) == 0 {
			continue
		}
		for _, pred := range b.Preds() {
			bb := blockOf[pred]
			var pairs []copyPair
			for _, phi := range phis {
				v, ok := phi.IncomingFor(pred)
				if !ok {
					continue
				}
				dst := valueOf[phi].(Reg)
				if c, isConst := v.(*mir.Const); isConst {
					insertBeforeTerm(bb, loadConstInto(dst, c))
					continue
				}
				src := materializeOperand(v, valueOf).(Reg)
				pairs = append(pairs, copyPair{dst: dst, src: src})
			}
			for _, cp := range sequentializeCopies(pairs) {
				insertBeforeTerm(bb, &Instruction{Op: OpMv, Dst: cp.dst, Src: []Operand{cp.src}, Float: cp.dst.Class == ClassFloat})
			}
		}
	}
}

func insertBeforeTerm(bb *Block, inst *Instruction) {
	if len(bb.Insts) == 0 || !bb.Insts[len(bb.Insts)-1].Op.IsTerminator() {
		bb.Insts = append(bb.Insts, inst)
		return
	}
	last := bb.Insts[len(bb.Insts)-1]
	bb.Insts[len(bb.Insts)-1] = inst
	bb.Insts = append(bb.Insts, last)
}

// sequentializeCopies turns a parallel-copy set (all dsts distinct)
// into an ordered sequence of register moves, breaking any cycle with
// one temporary per occurrence — the standard SSA-destruction
// algorithm for phi-copy lowering.
func sequentializeCopies(pairs []copyPair) []copyPair {
	pending := map[Reg]Reg{}
	var order []Reg
	for _, p := range pairs {
		if _, dup := pending[p.dst]; !dup {
			order = append(order, p.dst)
		}
		pending[p.dst] = p.src
	}
	neededAsSource := func(r Reg) bool {
		for _, s := range pending {
			if s == r {
				return true
			}
		}
		return false
	}

	var out []copyPair
	for len(pending) > 0 {
		progressed := false
		for _, d := range order {
			s, ok := pending[d]
			if !ok {
				continue
			}
			if d == s {
				delete(pending, d)
				progressed = true
				continue
			}
			// d is only safe to overwrite once no other pending copy
			// still needs to read its current value.
			if !neededAsSource(d) {
				out = append(out, copyPair{dst: d, src: s})
				delete(pending, d)
				progressed = true
			}
		}
		if !progressed && len(pending) > 0 {
			var d0 Reg
			for d := range pending {
				d0 = d
				break
			}
			tmp := Reg{id: -1000000 - d0.id, Class: d0.Class}
			out = append(out, copyPair{dst: tmp, src: d0})
			for d, s := range pending {
				if s == d0 {
					pending[d] = tmp
				}
			}
		}
	}
	return out
}
