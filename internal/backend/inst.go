package backend

import "github.com/sysyrv/sysyrv/internal/mir"

// Op is a backend instruction opcode: either a real RISC-V mnemonic
// or one of the pseudo-ops (Li, La, LocalAddr, Load, Store). The
// stack-frame pass rewrites LocalAddr away and resolves the stack
// addresses of Load/Store; Li, La, Load and Store are emitted as
// li/la and the sized load/store mnemonics.
type Op int

const (
	// Integer register-register ALU.
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpDivU
	OpRem
	OpRemU
	OpSll
	OpSrl
	OpSra
	OpAnd
	OpOr
	OpXor
	OpSlt
	OpSltu

	// Integer register-immediate ALU.
	OpAddi
	OpAndi
	OpOri
	OpXori
	OpSlli
	OpSrli
	OpSrai
	OpSlti
	OpSltiu

	// Single-precision float.
	OpFAddS
	OpFSubS
	OpFMulS
	OpFDivS
	OpFNegS
	OpFeqS
	OpFltS
	OpFleS
	OpFcvtWS // float -> int32, truncating
	OpFcvtSW // int32 -> float

	// Moves and materialization.
	OpMv  // integer or float register move (fsgnj.s rd,rs,rs for float)
	OpLi  // load an arbitrary 64-bit immediate into an int register
	OpLa  // load the address of a Label into an int register

	// Memory, pre-physicalization: Addr is a Reg, a StackSlot, or a
	// Label (global symbol) plus Offset. Width is 4 or 8; Float
	// selects flw/fsw (whatever the Width) over lw/sw/ld/sd.
	OpLoad
	OpStore

	// LocalAddr materializes the address of a StackSlot (+Offset)
	// into Dst; physicalization rewrites it to an addi off sp.
	OpLocalAddr

	// Control flow.
	OpBeq
	OpBne
	OpBlt
	OpBle
	OpBgt
	OpBge
	OpBltu
	OpBleu
	OpBgtu
	OpBgeu
	OpBeqz
	OpBnez
	OpJ
	OpCall
	OpRet
)

var opNames = map[Op]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpDivU: "divu",
	OpRem: "rem", OpRemU: "remu", OpSll: "sll", OpSrl: "srl", OpSra: "sra",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpSlt: "slt", OpSltu: "sltu",
	OpAddi: "addi", OpAndi: "andi", OpOri: "ori", OpXori: "xori",
	OpSlli: "slli", OpSrli: "srli", OpSrai: "srai", OpSlti: "slti", OpSltiu: "sltiu",
	OpFAddS: "fadd.s", OpFSubS: "fsub.s", OpFMulS: "fmul.s", OpFDivS: "fdiv.s",
	OpFNegS: "fneg.s", OpFeqS: "feq.s", OpFltS: "flt.s", OpFleS: "fle.s",
	OpFcvtWS: "fcvt.w.s", OpFcvtSW: "fcvt.s.w",
	OpMv: "mv", OpLi: "li", OpLa: "la",
	OpLoad: "load", OpStore: "store", OpLocalAddr: "localaddr",
	OpBeq: "beq", OpBne: "bne", OpBlt: "blt", OpBle: "ble", OpBgt: "bgt",
	OpBge: "bge", OpBltu: "bltu", OpBleu: "bleu", OpBgtu: "bgtu", OpBgeu: "bgeu",
	OpBeqz: "beqz", OpBnez: "bnez", OpJ: "j", OpCall: "call", OpRet: "ret",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "?op"
}

func (o Op) IsBranch() bool {
	switch o {
	case OpBeq, OpBne, OpBlt, OpBle, OpBgt, OpBge, OpBltu, OpBleu, OpBgtu, OpBgeu, OpBeqz, OpBnez:
		return true
	}
	return false
}

func (o Op) IsTerminator() bool { return o.IsBranch() || o == OpJ || o == OpRet }

// Instruction is one backend instruction. Not every field is
// meaningful for every Op; Dst/Src carry the register operands
// liveness and register allocation care about, the rest are payload.
type Instruction struct {
	Op  Op
	Dst Operand // Reg, or nil for stores/branches/ret
	Src []Operand

	Width int  // 4 or 8, for Load/Store
	Float bool // Load/Store/Mv of a float value

	Offset int64 // extra byte offset added to a StackSlot/Label address

	Target      *Block // branch/jump destination, pre-layout
	FallThrough *Block // block a conditional branch falls through to (set by isel, consumed by term.go)

	Callee      string
	CallArgs    []Reg // physical arg registers already populated by isel
	CallDefines []Reg // physical registers the callee clobbers (return value reg plus caller-saved set)
}

// Defs returns the registers this instruction writes.
func (i *Instruction) Defs() []Reg {
	var out []Reg
	if r, ok := i.Dst.(Reg); ok {
		out = append(out, r)
	}
	if i.Op == OpCall {
		out = append(out, i.CallDefines...)
	}
	return out
}

// Uses returns the registers this instruction reads.
func (i *Instruction) Uses() []Reg {
	var out []Reg
	for _, s := range i.Src {
		if r, ok := s.(Reg); ok {
			out = append(out, r)
		}
	}
	if i.Op == OpCall {
		out = append(out, i.CallArgs...)
	}
	return out
}

// ReplaceReg substitutes every occurrence of from with to, in both Dst
// and Src — used by register allocation once a color/spill slot is
// assigned to a virtual register.
func (i *Instruction) ReplaceReg(from, to Reg) {
	if r, ok := i.Dst.(Reg); ok && r == from {
		i.Dst = to
	}
	for idx, s := range i.Src {
		if r, ok := s.(Reg); ok && r == from {
			i.Src[idx] = to
		}
	}
	for idx, r := range i.CallArgs {
		if r == from {
			i.CallArgs[idx] = to
		}
	}
}

// Block is a backend basic block: a label and a flat instruction
// list. Unlike mir.BasicBlock this is a plain slice — once lowered,
// backend blocks are rewritten in bulk by whole-list passes (long-jump
// splitting, terminator (de)simplification) rather than spliced node
// by node.
type Block struct {
	Label string
	Insts []*Instruction
}

func (b *Block) Terminator() *Instruction {
	if len(b.Insts) == 0 {
		return nil
	}
	return b.Insts[len(b.Insts)-1]
}

// Function is one lowered function: its blocks in layout order, the
// physical argument registers it receives, and the frame-building
// state filled in by later passes.
type Function struct {
	Name      string
	Blocks    []*Block
	IsVararg  bool // unused by SysY but kept for symmetry with a real ABI lowering
	NumVRegsI int
	NumVRegsF int

	// allocaSlots maps each lowered Alloca to its pre-assignment stack
	// slot id; the stack-frame pass turns these into final offsets.
	allocaSlots map[*mir.Instruction]StackSlot

	// spillSlots maps each register allocator spill to its slot,
	// assigned from the same id space as allocaSlots.
	spillSlots map[Reg]StackSlot

	// nextSlotID is the next unused StackSlot.ID, shared by alloca and
	// spill slot assignment so the stack-frame pass can lay both out
	// without an id collision.
	nextSlotID int

	Frame *Frame // nil until the stack-frame pass runs
}

// Module is every lowered function plus the globals that need .data /
// .bss emission.
type Module struct {
	Functions []*Function
	Globals   []GlobalData
}

// GlobalData is a lowered module-level variable: its assembled layout
// (zero-filled extent, or a list of scalar words/floats with gaps) is
// computed once from the MIR Global's initializer by isel.
type GlobalData struct {
	Name    string
	Size    int64
	Mutable bool
	// Words holds explicit (offset, value) pairs for non-zero scalar
	// initializer elements; gaps between them, and anything after the
	// last one up to Size, are zero-filled.
	Words []InitWord
}

type InitWord struct {
	Offset int64
	Size   int64 // 4 (int/float) — SysY has no 8-byte scalar globals
	Float  bool
	IntVal int32
	F32Val float32
}

func (g GlobalData) AllZero() bool { return len(g.Words) == 0 }
