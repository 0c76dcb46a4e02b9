package mir

import "github.com/sysyrv/sysyrv/internal/types"

// Op enumerates the MIR instruction kinds.
type Op int

const (
	OpHead Op = iota // sentinel; never appears as a "real" instruction

	// Integer arithmetic/bitwise, two operands (lhs, rhs).
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpShl
	OpLShr
	OpAShr
	OpAnd
	OpOr
	OpXor

	// Float arithmetic, two operands.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv

	// Comparisons.
	OpICmp
	OpFCmp

	// Coercions, one operand (src).
	OpZext
	OpSext
	OpTrunc
	OpFpToSi
	OpSiToFp
	OpFpExt
	OpFpTrunc

	// Memory / aggregate.
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr

	// Control flow / misc.
	OpCall
	OpPhi
	OpBr
	OpRet
)

func (k Op) String() string {
	names := [...]string{
		"head", "add", "sub", "mul", "sdiv", "udiv", "srem", "urem",
		"shl", "lshr", "ashr", "and", "or", "xor",
		"fadd", "fsub", "fmul", "fdiv",
		"icmp", "fcmp",
		"zext", "sext", "trunc", "fptosi", "sitofp", "fpext", "fptrunc",
		"alloca", "load", "store", "getelementptr",
		"call", "phi", "br", "ret",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?op"
}

// IsPure reports whether k can be freely reordered/deleted when
// unused — i.e. every kind except Call, Store, Br, Ret, Head. Call
// purity additionally depends on the callee's effect range and so is
// judged by the caller, not here; IsPure(OpCall) conservatively
// returns false.
func (k Op) IsPure() bool {
	switch k {
	case OpCall, OpStore, OpBr, OpRet, OpHead:
		return false
	default:
		return true
	}
}

// IsTerminator reports whether k ends a basic block.
func (k Op) IsTerminator() bool { return k == OpBr || k == OpRet }

// ICmpPred is an integer-comparison predicate.
type ICmpPred int

const (
	ICmpEQ ICmpPred = iota
	ICmpNE
	ICmpSLT
	ICmpSLE
	ICmpSGT
	ICmpSGE
	ICmpULT
	ICmpULE
	ICmpUGT
	ICmpUGE
)

func (p ICmpPred) String() string {
	names := [...]string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}
	return names[p]
}

// Swapped returns the predicate that holds when lhs/rhs are swapped,
// used by inst_combine to place an immediate on the
// right.
func (p ICmpPred) Swapped() ICmpPred {
	switch p {
	case ICmpSLT:
		return ICmpSGT
	case ICmpSLE:
		return ICmpSGE
	case ICmpSGT:
		return ICmpSLT
	case ICmpSGE:
		return ICmpSLE
	case ICmpULT:
		return ICmpUGT
	case ICmpULE:
		return ICmpUGE
	case ICmpUGT:
		return ICmpULT
	case ICmpUGE:
		return ICmpULE
	default: // eq, ne are symmetric
		return p
	}
}

// FCmpPred is a float-comparison predicate.
type FCmpPred int

const (
	FCmpOEQ FCmpPred = iota
	FCmpONE
	FCmpOLT
	FCmpOLE
	FCmpOGT
	FCmpOGE
)

func (p FCmpPred) String() string {
	names := [...]string{"oeq", "one", "olt", "ole", "ogt", "oge"}
	return names[p]
}

// PhiEdge pairs a Phi's incoming value with the predecessor block it
// flows from ("(value, predecessor-block)+").
type PhiEdge struct {
	Value Operand
	Pred *BasicBlock
}

// Instruction is the tagged-union instruction node: a
// single struct carrying the fields common to every kind (id,
// operands, value type, parent-block back-pointer, user list) plus a
// handful of kind-specific payload fields, dispatched on Kind: one
// concrete type, exhaustive switch on Kind, no virtual dispatch.
type Instruction struct {
	id int
	Kind Op
	valueType types.ValueType
	operands []Operand
	parent *BasicBlock
	users []*Instruction

	prev, next *Instruction // doubly-linked list within parent block

	Name string // optional, for textual dumps only

	// --- kind-specific payload ---
	ICmpPred ICmpPred
	FCmpPred FCmpPred

	AllocaElemType types.ValueType // Alloca: element type ty
	AllocaCount int64 // Alloca: element count n

	GEPElemType types.ValueType // GetElementPtr: the type `indices` walk into

	Callee *Function // Call: target function

	Incoming []*BasicBlock // Phi: predecessor for operands[i], parallel to operands
}

func (i *Instruction) ID() int { return i.id }
func (i *Instruction) Type() types.ValueType { return i.valueType }
func (i *Instruction) Parent() *BasicBlock { return i.parent }
func (i *Instruction) Users() []*Instruction { return i.users }
func (i *Instruction) Operands() []Operand { return i.operands }
func (i *Instruction) NumOperands() int { return len(i.operands) }
func (i *Instruction) Operand(idx int) Operand { return i.operands[idx] }

func (i *Instruction) addUser(u *Instruction) { i.users = append(i.users, u) }
func (i *Instruction) removeUser(u *Instruction) { i.users = removeInst(i.users, u) }

// SetOperand performs the "manager" mutation that keeps def-use and
// use-def consistent: it detaches self from the old operand's user
// list and attaches self to the new operand's user list.
func (i *Instruction) SetOperand(idx int, v Operand) {
	old := i.operands[idx]
	if old != nil {
		detachUser(old, i)
	}
	i.operands[idx] = v
	if v != nil {
		attachUser(v, i)
	}
}

// AppendOperand adds a new trailing operand (used when building Phi
// nodes and variadic Call argument lists incrementally).
func (i *Instruction) AppendOperand(v Operand) {
	i.operands = append(i.operands, v)
	if v != nil {
		attachUser(v, i)
	}
}

func attachUser(op Operand, i *Instruction) {
	if u, ok := op.(user); ok {
		u.addUser(i)
	}
}

func detachUser(op Operand, i *Instruction) {
	if u, ok := op.(user); ok {
		u.removeUser(i)
	}
}

// ReplaceSelf rewires every user of i to reference newVal instead.
// i itself is left operand-intact; the caller is expected to
// RemoveSelf it afterwards if it is now dead.
func (i *Instruction) ReplaceSelf(newVal Operand) {
	users := append([]*Instruction(nil), i.users...) // snapshot: SetOperand mutates i.users
	for _, u := range users {
		for idx, op := range u.operands {
			if op == Operand(i) {
				u.SetOperand(idx, newVal)
			}
		}
	}
}

// AddIncoming appends a (value, predecessor) edge to a Phi.
func (i *Instruction) AddIncoming(v Operand, pred *BasicBlock) {
	if i.Kind != OpPhi {
		panic("mir: AddIncoming on non-phi instruction")
	}
	i.AppendOperand(v)
	i.Incoming = append(i.Incoming, pred)
}

// IncomingFor returns the value Phi i receives from pred, and true if
// pred is among its incoming edges.
func (i *Instruction) IncomingFor(pred *BasicBlock) (Operand, bool) {
	for idx, p := range i.Incoming {
		if p == pred {
			return i.operands[idx], true
		}
	}
	return nil, false
}

// RemoveIncoming drops the edge from pred (used when a predecessor is
// deleted by block_fuse/dead_code_elim).
func (i *Instruction) RemoveIncoming(pred *BasicBlock) {
	for idx, p := range i.Incoming {
		if p == pred {
			detachUser(i.operands[idx], i)
			i.operands = append(i.operands[:idx], i.operands[idx+1:]...)
			i.Incoming = append(i.Incoming[:idx], i.Incoming[idx+1:]...)
			return
		}
	}
}
