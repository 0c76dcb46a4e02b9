package mir

import "github.com/sysyrv/sysyrv/internal/types"

// Handles are the pointer types themselves: copyable, non-owning,
// pointer-identity-comparable references into a Builder's arenas.
// Aliases exist only for readability at call sites; they are not new
// types.
type (
	GlobalHandle = *Global
	FunctionHandle = *Function
	BlockHandle = *BasicBlock
	InstHandle = *Instruction
	ParameterHandle = *Param
)

// Operand is the four-way variant: Constant | GlobalHandle |
// ParameterHandle | InstructionHandle. Every concrete operand type
// below is directly one of *Const, *Global, *Param, *Instruction, so
// a type switch on Operand recovers that variant exactly.
type Operand interface {
	// Type returns this operand's deducible ValueType.
	Type() types.ValueType
	isOperand()
}

// user is satisfied by any Operand that maintains a user list, i.e.
// every Operand kind except Const (a constant is never "used" in the
// def-use sense; it has no identity to rewire).
type user interface {
	addUser(i *Instruction)
	removeUser(i *Instruction)
	Users() []*Instruction
}

func (*Const) isOperand() {}
func (*Global) isOperand() {}
func (*Param) isOperand() {}
func (*Instruction) isOperand() {}
