package mir

import "github.com/sysyrv/sysyrv/internal/types"

// Global is a module-level variable: name, type,
// mutability, a Const initializer, and a user list of instructions
// that reference it (loads, stores, GEPs with it as base, calls
// passing it as an array argument).
type Global struct {
	Name string
	Ty types.ValueType
	Mutable bool
	Init *Const

	users []*Instruction
}

// Type returns the *address* type of the global ("the
// Pointer(t) of an identifier (global, alloca) is the address type").
func (g *Global) Type() types.ValueType { return types.Pointer(g.Ty) }

func (g *Global) Users() []*Instruction { return g.users }

func (g *Global) addUser(i *Instruction) { g.users = append(g.users, i) }

func (g *Global) removeUser(i *Instruction) {
	g.users = removeInst(g.users, i)
}

func removeInst(list []*Instruction, target *Instruction) []*Instruction {
	for idx, u := range list {
		if u == target {
			return append(list[:idx], list[idx+1:]...)
		}
	}
	return list
}
