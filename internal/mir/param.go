package mir

import "github.com/sysyrv/sysyrv/internal/types"

// Param is a function parameter: name, type, and a user
// list of instructions referencing it.
type Param struct {
	Name string
	Ty types.ValueType
	Index int
	Owner *Function

	users []*Instruction
}

func (p *Param) Type() types.ValueType { return p.Ty }

func (p *Param) Users() []*Instruction { return p.users }

func (p *Param) addUser(i *Instruction) { p.users = append(p.users, i) }

func (p *Param) removeUser(i *Instruction) {
	p.users = removeInst(p.users, i)
}
