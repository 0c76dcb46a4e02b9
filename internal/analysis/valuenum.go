package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sysyrv/sysyrv/internal/mir"
)

// commutative lists the opcodes whose operand order is
// normalized for value numbering.
var commutative = map[mir.Op]bool{
	mir.OpAdd: true, mir.OpMul: true, mir.OpFAdd: true, mir.OpFMul: true,
	mir.OpAnd: true, mir.OpOr: true, mir.OpXor: true,
}

// identityNumbered never merges with a different instance unless
// Memory-SSA proves it reads the same value; value
// numbering alone treats these as numbered by pointer identity.
func identityNumbered(k mir.Op) bool {
	switch k {
	case mir.OpLoad, mir.OpCall, mir.OpAlloca, mir.OpPhi:
		return true
	default:
		return false
	}
}

// ValueNumberer assigns a canonical number to every operand in a
// function, congruence-closure style: operands with equal expressions
// get equal numbers. Rebuild after any IR mutation that changes
// operand lists.
type ValueNumberer struct {
	numberOf map[mir.Operand]int
	exprOf map[string]int
	next int
}

func NewValueNumberer() *ValueNumberer {
	return &ValueNumberer{numberOf: map[mir.Operand]int{}, exprOf: map[string]int{}}
}

// Number returns op's value number, computing and interning it (and
// recursively numbering its operands) on first use.
func (vn *ValueNumberer) Number(op mir.Operand) int {
	if n, ok := vn.numberOf[op]; ok {
		return n
	}
	expr := vn.exprString(op)
	if n, ok := vn.exprOf[expr]; ok {
		vn.numberOf[op] = n
		return n
	}
	n := vn.next
	vn.next++
	vn.numberOf[op] = n
	vn.exprOf[expr] = n
	return n
}

// Equal reports whether a and b have the same value-number
// expression.
func (vn *ValueNumberer) Equal(a, b mir.Operand) bool { return vn.Number(a) == vn.Number(b) }

func (vn *ValueNumberer) exprString(op mir.Operand) string {
	switch v := op.(type) {
	case *mir.Const:
		return "const:" + v.String()
	case *mir.Global:
		return fmt.Sprintf("global:%p", v)
	case *mir.Param:
		return fmt.Sprintf("param:%p", v)
	case *mir.Instruction:
		return vn.instExprString(v)
	default:
		return fmt.Sprintf("op:%p", op)
	}
}

func (vn *ValueNumberer) instExprString(i *mir.Instruction) string {
	if identityNumbered(i.Kind) {
		return fmt.Sprintf("id:%p", i)
	}
	nums := make([]int, i.NumOperands())
	for idx, o := range i.Operands() {
		nums[idx] = vn.Number(o)
	}
	if commutative[i.Kind] {
		sort.Ints(nums)
	}
	parts := make([]string, len(nums))
	for idx, n := range nums {
		parts[idx] = fmt.Sprintf("%d", n)
	}
	tag := i.Kind.String()
	switch i.Kind {
	case mir.OpICmp:
		tag = "icmp:" + i.ICmpPred.String()
	case mir.OpFCmp:
		tag = "fcmp:" + i.FCmpPred.String()
	}
	return fmt.Sprintf("%s(%s)", tag, strings.Join(parts, ","))
}
