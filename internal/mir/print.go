package mir

import (
	"fmt"
	"strings"
)

// Print renders m as textual MIR, in the same LLVM-ish style
// cmd/bin2ll/ll.go uses for its own -l dumps (ll.go builds *ir.Module
// and leans on llir/llvm's own String() for this; since our MIR is
// not itself an llir/llvm IR value we render it by hand here, keeping
// the same "one definition per line, %name = op operands" shape).
// Used by the CLI's -l flag and by RunAndLog's pass diffing.
func Print(m *Module) string {
	var sb strings.Builder
	for _, g := range m.Globals {
		mut := "const"
		if g.Mutable {
			mut = "global"
		}
		fmt.Fprintf(&sb, "@%s = %s %s %s\n", g.Name, mut, g.Ty, g.Init)
	}
	if len(m.Globals) > 0 {
		sb.WriteString("\n")
	}
	for i, fn := range m.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		printFunction(&sb, fn)
	}
	return sb.String()
}

func printFunction(sb *strings.Builder, fn *Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Ty, p.Name)
	}
	if fn.IsDeclaration() {
		fmt.Fprintf(sb, "declare %s @%s(%s)\n", fn.RetType, fn.Name, strings.Join(params, ", "))
		return
	}
	fmt.Fprintf(sb, "define %s @%s(%s) {\n", fn.RetType, fn.Name, strings.Join(params, ", "))
	for _, b := range fn.blocks {
		printBlock(sb, b)
	}
	sb.WriteString("}\n")
}

func printBlock(sb *strings.Builder, b *BasicBlock) {
	fmt.Fprintf(sb, "%s: ; loop_depth=%d preds=%s\n", b.Name, b.LoopDepth, predNames(b))
	for inst := b.Front(); inst != nil; inst = inst.Next() {
		sb.WriteString(" ")
		printInst(sb, inst)
		sb.WriteString("\n")
	}
}

func predNames(b *BasicBlock) string {
	names := make([]string, len(b.Preds()))
	for i, p := range b.Preds() {
		names[i] = p.Name
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func printInst(sb *strings.Builder, i *Instruction) {
	dest := ""
	if i.Type().String() != "void" {
		dest = fmt.Sprintf("%%%s = ", instIdent(i))
	}
	switch i.Kind {
	case OpICmp:
		fmt.Fprintf(sb, "%sicmp %s %s %s, %s", dest, i.ICmpPred, i.Operand(0).Type(), operandIdent(i.Operand(0)), operandIdent(i.Operand(1)))
	case OpFCmp:
		fmt.Fprintf(sb, "%sfcmp %s %s %s, %s", dest, i.FCmpPred, i.Operand(0).Type(), operandIdent(i.Operand(0)), operandIdent(i.Operand(1)))
	case OpAlloca:
		fmt.Fprintf(sb, "%salloca %s, i64 %d", dest, i.AllocaElemType, i.AllocaCount)
	case OpLoad:
		fmt.Fprintf(sb, "%sload %s, %s %s", dest, i.Type(), i.Operand(0).Type(), operandIdent(i.Operand(0)))
	case OpStore:
		fmt.Fprintf(sb, "store %s %s, %s %s", i.Operand(0).Type(), operandIdent(i.Operand(0)), i.Operand(1).Type(), operandIdent(i.Operand(1)))
	case OpGetElementPtr:
		idx := make([]string, 0, i.NumOperands()-1)
		for _, op := range i.Operands()[1:] {
			idx = append(idx, operandIdent(op))
		}
		fmt.Fprintf(sb, "%sgetelementptr %s, %s %s, [%s]", dest, i.GEPElemType, i.Operand(0).Type(), operandIdent(i.Operand(0)), strings.Join(idx, ", "))
	case OpCall:
		args := make([]string, i.NumOperands())
		for idx, op := range i.Operands() {
			args[idx] = fmt.Sprintf("%s %s", op.Type(), operandIdent(op))
		}
		fmt.Fprintf(sb, "%scall %s @%s(%s)", dest, i.Type(), i.Callee.Name, strings.Join(args, ", "))
	case OpPhi:
		edges := make([]string, len(i.Incoming))
		for idx, pred := range i.Incoming {
			v, _ := i.IncomingFor(pred)
			edges[idx] = fmt.Sprintf("[ %s, %%%s ]", operandIdent(v), pred.Name)
		}
		fmt.Fprintf(sb, "%sphi %s %s", dest, i.Type(), strings.Join(edges, ", "))
	case OpBr:
		if i.NumOperands() == 0 {
			fmt.Fprintf(sb, "br label %%%s", i.Parent().TrueSucc().Name)
		} else {
			fmt.Fprintf(sb, "br i1 %s, label %%%s, label %%%s", operandIdent(i.Operand(0)), i.Parent().TrueSucc().Name, i.Parent().FalseSucc().Name)
		}
	case OpRet:
		if i.NumOperands() == 0 {
			sb.WriteString("ret void")
		} else {
			fmt.Fprintf(sb, "ret %s %s", i.Operand(0).Type(), operandIdent(i.Operand(0)))
		}
	case OpZext, OpSext, OpTrunc, OpFpToSi, OpSiToFp, OpFpExt, OpFpTrunc:
		fmt.Fprintf(sb, "%s%s %s %s to %s", dest, i.Kind, i.Operand(0).Type(), operandIdent(i.Operand(0)), i.Type())
	default: // binary arithmetic/bitwise
		fmt.Fprintf(sb, "%s%s %s %s, %s", dest, i.Kind, i.Type(), operandIdent(i.Operand(0)), operandIdent(i.Operand(1)))
	}
}

func instIdent(i *Instruction) string {
	if i.Name != "" {
		return i.Name
	}
	return fmt.Sprintf("%d", i.ID())
}

func operandIdent(op Operand) string {
	switch v := op.(type) {
	case *Const:
		return v.String()
	case *Global:
		return "@" + v.Name
	case *Param:
		return "%" + v.Name
	case *Instruction:
		return "%" + instIdent(v)
	default:
		return "<nil>"
	}
}
