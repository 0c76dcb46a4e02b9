package backend

import (
	"bytes"
	"fmt"
	"math"

	"github.com/sysyrv/sysyrv/internal/config"
	"github.com/sysyrv/sysyrv/internal/parallel"
)

// Emit renders m as RISC-V64 (rv64imafdc) assembly text: one
// .text/.globl/.type/.size block per function, then .bss/.data for
// every global, in the same build-into-a-bytes.Buffer-then-return-the-
// string shape cmd/bin2asm/header.go uses for its own text output.
// Functions and globals are each rendered to their own string
// concurrently (cfg.NumParallelForFuncGenAsm /
// NumParallelForGlobalGenAsm workers) and concatenated in m's stable
// order afterward, since every function's block list is immutable by
// the time Emit runs.
func Emit(m *Module, cfg config.Config) string {
	funcText := make([]string, len(m.Functions))
	parallel.Run(len(m.Functions), cfg.NumParallelForFuncGenAsm, func(i int) {
		funcText[i] = renderFunction(m.Functions[i], cfg)
	})
	globalText := make([]string, len(m.Globals))
	parallel.Run(len(m.Globals), cfg.NumParallelForGlobalGenAsm, func(i int) {
		globalText[i] = renderGlobal(m.Globals[i])
	})

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "\t.attribute arch, \"rv64imafdc\"\n")
	for _, t := range funcText {
		buf.WriteString(t)
	}
	for _, t := range globalText {
		buf.WriteString(t)
	}
	return buf.String()
}

const functionHeaderFormat = `
	.text
	.align	2
	.globl	%[1]s
	.type	%[1]s, @function
%[1]s:
`

// renderFunction renders one function's full .text block, including
// its blocks, rendered concurrently in turn via
// cfg.NumParallelForBlockGenAsm workers.
func renderFunction(fn *Function, cfg config.Config) string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, functionHeaderFormat[1:], fn.Name)

	blockText := make([]string, len(fn.Blocks))
	parallel.Run(len(fn.Blocks), cfg.NumParallelForBlockGenAsm, func(i int) {
		blockText[i] = renderBlock(fn.Blocks[i])
	})
	for _, t := range blockText {
		buf.WriteString(t)
	}

	fmt.Fprintf(buf, "\t.size\t%[1]s, .-%[1]s\n", fn.Name)
	return buf.String()
}

func renderBlock(bb *Block) string {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s:\n", bb.Label)
	for _, inst := range bb.Insts {
		emitInst(buf, inst)
	}
	return buf.String()
}

func emitInst(buf *bytes.Buffer, i *Instruction) {
	switch i.Op {
	case OpMv:
		op := "mv"
		if i.Float {
			op = "fsgnj.s"
			fmt.Fprintf(buf, "\t%s\t%s, %s, %s\n", op, i.Dst, i.Src[0], i.Src[0])
			return
		}
		fmt.Fprintf(buf, "\t%s\t%s, %s\n", op, i.Dst, i.Src[0])
	case OpLi:
		fmt.Fprintf(buf, "\tli\t%s, %s\n", i.Dst, i.Src[0])
	case OpLa:
		fmt.Fprintf(buf, "\tla\t%s, %s\n", i.Dst, i.Src[0])
	case OpLoad:
		fmt.Fprintf(buf, "\t%s\t%s, %d(%s)\n", loadMnemonic(i), i.Dst, i.Offset, i.Src[0])
	case OpStore:
		fmt.Fprintf(buf, "\t%s\t%s, %d(%s)\n", storeMnemonic(i), i.Src[1], i.Offset, i.Src[0])
	case OpJ:
		fmt.Fprintf(buf, "\tj\t%s\n", i.Target.Label)
	case OpCall:
		fmt.Fprintf(buf, "\tcall\t%s\n", i.Callee)
	case OpRet:
		fmt.Fprintf(buf, "\tret\n")
	default:
		if i.Op.IsBranch() {
			emitBranch(buf, i)
			return
		}
		emitALU(buf, i)
	}
}

func loadMnemonic(i *Instruction) string {
	if i.Float {
		return "flw"
	}
	if i.Width == 8 {
		return "ld"
	}
	return "lw"
}

func storeMnemonic(i *Instruction) string {
	if i.Float {
		return "fsw"
	}
	if i.Width == 8 {
		return "sd"
	}
	return "sw"
}

func emitBranch(buf *bytes.Buffer, i *Instruction) {
	if i.Op == OpBeqz || i.Op == OpBnez {
		fmt.Fprintf(buf, "\t%s\t%s, %s\n", i.Op, i.Src[0], i.Target.Label)
		return
	}
	fmt.Fprintf(buf, "\t%s\t%s, %s, %s\n", i.Op, i.Src[0], i.Src[1], i.Target.Label)
}

func emitALU(buf *bytes.Buffer, i *Instruction) {
	fmt.Fprintf(buf, "\t%s\t%s, %s\n", i.Op, i.Dst, joinOperands(i.Src))
}

func joinOperands(ops []Operand) string {
	s := ""
	for idx, op := range ops {
		if idx > 0 {
			s += ", "
		}
		s += op.String()
	}
	return s
}

func renderGlobal(g GlobalData) string {
	buf := &bytes.Buffer{}
	if g.AllZero() {
		section := ".bss"
		if !g.Mutable {
			section = ".section .rodata" // zero-valued const array, still deserves its own symbol
		}
		fmt.Fprintf(buf, "\n\t%s\n\t.align\t3\n\t.globl\t%s\n\t.type\t%s, @object\n\t.size\t%s, %d\n%s:\n\t.zero\t%d\n",
			section, g.Name, g.Name, g.Name, g.Size, g.Name, g.Size)
		return buf.String()
	}
	section := ".data"
	if !g.Mutable {
		section = ".section .rodata"
	}
	fmt.Fprintf(buf, "\n\t%s\n\t.align\t3\n\t.globl\t%s\n\t.type\t%s, @object\n\t.size\t%s, %d\n%s:\n",
		section, g.Name, g.Name, g.Name, g.Size, g.Name)

	var pos int64
	for _, w := range g.Words {
		if gap := w.Offset - pos; gap > 0 {
			fmt.Fprintf(buf, "\t.zero\t%d\n", gap)
		}
		if w.Float {
			fmt.Fprintf(buf, "\t.word\t%d\n", int32(math.Float32bits(w.F32Val)))
		} else {
			fmt.Fprintf(buf, "\t.word\t%d\n", w.IntVal)
		}
		pos = w.Offset + w.Size
	}
	if tail := g.Size - pos; tail > 0 {
		fmt.Fprintf(buf, "\t.zero\t%d\n", tail)
	}
	return buf.String()
}
