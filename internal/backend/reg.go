// Package backend lowers MIR into RISC-V64 assembly: instruction
// selection, liveness, Chaitin-Briggs register allocation, stack-frame
// materialization, long-jump patching, and text emission.
package backend

import "fmt"

// RegClass partitions registers into the integer and float files,
// which never interfere with each other and color independently.
type RegClass int

const (
	ClassInt RegClass = iota
	ClassFloat
)

// Reg is either a physical RISC-V register (id < firstVirtual) or a
// virtual register minted during instruction selection (id >=
// firstVirtual). The two id spaces share one namespace per class so a
// RegSet can hold both without a tag bit.
type Reg struct {
	id    int
	Class RegClass
}

const firstVirtual = 1 << 16

func (r Reg) IsVirtual() bool { return r.id >= firstVirtual }
func (r Reg) ID() int         { return r.id }

func (r Reg) String() string {
	if r.IsVirtual() {
		prefix := "v"
		if r.Class == ClassFloat {
			prefix = "vf"
		}
		return fmt.Sprintf("%%%s%d", prefix, r.id-firstVirtual)
	}
	if r.Class == ClassFloat {
		return floatPhysNames[r.id]
	}
	return intPhysNames[r.id]
}

// Physical integer registers, RISC-V ABI numbering.
var (
	Zero = Reg{id: 0}
	RA   = Reg{id: 1}
	SP   = Reg{id: 2}
	GP   = Reg{id: 3}
	TP   = Reg{id: 4}
	T0   = Reg{id: 5}
	T1   = Reg{id: 6}
	T2   = Reg{id: 7}
	S0   = Reg{id: 8} // callee-saved; general allocatable, not a dedicated frame pointer (see frame.go)
	S1   = Reg{id: 9}
	A0   = Reg{id: 10}
	A1   = Reg{id: 11}
	A2   = Reg{id: 12}
	A3   = Reg{id: 13}
	A4   = Reg{id: 14}
	A5   = Reg{id: 15}
	A6   = Reg{id: 16}
	A7   = Reg{id: 17}
	S2   = Reg{id: 18}
	S3   = Reg{id: 19}
	S4   = Reg{id: 20}
	S5   = Reg{id: 21}
	S6   = Reg{id: 22}
	S7   = Reg{id: 23}
	S8   = Reg{id: 24}
	S9   = Reg{id: 25}
	S10  = Reg{id: 26}
	S11  = Reg{id: 27}
	T3   = Reg{id: 28} // reserved scratch for offset materialization
	T4   = Reg{id: 29}
	T5   = Reg{id: 30}
	T6   = Reg{id: 31}
)

var intPhysNames = [...]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// A0..A7 for integer arguments/returns.
var IntArgRegs = [...]Reg{A0, A1, A2, A3, A4, A5, A6, A7}

// IntAllocatable excludes zero, ra, sp, gp, tp (fixed-purpose) and t3
// (reserved for offset materialization in the stack-frame pass).
var IntAllocatable = []Reg{
	T0, T1, T2, S0, S1, A0, A1, A2, A3, A4, A5, A6, A7,
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11, T4, T5, T6,
}

var IntCallerSaved = []Reg{T0, T1, T2, A0, A1, A2, A3, A4, A5, A6, A7, T4, T5, T6}
var IntCalleeSaved = []Reg{S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11}

func newFloatReg(id int) Reg { return Reg{id: id, Class: ClassFloat} }

var (
	FT0  = newFloatReg(0)
	FT1  = newFloatReg(1)
	FT2  = newFloatReg(2)
	FT3  = newFloatReg(3)
	FT4  = newFloatReg(4)
	FT5  = newFloatReg(5)
	FT6  = newFloatReg(6)
	FT7  = newFloatReg(7)
	FS0  = newFloatReg(8)
	FS1  = newFloatReg(9)
	FA0  = newFloatReg(10)
	FA1  = newFloatReg(11)
	FA2  = newFloatReg(12)
	FA3  = newFloatReg(13)
	FA4  = newFloatReg(14)
	FA5  = newFloatReg(15)
	FA6  = newFloatReg(16)
	FA7  = newFloatReg(17)
	FS2  = newFloatReg(18)
	FS3  = newFloatReg(19)
	FS4  = newFloatReg(20)
	FS5  = newFloatReg(21)
	FS6  = newFloatReg(22)
	FS7  = newFloatReg(23)
	FS8  = newFloatReg(24)
	FS9  = newFloatReg(25)
	FS10 = newFloatReg(26)
	FS11 = newFloatReg(27)
	FT8  = newFloatReg(28)
	FT9  = newFloatReg(29)
	FT10 = newFloatReg(30)
	FT11 = newFloatReg(31)
)

var floatPhysNames = [...]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

var FloatArgRegs = [...]Reg{FA0, FA1, FA2, FA3, FA4, FA5, FA6, FA7}

var FloatAllocatable = []Reg{
	FT0, FT1, FT2, FT3, FT4, FT5, FT6, FT7, FS0, FS1,
	FA0, FA1, FA2, FA3, FA4, FA5, FA6, FA7,
	FS2, FS3, FS4, FS5, FS6, FS7, FS8, FS9, FS10, FS11,
	FT8, FT9, FT10, FT11,
}

var FloatCallerSaved = []Reg{
	FT0, FT1, FT2, FT3, FT4, FT5, FT6, FT7,
	FA0, FA1, FA2, FA3, FA4, FA5, FA6, FA7,
	FT8, FT9, FT10, FT11,
}
var FloatCalleeSaved = []Reg{FS0, FS1, FS2, FS3, FS4, FS5, FS6, FS7, FS8, FS9, FS10, FS11}

// vregAllocator mints fresh virtual registers during instruction
// selection, one counter per class.
type vregAllocator struct {
	next [2]int
}

func (v *vregAllocator) New(class RegClass) Reg {
	id := firstVirtual + v.next[class]
	v.next[class]++
	return Reg{id: id, Class: class}
}
