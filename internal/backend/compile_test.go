package backend

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/config"
	"github.com/sysyrv/sysyrv/internal/mir"
	"github.com/sysyrv/sysyrv/internal/types"
)

func testConfig() config.Config { return config.Default() }

func configWithWorkers(n int) config.Config {
	cfg := config.Default()
	cfg.NumParallelForFuncGenAsm = n
	cfg.NumParallelForBlockGenAsm = n
	cfg.NumParallelForGlobalGenAsm = n
	return cfg
}

// buildAdd builds `int add(int a, int b) { return a + b; }` directly
// against the mir.Builder, the way cmd/bin2ll's translateFunc builds
// one instruction at a time off an *ir.Function.
func buildAdd(b *mir.Builder) *mir.Function {
	fn := b.NewFunction("add", types.Int)
	a := b.AddParam(fn, "a", types.Int)
	bp := b.AddParam(fn, "b", types.Int)
	entry := b.NewBasicBlock(fn, "entry")
	sum := entry.NewAdd(a, bp)
	entry.NewRet(sum)
	return fn
}

// buildAbs builds `int abs(int x) { if (x < 0) return -x; return x; }`
// exercising a conditional branch, a phi-free two-block diamond via
// early return, and ICmp lowering.
func buildAbs(b *mir.Builder) *mir.Function {
	fn := b.NewFunction("abs", types.Int)
	x := b.AddParam(fn, "x", types.Int)
	entry := b.NewBasicBlock(fn, "entry")
	neg := b.NewBasicBlock(fn, "neg")
	pos := b.NewBasicBlock(fn, "pos")

	zero := mir.ConstInt(0)
	cmp := entry.NewICmp(mir.ICmpSLT, x, zero)
	entry.NewCondBr(cmp, neg, pos)

	negated := neg.NewSub(zero, x)
	neg.NewRet(negated)

	pos.NewRet(x)

	return fn
}

func compileOne(t *testing.T, build func(*mir.Builder) *mir.Function) (*Function, *Module) {
	t.Helper()
	b := mir.NewBuilder()
	build(b)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	bm, err := Compile(b.Module, log)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(bm.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(bm.Functions))
	}
	return bm.Functions[0], bm
}

func TestCompileSimpleAddFunction(t *testing.T) {
	fn, _ := compileOne(t, buildAdd)
	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("tight terminator check failed: %v", err)
	}
	if fn.Frame == nil {
		t.Fatal("expected a frame to have been built")
	}
}

func TestCompileBranchingFunction(t *testing.T) {
	fn, _ := compileOne(t, buildAbs)
	if err := CheckTightTerminators(fn); err != nil {
		t.Fatalf("tight terminator check failed: %v", err)
	}
	if len(fn.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(fn.Blocks))
	}
}

func TestEmitProducesWellFormedAssembly(t *testing.T) {
	_, bm := compileOne(t, buildAdd)
	asm := Emit(bm, testConfig())
	if !strings.Contains(asm, ".globl\tadd") {
		t.Fatalf("missing function symbol in emitted asm:\n%s", asm)
	}
	if !strings.Contains(asm, "ret") {
		t.Fatalf("missing ret in emitted asm:\n%s", asm)
	}
	if !strings.Contains(asm, ".attribute arch") {
		t.Fatalf("missing arch attribute header:\n%s", asm)
	}
}

func TestEmitIsDeterministicAcrossParallelWorkerCounts(t *testing.T) {
	_, bm := compileOne(t, buildAbs)
	sequential := Emit(bm, configWithWorkers(1))
	parallelAsm := Emit(bm, configWithWorkers(8))
	if sequential != parallelAsm {
		t.Fatalf("emission differs between sequential and parallel rendering:\nsequential:\n%s\nparallel:\n%s", sequential, parallelAsm)
	}
}
