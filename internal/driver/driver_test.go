package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sysyrv/sysyrv/internal/config"
	"github.com/sysyrv/sysyrv/internal/mir"
	"github.com/sysyrv/sysyrv/internal/types"
)

// fakeFrontend stands in for a real lexer/parser/semantic-checker in
// these tests: it ignores its input text entirely and always returns
// the same hand-built `int add(int a, int b) { return a+b; }` module,
// letting the driver's wiring be exercised without a real frontend.
type fakeFrontend struct{ err error }

func (f fakeFrontend) Parse(path string, src []byte) (*mir.Module, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := mir.NewBuilder()
	fn := b.NewFunction("add", types.Int)
	a := b.AddParam(fn, "a", types.Int)
	bParam := b.AddParam(fn, "b", types.Int)
	entry := b.NewBasicBlock(fn, "entry")
	sum := entry.NewAdd(a, bParam)
	entry.NewRet(sum)
	return b.Module, nil
}

func TestCompileWritesAssemblyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.sy")
	if err := os.WriteFile(src, []byte("int add(int a, int b){return a+b;}"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.s")

	d := New(config.Default())
	d.Frontend = fakeFrontend{}

	if err := d.Compile(Options{SrcPath: src, OutPath: out}); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	asm, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(asm), ".globl\tadd") {
		t.Fatalf("output missing function symbol:\n%s", asm)
	}
}

func TestCompileWritesMIRDumpWhenRequested(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.sy")
	os.WriteFile(src, []byte("ignored"), 0o644)
	out := filepath.Join(dir, "out.s")
	mirPath := filepath.Join(dir, "out.mir")

	d := New(config.Default())
	d.Frontend = fakeFrontend{}

	if err := d.Compile(Options{SrcPath: src, OutPath: out, MIRPath: mirPath, Optimize: true}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, err := os.Stat(mirPath); err != nil {
		t.Fatalf("expected MIR dump at %s: %v", mirPath, err)
	}
}

func TestCompileAppendsVerboseBackendDumpToMIRFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.sy")
	os.WriteFile(src, []byte("ignored"), 0o644)
	out := filepath.Join(dir, "out.s")
	mirPath := filepath.Join(dir, "out.mir")

	d := New(config.Default())
	d.Frontend = fakeFrontend{}

	if err := d.Compile(Options{SrcPath: src, OutPath: out, MIRPath: mirPath, Verbose: true}); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	dump, err := os.ReadFile(mirPath)
	if err != nil {
		t.Fatalf("reading MIR dump: %v", err)
	}
	if !strings.Contains(string(dump), "define i32 @add") {
		t.Fatalf("expected the plain MIR text still present:\n%s", dump)
	}
	if !strings.Contains(string(dump), "physicalized backend module") {
		t.Fatalf("expected a struct dump section appended for -v:\n%s", dump)
	}
}

func TestCompilePropagatesFrontendError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.sy")
	os.WriteFile(src, []byte("???"), 0o644)

	d := New(config.Default())
	d.Frontend = fakeFrontend{err: errBoom}

	err := d.Compile(Options{SrcPath: src, OutPath: filepath.Join(dir, "out.s")})
	if err != errBoom {
		t.Fatalf("got %v, want errBoom", err)
	}
}

func TestCompileFailsOnMissingSource(t *testing.T) {
	d := New(config.Default())
	err := d.Compile(Options{SrcPath: "/nonexistent/path.sy", OutPath: "/tmp/out.s"})
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}

var errBoom = parseError{}

type parseError struct{}

func (parseError) Error() string { return "boom" }
