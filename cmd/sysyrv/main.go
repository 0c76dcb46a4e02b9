// Command sysyrv compiles a single source file to RISC-V64 assembly.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sysyrv/sysyrv/internal/config"
	"github.com/sysyrv/sysyrv/internal/driver"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("sysyrv", flag.ContinueOnError)
	emitAsm := fs.Bool("S", false, "emit assembly (default if no other mode is given)")
	outPath := fs.String("o", "a.s", "output path")
	optimize := fs.Bool("O", false, "enable optimizations")
	mirPath := fs.String("l", "", "also write the textual middle IR to this path")
	verbose := fs.Bool("v", false, "with -l, append a struct dump of the physicalized backend module")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	_ = emitAsm // -S is the only mode this build implements; accepted for interface completeness

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sysyrv [-S] [-o file] [-O] [-l file] [-v] <src>")
		return 2
	}

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	d := driver.New(cfg)
	opts := driver.Options{
		SrcPath:  fs.Arg(0),
		OutPath:  *outPath,
		MIRPath:  *mirPath,
		Optimize: *optimize,
		Verbose:  *verbose,
	}
	if err := d.Compile(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
