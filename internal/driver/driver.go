// Package driver wires the pipeline end to end: a Frontend parses
// source text into MIR, internal/optimize runs the middle-end passes
// when requested, internal/backend lowers and physicalizes the
// result, and internal/backend.Emit renders the final assembly text.
// The middle-IR dump (-l) and assembly rendering are the pipeline's
// two points of externally visible output; everything in between is
// in-memory.
package driver

import (
	"os"

	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/backend"
	"github.com/sysyrv/sysyrv/internal/config"
	"github.com/sysyrv/sysyrv/internal/diag"
	"github.com/sysyrv/sysyrv/internal/frontend"
	"github.com/sysyrv/sysyrv/internal/mir"
	"github.com/sysyrv/sysyrv/internal/optimize"
)

// Options mirrors the CLI flags cmd/sysyrv parses: which source file
// to compile, whether to run the optimizer, and where to write the
// assembly and (optionally) the middle-IR dump.
type Options struct {
	SrcPath    string
	OutPath    string
	MIRPath    string // empty disables the -l dump
	Optimize   bool
	Verbose    bool // -v: append a struct dump of the physicalized backend module below the -l MIR text
	VerifyMIR  bool // run mir.Verify after every pass; wired from SYSYRV_DEBUG_PANIC-adjacent debug tooling, not a CLI flag
}

// Driver owns the Frontend, Config, and Log shared by every Compile
// call; cmd/sysyrv constructs one from flags and config.Load.
type Driver struct {
	Frontend frontend.Frontend
	Config   config.Config
	Log      *logrus.Logger
}

// New builds a Driver with the stub Frontend and a logrus logger
// whose level follows SYSYRV_LOG_LEVEL (info if unset or unparseable).
func New(cfg config.Config) *Driver {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	level := logrus.InfoLevel
	if v := os.Getenv("SYSYRV_LOG_LEVEL"); v != "" {
		if parsed, err := logrus.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
	return &Driver{Frontend: frontend.Unimplemented{}, Config: cfg, Log: log}
}

// Compile runs the full pipeline for opts, writing the assembly (and,
// if opts.MIRPath is set, the middle-IR text) to disk. It returns the
// first error from any stage without attempting partial output.
func (d *Driver) Compile(opts Options) error {
	src, err := os.ReadFile(opts.SrcPath)
	if err != nil {
		return diag.Wrap(err, diag.IO, "reading %s", opts.SrcPath)
	}

	mod, err := d.Frontend.Parse(opts.SrcPath, src)
	if err != nil {
		return err
	}

	if opts.Optimize {
		opt := &optimize.Driver{Module: mod, Log: d.Log, Verify: opts.VerifyMIR}
		if err := opt.Optimize(); err != nil {
			return err
		}
	}

	bm, err := backend.Compile(mod, d.Log)
	if err != nil {
		return err
	}

	if opts.MIRPath != "" {
		dump := mir.Print(mod)
		if opts.Verbose {
			dump += "\n; -- physicalized backend module --\n"
			for _, fn := range bm.Functions {
				dump += pretty.Sprintf("%# v\n", fn)
			}
		}
		if err := os.WriteFile(opts.MIRPath, []byte(dump), 0o644); err != nil {
			return diag.Wrap(err, diag.IO, "writing %s", opts.MIRPath)
		}
	}

	asm := backend.Emit(bm, d.Config)
	if err := os.WriteFile(opts.OutPath, []byte(asm), 0o644); err != nil {
		return diag.Wrap(err, diag.IO, "writing %s", opts.OutPath)
	}
	return nil
}
