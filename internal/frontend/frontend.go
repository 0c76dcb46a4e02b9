// Package frontend defines the seam between source text and the
// mid-level IR this compiler actually optimizes and codegens. Lexing,
// parsing, and semantic analysis of the source language are out of
// scope for this build: Parse below always fails with a
// diag.FrontendParse error, so every downstream stage — driver,
// optimize, backend, the cmd/sysyrv CLI — is wired and exercisable
// end to end against a hand-built mir.Module in tests, without this
// package's absence leaving a hole in the pipeline.
package frontend

import (
	"github.com/sysyrv/sysyrv/internal/diag"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// Frontend turns source text into a mir.Module. The only
// implementation shipped here, Unimplemented, always errors; a real
// lexer/parser/semantic-checker would satisfy this interface without
// requiring any change to internal/driver.
type Frontend interface {
	Parse(path string, src []byte) (*mir.Module, error)
}

// Unimplemented is the stub Frontend wired into the driver by default.
type Unimplemented struct{}

func (Unimplemented) Parse(path string, src []byte) (*mir.Module, error) {
	return nil, diag.At(diag.FrontendParse, diag.Location{File: path},
		"source-language parsing is not implemented in this build; supply a pre-built MIR module instead")
}
