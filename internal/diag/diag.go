// Package diag implements the compiler's error taxonomy.
//
// Every fallible operation in sysyrv returns a plain error, and every
// internally-raised error is a *diag.Error so the driver can report a
// human-readable diagnostic and exit non-zero without ever swallowing
// the cause.
package diag

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Kind names one of the compiler's error categories. The names are
// conceptual, not Go identifiers a user would ever see quoted back to
// them in that exact casing except inside a diagnostic line.
type Kind string

const (
	FrontendParse Kind = "frontend-parse-error"
	FrontendSemantic Kind = "frontend-semantic-error"
	MiddleGen Kind = "middle-gen-error"
	MiddleOptimize Kind = "middle-optimize-error"
	BackendGen Kind = "backend-gen-error"
	BackendOptimize Kind = "backend-optimize-error"
	BackendInconsist Kind = "backend-inconsistency"
	IO Kind = "io-error"
)

// Location pinpoints the reporting site of an internal error. For
// frontend errors it is a source position; for internal errors it is
// the Go source site that detected the inconsistency, plus, where
// known, the MIR entity id involved.
type Location struct {
	File string
	Line int
	Column int
	Detail string // e.g. "inst #42 in block %bb3"
}

func (l Location) String() string {
	if l.File == "" && l.Line == 0 && l.Detail == "" {
		return ""
	}
	if l.File != "" {
		if l.Line > 0 {
			return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
		}
		return l.File
	}
	return l.Detail
}

// Error is the concrete error type raised by every sysyrv package.
type Error struct {
	Kind Kind
	Message string
	Location Location
	cause error
}

func (e *Error) Error() string {
	loc := e.Location.String()
	if loc != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, loc)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.As/errors.Is keep working
// through a *diag.Error the same way they do through a pkg/errors
// stack-annotated error.
func (e *Error) Unwrap() error { return e.cause }

// New creates a *diag.Error of the given kind, stack-annotated via
// pkg/errors so the reporting site is recoverable in debug output.
func New(kind Kind, format string, args ...interface{}) error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	return errors.WithStack(e)
}

// At is like New but attaches a source/IR location.
func At(kind Kind, loc Location, format string, args ...interface{}) error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Location: loc}
	return errors.WithStack(e)
}

// Wrap attaches kind/message context to an existing error without
// discarding it, mirroring errors.Wrap's stack-trace behavior.
func Wrap(cause error, kind Kind, format string, args ...interface{}) error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
	return errors.WithStack(e)
}

// debugPanic controls whether Internal reports as an error (release
// behavior) or panics to preserve a live stack for debugging.
var debugPanic = os.Getenv("SYSYRV_DEBUG_PANIC") == "1"

// Internal raises a middle-optimize-error or backend-inconsistency
// class error for a violated compiler invariant. In debug builds
// (SYSYRV_DEBUG_PANIC=1) it panics instead of returning, so a
// developer gets a full goroutine stack at the point of failure.
func Internal(kind Kind, loc Location, format string, args ...interface{}) error {
	err := At(kind, loc, format, args...)
	if debugPanic {
		panic(err)
	}
	return err
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *diag.Error, else reports false.
func KindOf(err error) (Kind, bool) {
	var d *Error
	if errors.As(err, &d) {
		return d.Kind, true
	}
	return "", false
}
