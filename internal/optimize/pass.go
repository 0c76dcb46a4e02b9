// Package optimize implements the fixed-point middle-end pipeline:
// mem2reg, constant folding, inst-combine, redundancy elimination,
// load/store elimination, a per-loop pipeline, function inlining,
// block fusion, and dead-code elimination, composed by a driver that
// sweeps until nothing changes.
//
// Run returns an error so a pass can abort rather than leave the IR
// inconsistent on failure, and RunAndLog adds wall-time and
// textual-diff logging around every pass invocation.
package optimize

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/mir"
)

// Pass is one middle-end transformation over a single function.
type Pass interface {
	Name() string
	Run(fn *mir.Function) (changed bool, err error)
}

// RunAndLog runs p over fn, logging wall time and whether it changed
// anything at debug level and, when it changed fn and trace level is
// enabled, fn's textual MIR before and after.
func RunAndLog(p Pass, fn *mir.Function, log *logrus.Logger) (bool, error) {
	start := time.Now()
	before := mir.Print(wrapSingle(fn))
	changed, err := p.Run(fn)
	elapsed := time.Since(start)
	if err != nil {
		log.WithFields(logrus.Fields{"pass": p.Name(), "func": fn.Name, "err": err}).Error("pass failed")
		return changed, err
	}
	fields := logrus.Fields{"pass": p.Name(), "func": fn.Name, "changed": changed, "elapsed": elapsed}
	log.WithFields(fields).Debug("pass ran")
	if changed && log.IsLevelEnabled(logrus.TraceLevel) {
		after := mir.Print(wrapSingle(fn))
		log.WithFields(logrus.Fields{"pass": p.Name(), "func": fn.Name}).Tracef("before:\n%s\nafter:\n%s", before, after)
	}
	return changed, nil
}

func wrapSingle(fn *mir.Function) *mir.Module {
	return &mir.Module{Functions: []*mir.Function{fn}}
}
