package backend

import (
	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/mir"
)

// Compile runs the full physicalization pipeline over a lowered
// module: register allocation, stack-frame layout, long-jump fixup,
// and a final tight-terminator check, in the order each pass's
// preconditions require (RegAlloc before BuildFrame so spill slots
// exist to lay out; BuildFrame before FixLongJumps so prologue/epilogue
// instructions are already in place and counted; the terminator check
// last, right before emission, so it catches any pass's lowering bug).
// SimplifyTerm/DesimplifyTerm are not part of this pipeline: isel
// already emits every block in tight form, so there is nothing to
// round-trip yet.
func Compile(m *mir.Module, log *logrus.Logger) (*Module, error) {
	bm, err := Lower(m, log)
	if err != nil {
		return nil, err
	}
	for _, fn := range bm.Functions {
		RegAlloc(fn)
		BuildFrame(fn)
		FixLongJumps(fn)
		if err := CheckTightTerminators(fn); err != nil {
			log.WithFields(logrus.Fields{"func": fn.Name, "err": err}).Error("terminator check failed")
			return nil, err
		}
		log.WithFields(logrus.Fields{"func": fn.Name, "frame": fn.Frame.Size}).Debug("compiled function")
	}
	return bm, nil
}
