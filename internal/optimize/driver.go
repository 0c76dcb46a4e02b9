package optimize

import (
	"github.com/sirupsen/logrus"

	"github.com/sysyrv/sysyrv/internal/analysis"
	"github.com/sysyrv/sysyrv/internal/mir"
)

// Driver runs the fixed-point pipeline of over every
// function in a module: mem2reg once, then loop {func_inline,
// eval_and_prune, redundance_elim, loop_pipeline, block_fuse} until no
// pass in a full sweep reports change, then a final sink_code pass.
type Driver struct {
	Module *mir.Module
	Log *logrus.Logger

	// Verify, when true, runs mir.Verify(fn) after every pass and
	// aborts with its error — "passes MUST abort rather
	// than leave the IR inconsistent on failure."
	Verify bool
}

// Optimize runs the complete pipeline, mutating Module in place.
func (d *Driver) Optimize() error {
	for _, fn := range d.Module.Functions {
		if fn.IsDeclaration() {
			continue
		}
		if _, err := d.runPass(Mem2Reg{}, fn); err != nil {
			return err
		}
	}

	for {
		sweepChanged := false
		funcEffects := analysis.FunctionEffects(d.Module)
		evalAndPrune := []Pass{InstCombine{}, NewLoadStoreElim(funcEffects), DeadCodeElim{}}
		loopPipeline := []Pass{LoopSimplify{}, NewLICM(funcEffects), NewLDCE(funcEffects)}
		inliner := &FuncInline{Module: d.Module}

		for _, fn := range d.Module.Functions {
			if fn.IsDeclaration() {
				continue
			}
			changed, err := d.runPass(inliner, fn)
			if err != nil {
				return err
			}
			sweepChanged = sweepChanged || changed

			if c, err := d.runToFixedPoint(evalAndPrune, fn); err != nil {
				return err
			} else {
				sweepChanged = sweepChanged || c
			}

			changed, err = d.runPass(RedundanceElim{}, fn)
			if err != nil {
				return err
			}
			sweepChanged = sweepChanged || changed

			if c, err := d.runLoopToFixedPoint(loopPipeline, fn); err != nil {
				return err
			} else {
				sweepChanged = sweepChanged || c
			}

			changed, err = d.runPass(BlockFuse{}, fn)
			if err != nil {
				return err
			}
			sweepChanged = sweepChanged || changed
		}

		if !sweepChanged {
			break
		}
	}

	for _, fn := range d.Module.Functions {
		if fn.IsDeclaration() {
			continue
		}
		if _, err := d.runPass(SinkCode{}, fn); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) runPass(p Pass, fn *mir.Function) (bool, error) {
	changed, err := RunAndLog(p, fn, d.Log)
	if err != nil {
		return changed, err
	}
	if d.Verify {
		if verr := mir.Verify(fn); verr != nil {
			return changed, verr
		}
	}
	return changed, nil
}

// runToFixedPoint is eval_and_prune: run the given
// passes in order, repeating the whole group until none of them
// reports a change.
func (d *Driver) runToFixedPoint(passes []Pass, fn *mir.Function) (bool, error) {
	any := false
	for {
		roundChanged := false
		for _, p := range passes {
			changed, err := d.runPass(p, fn)
			if err != nil {
				return any, err
			}
			roundChanged = roundChanged || changed
		}
		any = any || roundChanged
		if !roundChanged {
			return any, nil
		}
	}
}

// runLoopToFixedPoint runs the loop pipeline (loop_simplify, licm,
// ldce) to a fixed point per function, matching load_store_elim's
// "run to a fixed point" treatment for the loop-scoped passes.
func (d *Driver) runLoopToFixedPoint(passes []Pass, fn *mir.Function) (bool, error) {
	return d.runToFixedPoint(passes, fn)
}
