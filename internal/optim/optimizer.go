// Package optim implements the first-order optimizers that drive placement.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - Nesterov: accelerated projected gradient with Barzilai–Borwein step
//     size estimation and bounded backtracking
//   - ConjugateGradient: Polak–Ribière nonlinear conjugate gradient with an
//     optional line search
//   - BacktrackingLineSearch: Armijo line search usable by ConjugateGradient
//
// Optimizers own all step-size and momentum state. Per-parameter state is
// allocated once at construction and populated by an explicit bootstrap on
// the first Step.
//
// Example usage:
//
//	pos := optim.NewParameter("pos", design.Init)
//	opt, err := optim.NewNesterov([]optim.ParamGroup[float32]{
//	    {Params: []*optim.Parameter[float32]{pos}, LR: 0.1},
//	}, optim.NesterovConfig[float32]{
//	    Objective:  evaluator.Evaluate,
//	    Constraint: projector.Project,
//	    Sync:       backend,
//	})
//
//	for range iterations {
//	    if err := opt.Step(); err != nil {
//	        return err
//	    }
//	    fmt.Println(opt.Stats().Objective)
//	}
package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update parameter data in place to minimize an objective.
type Optimizer[T tensor.Float] interface {
	// Name returns the algorithm name.
	Name() string

	// Step performs one iteration. A failed step leaves parameter data and
	// committed optimizer state unchanged.
	Step() error

	// Stats returns diagnostics of the last completed step. The values are
	// safe to read after Step returns; Step fences asynchronous work first.
	Stats() Stats

	// LR returns the learning rate.
	LR() T

	// StateDict exports the optimizer state for checkpointing.
	StateDict() map[string][]T

	// LoadStateDict restores state exported by StateDict.
	LoadStateDict(state map[string][]T) error

	// RestoreStats sets the counters reported by Stats when resuming a run.
	RestoreStats(s Stats)
}

// ObjectiveFunc evaluates the objective at pos, returning its value and a
// gradient of the same length as pos.
type ObjectiveFunc[T tensor.Float] func(pos []T) (T, []T, error)

// ConstraintFunc projects pos onto the feasible set in place.
type ConstraintFunc[T tensor.Float] func(pos []T) error

// Synchronizer is the completion fence of the device executing objective
// and constraint kernels.
type Synchronizer interface {
	Synchronize() error
}

// StepHook observes completed steps.
type StepHook interface {
	OnStep(optimizer string, stats Stats)
}

// Stats is a diagnostic snapshot of an optimizer.
type Stats struct {
	Iteration   int     // Completed steps
	Evaluations int     // Cumulative objective evaluations
	Backtracks  int     // Refinement passes in the last step
	Skipped     int     // Parameters skipped in the last step for lack of a gradient
	StepSize    float64 // Step size after the last step
	Momentum    float64 // Momentum coefficient (Nesterov)
	Beta        float64 // Conjugate direction coefficient (conjugate gradient)
	Objective   float64 // Objective at the committed iterate, NaN if unknown
}

// validateGroups enforces the construction contract shared by all
// optimizers: exactly one group with a non-negative learning rate.
func validateGroups[T tensor.Float](op string, groups []ParamGroup[T]) error {
	if len(groups) != 1 {
		return placeerr.Configf(op, "groups", "exactly one parameter group is supported, got %d", len(groups))
	}
	lr := groups[0].LR
	if math.IsNaN(float64(lr)) || lr < 0 {
		return placeerr.Configf(op, "LR", "invalid learning rate: %g", float64(lr))
	}
	for i, p := range groups[0].Params {
		if p == nil {
			return placeerr.Configf(op, "Params", "parameter %d is nil", i)
		}
	}
	return nil
}

// stepError attaches the iteration index to a numerical error raised during
// a step, then prefixes it when prefix is non-empty. The
// index is stamped first so that it shows up in the wrapped message.
func stepError(err error, iteration int, prefix string) error {
	err = placeerr.AtIteration(err, iteration)
	if prefix == "" {
		return err
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
