package optim

import (
	"math"

	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Default line search parameters.
const (
	DefaultArmijo   = 1e-4
	DefaultShrink   = 0.5
	DefaultMaxEvals = 20
)

// BacktrackingLineSearch finds a step λ along a descent direction d
// satisfying the sufficient decrease condition
//
//	f(x + λd) ≤ f(x) + c₁·λ·gᵀd
//
// by shrinking the trial step geometrically.
type BacktrackingLineSearch[T tensor.Float] struct {
	Objective ObjectiveFunc[T] // Required
	Armijo    T                // c₁ (default: 1e-4)
	Shrink    T                // Step reduction factor in (0, 1) (default: 0.5)
	MaxEvals  int              // Evaluation budget per search (default: 20)

	trial []T
}

// Search implements LineSearchFunc. When dir is not a descent direction, or
// no step within the budget decreases the objective enough, it returns a zero
// step and f0.
func (ls *BacktrackingLineSearch[T]) Search(pos, dir, grad []T, f0, step0 T) (T, int, T, error) {
	c1, shrink, maxEvals := ls.Armijo, ls.Shrink, ls.MaxEvals
	if c1 == 0 {
		c1 = DefaultArmijo
	}
	if shrink == 0 {
		shrink = DefaultShrink
	}
	if maxEvals == 0 {
		maxEvals = DefaultMaxEvals
	}
	if !(shrink > 0 && shrink < 1) {
		return 0, 0, f0, placeerr.Configf("optim.BacktrackingLineSearch", "Shrink", "must be in (0, 1), got %g", float64(shrink))
	}

	evals := 0
	if math.IsNaN(float64(f0)) {
		f, _, err := ls.Objective(pos)
		if err != nil {
			return 0, evals, f0, err
		}
		f0 = f
		evals++
	}
	slope := tensor.Dot(grad, dir)
	if !tensor.IsFinite(slope) {
		return 0, evals, f0, placeerr.NewNumericalError("optim.BacktrackingLineSearch", "directional derivative",
			float64(slope), "non-finite directional derivative")
	}
	if slope >= 0 {
		// Not a descent direction. A zero step leaves g unchanged, so the
		// next conjugate gradient step restarts along −g.
		return 0, evals, f0, nil
	}

	if len(ls.trial) != len(pos) {
		ls.trial = make([]T, len(pos))
	}
	step := step0
	for evals < maxEvals {
		for j := range pos {
			ls.trial[j] = pos[j] + step*dir[j]
		}
		f, _, err := ls.Objective(ls.trial)
		if err != nil {
			return 0, evals, f0, err
		}
		evals++
		if f <= f0+c1*step*slope {
			return step, evals, f, nil
		}
		step *= shrink
	}
	return 0, evals, f0, nil
}
