package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
	"github.com/charmbracelet/log"
)

// LineSearchFunc searches along dir from pos. f0 is the objective at pos,
// or NaN when unknown, and step0 the trial step. It returns the accepted
// step, the number of objective evaluations spent and the objective at the
// accepted step. pos must not be modified.
type LineSearchFunc[T tensor.Float] func(pos, dir, grad []T, f0, step0 T) (step T, evals int, f T, err error)

// ConjugateGradientConfig holds configuration for the conjugate gradient
// optimizer.
type ConjugateGradientConfig[T tensor.Float] struct {
	LineSearch LineSearchFunc[T] // Optional; without it the step is the learning rate
	Sync       Synchronizer      // Optional fence invoked at the end of each step
	Logger     *log.Logger       // Optional, logs line search diagnostics at debug level
	Hook       StepHook          // Optional
}

// ConjugateGradient implements Polak–Ribière nonlinear conjugate gradient.
//
// The gradient at the current iterate is read from each parameter's Grad,
// which the caller sets before Step. Update rule:
//
//	β_k = g_kᵀ(g_k − g_{k−1}) / ‖g_{k−1}‖₂²   (β_0 = 0)
//	d_k = β_k·d_{k−1} − g_k
//	x  ← x + α_k·d_k
//
// α_k is the learning rate, or with a line search the step it accepts
// starting from lr/‖d_k‖₂. The first step is steepest descent.
type ConjugateGradient[T tensor.Float] struct {
	params []*Parameter[T]
	lr     T
	cfg    ConjugateGradientConfig[T]
	states []*cgState[T]
	stats  Stats
}

type cgState[T tensor.Float] struct {
	gPrev []T // g_{k−1}
	dPrev []T // d_{k−1}
	d     []T
	ready bool
}

// NewConjugateGradient creates a conjugate gradient optimizer.
//
// Exactly one parameter group is supported and its learning rate must be
// non-negative.
func NewConjugateGradient[T tensor.Float](groups []ParamGroup[T], cfg ConjugateGradientConfig[T]) (*ConjugateGradient[T], error) {
	if err := validateGroups("optim.NewConjugateGradient", groups); err != nil {
		return nil, err
	}
	params := groups[0].Params
	states := make([]*cgState[T], len(params))
	for i, p := range params {
		n := p.Len()
		states[i] = &cgState[T]{
			gPrev: make([]T, n),
			dPrev: make([]T, n),
			d:     make([]T, n),
		}
	}
	return &ConjugateGradient[T]{
		params: params,
		lr:     groups[0].LR,
		cfg:    cfg,
		states: states,
		stats:  Stats{Objective: math.NaN()},
	}, nil
}

// Name returns "conjugate-gradient".
func (o *ConjugateGradient[T]) Name() string { return "conjugate-gradient" }

// LR returns the learning rate.
func (o *ConjugateGradient[T]) LR() T { return o.lr }

// Stats returns diagnostics of the last completed step.
func (o *ConjugateGradient[T]) Stats() Stats { return o.stats }

// Direction returns the last search direction of parameter i.
func (o *ConjugateGradient[T]) Direction(i int) []T { return o.states[i].dPrev }

// beta returns the Polak–Ribière coefficient g·(g − gPrev) / ‖gPrev‖².
func beta[T tensor.Float](g, gPrev []T) (T, error) {
	var num, den float64
	for j := range g {
		gp := float64(gPrev[j])
		num += float64(g[j]) * (float64(g[j]) - gp)
		den += gp * gp
	}
	if den == 0 {
		return 0, placeerr.NewNumericalError("optim.ConjugateGradient", "beta", num,
			"previous gradient is zero")
	}
	b := T(num / den)
	if !tensor.IsFinite(b) {
		return 0, placeerr.NewNumericalError("optim.ConjugateGradient", "beta", float64(b), "non-finite beta")
	}
	return b, nil
}

// Step performs one conjugate gradient iteration on every parameter with a
// gradient. Every gradient, β and step size is checked before any parameter
// moves, so a failed step changes nothing.
func (o *ConjugateGradient[T]) Step() error {
	iter := o.stats.Iteration
	stats := o.stats
	stats.Skipped = 0

	type update struct {
		p     *Parameter[T]
		st    *cgState[T]
		g     []T
		alpha T
		beta  T
		f     float64
	}
	updates := make([]update, 0, len(o.params))

	for i, p := range o.params {
		g := p.Grad()
		if g == nil {
			stats.Skipped++
			continue
		}
		if len(g) != p.Len() {
			return placeerr.Configf("optim.ConjugateGradient", "Grad", "parameter %s: gradient length %d, want %d",
				p.Name(), len(g), p.Len())
		}
		if j := tensor.FirstNonFinite(g); j >= 0 {
			ne := placeerr.NewNumericalError("optim.ConjugateGradient", "gradient", float64(g[j]), "non-finite gradient")
			ne.Object = j
			return stepError(ne, iter, "")
		}
		st := o.states[i]

		var b T
		if st.ready {
			var err error
			if b, err = beta(g, st.gPrev); err != nil {
				return stepError(err, iter, "")
			}
		}
		for j := range g {
			st.d[j] = b*st.dPrev[j] - g[j]
		}

		alpha := o.lr
		objective := math.NaN()
		if o.cfg.LineSearch != nil {
			alpha = 0
			if norm := tensor.Norm2(st.d); norm > 0 {
				step, evals, f, err := o.cfg.LineSearch(p.Data(), st.d, g, T(math.NaN()), o.lr/norm)
				if err != nil {
					return stepError(err, iter, "optim: conjugate gradient line search")
				}
				alpha = step
				objective = float64(f)
				stats.Evaluations += evals
				if o.cfg.Logger != nil {
					o.cfg.Logger.Debug("line search",
						"alpha", float64(alpha),
						"evaluations", evals,
						"objective", objective,
						"total_evaluations", stats.Evaluations)
				}
			}
		}
		if !tensor.IsFinite(alpha) || alpha < 0 {
			return stepError(placeerr.NewNumericalError("optim.ConjugateGradient", "step size", float64(alpha),
				"invalid step"), iter, "")
		}
		updates = append(updates, update{p: p, st: st, g: g, alpha: alpha, beta: b, f: objective})
	}

	for _, u := range updates {
		tensor.Axpy(u.alpha, u.st.d, u.p.Data())
		copy(u.st.gPrev, u.g)
		copy(u.st.dPrev, u.st.d)
		u.st.ready = true

		stats.StepSize = float64(u.alpha)
		stats.Beta = float64(u.beta)
		stats.Objective = u.f
	}

	if o.cfg.Sync != nil {
		if err := o.cfg.Sync.Synchronize(); err != nil {
			return stepError(err, iter, "optim: conjugate gradient synchronize")
		}
	}
	stats.Iteration = iter + 1
	o.stats = stats
	if o.cfg.Hook != nil {
		o.cfg.Hook.OnStep(o.Name(), stats)
	}
	return nil
}

// StateDict exports the previous gradient and direction of each parameter.
func (o *ConjugateGradient[T]) StateDict() map[string][]T {
	state := make(map[string][]T)
	for i, st := range o.states {
		if !st.ready {
			continue
		}
		state[fmt.Sprintf("g_k_1.%d", i)] = tensor.Clone(st.gPrev)
		state[fmt.Sprintf("d_k_1.%d", i)] = tensor.Clone(st.dPrev)
	}
	return state
}

// LoadStateDict restores state exported by StateDict. Parameters without
// saved state restart with a steepest descent step.
func (o *ConjugateGradient[T]) LoadStateDict(state map[string][]T) error {
	for i, st := range o.states {
		g, okG := state[fmt.Sprintf("g_k_1.%d", i)]
		d, okD := state[fmt.Sprintf("d_k_1.%d", i)]
		if !okG || !okD {
			st.ready = false
			continue
		}
		if len(g) != len(st.gPrev) || len(d) != len(st.dPrev) {
			return placeerr.Configf("optim.ConjugateGradient", "state", "parameter %d: lengths %d/%d, want %d",
				i, len(g), len(d), len(st.gPrev))
		}
		copy(st.gPrev, g)
		copy(st.dPrev, d)
		st.ready = true
	}
	return nil
}

// RestoreStats sets the counters reported by Stats, for resuming a run.
func (o *ConjugateGradient[T]) RestoreStats(s Stats) {
	o.stats = s
}
