package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
	"github.com/charmbracelet/log"
)

// Default Nesterov refinement settings.
const (
	DefaultMaxBacktracks = 10
	DefaultAcceptRatio   = 0.95
)

// NesterovConfig holds configuration for the Nesterov optimizer.
type NesterovConfig[T tensor.Float] struct {
	Objective     ObjectiveFunc[T]  // Required
	Constraint    ConstraintFunc[T] // Optional projection applied to every trial point
	Sync          Synchronizer      // Optional fence invoked once per step after refinement
	MaxBacktracks int               // Refinement passes per step (default: 10)
	AcceptRatio   T                 // Accept when α_trial > ratio·α (default: 0.95)
	Logger        *log.Logger       // Optional, logs each step at debug level
	Hook          StepHook          // Optional
}

// Nesterov implements Nesterov's accelerated projected gradient method with a
// secant (Barzilai–Borwein) step size estimate.
//
// Each step computes
//
//	a_{k+1} = (1 + √(1 + 4a_k²)) / 2,   coef = (a_k − 1) / a_{k+1}
//
// and then refines at most MaxBacktracks times:
//
//	u' = v_k − α·g_k
//	v' = P(u' + coef·(u' − u_k))
//	(f', g') = f(v')
//	α' = ‖v' − v_k‖₂ / ‖g' − g_k‖₂
//
// stopping when α' > AcceptRatio·α or the budget is exhausted. α is replaced
// by α' on every pass, whether or not the pass is accepted.
//
// The extrapolated point v_k is the parameter data itself.
type Nesterov[T tensor.Float] struct {
	params []*Parameter[T]
	lr     T
	cfg    NesterovConfig[T]
	states []*nesterovState[T]
	stats  Stats
}

// nesterovState is the per-parameter state, allocated at construction.
type nesterovState[T tensor.Float] struct {
	u      []T // u_k
	vPrev  []T // v_{k−1}
	g      []T // g_k
	gPrev  []T // g_{k−1}
	uTrial []T
	vTrial []T
	alpha  T
	a      T
	ready  bool
}

// NewNesterov creates a Nesterov optimizer.
//
// Exactly one parameter group is supported and its learning rate, used for
// the bootstrap lookahead, must be non-negative.
func NewNesterov[T tensor.Float](groups []ParamGroup[T], cfg NesterovConfig[T]) (*Nesterov[T], error) {
	const op = "optim.NewNesterov"
	if err := validateGroups(op, groups); err != nil {
		return nil, err
	}
	if cfg.Objective == nil {
		return nil, placeerr.Configf(op, "Objective", "objective function is required")
	}
	if cfg.MaxBacktracks == 0 {
		cfg.MaxBacktracks = DefaultMaxBacktracks
	}
	if cfg.MaxBacktracks < 0 {
		return nil, placeerr.Configf(op, "MaxBacktracks", "must be positive, got %d", cfg.MaxBacktracks)
	}
	if cfg.AcceptRatio == 0 {
		cfg.AcceptRatio = DefaultAcceptRatio
	}

	params := groups[0].Params
	states := make([]*nesterovState[T], len(params))
	for i, p := range params {
		n := p.Len()
		states[i] = &nesterovState[T]{
			u:      make([]T, n),
			vPrev:  make([]T, n),
			g:      make([]T, n),
			gPrev:  make([]T, n),
			uTrial: make([]T, n),
			vTrial: make([]T, n),
		}
	}
	return &Nesterov[T]{
		params: params,
		lr:     groups[0].LR,
		cfg:    cfg,
		states: states,
		stats:  Stats{Objective: math.NaN()},
	}, nil
}

// Name returns "nesterov".
func (o *Nesterov[T]) Name() string { return "nesterov" }

// LR returns the bootstrap learning rate.
func (o *Nesterov[T]) LR() T { return o.lr }

// Stats returns diagnostics of the last completed step.
func (o *Nesterov[T]) Stats() Stats { return o.stats }

// StepSize returns the current step size α of parameter i.
func (o *Nesterov[T]) StepSize(i int) T { return o.states[i].alpha }

// Momentum returns the current momentum coefficient a of parameter i.
func (o *Nesterov[T]) Momentum(i int) T { return o.states[i].a }

// evaluate calls the objective and validates the gradient length.
func (o *Nesterov[T]) evaluate(pos []T) (T, []T, error) {
	f, g, err := o.cfg.Objective(pos)
	if err != nil {
		return 0, nil, err
	}
	if len(g) != len(pos) {
		return 0, nil, placeerr.Configf("optim.Nesterov", "Objective", "gradient length %d, want %d", len(g), len(pos))
	}
	return f, g, nil
}

// secant returns ‖Δv‖₂ / ‖Δg‖₂, failing on a zero or non-finite estimate.
func secant[T tensor.Float](v, vPrev, g, gPrev []T) (T, error) {
	num := tensor.Dist2(v, vPrev)
	den := tensor.Dist2(g, gPrev)
	if den == 0 {
		return 0, placeerr.NewNumericalError("optim.Nesterov", "step size", float64(num),
			"zero gradient displacement in the secant estimate")
	}
	alpha := num / den
	if !tensor.IsFinite(alpha) {
		return 0, placeerr.NewNumericalError("optim.Nesterov", "step size", float64(alpha), "non-finite secant estimate")
	}
	return alpha, nil
}

// bootstrap populates the state of p: u_0 = v_0 = p, g_0 = ∇f(v_0), a lookahead
// point v_0 − lr·g_0 for the initial secant step size, and a_0 = 1.
func (o *Nesterov[T]) bootstrap(p *Parameter[T], st *nesterovState[T]) error {
	v := p.Data()
	_, g0, err := o.evaluate(v)
	if err != nil {
		return err
	}
	look := st.vTrial
	for j := range v {
		look[j] = v[j] - o.lr*g0[j]
	}
	_, g1, err := o.evaluate(look)
	if err != nil {
		return err
	}
	alpha, err := secant(v, look, g0, g1)
	if err != nil {
		return err
	}
	if !(alpha > 0) {
		return placeerr.NewNumericalError("optim.Nesterov", "step size", float64(alpha), "initial step size is not positive")
	}
	copy(st.u, v)
	copy(st.g, g0)
	copy(st.vPrev, look)
	copy(st.gPrev, g1)
	st.alpha = alpha
	st.a = 1
	st.ready = true
	return nil
}

// Step performs one accelerated gradient iteration on every parameter with a
// gradient. On success each parameter's gradient holds g at the new iterate.
// Trial points are staged per parameter and committed together once every
// parameter has refined, so a failed step changes nothing.
func (o *Nesterov[T]) Step() error {
	iter := o.stats.Iteration
	stats := o.stats
	stats.Backtracks, stats.Skipped = 0, 0

	type update struct {
		p      *Parameter[T]
		st     *nesterovState[T]
		alpha  T
		aNext  T
		f      T
		g      []T
		passes int
	}
	updates := make([]update, 0, len(o.params))

	for i, p := range o.params {
		if p.Grad() == nil {
			stats.Skipped++
			continue
		}
		st := o.states[i]
		if !st.ready {
			if err := o.bootstrap(p, st); err != nil {
				return stepError(err, iter, "optim: nesterov bootstrap "+p.Name())
			}
		}

		v := p.Data()
		aNext := (1 + T(math.Sqrt(float64(1+4*st.a*st.a)))) / 2
		coef := (st.a - 1) / aNext
		alpha := st.alpha

		var (
			fTrial T
			gTrial []T
			passes int
		)
		for {
			for j := range v {
				st.uTrial[j] = v[j] - alpha*st.g[j]
				st.vTrial[j] = st.uTrial[j] + coef*(st.uTrial[j]-st.u[j])
			}
			if o.cfg.Constraint != nil {
				if err := o.cfg.Constraint(st.vTrial); err != nil {
					return stepError(err, iter, "optim: nesterov constraint")
				}
			}
			f, g, err := o.evaluate(st.vTrial)
			if err != nil {
				return stepError(err, iter, "optim: nesterov objective")
			}
			passes++
			alphaTrial, err := secant(st.vTrial, v, g, st.g)
			if err != nil {
				return stepError(err, iter, "")
			}
			fTrial, gTrial = f, g

			accept := alphaTrial > o.cfg.AcceptRatio*alpha || passes >= o.cfg.MaxBacktracks
			alpha = alphaTrial
			if accept {
				break
			}
		}
		updates = append(updates, update{p: p, st: st, alpha: alpha, aNext: aNext, f: fTrial, g: gTrial, passes: passes})
	}

	if o.cfg.Sync != nil {
		if err := o.cfg.Sync.Synchronize(); err != nil {
			return stepError(err, iter, "optim: nesterov synchronize")
		}
	}
	for _, u := range updates {
		if !(u.alpha > 0) {
			return stepError(placeerr.NewNumericalError("optim.Nesterov", "step size", float64(u.alpha),
				"step size collapsed to zero"), iter, "")
		}
	}

	for _, u := range updates {
		st, v := u.st, u.p.Data()
		copy(st.vPrev, v)
		copy(st.gPrev, st.g)
		copy(st.u, st.uTrial)
		copy(v, st.vTrial)
		copy(st.g, u.g)
		st.a = u.aNext
		st.alpha = u.alpha
		u.p.SetGrad(tensor.Clone(st.g))

		stats.Evaluations += u.passes
		stats.Backtracks += u.passes
		stats.StepSize = float64(u.alpha)
		stats.Momentum = float64(u.aNext)
		stats.Objective = float64(u.f)
	}

	stats.Iteration = iter + 1
	o.stats = stats
	if o.cfg.Logger != nil {
		o.cfg.Logger.Debug("nesterov step",
			"iteration", stats.Iteration,
			"objective", stats.Objective,
			"alpha", stats.StepSize,
			"momentum", stats.Momentum,
			"passes", stats.Backtracks,
			"evaluations", stats.Evaluations)
	}
	if o.cfg.Hook != nil {
		o.cfg.Hook.OnStep(o.Name(), stats)
	}
	return nil
}

// StateDict exports per-parameter state under "<field>.<index>" keys, with
// scalars stored as one-element slices.
func (o *Nesterov[T]) StateDict() map[string][]T {
	state := make(map[string][]T)
	for i, st := range o.states {
		if !st.ready {
			continue
		}
		state[fmt.Sprintf("u_k.%d", i)] = tensor.Clone(st.u)
		state[fmt.Sprintf("v_k_1.%d", i)] = tensor.Clone(st.vPrev)
		state[fmt.Sprintf("g_k.%d", i)] = tensor.Clone(st.g)
		state[fmt.Sprintf("g_k_1.%d", i)] = tensor.Clone(st.gPrev)
		state[fmt.Sprintf("alpha_k.%d", i)] = []T{st.alpha}
		state[fmt.Sprintf("a_k.%d", i)] = []T{st.a}
	}
	return state
}

// LoadStateDict restores state exported by StateDict. Parameters without
// saved state are bootstrapped on their next step.
func (o *Nesterov[T]) LoadStateDict(state map[string][]T) error {
	for i, st := range o.states {
		if _, ok := state[fmt.Sprintf("u_k.%d", i)]; !ok {
			st.ready = false
			continue
		}
		arrays := map[string][]T{
			"u_k":   st.u,
			"v_k_1": st.vPrev,
			"g_k":   st.g,
			"g_k_1": st.gPrev,
		}
		for name, dst := range arrays {
			src := state[fmt.Sprintf("%s.%d", name, i)]
			if len(src) != len(dst) {
				return placeerr.Configf("optim.Nesterov", name, "parameter %d: length %d, want %d", i, len(src), len(dst))
			}
		}
		for name, dst := range arrays {
			copy(dst, state[fmt.Sprintf("%s.%d", name, i)])
		}
		alpha := state[fmt.Sprintf("alpha_k.%d", i)]
		a := state[fmt.Sprintf("a_k.%d", i)]
		if len(alpha) != 1 || len(a) != 1 || !(alpha[0] > 0) {
			return placeerr.Configf("optim.Nesterov", "alpha_k", "parameter %d: invalid scalar state", i)
		}
		st.alpha, st.a = alpha[0], a[0]
		st.ready = true
	}
	return nil
}

// RestoreStats sets the counters reported by Stats, for resuming a run.
func (o *Nesterov[T]) RestoreStats(s Stats) {
	o.stats = s
}
