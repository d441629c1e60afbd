// Package placer drives a global placement run: it assembles the backend,
// wirelength operator, boundary projector, objective and optimizer selected
// by config.Params and iterates the optimizer until the iteration budget is
// spent, the objective stops improving or the context is canceled.
//
// Cancellation is only observed between optimizer steps; a step in flight
// always runs to completion.
package placer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/backend/accel"
	"github.com/born-ml/gplace/internal/backend/cpu"
	"github.com/born-ml/gplace/internal/boundary"
	"github.com/born-ml/gplace/internal/checkpoint"
	"github.com/born-ml/gplace/internal/config"
	"github.com/born-ml/gplace/internal/metrics"
	"github.com/born-ml/gplace/internal/objective"
	"github.com/born-ml/gplace/internal/optim"
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
	"github.com/born-ml/gplace/internal/wirelength"
)

// Stop reasons reported in Result.Stopped.
const (
	StopIterations = "iterations"
	StopConverged  = "converged"
	StopCanceled   = "canceled"
)

// Problem is the design to place and its optional density term. Run
// rewrites the design's net mask according to Params.IgnoreNetDegree.
type Problem[T tensor.Float] struct {
	Design  *placedb.Design[T]
	Density objective.DensityFunc[T] // Optional; weighted by Params.DensityWeight
}

// Options carries the run's collaborators.
type Options struct {
	RunID   string            // Generated when empty
	Logger  *log.Logger       // Discarding logger when nil
	Metrics *metrics.Recorder // Optional
	Hooks   []optim.StepHook  // Extra step observers
}

// Result summarizes a run. Positions and HPWL are in design coordinates,
// i.e. with the scale factor undone.
type Result[T tensor.Float] struct {
	RunID       string
	Positions   []T
	Objective   float64
	InitialHPWL float64
	HPWL        float64
	Iterations  int
	Evaluations int
	Stopped     string
	Elapsed     time.Duration
}

// run holds the assembled components of one placement run.
type run[T tensor.Float] struct {
	params config.Params
	opts   Options
	logger *log.Logger
	scale  T

	be    backend.Backend[T]
	proj  *boundary.Projector[T]
	eval  *objective.Evaluator[T]
	opt   optim.Optimizer[T]
	param *optim.Parameter[T]
	pos   []T
	cg    bool
}

// Run places problem according to params. On a step failure the returned
// Result describes the last committed iterate alongside the error.
func Run[T tensor.Float](ctx context.Context, params config.Params, problem Problem[T], opts Options) (*Result[T], error) {
	start := time.Now()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if dt := tensor.DataTypeOf[T](); dt != params.DataTypeValue() {
		return nil, placeerr.Configf("placer.Run", "dtype", "params select %s, problem is %s", params.DType, dt)
	}
	if problem.Design == nil {
		return nil, placeerr.Configf("placer.Run", "Design", "design is required")
	}
	if err := checkExpRange(params, problem.Design.Layout.Region); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger = logger.With("run", opts.RunID)

	r, err := assemble(params, problem, opts, logger)
	if err != nil {
		return nil, err
	}
	defer r.be.Close() //nolint:errcheck // release only

	first, err := r.resume()
	if err != nil {
		return nil, err
	}

	res := &Result[T]{RunID: opts.RunID, Stopped: StopIterations, Iterations: first}
	initial, err := r.hpwl()
	if err != nil {
		return nil, err
	}
	res.InitialHPWL = initial
	res.HPWL = initial
	logger.Info("placement started",
		"backend", r.be.Name(),
		"optimizer", r.opt.Name(),
		"algorithm", params.Algorithm,
		"objects", problem.Design.Layout.NumObjects(),
		"nets", problem.Design.Nets.NumNets(),
		"hpwl", initial)

	loopErr := r.loop(ctx, first, res)
	canceled := errors.Is(loopErr, context.Canceled) || errors.Is(loopErr, context.DeadlineExceeded)
	if loopErr != nil && !canceled {
		r.observeFailure(loopErr)
	}

	if err := r.be.Synchronize(); err != nil && loopErr == nil {
		loopErr = err
	}
	if hpwl, err := r.hpwl(); err == nil {
		res.HPWL = hpwl
	} else if loopErr == nil {
		loopErr = err
	}
	if (loopErr == nil || canceled) && params.CheckpointPath != "" {
		if err := r.save(); err != nil && loopErr == nil {
			loopErr = err
		}
	}

	res.Positions = tensor.Clone(r.pos)
	tensor.Scale(1/r.scale, res.Positions)
	res.Evaluations = r.eval.Evaluations()
	res.Elapsed = time.Since(start)
	logger.Info("placement finished",
		"stopped", res.Stopped,
		"iterations", res.Iterations,
		"evaluations", res.Evaluations,
		"objective", res.Objective,
		"hpwl", res.HPWL,
		"elapsed", res.Elapsed.Round(time.Millisecond))
	return res, loopErr
}

func assemble[T tensor.Float](params config.Params, problem Problem[T], opts Options, logger *log.Logger) (*run[T], error) {
	scale := T(params.ScaleFactor)
	design := problem.Design
	if params.ScaleFactor != 1 {
		design = design.Scaled(scale)
	}
	design.Nets.MaskByDegree(params.IgnoreNetDegree)

	be, err := newBackend[T](params)
	if err != nil {
		return nil, err
	}
	r := &run[T]{params: params, opts: opts, logger: logger, scale: scale, be: be}
	if err := r.build(design, problem.Density); err != nil {
		_ = be.Close()
		return nil, err
	}
	return r, nil
}

// float32ExpLimit is the largest argument for which exp stays finite in
// float32.
var float32ExpLimit = math.Log(math.MaxFloat32)

// checkExpRange rejects float32 runs whose region coordinates divided by
// gamma overflow exp. Scaling moves coordinates and gamma together, so the
// ratio does not depend on the scale factor.
func checkExpRange[T tensor.Float](params config.Params, r placedb.Region[T]) error {
	if tensor.DataTypeOf[T]() != tensor.Float32 {
		return nil
	}
	reach := max(math.Abs(float64(r.XL)), math.Abs(float64(r.XH)), math.Abs(float64(r.YL)), math.Abs(float64(r.YH)))
	if reach/params.Gamma >= float32ExpLimit {
		return placeerr.Configf("placer.Run", "gamma",
			"float32 overflows exp(x/gamma) for coordinates up to %g with gamma %g; use dtype float64 or gamma > %.4g",
			reach, params.Gamma, reach/float32ExpLimit)
	}
	return nil
}

func newBackend[T tensor.Float](params config.Params) (backend.Backend[T], error) {
	if params.DeviceValue() == tensor.Accelerator {
		b, err := accel.New[T](accel.Config{NumThreads: params.NumThreads, WebGPU: params.WebGPU})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return cpu.New[T](params.NumThreads), nil
}

func (r *run[T]) build(design *placedb.Design[T], density objective.DensityFunc[T]) error {
	p := r.params
	wl, err := wirelength.NewLogSumExp(wirelength.Config[T]{
		Algorithm: p.AlgorithmValue(),
		Gamma:     T(p.Gamma) * r.scale,
	}, design.Nets, r.be)
	if err != nil {
		return err
	}
	r.proj, err = boundary.NewProjector(design.Layout, r.be)
	if err != nil {
		return err
	}
	r.eval, err = objective.New(design.Layout, wl, objective.Config[T]{
		Pins:          design.Pins,
		Density:       density,
		DensityWeight: T(p.DensityWeight),
		Parallel:      parallel.WithWorkers(p.NumThreads),
		Sync:          r.be,
	})
	if err != nil {
		return err
	}

	r.pos = tensor.Clone(design.Init)
	if err := r.proj.Project(r.pos); err != nil {
		return err
	}
	r.param = optim.NewParameter("pos", r.pos)
	groups := []optim.ParamGroup[T]{{Params: []*optim.Parameter[T]{r.param}, LR: T(p.LearningRate)}}

	switch p.Optimizer {
	case config.OptimizerCG:
		r.cg = true
		cfg := optim.ConjugateGradientConfig[T]{Sync: r.be, Logger: r.logger, Hook: r.hooks()}
		if p.LineSearch {
			ls := &optim.BacktrackingLineSearch[T]{Objective: r.eval.Evaluate}
			cfg.LineSearch = ls.Search
		}
		r.opt, err = optim.NewConjugateGradient(groups, cfg)
	default:
		r.opt, err = optim.NewNesterov(groups, optim.NesterovConfig[T]{
			Objective:     r.eval.Evaluate,
			Constraint:    r.proj.Project,
			Sync:          r.be,
			MaxBacktracks: p.MaxBacktracks,
			Logger:        r.logger,
			Hook:          r.hooks(),
		})
	}
	return err
}

// hooks fans step notifications out to the metrics recorder and the extra
// observers.
func (r *run[T]) hooks() optim.StepHook {
	var hs hookList
	if r.opts.Metrics != nil {
		hs = append(hs, r.opts.Metrics)
	}
	hs = append(hs, r.opts.Hooks...)
	if len(hs) == 0 {
		return nil
	}
	return hs
}

type hookList []optim.StepHook

func (hs hookList) OnStep(optimizer string, s optim.Stats) {
	for _, h := range hs {
		h.OnStep(optimizer, s)
	}
}

// resume restores a checkpoint when configured and returns the number of
// steps already taken.
func (r *run[T]) resume() (int, error) {
	const op = "placer.resume"
	path := r.params.ResumeFrom
	if path == "" {
		return 0, nil
	}
	ck, err := checkpoint.Load[T](path)
	if err != nil {
		return 0, err
	}
	if ck.Optimizer != r.opt.Name() {
		return 0, placeerr.Configf(op, "optimizer", "checkpoint was written by %s, run uses %s", ck.Optimizer, r.opt.Name())
	}
	if len(ck.Positions) != len(r.pos) {
		return 0, placeerr.Configf(op, "positions", "checkpoint has %d coordinates, design has %d", len(ck.Positions), len(r.pos))
	}
	if s := ck.Metadata["scale_factor"]; s != "" && s != r.scaleString() {
		return 0, placeerr.Configf(op, "scale_factor", "checkpoint used %s, run uses %s", s, r.scaleString())
	}
	copy(r.pos, ck.Positions)
	if err := r.opt.LoadStateDict(ck.State); err != nil {
		return 0, err
	}
	r.opt.RestoreStats(ck.Stats)
	r.logger.Info("resumed", "path", path, "iteration", ck.Stats.Iteration)
	return ck.Stats.Iteration, nil
}

func (r *run[T]) loop(ctx context.Context, first int, res *Result[T]) error {
	p := r.params
	prev := math.NaN()
	for it := first; it < p.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			res.Stopped = StopCanceled
			return err
		}

		// Nesterov needs a gradient on the parameter before its first step;
		// conjugate gradient reads the gradient at the current iterate on
		// every step.
		if r.cg || r.param.Grad() == nil {
			f, g, err := r.eval.Evaluate(r.pos)
			if err != nil {
				return placeerr.AtIteration(err, it)
			}
			r.param.SetGrad(g)
			res.Objective = float64(f)
		}
		if err := r.opt.Step(); err != nil {
			return err
		}
		if r.cg {
			if err := r.proj.Project(r.pos); err != nil {
				return err
			}
		}

		stats := r.opt.Stats()
		if !math.IsNaN(stats.Objective) {
			res.Objective = stats.Objective
		}
		res.Iterations = it + 1

		if p.HPWLInterval > 0 && res.Iterations%p.HPWLInterval == 0 {
			hpwl, err := r.hpwl()
			if err != nil {
				return err
			}
			res.HPWL = hpwl
			r.logger.Info("iteration",
				"iter", res.Iterations,
				"objective", res.Objective,
				"hpwl", hpwl,
				"step", stats.StepSize)
		} else {
			r.logger.Debug("iteration", "iter", res.Iterations, "objective", res.Objective, "step", stats.StepSize)
		}

		if p.CheckpointInterval > 0 && res.Iterations%p.CheckpointInterval == 0 {
			if err := r.save(); err != nil {
				return err
			}
		}

		if p.StopRelImprovement > 0 && !math.IsNaN(prev) {
			rel := math.Abs(prev-res.Objective) / math.Max(math.Abs(prev), math.SmallestNonzeroFloat64)
			if rel < p.StopRelImprovement {
				res.Stopped = StopConverged
				return nil
			}
		}
		prev = res.Objective
	}
	return nil
}

// hpwl returns the exact wirelength in design coordinates and publishes it.
func (r *run[T]) hpwl() (float64, error) {
	v, err := r.eval.HPWL(r.pos)
	if err != nil {
		return 0, err
	}
	hpwl := float64(v) / float64(r.scale)
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveHPWL(hpwl)
	}
	return hpwl, nil
}

func (r *run[T]) save() error {
	if err := r.be.Synchronize(); err != nil {
		return err
	}
	ck := &checkpoint.Checkpoint[T]{
		RunID:     r.opts.RunID,
		Optimizer: r.opt.Name(),
		Stats:     r.opt.Stats(),
		Positions: r.pos,
		State:     r.opt.StateDict(),
		Metadata: map[string]string{
			"device":       r.params.Device,
			"algorithm":    r.params.Algorithm,
			"scale_factor": r.scaleString(),
		},
	}
	if err := checkpoint.Save(r.params.CheckpointPath, ck); err != nil {
		return err
	}
	r.logger.Debug("checkpoint written", "path", r.params.CheckpointPath, "iter", ck.Stats.Iteration)
	return nil
}

func (r *run[T]) scaleString() string {
	return strconv.FormatFloat(r.params.ScaleFactor, 'g', -1, 64)
}

func (r *run[T]) observeFailure(err error) {
	class := "other"
	switch {
	case errors.Is(err, placeerr.ErrConfig):
		class = "config"
	case errors.Is(err, placeerr.ErrCapability):
		class = "capability"
	case errors.Is(err, placeerr.ErrNumerical):
		class = "numerical"
	}
	r.logger.Error("step failed", "class", class, "err", err)
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveFailure(class)
	}
}

// String formats a result for the CLI summary line.
func (res *Result[T]) String() string {
	return fmt.Sprintf("%s after %d iterations: objective %.6g, hpwl %.6g (from %.6g), %d evaluations in %s",
		res.Stopped, res.Iterations, res.Objective, res.HPWL, res.InitialHPWL, res.Evaluations,
		res.Elapsed.Round(time.Millisecond))
}
