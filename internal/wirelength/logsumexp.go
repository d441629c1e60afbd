// Package wirelength implements the smooth log-sum-exp wirelength operator
// and exact half-perimeter wirelength.
//
// The forward pass returns a Context holding the cached per-net exponential
// sums; the caller passes it to the paired backward pass, which reuses them
// instead of recomputing the exponentials.
package wirelength

import (
	"fmt"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Context carries the intermediates of one forward pass to its backward pass.
type Context[T tensor.Float] = backend.LogSumExpContext[T]

// Config configures a LogSumExp operator.
type Config[T tensor.Float] struct {
	Algorithm backend.Algorithm // Computation strategy
	Gamma     T                 // Smoothing coefficient, > 0
}

// LogSumExp is the log-sum-exp wirelength operator over pin positions.
//
// Positions are laid out as all pin x coordinates followed by all pin y
// coordinates.
type LogSumExp[T tensor.Float] struct {
	cfg     Config[T]
	nets    *placedb.NetIndex
	backend backend.Backend[T]
}

// NewLogSumExp validates the configuration against the net index and the
// backend, and the net index itself. A strategy whose index structure is missing is a configuration
// error; a strategy the backend has no kernel for is a capability error.
func NewLogSumExp[T tensor.Float](cfg Config[T], nets *placedb.NetIndex, be backend.Backend[T]) (*LogSumExp[T], error) {
	if err := checkGamma(cfg.Gamma); err != nil {
		return nil, err
	}
	if err := cfg.Algorithm.CheckIndex(nets); err != nil {
		return nil, err
	}
	if err := nets.Validate(); err != nil {
		return nil, err
	}
	if err := be.Supports(cfg.Algorithm); err != nil {
		return nil, err
	}
	return &LogSumExp[T]{cfg: cfg, nets: nets, backend: be}, nil
}

func checkGamma[T tensor.Float](gamma T) error {
	if !(gamma > 0) || !tensor.IsFinite(gamma) {
		return placeerr.Configf("wirelength.NewLogSumExp", "Gamma", "must be positive and finite, got %g", float64(gamma))
	}
	return nil
}

// Algorithm returns the computation strategy.
func (w *LogSumExp[T]) Algorithm() backend.Algorithm { return w.cfg.Algorithm }

// Gamma returns the smoothing coefficient.
func (w *LogSumExp[T]) Gamma() T { return w.cfg.Gamma }

// SetGamma changes the smoothing coefficient for subsequent evaluations.
func (w *LogSumExp[T]) SetGamma(gamma T) error {
	if err := checkGamma(gamma); err != nil {
		return err
	}
	w.cfg.Gamma = gamma
	return nil
}

// Nets returns the net index.
func (w *LogSumExp[T]) Nets() *placedb.NetIndex { return w.nets }

// NumPins returns the number of pins, half the position length.
func (w *LogSumExp[T]) NumPins() int { return w.nets.NumPins() }

// Forward computes the wirelength of pos. Overflowed or underflowed per-net
// sums are reported as numerical errors naming the net.
func (w *LogSumExp[T]) Forward(pos []T) (*Context[T], error) {
	ctx, err := w.backend.LogSumExpForward(w.cfg.Algorithm, pos, w.nets, w.cfg.Gamma)
	if err != nil {
		return nil, fmt.Errorf("wirelength: forward: %w", err)
	}
	if err := ctx.Check(w.nets); err != nil {
		return nil, err
	}
	return ctx, nil
}

// Backward writes gradOut·∇value into grad using the sums cached in ctx.
func (w *LogSumExp[T]) Backward(ctx *Context[T], gradOut T, grad []T) error {
	if ctx == nil {
		return placeerr.Configf("wirelength.Backward", "ctx", "nil context")
	}
	if ctx.NumPins != w.nets.NumPins() || ctx.NumNets != w.nets.NumNets() {
		return placeerr.Configf("wirelength.Backward", "ctx", "context for %d pins/%d nets, operator has %d/%d",
			ctx.NumPins, ctx.NumNets, w.nets.NumPins(), w.nets.NumNets())
	}
	if err := w.backend.LogSumExpBackward(ctx, w.nets, gradOut, grad); err != nil {
		return fmt.Errorf("wirelength: backward: %w", err)
	}
	return nil
}

// Evaluate returns the value and gradient at pos.
func (w *LogSumExp[T]) Evaluate(pos []T) (T, []T, error) {
	ctx, err := w.Forward(pos)
	if err != nil {
		return 0, nil, err
	}
	grad := make([]T, len(pos))
	if err := w.Backward(ctx, 1, grad); err != nil {
		return 0, nil, err
	}
	return ctx.Value, grad, nil
}

// HPWL returns the exact half-perimeter wirelength of pos over included nets.
func (w *LogSumExp[T]) HPWL(pos []T) (T, error) {
	return HPWL(w.backend, pos, w.nets)
}
