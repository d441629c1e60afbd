// Package objective composes the placement objective:
//
//	f(pos) = WL(pins(pos)) + λ·D(pos)
//
// where WL is the log-sum-exp wirelength over pin positions and D is an
// external density penalty supplied as a callback.
package objective

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
	"github.com/born-ml/gplace/internal/wirelength"
)

// DensityFunc evaluates the density penalty at object positions pos and
// writes its gradient into grad (same length as pos, zeroed by the caller).
type DensityFunc[T tensor.Float] func(pos, grad []T) (T, error)

// Config configures an Evaluator.
type Config[T tensor.Float] struct {
	// Pins maps pins to objects. Nil means every object is a pin at its
	// own position, which requires #pins == #objects.
	Pins *placedb.PinMap[T]

	Density       DensityFunc[T] // Optional density penalty
	DensityWeight T              // λ, >= 0

	Parallel parallel.Config // Pin gather loop

	// Sync fences asynchronous writes to positions (boundary projection on
	// the accelerator) before the host gathers pins or evaluates density.
	Sync backend.Synchronizer
}

// Evaluator computes the objective value and its gradient with respect to
// object positions.
type Evaluator[T tensor.Float] struct {
	layout *placedb.Layout[T]
	wl     *wirelength.LogSumExp[T]
	cfg    Config[T]

	pinPos  []T
	pinGrad []T
	evals   int
}

// New validates the configuration and returns an evaluator.
func New[T tensor.Float](layout *placedb.Layout[T], wl *wirelength.LogSumExp[T], cfg Config[T]) (*Evaluator[T], error) {
	const op = "objective.New"
	numPins := wl.NumPins()
	if cfg.Pins != nil {
		if cfg.Pins.NumPins() != numPins {
			return nil, placeerr.Configf(op, "Pins", "pin map has %d pins, net index has %d", cfg.Pins.NumPins(), numPins)
		}
		if err := cfg.Pins.Validate(layout.NumObjects()); err != nil {
			return nil, err
		}
	} else if numPins != layout.NumObjects() {
		return nil, placeerr.Configf(op, "Pins", "no pin map and %d pins != %d objects", numPins, layout.NumObjects())
	}
	if cfg.DensityWeight < 0 || !tensor.IsFinite(cfg.DensityWeight) {
		return nil, placeerr.Configf(op, "DensityWeight", "must be non-negative, got %g", float64(cfg.DensityWeight))
	}
	if cfg.Parallel.NumWorkers == 0 {
		cfg.Parallel = parallel.DefaultConfig()
	}
	return &Evaluator[T]{
		layout:  layout,
		wl:      wl,
		cfg:     cfg,
		pinPos:  make([]T, 2*numPins),
		pinGrad: make([]T, 2*numPins),
	}, nil
}

// Wirelength returns the wirelength operator.
func (e *Evaluator[T]) Wirelength() *wirelength.LogSumExp[T] { return e.wl }

// Layout returns the object layout.
func (e *Evaluator[T]) Layout() *placedb.Layout[T] { return e.layout }

// DensityWeight returns λ.
func (e *Evaluator[T]) DensityWeight() T { return e.cfg.DensityWeight }

// SetDensityWeight changes λ for subsequent evaluations.
func (e *Evaluator[T]) SetDensityWeight(w T) {
	e.cfg.DensityWeight = w
}

// Evaluations returns the number of completed Evaluate calls.
func (e *Evaluator[T]) Evaluations() int { return e.evals }

// Evaluate returns the objective and a freshly allocated gradient with
// respect to object positions. Gradient entries of fixed objects are zero.
// Non-finite values are reported as numerical errors naming the object.
func (e *Evaluator[T]) Evaluate(pos []T) (T, []T, error) {
	if len(pos) != e.layout.PositionLen() {
		return 0, nil, placeerr.Configf("objective.Evaluate", "pos", "length %d, want %d", len(pos), e.layout.PositionLen())
	}
	if err := e.fence(); err != nil {
		return 0, nil, err
	}
	pins := e.pins(pos)

	ctx, err := e.wl.Forward(pins)
	if err != nil {
		return 0, nil, err
	}
	grad := make([]T, len(pos))
	if e.cfg.Pins == nil {
		if err := e.wl.Backward(ctx, 1, grad); err != nil {
			return 0, nil, err
		}
	} else {
		if err := e.wl.Backward(ctx, 1, e.pinGrad); err != nil {
			return 0, nil, err
		}
		e.cfg.Pins.ScatterGradient(e.pinGrad, grad)
	}
	value := ctx.Value

	if e.cfg.Density != nil && e.cfg.DensityWeight > 0 {
		dgrad := make([]T, len(pos))
		d, err := e.cfg.Density(pos, dgrad)
		if err != nil {
			return 0, nil, err
		}
		value += e.cfg.DensityWeight * d
		tensor.Axpy(e.cfg.DensityWeight, dgrad, grad)
	}

	n := e.layout.NumObjects()
	for i := e.layout.NumMovable; i < n-e.layout.NumFiller; i++ {
		grad[i], grad[n+i] = 0, 0
	}

	if !tensor.IsFinite(value) {
		return 0, nil, placeerr.NewNumericalError("objective.Evaluate", "objective", float64(value), "non-finite objective")
	}
	if i := tensor.FirstNonFinite(grad); i >= 0 {
		ne := placeerr.NewNumericalError("objective.Evaluate", "gradient", float64(grad[i]), "non-finite gradient")
		ne.Object = i % n
		return 0, nil, ne
	}
	e.evals++
	return value, grad, nil
}

// HPWL returns the exact half-perimeter wirelength at object positions pos.
func (e *Evaluator[T]) HPWL(pos []T) (T, error) {
	if len(pos) != e.layout.PositionLen() {
		return 0, placeerr.Configf("objective.HPWL", "pos", "length %d, want %d", len(pos), e.layout.PositionLen())
	}
	if err := e.fence(); err != nil {
		return 0, err
	}
	return e.wl.HPWL(e.pins(pos))
}

func (e *Evaluator[T]) fence() error {
	if e.cfg.Sync == nil {
		return nil
	}
	return e.cfg.Sync.Synchronize()
}

// pins returns pin positions for pos, aliasing pos when there is no pin map.
func (e *Evaluator[T]) pins(pos []T) []T {
	if e.cfg.Pins == nil {
		return pos
	}
	e.cfg.Pins.PinPositions(pos, e.pinPos, e.cfg.Parallel)
	return e.pinPos
}
