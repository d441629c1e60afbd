// Package accel implements the accelerator backend.
//
// Kernels are submitted to an in-order asynchronous stream and run as grids
// of lightweight threads (one per pin, net or object), with floating point
// atomics for the atomic wirelength strategy. Operations that hand results
// back to the host wait for their own submissions; MoveBoundary does not, so
// callers fence with Synchronize before reading positions on the host.
//
// On windows builds the float32 kernels can be offloaded to a GPU through
// WebGPU (Config.WebGPU); the stream still orders the dispatches.
package accel

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Config configures the accelerator backend.
type Config struct {
	NumThreads int  // Goroutines executing each grid (default: one per CPU)
	WebGPU     bool // Offload float32 kernels to a WebGPU adapter
}

// AccelBackend executes placement kernels on an asynchronous stream.
type AccelBackend[T tensor.Float] struct {
	device tensor.Device
	stream *parallel.Stream
	gpu    engine // nil unless Config.WebGPU
}

// Compile-time check that AccelBackend implements backend.Backend.
var _ backend.Backend[float64] = (*AccelBackend[float64])(nil)

// New creates an accelerator backend.
//
// Requesting the WebGPU engine for float64 data, or on a system without a
// usable adapter, is a capability error.
func New[T tensor.Float](cfg Config) (*AccelBackend[T], error) {
	b := &AccelBackend[T]{
		device: tensor.Accelerator,
	}
	if cfg.WebGPU {
		if tensor.DataTypeOf[T]() != tensor.Float32 {
			return nil, &placeerr.CapabilityError{
				Op:     "accel.New",
				Device: "webgpu",
				Reason: "WebGPU kernels support float32 only",
			}
		}
		gpu, err := newWebGPUEngine()
		if err != nil {
			return nil, err
		}
		b.gpu = gpu
	}
	b.stream = parallel.NewStream("accel", parallel.WithWorkers(cfg.NumThreads))
	return b, nil
}

// Name returns the backend name.
func (b *AccelBackend[T]) Name() string {
	if b.gpu != nil {
		return "Accelerator (" + b.gpu.name() + ")"
	}
	return "Accelerator"
}

// Device returns the compute device.
func (b *AccelBackend[T]) Device() tensor.Device {
	return b.device
}

// Supports reports whether alg has an accelerator kernel. All strategies do.
func (b *AccelBackend[T]) Supports(alg backend.Algorithm) error {
	switch alg {
	case backend.NetByNet, backend.Atomic, backend.Sparse:
		return nil
	default:
		return &placeerr.CapabilityError{
			Op:        "accel.Supports",
			Device:    b.device.String(),
			Algorithm: alg.String(),
		}
	}
}

// MoveBoundary enqueues the boundary clamp and returns without waiting.
func (b *AccelBackend[T]) MoveBoundary(pos []T, layout *placedb.Layout[T]) error {
	if len(pos) != layout.PositionLen() {
		return placeerr.Configf("accel.MoveBoundary", "pos", "length %d, want %d", len(pos), layout.PositionLen())
	}
	if b.gpu != nil {
		pos32 := any(pos).([]float32)
		layout32 := any(layout).(*placedb.Layout[float32])
		b.stream.Enqueue("move_boundary", func() error {
			return b.gpu.moveBoundary(pos32, layout32)
		})
		return nil
	}
	movableEnd, fillerStart, n := backend.BoundaryRanges(layout)
	b.stream.Launch("move_boundary.movable", movableEnd, func(i int) {
		backend.ClampObject(pos, layout, i)
	})
	b.stream.Launch("move_boundary.filler", n-fillerStart, func(i int) {
		backend.ClampObject(pos, layout, fillerStart+i)
	})
	return nil
}

// HPWL returns the half-perimeter wirelength of the included nets.
func (b *AccelBackend[T]) HPWL(pos []T, nets *placedb.NetIndex) (T, error) {
	if err := backend.NetByNet.CheckIndex(nets); err != nil {
		return 0, err
	}
	values := make([]T, nets.NumNets())
	b.stream.Launch("hpwl", len(values), func(n int) {
		values[n] = backend.NetHPWL(pos, nets, n)
	})
	if err := b.stream.Synchronize(); err != nil {
		return 0, err
	}
	return backend.SumValues(values), nil
}

// Synchronize is the completion fence for all submitted kernels.
func (b *AccelBackend[T]) Synchronize() error {
	return b.stream.Synchronize()
}

// Close drains the stream and releases the GPU engine.
func (b *AccelBackend[T]) Close() error {
	err := b.stream.Close()
	if b.gpu != nil {
		b.gpu.release()
		b.gpu = nil
	}
	return err
}
