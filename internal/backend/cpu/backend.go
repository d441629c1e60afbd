// Package cpu implements the host backend: placement kernels scheduled over
// a configurable number of worker goroutines.
//
// Work submitted to this backend completes before each call returns, so
// Synchronize is a no-op kept for interface parity with the accelerator.
package cpu

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// CPUBackend runs placement kernels on host worker threads.
type CPUBackend[T tensor.Float] struct {
	device tensor.Device
	cfg    parallel.Config
}

// Compile-time check that CPUBackend implements backend.Backend.
var _ backend.Backend[float32] = (*CPUBackend[float32])(nil)

// New creates a host backend using numThreads worker goroutines for net, pin
// and object loops. numThreads <= 0 uses one worker per CPU.
func New[T tensor.Float](numThreads int) *CPUBackend[T] {
	return &CPUBackend[T]{
		device: tensor.Host,
		cfg:    parallel.WithWorkers(numThreads),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend[T]) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend[T]) Device() tensor.Device {
	return cpu.device
}

// Parallel returns the worker configuration.
func (cpu *CPUBackend[T]) Parallel() parallel.Config {
	return cpu.cfg
}

// Supports reports whether alg has a host kernel. The atomic strategy relies
// on accelerator atomics and is rejected rather than emulated.
func (cpu *CPUBackend[T]) Supports(alg backend.Algorithm) error {
	switch alg {
	case backend.NetByNet, backend.Sparse:
		return nil
	default:
		return &placeerr.CapabilityError{
			Op:        "cpu.Supports",
			Device:    cpu.device.String(),
			Algorithm: alg.String(),
			Reason:    "no host kernel; the atomic strategy requires accelerator residency",
		}
	}
}

// MoveBoundary clamps movable and filler objects into the region.
func (cpu *CPUBackend[T]) MoveBoundary(pos []T, layout *placedb.Layout[T]) error {
	if len(pos) != layout.PositionLen() {
		return placeerr.Configf("cpu.MoveBoundary", "pos", "length %d, want %d", len(pos), layout.PositionLen())
	}
	movableEnd, fillerStart, n := backend.BoundaryRanges(layout)
	parallel.For(movableEnd, func(i int) {
		backend.ClampObject(pos, layout, i)
	}, cpu.cfg)
	parallel.For(n-fillerStart, func(i int) {
		backend.ClampObject(pos, layout, fillerStart+i)
	}, cpu.cfg)
	return nil
}

// HPWL returns the half-perimeter wirelength of the included nets.
func (cpu *CPUBackend[T]) HPWL(pos []T, nets *placedb.NetIndex) (T, error) {
	if err := backend.NetByNet.CheckIndex(nets); err != nil {
		return 0, err
	}
	values := make([]T, nets.NumNets())
	parallel.For(len(values), func(n int) {
		values[n] = backend.NetHPWL(pos, nets, n)
	}, cpu.cfg)
	return backend.SumValues(values), nil
}

// Synchronize is a no-op: host kernels complete before returning.
func (cpu *CPUBackend[T]) Synchronize() error {
	return nil
}

// Close is a no-op.
func (cpu *CPUBackend[T]) Close() error {
	return nil
}
