// Package backend defines the capability interface implemented by the two
// execution backends of the placement core (host and accelerator), together
// with the data shared between their kernels.
//
// Optimizers and operators talk to a Backend and never branch on residency
// themselves: whichever backend owns the position array decides which
// kernels run, and reports a CapabilityError for anything it cannot execute.
package backend

import (
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/tensor"
)

// Synchronizer is the completion fence of a backend.
type Synchronizer interface {
	// Synchronize blocks until all submitted work has finished and returns
	// the first error raised by it.
	Synchronize() error
}

// Backend defines the kernels a placement backend must implement.
//
// Implementations:
//   - cpu: host worker threads (net-by-net, sparse)
//   - accel: asynchronous accelerator stream (net-by-net, atomic, sparse)
type Backend[T tensor.Float] interface {
	Synchronizer

	// Name returns a human-readable backend name.
	Name() string

	// Device returns the residency this backend executes on.
	Device() tensor.Device

	// Supports returns nil if the wirelength algorithm has a kernel on this
	// backend, or a *placeerr.CapabilityError otherwise.
	Supports(alg Algorithm) error

	// LogSumExpForward evaluates the log-sum-exp wirelength of the pin
	// positions pos (x then y) and returns the context holding the cached
	// exponentials and per-net sums. The context value is complete when the
	// call returns.
	LogSumExpForward(alg Algorithm, pos []T, nets *placedb.NetIndex, gamma T) (*LogSumExpContext[T], error)

	// LogSumExpBackward writes gradOut·∂value/∂pos into grad (len(pos)),
	// reusing the sums cached by the paired forward call.
	LogSumExpBackward(ctx *LogSumExpContext[T], nets *placedb.NetIndex, gradOut T, grad []T) error

	// MoveBoundary clamps movable and filler objects into the layout region
	// in place. Fixed objects are not written. The update may complete
	// asynchronously; later submissions observe it.
	MoveBoundary(pos []T, layout *placedb.Layout[T]) error

	// HPWL returns the exact half-perimeter wirelength of the included nets.
	HPWL(pos []T, nets *placedb.NetIndex) (T, error)

	// Close releases backend resources after a final Synchronize.
	Close() error
}
