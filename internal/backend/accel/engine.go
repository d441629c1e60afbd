package accel

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placedb"
)

// engine offloads float32 kernels to an external compute device. Calls are
// blocking; the stream provides ordering.
type engine interface {
	name() string
	moveBoundary(pos []float32, layout *placedb.Layout[float32]) error
	logSumExpForward(ctx *backend.LogSumExpContext[float32], pos []float32, nets *placedb.NetIndex) error
	logSumExpBackward(ctx *backend.LogSumExpContext[float32], nets *placedb.NetIndex, gradOut float32, grad []float32) error
	release()
}

// pin2net returns the pin-to-net map of nets, deriving it from the CSR
// encoding when absent.
func pin2net(nets *placedb.NetIndex) []int32 {
	if nets.HasPin2Net() {
		return nets.Pin2Net
	}
	out := make([]int32, nets.NumPins())
	for n := 0; n < nets.NumNets(); n++ {
		for _, p := range nets.Pins(n) {
			out[p] = int32(n) //nolint:gosec // G115: net count fits int32 by construction
		}
	}
	return out
}
