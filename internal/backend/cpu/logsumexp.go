package cpu

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
)

// LogSumExpForward evaluates the log-sum-exp wirelength of pin positions pos.
func (cpu *CPUBackend[T]) LogSumExpForward(alg backend.Algorithm, pos []T, nets *placedb.NetIndex, gamma T) (*backend.LogSumExpContext[T], error) {
	if err := cpu.Supports(alg); err != nil {
		return nil, err
	}
	if err := alg.CheckIndex(nets); err != nil {
		return nil, err
	}
	if len(pos) != 2*nets.NumPins() {
		return nil, placeerr.Configf("cpu.LogSumExpForward", "pos", "length %d, want 2*#pins = %d", len(pos), 2*nets.NumPins())
	}

	ctx := backend.NewLogSumExpContext(alg, nets, gamma)
	numNets := nets.NumNets()

	switch alg {
	case backend.NetByNet:
		parallel.For(numNets, func(n int) {
			ctx.ForwardNet(pos, nets, n)
		}, cpu.cfg)

	case backend.Sparse:
		// Pass 1: independent per-pin exponentials.
		parallel.For(nets.NumPins(), func(p int) {
			if nets.Included(int(nets.Pin2Net[p])) {
				ctx.ExpPin(pos, p)
			}
		}, cpu.cfg)
		// Pass 2: independent per-net reductions over the CSR rows.
		parallel.For(numNets, func(n int) {
			if nets.Included(n) {
				ctx.ReduceNet(nets, n)
			}
			ctx.FinishNet(nets, n)
		}, cpu.cfg)
	}

	ctx.Value = backend.SumValues(ctx.NetValue)
	return ctx, nil
}

// LogSumExpBackward writes gradOut·∂value/∂pos into grad.
func (cpu *CPUBackend[T]) LogSumExpBackward(ctx *backend.LogSumExpContext[T], nets *placedb.NetIndex, gradOut T, grad []T) error {
	if len(grad) != 2*ctx.NumPins {
		return placeerr.Configf("cpu.LogSumExpBackward", "grad", "length %d, want %d", len(grad), 2*ctx.NumPins)
	}
	switch ctx.Algorithm {
	case backend.NetByNet:
		// Only the CSR encoding is guaranteed: walk nets.
		parallel.For(ctx.NumNets, func(n int) {
			for _, p := range nets.Pins(n) {
				ctx.GradPin(nets, n, int(p), gradOut, grad)
			}
		}, cpu.cfg)
	default:
		parallel.For(ctx.NumPins, func(p int) {
			ctx.GradPin(nets, int(nets.Pin2Net[p]), p, gradOut, grad)
		}, cpu.cfg)
	}
	return nil
}
