package accel

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
)

// LogSumExpForward submits the forward kernels for alg and waits for them,
// since the returned context is read on the host.
func (b *AccelBackend[T]) LogSumExpForward(alg backend.Algorithm, pos []T, nets *placedb.NetIndex, gamma T) (*backend.LogSumExpContext[T], error) {
	if err := b.Supports(alg); err != nil {
		return nil, err
	}
	if err := alg.CheckIndex(nets); err != nil {
		return nil, err
	}
	if len(pos) != 2*nets.NumPins() {
		return nil, placeerr.Configf("accel.LogSumExpForward", "pos", "length %d, want 2*#pins = %d", len(pos), 2*nets.NumPins())
	}

	ctx := backend.NewLogSumExpContext(alg, nets, gamma)
	if b.gpu != nil {
		ctx32 := any(ctx).(*backend.LogSumExpContext[float32])
		pos32 := any(pos).([]float32)
		b.stream.Enqueue("logsumexp."+alg.String(), func() error {
			return b.gpu.logSumExpForward(ctx32, pos32, nets)
		})
	} else {
		b.launchForward(ctx, pos, nets)
	}
	b.stream.Enqueue("logsumexp.reduce", func() error {
		ctx.Value = backend.SumValues(ctx.NetValue)
		return nil
	})
	if err := b.stream.Synchronize(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (b *AccelBackend[T]) launchForward(ctx *backend.LogSumExpContext[T], pos []T, nets *placedb.NetIndex) {
	np, nn := nets.NumPins(), nets.NumNets()
	switch ctx.Algorithm {
	case backend.NetByNet:
		b.stream.Launch("logsumexp.net_by_net", nn, func(n int) {
			ctx.ForwardNet(pos, nets, n)
		})

	case backend.Atomic:
		b.stream.Launch("logsumexp.atomic.pins", np, func(p int) {
			n := int(nets.Pin2Net[p])
			if !nets.Included(n) {
				return
			}
			ctx.ExpPin(pos, p)
			atomicAdd(ctx.ExpXYSum, n, ctx.ExpXY[p])
			atomicAdd(ctx.ExpNXYSum, n, ctx.ExpNXY[p])
			atomicAdd(ctx.ExpXYSum, nn+n, ctx.ExpXY[np+p])
			atomicAdd(ctx.ExpNXYSum, nn+n, ctx.ExpNXY[np+p])
		})
		b.stream.Launch("logsumexp.atomic.nets", nn, func(n int) {
			ctx.FinishNet(nets, n)
		})

	case backend.Sparse:
		b.stream.Launch("logsumexp.sparse.pins", np, func(p int) {
			if nets.Included(int(nets.Pin2Net[p])) {
				ctx.ExpPin(pos, p)
			}
		})
		b.stream.Launch("logsumexp.sparse.nets", nn, func(n int) {
			if nets.Included(n) {
				ctx.ReduceNet(nets, n)
			}
			ctx.FinishNet(nets, n)
		})
	}
}

// LogSumExpBackward submits the gradient kernel and waits for it.
func (b *AccelBackend[T]) LogSumExpBackward(ctx *backend.LogSumExpContext[T], nets *placedb.NetIndex, gradOut T, grad []T) error {
	if len(grad) != 2*ctx.NumPins {
		return placeerr.Configf("accel.LogSumExpBackward", "grad", "length %d, want %d", len(grad), 2*ctx.NumPins)
	}
	switch {
	case b.gpu != nil:
		ctx32 := any(ctx).(*backend.LogSumExpContext[float32])
		grad32 := any(grad).([]float32)
		out32 := any(gradOut).(float32)
		b.stream.Enqueue("logsumexp.backward", func() error {
			return b.gpu.logSumExpBackward(ctx32, nets, out32, grad32)
		})
	case nets.HasPin2Net():
		b.stream.Launch("logsumexp.backward.pins", ctx.NumPins, func(p int) {
			ctx.GradPin(nets, int(nets.Pin2Net[p]), p, gradOut, grad)
		})
	default:
		b.stream.Launch("logsumexp.backward.nets", ctx.NumNets, func(n int) {
			for _, p := range nets.Pins(n) {
				ctx.GradPin(nets, n, int(p), gradOut, grad)
			}
		})
	}
	return b.stream.Synchronize()
}
