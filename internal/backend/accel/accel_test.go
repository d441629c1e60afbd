package accel

import (
	"sync"
	"testing"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var algorithms = []backend.Algorithm{backend.NetByNet, backend.Atomic, backend.Sparse}

func newBackend[T tensor.Float](t *testing.T) *AccelBackend[T] {
	t.Helper()
	b, err := New[T](Config{NumThreads: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func synthetic[T tensor.Float](t *testing.T, numNets int) (*placedb.Design[T], []T) {
	t.Helper()
	design, err := placedb.Synthetic[T](placedb.SyntheticConfig{
		NumMovable: 150, NumFixed: 10, NumNets: numNets, MaxDegree: 6,
		Width: 60, Height: 60, NoiseRatio: 0.5,
	}, 3)
	require.NoError(t, err)
	pos := make([]T, 2*design.Nets.NumPins())
	design.Pins.PinPositions(design.Init, pos, parallel.WithWorkers(1))
	return design, pos
}

func TestAtomicAdd(t *testing.T) {
	s32 := make([]float32, 2)
	s64 := make([]float64, 2)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				atomicAdd(s32, 1, 1)
				atomicAdd(s64, 0, 0.5)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, float32(8000), s32[1])
	assert.Equal(t, 4000.0, s64[0])
	assert.Zero(t, s32[0])
}

func TestNew(t *testing.T) {
	b := newBackend[float32](t)
	assert.Equal(t, "Accelerator", b.Name())
	assert.Equal(t, tensor.Accelerator, b.Device())
	for _, alg := range algorithms {
		assert.NoError(t, b.Supports(alg))
	}
	assert.ErrorIs(t, b.Supports(backend.Algorithm(42)), placeerr.ErrCapability)
}

func TestNew_WebGPUFloat64(t *testing.T) {
	_, err := New[float64](Config{WebGPU: true})
	assert.ErrorIs(t, err, placeerr.ErrCapability)
}

func TestStrategiesAgree(t *testing.T) {
	design, pos := synthetic[float64](t, 200)
	nets := design.Nets
	nets.MaskByDegree(5)
	b := newBackend[float64](t)

	ref, err := b.LogSumExpForward(backend.NetByNet, pos, nets, 3)
	require.NoError(t, err)
	refGrad := make([]float64, len(pos))
	require.NoError(t, b.LogSumExpBackward(ref, nets, 1, refGrad))

	for _, alg := range algorithms[1:] {
		t.Run(alg.String(), func(t *testing.T) {
			ctx, err := b.LogSumExpForward(alg, pos, nets, 3)
			require.NoError(t, err)
			require.NoError(t, ctx.Check(nets))
			assert.InEpsilon(t, ref.Value, ctx.Value, 1e-12)
			for n := range ctx.NetValue {
				assert.InDelta(t, ref.NetValue[n], ctx.NetValue[n], 1e-9, "net %d", n)
			}

			grad := make([]float64, len(pos))
			require.NoError(t, b.LogSumExpBackward(ctx, nets, 1, grad))
			for i := range grad {
				assert.InDelta(t, refGrad[i], grad[i], 1e-12, "coordinate %d", i)
			}
		})
	}
}

func TestExcludedNetsContributeNothing(t *testing.T) {
	nets, err := placedb.NewNetIndex([][]int{{0, 1}, {2, 3}}, 4)
	require.NoError(t, err)
	nets.NetMask[1] = 0
	pos := []float32{0, 1, 50, 60, 0, 1, 50, 60}
	b := newBackend[float32](t)

	for _, alg := range algorithms {
		ctx, err := b.LogSumExpForward(alg, pos, nets, 1)
		require.NoError(t, err, alg.String())
		assert.Zero(t, ctx.NetValue[1], alg.String())
		grad := make([]float32, len(pos))
		require.NoError(t, b.LogSumExpBackward(ctx, nets, 1, grad))
		assert.Zero(t, grad[2])
		assert.Zero(t, grad[3])
		assert.Zero(t, grad[6])
		assert.Zero(t, grad[7])
		assert.NotZero(t, grad[0])
	}
}

func TestLogSumExpForward_IndexMismatch(t *testing.T) {
	pin2net, err := placedb.NewPin2NetIndex([]int32{0, 0}, 1)
	require.NoError(t, err)
	b := newBackend[float32](t)
	_, err = b.LogSumExpForward(backend.NetByNet, make([]float32, 4), pin2net, 1)
	assert.ErrorIs(t, err, placeerr.ErrConfig)
	_, err = b.LogSumExpForward(backend.Atomic, make([]float32, 4), pin2net, 1)
	assert.NoError(t, err)
}

func TestMoveBoundary_Async(t *testing.T) {
	layout, err := placedb.NewLayout(
		[]float64{1, 2, 1},
		[]float64{1, 2, 1},
		1, 1,
		placedb.Region[float64]{XL: 0, YL: 0, XH: 5, YH: 5},
	)
	require.NoError(t, err)
	pos := []float64{-1, 10, 9, 7, -4, 3}
	b := newBackend[float64](t)
	require.NoError(t, b.MoveBoundary(pos, layout))
	require.NoError(t, b.Synchronize())
	assert.Equal(t, []float64{0, 10, 4, 4, -4, 3}, pos)
}

func TestHPWL(t *testing.T) {
	nets, err := placedb.NewNetIndex([][]int{{0, 1}, {2, 3}}, 4)
	require.NoError(t, err)
	pos := []float32{0, 3, 1, 2, 0, 4, 0, 0}
	got, err := newBackend[float32](t).HPWL(pos, nets)
	require.NoError(t, err)
	assert.Equal(t, float32(3+4+1), got)
}

func TestClose(t *testing.T) {
	b, err := New[float32](Config{NumThreads: 1})
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}
