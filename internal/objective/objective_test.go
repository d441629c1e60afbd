package objective

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/backend/cpu"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/wirelength"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDesign(t *testing.T) (*placedb.Design[float64], *wirelength.LogSumExp[float64]) {
	t.Helper()
	design, err := placedb.Synthetic[float64](placedb.SyntheticConfig{
		NumMovable: 16, NumFixed: 4, NumFiller: 3, NumNets: 14, MaxDegree: 4,
		Width: 24, Height: 24, NoiseRatio: 0.6,
	}, 17)
	require.NoError(t, err)
	wl, err := wirelength.NewLogSumExp(wirelength.Config[float64]{Algorithm: backend.Sparse, Gamma: 1},
		design.Nets, cpu.New[float64](2))
	require.NoError(t, err)
	return design, wl
}

// sumSquares is a stand-in density penalty Σ pos².
func sumSquares(pos, grad []float64) (float64, error) {
	var s float64
	for i, v := range pos {
		s += v * v
		grad[i] = 2 * v
	}
	return s, nil
}

func TestEvaluate_GradientMatchesFiniteDifference(t *testing.T) {
	design, wl := newDesign(t)
	e, err := New(design.Layout, wl, Config[float64]{
		Pins:          design.Pins,
		Density:       sumSquares,
		DensityWeight: 0.01,
	})
	require.NoError(t, err)

	pos := design.Init
	_, grad, err := e.Evaluate(pos)
	require.NoError(t, err)

	layout := design.Layout
	n := layout.NumObjects()
	const h = 1e-6
	for i := range pos {
		obj := i % n
		if layout.IsFixed(obj) {
			assert.Zero(t, grad[i], "fixed object %d", obj)
			continue
		}
		orig := pos[i]
		pos[i] = orig + h
		up, _, err := e.Evaluate(pos)
		require.NoError(t, err)
		pos[i] = orig - h
		down, _, err := e.Evaluate(pos)
		require.NoError(t, err)
		pos[i] = orig
		fd := (up - down) / (2 * h)
		assert.InDelta(t, fd, grad[i], 1e-4*math.Max(1, math.Abs(fd)), "coordinate %d", i)
	}
}

func TestEvaluate_AddsWeightedDensity(t *testing.T) {
	design, wl := newDesign(t)
	plain, err := New(design.Layout, wl, Config[float64]{Pins: design.Pins})
	require.NoError(t, err)
	weighted, err := New(design.Layout, wl, Config[float64]{Pins: design.Pins, Density: sumSquares, DensityWeight: 0.5})
	require.NoError(t, err)

	v0, g0, err := plain.Evaluate(design.Init)
	require.NoError(t, err)
	v1, g1, err := weighted.Evaluate(design.Init)
	require.NoError(t, err)

	var d float64
	for _, v := range design.Init {
		d += v * v
	}
	assert.InEpsilon(t, v0+0.5*d, v1, 1e-12)
	n := design.Layout.NumObjects()
	for i := range g1 {
		if design.Layout.IsFixed(i % n) {
			continue
		}
		assert.InDelta(t, g0[i]+design.Init[i], g1[i], 1e-9)
	}

	weighted.SetDensityWeight(0)
	v2, _, err := weighted.Evaluate(design.Init)
	require.NoError(t, err)
	assert.Equal(t, v0, v2)
	assert.Equal(t, 2, weighted.Evaluations())
}

func TestEvaluate_ObjectsArePins(t *testing.T) {
	nets, err := placedb.NewNetIndex([][]int{{0, 1}, {2, 3}}, 4)
	require.NoError(t, err)
	// Objects 0-2 are movable, object 3 is fixed.
	layout, err := placedb.NewLayout([]float32{1, 1, 1, 1}, []float32{1, 1, 1, 1}, 3, 0,
		placedb.Region[float32]{XH: 10, YH: 10})
	require.NoError(t, err)
	wl, err := wirelength.NewLogSumExp(wirelength.Config[float32]{Algorithm: backend.NetByNet, Gamma: 1}, nets, cpu.New[float32](1))
	require.NoError(t, err)
	e, err := New(layout, wl, Config[float32]{})
	require.NoError(t, err)

	pos := []float32{1, 2, 4, 5, 3, 3, 7, 6}
	value, grad, err := e.Evaluate(pos)
	require.NoError(t, err)
	ref, refGrad, err := wl.Evaluate(pos)
	require.NoError(t, err)
	assert.Equal(t, ref, value)
	assert.Equal(t, []float32{refGrad[0], refGrad[1], refGrad[2], 0, refGrad[4], refGrad[5], refGrad[6], 0}, grad)
	assert.NotZero(t, refGrad[3], "the fixed object still has a wirelength gradient")

	hpwl, err := e.HPWL(pos)
	require.NoError(t, err)
	assert.Equal(t, float32(1+0+1+1), hpwl)
}

func TestEvaluate_NonFinite(t *testing.T) {
	design, wl := newDesign(t)
	bad := func(pos, grad []float64) (float64, error) {
		grad[5] = math.Inf(1)
		return 0, nil
	}
	e, err := New(design.Layout, wl, Config[float64]{Pins: design.Pins, Density: bad, DensityWeight: 1})
	require.NoError(t, err)
	_, _, err = e.Evaluate(design.Init)
	require.ErrorIs(t, err, placeerr.ErrNumerical)
	var ne *placeerr.NumericalError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 5, ne.Object)
	assert.Zero(t, e.Evaluations())

	failing := func(pos, grad []float64) (float64, error) { return 0, errors.New("density: solver diverged") }
	e, err = New(design.Layout, wl, Config[float64]{Pins: design.Pins, Density: failing, DensityWeight: 1})
	require.NoError(t, err)
	_, _, err = e.Evaluate(design.Init)
	assert.EqualError(t, err, "density: solver diverged")
}

func TestNew_Errors(t *testing.T) {
	design, wl := newDesign(t)
	_, err := New(design.Layout, wl, Config[float64]{})
	assert.ErrorIs(t, err, placeerr.ErrConfig, "pins != objects without a pin map")

	_, err = New(design.Layout, wl, Config[float64]{Pins: design.Pins, DensityWeight: -1})
	assert.ErrorIs(t, err, placeerr.ErrConfig)

	e, err := New(design.Layout, wl, Config[float64]{Pins: design.Pins})
	require.NoError(t, err)
	_, _, err = e.Evaluate(make([]float64, 3))
	assert.ErrorIs(t, err, placeerr.ErrConfig)
}

func TestAnchor(t *testing.T) {
	ref := []float64{1, 2, 3, 4}
	f := Anchor(ref)
	ref[0] = 100 // copied

	grad := make([]float64, 4)
	v, err := f([]float64{2, 2, 1, 4}, grad)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, []float64{1, 0, -2, 0}, grad)

	_, err = f([]float64{1}, grad)
	assert.True(t, errors.Is(err, placeerr.ErrConfig))
}
