package placer

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/born-ml/gplace/internal/config"
	"github.com/born-ml/gplace/internal/metrics"
	"github.com/born-ml/gplace/internal/objective"
	"github.com/born-ml/gplace/internal/optim"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() config.Params {
	p := config.Default()
	p.DType = "float64"
	p.NumThreads = 1
	p.Gamma = 2
	p.LearningRate = 0.01
	p.Iterations = 30
	p.StopRelImprovement = 0
	p.HPWLInterval = 5
	p.Synthetic = config.Synthetic{
		Movable: 40, Fixed: 8, Filler: 6, Nets: 50, MaxDegree: 5,
		Width: 100, Height: 100, Noise: 0.2,
	}
	return p
}

func testProblem(t *testing.T, p config.Params) Problem[float64] {
	t.Helper()
	s := p.Synthetic
	d, err := placedb.Synthetic[float64](placedb.SyntheticConfig{
		NumMovable: s.Movable, NumFixed: s.Fixed, NumFiller: s.Filler, NumNets: s.Nets,
		MaxDegree: s.MaxDegree, Width: s.Width, Height: s.Height, NoiseRatio: s.Noise,
	}, p.Seed)
	require.NoError(t, err)
	return Problem[float64]{Design: d}
}

func assertPlacement(t *testing.T, prob Problem[float64], res *Result[float64]) {
	t.Helper()
	l := prob.Design.Layout
	n := l.NumObjects()
	require.Len(t, res.Positions, 2*n)
	for i := 0; i < n; i++ {
		x, y := res.Positions[i], res.Positions[n+i]
		if l.IsFixed(i) {
			assert.Equal(t, prob.Design.Init[i], x, "fixed object %d moved", i)
			assert.Equal(t, prob.Design.Init[n+i], y, "fixed object %d moved", i)
			continue
		}
		assert.GreaterOrEqual(t, x, l.Region.XL-1e-9)
		assert.LessOrEqual(t, x+l.SizeX[i], l.Region.XH+1e-9)
		assert.GreaterOrEqual(t, y, l.Region.YL-1e-9)
		assert.LessOrEqual(t, y+l.SizeY[i], l.Region.YH+1e-9)
	}
}

func gauge(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.NotEmpty(t, mf.GetMetric())
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

type countingHook struct{ steps int }

func (h *countingHook) OnStep(string, optim.Stats) { h.steps++ }

func TestRun_Nesterov(t *testing.T) {
	p := testParams()
	prob := testProblem(t, p)
	hook := &countingHook{}
	rec := metrics.NewRecorder("nesterov-test")

	res, err := Run(context.Background(), p, prob, Options{RunID: "nesterov-test", Metrics: rec, Hooks: []optim.StepHook{hook}})
	require.NoError(t, err)

	assert.Equal(t, "nesterov-test", res.RunID)
	assert.Equal(t, StopIterations, res.Stopped)
	assert.Equal(t, 30, res.Iterations)
	assert.Equal(t, 30, hook.steps)
	assert.Greater(t, res.Evaluations, 30)
	assert.Less(t, res.HPWL, res.InitialHPWL)
	assert.InDelta(t, res.HPWL, gauge(t, rec.Registry(), "gplace_hpwl"), 1e-9)
	assertPlacement(t, prob, res)
}

func TestRun_ConjugateGradientLineSearch(t *testing.T) {
	p := testParams()
	p.Optimizer = config.OptimizerCG
	p.LineSearch = true
	p.LearningRate = 2
	p.Iterations = 20
	prob := testProblem(t, p)

	res, err := Run(context.Background(), p, prob, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 20, res.Iterations)
	assert.Less(t, res.HPWL, res.InitialHPWL)
	assertPlacement(t, prob, res)
}

func TestRun_AtomicOnAccelerator(t *testing.T) {
	p := testParams()
	p.Device = "accel"
	p.Algorithm = "atomic"
	p.NumThreads = 4
	p.DensityWeight = 1e-3
	prob := testProblem(t, p)
	prob.Density = objective.Anchor(prob.Design.Init)

	res, err := Run(context.Background(), p, prob, Options{})
	require.NoError(t, err)
	assert.Less(t, res.HPWL, res.InitialHPWL)
	assertPlacement(t, prob, res)
}

func TestRun_ScaleFactor(t *testing.T) {
	p := testParams()
	p.Iterations = 0
	prob := testProblem(t, p)
	plain, err := Run(context.Background(), p, prob, Options{})
	require.NoError(t, err)

	p.ScaleFactor = 4
	scaled, err := Run(context.Background(), p, prob, Options{})
	require.NoError(t, err)

	assert.InDelta(t, plain.InitialHPWL, scaled.InitialHPWL, 1e-9)
	assert.InDeltaSlice(t, plain.Positions, scaled.Positions, 1e-9)
}

func TestRun_Converges(t *testing.T) {
	p := testParams()
	p.Iterations = 500
	p.StopRelImprovement = 1e-2
	res, err := Run(context.Background(), p, testProblem(t, p), Options{})
	require.NoError(t, err)
	assert.Equal(t, StopConverged, res.Stopped)
	assert.Less(t, res.Iterations, 500)
}

func TestRun_Canceled(t *testing.T) {
	p := testParams()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, p, testProblem(t, p), Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, StopCanceled, res.Stopped)
	assert.Zero(t, res.Iterations)
}

func TestRun_CheckpointResume(t *testing.T) {
	dir := t.TempDir()
	p := testParams()
	p.Iterations = 8
	full, err := Run(context.Background(), p, testProblem(t, p), Options{})
	require.NoError(t, err)

	p.Iterations = 4
	p.CheckpointPath = filepath.Join(dir, "run.gplc")
	p.CheckpointInterval = 2
	_, err = Run(context.Background(), p, testProblem(t, p), Options{})
	require.NoError(t, err)

	p.Iterations = 8
	p.ResumeFrom = p.CheckpointPath
	p.CheckpointPath = filepath.Join(dir, "resumed.gplc")
	resumed, err := Run(context.Background(), p, testProblem(t, p), Options{})
	require.NoError(t, err)

	assert.Equal(t, 8, resumed.Iterations)
	assert.Equal(t, full.Positions, resumed.Positions)
	assert.Equal(t, full.HPWL, resumed.HPWL)
}

func TestRun_ResumeRejectsOtherOptimizer(t *testing.T) {
	dir := t.TempDir()
	p := testParams()
	p.Iterations = 2
	p.CheckpointPath = filepath.Join(dir, "run.gplc")
	_, err := Run(context.Background(), p, testProblem(t, p), Options{})
	require.NoError(t, err)

	p.Optimizer = config.OptimizerCG
	p.ResumeFrom = p.CheckpointPath
	p.CheckpointPath = ""
	_, err = Run(context.Background(), p, testProblem(t, p), Options{})
	assert.True(t, errors.Is(err, placeerr.ErrConfig), "got %v", err)
}

func TestRun_ConfigErrors(t *testing.T) {
	p := testParams()
	prob := testProblem(t, p)

	bad := p
	bad.Gamma = -1
	_, err := Run(context.Background(), bad, prob, Options{})
	assert.True(t, errors.Is(err, placeerr.ErrConfig))

	bad = p
	bad.DType = "float32"
	_, err = Run(context.Background(), bad, prob, Options{})
	assert.True(t, errors.Is(err, placeerr.ErrConfig))

	_, err = Run(context.Background(), p, Problem[float64]{}, Options{})
	assert.True(t, errors.Is(err, placeerr.ErrConfig))
}

func TestRun_NumericalFailureIsCounted(t *testing.T) {
	p := testParams()
	p.DensityWeight = 1
	prob := testProblem(t, p)
	calls := 0
	prob.Density = func(pos, grad []float64) (float64, error) {
		calls++
		if calls > 3 {
			return 0, placeerr.NewNumericalError("density", "density", 0, "broken")
		}
		return 0, nil
	}
	rec := metrics.NewRecorder("fail")

	res, err := Run(context.Background(), p, prob, Options{Metrics: rec})
	require.Error(t, err)
	assert.True(t, errors.Is(err, placeerr.ErrNumerical))
	require.NotNil(t, res)
	assert.Less(t, res.Iterations, p.Iterations)
}

func TestRun_Float32ExpRange(t *testing.T) {
	p := testParams()
	p.DType = "float32"
	p.Iterations = 3
	s := p.Synthetic
	d, err := placedb.Synthetic[float32](placedb.SyntheticConfig{
		NumMovable: s.Movable, NumFixed: s.Fixed, NumFiller: s.Filler, NumNets: s.Nets,
		MaxDegree: s.MaxDegree, Width: s.Width, Height: s.Height, NoiseRatio: s.Noise,
	}, p.Seed)
	require.NoError(t, err)
	prob := Problem[float32]{Design: d}

	bad := p
	bad.Gamma = 1
	_, err = Run(context.Background(), bad, prob, Options{})
	var ce *placeerr.ConfigError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "gamma", ce.Field)

	// 100 / 2 stays below ln(MaxFloat32).
	res, err := Run(context.Background(), p, prob, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
	assert.False(t, math.IsInf(float64(res.Objective), 0))
}
