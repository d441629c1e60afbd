package boundary

import (
	"math"
	"testing"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/backend/accel"
	"github.com/born-ml/gplace/internal/backend/cpu"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectKeepsFootprintInside(t *testing.T) {
	design, err := placedb.Synthetic[float32](placedb.SyntheticConfig{
		NumMovable: 500, NumFixed: 40, NumFiller: 60, NumNets: 10,
		Width: 50, Height: 40, NoiseRatio: 3,
	}, 9)
	require.NoError(t, err)
	layout := design.Layout
	n := layout.NumObjects()

	// Push fixed objects outside the region too; they must not move.
	for i := 0; i < n; i++ {
		if layout.IsFixed(i) {
			design.Init[i] = -100 - float32(i)
			design.Init[n+i] = 1e4
		}
	}

	accelBackend, err := accel.New[float32](accel.Config{NumThreads: 4})
	require.NoError(t, err)
	defer accelBackend.Close()

	results := make([][]float32, 0, 2)
	for _, be := range []backend.Backend[float32]{cpu.New[float32](4), accelBackend} {
		p, err := NewProjector(layout, be)
		require.NoError(t, err)
		pos := tensor.Clone(design.Init)
		require.NoError(t, p.Project(pos))
		require.NoError(t, be.Synchronize())

		r := layout.Region
		for i := 0; i < n; i++ {
			x, y := pos[i], pos[n+i]
			if layout.IsFixed(i) {
				assert.Equal(t, math.Float32bits(design.Init[i]), math.Float32bits(x), "fixed %d", i)
				assert.Equal(t, math.Float32bits(design.Init[n+i]), math.Float32bits(y), "fixed %d", i)
				continue
			}
			assert.GreaterOrEqual(t, x, r.XL)
			assert.LessOrEqual(t, x, r.XH-layout.SizeX[i])
			assert.GreaterOrEqual(t, y, r.YL)
			assert.LessOrEqual(t, y, r.YH-layout.SizeY[i])
		}
		results = append(results, pos)
	}
	assert.Equal(t, results[0], results[1], "host and accelerator clamp identically")
}

func TestProjectIdempotent(t *testing.T) {
	layout, err := placedb.NewLayout([]float64{1, 1}, []float64{1, 1}, 2, 0,
		placedb.Region[float64]{XL: 0, YL: 0, XH: 4, YH: 4})
	require.NoError(t, err)
	p, err := NewProjector(layout, cpu.New[float64](1))
	require.NoError(t, err)

	pos := []float64{1.5, 8, -2, 2.5}
	require.NoError(t, p.Project(pos))
	want := []float64{1.5, 3, 0, 2.5}
	assert.Equal(t, want, pos)
	require.NoError(t, p.Project(pos))
	assert.Equal(t, want, pos)
}

func TestProjectErrors(t *testing.T) {
	_, err := NewProjector(&placedb.Layout[float32]{
		SizeX: []float32{1}, SizeY: []float32{1}, NumMovable: 1,
		Region: placedb.Region[float32]{XL: 1, XH: 1, YL: 0, YH: 1},
	}, cpu.New[float32](1))
	assert.ErrorIs(t, err, placeerr.ErrConfig)

	layout, err := placedb.NewLayout([]float32{1}, []float32{1}, 1, 0,
		placedb.Region[float32]{XH: 2, YH: 2})
	require.NoError(t, err)
	p, err := NewProjector(layout, cpu.New[float32](1))
	require.NoError(t, err)
	assert.ErrorIs(t, p.Project(make([]float32, 3)), placeerr.ErrConfig)
}
