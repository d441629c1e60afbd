package placedb

import (
	"testing"

	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutKinds(t *testing.T) {
	l, err := NewLayout([]float64{1, 1, 1, 1, 1}, []float64{1, 1, 1, 1, 1}, 2, 1,
		Region[float64]{XL: 0, YL: 0, XH: 10, YH: 10})
	require.NoError(t, err)

	want := []Kind{Movable, Movable, Fixed, Fixed, Filler}
	for i, k := range want {
		assert.Equal(t, k, l.Kind(i), "object %d", i)
		assert.Equal(t, k == Fixed, l.IsFixed(i), "object %d", i)
	}
	assert.Equal(t, 2, l.NumFixed())
	assert.Equal(t, 10, l.PositionLen())
}

func TestLayoutValidate(t *testing.T) {
	region := Region[float32]{XL: 0, YL: 0, XH: 1, YH: 1}
	tests := []struct {
		name   string
		layout Layout[float32]
	}{
		{"size mismatch", Layout[float32]{SizeX: []float32{1}, SizeY: nil, Region: region}},
		{"too many movable", Layout[float32]{SizeX: []float32{1}, SizeY: []float32{1}, NumMovable: 2, Region: region}},
		{"empty region", Layout[float32]{SizeX: []float32{1}, SizeY: []float32{1}}},
		{"negative size", Layout[float32]{SizeX: []float32{-1}, SizeY: []float32{1}, Region: region}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			require.ErrorIs(t, err, placeerr.ErrConfig)
		})
	}
}

func TestNewNetIndex(t *testing.T) {
	x, err := NewNetIndex([][]int{{0, 4}, {1, 2, 3}, {5}}, 6)
	require.NoError(t, err)

	assert.Equal(t, []int32{0, 4, 1, 2, 3, 5}, x.FlatNetPin)
	assert.Equal(t, []int32{0, 2, 5, 6}, x.NetPinStart)
	assert.Equal(t, []int32{0, 1, 1, 1, 0, 2}, x.Pin2Net)
	assert.Equal(t, []uint8{1, 1, 0}, x.NetMask, "single-pin net is degenerate")
	assert.Equal(t, 3, x.NumNets())
	assert.Equal(t, 6, x.NumPins())
	assert.Equal(t, 3, x.Degree(1))
	assert.Equal(t, []int32{1, 2, 3}, x.Pins(1))
	require.NoError(t, x.Validate())
}

func TestNewNetIndex_Rejects(t *testing.T) {
	_, err := NewNetIndex([][]int{{0, 1}, {1, 2}}, 3)
	assert.ErrorIs(t, err, placeerr.ErrConfig, "pin in two nets")

	_, err = NewNetIndex([][]int{{0, 7}}, 2)
	assert.ErrorIs(t, err, placeerr.ErrConfig, "pin out of range")

	_, err = NewNetIndex([][]int{{0, 1}}, 3)
	assert.ErrorIs(t, err, placeerr.ErrConfig, "unassigned pin")
}

func TestMaskByDegree(t *testing.T) {
	x, err := NewNetIndex([][]int{{0, 4}, {1, 2, 3}}, 5)
	require.NoError(t, err)

	assert.Equal(t, 1, x.MaskByDegree(3))
	assert.Equal(t, []uint8{1, 0}, x.NetMask)

	assert.Equal(t, 2, x.MaskByDegree(0))
	assert.Equal(t, []uint8{1, 1}, x.NetMask)

	// The mask never touches the encodings.
	assert.Len(t, x.FlatNetPin, 5)
	assert.Len(t, x.Pin2Net, 5)
}

func TestPin2NetIndex(t *testing.T) {
	x, err := NewPin2NetIndex([]int32{0, 1, 1, 1, 0}, 2)
	require.NoError(t, err)
	assert.False(t, x.HasCSR())
	assert.True(t, x.HasPin2Net())
	assert.Equal(t, 5, x.NumPins())
	require.NoError(t, x.Validate())

	assert.Equal(t, 1, x.MaskByDegree(3))

	_, err = NewPin2NetIndex([]int32{0, 3}, 2)
	assert.ErrorIs(t, err, placeerr.ErrConfig)
}

func TestNetIndexValidate_Inconsistent(t *testing.T) {
	x, err := NewNetIndex([][]int{{0, 4}, {1, 2, 3}}, 5)
	require.NoError(t, err)
	x.Pin2Net[4] = 1
	assert.ErrorIs(t, x.Validate(), placeerr.ErrConfig)

	y := &NetIndex{NetMask: []uint8{1}}
	assert.ErrorIs(t, y.Validate(), placeerr.ErrConfig)
}

func TestMaskByDegree_MalformedIndex(t *testing.T) {
	short := &NetIndex{FlatNetPin: []int32{0, 1}, NetPinStart: []int32{0}, NetMask: []uint8{1, 1}}
	assert.Zero(t, short.MaskByDegree(0))
	assert.Equal(t, []uint8{0, 0}, short.NetMask)
	assert.ErrorIs(t, short.Validate(), placeerr.ErrConfig)

	stray := &NetIndex{Pin2Net: []int32{0, 0, 7}, NetMask: []uint8{1}}
	assert.Equal(t, 1, stray.MaskByDegree(0))
	assert.ErrorIs(t, stray.Validate(), placeerr.ErrConfig)
}

func TestPinMap(t *testing.T) {
	m := &PinMap[float64]{
		Pin2Node: []int32{0, 1, 1},
		OffsetX:  []float64{0.5, 1, 2},
		OffsetY:  []float64{0, 0.25, 0.5},
	}
	require.NoError(t, m.Validate(2))
	assert.ErrorIs(t, m.Validate(1), placeerr.ErrConfig)

	obj := []float64{10, 20, 100, 200} // x0 x1 y0 y1
	pins := make([]float64, 6)
	m.PinPositions(obj, pins, parallel.DefaultConfig())
	assert.Equal(t, []float64{10.5, 21, 22, 100, 200.25, 200.5}, pins)

	objGrad := []float64{9, 9, 9, 9}
	m.ScatterGradient([]float64{1, 2, 3, 4, 5, 6}, objGrad)
	assert.Equal(t, []float64{1, 5, 4, 11}, objGrad)
}

func TestSynthetic(t *testing.T) {
	cfg := SyntheticConfig{
		NumMovable: 50, NumFixed: 5, NumFiller: 10, NumNets: 40,
		MaxDegree: 6, Width: 100, Height: 80, NoiseRatio: 0.1,
	}
	a, err := Synthetic[float64](cfg, 7)
	require.NoError(t, err)
	b, err := Synthetic[float64](cfg, 7)
	require.NoError(t, err)

	assert.Equal(t, a.Init, b.Init, "same seed, same design")
	assert.Equal(t, 65, a.Layout.NumObjects())
	assert.Equal(t, 40, a.Nets.NumNets())
	require.NoError(t, a.Nets.Validate())
	require.NoError(t, a.Pins.Validate(a.Layout.NumObjects()))
	assert.Len(t, a.Init, 130)

	for _, o := range a.Pins.Pin2Node {
		assert.NotEqual(t, Filler, a.Layout.Kind(int(o)), "fillers carry no pins")
	}
}

func TestDesignScaled(t *testing.T) {
	cfg := SyntheticConfig{NumMovable: 4, NumFixed: 1, NumNets: 3, MaxDegree: 3, Width: 10, Height: 10, NoiseRatio: 0.2}
	d, err := Synthetic[float64](cfg, 3)
	require.NoError(t, err)

	s := d.Scaled(2)
	require.NoError(t, s.Layout.Validate())
	assert.Equal(t, 20.0, s.Layout.Region.XH)
	assert.Equal(t, 2*d.Layout.SizeX[4], s.Layout.SizeX[4])
	assert.Equal(t, 2*d.Init[1], s.Init[1])
	assert.Equal(t, 2*d.Pins.OffsetY[0], s.Pins.OffsetY[0])
	assert.Same(t, d.Nets, s.Nets)

	// The original is untouched.
	assert.Equal(t, 10.0, d.Layout.Region.XH)
}
