package placedb

import (
	"math/rand/v2"

	"github.com/born-ml/gplace/internal/tensor"
)

// SyntheticConfig sizes a generated benchmark.
type SyntheticConfig struct {
	NumMovable int
	NumFixed   int
	NumFiller  int
	NumNets    int
	MaxDegree  int     // Largest generated net degree (>= 2)
	Width      float64 // Region width
	Height     float64 // Region height
	NoiseRatio float64 // Initial spread around the region center, relative to the region size
}

// Design bundles a complete placement problem.
type Design[T tensor.Float] struct {
	Layout *Layout[T]
	Nets   *NetIndex
	Pins   *PinMap[T]
	Init   []T // Initial positions, x then y
}

// Synthetic generates a reproducible random design. Movable and filler
// objects start clustered around the region center, fixed objects are
// scattered over the region, and every net draws distinct objects.
func Synthetic[T tensor.Float](cfg SyntheticConfig, seed uint64) (*Design[T], error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if cfg.MaxDegree < 2 {
		cfg.MaxDegree = 2
	}
	n := cfg.NumMovable + cfg.NumFixed + cfg.NumFiller
	region := Region[T]{XL: 0, YL: 0, XH: T(cfg.Width), YH: T(cfg.Height)}

	sizeX := make([]T, n)
	sizeY := make([]T, n)
	for i := 0; i < n; i++ {
		w, h := 1+rng.Float64()*3, 1.0
		if i >= cfg.NumMovable && i < cfg.NumMovable+cfg.NumFixed {
			w, h = 4+rng.Float64()*8, 4+rng.Float64()*8
		}
		sizeX[i], sizeY[i] = T(w), T(h)
	}
	layout, err := NewLayout(sizeX, sizeY, cfg.NumMovable, cfg.NumFiller, region)
	if err != nil {
		return nil, err
	}

	var (
		nets     [][]int
		pin2node []int32
		offX     []T
		offY     []T
	)
	connectable := cfg.NumMovable + cfg.NumFixed
	for k := 0; k < cfg.NumNets && connectable >= 2; k++ {
		degree := 2 + rng.IntN(min(cfg.MaxDegree, connectable)-1)
		pins := make([]int, 0, degree)
		for _, o := range rng.Perm(connectable)[:degree] {
			pins = append(pins, len(pin2node))
			pin2node = append(pin2node, int32(o))
			offX = append(offX, T(rng.Float64())*sizeX[o])
			offY = append(offY, T(rng.Float64())*sizeY[o])
		}
		nets = append(nets, pins)
	}
	index, err := NewNetIndex(nets, len(pin2node))
	if err != nil {
		return nil, err
	}

	init := make([]T, 2*n)
	cx, cy := cfg.Width/2, cfg.Height/2
	for i := 0; i < n; i++ {
		var x, y float64
		if layout.IsFixed(i) {
			x = rng.Float64() * (cfg.Width - float64(sizeX[i]))
			y = rng.Float64() * (cfg.Height - float64(sizeY[i]))
		} else {
			x = cx + (rng.Float64()-0.5)*cfg.NoiseRatio*cfg.Width
			y = cy + (rng.Float64()-0.5)*cfg.NoiseRatio*cfg.Height
		}
		init[i], init[n+i] = T(x), T(y)
	}

	return &Design[T]{
		Layout: layout,
		Nets:   index,
		Pins:   &PinMap[T]{Pin2Node: pin2node, OffsetX: offX, OffsetY: offY},
		Init:   init,
	}, nil
}
