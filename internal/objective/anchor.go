package objective

import (
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Anchor returns the penalty ½‖pos − ref‖² with gradient pos − ref. It keeps
// synthetic runs from collapsing every object onto its nets when no real
// density model is plugged in. ref is copied.
func Anchor[T tensor.Float](ref []T) DensityFunc[T] {
	ref = tensor.Clone(ref)
	return func(pos, grad []T) (T, error) {
		if len(pos) != len(ref) || len(grad) != len(ref) {
			return 0, placeerr.Configf("objective.Anchor", "pos", "length %d, want %d", len(pos), len(ref))
		}
		var sum T
		for i, v := range pos {
			d := v - ref[i]
			grad[i] = d
			sum += d * d
		}
		return sum / 2, nil
	}
}
