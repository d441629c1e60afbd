package wirelength

import (
	"fmt"

	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// HPWL returns Σ (max x − min x + max y − min y) over the included nets of
// nets, computed on be. It needs a consistent CSR encoding.
func HPWL[T tensor.Float](be backend.Backend[T], pos []T, nets *placedb.NetIndex) (T, error) {
	if err := backend.NetByNet.CheckIndex(nets); err != nil {
		return 0, err
	}
	if err := nets.Validate(); err != nil {
		return 0, err
	}
	if len(pos) != 2*nets.NumPins() {
		return 0, placeerr.Configf("wirelength.HPWL", "pos", "length %d, want %d", len(pos), 2*nets.NumPins())
	}
	v, err := be.HPWL(pos, nets)
	if err != nil {
		return 0, fmt.Errorf("wirelength: hpwl: %w", err)
	}
	return v, nil
}
