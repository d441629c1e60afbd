// Package boundary keeps movable and filler objects inside the placement
// region.
package boundary

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Projector clamps object positions so that each movable or filler footprint
// lies within the region: x ← clamp(x, xl, xh − w), y ← clamp(y, yl, yh − h).
// Fixed objects are never written.
type Projector[T tensor.Float] struct {
	layout  *placedb.Layout[T]
	backend backend.Backend[T]
}

// NewProjector validates layout and returns a projector running on be.
func NewProjector[T tensor.Float](layout *placedb.Layout[T], be backend.Backend[T]) (*Projector[T], error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Projector[T]{layout: layout, backend: be}, nil
}

// Layout returns the projected layout.
func (p *Projector[T]) Layout() *placedb.Layout[T] { return p.layout }

// Project clamps pos in place. On the accelerator the clamp may still be in
// flight when Project returns; fence with the backend's Synchronize before
// reading pos on the host.
func (p *Projector[T]) Project(pos []T) error {
	if len(pos) != p.layout.PositionLen() {
		return placeerr.Configf("boundary.Project", "pos", "length %d, want %d", len(pos), p.layout.PositionLen())
	}
	return p.backend.MoveBoundary(pos, p.layout)
}
