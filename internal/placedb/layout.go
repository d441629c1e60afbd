package placedb

import (
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// Kind classifies an object.
type Kind uint8

// Object kinds.
const (
	Movable Kind = iota
	Fixed
	Filler
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Movable:
		return "movable"
	case Fixed:
		return "fixed"
	case Filler:
		return "filler"
	default:
		return "unknown"
	}
}

// Region is the placement box [XL, XH] × [YL, YH].
type Region[T tensor.Float] struct {
	XL, YL, XH, YH T
}

// Width returns XH − XL.
func (r Region[T]) Width() T { return r.XH - r.XL }

// Height returns YH − YL.
func (r Region[T]) Height() T { return r.YH - r.YL }

// Layout describes the objects being placed.
//
// Objects are ordered movable first, then fixed, then filler:
// [0, NumMovable) are movable, [NumObjects−NumFiller, NumObjects) are
// fillers and everything in between is fixed.
type Layout[T tensor.Float] struct {
	SizeX      []T // Object widths
	SizeY      []T // Object heights
	NumMovable int
	NumFiller  int
	Region     Region[T]
}

// NewLayout validates and returns a layout.
func NewLayout[T tensor.Float](sizeX, sizeY []T, numMovable, numFiller int, region Region[T]) (*Layout[T], error) {
	l := &Layout[T]{
		SizeX:      sizeX,
		SizeY:      sizeY,
		NumMovable: numMovable,
		NumFiller:  numFiller,
		Region:     region,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// NumObjects returns the total object count.
func (l *Layout[T]) NumObjects() int { return len(l.SizeX) }

// NumFixed returns the number of fixed objects.
func (l *Layout[T]) NumFixed() int { return len(l.SizeX) - l.NumMovable - l.NumFiller }

// PositionLen returns the length of a position array for this layout.
func (l *Layout[T]) PositionLen() int { return 2 * len(l.SizeX) }

// Kind returns the kind of object i.
func (l *Layout[T]) Kind(i int) Kind {
	switch {
	case i < l.NumMovable:
		return Movable
	case i >= len(l.SizeX)-l.NumFiller:
		return Filler
	default:
		return Fixed
	}
}

// IsFixed reports whether object i is fixed.
func (l *Layout[T]) IsFixed(i int) bool {
	return i >= l.NumMovable && i < len(l.SizeX)-l.NumFiller
}

// Validate checks sizes, counts and the region.
func (l *Layout[T]) Validate() error {
	const op = "placedb.Layout"
	n := len(l.SizeX)
	if len(l.SizeY) != n {
		return placeerr.Configf(op, "SizeY", "length %d, want %d", len(l.SizeY), n)
	}
	if l.NumMovable < 0 || l.NumFiller < 0 || l.NumMovable+l.NumFiller > n {
		return placeerr.Configf(op, "NumMovable/NumFiller", "%d movable + %d filler exceed %d objects",
			l.NumMovable, l.NumFiller, n)
	}
	r := l.Region
	if !(r.XH > r.XL) || !(r.YH > r.YL) {
		return placeerr.Configf(op, "Region", "empty region [%g,%g]x[%g,%g]",
			float64(r.XL), float64(r.XH), float64(r.YL), float64(r.YH))
	}
	for i := 0; i < n; i++ {
		if l.SizeX[i] < 0 || l.SizeY[i] < 0 || !tensor.IsFinite(l.SizeX[i]) || !tensor.IsFinite(l.SizeY[i]) {
			return placeerr.Configf(op, "Size", "object %d has invalid size %gx%g",
				i, float64(l.SizeX[i]), float64(l.SizeY[i]))
		}
	}
	return nil
}
