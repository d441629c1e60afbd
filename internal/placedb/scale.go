package placedb

import "github.com/born-ml/gplace/internal/tensor"

// Scaled returns a copy of d with every coordinate and size multiplied by
// f. The net index is shared since it holds no coordinates.
func (d *Design[T]) Scaled(f T) *Design[T] {
	scale := func(v []T) []T {
		out := tensor.Clone(v)
		tensor.Scale(f, out)
		return out
	}
	l := d.Layout
	layout := &Layout[T]{
		SizeX:      scale(l.SizeX),
		SizeY:      scale(l.SizeY),
		NumMovable: l.NumMovable,
		NumFiller:  l.NumFiller,
		Region: Region[T]{
			XL: l.Region.XL * f, YL: l.Region.YL * f,
			XH: l.Region.XH * f, YH: l.Region.YH * f,
		},
	}
	var pins *PinMap[T]
	if d.Pins != nil {
		pins = &PinMap[T]{
			Pin2Node: d.Pins.Pin2Node,
			OffsetX:  scale(d.Pins.OffsetX),
			OffsetY:  scale(d.Pins.OffsetY),
		}
	}
	return &Design[T]{Layout: layout, Nets: d.Nets, Pins: pins, Init: scale(d.Init)}
}
