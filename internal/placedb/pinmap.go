package placedb

import (
	"github.com/born-ml/gplace/internal/parallel"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// PinMap places pins relative to their owning objects:
// pin p sits at (x[Pin2Node[p]] + OffsetX[p], y[Pin2Node[p]] + OffsetY[p]).
type PinMap[T tensor.Float] struct {
	Pin2Node []int32
	OffsetX  []T
	OffsetY  []T
}

// NumPins returns the number of pins.
func (m *PinMap[T]) NumPins() int { return len(m.Pin2Node) }

// Validate checks lengths and object references against numObjects.
func (m *PinMap[T]) Validate(numObjects int) error {
	const op = "placedb.PinMap"
	n := len(m.Pin2Node)
	if len(m.OffsetX) != n || len(m.OffsetY) != n {
		return placeerr.Configf(op, "Offset", "offset lengths %d/%d, want %d", len(m.OffsetX), len(m.OffsetY), n)
	}
	for p, o := range m.Pin2Node {
		if o < 0 || int(o) >= numObjects {
			return placeerr.Configf(op, "Pin2Node", "pin %d owned by object %d outside [0,%d)", p, o, numObjects)
		}
	}
	return nil
}

// PinPositions writes pin coordinates derived from object positions objPos
// (length 2·#objects) into pinPos (length 2·#pins).
func (m *PinMap[T]) PinPositions(objPos, pinPos []T, cfg parallel.Config) {
	numObjects := len(objPos) / 2
	numPins := len(m.Pin2Node)
	parallel.For(numPins, func(p int) {
		o := int(m.Pin2Node[p])
		pinPos[p] = objPos[o] + m.OffsetX[p]
		pinPos[numPins+p] = objPos[numObjects+o] + m.OffsetY[p]
	}, cfg)
}

// ScatterGradient accumulates pin gradients onto their owning objects.
// objGrad is overwritten.
func (m *PinMap[T]) ScatterGradient(pinGrad, objGrad []T) {
	numObjects := len(objGrad) / 2
	numPins := len(m.Pin2Node)
	tensor.Fill(objGrad, 0)
	for p := 0; p < numPins; p++ {
		o := int(m.Pin2Node[p])
		objGrad[o] += pinGrad[p]
		objGrad[numObjects+o] += pinGrad[numPins+p]
	}
}
