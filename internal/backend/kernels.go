package backend

import (
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/tensor"
)

// The per-element kernel bodies below are shared by every backend so that
// host and accelerator paths round identically. Backends only differ in how
// they schedule them.

// ExpPin caches the four exponentials of pin p.
func (c *LogSumExpContext[T]) ExpPin(pos []T, p int) {
	np := c.NumPins
	x, y := pos[p], pos[np+p]
	c.ExpXY[p] = Exp(x / c.Gamma)
	c.ExpNXY[p] = Exp(-x / c.Gamma)
	c.ExpXY[np+p] = Exp(y / c.Gamma)
	c.ExpNXY[np+p] = Exp(-y / c.Gamma)
}

// ReduceNet sums the cached exponentials of net n over its CSR pin range.
func (c *LogSumExpContext[T]) ReduceNet(nets *placedb.NetIndex, n int) {
	np, nn := c.NumPins, c.NumNets
	var sx, snx, sy, sny T
	for _, pin := range nets.Pins(n) {
		p := int(pin)
		sx += c.ExpXY[p]
		snx += c.ExpNXY[p]
		sy += c.ExpXY[np+p]
		sny += c.ExpNXY[np+p]
	}
	c.ExpXYSum[n], c.ExpNXYSum[n] = sx, snx
	c.ExpXYSum[nn+n], c.ExpNXYSum[nn+n] = sy, sny
}

// FinishNet turns the four sums of net n into its wirelength contribution.
func (c *LogSumExpContext[T]) FinishNet(nets *placedb.NetIndex, n int) {
	if !nets.Included(n) {
		c.NetValue[n] = 0
		return
	}
	nn := c.NumNets
	c.NetValue[n] = NetValue(c.Gamma, c.ExpXYSum[n], c.ExpNXYSum[n], c.ExpXYSum[nn+n], c.ExpNXYSum[nn+n])
}

// ForwardNet runs the fused exponential, reduction and value pass for net n.
func (c *LogSumExpContext[T]) ForwardNet(pos []T, nets *placedb.NetIndex, n int) {
	if !nets.Included(n) {
		c.NetValue[n] = 0
		return
	}
	for _, p := range nets.Pins(n) {
		c.ExpPin(pos, int(p))
	}
	c.ReduceNet(nets, n)
	c.FinishNet(nets, n)
}

// GradPin writes gradOut·∂value/∂pos for pin p of net n into grad. Pins of
// excluded nets receive zero.
func (c *LogSumExpContext[T]) GradPin(nets *placedb.NetIndex, n, p int, gradOut T, grad []T) {
	np, nn := c.NumPins, c.NumNets
	if !nets.Included(n) {
		grad[p], grad[np+p] = 0, 0
		return
	}
	grad[p] = gradOut * (c.ExpXY[p]/c.ExpXYSum[n] - c.ExpNXY[p]/c.ExpNXYSum[n])
	grad[np+p] = gradOut * (c.ExpXY[np+p]/c.ExpXYSum[nn+n] - c.ExpNXY[np+p]/c.ExpNXYSum[nn+n])
}

// ClampObject moves object i back inside the region so that its footprint
// fits: x ← min(max(x, xl), xh − w), and likewise for y.
func ClampObject[T tensor.Float](pos []T, layout *placedb.Layout[T], i int) {
	n := layout.NumObjects()
	r := layout.Region
	pos[i] = min(max(pos[i], r.XL), r.XH-layout.SizeX[i])
	pos[n+i] = min(max(pos[n+i], r.YL), r.YH-layout.SizeY[i])
}

// NetHPWL returns the exact half-perimeter wirelength of net n, or zero for
// excluded nets.
func NetHPWL[T tensor.Float](pos []T, nets *placedb.NetIndex, n int) T {
	if !nets.Included(n) {
		return 0
	}
	np := len(pos) / 2
	pins := nets.Pins(n)
	if len(pins) == 0 {
		return 0
	}
	first := pins[0]
	minX, maxX := pos[first], pos[first]
	minY, maxY := pos[np+int(first)], pos[np+int(first)]
	for _, p := range pins[1:] {
		x, y := pos[p], pos[np+int(p)]
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return maxX - minX + maxY - minY
}

// BoundaryRanges returns the object index ranges written by boundary
// projection: movable objects and fillers.
func BoundaryRanges[T tensor.Float](layout *placedb.Layout[T]) (movableEnd, fillerStart, n int) {
	n = layout.NumObjects()
	return layout.NumMovable, n - layout.NumFiller, n
}
