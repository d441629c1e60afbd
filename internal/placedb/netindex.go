package placedb

import (
	"github.com/born-ml/gplace/internal/placeerr"
)

// NetIndex is the static net/pin connectivity.
//
// Two encodings may be present:
//   - CSR: FlatNetPin lists the pins of net 0, then net 1, ...;
//     NetPinStart[n] is the offset of net n in FlatNetPin, with
//     len(NetPinStart) = #nets+1 and NetPinStart[#nets] = #pins.
//   - Pin2Net: dense pin → net map, len = #pins.
//
// NetMask excludes nets from the objective without removing them from either
// encoding.
type NetIndex struct {
	FlatNetPin  []int32
	NetPinStart []int32
	Pin2Net     []int32
	NetMask     []uint8
	numPins     int
}

// NewNetIndex builds both encodings from per-net pin lists. Every net is
// initially included except degenerate nets with fewer than two pins.
func NewNetIndex(nets [][]int, numPins int) (*NetIndex, error) {
	const op = "placedb.NewNetIndex"
	x := &NetIndex{
		FlatNetPin:  make([]int32, 0, numPins),
		NetPinStart: make([]int32, len(nets)+1),
		Pin2Net:     make([]int32, numPins),
		NetMask:     make([]uint8, len(nets)),
		numPins:     numPins,
	}
	for i := range x.Pin2Net {
		x.Pin2Net[i] = -1
	}
	for n, pins := range nets {
		x.NetPinStart[n] = int32(len(x.FlatNetPin))
		for _, p := range pins {
			if p < 0 || p >= numPins {
				return nil, placeerr.Configf(op, "nets", "net %d references pin %d outside [0,%d)", n, p, numPins)
			}
			if x.Pin2Net[p] >= 0 {
				return nil, placeerr.Configf(op, "nets", "pin %d belongs to nets %d and %d", p, x.Pin2Net[p], n)
			}
			x.Pin2Net[p] = int32(n)
			x.FlatNetPin = append(x.FlatNetPin, int32(p))
		}
		if len(pins) >= 2 {
			x.NetMask[n] = 1
		}
	}
	if len(x.FlatNetPin) != numPins {
		return nil, placeerr.Configf(op, "nets", "%d pins assigned to nets, want %d", len(x.FlatNetPin), numPins)
	}
	x.NetPinStart[len(nets)] = int32(numPins)
	return x, nil
}

// NewPin2NetIndex builds an index carrying only the dense pin → net map, as
// consumed by the atomic strategy.
func NewPin2NetIndex(pin2net []int32, numNets int) (*NetIndex, error) {
	x := &NetIndex{
		Pin2Net: pin2net,
		NetMask: make([]uint8, numNets),
		numPins: len(pin2net),
	}
	degree := make([]int, numNets)
	for p, n := range pin2net {
		if n < 0 || int(n) >= numNets {
			return nil, placeerr.Configf("placedb.NewPin2NetIndex", "pin2net", "pin %d maps to net %d outside [0,%d)", p, n, numNets)
		}
		degree[n]++
	}
	for n, d := range degree {
		if d >= 2 {
			x.NetMask[n] = 1
		}
	}
	return x, nil
}

// NumNets returns the number of nets.
func (x *NetIndex) NumNets() int { return len(x.NetMask) }

// NumPins returns the number of pins.
func (x *NetIndex) NumPins() int {
	if x.numPins == 0 {
		if x.Pin2Net != nil {
			return len(x.Pin2Net)
		}
		return len(x.FlatNetPin)
	}
	return x.numPins
}

// HasCSR reports whether the flat pin list and start offsets are present.
func (x *NetIndex) HasCSR() bool { return x.FlatNetPin != nil && x.NetPinStart != nil }

// HasPin2Net reports whether the dense pin → net map is present.
func (x *NetIndex) HasPin2Net() bool { return x.Pin2Net != nil }

// Included reports whether net n contributes to the objective.
func (x *NetIndex) Included(n int) bool { return x.NetMask[n] != 0 }

// Degree returns the pin count of net n. It requires the CSR encoding.
func (x *NetIndex) Degree(n int) int {
	return int(x.NetPinStart[n+1] - x.NetPinStart[n])
}

// Pins returns the pins of net n from the CSR encoding.
func (x *NetIndex) Pins(n int) []int32 {
	return x.FlatNetPin[x.NetPinStart[n]:x.NetPinStart[n+1]]
}

// MaskByDegree excludes nets whose degree is at least ignoreDegree, as well
// as degenerate nets with fewer than two pins. ignoreDegree <= 0 disables the
// degree threshold. It returns the number of included nets.
func (x *NetIndex) MaskByDegree(ignoreDegree int) int {
	degree := x.degrees()
	included := 0
	for n, d := range degree {
		keep := d >= 2 && (ignoreDegree <= 0 || d < ignoreDegree)
		if keep {
			x.NetMask[n] = 1
			included++
		} else {
			x.NetMask[n] = 0
		}
	}
	return included
}

func (x *NetIndex) degrees() []int {
	degree := make([]int, x.NumNets())
	if x.HasCSR() {
		// Malformed offsets count as empty nets; Validate reports them.
		if len(x.NetPinStart) == len(degree)+1 {
			for n := range degree {
				degree[n] = max(x.Degree(n), 0)
			}
		}
		return degree
	}
	for _, n := range x.Pin2Net {
		if n >= 0 && int(n) < len(degree) {
			degree[n]++
		}
	}
	return degree
}

// Validate checks the internal consistency of whichever encodings are
// present. When both are present, every pin listed under net n in the CSR
// encoding must map to n in Pin2Net.
func (x *NetIndex) Validate() error {
	const op = "placedb.NetIndex"
	if !x.HasCSR() && !x.HasPin2Net() {
		return placeerr.Configf(op, "", "no connectivity encoding present")
	}
	numNets := x.NumNets()
	numPins := x.NumPins()
	if x.HasCSR() {
		if len(x.NetPinStart) != numNets+1 {
			return placeerr.Configf(op, "NetPinStart", "length %d, want #nets+1 = %d", len(x.NetPinStart), numNets+1)
		}
		if int(x.NetPinStart[numNets]) != len(x.FlatNetPin) {
			return placeerr.Configf(op, "NetPinStart", "last entry %d, want #pins = %d", x.NetPinStart[numNets], len(x.FlatNetPin))
		}
		for n := 0; n < numNets; n++ {
			if x.NetPinStart[n] > x.NetPinStart[n+1] {
				return placeerr.Configf(op, "NetPinStart", "offsets decrease at net %d", n)
			}
		}
		for j, p := range x.FlatNetPin {
			if p < 0 || int(p) >= numPins {
				return placeerr.Configf(op, "FlatNetPin", "entry %d references pin %d outside [0,%d)", j, p, numPins)
			}
		}
	}
	if x.HasPin2Net() {
		if len(x.Pin2Net) != numPins {
			return placeerr.Configf(op, "Pin2Net", "length %d, want %d", len(x.Pin2Net), numPins)
		}
		for p, n := range x.Pin2Net {
			if n < 0 || int(n) >= numNets {
				return placeerr.Configf(op, "Pin2Net", "pin %d maps to net %d outside [0,%d)", p, n, numNets)
			}
		}
	}
	if x.HasCSR() && x.HasPin2Net() {
		for n := 0; n < numNets; n++ {
			for _, p := range x.Pins(n) {
				if int(x.Pin2Net[p]) != n {
					return placeerr.Configf(op, "Pin2Net", "pin %d listed under net %d but maps to net %d", p, n, x.Pin2Net[p])
				}
			}
		}
	}
	for n, d := range x.degrees() {
		if x.NetMask[n] != 0 && d == 0 {
			return placeerr.Configf(op, "NetMask", "empty net %d is included", n)
		}
	}
	return nil
}
