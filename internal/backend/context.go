package backend

import (
	"math"

	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/internal/tensor"
)

// LogSumExpContext carries the intermediates of a log-sum-exp forward pass to
// its paired backward pass. It is produced by exactly one forward call and
// owned by the caller; backends never retain it.
type LogSumExpContext[T tensor.Float] struct {
	Algorithm Algorithm
	Gamma     T
	NumPins   int
	NumNets   int

	// Per-pin exponentials, x block then y block (len 2·#pins).
	ExpXY  []T // exp(x/γ), exp(y/γ)
	ExpNXY []T // exp(−x/γ), exp(−y/γ)

	// Per-net sums, x block then y block (len 2·#nets).
	ExpXYSum  []T // Σ exp(x/γ), Σ exp(y/γ)
	ExpNXYSum []T // Σ exp(−x/γ), Σ exp(−y/γ)

	NetValue []T // Per-net wirelength, zero for excluded nets
	Value    T   // Σ NetValue
}

// NewLogSumExpContext allocates zeroed buffers for the given index.
func NewLogSumExpContext[T tensor.Float](alg Algorithm, nets *placedb.NetIndex, gamma T) *LogSumExpContext[T] {
	numPins, numNets := nets.NumPins(), nets.NumNets()
	return &LogSumExpContext[T]{
		Algorithm: alg,
		Gamma:     gamma,
		NumPins:   numPins,
		NumNets:   numNets,
		ExpXY:     make([]T, 2*numPins),
		ExpNXY:    make([]T, 2*numPins),
		ExpXYSum:  make([]T, 2*numNets),
		ExpNXYSum: make([]T, 2*numNets),
		NetValue:  make([]T, numNets),
	}
}

// NetValue computes γ·(log Σe^{x/γ} + log Σe^{−x/γ} + log Σe^{y/γ} + log Σe^{−y/γ})
// for one net from its four sums.
func NetValue[T tensor.Float](gamma, sx, snx, sy, sny T) T {
	return gamma * T(math.Log(float64(sx))+math.Log(float64(snx))+math.Log(float64(sy))+math.Log(float64(sny)))
}

// Exp returns e^{v} rounded to T.
func Exp[T tensor.Float](v T) T {
	return T(math.Exp(float64(v)))
}

// SumValues reduces per-net values in index order so every strategy reports
// the same total for the same per-net values.
func SumValues[T tensor.Float](netValue []T) T {
	var s T
	for _, v := range netValue {
		s += v
	}
	return s
}

// Check scans the per-net sums of included nets and the total value for
// overflow (+Inf sums), underflow (zero sums) and NaN, reporting the first
// offending net.
func (c *LogSumExpContext[T]) Check(nets *placedb.NetIndex) error {
	const op = "wirelength.logsumexp"
	names := [4]string{"sum exp(x/gamma)", "sum exp(y/gamma)", "sum exp(-x/gamma)", "sum exp(-y/gamma)"}
	for n := 0; n < c.NumNets; n++ {
		if !nets.Included(n) {
			continue
		}
		sums := [4]T{c.ExpXYSum[n], c.ExpXYSum[c.NumNets+n], c.ExpNXYSum[n], c.ExpNXYSum[c.NumNets+n]}
		for k, s := range sums {
			var reason string
			switch {
			case math.IsNaN(float64(s)):
				reason = "not a number"
			case math.IsInf(float64(s), 0):
				reason = "exponential overflow; reduce the coordinate scale or increase gamma"
			case s <= 0:
				reason = "exponential underflow; reduce the coordinate scale or increase gamma"
			default:
				continue
			}
			ne := placeerr.NewNumericalError(op, names[k], float64(s), reason)
			ne.Net = n
			return ne
		}
	}
	if !tensor.IsFinite(c.Value) {
		return placeerr.NewNumericalError(op, "value", float64(c.Value), "non-finite wirelength")
	}
	return nil
}
