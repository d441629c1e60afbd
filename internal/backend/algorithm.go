package backend

import (
	"fmt"

	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/placeerr"
)

// Algorithm selects the log-sum-exp wirelength computation strategy.
// All strategies produce the same value and gradient up to rounding.
type Algorithm int

// Wirelength strategies.
const (
	// NetByNet walks nets one at a time and reduces each net's pins in a
	// single fused pass. Requires the CSR encoding. Runs on every backend.
	NetByNet Algorithm = iota
	// Atomic walks pins in any order and accumulates per-net sums with
	// atomic adds keyed by the pin → net map. Accelerator only.
	Atomic
	// Sparse computes per-pin exponentials, then reduces every net as an
	// independent task over the CSR encoding, with no atomics. Requires
	// both encodings.
	Sparse
)

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case NetByNet:
		return "net-by-net"
	case Atomic:
		return "atomic"
	case Sparse:
		return "sparse"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm converts a configuration name into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "net-by-net":
		return NetByNet, nil
	case "atomic":
		return Atomic, nil
	case "sparse":
		return Sparse, nil
	default:
		return 0, placeerr.Configf("backend.ParseAlgorithm", "algorithm", "unknown algorithm %q (want net-by-net, atomic or sparse)", s)
	}
}

// CheckIndex returns a ConfigError if nets lacks an encoding the algorithm
// requires.
func (a Algorithm) CheckIndex(nets *placedb.NetIndex) error {
	const op = "backend.CheckIndex"
	if nets == nil {
		return placeerr.Configf(op, "nets", "net index is required")
	}
	if nets.NetMask == nil {
		return placeerr.Configf(op, "NetMask", "net mask is required")
	}
	switch a {
	case NetByNet:
		if !nets.HasCSR() {
			return placeerr.Configf(op, "FlatNetPin/NetPinStart", "required for algorithm %s", a)
		}
	case Atomic:
		if !nets.HasPin2Net() {
			return placeerr.Configf(op, "Pin2Net", "required for algorithm %s", a)
		}
	case Sparse:
		if !nets.HasCSR() || !nets.HasPin2Net() {
			return placeerr.Configf(op, "FlatNetPin/NetPinStart/Pin2Net", "all required for algorithm %s", a)
		}
	default:
		return placeerr.Configf(op, "algorithm", "unknown algorithm %d", int(a))
	}
	return nil
}
