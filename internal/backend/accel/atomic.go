package accel

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/born-ml/gplace/internal/tensor"
)

// atomicAdd performs s[i] += v with a compare-and-swap loop on the bit
// pattern, the same technique accelerators use for floating point atomics.
func atomicAdd[T tensor.Float](s []T, i int, v T) {
	switch p := any(&s[i]).(type) {
	case *float32:
		addFloat32(p, float32(v))
	case *float64:
		addFloat64(p, float64(v))
	}
}

func addFloat32(addr *float32, delta float32) {
	//nolint:gosec // G103: float32 and uint32 share size and alignment
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		next := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(p, old, next) {
			return
		}
	}
}

func addFloat64(addr *float64, delta float64) {
	//nolint:gosec // G103: float64 and uint64 share size and alignment
	p := (*uint64)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint64(p)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(p, old, next) {
			return
		}
	}
}
