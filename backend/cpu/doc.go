// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host backend for placement kernels.
//
// # Overview
//
// The host backend runs the wirelength, boundary projection and HPWL kernels
// over a configurable number of worker goroutines:
//   - Net-by-net and sparse log-sum-exp strategies
//   - Float32 and Float64 support
//   - Pure Go, no CGO
//
// The atomic strategy needs accelerator atomics and is rejected with a
// capability error; use the accel package for it.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/gplace/backend"
//	    "github.com/born-ml/gplace/backend/cpu"
//	    "github.com/born-ml/gplace/wirelength"
//	)
//
//	func main() {
//	    nets, _ := wirelength.NewNetIndex([][]int{{0, 1}, {1, 2, 3}}, 4)
//	    be := cpu.New[float64](8)
//	    wl, err := wirelength.NewLogSumExp(wirelength.Config[float64]{
//	        Algorithm: backend.Sparse,
//	        Gamma:     4,
//	    }, nets, be)
//	    ...
//	}
//
// # Thread Safety
//
// Every call completes before returning. A backend may be shared, but the
// positions passed to it must not be mutated concurrently.
package cpu
