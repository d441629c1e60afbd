// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend defines the capability interface implemented by the cpu
// and accel backends, and the wirelength strategies they may support.
package backend

import (
	"github.com/born-ml/gplace/internal/backend"
	"github.com/born-ml/gplace/tensor"
)

// Backend executes placement kernels on one device.
type Backend[T tensor.Float] = backend.Backend[T]

// Algorithm selects the log-sum-exp wirelength strategy.
type Algorithm = backend.Algorithm

// Wirelength strategies.
const (
	NetByNet = backend.NetByNet
	Atomic   = backend.Atomic
	Sparse   = backend.Sparse
)

// ParseAlgorithm converts "net-by-net", "atomic" or "sparse" into an
// Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	return backend.ParseAlgorithm(s)
}
