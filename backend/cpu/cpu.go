// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/gplace/backend"
	internalcpu "github.com/born-ml/gplace/internal/backend/cpu"
	"github.com/born-ml/gplace/tensor"
)

// Backend is the host backend.
type Backend[T tensor.Float] = internalcpu.CPUBackend[T]

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend[float32] = (*Backend[float32])(nil)

// New creates a host backend with numThreads workers (0 uses every CPU).
//
// Example:
//
//	be := cpu.New[float32](0)
//	defer be.Close()
func New[T tensor.Float](numThreads int) *Backend[T] {
	return internalcpu.New[T](numThreads)
}
