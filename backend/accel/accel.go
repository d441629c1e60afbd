// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package accel provides the accelerator backend.
//
// Kernels are submitted to an asynchronous stream and run as grids of
// per-pin, per-net or per-object threads. Calls returning data synchronize
// the stream; MoveBoundary does not, so callers fence with Synchronize
// before reading positions on the host.
//
// With Config.WebGPU set (float32, windows builds) the kernels run as WGSL
// compute shaders through WebGPU:
//
//	be, err := accel.New[float32](accel.Config{WebGPU: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer be.Close()
package accel

import (
	"github.com/born-ml/gplace/backend"
	internalaccel "github.com/born-ml/gplace/internal/backend/accel"
	"github.com/born-ml/gplace/tensor"
)

// Backend is the accelerator backend.
type Backend[T tensor.Float] = internalaccel.AccelBackend[T]

// Config configures the accelerator backend.
type Config = internalaccel.Config

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend[float32] = (*Backend[float32])(nil)

// New creates an accelerator backend.
func New[T tensor.Float](cfg Config) (*Backend[T], error) {
	return internalaccel.New[T](cfg)
}
