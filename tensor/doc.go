// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the numeric types shared by the public gplace
// packages: the Float precision constraint, runtime data type tags and
// device residency tags.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/gplace/backend/cpu"
//	    "github.com/born-ml/gplace/tensor"
//	)
//
//	func newHost[T tensor.Float]() *cpu.Backend[T] {
//	    return cpu.New[T](0)
//	}
//
// Positions are flat slices holding every x coordinate followed by every y
// coordinate, in the precision selected by T.
package tensor
