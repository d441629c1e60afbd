// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/gplace/internal/tensor"

// Float is the constraint for the working precision: float32 or float64.
type Float = tensor.Float

// DataType tags the working precision at runtime.
type DataType = tensor.DataType

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Device identifies where positions reside.
type Device = tensor.Device

// Supported devices.
const (
	Host        = tensor.Host
	Accelerator = tensor.Accelerator
)

// DataTypeOf returns the DataType of T.
func DataTypeOf[T Float]() DataType {
	return tensor.DataTypeOf[T]()
}
