// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package wirelength provides the log-sum-exp wirelength operator and exact
// half-perimeter wirelength.
//
// For a net e with pins at x_i the smoothed x extent is
//
//	γ·ln Σ exp(x_i/γ) + γ·ln Σ exp(−x_i/γ)
//
// and likewise in y. Smaller γ tracks max − min more closely at the cost of
// smoothness and overflow headroom.
//
// # Basic Usage
//
//	nets, err := wirelength.NewNetIndex([][]int{{0, 4}, {1, 2, 3}}, 5)
//	if err != nil {
//	    return err
//	}
//	wl, err := wirelength.NewLogSumExp(wirelength.Config[float64]{
//	    Algorithm: backend.NetByNet,
//	    Gamma:     0.5,
//	}, nets, cpu.New[float64](0))
//	if err != nil {
//	    return err
//	}
//	value, grad, err := wl.Evaluate(pins) // pins: x block then y block
package wirelength

import (
	"github.com/born-ml/gplace/backend"
	"github.com/born-ml/gplace/internal/placedb"
	"github.com/born-ml/gplace/internal/wirelength"
	"github.com/born-ml/gplace/tensor"
)

// LogSumExp is the wirelength operator.
type LogSumExp[T tensor.Float] = wirelength.LogSumExp[T]

// Config selects the strategy and smoothing coefficient.
type Config[T tensor.Float] = wirelength.Config[T]

// NetIndex holds the net→pin and pin→net encodings and the net mask.
type NetIndex = placedb.NetIndex

// NewNetIndex builds both encodings from per-net pin lists. Every net starts
// included.
func NewNetIndex(nets [][]int, numPins int) (*NetIndex, error) {
	return placedb.NewNetIndex(nets, numPins)
}

// NewLogSumExp validates cfg against nets and be and returns the operator.
func NewLogSumExp[T tensor.Float](cfg Config[T], nets *NetIndex, be backend.Backend[T]) (*LogSumExp[T], error) {
	return wirelength.NewLogSumExp(cfg, nets, be)
}

// HPWL returns the half-perimeter wirelength of the included nets.
func HPWL[T tensor.Float](be backend.Backend[T], pos []T, nets *NetIndex) (T, error) {
	return wirelength.HPWL(be, pos, nets)
}
