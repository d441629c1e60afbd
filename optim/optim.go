// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/gplace/internal/optim"
	"github.com/born-ml/gplace/internal/placeerr"
	"github.com/born-ml/gplace/tensor"
)

// Error classes, for errors.Is.
var (
	ErrConfig     = placeerr.ErrConfig
	ErrCapability = placeerr.ErrCapability
	ErrNumerical  = placeerr.ErrNumerical
)

// Optimizer is the interface shared by all optimizers.
type Optimizer[T tensor.Float] = optim.Optimizer[T]

// Parameter is a named position vector with its gradient.
type Parameter[T tensor.Float] = optim.Parameter[T]

// ParamGroup is a set of parameters sharing a learning rate.
type ParamGroup[T tensor.Float] = optim.ParamGroup[T]

// Stats is a diagnostic snapshot of an optimizer.
type Stats = optim.Stats

// StepHook observes completed steps.
type StepHook = optim.StepHook

// Synchronizer is a device completion fence.
type Synchronizer = optim.Synchronizer

// ObjectiveFunc returns the objective value and gradient at pos.
type ObjectiveFunc[T tensor.Float] = optim.ObjectiveFunc[T]

// ConstraintFunc projects pos onto the feasible set in place.
type ConstraintFunc[T tensor.Float] = optim.ConstraintFunc[T]

// NewParameter wraps data, which the optimizer updates in place.
func NewParameter[T tensor.Float](name string, data []T) *Parameter[T] {
	return optim.NewParameter(name, data)
}

// Nesterov

// Nesterov is the accelerated gradient optimizer.
type Nesterov[T tensor.Float] = optim.Nesterov[T]

// NesterovConfig configures Nesterov.
type NesterovConfig[T tensor.Float] = optim.NesterovConfig[T]

// Nesterov defaults.
const (
	DefaultMaxBacktracks = optim.DefaultMaxBacktracks
	DefaultAcceptRatio   = optim.DefaultAcceptRatio
)

// NewNesterov creates a Nesterov optimizer.
func NewNesterov[T tensor.Float](groups []ParamGroup[T], cfg NesterovConfig[T]) (*Nesterov[T], error) {
	return optim.NewNesterov(groups, cfg)
}

// Conjugate gradient

// ConjugateGradient is the Polak–Ribière conjugate gradient optimizer.
type ConjugateGradient[T tensor.Float] = optim.ConjugateGradient[T]

// ConjugateGradientConfig configures ConjugateGradient.
type ConjugateGradientConfig[T tensor.Float] = optim.ConjugateGradientConfig[T]

// LineSearchFunc searches along a direction and returns the accepted step,
// the evaluations spent and the objective at the step.
type LineSearchFunc[T tensor.Float] = optim.LineSearchFunc[T]

// BacktrackingLineSearch is an Armijo backtracking line search.
type BacktrackingLineSearch[T tensor.Float] = optim.BacktrackingLineSearch[T]

// NewConjugateGradient creates a conjugate gradient optimizer.
func NewConjugateGradient[T tensor.Float](groups []ParamGroup[T], cfg ConjugateGradientConfig[T]) (*ConjugateGradient[T], error) {
	return optim.NewConjugateGradient(groups, cfg)
}
