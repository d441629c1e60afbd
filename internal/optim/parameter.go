package optim

import "github.com/born-ml/gplace/internal/tensor"

// Parameter is an optimization variable: a flat coordinate vector updated in
// place, and the gradient of the objective with respect to it.
//
// A parameter whose gradient is nil does not participate in the objective
// and is skipped by optimizer steps.
type Parameter[T tensor.Float] struct {
	name string
	data []T
	grad []T
}

// NewParameter wraps data, which the optimizer will update in place.
func NewParameter[T tensor.Float](name string, data []T) *Parameter[T] {
	return &Parameter[T]{name: name, data: data}
}

// Name returns the parameter name.
func (p *Parameter[T]) Name() string {
	return p.name
}

// Data returns the parameter values.
func (p *Parameter[T]) Data() []T {
	return p.data
}

// Len returns the number of values.
func (p *Parameter[T]) Len() int {
	return len(p.data)
}

// Grad returns the gradient, or nil if none has been set.
func (p *Parameter[T]) Grad() []T {
	return p.grad
}

// SetGrad sets the gradient.
func (p *Parameter[T]) SetGrad(grad []T) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
func (p *Parameter[T]) ZeroGrad() {
	p.grad = nil
}

// ParamGroup is a set of parameters sharing a learning rate.
type ParamGroup[T tensor.Float] struct {
	Params []*Parameter[T]
	LR     T
}
