// Package placeerr defines the error taxonomy shared by the placement core.
//
// Three classes exist, each with a sentinel for errors.Is and a typed error
// carrying diagnostic context for errors.As:
//   - ErrConfig: invalid construction-time input, fatal and non-retryable.
//   - ErrCapability: an operation the selected device cannot execute.
//   - ErrNumerical: non-finite or degenerate numbers detected during a step.
package placeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrConfig     = errors.New("invalid configuration")
	ErrCapability = errors.New("capability mismatch")
	ErrNumerical  = errors.New("numerical degeneracy")
)

// ConfigError describes a rejected construction-time input.
type ConfigError struct {
	Op     string // Operation that rejected the input (e.g., "optim.NewConjugateGradient")
	Field  string // Offending field or argument
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s: %s", e.Op, ErrConfig, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrConfig, e.Reason)
}

// Unwrap returns ErrConfig.
func (e *ConfigError) Unwrap() error { return ErrConfig }

// Configf builds a ConfigError with a formatted reason.
func Configf(op, field, format string, args ...any) *ConfigError {
	return &ConfigError{Op: op, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CapabilityError reports a kernel that is not available for the residency
// or precision of the data. It never triggers a fallback.
type CapabilityError struct {
	Op        string
	Device    string
	Algorithm string
	Reason    string
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, ErrCapability)
	if e.Algorithm != "" {
		fmt.Fprintf(&b, ": algorithm %s", e.Algorithm)
	}
	if e.Device != "" {
		fmt.Fprintf(&b, " on %s", e.Device)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Unwrap returns ErrCapability.
func (e *CapabilityError) Unwrap() error { return ErrCapability }

// NumericalError reports a degenerate or non-finite quantity. Net and Object
// are -1 when not applicable; Iteration is -1 outside an optimizer step.
type NumericalError struct {
	Op        string
	Iteration int
	Net       int
	Object    int
	Quantity  string  // What was being computed (e.g., "step size", "gradient")
	Value     float64 // Offending value
	Reason    string
}

// NewNumericalError returns a NumericalError with no iteration, net or object
// attached.
func NewNumericalError(op, quantity string, value float64, reason string) *NumericalError {
	return &NumericalError{
		Op:        op,
		Iteration: -1,
		Net:       -1,
		Object:    -1,
		Quantity:  quantity,
		Value:     value,
		Reason:    reason,
	}
}

// Error implements the error interface.
func (e *NumericalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s = %g", e.Op, ErrNumerical, e.Quantity, e.Value)
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.Iteration >= 0 {
		fmt.Fprintf(&b, " at iteration %d", e.Iteration)
	}
	if e.Net >= 0 {
		fmt.Fprintf(&b, " net %d", e.Net)
	}
	if e.Object >= 0 {
		fmt.Fprintf(&b, " object %d", e.Object)
	}
	return b.String()
}

// Unwrap returns ErrNumerical.
func (e *NumericalError) Unwrap() error { return ErrNumerical }

// AtIteration annotates err with the optimizer iteration if it carries a
// NumericalError without one. Other errors are returned unchanged.
//
// Wrapping messages are rendered when the wrap happens, so a NumericalError
// that is already wrapped gets an outer error naming the iteration.
func AtIteration(err error, iter int) error {
	var ne *NumericalError
	if !errors.As(err, &ne) || ne.Iteration >= 0 {
		return err
	}
	ne.Iteration = iter
	if err == error(ne) {
		return ne
	}
	return &iterationError{err: err, iteration: iter}
}

type iterationError struct {
	err       error
	iteration int
}

func (e *iterationError) Error() string {
	return fmt.Sprintf("%v (at iteration %d)", e.err, e.iteration)
}

func (e *iterationError) Unwrap() error { return e.err }
