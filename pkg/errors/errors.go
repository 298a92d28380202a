// Package errors provides the tagged error type used across the simulation
// core. Callers branch on the error kind rather than on concrete types.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Kind is the failure category of an Error.
type Kind string

const (
	// KindValidation covers malformed risk, distribution or request input.
	// Always recoverable by the caller correcting input.
	KindValidation Kind = "validation"
	// KindCorrelation covers invalid correlation structures. Raised before
	// any sampling occurs.
	KindCorrelation Kind = "correlation"
	// KindComputation covers unexpected failures during sampling or
	// aggregation. Not recoverable within the run.
	KindComputation Kind = "computation"
	// KindConvergence signals that a strict-mode run finished without
	// converging. The error carries the completed iteration count.
	KindConvergence Kind = "convergence"
)

// FieldError points at the specific input field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// Error is the tagged error type for the simulation core.
type Error struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	// Iterations is set on convergence errors: the number of iterations
	// completed before the run was declared non-converged.
	Iterations int `json:"iterations,omitempty"`

	cause error
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	for _, f := range e.Fields {
		str += fmt.Sprintf("; %s", f.Error())
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error { return e.cause }

// WithField attaches a field-level detail and returns the error.
func (e *Error) WithField(field, message string) *Error {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// New creates an error with the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message, preserving the cause chain.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) *Error {
	return New(KindValidation, "invalid simulation input").WithField(field, message)
}

// Correlation creates a correlation error identifying the offending pair.
func Correlation(riskA, riskB, message string) *Error {
	e := Newf(KindCorrelation, "invalid correlation structure: %s", message)
	if riskA != "" || riskB != "" {
		e.WithField("correlation", fmt.Sprintf("%s<->%s", riskA, riskB))
	}
	return e
}

// Convergence creates a strict-mode non-convergence error carrying the
// completed iteration count.
func Convergence(iterations int) *Error {
	return &Error{
		Kind:       KindConvergence,
		Message:    fmt.Sprintf("simulation did not converge after %d iterations", iterations),
		Iterations: iterations,
	}
}

// KindOf returns the kind of err, or the empty string for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsCorrelation reports whether err is a correlation error.
func IsCorrelation(err error) bool { return KindOf(err) == KindCorrelation }

// IsComputation reports whether err is a computation error.
func IsComputation(err error) bool { return KindOf(err) == KindComputation }

// IsConvergence reports whether err is a convergence error.
func IsConvergence(err error) bool { return KindOf(err) == KindConvergence }
