package graphdb

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOperator is returned for operators outside the step vocabulary
	// and for recognized steps that are not implemented
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrTypeConversion is returned when a value cannot be read as the type a step needs
	ErrTypeConversion = errors.New("type conversion error")
	// ErrTerminatorMismatch is returned when no step produced the shape being collected
	ErrTerminatorMismatch = errors.New("terminator mismatch")
	// ErrNotFound is returned when a mutation targets a vertex that does not exist
	ErrNotFound = errors.New("not found")
)

// StepError reports which instruction of a program failed
type StepError struct {
	Index    int
	Operator string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Operator, e.Err)
}

// Cause lets errors.Cause reach the underlying failure
func (e *StepError) Cause() error { return e.Err }

func (e *StepError) Unwrap() error { return e.Err }
