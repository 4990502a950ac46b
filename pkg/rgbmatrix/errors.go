package rgbmatrix

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	ErrInvalidPins     = errors.New("rgbmatrix: invalid pin")
	ErrInvalidArgument = errors.New("rgbmatrix: invalid argument")
	ErrNoTimer         = errors.New("rgbmatrix: no timer available")
	ErrAllocation      = errors.New("rgbmatrix: buffer allocation failed")
	// ErrState is returned when an operation is not valid in the current
	// lifecycle state.
	ErrState         = errors.New("rgbmatrix: invalid state")
	ErrDeinitialized = errors.New("rgbmatrix: matrix was deinitialized")
	// ErrSwapPending is returned when writing a double buffer whose previous
	// commit has not been displayed yet.
	ErrSwapPending = errors.New("rgbmatrix: buffer swap pending")
)

// InternalError wraps an unexpected collaborator failure together with its
// raw status code (an errno when one is available, otherwise -1).
type InternalError struct {
	Op   string
	Code int
	Err  error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("rgbmatrix: internal error #%d in %s: %v", e.Code, e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func internalError(op string, err error) error {
	code := -1
	var errno syscall.Errno
	if errors.As(err, &errno) {
		code = int(errno)
	}
	return &InternalError{Op: op, Code: code, Err: err}
}
