package contour

import (
	"fmt"

	"github.com/pkg/errors"
)

// Configuration errors. Any of them aborts pipeline construction.
var (
	// ErrMultipleObjects means more than one connected component on a slice carries
	// both landmark labels.
	ErrMultipleObjects = errors.New("more than one object carries both landmarks")

	// ErrLandmarkNotOnContour means a landmark label exists in the object but not on
	// its traced boundary.
	ErrLandmarkNotOnContour = errors.New("landmark label missing from contour")

	// ErrLandmarkCount means the contour carries more than one incision pixel.
	ErrLandmarkCount = errors.New("contour carries more than one incision pixel")

	// ErrTraceRunaway means boundary tracing did not close within its step budget.
	ErrTraceRunaway = errors.New("boundary trace did not close")
)

// SliceError ties a configuration error to the slice that produced it.
type SliceError struct {
	Slice int
	Err   error
}

func (e *SliceError) Error() string {
	return fmt.Sprintf("slice %d: %v", e.Slice, e.Err)
}

// Cause returns the underlying error for github.com/pkg/errors.
func (e *SliceError) Cause() error { return e.Err }

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *SliceError) Unwrap() error { return e.Err }

func sliceErr(slice int, err error) error {
	return &SliceError{Slice: slice, Err: err}
}
