package sot

import (
	"errors"
	"fmt"
)

// ErrEmptyCrop reports that no real points fell inside a crop region. It
// signals possible full occlusion or a sensor dropout; callers treat it as a
// missed observation, not as a fatal condition.
var ErrEmptyCrop = errors.New("sot: no points in crop region")

// ErrTrackLost is the sequence-level status for a track that exhausted its
// low-confidence budget. Frames after the transition still produce
// best-effort boxes; the error only annotates the trajectory.
var ErrTrackLost = errors.New("sot: track lost")

// ShapeError reports a violation of a fixed-shape invariant: a point set,
// feature matrix, or parameter tensor whose dimensions do not match what the
// current configuration requires. Shape violations are fatal for the
// sequence and propagate to the caller immediately.
type ShapeError struct {
	Context string
	Got     [2]int
	Want    [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("sot: %s: got shape %dx%d, want %dx%d",
		e.Context, e.Got[0], e.Got[1], e.Want[0], e.Want[1])
}

// IsShapeError reports whether err is, or wraps, a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
