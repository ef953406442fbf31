package model

import (
	"errors"
	"time"
)

var (
	// ErrNotFound marks an unknown habit/context/score id.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation failed")
)

// DateLayout is the wire format for dates at the API boundary.
const DateLayout = "2006-01-02"

// DateOf truncates a timestamp to its calendar day in its own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
