package calendar

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTimestamp marks an event without a start or end.
	ErrMissingTimestamp = errors.New("timestamp missing")

	// ErrInvalidDimension is returned for an unknown grouping dimension.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrMissingRange is returned when start or end is empty.
	ErrMissingRange = errors.New("start and end are required")

	// ErrPageLimit is returned when a calendar view needs more pages than
	// the service is configured to fetch.
	ErrPageLimit = errors.New("calendar view page limit exceeded")
)

// DataError reports an event whose timestamps cannot be interpreted. No
// partial aggregation is returned alongside it.
type DataError struct {
	// Index is the position of the offending event in the input.
	Index int
	Field string
	Value string
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("event %d: invalid %s %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}
