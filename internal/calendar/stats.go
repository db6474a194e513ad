package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Bucket labels used when an event carries no value for the dimension.
const (
	UnknownStatus = "unknown"
	Uncategorized = "Uncategorized"
)

// Dimension selects how events are bucketed.
type Dimension string

const (
	ByCategory Dimension = "category"
	ByStatus   Dimension = "status"
)

// ParseDimension maps a groupBy value onto a Dimension. The empty string
// selects ByCategory; "showAs" is accepted as a synonym for "status".
func ParseDimension(s string) (Dimension, error) {
	switch strings.TrimSpace(s) {
	case "", string(ByCategory):
		return ByCategory, nil
	case string(ByStatus), "showAs":
		return ByStatus, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidDimension, s, ByCategory, ByStatus)
	}
}

// Key returns the bucket label for e. Only the first category counts.
func (d Dimension) Key(e Event) string {
	switch d {
	case ByStatus:
		if e.ShowAs != nil && *e.ShowAs != "" {
			return *e.ShowAs
		}
		return UnknownStatus
	default:
		if len(e.Categories) > 0 {
			return e.Categories[0]
		}
		return Uncategorized
	}
}

// BucketMap maps a bucket label to accumulated hours.
type BucketMap map[string]float64

// Total returns the sum of all buckets.
func Total(b BucketMap) float64 {
	var sum float64
	for _, h := range b {
		sum += h
	}
	return sum
}

// Hours returns the length of e in hours, end minus start. The result is
// negative when end precedes start.
func Hours(e Event) (float64, error) {
	start, end, err := bounds(e)
	if err != nil {
		return 0, err
	}
	return end.Sub(start).Seconds() / 3600, nil
}

// Aggregate sums event durations in hours per bucket of dim. Values are not
// rounded and negative durations are kept as they are. Any malformed event
// fails the whole call with a *DataError naming its index.
func Aggregate(events []Event, dim Dimension) (BucketMap, error) {
	if dim != ByCategory && dim != ByStatus {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, dim)
	}

	buckets := make(BucketMap)
	for i, e := range events {
		hours, err := Hours(e)
		if err != nil {
			var de *DataError
			if errors.As(err, &de) {
				de.Index = i
			}
			return nil, err
		}
		buckets[dim.Key(e)] += hours
	}
	return buckets, nil
}

func bounds(e Event) (start, end time.Time, err error) {
	start, err = parseField("start", e.Start)
	if err != nil {
		return start, end, err
	}
	end, err = parseField("end", e.End)
	return start, end, err
}

func parseField(field string, dt *DateTimeZone) (time.Time, error) {
	if dt == nil {
		return time.Time{}, &DataError{Field: field, Err: ErrMissingTimestamp}
	}
	t, err := ParseTimestamp(dt.DateTime, dt.TimeZone)
	if err != nil {
		return time.Time{}, &DataError{Field: field, Value: dt.DateTime, Err: err}
	}
	return t, nil
}
