package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Layouts carrying their own offset. Fractional seconds are accepted after
// the seconds field even though the layouts do not spell them out.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05Z07",
}

// Layouts without an offset, read in the event's zone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. A trailing "Z" or a numeric
// offset fixes the instant; otherwise the value is read in zone, the IANA
// name Graph reports alongside it, falling back to UTC when zone is empty
// or unknown.
func ParseTimestamp(value, zone string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	// Lowercase z is valid ISO-8601 but not accepted by time.Parse.
	if strings.HasSuffix(v, "z") {
		v = v[:len(v)-1] + "Z"
	}
	// ISO-8601 allows a space between date and time.
	if len(v) > 10 && v[10] == ' ' {
		v = v[:10] + "T" + strings.TrimLeft(v[11:], " ")
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}

	loc := location(zone)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

func location(zone string) *time.Location {
	zone = strings.TrimSpace(zone)
	if zone == "" || strings.EqualFold(zone, "UTC") {
		return time.UTC
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.UTC
	}
	return loc
}
