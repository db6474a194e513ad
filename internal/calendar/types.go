package calendar

import (
	"bytes"
	"encoding/json"
)

// Field projections requested from Graph. The view projection feeds the raw
// /calendar/view response; the stats projection carries only what
// aggregation reads.
const (
	ViewFields  = "subject,start,end,isAllDay,showAs,categories,location,organizer"
	StatsFields = "start,end,showAs,categories"
)

// Event is a calendar event as returned by the Graph calendarView endpoint.
// Only the projected fields are populated.
type Event struct {
	ID         string        `json:"id,omitempty"`
	Subject    string        `json:"subject,omitempty"`
	Start      *DateTimeZone `json:"start,omitempty"`
	End        *DateTimeZone `json:"end,omitempty"`
	IsAllDay   bool          `json:"isAllDay,omitempty"`
	ShowAs     *string       `json:"showAs,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Location   *Location     `json:"location,omitempty"`
	Organizer  *Recipient    `json:"organizer,omitempty"` //nolint:misspell // Graph field name
}

// DateTimeZone is Graph's dateTimeTimeZone: a wall-clock time and the zone
// it is expressed in.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// UnmarshalJSON accepts either Graph's object form or a bare timestamp
// string such as "2024-01-01T09:00:00Z".
func (d *DateTimeZone) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DateTimeZone{DateTime: s}
		return nil
	}

	type plain DateTimeZone
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = DateTimeZone(p)
	return nil
}

// Location is where an event takes place.
type Location struct {
	DisplayName string `json:"displayName,omitempty"`
}

// Recipient is an event participant.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress names a participant.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// Profile is the subset of mailbox settings exposed by /profile.
type Profile struct {
	TimeZone     string          `json:"timeZone"`
	WorkingHours json.RawMessage `json:"workingHours"`
}

// mailboxSettings is the decoded Graph mailboxSettings resource.
type mailboxSettings struct {
	TimeZone     string          `json:"timeZone"`
	WorkingHours json.RawMessage `json:"workingHours"`
}

// eventPage is one page of a calendarView response.
type eventPage struct {
	Value    []Event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

