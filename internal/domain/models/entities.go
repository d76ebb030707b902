package models

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day without a date component.
type ClockTime struct {
	Hour   int
	Minute int
}

// NewClockTime builds a ClockTime from hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime{Hour: hour, Minute: minute}
}

// ClockTimeOf extracts the time of day from an instant.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}

// On combines the clock time with a date in the date's location.
func (c ClockTime) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, date.Location())
}

// String returns the 24-hour HH:MM representation.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Display returns the 12-hour representation used in user-facing prompts.
func (c ClockTime) Display() string {
	ref := time.Date(2000, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC)
	return ref.Format("3:04 PM")
}

// EntityBag holds every slot value extracted from a single message.
//
// Absence is always represented the same way: nil pointers, empty slices
// and empty strings all mean "not found". Extractors must never produce
// an empty-vs-missing ambiguity.
//
// Date and Time carry normalized values. When a remote provider returned
// free text that could not be normalized, the original text is preserved
// in DateText/TimeText instead of being dropped.
type EntityBag struct {
	Person   []string   `json:"person,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	DateText string     `json:"date_text,omitempty"`
	Time     *ClockTime `json:"time,omitempty"`
	TimeText string     `json:"time_text,omitempty"`
	Duration int        `json:"duration,omitempty"` // minutes
	Email    []string   `json:"email,omitempty"`
	Subject  string     `json:"subject,omitempty"`
	Body     string     `json:"body,omitempty"`
	Location string     `json:"location,omitempty"`
}

// IsEmpty reports whether no entity of any kind was extracted.
func (b *EntityBag) IsEmpty() bool {
	return len(b.Person) == 0 &&
		b.Date == nil && b.DateText == "" &&
		b.Time == nil && b.TimeText == "" &&
		b.Duration == 0 &&
		len(b.Email) == 0 &&
		b.Subject == "" && b.Body == "" && b.Location == ""
}
