package models

import "time"

// TimeSlot is a half-open interval [Start, End) of timezone-aware instants.
// End is always after Start.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the slot intersects the busy interval.
// Two half-open intervals conflict iff s < be and e > bs; the predicate
// is symmetric.
func (s TimeSlot) Overlaps(busy TimeSlot) bool {
	return s.Start.Before(busy.End) && s.End.After(busy.Start)
}

// Duration returns the slot length.
func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Event is a calendar event as reported by the calendar collaborator.
type Event struct {
	ID          string
	Summary     string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Link        string
}

// CreateEventResult reports the outcome of an event insertion.
type CreateEventResult struct {
	Success bool
	EventID string
	Link    string
	Error   string
}

// SendEmailResult reports the outcome of an email send.
type SendEmailResult struct {
	Success bool
	Error   string
}

// ContactRef is an opaque contact record returned by the contacts
// collaborator. The core never constructs one from scratch.
type ContactRef struct {
	Name         string
	Email        string
	Phone        string
	Organization string
	Address      string
}

// AddressValidation is the result of validating an email address.
// A failed validation may carry a plausible corrected address.
type AddressValidation struct {
	Valid               bool
	ErrorMessage        string
	SuggestedCorrection string
}

// SyncResult reports the outcome of a contacts synchronization run.
type SyncResult struct {
	Success        bool
	Complete       bool
	ContactsSynced int
	Error          string
}
