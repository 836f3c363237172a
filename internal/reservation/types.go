package reservation

import "time"

// Slot is one bookable offering returned by the availability endpoint.
// ConfigID is the opaque handle exchanged for a short-lived booking token.
// Slots are created fresh on every probe and never persisted.
type Slot struct {
	ConfigID string
	Start    time.Time

	// BookToken is populated after a successful token exchange.
	BookToken string
}

// VenueSchedule is the discovered (or configured) release policy for a venue.
type VenueSchedule struct {
	// WindowDays is how many days before a reservation date slots first appear.
	WindowDays int

	// ReleaseTime is the venue-local "HH:MM" the booking window opens,
	// or empty when unknown and the release moment must be inferred at runtime.
	ReleaseTime string
}

// HasReleaseTime reports whether the release time-of-day is known.
func (v VenueSchedule) HasReleaseTime() bool { return v.ReleaseTime != "" }

// VenueInfo is the venue metadata surface used by schedule discovery.
// WindowDays and ReleaseTime are the structured fields when the upstream
// exposes them; Description is free text for heuristic extraction.
type VenueInfo struct {
	WindowDays  *int
	ReleaseTime string
	Description string
}

// Weekdays maps canonical English weekday names to time.Weekday.
var Weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}
