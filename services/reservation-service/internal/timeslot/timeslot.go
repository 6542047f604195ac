// Package timeslot holds the pure date arithmetic behind slot generation
// and hold expiry. Nothing here reads the clock.
package timeslot

import (
	"errors"
	"time"
)

// Layouts accepted at the API boundary. Zoneless forms are read as UTC.
var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var errUnparseable = errors.New("unparseable timestamp")

func Parse(raw string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errUnparseable
}

// Truncate drops seconds and sub-seconds and converts to UTC.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// Aligned reports whether t sits on a slot boundary: its minute component
// is a multiple of the slot length, counted from the top of the hour.
func Aligned(t time.Time, slotMinutes int) bool {
	if slotMinutes <= 0 {
		return false
	}
	return t.Minute()%slotMinutes == 0
}

// Within reports inclusive containment: start <= t <= end.
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// WholeMinutes returns the number of full minutes from one instant to
// another, truncated toward zero.
func WholeMinutes(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

// WholeHours returns the number of full hours from one instant to another,
// truncated toward zero.
func WholeHours(from, to time.Time) int {
	return int(to.Sub(from) / time.Hour)
}
