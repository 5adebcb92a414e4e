package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire layout for civil dates.
const DateLayout = time.DateOnly

// DateOf truncates t to its calendar date, read in t's own location, and returns it as
// midnight UTC. Civil dates built this way compare and format identically everywhere.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day returns the civil date of the instant t as observed in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(t.In(loc))
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("recurrence: parse date %q: %w", value, err)
	}
	return parsed, nil
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return DateOf(t).Format(DateLayout)
}

// At combines a civil date with an HH:MM clock time in loc. An empty or malformed clock
// yields midnight.
func At(date time.Time, clock string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hour, minute := 0, 0
	if parsed, err := time.Parse("15:04", strings.TrimSpace(clock)); err == nil {
		hour, minute = parsed.Hour(), parsed.Minute()
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}
