package library

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of loan and membership dates.
const DateLayout = "2006-01-02"

// civilDate drops the time of day, keeping the calendar date of t in t's own
// location. All stored dates are UTC midnights.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func formatDate(t time.Time) string { return t.Format(DateLayout) }
