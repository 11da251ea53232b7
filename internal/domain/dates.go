package domain

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire layout for civil dates.
const DateLayout = "2006-01-02"

// Civil truncates t to its calendar date at UTC midnight. All due dates,
// base dates and window bounds are civil dates.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FormatDatePtr formats an optional date, returning nil for nil.
func FormatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// DatePtr returns a pointer to the civil date of t.
func DatePtr(t time.Time) *time.Time {
	c := Civil(t)
	return &c
}

// DaysBetween returns the number of calendar days from a to b, negative
// when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Civil(b).Sub(Civil(a)).Hours() / 24)
}
