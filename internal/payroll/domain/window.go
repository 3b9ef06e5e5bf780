package domain

import "time"

// DateOnly truncates a timestamp to UTC midnight. Effective dates are whole days.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Cutoff returns the day the superseded structure closes on: one day before
// the new one takes effect.
func Cutoff(effectiveFrom time.Time) time.Time {
	return effectiveFrom.AddDate(0, 0, -1)
}
