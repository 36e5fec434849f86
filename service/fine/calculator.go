package finesvc

import (
	"errors"
	"time"
)

// DefaultPerDay is the fallback fine rate in currency units per overdue day.
const DefaultPerDay = 10.0

var ErrMissingDate = errors.New("due date and return date are required")

// Calculate returns the fine for a closed loan: one perDay charge for every
// whole day the return date lands after the due date, zero when the book came
// back on time. The issue date does not enter the formula but stays in the
// signature so rate schedules that depend on loan length can slot in.
func Calculate(issueDate, dueDate, returnDate time.Time, perDay float64) (float64, error) {
	_ = issueDate
	if dueDate.IsZero() || returnDate.IsZero() {
		return 0, ErrMissingDate
	}
	overdue := daysBetween(dueDate, returnDate)
	if overdue <= 0 {
		return 0, nil
	}
	return float64(overdue) * perDay, nil
}

// daysBetween counts calendar days from a to b, ignoring time of day.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
