// Package clock abstracts wall time so lifecycle rules that depend on dates
// (due dates, quote expiry) can be tested deterministically.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

// System reads the host clock in UTC.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the calendar date of c.Now() as UTC midnight.
func Today(c Clock) time.Time {
	return Date(c.Now())
}

// Date truncates t to its UTC calendar date.
func Date(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return System{} }),
)
