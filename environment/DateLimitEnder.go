package environment

import (
	"time"

	"github.com/samuelfneumann/portfolioa2c/timestep"
)

// DateLimit implements the Ender interface to end episodes once the
// trading date of a TimeStep reaches some final date
type DateLimit struct {
	last time.Time
}

// NewDateLimit creates and returns a new date limit which ends episodes
// on the last trading day strictly before end
func NewDateLimit(end time.Time) DateLimit {
	return DateLimit{last: PrevTradingDay(end)}
}

// End determines whether or not the current episode should be ended,
// returning a boolean to indicate episode termination. If the episode
// should be ended End() will modify the timestep so that its StepType
// field is timestep.Last
func (d DateLimit) End(t *timestep.TimeStep) bool {
	if !t.Date.Before(d.last) {
		t.StepType = timestep.Last
		return true
	}
	return false
}

// NextTradingDay returns the first weekday strictly after t
func NextTradingDay(t time.Time) time.Time {
	t = t.AddDate(0, 0, 1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// PrevTradingDay returns the last weekday strictly before t
func PrevTradingDay(t time.Time) time.Time {
	t = t.AddDate(0, 0, -1)
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// TradingDays returns the number of weekdays in [start, end)
func TradingDays(start, end time.Time) int {
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			n++
		}
	}
	return n
}
