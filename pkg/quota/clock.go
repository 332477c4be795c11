package quota

import "time"

// Clock supplies the current time. Tests replace it to step across reset
// boundaries deterministically.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Start returns the UTC boundary at which the cycle containing t began:
// midnight for Daily and the first instant of the month for Monthly.
func (p Period) Start(t time.Time) time.Time {
	t = t.UTC()
	switch p {
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	panic("quota: unknown period " + string(p))
}

// Next returns the first boundary strictly after t.
func (p Period) Next(t time.Time) time.Time {
	start := p.Start(t)
	switch p {
	case Daily:
		return start.AddDate(0, 0, 1)
	case Monthly:
		// start is always the 1st, so AddDate cannot overflow into the month after
		return start.AddDate(0, 1, 0)
	}
	panic("quota: unknown period " + string(p))
}

// nextBoundary returns the earliest boundary of any period after t.
func nextBoundary(t time.Time) time.Time {
	next := Daily.Next(t)
	for _, p := range Periods() {
		if n := p.Next(t); n.Before(next) {
			next = n
		}
	}
	return next
}
