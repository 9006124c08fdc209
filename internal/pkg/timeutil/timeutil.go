// Package timeutil holds the calendar arithmetic shared by progress gating,
// premium expiry and scheduling.
package timeutil

import (
	"errors"
	"fmt"
	"time"
)

// Clock abstracts time.Now so services can be driven deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by the wall clock, in UTC.
func SystemClock() Clock { return systemClock{} }

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var ErrInvalidClock = errors.New("time must be in HH:MM format")

// AddMonths adds n calendar months to t. When the target month is shorter
// than t's day of month the result is clamped to the last day of that month,
// so Jan 31 + 1 month is Feb 28 (or 29), not Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(firstOfTarget.Year(), firstOfTarget.Month(), t.Location())
	if d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// SameCalendarDay reports whether a and b fall on the same date in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// StartOfNextDay returns midnight of the day after t, in loc.
func StartOfNextDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// WholeDaysUntil returns the number of whole 24h periods from now until
// target, never negative.
func WholeDaysUntil(now, target time.Time) int {
	if !target.After(now) {
		return 0
	}
	return int(target.Sub(now) / (24 * time.Hour))
}

// ParseDate parses a YYYY-MM-DD date (an RFC 3339 timestamp is accepted too
// and truncated) into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		t = ts.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, ErrInvalidClock
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Interval is a half-open [Start, End) range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// ParseInterval parses two "HH:MM" values and requires start < end.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if s >= e {
		return Interval{}, fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return Interval{Start: s, End: e}, nil
}

// Overlaps reports whether two half-open intervals share any minute.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Within reports whether i lies entirely inside o.
func (i Interval) Within(o Interval) bool {
	return i.Start >= o.Start && i.End <= o.End
}
