package schedule

import "time"

// =============================================================================
// INTERVAL OVERLAP - The single overlap primitive for the whole engine
// =============================================================================

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Touching endpoints do not overlap:
// a shift ending 17:00 and one starting 17:00 coexist.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether End > Start.
func (i Interval) Valid() bool { return i.End.After(i.Start) }

// Overlaps reports whether i and o share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

// Contains reports whether t falls inside the half-open interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// GapAfter returns the rest gap between the end of i and the start of next.
// Negative when the intervals overlap.
func (i Interval) GapAfter(next Interval) time.Duration {
	return next.Start.Sub(i.End)
}

// DateOf truncates an instant to its UTC calendar date (midnight UTC).
// Violation dates and daily hour buckets key off this.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
