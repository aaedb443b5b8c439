package schedule

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2024, 4, 10, hour, 0, 0, 0, time.UTC)
}

func TestOverlapsHalfOpen(t *testing.T) {
	// GIVEN two shifts that touch at the boundary: one ends 17:00, the
	// other starts 17:00
	// WHEN checking for overlap
	// THEN they do not overlap; a handover at the boundary is legal
	if Overlaps(at(9), at(17), at(17), at(21)) {
		t.Error("touching intervals must not overlap")
	}
	if Overlaps(at(17), at(21), at(9), at(17)) {
		t.Error("touching intervals must not overlap (reversed)")
	}
}

func TestOverlapsSharedInstant(t *testing.T) {
	// GIVEN intervals [09:00, 17:00) and [16:00, 20:00)
	// THEN they overlap, in either argument order
	if !Overlaps(at(9), at(17), at(16), at(20)) {
		t.Error("expected overlap")
	}
	if !Overlaps(at(16), at(20), at(9), at(17)) {
		t.Error("overlap must be symmetric")
	}
}

func TestOverlapsContainment(t *testing.T) {
	// GIVEN one interval fully inside another
	if !Overlaps(at(9), at(17), at(11), at(12)) {
		t.Error("contained interval must overlap")
	}
	// AND identical intervals
	if !Overlaps(at(9), at(17), at(9), at(17)) {
		t.Error("identical intervals must overlap")
	}
}

func TestOverlapsDisjoint(t *testing.T) {
	if Overlaps(at(9), at(11), at(12), at(14)) {
		t.Error("disjoint intervals must not overlap")
	}
}

func TestIntervalValid(t *testing.T) {
	if (Interval{Start: at(17), End: at(9)}).Valid() {
		t.Error("end before start is invalid")
	}
	if (Interval{Start: at(9), End: at(9)}).Valid() {
		t.Error("zero-length interval is invalid")
	}
	if !(Interval{Start: at(9), End: at(17)}).Valid() {
		t.Error("expected valid interval")
	}
}

func TestIntervalContains(t *testing.T) {
	i := Interval{Start: at(9), End: at(17)}

	// Half-open: start is inside, end is not
	if !i.Contains(at(9)) {
		t.Error("start instant must be contained")
	}
	if i.Contains(at(17)) {
		t.Error("end instant must not be contained")
	}
}

func TestGapAfter(t *testing.T) {
	// GIVEN a shift ending 23:00 and the next starting 07:00 the next day
	prev := Interval{Start: at(15), End: at(23)}
	next := Interval{
		Start: time.Date(2024, 4, 11, 7, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 4, 11, 15, 0, 0, 0, time.UTC),
	}

	// THEN the rest gap is 8 hours
	if got := prev.GapAfter(next); got != 8*time.Hour {
		t.Errorf("expected 8h gap, got %v", got)
	}

	// AND overlapping intervals yield a negative gap
	overlapping := Interval{Start: at(22), End: time.Date(2024, 4, 11, 6, 0, 0, 0, time.UTC)}
	if got := prev.GapAfter(overlapping); got >= 0 {
		t.Errorf("expected negative gap for overlap, got %v", got)
	}
}

func TestDateOf(t *testing.T) {
	// GIVEN an instant late in the UTC day
	instant := time.Date(2024, 4, 10, 23, 45, 12, 0, time.UTC)

	// THEN DateOf truncates to midnight UTC of the same date
	want := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	if got := DateOf(instant); !got.Equal(want) {
		t.Errorf("DateOf = %v, want %v", got, want)
	}
}

func TestWeekStartOf(t *testing.T) {
	// GIVEN a Thursday
	thursday := time.Date(2024, 4, 11, 14, 30, 0, 0, time.UTC)

	// THEN the week start is the preceding Monday at midnight UTC
	want := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)
	if got := WeekStartOf(thursday); !got.Equal(want) {
		t.Errorf("WeekStartOf = %v, want %v", got, want)
	}

	// AND a Monday maps to itself
	if got := WeekStartOf(want); !got.Equal(want) {
		t.Errorf("Monday must map to itself, got %v", got)
	}

	// AND a Sunday maps back to the Monday six days earlier
	sunday := time.Date(2024, 4, 14, 8, 0, 0, 0, time.UTC)
	if got := WeekStartOf(sunday); !got.Equal(want) {
		t.Errorf("Sunday must map to preceding Monday, got %v", got)
	}
}

func TestWorkedMinutes(t *testing.T) {
	shift := Shift{StartAt: at(9), EndAt: at(17), BreakMinutes: 30}
	if got := shift.WorkedMinutes(); got != 450 {
		t.Errorf("WorkedMinutes = %d, want 450", got)
	}

	// Break longer than the shift floors at zero
	short := Shift{StartAt: at(9), EndAt: at(10), BreakMinutes: 90}
	if got := short.WorkedMinutes(); got != 0 {
		t.Errorf("WorkedMinutes = %d, want 0", got)
	}
}
