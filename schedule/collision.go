/*
collision.go - Temporal collision detection

PURPOSE:
  Answers whether a candidate interval for a user overlaps any of their
  existing confirmed shifts or active leave requests. Used as a guard
  before assignment/accept/leave-create.

NOT THE SOLE SAFETY NET:
  Read-then-decide cannot close the race between two concurrent writers.
  The storage layer's exclusion constraint is the final authority; this
  detector only catches conflicts early with a friendlier error.

CONTRACT:
  The candidate interval satisfies end > start; callers validate upstream
  and this component does not re-validate. Returns true on the first
  match, with no ordering guarantee on which conflict is found.
*/
package schedule

import (
	"context"
	"time"
)

// CollisionDetector checks candidate intervals against a user's existing
// commitments through a narrow read port. Read-only, no side effects.
type CollisionDetector struct {
	Reader CollisionReader
}

func NewCollisionDetector(r CollisionReader) *CollisionDetector {
	return &CollisionDetector{Reader: r}
}

// HasShiftCollision reports whether [start, end) overlaps any shift the
// user holds an assigned or accepted assignment on. excludeShift (when
// non-empty) is skipped so re-checking a user against their own shift
// never self-collides.
func (cd *CollisionDetector) HasShiftCollision(ctx context.Context, userID UserID, start, end time.Time, excludeShift ShiftID) (bool, error) {
	existing, err := cd.Reader.ConfirmedShiftIntervals(ctx, userID, excludeShift)
	if err != nil {
		return false, err
	}
	candidate := Interval{Start: start, End: end}
	for _, s := range existing {
		if candidate.Overlaps(s.Interval) {
			return true, nil
		}
	}
	return false, nil
}

// HasLeaveCollision reports whether [start, end) overlaps any of the
// user's pending or approved leave requests, excluding excludeLeave.
func (cd *CollisionDetector) HasLeaveCollision(ctx context.Context, userID UserID, start, end time.Time, excludeLeave string) (bool, error) {
	existing, err := cd.Reader.ActiveLeaveIntervals(ctx, userID, excludeLeave)
	if err != nil {
		return false, err
	}
	candidate := Interval{Start: start, End: end}
	for _, l := range existing {
		if candidate.Overlaps(l.Interval) {
			return true, nil
		}
	}
	return false, nil
}
