/*
store.go - Storage ports for the scheduling core

PURPOSE:
  Narrow read/write interfaces the lifecycle services persist through.
  The engine does not prescribe the storage technology; implementations
  live in store/memory (tests/dev) and store/sqlite (embedded prod).

CONCURRENCY CONTRACT:
  - Status updates are compare-and-swap: the store verifies the expected
    current status at write time and returns a StateError when another
    writer won the race. Guards alone cannot close that window.
  - SaveAssignment enforces the active-assignment exclusion: an active
    assignment whose shift interval overlaps another confirmed assignment
    of the same user fails with a CollisionError at commit time.

SEE ALSO:
  - store/memory: In-memory implementation
  - store/sqlite: SQLite implementation
*/
package schedule

import (
	"context"
	"time"
)

// =============================================================================
// ROTA STORE
// =============================================================================

type RotaStore interface {
	GetRota(ctx context.Context, id RotaID) (*Rota, error)
	GetRotaByWeek(ctx context.Context, locationID LocationID, weekStart time.Time) (*Rota, error)

	// InsertRota persists a new rota. Fails with ErrDuplicateRota when one
	// already exists for (location, week start).
	InsertRota(ctx context.Context, r *Rota) error

	// UpdateRotaStatus performs a compare-and-swap on status and stamps
	// updated_by/updated_at. Returns a StateError when the current status
	// no longer equals from.
	UpdateRotaStatus(ctx context.Context, id RotaID, from, to RotaStatus, by UserID, at time.Time) error
}

// =============================================================================
// SHIFT STORE
// =============================================================================

type ShiftStore interface {
	GetShift(ctx context.Context, id ShiftID) (*Shift, error)
	SaveShift(ctx context.Context, s *Shift) error
	ListShiftsByRota(ctx context.Context, rotaID RotaID) ([]Shift, error)

	// ListConfirmedShiftsForUser returns shifts the user is assigned or
	// accepted on, intersecting [from, to). Compliance evaluation input.
	ListConfirmedShiftsForUser(ctx context.Context, userID UserID, from, to time.Time) ([]Shift, error)

	// DeleteShift removes the shift and cascades to its assignments.
	// Returns the user IDs whose assignments were removed.
	DeleteShift(ctx context.Context, id ShiftID) ([]UserID, error)
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

type AssignmentStore interface {
	GetAssignment(ctx context.Context, id AssignmentID) (*ShiftAssignment, error)

	// FindAssignment returns the assignment for (shift, user), declined or
	// not, or nil when none exists.
	FindAssignment(ctx context.Context, shiftID ShiftID, userID UserID) (*ShiftAssignment, error)

	// SaveAssignment inserts or updates in place. Enforces the exclusion
	// constraint over confirmed assignments (see package comment).
	SaveAssignment(ctx context.Context, a *ShiftAssignment) error

	// UpdateAssignmentStatus is a compare-and-swap stamping responded_at.
	UpdateAssignmentStatus(ctx context.Context, id AssignmentID, from, to AssignmentStatus, respondedAt time.Time) error

	ListAssignmentsByShift(ctx context.Context, shiftID ShiftID) ([]ShiftAssignment, error)
	ListAssignmentsByUser(ctx context.Context, userID UserID, statuses []AssignmentStatus) ([]ShiftAssignment, error)
}

// =============================================================================
// COLLISION READER - Narrow read port for the collision detector
// =============================================================================

// ShiftInterval is a confirmed shift's interval, tagged with its shift ID.
type ShiftInterval struct {
	ShiftID ShiftID
	Interval
}

// LeaveInterval is an active leave request's interval. The ID is opaque to
// this package; the leave package owns the concrete type.
type LeaveInterval struct {
	LeaveID string
	Interval
}

type CollisionReader interface {
	// ConfirmedShiftIntervals returns intervals of the user's shifts with an
	// assigned or accepted assignment, excluding excludeShift when non-empty.
	ConfirmedShiftIntervals(ctx context.Context, userID UserID, excludeShift ShiftID) ([]ShiftInterval, error)

	// ActiveLeaveIntervals returns intervals of the user's pending or
	// approved leave requests, excluding excludeLeave when non-empty.
	ActiveLeaveIntervals(ctx context.Context, userID UserID, excludeLeave string) ([]LeaveInterval, error)
}
