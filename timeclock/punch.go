/*
punch.go - Clock in / clock out

PURPOSE:
  Records punch events against a shift. A user may only punch a shift
  they hold an active assignment on, and clocking out requires an open
  clock-in so events always pair up chronologically.
*/
package timeclock

import (
	"context"
	"time"

	"github.com/warp/rota-engine/schedule"
)

// =============================================================================
// STORE PORT
// =============================================================================

type EventStore interface {
	GetEvent(ctx context.Context, id EventID) (*TimeClockEvent, error)
	InsertEvent(ctx context.Context, e *TimeClockEvent) error

	// UpdateEventTime overwrites occurred_at of an existing event. Used by
	// approved corrections.
	UpdateEventTime(ctx context.Context, id EventID, occurredAt time.Time) error

	// ListEventsByUser returns the user's events with occurred_at in
	// [from, to), ordered chronologically.
	ListEventsByUser(ctx context.Context, userID schedule.UserID, from, to time.Time) ([]TimeClockEvent, error)

	// OpenClockIn returns the user's most recent clock_in with no later
	// clock_out, or nil when the user is not on the clock.
	OpenClockIn(ctx context.Context, userID schedule.UserID) (*TimeClockEvent, error)
}

// =============================================================================
// PUNCH SERVICE
// =============================================================================

// PunchService records clock events.
type PunchService struct {
	Events      EventStore
	Assignments schedule.AssignmentStore
}

func NewPunchService(events EventStore, assignments schedule.AssignmentStore) *PunchService {
	return &PunchService{Events: events, Assignments: assignments}
}

// ClockIn opens a work interval for the user on the given shift.
func (s *PunchService) ClockIn(ctx context.Context, userID schedule.UserID, shiftID schedule.ShiftID, at time.Time) (*TimeClockEvent, error) {
	if err := s.requireAssignment(ctx, userID, shiftID); err != nil {
		return nil, err
	}

	open, err := s.Events.OpenClockIn(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, &schedule.StateError{
			Entity:    "time_clock",
			ID:        string(userID),
			Current:   "on the clock",
			Attempted: "clock in",
		}
	}

	return s.record(ctx, userID, shiftID, EventClockIn, at)
}

// ClockOut closes the user's open work interval.
func (s *PunchService) ClockOut(ctx context.Context, userID schedule.UserID, shiftID schedule.ShiftID, at time.Time) (*TimeClockEvent, error) {
	if err := s.requireAssignment(ctx, userID, shiftID); err != nil {
		return nil, err
	}

	open, err := s.Events.OpenClockIn(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, &schedule.StateError{
			Entity:    "time_clock",
			ID:        string(userID),
			Current:   "off the clock",
			Attempted: "clock out",
		}
	}
	if !at.After(open.OccurredAt) {
		return nil, &schedule.ValidationError{Field: "occurred_at", Message: "clock out must be after the open clock in"}
	}

	return s.record(ctx, userID, shiftID, EventClockOut, at)
}

func (s *PunchService) requireAssignment(ctx context.Context, userID schedule.UserID, shiftID schedule.ShiftID) error {
	a, err := s.Assignments.FindAssignment(ctx, shiftID, userID)
	if err != nil {
		return err
	}
	if a == nil || !a.Status.Active() {
		return &schedule.ForbiddenError{ActorID: userID, Reason: "no active assignment on shift"}
	}
	return nil
}

func (s *PunchService) record(ctx context.Context, userID schedule.UserID, shiftID schedule.ShiftID, typ EventType, at time.Time) (*TimeClockEvent, error) {
	event := &TimeClockEvent{
		ID:         EventID(schedule.NewID()),
		UserID:     userID,
		ShiftID:    shiftID,
		Type:       typ,
		OccurredAt: at.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Events.InsertEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}
