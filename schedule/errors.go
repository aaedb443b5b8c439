/*
errors.go - Centralized error taxonomy for the scheduling engine

PURPOSE:
  All error kinds in one place. Domain packages (leave, timeclock,
  compliance) return these same kinds so callers handle one taxonomy.

ERROR CATEGORIES:
  1. Authorization - Forbidden (missing capability or ownership)
  2. Existence     - NotFound
  3. State         - InvalidState, AlreadyProcessed, InvalidTransition
  4. Collision     - ShiftCollision, LeaveCollision
  5. Input         - Validation

USAGE:
  Check kinds with errors.Is:

    if errors.Is(err, schedule.ErrShiftCollision) { ... }

  Structured types carry diagnostics (current state, attempted target,
  conflicting interval) and unwrap to the sentinel of their kind.
*/
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrForbidden is returned when the actor lacks a required capability
	// or does not own the entity being acted on.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is attempted from a
	// status that does not permit it.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyProcessed is returned when deciding a request that has
	// already been decided. A specialization of invalid state.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrInvalidTransition is returned for a (from, to) pair outside a
	// lifecycle's transition table.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrShiftCollision is returned when a candidate interval overlaps one
	// of the user's confirmed shifts, pre-check or at commit time.
	ErrShiftCollision = errors.New("shift collision")

	// ErrLeaveCollision is returned when a candidate interval overlaps one
	// of the user's active leave requests.
	ErrLeaveCollision = errors.New("leave collision")

	// ErrValidation is returned for structurally invalid input.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateRota is returned when a rota already exists for the
	// (location, week start) pair.
	ErrDuplicateRota = errors.New("rota already exists for location and week")
)

// =============================================================================
// STRUCTURED ERRORS - Carry diagnostics
// =============================================================================

// ForbiddenError reports a failed capability or ownership check.
type ForbiddenError struct {
	ActorID    UserID
	Capability Capability // empty for ownership failures
	Reason     string
}

func (e *ForbiddenError) Error() string {
	if e.Capability != "" {
		return fmt.Sprintf("actor %s lacks capability %s", e.ActorID, e.Capability)
	}
	return fmt.Sprintf("actor %s: %s", e.ActorID, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string // "rota", "shift", "assignment", "leave_request", ...
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StateError reports an operation attempted from a status that does not
// permit it. Always includes current state and attempted operation.
type StateError struct {
	Entity    string
	ID        string
	Current   string
	Attempted string
	Processed bool // true when the entity reached a terminal decision
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s: cannot %s from status %s", e.Entity, e.ID, e.Attempted, e.Current)
}

func (e *StateError) Unwrap() error {
	if e.Processed {
		return ErrAlreadyProcessed
	}
	return ErrInvalidState
}

// TransitionError reports a (from, to) pair outside a transition table.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: no transition %s -> %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// CollisionKind discriminates what the candidate interval collided with.
type CollisionKind string

const (
	CollisionShift CollisionKind = "shift"
	CollisionLeave CollisionKind = "leave"
)

// CollisionError reports a temporal conflict for a user. The same error is
// produced by the pre-check and by the storage constraint at commit time,
// so callers need not distinguish the two.
type CollisionError struct {
	Kind   CollisionKind
	UserID UserID
	Start  time.Time
	End    time.Time
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s collision for user %s in [%s, %s)",
		e.Kind, e.UserID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *CollisionError) Unwrap() error {
	if e.Kind == CollisionLeave {
		return ErrLeaveCollision
	}
	return ErrShiftCollision
}

// ValidationError reports structurally invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsCollision reports whether err is either collision kind.
func IsCollision(err error) bool {
	return errors.Is(err, ErrShiftCollision) || errors.Is(err, ErrLeaveCollision)
}

// IsConflict reports whether err reflects a state/collision conflict that a
// caller may resolve by re-reading and retrying.
func IsConflict(err error) bool {
	return IsCollision(err) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateRota)
}

// IsClientError reports whether err is due to invalid client input or a
// request that can never succeed as submitted.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsConflict(err) || IsForbidden(err) || IsNotFound(err)
}
