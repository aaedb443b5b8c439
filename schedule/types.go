/*
Package schedule provides the core scheduling integrity engine.

PURPOSE:
  This package contains the entity types, interval math, and lifecycle
  services that keep a rota's shifts, assignments, and leave mutually
  consistent: rota publication, shift assignment with collision guards,
  and the read/write ports everything persists through.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rota: A weekly schedule for one location (draft/published/locked)
  - Shift: A bounded work period belonging to a rota
  - ShiftAssignment: The binding of one user to one shift
  - Money: Labor budget amounts (decimal-backed, no float drift)
  - Typed IDs: RotaID, ShiftID etc. prevent mixing identifier kinds

DESIGN PRINCIPLES:
  1. Instants only: all timestamps are absolute UTC instants; intervals
     are half-open [start, end)
  2. Lifecycle-only mutation: status fields change only through the
     services in rota.go / assignment.go
  3. Type Safety: strong typing for IDs

SEE ALSO:
  - interval.go: Overlap primitive and Interval type
  - collision.go: Collision detection against shifts and leave
  - rota.go: Rota state machine
  - assignment.go: Shift assignment state machine
*/
package schedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	OrgID        string
	LocationID   string
	RotaID       string
	ShiftID      string
	AssignmentID string
	UserID       string
	JobTagID     string
)

// NewID returns a fresh random identifier. All entity IDs share this format.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// MONEY - Labor budget amounts
// =============================================================================

// Money is an exact currency amount. Used for rota labor budgets.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount float64, currency string) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: currency}
}

func (m Money) IsZero() bool        { return m.Amount.IsZero() }
func (m Money) Add(o Money) Money   { return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency} }
func (m Money) String() string      { return m.Amount.StringFixed(2) + " " + m.Currency }

// =============================================================================
// ROTA - Weekly schedule for one location
// =============================================================================

type RotaStatus string

const (
	RotaDraft     RotaStatus = "draft"
	RotaPublished RotaStatus = "published"
	RotaLocked    RotaStatus = "locked"
)

// Rota is a named weekly schedule for a single location.
// At most one rota exists per (location, week start); the store enforces it.
type Rota struct {
	ID          RotaID
	LocationID  LocationID
	WeekStart   time.Time // Monday, midnight UTC, date-only
	Status      RotaStatus
	LaborBudget *Money // optional

	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy UserID
}

// WeekStartOf normalizes an instant to the Monday of its (UTC) week.
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// =============================================================================
// SHIFT - A single work period within a rota
// =============================================================================

type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftCancelled ShiftStatus = "cancelled"
)

// Shift is one work period. Invariant: EndAt > StartAt.
// Multiple interchangeable openings are modelled as multiple assignments.
type Shift struct {
	ID           ShiftID
	RotaID       RotaID
	LocationID   LocationID
	JobTagID     JobTagID // optional, empty when untagged
	StartAt      time.Time
	EndAt        time.Time
	BreakMinutes int
	Status       ShiftStatus
	Notes        string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the shift's half-open work interval.
func (s Shift) Interval() Interval {
	return Interval{Start: s.StartAt, End: s.EndAt}
}

// WorkedMinutes is the scheduled duration net of the unpaid break.
// Used by compliance when no clock events exist for the shift.
func (s Shift) WorkedMinutes() int {
	mins := int(s.EndAt.Sub(s.StartAt).Minutes()) - s.BreakMinutes
	if mins < 0 {
		return 0
	}
	return mins
}

// =============================================================================
// SHIFT ASSIGNMENT - Binding of one user to one shift
// =============================================================================

type AssignmentStatus string

const (
	AssignmentProposed AssignmentStatus = "proposed"
	AssignmentAssigned AssignmentStatus = "assigned"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentDeclined AssignmentStatus = "declined"
)

// Active reports whether the assignment still occupies the (shift, user)
// slot. Only declined assignments free the slot.
func (s AssignmentStatus) Active() bool { return s != AssignmentDeclined }

// Confirmed reports whether the assignment counts for collision detection
// and compliance: the user is expected to work the shift.
func (s AssignmentStatus) Confirmed() bool {
	return s == AssignmentAssigned || s == AssignmentAccepted
}

// ShiftAssignment binds one user to one shift.
// Invariant: at most one active assignment per (shift, user).
type ShiftAssignment struct {
	ID      AssignmentID
	ShiftID ShiftID
	UserID  UserID
	Status  AssignmentStatus

	AssignedAt  *time.Time
	ProposedAt  *time.Time
	RespondedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
