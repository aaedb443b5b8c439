/*
Package timeclock records punches and after-the-fact corrections.

PURPOSE:
  Workers clock in and out against their shifts; the resulting event
  stream is the primary input for compliance evaluation. When a punch is
  wrong (forgot to clock out, clocked in late by mistake) a correction
  request goes through a pending -> approved/rejected workflow, and
  approval rewrites the historical event.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeClockEvent: A single clock_in or clock_out instant
  - TimeCorrectionRequest: A reviewed amendment to a recorded event

SEE ALSO:
  - punch.go: ClockIn / ClockOut
  - correction.go: Correction request lifecycle
*/
package timeclock

import (
	"time"

	"github.com/warp/rota-engine/schedule"
)

// =============================================================================
// CLOCK EVENTS
// =============================================================================

type EventID string

type EventType string

const (
	EventClockIn  EventType = "clock_in"
	EventClockOut EventType = "clock_out"
)

// TimeClockEvent is one punch. OccurredAt is an absolute instant; the
// pairing of clock_in -> clock_out into work intervals happens downstream.
type TimeClockEvent struct {
	ID         EventID
	UserID     schedule.UserID
	ShiftID    schedule.ShiftID // shift the punch was made against
	Type       EventType
	OccurredAt time.Time

	CreatedAt time.Time
}

// =============================================================================
// CORRECTION REQUESTS
// =============================================================================

type CorrectionID string

type CorrectionStatus string

const (
	CorrectionPending  CorrectionStatus = "pending"
	CorrectionApproved CorrectionStatus = "approved"
	CorrectionRejected CorrectionStatus = "rejected"
)

type CorrectionDecision string

const (
	CorrectionApprove CorrectionDecision = "approve"
	CorrectionReject  CorrectionDecision = "reject"
)

// MinReasonLength is the minimum length of a correction reason, matching
// the skip-reason rule used elsewhere in the product.
const MinReasonLength = 10

// TimeCorrectionRequest asks a reviewer to amend a recorded punch.
// EventID may be nil for "the punch that never happened" corrections; in
// that case approval records the decision without rewriting an event.
type TimeCorrectionRequest struct {
	ID            CorrectionID
	UserID        schedule.UserID
	ShiftID       schedule.ShiftID
	EventID       *EventID
	OriginalTime  time.Time
	RequestedTime time.Time
	Reason        string
	Status        CorrectionStatus

	ReviewedBy    *schedule.UserID
	ReviewedAt    *time.Time
	ReviewerNotes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
