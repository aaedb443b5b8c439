/*
correction.go - Time correction request lifecycle

PURPOSE:
  pending -> approved | rejected, reviewer-gated. Approval additionally
  rewrites the referenced clock event's occurred_at with the requested
  time. That secondary write is best-effort: the approval has already
  committed, and reverting a reviewed decision because a follow-up write
  failed would surprise the user more than a missed rewrite. Failure is
  logged and the approval stands.
*/
package timeclock

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/warp/rota-engine/schedule"
)

// =============================================================================
// STORE PORT
// =============================================================================

type CorrectionStore interface {
	GetCorrection(ctx context.Context, id CorrectionID) (*TimeCorrectionRequest, error)
	InsertCorrection(ctx context.Context, c *TimeCorrectionRequest) error

	// DecideCorrection is a compare-and-swap from pending, stamping the
	// reviewer fields. Returns a StateError (already processed) when the
	// correction is no longer pending.
	DecideCorrection(ctx context.Context, id CorrectionID, to CorrectionStatus, reviewer schedule.UserID, at time.Time, notes string) error

	ListCorrectionsByUser(ctx context.Context, userID schedule.UserID) ([]TimeCorrectionRequest, error)
	ListPendingCorrections(ctx context.Context) ([]TimeCorrectionRequest, error)
}

// =============================================================================
// CORRECTION SERVICE
// =============================================================================

// CorrectionService drives the correction request lifecycle.
type CorrectionService struct {
	Corrections CorrectionStore
	Events      EventStore
	Assignments schedule.AssignmentStore
	Caps        schedule.CapabilityChecker
}

func NewCorrectionService(corrections CorrectionStore, events EventStore, assignments schedule.AssignmentStore, caps schedule.CapabilityChecker) *CorrectionService {
	return &CorrectionService{Corrections: corrections, Events: events, Assignments: assignments, Caps: caps}
}

// Request submits a correction. The requesting user must hold an
// assignment on the shift; the reason must carry real content. When
// eventID is set the original time is read from the event itself.
func (s *CorrectionService) Request(ctx context.Context, userID schedule.UserID, shiftID schedule.ShiftID, eventID *EventID, originalTime, requestedTime time.Time, reason string) (*TimeCorrectionRequest, error) {
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return nil, &schedule.ValidationError{Field: "reason", Message: "must be at least 10 characters"}
	}
	if requestedTime.IsZero() {
		return nil, &schedule.ValidationError{Field: "requested_time", Message: "must be set"}
	}

	a, err := s.Assignments.FindAssignment(ctx, shiftID, userID)
	if err != nil {
		return nil, err
	}
	if a == nil || !a.Status.Active() {
		return nil, &schedule.ForbiddenError{ActorID: userID, Reason: "no active assignment on shift"}
	}

	if eventID != nil {
		event, err := s.Events.GetEvent(ctx, *eventID)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, &schedule.NotFoundError{Entity: "time_clock_event", ID: string(*eventID)}
		}
		if event.UserID != userID {
			return nil, &schedule.ForbiddenError{ActorID: userID, Reason: "event belongs to another user"}
		}
		originalTime = event.OccurredAt
	}

	now := time.Now().UTC()
	correction := &TimeCorrectionRequest{
		ID:            CorrectionID(schedule.NewID()),
		UserID:        userID,
		ShiftID:       shiftID,
		EventID:       eventID,
		OriginalTime:  originalTime.UTC(),
		RequestedTime: requestedTime.UTC(),
		Reason:        strings.TrimSpace(reason),
		Status:        CorrectionPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Corrections.InsertCorrection(ctx, correction); err != nil {
		return nil, err
	}
	return correction, nil
}

// Decide approves or rejects a pending correction. Only valid from
// pending; a decided correction fails with AlreadyProcessed.
func (s *CorrectionService) Decide(ctx context.Context, correctionID CorrectionID, reviewerID schedule.UserID, decision CorrectionDecision, notes string) (*TimeCorrectionRequest, error) {
	if decision != CorrectionApprove && decision != CorrectionReject {
		return nil, &schedule.ValidationError{Field: "decision", Message: "must be approve or reject"}
	}

	correction, err := s.Corrections.GetCorrection(ctx, correctionID)
	if err != nil {
		return nil, err
	}
	if correction == nil {
		return nil, &schedule.NotFoundError{Entity: "time_correction", ID: string(correctionID)}
	}

	if !s.Caps.HasCapability(ctx, reviewerID, schedule.CapTimeclockManage, "") {
		return nil, &schedule.ForbiddenError{ActorID: reviewerID, Capability: schedule.CapTimeclockManage}
	}

	if correction.Status != CorrectionPending {
		return nil, &schedule.StateError{
			Entity:    "time_correction",
			ID:        string(correctionID),
			Current:   string(correction.Status),
			Attempted: string(decision),
			Processed: true,
		}
	}

	to := CorrectionRejected
	if decision == CorrectionApprove {
		to = CorrectionApproved
	}

	now := time.Now().UTC()
	if err := s.Corrections.DecideCorrection(ctx, correctionID, to, reviewerID, now, notes); err != nil {
		return nil, err
	}

	correction.Status = to
	correction.ReviewedBy = &reviewerID
	correction.ReviewedAt = &now
	correction.ReviewerNotes = notes
	correction.UpdatedAt = now

	// Best-effort rewrite of the historical punch; the approval stands
	// even when this write fails.
	if to == CorrectionApproved && correction.EventID != nil {
		if err := s.Events.UpdateEventTime(ctx, *correction.EventID, correction.RequestedTime); err != nil {
			log.Printf("timeclock: correction %s approved but event %s rewrite failed: %v",
				correctionID, *correction.EventID, err)
		}
	}

	return correction, nil
}
