/*
service.go - Leave request lifecycle operations

PURPOSE:
  Create, Decide, Cancel. Two different collision semantics on create:

  - Overlap with the user's own active LEAVE is a hard block: the request
    is never created (LeaveCollision).
  - Overlap with the user's confirmed SHIFTS is advisory only: the
    request is created and a warning string returned; manager
    coordination is expected, not enforced.

CONCURRENCY:
  Decide and Cancel go through compare-and-swap store operations: the
  status must still be pending at write time, so two managers cannot both
  "successfully" decide one request. The losing writer gets InvalidState.

BEST-EFFORT NOTIFICATION:
  After a successful decision the notifier is told, fire-and-forget.
  Dispatch failure never propagates to the caller.
*/
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/warp/rota-engine/schedule"
)

// ShiftOverlapWarning is returned from Create when the requested leave
// overlaps a confirmed shift. Informational, never an error.
const ShiftOverlapWarning = "requested leave overlaps one of your assigned shifts; your manager will need to arrange cover"

// =============================================================================
// STORE PORT
// =============================================================================

type Store interface {
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	InsertRequest(ctx context.Context, r *LeaveRequest) error
	ListRequestsByUser(ctx context.Context, userID schedule.UserID, statuses []Status) ([]LeaveRequest, error)

	// DecideRequest is a compare-and-swap from pending to approved or
	// rejected, stamping approver fields. Returns a StateError when the
	// request is no longer pending.
	DecideRequest(ctx context.Context, id RequestID, to Status, approver schedule.UserID, at time.Time, notes string) error

	// CancelRequest is a compare-and-swap from pending to cancelled.
	CancelRequest(ctx context.Context, id RequestID, at time.Time) error

	GetType(ctx context.Context, id TypeID) (*LeaveType, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service drives the leave request lifecycle.
type Service struct {
	Requests   Store
	Collisions *schedule.CollisionDetector
	Caps       schedule.CapabilityChecker
	Notifier   schedule.Notifier
}

func NewService(store Store, cd *schedule.CollisionDetector, caps schedule.CapabilityChecker, n schedule.Notifier) *Service {
	if n == nil {
		n = schedule.LogNotifier{}
	}
	return &Service{Requests: store, Collisions: cd, Caps: caps, Notifier: n}
}

// CreateResult carries the created request plus an advisory warning when
// the leave overlaps a confirmed shift. Warning is empty when clean.
type CreateResult struct {
	Request *LeaveRequest
	Warning string
}

// Create submits a new pending leave request for the given user.
func (s *Service) Create(ctx context.Context, orgID schedule.OrgID, userID schedule.UserID, typeID TypeID, start, end time.Time, reason string) (*CreateResult, error) {
	if !end.After(start) {
		return nil, &schedule.ValidationError{Field: "end_at", Message: "must be after start_at"}
	}

	lt, err := s.Requests.GetType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, &schedule.NotFoundError{Entity: "leave_type", ID: string(typeID)}
	}
	if !lt.IsActive {
		return nil, &schedule.ValidationError{Field: "type_id", Message: "leave type is inactive"}
	}

	// Hard block: overlapping active leave for the same user.
	collides, err := s.Collisions.HasLeaveCollision(ctx, userID, start, end, "")
	if err != nil {
		return nil, err
	}
	if collides {
		return nil, &schedule.CollisionError{Kind: schedule.CollisionLeave, UserID: userID, Start: start, End: end}
	}

	// Advisory only: overlap with the user's own confirmed shifts.
	warning := ""
	shiftOverlap, err := s.Collisions.HasShiftCollision(ctx, userID, start, end, "")
	if err != nil {
		return nil, err
	}
	if shiftOverlap {
		warning = ShiftOverlapWarning
	}

	now := time.Now().UTC()
	req := &LeaveRequest{
		ID:        RequestID(schedule.NewID()),
		OrgID:     orgID,
		UserID:    userID,
		TypeID:    typeID,
		StartAt:   start.UTC(),
		EndAt:     end.UTC(),
		Status:    StatusPending,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Requests.InsertRequest(ctx, req); err != nil {
		return nil, err
	}

	return &CreateResult{Request: req, Warning: warning}, nil
}

// Decide approves or rejects a pending request. Manager capability
// required; the CAS in the store settles concurrent decisions.
func (s *Service) Decide(ctx context.Context, requestID RequestID, actorID schedule.UserID, decision Decision, notes string) (*LeaveRequest, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, &schedule.ValidationError{Field: "decision", Message: "must be approve or reject"}
	}

	req, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &schedule.NotFoundError{Entity: "leave_request", ID: string(requestID)}
	}

	if !s.Caps.HasCapability(ctx, actorID, schedule.CapLeaveManage, "") {
		return nil, &schedule.ForbiddenError{ActorID: actorID, Capability: schedule.CapLeaveManage}
	}

	if req.Status != StatusPending {
		return nil, &schedule.StateError{
			Entity:    "leave_request",
			ID:        string(requestID),
			Current:   string(req.Status),
			Attempted: string(decision),
		}
	}

	to := StatusRejected
	if decision == DecisionApprove {
		to = StatusApproved
	}

	now := time.Now().UTC()
	if err := s.Requests.DecideRequest(ctx, requestID, to, actorID, now, notes); err != nil {
		return nil, err
	}

	req.Status = to
	req.ApproverID = &actorID
	req.ApprovedAt = &now
	req.Notes = notes
	req.UpdatedAt = now

	// Best-effort; the decision has committed and stays committed.
	s.Notifier.NotifyLeaveDecision(string(requestID))

	return req, nil
}

// Cancel withdraws a pending request. Owner only, pending only.
func (s *Service) Cancel(ctx context.Context, requestID RequestID, actorID schedule.UserID) (*LeaveRequest, error) {
	req, err := s.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &schedule.NotFoundError{Entity: "leave_request", ID: string(requestID)}
	}

	if req.UserID != actorID {
		return nil, &schedule.ForbiddenError{ActorID: actorID, Reason: "only the requesting user may cancel"}
	}

	if req.Status != StatusPending {
		return nil, &schedule.StateError{
			Entity:    "leave_request",
			ID:        string(requestID),
			Current:   string(req.Status),
			Attempted: "cancel",
		}
	}

	now := time.Now().UTC()
	if err := s.Requests.CancelRequest(ctx, requestID, now); err != nil {
		return nil, err
	}

	req.Status = StatusCancelled
	req.UpdatedAt = now
	return req, nil
}
