/*
Package leave implements the leave request lifecycle.

PURPOSE:
  A worker requests time off; a manager approves or rejects it; the
  worker may cancel while it is still pending. Active leave (pending or
  approved) participates in collision detection: a user can never hold
  two overlapping active requests.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: Org-configured category (holiday, sick, unpaid, ...)
  - LeaveRequest: The request entity with its half-open interval
  - Decision: approve | reject

SEE ALSO:
  - service.go: Create/Decide/Cancel lifecycle operations
*/
package leave

import (
	"time"

	"github.com/warp/rota-engine/schedule"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	RequestID string
	TypeID    string
)

// =============================================================================
// LEAVE TYPE - Org-scoped category
// =============================================================================

type LeaveType struct {
	ID       TypeID
	OrgID    schedule.OrgID
	Name     string
	IsPaid   bool
	IsActive bool
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the request occupies its interval for collision
// purposes. Pending and approved requests both block overlapping leave.
func (s Status) Active() bool { return s == StatusPending || s == StatusApproved }

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// LeaveRequest is a user's request for time off over [StartAt, EndAt).
// Invariant: EndAt > StartAt; no two active requests of one user overlap.
type LeaveRequest struct {
	ID      RequestID
	OrgID   schedule.OrgID
	UserID  schedule.UserID
	TypeID  TypeID
	StartAt time.Time
	EndAt   time.Time
	Status  Status
	Reason  string

	ApproverID *schedule.UserID
	ApprovedAt *time.Time
	Notes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval returns the request's half-open interval.
func (r LeaveRequest) Interval() schedule.Interval {
	return schedule.Interval{Start: r.StartAt, End: r.EndAt}
}
