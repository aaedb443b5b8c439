/*
assignment.go - Shift assignment lifecycle

PURPOSE:
  Governs the binding of one worker to one shift:

    proposed ─┐
              ├──▶ accepted
    assigned ─┘
              └──▶ declined

  Initial status is the manager's choice (proposed or assigned); accepted
  and declined are terminal. The collision detector guards assignment and
  acceptance, and the store's exclusion constraint closes the race the
  guard cannot.

OWNERSHIP:
  Assign is a manager action (schedule:assign). Responding belongs to the
  assigned user alone; anyone else gets Forbidden.
*/
package schedule

import (
	"context"
	"time"
)

// AssignmentService drives the shift assignment lifecycle.
type AssignmentService struct {
	Shifts      ShiftStore
	Assignments AssignmentStore
	Collisions  *CollisionDetector
	Caps        CapabilityChecker
	Notifier    Notifier
}

func NewAssignmentService(shifts ShiftStore, assignments AssignmentStore, cd *CollisionDetector, caps CapabilityChecker, n Notifier) *AssignmentService {
	if n == nil {
		n = LogNotifier{}
	}
	return &AssignmentService{Shifts: shifts, Assignments: assignments, Collisions: cd, Caps: caps, Notifier: n}
}

// Assign binds a user to a shift with the desired initial status. An
// existing assignment for (shift, user) is updated in place, so a manager
// can escalate a proposal to a firm assignment. When the desired status is
// assigned, the candidate interval is collision-checked first.
func (s *AssignmentService) Assign(ctx context.Context, actorID UserID, shiftID ShiftID, userID UserID, desired AssignmentStatus) (*ShiftAssignment, error) {
	if desired != AssignmentProposed && desired != AssignmentAssigned {
		return nil, &ValidationError{Field: "status", Message: "initial status must be proposed or assigned"}
	}

	shift, err := s.Shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, &NotFoundError{Entity: "shift", ID: string(shiftID)}
	}

	if !s.Caps.HasCapability(ctx, actorID, CapScheduleAssign, shift.LocationID) {
		return nil, &ForbiddenError{ActorID: actorID, Capability: CapScheduleAssign}
	}

	if desired == AssignmentAssigned {
		collides, err := s.Collisions.HasShiftCollision(ctx, userID, shift.StartAt, shift.EndAt, shiftID)
		if err != nil {
			return nil, err
		}
		if collides {
			return nil, &CollisionError{Kind: CollisionShift, UserID: userID, Start: shift.StartAt, End: shift.EndAt}
		}
	}

	now := time.Now().UTC()
	assignment, err := s.Assignments.FindAssignment(ctx, shiftID, userID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		assignment = &ShiftAssignment{
			ID:        AssignmentID(NewID()),
			ShiftID:   shiftID,
			UserID:    userID,
			CreatedAt: now,
		}
	}

	assignment.Status = desired
	assignment.UpdatedAt = now
	switch desired {
	case AssignmentAssigned:
		assignment.AssignedAt = &now
		assignment.ProposedAt = nil
	case AssignmentProposed:
		assignment.ProposedAt = &now
		assignment.AssignedAt = nil
	}

	// The store re-checks the exclusion constraint; a concurrent writer
	// surfaces here as the same collision error family as the pre-check.
	if err := s.Assignments.SaveAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	change := ShiftChangeProposed
	if desired == AssignmentAssigned {
		change = ShiftChangeAssigned
	}
	s.Notifier.NotifyShiftChange(shiftID, userID, change)

	return assignment, nil
}

// Respond records the assigned user's accept or decline. Only valid from
// proposed or assigned; acceptance re-runs the collision check excluding
// this shift so the assignment never collides with itself.
func (s *AssignmentService) Respond(ctx context.Context, assignmentID AssignmentID, actorID UserID, accept bool) (*ShiftAssignment, error) {
	assignment, err := s.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, &NotFoundError{Entity: "assignment", ID: string(assignmentID)}
	}

	if assignment.UserID != actorID {
		return nil, &ForbiddenError{ActorID: actorID, Reason: "only the assigned user may respond"}
	}

	if assignment.Status != AssignmentProposed && assignment.Status != AssignmentAssigned {
		return nil, &StateError{
			Entity:    "assignment",
			ID:        string(assignmentID),
			Current:   string(assignment.Status),
			Attempted: "respond",
		}
	}

	to := AssignmentDeclined
	if accept {
		shift, err := s.Shifts.GetShift(ctx, assignment.ShiftID)
		if err != nil {
			return nil, err
		}
		if shift == nil {
			return nil, &NotFoundError{Entity: "shift", ID: string(assignment.ShiftID)}
		}
		collides, err := s.Collisions.HasShiftCollision(ctx, actorID, shift.StartAt, shift.EndAt, shift.ID)
		if err != nil {
			return nil, err
		}
		if collides {
			return nil, &CollisionError{Kind: CollisionShift, UserID: actorID, Start: shift.StartAt, End: shift.EndAt}
		}
		to = AssignmentAccepted
	}

	now := time.Now().UTC()
	if err := s.Assignments.UpdateAssignmentStatus(ctx, assignmentID, assignment.Status, to, now); err != nil {
		return nil, err
	}

	assignment.Status = to
	assignment.RespondedAt = &now
	assignment.UpdatedAt = now
	return assignment, nil
}
