/*
shift.go - Shift management within a rota

PURPOSE:
  Create/update/cancel/delete shifts under a rota. Writes are blocked once
  the rota is locked and reserved for the schedule:manage capability.
  Cancellation releases the shift's interval but keeps its assignments for
  the record; deletion cascades to the assignments.
*/
package schedule

import (
	"context"
	"log"
	"time"
)

// ShiftService manages shifts belonging to a rota.
type ShiftService struct {
	Rotas       RotaStore
	Shifts      ShiftStore
	Assignments AssignmentStore
	Caps        CapabilityChecker
	Notifier    Notifier
}

func NewShiftService(rotas RotaStore, shifts ShiftStore, assignments AssignmentStore, caps CapabilityChecker, n Notifier) *ShiftService {
	if n == nil {
		n = LogNotifier{}
	}
	return &ShiftService{Rotas: rotas, Shifts: shifts, Assignments: assignments, Caps: caps, Notifier: n}
}

// ShiftInput is the caller-supplied portion of a shift.
type ShiftInput struct {
	JobTagID     JobTagID
	StartAt      time.Time
	EndAt        time.Time
	BreakMinutes int
	Notes        string
}

func (in ShiftInput) validate() error {
	if !in.EndAt.After(in.StartAt) {
		return &ValidationError{Field: "end_at", Message: "must be after start_at"}
	}
	if in.BreakMinutes < 0 {
		return &ValidationError{Field: "break_minutes", Message: "must not be negative"}
	}
	return nil
}

// writableRota loads the rota and rejects writes once it is locked.
func (s *ShiftService) writableRota(ctx context.Context, rotaID RotaID) (*Rota, error) {
	rota, err := s.Rotas.GetRota(ctx, rotaID)
	if err != nil {
		return nil, err
	}
	if rota == nil {
		return nil, &NotFoundError{Entity: "rota", ID: string(rotaID)}
	}
	if rota.Status == RotaLocked {
		return nil, &StateError{Entity: "rota", ID: string(rotaID), Current: string(rota.Status), Attempted: "modify shifts"}
	}
	return rota, nil
}

// Create adds a shift to a rota.
func (s *ShiftService) Create(ctx context.Context, actorID UserID, rotaID RotaID, in ShiftInput) (*Shift, error) {
	rota, err := s.writableRota(ctx, rotaID)
	if err != nil {
		return nil, err
	}
	if !s.Caps.HasCapability(ctx, actorID, CapScheduleManage, rota.LocationID) {
		return nil, &ForbiddenError{ActorID: actorID, Capability: CapScheduleManage}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	shift := &Shift{
		ID:           ShiftID(NewID()),
		RotaID:       rotaID,
		LocationID:   rota.LocationID,
		JobTagID:     in.JobTagID,
		StartAt:      in.StartAt.UTC(),
		EndAt:        in.EndAt.UTC(),
		BreakMinutes: in.BreakMinutes,
		Status:       ShiftScheduled,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Shifts.SaveShift(ctx, shift); err != nil {
		return nil, err
	}
	return shift, nil
}

// Update rewrites a shift's caller-supplied fields.
func (s *ShiftService) Update(ctx context.Context, actorID UserID, shiftID ShiftID, in ShiftInput) (*Shift, error) {
	shift, err := s.Shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, &NotFoundError{Entity: "shift", ID: string(shiftID)}
	}
	if _, err := s.writableRota(ctx, shift.RotaID); err != nil {
		return nil, err
	}
	if !s.Caps.HasCapability(ctx, actorID, CapScheduleManage, shift.LocationID) {
		return nil, &ForbiddenError{ActorID: actorID, Capability: CapScheduleManage}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	shift.JobTagID = in.JobTagID
	shift.StartAt = in.StartAt.UTC()
	shift.EndAt = in.EndAt.UTC()
	shift.BreakMinutes = in.BreakMinutes
	shift.Notes = in.Notes
	shift.UpdatedAt = time.Now().UTC()

	if err := s.Shifts.SaveShift(ctx, shift); err != nil {
		return nil, err
	}
	return shift, nil
}

// Cancel marks a shift cancelled. The shift row and its assignments stay
// for the record, but the interval no longer counts for collisions or
// compliance. Active assignees are notified best-effort.
func (s *ShiftService) Cancel(ctx context.Context, actorID UserID, shiftID ShiftID) (*Shift, error) {
	shift, err := s.Shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return nil, &NotFoundError{Entity: "shift", ID: string(shiftID)}
	}
	if _, err := s.writableRota(ctx, shift.RotaID); err != nil {
		return nil, err
	}
	if !s.Caps.HasCapability(ctx, actorID, CapScheduleManage, shift.LocationID) {
		return nil, &ForbiddenError{ActorID: actorID, Capability: CapScheduleManage}
	}
	if shift.Status == ShiftCancelled {
		return nil, &StateError{Entity: "shift", ID: string(shiftID), Current: string(shift.Status), Attempted: "cancel"}
	}

	shift.Status = ShiftCancelled
	shift.UpdatedAt = time.Now().UTC()
	if err := s.Shifts.SaveShift(ctx, shift); err != nil {
		return nil, err
	}

	assignments, err := s.Assignments.ListAssignmentsByShift(ctx, shiftID)
	if err != nil {
		log.Printf("shift %s cancelled but listing assignees for notification failed: %v", shiftID, err)
		return shift, nil
	}
	for _, a := range assignments {
		if a.Status.Active() {
			s.Notifier.NotifyShiftChange(shiftID, a.UserID, ShiftChangeRemoved)
		}
	}
	return shift, nil
}

// Delete removes a shift and cascades to its assignments. Affected users
// are notified best-effort. Destructive, not a lifecycle transition.
func (s *ShiftService) Delete(ctx context.Context, actorID UserID, shiftID ShiftID) error {
	shift, err := s.Shifts.GetShift(ctx, shiftID)
	if err != nil {
		return err
	}
	if shift == nil {
		return &NotFoundError{Entity: "shift", ID: string(shiftID)}
	}
	if _, err := s.writableRota(ctx, shift.RotaID); err != nil {
		return err
	}
	if !s.Caps.HasCapability(ctx, actorID, CapScheduleManage, shift.LocationID) {
		return &ForbiddenError{ActorID: actorID, Capability: CapScheduleManage}
	}

	removed, err := s.Shifts.DeleteShift(ctx, shiftID)
	if err != nil {
		return err
	}
	for _, userID := range removed {
		s.Notifier.NotifyShiftChange(shiftID, userID, ShiftChangeRemoved)
	}
	return nil
}
