/*
rota.go - Rota lifecycle state machine

PURPOSE:
  Governs a weekly schedule's draft -> published -> locked progression.
  Transition is the only way a rota's status changes; it stamps
  updated_by/updated_at and requires the schedule:publish capability.

TRANSITION TABLE:
  draft     -> published   publish
  published -> locked      lock
  published -> draft       rollback
  locked    -> *           rejected unconditionally (terminal)

  Any pair outside the table fails with InvalidTransition, reporting the
  attempted from/to pair.
*/
package schedule

import (
	"context"
	"time"
)

// rotaTransitions is the complete set of legal status moves.
var rotaTransitions = map[RotaStatus][]RotaStatus{
	RotaDraft:     {RotaPublished},
	RotaPublished: {RotaLocked, RotaDraft},
	RotaLocked:    {},
}

func rotaTransitionAllowed(from, to RotaStatus) bool {
	for _, t := range rotaTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// RotaService creates rotas and drives their lifecycle.
type RotaService struct {
	Rotas RotaStore
	Caps  CapabilityChecker
}

func NewRotaService(rotas RotaStore, caps CapabilityChecker) *RotaService {
	return &RotaService{Rotas: rotas, Caps: caps}
}

// Create opens a new draft rota for a location and week. The week start is
// normalized to the Monday of the given instant's week; uniqueness per
// (location, week) is enforced by the store.
func (s *RotaService) Create(ctx context.Context, actorID UserID, locationID LocationID, week time.Time, budget *Money) (*Rota, error) {
	if !s.Caps.HasCapability(ctx, actorID, CapScheduleManage, locationID) {
		return nil, &ForbiddenError{ActorID: actorID, Capability: CapScheduleManage}
	}
	if locationID == "" {
		return nil, &ValidationError{Field: "location_id", Message: "must not be empty"}
	}

	now := time.Now().UTC()
	rota := &Rota{
		ID:          RotaID(NewID()),
		LocationID:  locationID,
		WeekStart:   WeekStartOf(week),
		Status:      RotaDraft,
		LaborBudget: budget,
		CreatedAt:   now,
		UpdatedAt:   now,
		UpdatedBy:   actorID,
	}
	if err := s.Rotas.InsertRota(ctx, rota); err != nil {
		return nil, err
	}
	return rota, nil
}

// Transition moves a rota to a new status. The store performs the final
// compare-and-swap, so a concurrent transition loses with InvalidState.
func (s *RotaService) Transition(ctx context.Context, actorID UserID, rotaID RotaID, to RotaStatus) (*Rota, error) {
	rota, err := s.Rotas.GetRota(ctx, rotaID)
	if err != nil {
		return nil, err
	}
	if rota == nil {
		return nil, &NotFoundError{Entity: "rota", ID: string(rotaID)}
	}

	if !s.Caps.HasCapability(ctx, actorID, CapSchedulePublish, rota.LocationID) {
		return nil, &ForbiddenError{ActorID: actorID, Capability: CapSchedulePublish}
	}

	if !rotaTransitionAllowed(rota.Status, to) {
		return nil, &TransitionError{Entity: "rota", From: string(rota.Status), To: string(to)}
	}

	now := time.Now().UTC()
	if err := s.Rotas.UpdateRotaStatus(ctx, rotaID, rota.Status, to, actorID, now); err != nil {
		return nil, err
	}

	rota.Status = to
	rota.UpdatedAt = now
	rota.UpdatedBy = actorID
	return rota, nil
}
