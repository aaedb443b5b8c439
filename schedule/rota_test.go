package schedule_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/store/memory"
)

var (
	manager = schedule.UserID("mgr-1")
	worker  = schedule.UserID("wkr-1")
)

func managerCaps() schedule.StaticCapabilities {
	return schedule.StaticCapabilities{
		manager: {
			schedule.CapSchedulePublish,
			schedule.CapScheduleAssign,
			schedule.CapScheduleManage,
		},
	}
}

func TestRotaCreateNormalizesWeekStart(t *testing.T) {
	// GIVEN a rota service and a mid-week instant
	store := memory.New()
	svc := schedule.NewRotaService(store, managerCaps())
	thursday := time.Date(2024, 4, 11, 15, 30, 0, 0, time.UTC)

	// WHEN creating a rota for that week
	rota, err := svc.Create(context.Background(), manager, "loc-1", thursday, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// THEN the week start is the Monday of that week
	want := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)
	if !rota.WeekStart.Equal(want) {
		t.Errorf("WeekStart = %v, want %v", rota.WeekStart, want)
	}
	if rota.Status != schedule.RotaDraft {
		t.Errorf("new rota must start in draft, got %s", rota.Status)
	}
}

func TestRotaCreateDuplicateWeek(t *testing.T) {
	// GIVEN an existing rota for (location, week)
	store := memory.New()
	svc := schedule.NewRotaService(store, managerCaps())
	week := time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), manager, "loc-1", week, nil); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	// WHEN creating a second rota for the same location and week
	_, err := svc.Create(context.Background(), manager, "loc-1", week.Add(49*time.Hour), nil)

	// THEN the store uniqueness constraint rejects it
	if !errors.Is(err, schedule.ErrDuplicateRota) {
		t.Errorf("expected ErrDuplicateRota, got %v", err)
	}

	// AND a different location is unaffected
	if _, err := svc.Create(context.Background(), manager, "loc-2", week, nil); err != nil {
		t.Errorf("different location must be allowed: %v", err)
	}
}

func TestRotaCreateRequiresCapability(t *testing.T) {
	store := memory.New()
	svc := schedule.NewRotaService(store, managerCaps())

	_, err := svc.Create(context.Background(), worker, "loc-1", time.Now(), nil)
	if !schedule.IsForbidden(err) {
		t.Errorf("expected Forbidden, got %v", err)
	}
}

// TestRotaTransitionTable exercises every (from, to) pair.
func TestRotaTransitionTable(t *testing.T) {
	statuses := []schedule.RotaStatus{schedule.RotaDraft, schedule.RotaPublished, schedule.RotaLocked}
	allowed := map[schedule.RotaStatus]map[schedule.RotaStatus]bool{
		schedule.RotaDraft:     {schedule.RotaPublished: true},
		schedule.RotaPublished: {schedule.RotaLocked: true, schedule.RotaDraft: true},
		schedule.RotaLocked:    {},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if from == to {
				continue
			}
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				// GIVEN a rota in the from status
				store := memory.New()
				svc := schedule.NewRotaService(store, managerCaps())
				rota := &schedule.Rota{
					ID:         schedule.RotaID(schedule.NewID()),
					LocationID: "loc-1",
					WeekStart:  time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC),
					Status:     from,
					UpdatedBy:  manager,
				}
				if err := store.InsertRota(context.Background(), rota); err != nil {
					t.Fatalf("InsertRota failed: %v", err)
				}

				// WHEN transitioning to the target status
				_, err := svc.Transition(context.Background(), manager, rota.ID, to)

				// THEN the outcome matches the transition table
				if allowed[from][to] {
					if err != nil {
						t.Errorf("transition %s -> %s must succeed, got %v", from, to, err)
					}
				} else if !errors.Is(err, schedule.ErrInvalidTransition) {
					t.Errorf("transition %s -> %s must fail with InvalidTransition, got %v", from, to, err)
				}
			})
		}
	}
}

func TestRotaTransitionRequiresCapability(t *testing.T) {
	store := memory.New()
	svc := schedule.NewRotaService(store, managerCaps())
	rota, err := svc.Create(context.Background(), manager, "loc-1", time.Now(), nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A worker without schedule:publish cannot publish
	_, err = svc.Transition(context.Background(), worker, rota.ID, schedule.RotaPublished)
	if !schedule.IsForbidden(err) {
		t.Errorf("expected Forbidden, got %v", err)
	}
}

func TestRotaTransitionConcurrentLoser(t *testing.T) {
	// GIVEN a draft rota
	store := memory.New()
	ctx := context.Background()
	rota := &schedule.Rota{
		ID:         schedule.RotaID(schedule.NewID()),
		LocationID: "loc-1",
		WeekStart:  time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC),
		Status:     schedule.RotaDraft,
		UpdatedBy:  manager,
	}
	if err := store.InsertRota(ctx, rota); err != nil {
		t.Fatalf("InsertRota failed: %v", err)
	}

	// WHEN two writers race the same compare-and-swap
	if err := store.UpdateRotaStatus(ctx, rota.ID, schedule.RotaDraft, schedule.RotaPublished, manager, time.Now()); err != nil {
		t.Fatalf("first CAS failed: %v", err)
	}
	err := store.UpdateRotaStatus(ctx, rota.ID, schedule.RotaDraft, schedule.RotaPublished, manager, time.Now())

	// THEN the loser sees the state conflict, not silent success
	if !errors.Is(err, schedule.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for stale CAS, got %v", err)
	}
}

func TestRotaTransitionNotFound(t *testing.T) {
	store := memory.New()
	svc := schedule.NewRotaService(store, managerCaps())

	_, err := svc.Transition(context.Background(), manager, "missing", schedule.RotaPublished)
	if !schedule.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
