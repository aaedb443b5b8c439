package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/store/sqlite"
	"github.com/warp/rota-engine/timeclock"
)

const testUser = schedule.UserID("wkr-1")

// newStore opens a store on a throwaway database file. A file, not
// ":memory:": the connection pool may open more than one connection, and
// each in-memory connection would see its own empty database.
func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func week() time.Time { return time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC) }

func hour(h int) time.Time { return time.Date(2024, 4, 10, h, 0, 0, 0, time.UTC) }

func seedRota(t *testing.T, store *sqlite.Store) *schedule.Rota {
	t.Helper()
	now := time.Now().UTC()
	r := &schedule.Rota{
		ID: schedule.RotaID(schedule.NewID()), LocationID: "loc-1",
		WeekStart: week(), Status: schedule.RotaPublished,
		CreatedAt: now, UpdatedAt: now, UpdatedBy: "mgr-1",
	}
	require.NoError(t, store.InsertRota(context.Background(), r))
	return r
}

func seedShift(t *testing.T, store *sqlite.Store, rotaID schedule.RotaID, startHour, endHour int) *schedule.Shift {
	t.Helper()
	now := time.Now().UTC()
	sh := &schedule.Shift{
		ID: schedule.ShiftID(schedule.NewID()), RotaID: rotaID, LocationID: "loc-1",
		StartAt: hour(startHour), EndAt: hour(endHour),
		Status: schedule.ShiftScheduled, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.SaveShift(context.Background(), sh))
	return sh
}

func assignment(shiftID schedule.ShiftID, userID schedule.UserID, status schedule.AssignmentStatus) *schedule.ShiftAssignment {
	now := time.Now().UTC()
	return &schedule.ShiftAssignment{
		ID: schedule.AssignmentID(schedule.NewID()), ShiftID: shiftID,
		UserID: userID, Status: status, CreatedAt: now, UpdatedAt: now,
	}
}

// =============================================================================
// ROTAS
// =============================================================================

func TestRotaRoundtrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	budget := schedule.NewMoney(2500, "EUR")
	now := time.Now().UTC()
	r := &schedule.Rota{
		ID: "rota-1", LocationID: "loc-1", WeekStart: week(),
		Status: schedule.RotaDraft, LaborBudget: &budget,
		CreatedAt: now, UpdatedAt: now, UpdatedBy: "mgr-1",
	}
	require.NoError(t, store.InsertRota(ctx, r))

	got, err := store.GetRota(ctx, "rota-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schedule.RotaDraft, got.Status)
	assert.True(t, got.WeekStart.Equal(week()))
	require.NotNil(t, got.LaborBudget)
	assert.True(t, got.LaborBudget.Amount.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, "EUR", got.LaborBudget.Currency)

	byWeek, err := store.GetRotaByWeek(ctx, "loc-1", week())
	require.NoError(t, err)
	require.NotNil(t, byWeek)
	assert.Equal(t, got.ID, byWeek.ID)
}

func TestRotaDuplicateWeek(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	seedRota(t, store)

	dup := &schedule.Rota{
		ID: schedule.RotaID(schedule.NewID()), LocationID: "loc-1",
		WeekStart: week(), Status: schedule.RotaDraft, UpdatedBy: "mgr-1",
	}
	err := store.InsertRota(ctx, dup)
	assert.ErrorIs(t, err, schedule.ErrDuplicateRota)

	// Same week at another location is fine
	dup.LocationID = "loc-2"
	assert.NoError(t, store.InsertRota(ctx, dup))
}

func TestRotaStatusCAS(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	r := seedRota(t, store)

	require.NoError(t, store.UpdateRotaStatus(ctx, r.ID, schedule.RotaPublished, schedule.RotaLocked, "mgr-1", time.Now()))

	// The second writer's expected status is stale
	err := store.UpdateRotaStatus(ctx, r.ID, schedule.RotaPublished, schedule.RotaLocked, "mgr-2", time.Now())
	assert.ErrorIs(t, err, schedule.ErrInvalidState)

	err = store.UpdateRotaStatus(ctx, "missing", schedule.RotaDraft, schedule.RotaPublished, "mgr-1", time.Now())
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func TestAssignmentExclusion(t *testing.T) {
	// GIVEN confirmed work on [09:00, 17:00)
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	first := seedShift(t, store, rota.ID, 9, 17)
	overlapping := seedShift(t, store, rota.ID, 16, 20)
	adjacent := seedShift(t, store, rota.ID, 17, 21)

	require.NoError(t, store.SaveAssignment(ctx, assignment(first.ID, testUser, schedule.AssignmentAssigned)))

	// THEN a confirmed overlap is rejected inside the store
	err := store.SaveAssignment(ctx, assignment(overlapping.ID, testUser, schedule.AssignmentAssigned))
	assert.ErrorIs(t, err, schedule.ErrShiftCollision)

	// AND a proposal on the same interval is allowed
	assert.NoError(t, store.SaveAssignment(ctx, assignment(overlapping.ID, testUser, schedule.AssignmentProposed)))

	// AND a back-to-back confirmed shift is allowed
	assert.NoError(t, store.SaveAssignment(ctx, assignment(adjacent.ID, testUser, schedule.AssignmentAssigned)))
}

func TestExclusionCoversAcceptCommit(t *testing.T) {
	// GIVEN a proposal on [16:00, 20:00) and a confirmed assignment that
	// landed on overlapping [09:00, 17:00) after the proposal was made
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	firm := seedShift(t, store, rota.ID, 9, 17)
	proposed := seedShift(t, store, rota.ID, 16, 20)

	p := assignment(proposed.ID, testUser, schedule.AssignmentProposed)
	require.NoError(t, store.SaveAssignment(ctx, p))
	require.NoError(t, store.SaveAssignment(ctx, assignment(firm.ID, testUser, schedule.AssignmentAssigned)))

	// THEN the accept commit itself is rejected, not just the pre-check
	err := store.UpdateAssignmentStatus(ctx, p.ID, schedule.AssignmentProposed, schedule.AssignmentAccepted, time.Now())
	assert.ErrorIs(t, err, schedule.ErrShiftCollision)

	got, err := store.GetAssignment(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schedule.AssignmentProposed, got.Status)

	// AND declining is still fine; declined holds no interval
	assert.NoError(t, store.UpdateAssignmentStatus(ctx, p.ID, schedule.AssignmentProposed, schedule.AssignmentDeclined, time.Now()))
}

func TestCancelledShiftHoldsNoInterval(t *testing.T) {
	// GIVEN confirmed work on a shift that is then cancelled
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	cancelled := seedShift(t, store, rota.ID, 9, 17)
	overlapping := seedShift(t, store, rota.ID, 16, 20)

	require.NoError(t, store.SaveAssignment(ctx, assignment(cancelled.ID, testUser, schedule.AssignmentAssigned)))
	cancelled.Status = schedule.ShiftCancelled
	require.NoError(t, store.SaveShift(ctx, cancelled))

	// THEN its interval no longer blocks a confirmed overlap
	assert.NoError(t, store.SaveAssignment(ctx, assignment(overlapping.ID, testUser, schedule.AssignmentAssigned)))

	// AND it is gone from collision and compliance reads
	intervals, err := store.ConfirmedShiftIntervals(ctx, testUser, "")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, overlapping.ID, intervals[0].ShiftID)

	shifts, err := store.ListConfirmedShiftsForUser(ctx, testUser, hour(0), hour(23))
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, overlapping.ID, shifts[0].ID)
}

func TestAssignmentActiveSlotUnique(t *testing.T) {
	// One non-declined assignment per (shift, user)
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	shift := seedShift(t, store, rota.ID, 9, 17)

	require.NoError(t, store.SaveAssignment(ctx, assignment(shift.ID, testUser, schedule.AssignmentProposed)))

	err := store.SaveAssignment(ctx, assignment(shift.ID, testUser, schedule.AssignmentProposed))
	assert.ErrorIs(t, err, schedule.ErrShiftCollision)
}

func TestAssignmentStatusCAS(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	shift := seedShift(t, store, rota.ID, 9, 17)
	a := assignment(shift.ID, testUser, schedule.AssignmentProposed)
	require.NoError(t, store.SaveAssignment(ctx, a))

	require.NoError(t, store.UpdateAssignmentStatus(ctx, a.ID, schedule.AssignmentProposed, schedule.AssignmentAccepted, time.Now()))

	err := store.UpdateAssignmentStatus(ctx, a.ID, schedule.AssignmentProposed, schedule.AssignmentDeclined, time.Now())
	assert.ErrorIs(t, err, schedule.ErrInvalidState)

	got, err := store.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schedule.AssignmentAccepted, got.Status)
	assert.NotNil(t, got.RespondedAt)
}

func TestDeleteShiftCascades(t *testing.T) {
	// GIVEN a shift with one active and one declined assignment
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	shift := seedShift(t, store, rota.ID, 9, 17)

	require.NoError(t, store.SaveAssignment(ctx, assignment(shift.ID, testUser, schedule.AssignmentAssigned)))
	require.NoError(t, store.SaveAssignment(ctx, assignment(shift.ID, "wkr-2", schedule.AssignmentDeclined)))

	// WHEN the shift is deleted
	removed, err := store.DeleteShift(ctx, shift.ID)
	require.NoError(t, err)

	// THEN only the actively scheduled user is reported as removed
	assert.Equal(t, []schedule.UserID{testUser}, removed)

	gone, err := store.GetShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	left, err := store.ListAssignmentsByShift(ctx, shift.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = store.DeleteShift(ctx, shift.ID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestListConfirmedShiftsForUser(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	rota := seedRota(t, store)
	confirmed := seedShift(t, store, rota.ID, 9, 17)
	proposedOnly := seedShift(t, store, rota.ID, 18, 20)

	require.NoError(t, store.SaveAssignment(ctx, assignment(confirmed.ID, testUser, schedule.AssignmentAccepted)))
	require.NoError(t, store.SaveAssignment(ctx, assignment(proposedOnly.ID, testUser, schedule.AssignmentProposed)))

	shifts, err := store.ListConfirmedShiftsForUser(ctx, testUser, hour(0), hour(23))
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	assert.Equal(t, confirmed.ID, shifts[0].ID)
}

// =============================================================================
// LEAVE
// =============================================================================

func seedLeave(t *testing.T, store *sqlite.Store) *leave.LeaveRequest {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveType(ctx, &leave.LeaveType{
		ID: "type-holiday", OrgID: "org-1", Name: "Holiday", IsPaid: true, IsActive: true,
	}))
	now := time.Now().UTC()
	r := &leave.LeaveRequest{
		ID: leave.RequestID(schedule.NewID()), OrgID: "org-1", UserID: testUser,
		TypeID: "type-holiday", StartAt: hour(0), EndAt: hour(23),
		Status: leave.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.InsertRequest(ctx, r))
	return r
}

func TestInsertLeaveOverlapBlocked(t *testing.T) {
	// The insert enforces no-double-booking against the user's active
	// requests, closing the window between pre-check and commit
	store := newStore(t)
	ctx := context.Background()
	seedLeave(t, store) // pending on [00:00, 23:00)

	now := time.Now().UTC()
	conflicting := &leave.LeaveRequest{
		ID: leave.RequestID(schedule.NewID()), OrgID: "org-1", UserID: testUser,
		TypeID: "type-holiday", StartAt: hour(10), EndAt: hour(12),
		Status: leave.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	err := store.InsertRequest(ctx, conflicting)
	assert.ErrorIs(t, err, schedule.ErrLeaveCollision)

	// Another user's overlapping request is unaffected
	other := &leave.LeaveRequest{
		ID: leave.RequestID(schedule.NewID()), OrgID: "org-1", UserID: "wkr-2",
		TypeID: "type-holiday", StartAt: hour(10), EndAt: hour(12),
		Status: leave.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	assert.NoError(t, store.InsertRequest(ctx, other))
}

func TestLeaveDecideOnlyOnce(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	r := seedLeave(t, store)

	require.NoError(t, store.DecideRequest(ctx, r.ID, leave.StatusApproved, "mgr-1", time.Now(), "ok"))

	// The losing decider sees an invalid state
	err := store.DecideRequest(ctx, r.ID, leave.StatusRejected, "mgr-2", time.Now(), "")
	assert.ErrorIs(t, err, schedule.ErrInvalidState)

	got, err := store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, leave.StatusApproved, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, schedule.UserID("mgr-1"), *got.ApproverID)
	assert.Equal(t, "ok", got.Notes)
}

func TestLeaveCancelOnlyPending(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	r := seedLeave(t, store)

	require.NoError(t, store.CancelRequest(ctx, r.ID, time.Now()))

	err := store.CancelRequest(ctx, r.ID, time.Now())
	assert.ErrorIs(t, err, schedule.ErrInvalidState)
}

func TestActiveLeaveIntervals(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	r := seedLeave(t, store)

	intervals, err := store.ActiveLeaveIntervals(ctx, testUser, "")
	require.NoError(t, err)
	require.Len(t, intervals, 1)
	assert.Equal(t, string(r.ID), intervals[0].LeaveID)

	// Excluding the request's own ID hides it
	intervals, err = store.ActiveLeaveIntervals(ctx, testUser, string(r.ID))
	require.NoError(t, err)
	assert.Empty(t, intervals)

	// Cancelled leave holds no interval
	require.NoError(t, store.CancelRequest(ctx, r.ID, time.Now()))
	intervals, err = store.ActiveLeaveIntervals(ctx, testUser, "")
	require.NoError(t, err)
	assert.Empty(t, intervals)
}

// =============================================================================
// TIMECLOCK
// =============================================================================

func TestOpenClockIn(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	open, err := store.OpenClockIn(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, open)

	in := &timeclock.TimeClockEvent{
		ID: timeclock.EventID(schedule.NewID()), UserID: testUser, ShiftID: "shift-1",
		Type: timeclock.EventClockIn, OccurredAt: hour(9), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertEvent(ctx, in))

	open, err = store.OpenClockIn(ctx, testUser)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, in.ID, open.ID)

	out := &timeclock.TimeClockEvent{
		ID: timeclock.EventID(schedule.NewID()), UserID: testUser, ShiftID: "shift-1",
		Type: timeclock.EventClockOut, OccurredAt: hour(17), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertEvent(ctx, out))

	open, err = store.OpenClockIn(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, open, "a closed pair leaves no open clock-in")
}

func TestUpdateEventTime(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	e := &timeclock.TimeClockEvent{
		ID: timeclock.EventID(schedule.NewID()), UserID: testUser, ShiftID: "shift-1",
		Type: timeclock.EventClockIn, OccurredAt: hour(10), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.InsertEvent(ctx, e))
	require.NoError(t, store.UpdateEventTime(ctx, e.ID, hour(9)))

	got, err := store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.OccurredAt.Equal(hour(9)))

	err = store.UpdateEventTime(ctx, "missing", hour(9))
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestCorrectionDecideOnlyOnce(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	c := &timeclock.TimeCorrectionRequest{
		ID: timeclock.CorrectionID(schedule.NewID()), UserID: testUser, ShiftID: "shift-1",
		OriginalTime: hour(10), RequestedTime: hour(9),
		Reason: "forgot to clock in on time", Status: timeclock.CorrectionPending,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.InsertCorrection(ctx, c))
	require.NoError(t, store.DecideCorrection(ctx, c.ID, timeclock.CorrectionRejected, "mgr-1", time.Now(), "no"))

	err := store.DecideCorrection(ctx, c.ID, timeclock.CorrectionApproved, "mgr-2", time.Now(), "")
	assert.ErrorIs(t, err, schedule.ErrAlreadyProcessed)

	pending, err := store.ListPendingCorrections(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// =============================================================================
// COMPLIANCE
// =============================================================================

func violationFor(date time.Time) *compliance.Violation {
	hours := decimal.NewFromInt(12)
	return &compliance.Violation{
		OrgID: "org-1", LocationID: "loc-1", UserID: testUser,
		RuleID: "rule-daily", Date: date, Severity: compliance.SeverityWarning,
		Details: compliance.Details{HoursWorked: &hours, ThresholdHours: decimal.NewFromInt(10)},
	}
}

func TestUpsertViolationIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := violationFor(hour(0))
	require.NoError(t, store.UpsertViolation(ctx, first))
	require.NotEmpty(t, first.ID)

	// The same (user, rule, date) with fresh details updates in place
	second := violationFor(hour(0))
	second.Severity = compliance.SeverityCritical
	require.NoError(t, store.UpsertViolation(ctx, second))
	assert.Equal(t, first.ID, second.ID, "upsert must surface the surviving row")

	all, err := store.ListViolationsByUser(ctx, testUser, hour(0).AddDate(0, 0, -1), hour(0).AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, compliance.SeverityCritical, all[0].Severity)
}

func TestUpsertPreservesSilencing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	v := violationFor(hour(0))
	require.NoError(t, store.UpsertViolation(ctx, v))
	require.NoError(t, store.SilenceViolation(ctx, v.ID, "mgr-1", time.Now().UTC(), "signed waiver"))

	recompute := violationFor(hour(0))
	require.NoError(t, store.UpsertViolation(ctx, recompute))

	assert.True(t, recompute.IsSilenced, "recompute must not reset silencing")
	assert.Equal(t, "signed waiver", recompute.SilenceReason)
	require.NotNil(t, recompute.SilencedBy)
	assert.Equal(t, schedule.UserID("mgr-1"), *recompute.SilencedBy)
}

func TestSilenceUnknownViolation(t *testing.T) {
	store := newStore(t)

	err := store.SilenceViolation(context.Background(), "missing", "mgr-1", time.Now(), "reason")
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestActiveRulesFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRule(ctx, &compliance.Rule{
		ID: "rule-1", OrgID: "org-1", Key: compliance.RuleDailyRest,
		ThresholdHours: decimal.NewFromInt(11), IsActive: true,
	}))
	require.NoError(t, store.SaveRule(ctx, &compliance.Rule{
		ID: "rule-2", OrgID: "org-1", Key: compliance.RuleMaxHoursPerDay,
		ThresholdHours: decimal.NewFromInt(10), IsActive: false,
	}))
	require.NoError(t, store.SaveRule(ctx, &compliance.Rule{
		ID: "rule-3", OrgID: "org-2", Key: compliance.RuleMaxHoursPerWeek,
		ThresholdHours: decimal.NewFromInt(48), IsActive: true,
	}))

	rules, err := store.ListActiveRules(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, compliance.RuleID("rule-1"), rules[0].ID)
	assert.True(t, rules[0].ThresholdHours.Equal(decimal.NewFromInt(11)))
}
