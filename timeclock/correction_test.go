package timeclock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/store/memory"
	"github.com/warp/rota-engine/timeclock"
)

const (
	workerID   = schedule.UserID("wkr-1")
	reviewerID = schedule.UserID("mgr-1")
)

type fixture struct {
	store       *memory.Store
	punches     *timeclock.PunchService
	corrections *timeclock.CorrectionService
	shiftID     schedule.ShiftID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	rota := &schedule.Rota{
		ID: schedule.RotaID(schedule.NewID()), LocationID: "loc-1",
		WeekStart: time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC),
		Status:    schedule.RotaPublished,
	}
	require.NoError(t, store.InsertRota(ctx, rota))

	shift := &schedule.Shift{
		ID: schedule.ShiftID(schedule.NewID()), RotaID: rota.ID, LocationID: "loc-1",
		StartAt: time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2024, 4, 10, 17, 0, 0, 0, time.UTC),
		Status:  schedule.ShiftScheduled,
	}
	require.NoError(t, store.SaveShift(ctx, shift))
	require.NoError(t, store.SaveAssignment(ctx, &schedule.ShiftAssignment{
		ID: schedule.AssignmentID(schedule.NewID()), ShiftID: shift.ID,
		UserID: workerID, Status: schedule.AssignmentAccepted,
	}))

	caps := schedule.StaticCapabilities{reviewerID: {schedule.CapTimeclockManage}}
	return &fixture{
		store:       store,
		punches:     timeclock.NewPunchService(store, store),
		corrections: timeclock.NewCorrectionService(store, store, store, caps),
		shiftID:     shift.ID,
	}
}

func shiftTime(hour int) time.Time {
	return time.Date(2024, 4, 10, hour, 0, 0, 0, time.UTC)
}

// =============================================================================
// PUNCHES
// =============================================================================

func TestClockInOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in, err := f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(9))
	require.NoError(t, err)
	assert.Equal(t, timeclock.EventClockIn, in.Type)

	out, err := f.punches.ClockOut(ctx, workerID, f.shiftID, shiftTime(17))
	require.NoError(t, err)
	assert.Equal(t, timeclock.EventClockOut, out.Type)
}

func TestClockInRequiresAssignment(t *testing.T) {
	f := newFixture(t)

	_, err := f.punches.ClockIn(context.Background(), schedule.UserID("stranger"), f.shiftID, shiftTime(9))
	assert.ErrorIs(t, err, schedule.ErrForbidden)
}

func TestClockInWhileOnTheClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(9))
	require.NoError(t, err)

	_, err = f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(10))
	assert.ErrorIs(t, err, schedule.ErrInvalidState)
}

func TestClockOutRequiresAssignment(t *testing.T) {
	// GIVEN a worker on the clock and a second shift they hold no
	// assignment on
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(9))
	require.NoError(t, err)

	other := &schedule.Shift{
		ID: schedule.ShiftID(schedule.NewID()), RotaID: "rota-other", LocationID: "loc-1",
		StartAt: shiftTime(17),
		EndAt:   shiftTime(21),
		Status:  schedule.ShiftScheduled,
	}
	require.NoError(t, f.store.SaveShift(ctx, other))

	// THEN clocking out against the foreign shift is forbidden
	_, err = f.punches.ClockOut(ctx, workerID, other.ID, shiftTime(17))
	assert.ErrorIs(t, err, schedule.ErrForbidden)
}

func TestClockOutRequiresOpenClockIn(t *testing.T) {
	f := newFixture(t)

	_, err := f.punches.ClockOut(context.Background(), workerID, f.shiftID, shiftTime(17))
	assert.ErrorIs(t, err, schedule.ErrInvalidState)
}

func TestClockOutMustFollowClockIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(9))
	require.NoError(t, err)

	_, err = f.punches.ClockOut(ctx, workerID, f.shiftID, shiftTime(8))
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

// =============================================================================
// CORRECTIONS
// =============================================================================

func TestCorrectionReasonLength(t *testing.T) {
	f := newFixture(t)

	_, err := f.corrections.Request(context.Background(), workerID, f.shiftID, nil,
		shiftTime(9), shiftTime(8), "typo")
	assert.ErrorIs(t, err, schedule.ErrValidation)

	// Padding with whitespace does not help
	_, err = f.corrections.Request(context.Background(), workerID, f.shiftID, nil,
		shiftTime(9), shiftTime(8), "  typo    ")
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestCorrectionRequiresAssignment(t *testing.T) {
	f := newFixture(t)

	_, err := f.corrections.Request(context.Background(), schedule.UserID("stranger"), f.shiftID, nil,
		shiftTime(9), shiftTime(8), "forgot to clock in on time")
	assert.ErrorIs(t, err, schedule.ErrForbidden)
}

func TestCorrectionEventOwnership(t *testing.T) {
	// GIVEN a punch belonging to another user on the same shift
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveAssignment(ctx, &schedule.ShiftAssignment{
		ID: schedule.AssignmentID(schedule.NewID()), ShiftID: f.shiftID,
		UserID: "wkr-2", Status: schedule.AssignmentAccepted,
	}))
	other, err := f.punches.ClockIn(ctx, "wkr-2", f.shiftID, shiftTime(9))
	require.NoError(t, err)

	// THEN the worker cannot file a correction against it
	_, err = f.corrections.Request(ctx, workerID, f.shiftID, &other.ID,
		time.Time{}, shiftTime(8), "clocked in earlier than recorded")
	assert.ErrorIs(t, err, schedule.ErrForbidden)
}

func TestCorrectionApproveRewritesEvent(t *testing.T) {
	// GIVEN a recorded punch and a pending correction against it
	f := newFixture(t)
	ctx := context.Background()

	event, err := f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(10))
	require.NoError(t, err)

	correction, err := f.corrections.Request(ctx, workerID, f.shiftID, &event.ID,
		time.Time{}, shiftTime(9), "actually started at nine, forgot badge")
	require.NoError(t, err)
	assert.Equal(t, shiftTime(10), correction.OriginalTime, "original time comes from the event")

	// WHEN the reviewer approves
	decided, err := f.corrections.Decide(ctx, correction.ID, reviewerID, timeclock.CorrectionApprove, "checked cctv")
	require.NoError(t, err)
	assert.Equal(t, timeclock.CorrectionApproved, decided.Status)

	// THEN the historical punch is rewritten
	updated, err := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, shiftTime(9), updated.OccurredAt)
}

func TestCorrectionDecideRequiresCapability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	correction, err := f.corrections.Request(ctx, workerID, f.shiftID, nil,
		shiftTime(9), shiftTime(8), "forgot to clock in on time")
	require.NoError(t, err)

	_, err = f.corrections.Decide(ctx, correction.ID, workerID, timeclock.CorrectionApprove, "")
	assert.ErrorIs(t, err, schedule.ErrForbidden)
}

func TestCorrectionDecideOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	correction, err := f.corrections.Request(ctx, workerID, f.shiftID, nil,
		shiftTime(9), shiftTime(8), "forgot to clock in on time")
	require.NoError(t, err)

	_, err = f.corrections.Decide(ctx, correction.ID, reviewerID, timeclock.CorrectionReject, "")
	require.NoError(t, err)

	// A decided correction reports already-processed, not a bare conflict
	_, err = f.corrections.Decide(ctx, correction.ID, reviewerID, timeclock.CorrectionApprove, "")
	assert.ErrorIs(t, err, schedule.ErrAlreadyProcessed)
}

func TestCorrectionRejectLeavesEventAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event, err := f.punches.ClockIn(ctx, workerID, f.shiftID, shiftTime(10))
	require.NoError(t, err)

	correction, err := f.corrections.Request(ctx, workerID, f.shiftID, &event.ID,
		time.Time{}, shiftTime(9), "actually started at nine, forgot badge")
	require.NoError(t, err)

	_, err = f.corrections.Decide(ctx, correction.ID, reviewerID, timeclock.CorrectionReject, "no evidence")
	require.NoError(t, err)

	untouched, err := f.store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, shiftTime(10), untouched.OccurredAt)
}
