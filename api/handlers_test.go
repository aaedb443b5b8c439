/*
handlers_test.go - HTTP-level tests through the full router

Exercises the wired router against the in-memory store: status codes,
error mapping, and the JSON contract for the main flows.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rota-engine/api"
	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/store/memory"
	"github.com/warp/rota-engine/timeclock"
)

const (
	managerID = "mgr-1"
	workerID  = "wkr-1"
)

func newServer(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()

	caps := schedule.StaticCapabilities{
		managerID: {
			schedule.CapScheduleManage, schedule.CapSchedulePublish, schedule.CapScheduleAssign,
			schedule.CapLeaveManage, schedule.CapTimeclockManage,
			schedule.CapComplianceCheck, schedule.CapComplianceSilence,
		},
	}
	detector := schedule.NewCollisionDetector(store)
	notifier := schedule.LogNotifier{}

	h := &api.Handler{
		Rotas:       schedule.NewRotaService(store, caps),
		Shifts:      schedule.NewShiftService(store, store, store, caps, notifier),
		Assignments: schedule.NewAssignmentService(store, store, detector, caps, notifier),
		Leave:       leave.NewService(store, detector, caps, notifier),
		Punches:     timeclock.NewPunchService(store, store),
		Corrections: timeclock.NewCorrectionService(store, store, store, caps),
		Compliance:  compliance.NewService(store, store, store, store, caps),

		RotaStore:       store,
		ShiftStore:      store,
		AssignmentStore: store,
		LeaveStore:      store,
		EventStore:      store,
		CorrectionStore: store,
		ViolationStore:  store,
	}

	router := api.NewRouter(h, api.RouterOptions{
		AllowedOrigins: []string{"*"},
	})
	return router, store
}

func do(t *testing.T, router http.Handler, method, path, actorID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func createRota(t *testing.T, router http.Handler) api.RotaDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/rotas", managerID, api.CreateRotaRequest{
		LocationID: "loc-1",
		Week:       "2024-04-10T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode[api.RotaDTO](t, rec)
}

// =============================================================================
// ROTAS
// =============================================================================

func TestCreateRotaNormalizesWeek(t *testing.T) {
	router, _ := newServer(t)

	rota := createRota(t, router)
	assert.Equal(t, "draft", rota.Status)
	// Wednesday the 10th normalizes to Monday the 8th
	assert.Equal(t, "2024-04-08T00:00:00Z", rota.WeekStart)
}

func TestCreateRotaRequiresActor(t *testing.T) {
	router, _ := newServer(t)

	rec := do(t, router, http.MethodPost, "/api/rotas", "", api.CreateRotaRequest{
		LocationID: "loc-1", Week: "2024-04-10T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRotaForbidden(t *testing.T) {
	router, _ := newServer(t)

	rec := do(t, router, http.MethodPost, "/api/rotas", workerID, api.CreateRotaRequest{
		LocationID: "loc-1", Week: "2024-04-10T00:00:00Z",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRotaDuplicateConflict(t *testing.T) {
	router, _ := newServer(t)
	createRota(t, router)

	// Any instant in the same week maps to the same rota slot
	rec := do(t, router, http.MethodPost, "/api/rotas", managerID, api.CreateRotaRequest{
		LocationID: "loc-1", Week: "2024-04-12T00:00:00Z",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetRotaNotFound(t *testing.T) {
	router, _ := newServer(t)

	rec := do(t, router, http.MethodGet, "/api/rotas/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionRota(t *testing.T) {
	router, _ := newServer(t)
	rota := createRota(t, router)

	rec := do(t, router, http.MethodPost, "/api/rotas/"+rota.ID+"/transition", managerID,
		api.TransitionRotaRequest{Status: "published"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "published", decode[api.RotaDTO](t, rec).Status)
}

func TestTransitionRotaIllegal(t *testing.T) {
	router, _ := newServer(t)
	rota := createRota(t, router)

	// Draft cannot lock directly
	rec := do(t, router, http.MethodPost, "/api/rotas/"+rota.ID+"/transition", managerID,
		api.TransitionRotaRequest{Status: "locked"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// SHIFTS AND ASSIGNMENTS
// =============================================================================

func createShift(t *testing.T, router http.Handler, rotaID string, startHour, endHour int) api.ShiftDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/rotas/"+rotaID+"/shifts", managerID, api.ShiftRequest{
		StartAt: time.Date(2024, 4, 10, startHour, 0, 0, 0, time.UTC).Format(time.RFC3339),
		EndAt:   time.Date(2024, 4, 10, endHour, 0, 0, 0, time.UTC).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode[api.ShiftDTO](t, rec)
}

func TestShiftLifecycle(t *testing.T) {
	router, _ := newServer(t)
	rota := createRota(t, router)
	shift := createShift(t, router, rota.ID, 9, 17)

	rec := do(t, router, http.MethodPut, "/api/shifts/"+shift.ID, managerID, api.ShiftRequest{
		StartAt:      "2024-04-10T10:00:00Z",
		EndAt:        "2024-04-10T18:00:00Z",
		BreakMinutes: 45,
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, 45, decode[api.ShiftDTO](t, rec).BreakMinutes)

	rec = do(t, router, http.MethodDelete, "/api/shifts/"+shift.ID, managerID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCancelShift(t *testing.T) {
	router, _ := newServer(t)
	rota := createRota(t, router)
	shift := createShift(t, router, rota.ID, 9, 17)

	rec := do(t, router, http.MethodPost, "/api/shifts/"+shift.ID+"/cancel", managerID, nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "cancelled", decode[api.ShiftDTO](t, rec).Status)

	// Cancelling twice is a conflict
	rec = do(t, router, http.MethodPost, "/api/shifts/"+shift.ID+"/cancel", managerID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssignCollisionConflict(t *testing.T) {
	// GIVEN two overlapping shifts on a published rota
	router, _ := newServer(t)
	rota := createRota(t, router)
	first := createShift(t, router, rota.ID, 9, 17)
	second := createShift(t, router, rota.ID, 16, 20)

	rec := do(t, router, http.MethodPost, "/api/shifts/"+first.ID+"/assignments", managerID,
		api.AssignRequest{UserID: workerID, Status: "assigned"})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	// THEN double-booking surfaces as 409
	rec = do(t, router, http.MethodPost, "/api/shifts/"+second.ID+"/assignments", managerID,
		api.AssignRequest{UserID: workerID, Status: "assigned"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRespondToProposal(t *testing.T) {
	router, _ := newServer(t)
	rota := createRota(t, router)
	shift := createShift(t, router, rota.ID, 9, 17)

	rec := do(t, router, http.MethodPost, "/api/shifts/"+shift.ID+"/assignments", managerID,
		api.AssignRequest{UserID: workerID, Status: "proposed"})
	require.Equal(t, http.StatusCreated, rec.Code)
	proposal := decode[api.AssignmentDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/assignments/"+proposal.ID+"/respond", workerID,
		api.RespondRequest{Accept: true})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	got := decode[api.AssignmentDTO](t, rec)
	assert.Equal(t, "accepted", got.Status)
	assert.NotEmpty(t, got.RespondedAt)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestCreateLeaveWithWarning(t *testing.T) {
	// GIVEN a confirmed shift inside the requested window
	router, store := newServer(t)
	require.NoError(t, store.SaveType(context.Background(), &leave.LeaveType{
		ID: "type-holiday", OrgID: "org-1", Name: "Holiday", IsPaid: true, IsActive: true,
	}))
	rota := createRota(t, router)
	do(t, router, http.MethodPost, "/api/rotas/"+rota.ID+"/transition", managerID,
		api.TransitionRotaRequest{Status: "published"})
	shift := createShift(t, router, rota.ID, 9, 17)
	rec := do(t, router, http.MethodPost, "/api/shifts/"+shift.ID+"/assignments", managerID,
		api.AssignRequest{UserID: workerID, Status: "assigned"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN the worker requests leave over that shift
	rec = do(t, router, http.MethodPost, "/api/leave", workerID, api.CreateLeaveRequest{
		OrgID: "org-1", TypeID: "type-holiday",
		StartAt: "2024-04-10T00:00:00Z", EndAt: "2024-04-12T00:00:00Z",
		Reason: "family visit",
	})

	// THEN the request is created and carries the advisory warning
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	got := decode[api.LeaveRequestDTO](t, rec)
	assert.Equal(t, "pending", got.Status)
	assert.NotEmpty(t, got.Warning)
}

func TestDecideLeave(t *testing.T) {
	router, store := newServer(t)
	require.NoError(t, store.SaveType(context.Background(), &leave.LeaveType{
		ID: "type-holiday", OrgID: "org-1", Name: "Holiday", IsPaid: true, IsActive: true,
	}))

	rec := do(t, router, http.MethodPost, "/api/leave", workerID, api.CreateLeaveRequest{
		OrgID: "org-1", TypeID: "type-holiday",
		StartAt: "2024-04-10T00:00:00Z", EndAt: "2024-04-12T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[api.LeaveRequestDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/leave/"+created.ID+"/decide", managerID,
		api.DecideRequest{Decision: "approve", Notes: "enjoy"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "approved", decode[api.LeaveRequestDTO](t, rec).Status)

	// Deciding twice conflicts
	rec = do(t, router, http.MethodPost, "/api/leave/"+created.ID+"/decide", managerID,
		api.DecideRequest{Decision: "reject"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// TIMECLOCK AND COMPLIANCE
// =============================================================================

func TestPunchAndCompliance(t *testing.T) {
	// GIVEN an assigned shift on a published rota and a breached rest rule
	router, store := newServer(t)
	ctx := context.Background()
	rota := createRota(t, router)
	do(t, router, http.MethodPost, "/api/rotas/"+rota.ID+"/transition", managerID,
		api.TransitionRotaRequest{Status: "published"})
	shift := createShift(t, router, rota.ID, 9, 23)
	rec := do(t, router, http.MethodPost, "/api/shifts/"+shift.ID+"/assignments", managerID,
		api.AssignRequest{UserID: workerID, Status: "assigned"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/timeclock/clock-in", workerID,
		api.PunchRequest{ShiftID: shift.ID, OccurredAt: "2024-04-10T15:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	rec = do(t, router, http.MethodPost, "/api/timeclock/clock-out", workerID,
		api.PunchRequest{ShiftID: shift.ID, OccurredAt: "2024-04-10T23:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/timeclock/clock-in", workerID,
		api.PunchRequest{ShiftID: shift.ID, OccurredAt: "2024-04-11T07:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, router, http.MethodPost, "/api/timeclock/clock-out", workerID,
		api.PunchRequest{ShiftID: shift.ID, OccurredAt: "2024-04-11T15:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, store.SaveRule(ctx, &compliance.Rule{
		ID: "rule-rest", OrgID: "org-1", Key: compliance.RuleDailyRest,
		ThresholdHours: decimal.NewFromInt(11), IsActive: true,
	}))

	// WHEN a compliance run covers the period
	rec = do(t, router, http.MethodPost, "/api/compliance/run", managerID, api.RunComplianceRequest{
		OrgID: "org-1", LocationID: "loc-1", UserID: workerID,
		PeriodStart: "2024-04-08T00:00:00Z", PeriodEnd: "2024-04-15T00:00:00Z",
	})

	// THEN the 8h rest gap is reported
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	violations := decode[[]api.ViolationDTO](t, rec)
	require.Len(t, violations, 1)
	assert.Equal(t, "2024-04-11", violations[0].Date)

	// AND the listing and silencing endpoints see the same row
	rec = do(t, router, http.MethodGet,
		"/api/compliance/violations?user_id="+workerID+"&from=2024-04-08T00:00:00Z&to=2024-04-15T00:00:00Z",
		"", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]api.ViolationDTO](t, rec), 1)

	rec = do(t, router, http.MethodPost, "/api/compliance/violations/"+violations[0].ID+"/silence", managerID,
		api.SilenceRequest{Reason: "agreed overtime"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.True(t, decode[api.ViolationDTO](t, rec).IsSilenced)
}
