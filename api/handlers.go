/*
handlers.go - HTTP API handlers for the scheduling engine

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the domain
  services. No scheduling rule lives here.

ACTOR IDENTITY:
  The acting user comes from the X-Actor-ID header. Authentication of
  that header (sessions, tokens) belongs to a gateway in front of this
  service; the engine only enforces capabilities per actor.

ERROR HANDLING:
  Domain errors map to HTTP status by kind:
  - 400: Validation errors, invalid input
  - 403: Missing capability or ownership
  - 404: Entity not found
  - 409: Conflict (collision, state race, duplicate, already processed)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/timeclock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers: the lifecycle services
// for mutations and the read ports for listings.
type Handler struct {
	Rotas       *schedule.RotaService
	Shifts      *schedule.ShiftService
	Assignments *schedule.AssignmentService
	Leave       *leave.Service
	Punches     *timeclock.PunchService
	Corrections *timeclock.CorrectionService
	Compliance  *compliance.Service

	RotaStore       schedule.RotaStore
	ShiftStore      schedule.ShiftStore
	AssignmentStore schedule.AssignmentStore
	LeaveStore      leave.Store
	EventStore      timeclock.EventStore
	CorrectionStore timeclock.CorrectionStore
	ViolationStore  compliance.ViolationStore
}

// actor extracts the acting user from the X-Actor-ID header.
func actor(r *http.Request) schedule.UserID {
	return schedule.UserID(r.Header.Get("X-Actor-ID"))
}

func requireActor(w http.ResponseWriter, r *http.Request) (schedule.UserID, bool) {
	id := actor(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "X-Actor-ID header is required", nil)
		return "", false
	}
	return id, true
}

// =============================================================================
// ROTA HANDLERS
// =============================================================================

func (h *Handler) CreateRota(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateRotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	week, err := time.Parse(time.RFC3339, req.Week)
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must be RFC3339", err)
		return
	}

	var budget *schedule.Money
	if req.BudgetAmount != nil {
		m, err := parseMoney(*req.BudgetAmount, req.BudgetCurrency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid budget_amount", err)
			return
		}
		budget = &m
	}

	rota, err := h.Rotas.Create(r.Context(), actorID, schedule.LocationID(req.LocationID), week, budget)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRotaDTO(rota))
}

func (h *Handler) GetRota(w http.ResponseWriter, r *http.Request) {
	rota, err := h.RotaStore.GetRota(r.Context(), schedule.RotaID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rota == nil {
		writeError(w, http.StatusNotFound, "rota not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRotaDTO(rota))
}

func (h *Handler) TransitionRota(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req TransitionRotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rota, err := h.Rotas.Transition(r.Context(), actorID, schedule.RotaID(chi.URLParam(r, "id")), schedule.RotaStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRotaDTO(rota))
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.ShiftStore.ListShiftsByRota(r.Context(), schedule.RotaID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ShiftDTO, len(shifts))
	for i := range shifts {
		dtos[i] = toShiftDTO(&shifts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func parseShiftInput(req ShiftRequest) (schedule.ShiftInput, error) {
	start, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return schedule.ShiftInput{}, err
	}
	end, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return schedule.ShiftInput{}, err
	}
	return schedule.ShiftInput{
		JobTagID:     schedule.JobTagID(req.JobTagID),
		StartAt:      start,
		EndAt:        end,
		BreakMinutes: req.BreakMinutes,
		Notes:        req.Notes,
	}, nil
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in, err := parseShiftInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamps must be RFC3339", err)
		return
	}

	shift, err := h.Shifts.Create(r.Context(), actorID, schedule.RotaID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(shift))
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in, err := parseShiftInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamps must be RFC3339", err)
		return
	}

	shift, err := h.Shifts.Update(r.Context(), actorID, schedule.ShiftID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) CancelShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	shift, err := h.Shifts.Cancel(r.Context(), actorID, schedule.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.Shifts.Delete(r.Context(), actorID, schedule.ShiftID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	assignment, err := h.Assignments.Assign(r.Context(), actorID,
		schedule.ShiftID(chi.URLParam(r, "id")),
		schedule.UserID(req.UserID),
		schedule.AssignmentStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(assignment))
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.AssignmentStore.ListAssignmentsByShift(r.Context(), schedule.ShiftID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AssignmentDTO, len(assignments))
	for i := range assignments {
		dtos[i] = toAssignmentDTO(&assignments[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RespondAssignment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	assignment, err := h.Assignments.Respond(r.Context(), schedule.AssignmentID(chi.URLParam(r, "id")), actorID, req.Accept)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(assignment))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_at must be RFC3339", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_at must be RFC3339", err)
		return
	}

	result, err := h.Leave.Create(r.Context(), schedule.OrgID(req.OrgID), actorID, leave.TypeID(req.TypeID), start, end, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := toLeaveDTO(result.Request)
	dto.Warning = result.Warning
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) ListLeave(w http.ResponseWriter, r *http.Request) {
	userID := schedule.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required", nil)
		return
	}

	var statuses []leave.Status
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = []leave.Status{leave.Status(s)}
	}

	requests, err := h.LeaveStore.ListRequestsByUser(r.Context(), userID, statuses)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]LeaveRequestDTO, len(requests))
	for i := range requests {
		dtos[i] = toLeaveDTO(&requests[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) DecideLeave(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	request, err := h.Leave.Decide(r.Context(), leave.RequestID(chi.URLParam(r, "id")), actorID, leave.Decision(req.Decision), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(request))
}

func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	request, err := h.Leave.Cancel(r.Context(), leave.RequestID(chi.URLParam(r, "id")), actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(request))
}

// =============================================================================
// TIMECLOCK HANDLERS
// =============================================================================

func (h *Handler) punchTime(req PunchRequest) (time.Time, error) {
	if req.OccurredAt == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, req.OccurredAt)
}

func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Punches.ClockIn)
}

func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, h.Punches.ClockOut)
}

type punchFunc func(ctx context.Context, userID schedule.UserID, shiftID schedule.ShiftID, at time.Time) (*timeclock.TimeClockEvent, error)

func (h *Handler) punch(w http.ResponseWriter, r *http.Request, record punchFunc) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req PunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	at, err := h.punchTime(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "occurred_at must be RFC3339", err)
		return
	}

	event, err := record(r.Context(), actorID, schedule.ShiftID(req.ShiftID), at)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID := schedule.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required", nil)
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from/to must be RFC3339", err)
		return
	}

	events, err := h.EventStore.ListEventsByUser(r.Context(), userID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ClockEventDTO, len(events))
	for i := range events {
		dtos[i] = toEventDTO(&events[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCorrection(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var eventID *timeclock.EventID
	if req.EventID != "" {
		id := timeclock.EventID(req.EventID)
		eventID = &id
	}
	var original time.Time
	if req.OriginalTime != "" {
		t, err := time.Parse(time.RFC3339, req.OriginalTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "original_time must be RFC3339", err)
			return
		}
		original = t
	}
	requested, err := time.Parse(time.RFC3339, req.RequestedTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "requested_time must be RFC3339", err)
		return
	}

	correction, err := h.Corrections.Request(r.Context(), actorID, schedule.ShiftID(req.ShiftID), eventID, original, requested, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCorrectionDTO(correction))
}

func (h *Handler) ListPendingCorrections(w http.ResponseWriter, r *http.Request) {
	corrections, err := h.CorrectionStore.ListPendingCorrections(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CorrectionDTO, len(corrections))
	for i := range corrections {
		dtos[i] = toCorrectionDTO(&corrections[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) DecideCorrection(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	correction, err := h.Corrections.Decide(r.Context(), timeclock.CorrectionID(chi.URLParam(r, "id")), actorID, timeclock.CorrectionDecision(req.Decision), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCorrectionDTO(correction))
}

// =============================================================================
// COMPLIANCE HANDLERS
// =============================================================================

func (h *Handler) RunCompliance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req RunComplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "period_start must be RFC3339", err)
		return
	}
	end, err := time.Parse(time.RFC3339, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "period_end must be RFC3339", err)
		return
	}

	violations, err := h.Compliance.Run(r.Context(), actorID,
		schedule.OrgID(req.OrgID), schedule.LocationID(req.LocationID),
		schedule.UserID(req.UserID), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ViolationDTO, len(violations))
	for i := range violations {
		dtos[i] = toViolationDTO(&violations[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from/to must be RFC3339", err)
		return
	}

	var violations []compliance.Violation
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		violations, err = h.ViolationStore.ListViolationsByUser(r.Context(), schedule.UserID(userID), from, to)
	} else if locationID := r.URL.Query().Get("location_id"); locationID != "" {
		violations, err = h.ViolationStore.ListViolationsByLocation(r.Context(), schedule.LocationID(locationID), from, to)
	} else {
		writeError(w, http.StatusBadRequest, "user_id or location_id query parameter is required", nil)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ViolationDTO, len(violations))
	for i := range violations {
		dtos[i] = toViolationDTO(&violations[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SilenceViolation(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SilenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	violation, err := h.Compliance.Silence(r.Context(), compliance.ViolationID(chi.URLParam(r, "id")), actorID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViolationDTO(violation))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseMoney(amount, currency string) (schedule.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return schedule.Money{}, err
	}
	return schedule.Money{Amount: d, Currency: currency}, nil
}

// writeDomainError maps domain error kinds to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case schedule.IsForbidden(err):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case schedule.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
