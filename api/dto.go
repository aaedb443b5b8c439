/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Structural validation (end after start, reason length) lives in the
  domain services; DTOs are pure data carriers. Timestamps are RFC3339
  on the wire and UTC internally.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/timeclock"
)

// =============================================================================
// ROTAS
// =============================================================================

type CreateRotaRequest struct {
	LocationID     string  `json:"location_id"`
	Week           string  `json:"week"` // any instant; normalized to its Monday
	BudgetAmount   *string `json:"budget_amount,omitempty"`
	BudgetCurrency string  `json:"budget_currency,omitempty"`
}

type TransitionRotaRequest struct {
	Status string `json:"status"` // draft | published | locked
}

type RotaDTO struct {
	ID             string `json:"id"`
	LocationID     string `json:"location_id"`
	WeekStart      string `json:"week_start"`
	Status         string `json:"status"`
	BudgetAmount   string `json:"budget_amount,omitempty"`
	BudgetCurrency string `json:"budget_currency,omitempty"`
	UpdatedBy      string `json:"updated_by"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toRotaDTO(r *schedule.Rota) RotaDTO {
	dto := RotaDTO{
		ID:         string(r.ID),
		LocationID: string(r.LocationID),
		WeekStart:  r.WeekStart.Format(time.RFC3339),
		Status:     string(r.Status),
		UpdatedBy:  string(r.UpdatedBy),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
	if r.LaborBudget != nil {
		dto.BudgetAmount = r.LaborBudget.Amount.String()
		dto.BudgetCurrency = r.LaborBudget.Currency
	}
	return dto
}

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftRequest struct {
	JobTagID     string `json:"job_tag_id,omitempty"`
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	BreakMinutes int    `json:"break_minutes"`
	Notes        string `json:"notes,omitempty"`
}

type ShiftDTO struct {
	ID           string `json:"id"`
	RotaID       string `json:"rota_id"`
	LocationID   string `json:"location_id"`
	JobTagID     string `json:"job_tag_id,omitempty"`
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	BreakMinutes int    `json:"break_minutes"`
	Status       string `json:"status"`
	Notes        string `json:"notes,omitempty"`
}

func toShiftDTO(s *schedule.Shift) ShiftDTO {
	return ShiftDTO{
		ID:           string(s.ID),
		RotaID:       string(s.RotaID),
		LocationID:   string(s.LocationID),
		JobTagID:     string(s.JobTagID),
		StartAt:      s.StartAt.Format(time.RFC3339),
		EndAt:        s.EndAt.Format(time.RFC3339),
		BreakMinutes: s.BreakMinutes,
		Status:       string(s.Status),
		Notes:        s.Notes,
	}
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

type AssignRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // proposed | assigned
}

type RespondRequest struct {
	Accept bool `json:"accept"`
}

type AssignmentDTO struct {
	ID          string `json:"id"`
	ShiftID     string `json:"shift_id"`
	UserID      string `json:"user_id"`
	Status      string `json:"status"`
	AssignedAt  string `json:"assigned_at,omitempty"`
	ProposedAt  string `json:"proposed_at,omitempty"`
	RespondedAt string `json:"responded_at,omitempty"`
}

func toAssignmentDTO(a *schedule.ShiftAssignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          string(a.ID),
		ShiftID:     string(a.ShiftID),
		UserID:      string(a.UserID),
		Status:      string(a.Status),
		AssignedAt:  fmtOptTime(a.AssignedAt),
		ProposedAt:  fmtOptTime(a.ProposedAt),
		RespondedAt: fmtOptTime(a.RespondedAt),
	}
}

// =============================================================================
// LEAVE
// =============================================================================

type CreateLeaveRequest struct {
	OrgID   string `json:"org_id"`
	TypeID  string `json:"type_id"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
	Reason  string `json:"reason,omitempty"`
}

type DecideRequest struct {
	Decision string `json:"decision"` // approve | reject
	Notes    string `json:"notes,omitempty"`
}

type LeaveRequestDTO struct {
	ID         string `json:"id"`
	OrgID      string `json:"org_id"`
	UserID     string `json:"user_id"`
	TypeID     string `json:"type_id"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	ApproverID string `json:"approver_id,omitempty"`
	ApprovedAt string `json:"approved_at,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

func toLeaveDTO(r *leave.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:         string(r.ID),
		OrgID:      string(r.OrgID),
		UserID:     string(r.UserID),
		TypeID:     string(r.TypeID),
		StartAt:    r.StartAt.Format(time.RFC3339),
		EndAt:      r.EndAt.Format(time.RFC3339),
		Status:     string(r.Status),
		Reason:     r.Reason,
		ApprovedAt: fmtOptTime(r.ApprovedAt),
		Notes:      r.Notes,
	}
	if r.ApproverID != nil {
		dto.ApproverID = string(*r.ApproverID)
	}
	return dto
}

// =============================================================================
// TIMECLOCK
// =============================================================================

type PunchRequest struct {
	ShiftID    string `json:"shift_id"`
	OccurredAt string `json:"occurred_at,omitempty"` // defaults to now
}

type ClockEventDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	ShiftID    string `json:"shift_id"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
}

func toEventDTO(e *timeclock.TimeClockEvent) ClockEventDTO {
	return ClockEventDTO{
		ID:         string(e.ID),
		UserID:     string(e.UserID),
		ShiftID:    string(e.ShiftID),
		Type:       string(e.Type),
		OccurredAt: e.OccurredAt.Format(time.RFC3339),
	}
}

type CorrectionRequest struct {
	ShiftID       string `json:"shift_id"`
	EventID       string `json:"event_id,omitempty"`
	OriginalTime  string `json:"original_time,omitempty"`
	RequestedTime string `json:"requested_time"`
	Reason        string `json:"reason"`
}

type CorrectionDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	ShiftID       string `json:"shift_id"`
	EventID       string `json:"event_id,omitempty"`
	OriginalTime  string `json:"original_time"`
	RequestedTime string `json:"requested_time"`
	Reason        string `json:"reason"`
	Status        string `json:"status"`
	ReviewedBy    string `json:"reviewed_by,omitempty"`
	ReviewedAt    string `json:"reviewed_at,omitempty"`
	ReviewerNotes string `json:"reviewer_notes,omitempty"`
}

func toCorrectionDTO(c *timeclock.TimeCorrectionRequest) CorrectionDTO {
	dto := CorrectionDTO{
		ID:            string(c.ID),
		UserID:        string(c.UserID),
		ShiftID:       string(c.ShiftID),
		OriginalTime:  c.OriginalTime.Format(time.RFC3339),
		RequestedTime: c.RequestedTime.Format(time.RFC3339),
		Reason:        c.Reason,
		Status:        string(c.Status),
		ReviewedAt:    fmtOptTime(c.ReviewedAt),
		ReviewerNotes: c.ReviewerNotes,
	}
	if c.EventID != nil {
		dto.EventID = string(*c.EventID)
	}
	if c.ReviewedBy != nil {
		dto.ReviewedBy = string(*c.ReviewedBy)
	}
	return dto
}

// =============================================================================
// COMPLIANCE
// =============================================================================

type RunComplianceRequest struct {
	OrgID       string `json:"org_id"`
	LocationID  string `json:"location_id"`
	UserID      string `json:"user_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type SilenceRequest struct {
	Reason string `json:"reason"`
}

type ViolationDTO struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	RuleID        string             `json:"rule_id"`
	Date          string             `json:"date"`
	Severity      string             `json:"severity"`
	Details       compliance.Details `json:"details"`
	IsSilenced    bool               `json:"is_silenced"`
	SilencedBy    string             `json:"silenced_by,omitempty"`
	SilencedAt    string             `json:"silenced_at,omitempty"`
	SilenceReason string             `json:"silence_reason,omitempty"`
}

func toViolationDTO(v *compliance.Violation) ViolationDTO {
	dto := ViolationDTO{
		ID:            string(v.ID),
		UserID:        string(v.UserID),
		RuleID:        string(v.RuleID),
		Date:          v.Date.Format("2006-01-02"),
		Severity:      string(v.Severity),
		Details:       v.Details,
		IsSilenced:    v.IsSilenced,
		SilencedAt:    fmtOptTime(v.SilencedAt),
		SilenceReason: v.SilenceReason,
	}
	if v.SilencedBy != nil {
		dto.SilencedBy = string(*v.SilencedBy)
	}
	return dto
}

// =============================================================================
// SHARED
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func fmtOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
