/*
service.go - Compliance orchestration, upsert, silencing

PURPOSE:
  Loads the inputs for one (user, period), runs Evaluate, and upserts
  the result keyed by (user, rule, date). Re-running for the same period
  replaces severity/details of existing rows and never creates
  duplicates.

SILENCING:
  Silence marks a violation acknowledged without altering the facts.
  The upsert preserves silencing fields on recompute: a reviewed
  violation stays reviewed even when its details are refreshed.

CONCURRENCY:
  Evaluation is side-effect-free except the upsert, and the upsert is
  last-writer-wins: concurrent evaluations derive identical content from
  the same inputs, so no conflicting outcome is possible.
*/
package compliance

import (
	"context"
	"strings"
	"time"

	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/timeclock"
)

// =============================================================================
// STORE PORTS
// =============================================================================

type RuleStore interface {
	ListActiveRules(ctx context.Context, orgID schedule.OrgID) ([]Rule, error)
	SaveRule(ctx context.Context, r *Rule) error
}

type ViolationStore interface {
	GetViolation(ctx context.Context, id ViolationID) (*Violation, error)

	// UpsertViolation inserts or, when a row for (user, rule, date) already
	// exists, replaces its severity and details in place. Silencing fields
	// of an existing row are preserved, not reset.
	UpsertViolation(ctx context.Context, v *Violation) error

	ListViolationsByUser(ctx context.Context, userID schedule.UserID, from, to time.Time) ([]Violation, error)
	ListViolationsByLocation(ctx context.Context, locationID schedule.LocationID, from, to time.Time) ([]Violation, error)

	// SilenceViolation stamps the silencing fields.
	SilenceViolation(ctx context.Context, id ViolationID, by schedule.UserID, at time.Time, reason string) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Service runs evaluations against storage and exposes silencing.
type Service struct {
	Rules      RuleStore
	Violations ViolationStore
	Events     timeclock.EventStore
	Shifts     schedule.ShiftStore
	Caps       schedule.CapabilityChecker
}

func NewService(rules RuleStore, violations ViolationStore, events timeclock.EventStore, shifts schedule.ShiftStore, caps schedule.CapabilityChecker) *Service {
	return &Service{Rules: rules, Violations: violations, Events: events, Shifts: shifts, Caps: caps}
}

// Run evaluates one user over [periodStart, periodEnd) and upserts the
// detected violations. Returns what was detected this run.
func (s *Service) Run(ctx context.Context, actorID schedule.UserID, orgID schedule.OrgID, locationID schedule.LocationID, userID schedule.UserID, periodStart, periodEnd time.Time) ([]Violation, error) {
	if !s.Caps.HasCapability(ctx, actorID, schedule.CapComplianceCheck, locationID) {
		return nil, &schedule.ForbiddenError{ActorID: actorID, Capability: schedule.CapComplianceCheck}
	}
	if !periodEnd.After(periodStart) {
		return nil, &schedule.ValidationError{Field: "period", Message: "end must be after start"}
	}

	rules, err := s.Rules.ListActiveRules(ctx, orgID)
	if err != nil {
		return nil, err
	}
	events, err := s.Events.ListEventsByUser(ctx, userID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	shifts, err := s.Shifts.ListConfirmedShiftsForUser(ctx, userID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	violations := Evaluate(Input{
		OrgID:       orgID,
		LocationID:  locationID,
		UserID:      userID,
		Events:      events,
		Shifts:      shifts,
		Rules:       rules,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})

	for i := range violations {
		if err := s.Violations.UpsertViolation(ctx, &violations[i]); err != nil {
			return nil, err
		}
	}
	return violations, nil
}

// Silence marks a violation acknowledged. Requires compliance:silence and
// a non-empty reason; the silencing survives later recomputes.
func (s *Service) Silence(ctx context.Context, violationID ViolationID, actorID schedule.UserID, reason string) (*Violation, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &schedule.ValidationError{Field: "reason", Message: "must not be empty"}
	}

	v, err := s.Violations.GetViolation(ctx, violationID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &schedule.NotFoundError{Entity: "violation", ID: string(violationID)}
	}

	if !s.Caps.HasCapability(ctx, actorID, schedule.CapComplianceSilence, v.LocationID) {
		return nil, &schedule.ForbiddenError{ActorID: actorID, Capability: schedule.CapComplianceSilence}
	}

	now := time.Now().UTC()
	if err := s.Violations.SilenceViolation(ctx, violationID, actorID, now, reason); err != nil {
		return nil, err
	}

	v.IsSilenced = true
	v.SilencedBy = &actorID
	v.SilencedAt = &now
	v.SilenceReason = reason
	v.UpdatedAt = now
	return v, nil
}
