/*
Package compliance detects labor-law violations from clock events and
assigned shifts.

PURPOSE:
  Org-configured rules (minimum daily rest, daily and weekly hour caps)
  are evaluated in batch over a user's period. Breaches become dated,
  severity-tagged violation records, upserted idempotently and
  silenceable by an authorized reviewer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule: An org-scoped threshold, keyed by RuleKey
  - Violation: One row per (user, rule, date)
  - Details: The numbers behind the breach (hours, threshold, shifts)

DESIGN PRINCIPLES:
  1. Precision: hour arithmetic uses decimal.Decimal, no float drift
  2. Idempotence: re-evaluating a period never duplicates rows
  3. Silencing survives recomputation (see evaluator.go)

SEE ALSO:
  - evaluator.go: The pure batch rule engine
  - service.go: Orchestration, upsert, silencing
*/
package compliance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rota-engine/schedule"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	RuleID      string
	ViolationID string
)

// =============================================================================
// RULES
// =============================================================================

type RuleKey string

const (
	RuleDailyRest       RuleKey = "daily_rest_11h"
	RuleMaxHoursPerDay  RuleKey = "max_hours_per_day_10h"
	RuleMaxHoursPerWeek RuleKey = "max_hours_per_week_48h"
)

// Rule is an org-scoped labor rule. ThresholdHours is the rule's bound:
// minimum rest for daily_rest, maximum worked hours for the caps.
type Rule struct {
	ID             RuleID
	OrgID          schedule.OrgID
	Key            RuleKey
	ThresholdHours decimal.Decimal
	IsActive       bool
}

// =============================================================================
// VIOLATIONS
// =============================================================================

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Details carries the numbers behind a breach. HoursWorked is set for the
// hour-cap rules, RestHours for the rest rule.
type Details struct {
	HoursWorked    *decimal.Decimal   `json:"hours_worked,omitempty"`
	RestHours      *decimal.Decimal   `json:"rest_hours,omitempty"`
	ThresholdHours decimal.Decimal    `json:"threshold_hours"`
	ShiftIDs       []schedule.ShiftID `json:"shift_ids,omitempty"`
}

// Violation is a detected breach, one row per (user, rule, date).
// Recomputation replaces Severity/Details but never resets silencing.
type Violation struct {
	ID         ViolationID
	OrgID      schedule.OrgID
	LocationID schedule.LocationID
	UserID     schedule.UserID
	RuleID     RuleID
	Date       time.Time // UTC calendar date
	Severity   Severity
	Details    Details

	IsSilenced    bool
	SilencedBy    *schedule.UserID
	SilencedAt    *time.Time
	SilenceReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
