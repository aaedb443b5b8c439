/*
evaluator.go - Batch rule engine

PURPOSE:
  Pure evaluation: clock events + assigned shifts + active rules in,
  violations out. No storage, no authorization, no clock reads; callers
  feed period-scoped inputs and upsert the result.

WORK INTERVAL DERIVATION:
  Clock events are ordered chronologically and paired clock_in ->
  clock_out. For the hour-cap rules, a shift with no clock events at all
  contributes its scheduled duration minus break instead, so an
  unpunched-but-assigned day still counts.

SEVERITY:
  Rest violations are warnings, escalating to critical when the gap is
  under half the threshold. The hour caps emit warnings; reviewers
  triage magnitude from the recorded hours.
*/
package compliance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/timeclock"
)

// Input is everything Evaluate needs, already scoped to one user and one
// evaluation period.
type Input struct {
	OrgID      schedule.OrgID
	LocationID schedule.LocationID
	UserID     schedule.UserID

	Events []timeclock.TimeClockEvent // the user's punches in the period
	Shifts []schedule.Shift           // confirmed assigned shifts in the period
	Rules  []Rule                     // active org rules

	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Evaluate applies every active rule and returns the detected violations.
// Pure: same inputs, same outputs; IDs and silencing are upsert concerns.
func Evaluate(in Input) []Violation {
	intervals := pairEvents(in.Events)

	var out []Violation
	for _, rule := range in.Rules {
		if !rule.IsActive {
			continue
		}
		switch rule.Key {
		case RuleDailyRest:
			out = append(out, checkDailyRest(in, rule, intervals)...)
		case RuleMaxHoursPerDay:
			out = append(out, checkMaxDaily(in, rule, intervals)...)
		case RuleMaxHoursPerWeek:
			out = append(out, checkMaxWeekly(in, rule, intervals)...)
		}
	}
	return out
}

// =============================================================================
// WORK INTERVALS
// =============================================================================

// workInterval is a realized stretch of work derived from a punch pair.
type workInterval struct {
	schedule.Interval
	ShiftID schedule.ShiftID
}

// pairEvents orders punches chronologically and pairs each clock_in with
// the next clock_out. Unpaired punches are skipped; corrections exist to
// repair them.
func pairEvents(events []timeclock.TimeClockEvent) []workInterval {
	sorted := make([]timeclock.TimeClockEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OccurredAt.Before(sorted[j].OccurredAt) })

	var intervals []workInterval
	var open *timeclock.TimeClockEvent
	for i := range sorted {
		e := sorted[i]
		switch e.Type {
		case timeclock.EventClockIn:
			open = &sorted[i]
		case timeclock.EventClockOut:
			if open != nil && e.OccurredAt.After(open.OccurredAt) {
				intervals = append(intervals, workInterval{
					Interval: schedule.Interval{Start: open.OccurredAt, End: e.OccurredAt},
					ShiftID:  open.ShiftID,
				})
				open = nil
			}
		}
	}
	return intervals
}

// punchedShifts returns the set of shift IDs that have at least one punch.
func punchedShifts(events []timeclock.TimeClockEvent) map[schedule.ShiftID]bool {
	set := make(map[schedule.ShiftID]bool, len(events))
	for _, e := range events {
		if e.ShiftID != "" {
			set[e.ShiftID] = true
		}
	}
	return set
}

func hoursFromMinutes(mins int64) decimal.Decimal {
	return decimal.NewFromInt(mins).Div(decimal.NewFromInt(60))
}

// =============================================================================
// RULE: DAILY REST
// =============================================================================

// checkDailyRest walks consecutive work intervals and flags gaps shorter
// than the threshold. The violation is dated at the second interval's
// start date: that is the day the worker returned too soon.
func checkDailyRest(in Input, rule Rule, intervals []workInterval) []Violation {
	var out []Violation
	for i := 1; i < len(intervals); i++ {
		prev, next := intervals[i-1], intervals[i]
		gap := prev.GapAfter(next.Interval)
		if gap < 0 {
			continue // overlapping punches, not a rest gap
		}
		restHours := hoursFromMinutes(int64(gap.Minutes()))
		if restHours.GreaterThanOrEqual(rule.ThresholdHours) {
			continue
		}

		severity := SeverityWarning
		if restHours.LessThan(rule.ThresholdHours.Div(decimal.NewFromInt(2))) {
			severity = SeverityCritical
		}

		rest := restHours
		out = append(out, Violation{
			OrgID:      in.OrgID,
			LocationID: in.LocationID,
			UserID:     in.UserID,
			RuleID:     rule.ID,
			Date:       schedule.DateOf(next.Start),
			Severity:   severity,
			Details: Details{
				RestHours:      &rest,
				ThresholdHours: rule.ThresholdHours,
				ShiftIDs:       contributingShifts(prev.ShiftID, next.ShiftID),
			},
		})
	}
	return out
}

func contributingShifts(ids ...schedule.ShiftID) []schedule.ShiftID {
	var out []schedule.ShiftID
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// =============================================================================
// RULE: MAX HOURS PER DAY
// =============================================================================

type dayTotal struct {
	minutes int64
	shifts  []schedule.ShiftID
}

// dailyTotals buckets worked minutes by UTC calendar date. Punched time
// counts as recorded; shifts without any punches contribute their
// scheduled net duration.
func dailyTotals(in Input, intervals []workInterval) map[time.Time]*dayTotal {
	totals := make(map[time.Time]*dayTotal)
	add := func(day time.Time, mins int64, shiftID schedule.ShiftID) {
		t := totals[day]
		if t == nil {
			t = &dayTotal{}
			totals[day] = t
		}
		t.minutes += mins
		if shiftID != "" {
			t.shifts = append(t.shifts, shiftID)
		}
	}

	for _, iv := range intervals {
		add(schedule.DateOf(iv.Start), int64(iv.Duration().Minutes()), iv.ShiftID)
	}

	punched := punchedShifts(in.Events)
	for _, shift := range in.Shifts {
		if punched[shift.ID] {
			continue
		}
		add(schedule.DateOf(shift.StartAt), int64(shift.WorkedMinutes()), shift.ID)
	}
	return totals
}

func checkMaxDaily(in Input, rule Rule, intervals []workInterval) []Violation {
	totals := dailyTotals(in, intervals)

	days := make([]time.Time, 0, len(totals))
	for day := range totals {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var out []Violation
	for _, day := range days {
		t := totals[day]
		worked := hoursFromMinutes(t.minutes)
		if !worked.GreaterThan(rule.ThresholdHours) {
			continue
		}
		hours := worked
		out = append(out, Violation{
			OrgID:      in.OrgID,
			LocationID: in.LocationID,
			UserID:     in.UserID,
			RuleID:     rule.ID,
			Date:       day,
			Severity:   SeverityWarning,
			Details: Details{
				HoursWorked:    &hours,
				ThresholdHours: rule.ThresholdHours,
				ShiftIDs:       t.shifts,
			},
		})
	}
	return out
}

// =============================================================================
// RULE: MAX HOURS PER WEEK
// =============================================================================

// checkMaxWeekly sums worked minutes across the 7-day window anchored at
// the period start and emits a single violation dated at the anchor.
func checkMaxWeekly(in Input, rule Rule, intervals []workInterval) []Violation {
	windowStart := schedule.DateOf(in.PeriodStart)
	windowEnd := windowStart.AddDate(0, 0, 7)
	window := schedule.Interval{Start: windowStart, End: windowEnd}

	var mins int64
	var shifts []schedule.ShiftID

	for _, iv := range intervals {
		if window.Contains(iv.Start) {
			mins += int64(iv.Duration().Minutes())
			if iv.ShiftID != "" {
				shifts = append(shifts, iv.ShiftID)
			}
		}
	}
	punched := punchedShifts(in.Events)
	for _, shift := range in.Shifts {
		if punched[shift.ID] || !window.Contains(shift.StartAt) {
			continue
		}
		mins += int64(shift.WorkedMinutes())
		shifts = append(shifts, shift.ID)
	}

	worked := hoursFromMinutes(mins)
	if !worked.GreaterThan(rule.ThresholdHours) {
		return nil
	}

	hours := worked
	return []Violation{{
		OrgID:      in.OrgID,
		LocationID: in.LocationID,
		UserID:     in.UserID,
		RuleID:     rule.ID,
		Date:       windowStart,
		Severity:   SeverityWarning,
		Details: Details{
			HoursWorked:    &hours,
			ThresholdHours: rule.ThresholdHours,
			ShiftIDs:       shifts,
		},
	}}
}
