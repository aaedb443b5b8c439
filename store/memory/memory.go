/*
Package memory provides an in-memory implementation of every storage port
(for testing/dev).

PURPOSE:
  One Store satisfies schedule.RotaStore, schedule.ShiftStore,
  schedule.AssignmentStore, schedule.CollisionReader, leave.Store,
  timeclock.EventStore, timeclock.CorrectionStore, compliance.RuleStore
  and compliance.ViolationStore. The same invariants the SQLite store
  enforces with constraints are enforced here under one mutex:

  - one rota per (location, week start)
  - one active assignment per (shift, user), no confirmed-interval
    overlap per user (the exclusion constraint)
  - compare-and-swap status updates
  - violation upsert keyed (user, rule, date), silencing preserved
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/timeclock"
)

type Store struct {
	mu sync.RWMutex

	rotas       map[schedule.RotaID]*schedule.Rota
	shifts      map[schedule.ShiftID]*schedule.Shift
	assignments map[schedule.AssignmentID]*schedule.ShiftAssignment

	leaveTypes    map[leave.TypeID]*leave.LeaveType
	leaveRequests map[leave.RequestID]*leave.LeaveRequest

	events      map[timeclock.EventID]*timeclock.TimeClockEvent
	corrections map[timeclock.CorrectionID]*timeclock.TimeCorrectionRequest

	rules      map[compliance.RuleID]*compliance.Rule
	violations map[compliance.ViolationID]*compliance.Violation
}

func New() *Store {
	return &Store{
		rotas:         make(map[schedule.RotaID]*schedule.Rota),
		shifts:        make(map[schedule.ShiftID]*schedule.Shift),
		assignments:   make(map[schedule.AssignmentID]*schedule.ShiftAssignment),
		leaveTypes:    make(map[leave.TypeID]*leave.LeaveType),
		leaveRequests: make(map[leave.RequestID]*leave.LeaveRequest),
		events:        make(map[timeclock.EventID]*timeclock.TimeClockEvent),
		corrections:   make(map[timeclock.CorrectionID]*timeclock.TimeCorrectionRequest),
		rules:         make(map[compliance.RuleID]*compliance.Rule),
		violations:    make(map[compliance.ViolationID]*compliance.Violation),
	}
}

// =============================================================================
// ROTA STORE
// =============================================================================

func (s *Store) GetRota(_ context.Context, id schedule.RotaID) (*schedule.Rota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rotas[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetRotaByWeek(_ context.Context, locationID schedule.LocationID, weekStart time.Time) (*schedule.Rota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rotas {
		if r.LocationID == locationID && r.WeekStart.Equal(weekStart) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertRota(_ context.Context, r *schedule.Rota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rotas {
		if existing.LocationID == r.LocationID && existing.WeekStart.Equal(r.WeekStart) {
			return schedule.ErrDuplicateRota
		}
	}
	cp := *r
	s.rotas[r.ID] = &cp
	return nil
}

func (s *Store) UpdateRotaStatus(_ context.Context, id schedule.RotaID, from, to schedule.RotaStatus, by schedule.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rotas[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "rota", ID: string(id)}
	}
	if r.Status != from {
		return &schedule.StateError{Entity: "rota", ID: string(id), Current: string(r.Status), Attempted: "transition to " + string(to)}
	}
	r.Status = to
	r.UpdatedBy = by
	r.UpdatedAt = at
	return nil
}

// =============================================================================
// SHIFT STORE
// =============================================================================

func (s *Store) GetShift(_ context.Context, id schedule.ShiftID) (*schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sh, ok := s.shifts[id]; ok {
		cp := *sh
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) SaveShift(_ context.Context, sh *schedule.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sh
	s.shifts[sh.ID] = &cp
	return nil
}

func (s *Store) ListShiftsByRota(_ context.Context, rotaID schedule.RotaID) ([]schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.Shift
	for _, sh := range s.shifts {
		if sh.RotaID == rotaID {
			out = append(out, *sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *Store) ListConfirmedShiftsForUser(_ context.Context, userID schedule.UserID, from, to time.Time) ([]schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.Shift
	for _, a := range s.assignments {
		if a.UserID != userID || !a.Status.Confirmed() {
			continue
		}
		sh, ok := s.shifts[a.ShiftID]
		if !ok || sh.Status == schedule.ShiftCancelled {
			continue
		}
		if schedule.Overlaps(sh.StartAt, sh.EndAt, from, to) {
			out = append(out, *sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *Store) DeleteShift(_ context.Context, id schedule.ShiftID) ([]schedule.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shifts[id]; !ok {
		return nil, &schedule.NotFoundError{Entity: "shift", ID: string(id)}
	}
	delete(s.shifts, id)

	var removed []schedule.UserID
	for aid, a := range s.assignments {
		if a.ShiftID == id {
			if a.Status.Active() {
				removed = append(removed, a.UserID)
			}
			delete(s.assignments, aid)
		}
	}
	return removed, nil
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

func (s *Store) GetAssignment(_ context.Context, id schedule.AssignmentID) (*schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.assignments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) FindAssignment(_ context.Context, shiftID schedule.ShiftID, userID schedule.UserID) (*schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.ShiftID == shiftID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) SaveAssignment(_ context.Context, a *schedule.ShiftAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Active-assignment uniqueness per (shift, user).
	for _, existing := range s.assignments {
		if existing.ID != a.ID && existing.ShiftID == a.ShiftID && existing.UserID == a.UserID && existing.Status.Active() && a.Status.Active() {
			return &schedule.CollisionError{Kind: schedule.CollisionShift, UserID: a.UserID}
		}
	}

	if a.Status.Confirmed() {
		if err := s.confirmedOverlapLocked(a.ID, a.UserID, a.ShiftID); err != nil {
			return err
		}
	}

	cp := *a
	s.assignments[a.ID] = &cp
	return nil
}

// confirmedOverlapLocked enforces the exclusion constraint: confirming an
// assignment must not give its user two confirmed overlapping shifts. This
// check under the store mutex is the final authority; the service pre-check
// only reports conflicts early. Cancelled shifts hold no interval. Callers
// hold the write lock.
func (s *Store) confirmedOverlapLocked(id schedule.AssignmentID, userID schedule.UserID, shiftID schedule.ShiftID) error {
	sh, ok := s.shifts[shiftID]
	if !ok {
		return &schedule.NotFoundError{Entity: "shift", ID: string(shiftID)}
	}
	for _, existing := range s.assignments {
		if existing.ID == id || existing.UserID != userID || !existing.Status.Confirmed() {
			continue
		}
		other, ok := s.shifts[existing.ShiftID]
		if !ok || other.Status == schedule.ShiftCancelled {
			continue
		}
		if schedule.Overlaps(sh.StartAt, sh.EndAt, other.StartAt, other.EndAt) {
			return &schedule.CollisionError{Kind: schedule.CollisionShift, UserID: userID, Start: sh.StartAt, End: sh.EndAt}
		}
	}
	return nil
}

func (s *Store) UpdateAssignmentStatus(_ context.Context, id schedule.AssignmentID, from, to schedule.AssignmentStatus, respondedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "assignment", ID: string(id)}
	}
	if a.Status != from {
		return &schedule.StateError{Entity: "assignment", ID: string(id), Current: string(a.Status), Attempted: "transition to " + string(to)}
	}
	// The exclusion constraint covers the accept commit too: a confirmed
	// assignment may have landed on an overlapping shift since the caller's
	// pre-check.
	if to.Confirmed() {
		if err := s.confirmedOverlapLocked(id, a.UserID, a.ShiftID); err != nil {
			return err
		}
	}
	a.Status = to
	a.RespondedAt = &respondedAt
	a.UpdatedAt = respondedAt
	return nil
}

func (s *Store) ListAssignmentsByShift(_ context.Context, shiftID schedule.ShiftID) ([]schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.ShiftAssignment
	for _, a := range s.assignments {
		if a.ShiftID == shiftID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *Store) ListAssignmentsByUser(_ context.Context, userID schedule.UserID, statuses []schedule.AssignmentStatus) ([]schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.ShiftAssignment
	for _, a := range s.assignments {
		if a.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, a.Status) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func containsStatus(statuses []schedule.AssignmentStatus, st schedule.AssignmentStatus) bool {
	for _, c := range statuses {
		if c == st {
			return true
		}
	}
	return false
}

// =============================================================================
// COLLISION READER
// =============================================================================

func (s *Store) ConfirmedShiftIntervals(_ context.Context, userID schedule.UserID, excludeShift schedule.ShiftID) ([]schedule.ShiftInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.ShiftInterval
	for _, a := range s.assignments {
		if a.UserID != userID || !a.Status.Confirmed() || a.ShiftID == excludeShift {
			continue
		}
		if sh, ok := s.shifts[a.ShiftID]; ok && sh.Status != schedule.ShiftCancelled {
			out = append(out, schedule.ShiftInterval{ShiftID: sh.ID, Interval: sh.Interval()})
		}
	}
	return out, nil
}

func (s *Store) ActiveLeaveIntervals(_ context.Context, userID schedule.UserID, excludeLeave string) ([]schedule.LeaveInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schedule.LeaveInterval
	for _, r := range s.leaveRequests {
		if r.UserID != userID || !r.Status.Active() || string(r.ID) == excludeLeave {
			continue
		}
		out = append(out, schedule.LeaveInterval{LeaveID: string(r.ID), Interval: r.Interval()})
	}
	return out, nil
}

// =============================================================================
// LEAVE STORE
// =============================================================================

func (s *Store) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.leaveRequests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) InsertRequest(_ context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// No double-booking at commit time: the insert fails when the interval
	// overlaps one of the user's active requests, even if a service
	// pre-check raced past a concurrent create.
	for _, existing := range s.leaveRequests {
		if existing.ID == r.ID || existing.UserID != r.UserID || !existing.Status.Active() {
			continue
		}
		if schedule.Overlaps(r.StartAt, r.EndAt, existing.StartAt, existing.EndAt) {
			return &schedule.CollisionError{Kind: schedule.CollisionLeave, UserID: r.UserID, Start: r.StartAt, End: r.EndAt}
		}
	}

	cp := *r
	s.leaveRequests[r.ID] = &cp
	return nil
}

func (s *Store) ListRequestsByUser(_ context.Context, userID schedule.UserID, statuses []leave.Status) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.LeaveRequest
	for _, r := range s.leaveRequests {
		if r.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !containsLeaveStatus(statuses, r.Status) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func containsLeaveStatus(statuses []leave.Status, st leave.Status) bool {
	for _, c := range statuses {
		if c == st {
			return true
		}
	}
	return false
}

func (s *Store) DecideRequest(_ context.Context, id leave.RequestID, to leave.Status, approver schedule.UserID, at time.Time, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.leaveRequests[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "leave_request", ID: string(id)}
	}
	if r.Status != leave.StatusPending {
		return &schedule.StateError{Entity: "leave_request", ID: string(id), Current: string(r.Status), Attempted: "decide"}
	}
	r.Status = to
	r.ApproverID = &approver
	r.ApprovedAt = &at
	r.Notes = notes
	r.UpdatedAt = at
	return nil
}

func (s *Store) CancelRequest(_ context.Context, id leave.RequestID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.leaveRequests[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "leave_request", ID: string(id)}
	}
	if r.Status != leave.StatusPending {
		return &schedule.StateError{Entity: "leave_request", ID: string(id), Current: string(r.Status), Attempted: "cancel"}
	}
	r.Status = leave.StatusCancelled
	r.UpdatedAt = at
	return nil
}

func (s *Store) GetType(_ context.Context, id leave.TypeID) (*leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.leaveTypes[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) SaveType(_ context.Context, t *leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.leaveTypes[t.ID] = &cp
	return nil
}

// =============================================================================
// TIMECLOCK EVENT STORE
// =============================================================================

func (s *Store) GetEvent(_ context.Context, id timeclock.EventID) (*timeclock.TimeClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) InsertEvent(_ context.Context, e *timeclock.TimeClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *Store) UpdateEventTime(_ context.Context, id timeclock.EventID, occurredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "time_clock_event", ID: string(id)}
	}
	e.OccurredAt = occurredAt
	return nil
}

func (s *Store) ListEventsByUser(_ context.Context, userID schedule.UserID, from, to time.Time) ([]timeclock.TimeClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeclock.TimeClockEvent
	for _, e := range s.events {
		if e.UserID != userID {
			continue
		}
		if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Store) OpenClockIn(_ context.Context, userID schedule.UserID) (*timeclock.TimeClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *timeclock.TimeClockEvent
	for _, e := range s.events {
		if e.UserID != userID {
			continue
		}
		if latest == nil || e.OccurredAt.After(latest.OccurredAt) {
			latest = e
		}
	}
	if latest != nil && latest.Type == timeclock.EventClockIn {
		cp := *latest
		return &cp, nil
	}
	return nil, nil
}

// =============================================================================
// CORRECTION STORE
// =============================================================================

func (s *Store) GetCorrection(_ context.Context, id timeclock.CorrectionID) (*timeclock.TimeCorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.corrections[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) InsertCorrection(_ context.Context, c *timeclock.TimeCorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.corrections[c.ID] = &cp
	return nil
}

func (s *Store) DecideCorrection(_ context.Context, id timeclock.CorrectionID, to timeclock.CorrectionStatus, reviewer schedule.UserID, at time.Time, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.corrections[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "time_correction", ID: string(id)}
	}
	if c.Status != timeclock.CorrectionPending {
		return &schedule.StateError{Entity: "time_correction", ID: string(id), Current: string(c.Status), Attempted: "decide", Processed: true}
	}
	c.Status = to
	c.ReviewedBy = &reviewer
	c.ReviewedAt = &at
	c.ReviewerNotes = notes
	c.UpdatedAt = at
	return nil
}

func (s *Store) ListCorrectionsByUser(_ context.Context, userID schedule.UserID) ([]timeclock.TimeCorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeclock.TimeCorrectionRequest
	for _, c := range s.corrections {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListPendingCorrections(_ context.Context) ([]timeclock.TimeCorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []timeclock.TimeCorrectionRequest
	for _, c := range s.corrections {
		if c.Status == timeclock.CorrectionPending {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// COMPLIANCE RULE STORE
// =============================================================================

func (s *Store) ListActiveRules(_ context.Context, orgID schedule.OrgID) ([]compliance.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []compliance.Rule
	for _, r := range s.rules {
		if r.OrgID == orgID && r.IsActive {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) SaveRule(_ context.Context, r *compliance.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

// =============================================================================
// COMPLIANCE VIOLATION STORE
// =============================================================================

func (s *Store) GetViolation(_ context.Context, id compliance.ViolationID) (*compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.violations[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) UpsertViolation(_ context.Context, v *compliance.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range s.violations {
		if existing.UserID == v.UserID && existing.RuleID == v.RuleID && existing.Date.Equal(v.Date) {
			// Replace derived content; silencing fields stay untouched.
			existing.Severity = v.Severity
			existing.Details = v.Details
			existing.UpdatedAt = now
			*v = *existing
			return nil
		}
	}

	if v.ID == "" {
		v.ID = compliance.ViolationID(schedule.NewID())
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	cp := *v
	s.violations[v.ID] = &cp
	return nil
}

func (s *Store) ListViolationsByUser(_ context.Context, userID schedule.UserID, from, to time.Time) ([]compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []compliance.Violation
	for _, v := range s.violations {
		if v.UserID == userID && inDateRange(v.Date, from, to) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) ListViolationsByLocation(_ context.Context, locationID schedule.LocationID, from, to time.Time) ([]compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []compliance.Violation
	for _, v := range s.violations {
		if v.LocationID == locationID && inDateRange(v.Date, from, to) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func inDateRange(date, from, to time.Time) bool {
	return !date.Before(from) && date.Before(to)
}

func (s *Store) SilenceViolation(_ context.Context, id compliance.ViolationID, by schedule.UserID, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	if !ok {
		return &schedule.NotFoundError{Entity: "violation", ID: string(id)}
	}
	v.IsSilenced = true
	v.SilencedBy = &by
	v.SilencedAt = &at
	v.SilenceReason = reason
	v.UpdatedAt = at
	return nil
}
