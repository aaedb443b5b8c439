/*
Package sqlite provides a SQLite-backed implementation of the storage ports.

PURPOSE:
  Implements every engine port (schedule.RotaStore, schedule.ShiftStore,
  schedule.AssignmentStore, schedule.CollisionReader, leave.Store,
  timeclock.EventStore, timeclock.CorrectionStore, compliance.RuleStore,
  compliance.ViolationStore) on SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences, plus a real
  range exclusion constraint for assignments.

CONSTRAINTS THAT CLOSE THE RACE WINDOW:
  - idx_rotas_location_week: one rota per (location, week start)
  - idx_assignments_active: one non-declined assignment per (shift, user)
  - idx_violations_key: one violation per (user, rule, date)
  - Confirmed-assignment interval overlap is checked inside the same
    write transaction under the store mutex; SQLite has no exclusion
    constraints, so the serialized check-then-write stands in for one.

CAS UPDATES:
  Status updates run as UPDATE ... WHERE id = ? AND status = ?; zero rows
  affected means another writer won and surfaces as a StateError.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers, a single writer, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go: Port definitions and the concurrency contract
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/rota-engine/compliance"
	"github.com/warp/rota-engine/leave"
	"github.com/warp/rota-engine/schedule"
	"github.com/warp/rota-engine/timeclock"
)

// Store implements all storage ports using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS rotas (
		id              TEXT PRIMARY KEY,
		location_id     TEXT NOT NULL,
		week_start      TEXT NOT NULL,
		status          TEXT NOT NULL,
		budget_amount   TEXT,
		budget_currency TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		updated_by      TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rotas_location_week
		ON rotas(location_id, week_start);

	CREATE TABLE IF NOT EXISTS shifts (
		id            TEXT PRIMARY KEY,
		rota_id       TEXT NOT NULL REFERENCES rotas(id),
		location_id   TEXT NOT NULL,
		job_tag_id    TEXT NOT NULL DEFAULT '',
		start_at      TEXT NOT NULL,
		end_at        TEXT NOT NULL,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		notes         TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_shifts_rota ON shifts(rota_id);
	CREATE INDEX IF NOT EXISTS idx_shifts_range ON shifts(start_at, end_at);

	CREATE TABLE IF NOT EXISTS shift_assignments (
		id           TEXT PRIMARY KEY,
		shift_id     TEXT NOT NULL REFERENCES shifts(id),
		user_id      TEXT NOT NULL,
		status       TEXT NOT NULL,
		assigned_at  TEXT,
		proposed_at  TEXT,
		responded_at TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_active
		ON shift_assignments(shift_id, user_id) WHERE status != 'declined';
	CREATE INDEX IF NOT EXISTS idx_assignments_user ON shift_assignments(user_id, status);

	CREATE TABLE IF NOT EXISTS leave_types (
		id        TEXT PRIMARY KEY,
		org_id    TEXT NOT NULL,
		name      TEXT NOT NULL,
		is_paid   INTEGER NOT NULL DEFAULT 1,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		type_id     TEXT NOT NULL REFERENCES leave_types(id),
		start_at    TEXT NOT NULL,
		end_at      TEXT NOT NULL,
		status      TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		approver_id TEXT,
		approved_at TEXT,
		notes       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leave_user_status ON leave_requests(user_id, status);

	CREATE TABLE IF NOT EXISTS time_clock_events (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		shift_id    TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_time ON time_clock_events(user_id, occurred_at);

	CREATE TABLE IF NOT EXISTS time_corrections (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		shift_id       TEXT NOT NULL,
		event_id       TEXT,
		original_time  TEXT NOT NULL,
		requested_time TEXT NOT NULL,
		reason         TEXT NOT NULL,
		status         TEXT NOT NULL,
		reviewed_by    TEXT,
		reviewed_at    TEXT,
		reviewer_notes TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_corrections_status ON time_corrections(status);

	CREATE TABLE IF NOT EXISTS compliance_rules (
		id              TEXT PRIMARY KEY,
		org_id          TEXT NOT NULL,
		rule_key        TEXT NOT NULL,
		threshold_hours TEXT NOT NULL,
		is_active       INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_rules_org ON compliance_rules(org_id, is_active);

	CREATE TABLE IF NOT EXISTS compliance_violations (
		id             TEXT PRIMARY KEY,
		org_id         TEXT NOT NULL,
		location_id    TEXT NOT NULL,
		user_id        TEXT NOT NULL,
		rule_id        TEXT NOT NULL,
		violation_date TEXT NOT NULL,
		severity       TEXT NOT NULL,
		details_json   TEXT NOT NULL,
		is_silenced    INTEGER NOT NULL DEFAULT 0,
		silenced_by    TEXT,
		silenced_at    TEXT,
		silence_reason TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_violations_key
		ON compliance_violations(user_id, rule_id, violation_date);
	CREATE INDEX IF NOT EXISTS idx_violations_location ON compliance_violations(location_id, violation_date);
	`
	_, err := s.db.Exec(schemaSQL)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func scanNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// =============================================================================
// ROTA STORE
// =============================================================================

const rotaColumns = `id, location_id, week_start, status, budget_amount, budget_currency, created_at, updated_at, updated_by`

func scanRotaRow(scan func(dest ...any) error) (*schedule.Rota, error) {
	var r schedule.Rota
	var weekStart, createdAt, updatedAt string
	var budgetAmount, budgetCurrency sql.NullString

	err := scan(&r.ID, &r.LocationID, &weekStart, &r.Status, &budgetAmount, &budgetCurrency, &createdAt, &updatedAt, &r.UpdatedBy)
	if err != nil {
		return nil, err
	}
	r.WeekStart = parseTime(weekStart)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if budgetAmount.Valid && budgetCurrency.Valid {
		m := schedule.Money{Amount: mustDecimal(budgetAmount.String), Currency: budgetCurrency.String}
		r.LaborBudget = &m
	}
	return &r, nil
}

func (s *Store) GetRota(ctx context.Context, id schedule.RotaID) (*schedule.Rota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+rotaColumns+` FROM rotas WHERE id = ?`, id)
	r, err := scanRotaRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rota: %w", err)
	}
	return r, nil
}

func (s *Store) GetRotaByWeek(ctx context.Context, locationID schedule.LocationID, weekStart time.Time) (*schedule.Rota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+rotaColumns+` FROM rotas WHERE location_id = ? AND week_start = ?`,
		locationID, fmtTime(weekStart))
	r, err := scanRotaRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rota: %w", err)
	}
	return r, nil
}

func (s *Store) InsertRota(ctx context.Context, r *schedule.Rota) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var budgetAmount, budgetCurrency any
	if r.LaborBudget != nil {
		budgetAmount = r.LaborBudget.Amount.String()
		budgetCurrency = r.LaborBudget.Currency
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rotas (`+rotaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.LocationID, fmtTime(r.WeekStart), r.Status,
		budgetAmount, budgetCurrency,
		fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt), r.UpdatedBy,
	)
	if isUniqueConstraintError(err) {
		return schedule.ErrDuplicateRota
	}
	if err != nil {
		return fmt.Errorf("failed to insert rota: %w", err)
	}
	return nil
}

func (s *Store) UpdateRotaStatus(ctx context.Context, id schedule.RotaID, from, to schedule.RotaStatus, by schedule.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE rotas SET status = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, by, fmtTime(at), id, from)
	if err != nil {
		return fmt.Errorf("failed to update rota status: %w", err)
	}
	return s.casOutcome(ctx, res, "rota", "rotas", string(id), "transition to "+string(to), false)
}

// casOutcome converts a zero-rows-affected CAS update into the right error:
// NotFound when the row is gone, StateError when another writer won.
func (s *Store) casOutcome(ctx context.Context, res sql.Result, entity, table, id, attempted string, processed bool) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var current sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return &schedule.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return err
	}
	return &schedule.StateError{Entity: entity, ID: id, Current: current.String, Attempted: attempted, Processed: processed}
}

// =============================================================================
// SHIFT STORE
// =============================================================================

const shiftColumns = `id, rota_id, location_id, job_tag_id, start_at, end_at, break_minutes, status, notes, created_at, updated_at`

func scanShiftRow(scan func(dest ...any) error) (*schedule.Shift, error) {
	var sh schedule.Shift
	var startAt, endAt, createdAt, updatedAt string
	err := scan(&sh.ID, &sh.RotaID, &sh.LocationID, &sh.JobTagID, &startAt, &endAt, &sh.BreakMinutes, &sh.Status, &sh.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sh.StartAt = parseTime(startAt)
	sh.EndAt = parseTime(endAt)
	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)
	return &sh, nil
}

func (s *Store) GetShift(ctx context.Context, id schedule.ShiftID) (*schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	sh, err := scanShiftRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shift: %w", err)
	}
	return sh, nil
}

func (s *Store) SaveShift(ctx context.Context, sh *schedule.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_tag_id = excluded.job_tag_id,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			break_minutes = excluded.break_minutes,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		sh.ID, sh.RotaID, sh.LocationID, sh.JobTagID,
		fmtTime(sh.StartAt), fmtTime(sh.EndAt), sh.BreakMinutes, sh.Status, sh.Notes,
		fmtTime(sh.CreatedAt), fmtTime(sh.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (s *Store) queryShifts(ctx context.Context, query string, args ...any) ([]schedule.Shift, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var out []schedule.Shift
	for rows.Next() {
		sh, err := scanShiftRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		out = append(out, *sh)
	}
	return out, rows.Err()
}

func (s *Store) ListShiftsByRota(ctx context.Context, rotaID schedule.RotaID) ([]schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryShifts(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE rota_id = ? ORDER BY start_at ASC`, rotaID)
}

func (s *Store) ListConfirmedShiftsForUser(ctx context.Context, userID schedule.UserID, from, to time.Time) ([]schedule.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryShifts(ctx, `
		SELECT sh.id, sh.rota_id, sh.location_id, sh.job_tag_id, sh.start_at, sh.end_at,
		       sh.break_minutes, sh.status, sh.notes, sh.created_at, sh.updated_at
		FROM shifts sh
		JOIN shift_assignments a ON a.shift_id = sh.id
		WHERE a.user_id = ? AND a.status IN ('assigned', 'accepted')
		  AND sh.status != 'cancelled'
		  AND sh.start_at < ? AND sh.end_at > ?
		ORDER BY sh.start_at ASC`,
		userID, fmtTime(to), fmtTime(from))
}

func (s *Store) DeleteShift(ctx context.Context, id schedule.ShiftID) ([]schedule.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM shift_assignments WHERE shift_id = ? AND status != 'declined'`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	var removed []schedule.UserID
	for rows.Next() {
		var userID schedule.UserID
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return nil, err
		}
		removed = append(removed, userID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shift_assignments WHERE shift_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete assignments: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete shift: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &schedule.NotFoundError{Entity: "shift", ID: string(id)}
	}

	return removed, tx.Commit()
}

// =============================================================================
// ASSIGNMENT STORE
// =============================================================================

const assignmentColumns = `id, shift_id, user_id, status, assigned_at, proposed_at, responded_at, created_at, updated_at`

func scanAssignmentRow(scan func(dest ...any) error) (*schedule.ShiftAssignment, error) {
	var a schedule.ShiftAssignment
	var assignedAt, proposedAt, respondedAt sql.NullString
	var createdAt, updatedAt string
	err := scan(&a.ID, &a.ShiftID, &a.UserID, &a.Status, &assignedAt, &proposedAt, &respondedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.AssignedAt = scanNullTime(assignedAt)
	a.ProposedAt = scanNullTime(proposedAt)
	a.RespondedAt = scanNullTime(respondedAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func (s *Store) GetAssignment(ctx context.Context, id schedule.AssignmentID) (*schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM shift_assignments WHERE id = ?`, id)
	a, err := scanAssignmentRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	return a, nil
}

func (s *Store) FindAssignment(ctx context.Context, shiftID schedule.ShiftID, userID schedule.UserID) (*schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM shift_assignments
		WHERE shift_id = ? AND user_id = ?
		ORDER BY created_at DESC LIMIT 1`,
		shiftID, userID)
	a, err := scanAssignmentRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	return a, nil
}

func (s *Store) SaveAssignment(ctx context.Context, a *schedule.ShiftAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Interval exclusion over confirmed assignments. Serialized by the
	// store mutex and the write transaction, so a concurrent writer cannot
	// slip between this check and the write below.
	if a.Status.Confirmed() {
		if err := s.checkExclusion(ctx, tx, a.ID, a.UserID, a.ShiftID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shift_assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			assigned_at = excluded.assigned_at,
			proposed_at = excluded.proposed_at,
			responded_at = excluded.responded_at,
			updated_at = excluded.updated_at`,
		a.ID, a.ShiftID, a.UserID, a.Status,
		nullTime(a.AssignedAt), nullTime(a.ProposedAt), nullTime(a.RespondedAt),
		fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return &schedule.CollisionError{Kind: schedule.CollisionShift, UserID: a.UserID}
	}
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return tx.Commit()
}

// checkExclusion fails when confirming the assignment would give the user
// two confirmed assignments on overlapping shifts. Cancelled shifts hold no
// interval. Runs inside the caller's write transaction.
func (s *Store) checkExclusion(ctx context.Context, tx *sql.Tx, id schedule.AssignmentID, userID schedule.UserID, shiftID schedule.ShiftID) error {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM shift_assignments other
		JOIN shifts os ON os.id = other.shift_id
		JOIN shifts mine ON mine.id = ?
		WHERE other.user_id = ?
		  AND other.id != ?
		  AND other.status IN ('assigned', 'accepted')
		  AND os.status != 'cancelled'
		  AND os.start_at < mine.end_at
		  AND os.end_at > mine.start_at`,
		shiftID, userID, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check assignment exclusion: %w", err)
	}
	if count == 0 {
		return nil
	}
	mine, err := s.shiftInterval(ctx, tx, shiftID)
	if err != nil {
		return err
	}
	return &schedule.CollisionError{Kind: schedule.CollisionShift, UserID: userID, Start: mine.Start, End: mine.End}
}

func (s *Store) shiftInterval(ctx context.Context, tx *sql.Tx, id schedule.ShiftID) (schedule.Interval, error) {
	var startAt, endAt string
	err := tx.QueryRowContext(ctx, `SELECT start_at, end_at FROM shifts WHERE id = ?`, id).Scan(&startAt, &endAt)
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("failed to read shift interval: %w", err)
	}
	return schedule.Interval{Start: parseTime(startAt), End: parseTime(endAt)}, nil
}

func (s *Store) UpdateAssignmentStatus(ctx context.Context, id schedule.AssignmentID, from, to schedule.AssignmentStatus, respondedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The exclusion constraint covers the accept commit too: a confirmed
	// assignment may have landed on an overlapping shift since the caller's
	// pre-check.
	if to.Confirmed() {
		var userID schedule.UserID
		var shiftID schedule.ShiftID
		err := tx.QueryRowContext(ctx, `SELECT user_id, shift_id FROM shift_assignments WHERE id = ?`, id).Scan(&userID, &shiftID)
		if err == sql.ErrNoRows {
			return &schedule.NotFoundError{Entity: "assignment", ID: string(id)}
		}
		if err != nil {
			return fmt.Errorf("failed to read assignment: %w", err)
		}
		if err := s.checkExclusion(ctx, tx, id, userID, shiftID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE shift_assignments SET status = ?, responded_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, fmtTime(respondedAt), fmtTime(respondedAt), id, from)
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	if err := s.casOutcome(ctx, res, "assignment", "shift_assignments", string(id), "transition to "+string(to), false); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]schedule.ShiftAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []schedule.ShiftAssignment
	for rows.Next() {
		a, err := scanAssignmentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) ListAssignmentsByShift(ctx context.Context, shiftID schedule.ShiftID) ([]schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM shift_assignments WHERE shift_id = ? ORDER BY created_at ASC`, shiftID)
}

func (s *Store) ListAssignmentsByUser(ctx context.Context, userID schedule.UserID, statuses []schedule.AssignmentStatus) ([]schedule.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + assignmentColumns + ` FROM shift_assignments WHERE user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC`
	return s.queryAssignments(ctx, query, args...)
}

// =============================================================================
// COLLISION READER
// =============================================================================

func (s *Store) ConfirmedShiftIntervals(ctx context.Context, userID schedule.UserID, excludeShift schedule.ShiftID) ([]schedule.ShiftInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sh.id, sh.start_at, sh.end_at
		FROM shifts sh
		JOIN shift_assignments a ON a.shift_id = sh.id
		WHERE a.user_id = ? AND a.status IN ('assigned', 'accepted')
		  AND sh.status != 'cancelled' AND sh.id != ?`,
		userID, excludeShift)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift intervals: %w", err)
	}
	defer rows.Close()

	var out []schedule.ShiftInterval
	for rows.Next() {
		var si schedule.ShiftInterval
		var startAt, endAt string
		if err := rows.Scan(&si.ShiftID, &startAt, &endAt); err != nil {
			return nil, err
		}
		si.Start = parseTime(startAt)
		si.End = parseTime(endAt)
		out = append(out, si)
	}
	return out, rows.Err()
}

func (s *Store) ActiveLeaveIntervals(ctx context.Context, userID schedule.UserID, excludeLeave string) ([]schedule.LeaveInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_at, end_at
		FROM leave_requests
		WHERE user_id = ? AND status IN ('pending', 'approved') AND id != ?`,
		userID, excludeLeave)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave intervals: %w", err)
	}
	defer rows.Close()

	var out []schedule.LeaveInterval
	for rows.Next() {
		var li schedule.LeaveInterval
		var startAt, endAt string
		if err := rows.Scan(&li.LeaveID, &startAt, &endAt); err != nil {
			return nil, err
		}
		li.Start = parseTime(startAt)
		li.End = parseTime(endAt)
		out = append(out, li)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE STORE
// =============================================================================

const leaveColumns = `id, org_id, user_id, type_id, start_at, end_at, status, reason, approver_id, approved_at, notes, created_at, updated_at`

func scanLeaveRow(scan func(dest ...any) error) (*leave.LeaveRequest, error) {
	var r leave.LeaveRequest
	var startAt, endAt, createdAt, updatedAt string
	var approverID, approvedAt sql.NullString
	err := scan(&r.ID, &r.OrgID, &r.UserID, &r.TypeID, &startAt, &endAt, &r.Status, &r.Reason, &approverID, &approvedAt, &r.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.StartAt = parseTime(startAt)
	r.EndAt = parseTime(endAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if approverID.Valid {
		uid := schedule.UserID(approverID.String)
		r.ApproverID = &uid
	}
	r.ApprovedAt = scanNullTime(approvedAt)
	return &r, nil
}

func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanLeaveRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan leave request: %w", err)
	}
	return r, nil
}

func (s *Store) InsertRequest(ctx context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// No double-booking at commit time: the insert fails when the interval
	// overlaps one of the user's active requests, even if a service
	// pre-check raced past a concurrent create.
	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM leave_requests
		WHERE user_id = ? AND id != ?
		  AND status IN ('pending', 'approved')
		  AND start_at < ? AND end_at > ?`,
		r.UserID, r.ID, fmtTime(r.EndAt), fmtTime(r.StartAt),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check leave exclusion: %w", err)
	}
	if count > 0 {
		return &schedule.CollisionError{Kind: schedule.CollisionLeave, UserID: r.UserID, Start: r.StartAt, End: r.EndAt}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leave_requests (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.UserID, r.TypeID,
		fmtTime(r.StartAt), fmtTime(r.EndAt), r.Status, r.Reason,
		nil, nil, r.Notes,
		fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListRequestsByUser(ctx context.Context, userID schedule.UserID, statuses []leave.Status) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + leaveColumns + ` FROM leave_requests WHERE user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY start_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var out []leave.LeaveRequest
	for rows.Next() {
		r, err := scanLeaveRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) DecideRequest(ctx context.Context, id leave.RequestID, to leave.Status, approver schedule.UserID, at time.Time, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests SET status = ?, approver_id = ?, approved_at = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		to, approver, fmtTime(at), notes, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to decide leave request: %w", err)
	}
	return s.casOutcome(ctx, res, "leave_request", "leave_requests", string(id), string(to), false)
}

func (s *Store) CancelRequest(ctx context.Context, id leave.RequestID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to cancel leave request: %w", err)
	}
	return s.casOutcome(ctx, res, "leave_request", "leave_requests", string(id), "cancel", false)
}

func (s *Store) GetType(ctx context.Context, id leave.TypeID) (*leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t leave.LeaveType
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, is_paid, is_active FROM leave_types WHERE id = ?`, id,
	).Scan(&t.ID, &t.OrgID, &t.Name, &t.IsPaid, &t.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan leave type: %w", err)
	}
	return &t, nil
}

func (s *Store) SaveType(ctx context.Context, t *leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (id, org_id, name, is_paid, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_paid = excluded.is_paid,
			is_active = excluded.is_active`,
		t.ID, t.OrgID, t.Name, t.IsPaid, t.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

// =============================================================================
// TIMECLOCK EVENT STORE
// =============================================================================

const eventColumns = `id, user_id, shift_id, event_type, occurred_at, created_at`

func scanEventRow(scan func(dest ...any) error) (*timeclock.TimeClockEvent, error) {
	var e timeclock.TimeClockEvent
	var occurredAt, createdAt string
	err := scan(&e.ID, &e.UserID, &e.ShiftID, &e.Type, &occurredAt, &createdAt)
	if err != nil {
		return nil, err
	}
	e.OccurredAt = parseTime(occurredAt)
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func (s *Store) GetEvent(ctx context.Context, id timeclock.EventID) (*timeclock.TimeClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM time_clock_events WHERE id = ?`, id)
	e, err := scanEventRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	return e, nil
}

func (s *Store) InsertEvent(ctx context.Context, e *timeclock.TimeClockEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_clock_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.ShiftID, e.Type, fmtTime(e.OccurredAt), fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *Store) UpdateEventTime(ctx context.Context, id timeclock.EventID, occurredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE time_clock_events SET occurred_at = ? WHERE id = ?`, fmtTime(occurredAt), id)
	if err != nil {
		return fmt.Errorf("failed to update event time: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &schedule.NotFoundError{Entity: "time_clock_event", ID: string(id)}
	}
	return nil
}

func (s *Store) ListEventsByUser(ctx context.Context, userID schedule.UserID, from, to time.Time) ([]timeclock.TimeClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM time_clock_events
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at ASC`,
		userID, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []timeclock.TimeClockEvent
	for rows.Next() {
		e, err := scanEventRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) OpenClockIn(ctx context.Context, userID schedule.UserID) (*timeclock.TimeClockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM time_clock_events
		WHERE user_id = ?
		ORDER BY occurred_at DESC
		LIMIT 1`, userID)
	e, err := scanEventRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	if e.Type != timeclock.EventClockIn {
		return nil, nil
	}
	return e, nil
}

// =============================================================================
// CORRECTION STORE
// =============================================================================

const correctionColumns = `id, user_id, shift_id, event_id, original_time, requested_time, reason, status, reviewed_by, reviewed_at, reviewer_notes, created_at, updated_at`

func scanCorrectionRow(scan func(dest ...any) error) (*timeclock.TimeCorrectionRequest, error) {
	var c timeclock.TimeCorrectionRequest
	var eventID, reviewedBy, reviewedAt sql.NullString
	var originalTime, requestedTime, createdAt, updatedAt string
	err := scan(&c.ID, &c.UserID, &c.ShiftID, &eventID, &originalTime, &requestedTime, &c.Reason, &c.Status, &reviewedBy, &reviewedAt, &c.ReviewerNotes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if eventID.Valid {
		eid := timeclock.EventID(eventID.String)
		c.EventID = &eid
	}
	if reviewedBy.Valid {
		uid := schedule.UserID(reviewedBy.String)
		c.ReviewedBy = &uid
	}
	c.ReviewedAt = scanNullTime(reviewedAt)
	c.OriginalTime = parseTime(originalTime)
	c.RequestedTime = parseTime(requestedTime)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (s *Store) GetCorrection(ctx context.Context, id timeclock.CorrectionID) (*timeclock.TimeCorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+correctionColumns+` FROM time_corrections WHERE id = ?`, id)
	c, err := scanCorrectionRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan correction: %w", err)
	}
	return c, nil
}

func (s *Store) InsertCorrection(ctx context.Context, c *timeclock.TimeCorrectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eventID any
	if c.EventID != nil {
		eventID = string(*c.EventID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_corrections (`+correctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ShiftID, eventID,
		fmtTime(c.OriginalTime), fmtTime(c.RequestedTime), c.Reason, c.Status,
		nil, nil, c.ReviewerNotes,
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert correction: %w", err)
	}
	return nil
}

func (s *Store) DecideCorrection(ctx context.Context, id timeclock.CorrectionID, to timeclock.CorrectionStatus, reviewer schedule.UserID, at time.Time, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE time_corrections SET status = ?, reviewed_by = ?, reviewed_at = ?, reviewer_notes = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		to, reviewer, fmtTime(at), notes, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to decide correction: %w", err)
	}
	return s.casOutcome(ctx, res, "time_correction", "time_corrections", string(id), string(to), true)
}

func (s *Store) queryCorrections(ctx context.Context, query string, args ...any) ([]timeclock.TimeCorrectionRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []timeclock.TimeCorrectionRequest
	for rows.Next() {
		c, err := scanCorrectionRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) ListCorrectionsByUser(ctx context.Context, userID schedule.UserID) ([]timeclock.TimeCorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCorrections(ctx,
		`SELECT `+correctionColumns+` FROM time_corrections WHERE user_id = ? ORDER BY created_at ASC`, userID)
}

func (s *Store) ListPendingCorrections(ctx context.Context) ([]timeclock.TimeCorrectionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCorrections(ctx,
		`SELECT `+correctionColumns+` FROM time_corrections WHERE status = 'pending' ORDER BY created_at ASC`)
}

// =============================================================================
// COMPLIANCE RULE STORE
// =============================================================================

func (s *Store) ListActiveRules(ctx context.Context, orgID schedule.OrgID) ([]compliance.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, rule_key, threshold_hours, is_active
		FROM compliance_rules
		WHERE org_id = ? AND is_active = 1
		ORDER BY rule_key ASC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []compliance.Rule
	for rows.Next() {
		var r compliance.Rule
		var threshold string
		if err := rows.Scan(&r.ID, &r.OrgID, &r.Key, &threshold, &r.IsActive); err != nil {
			return nil, err
		}
		r.ThresholdHours = mustDecimal(threshold)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SaveRule(ctx context.Context, r *compliance.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_rules (id, org_id, rule_key, threshold_hours, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rule_key = excluded.rule_key,
			threshold_hours = excluded.threshold_hours,
			is_active = excluded.is_active`,
		r.ID, r.OrgID, r.Key, r.ThresholdHours.String(), r.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// =============================================================================
// COMPLIANCE VIOLATION STORE
// =============================================================================

const violationColumns = `id, org_id, location_id, user_id, rule_id, violation_date, severity, details_json, is_silenced, silenced_by, silenced_at, silence_reason, created_at, updated_at`

func scanViolationRow(scan func(dest ...any) error) (*compliance.Violation, error) {
	var v compliance.Violation
	var date, detailsJSON, createdAt, updatedAt string
	var silencedBy, silencedAt sql.NullString
	err := scan(&v.ID, &v.OrgID, &v.LocationID, &v.UserID, &v.RuleID, &date, &v.Severity, &detailsJSON, &v.IsSilenced, &silencedBy, &silencedAt, &v.SilenceReason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	v.Date = parseTime(date)
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	if silencedBy.Valid {
		uid := schedule.UserID(silencedBy.String)
		v.SilencedBy = &uid
	}
	v.SilencedAt = scanNullTime(silencedAt)
	if err := json.Unmarshal([]byte(detailsJSON), &v.Details); err != nil {
		return nil, fmt.Errorf("failed to decode violation details: %w", err)
	}
	return &v, nil
}

func (s *Store) GetViolation(ctx context.Context, id compliance.ViolationID) (*compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+violationColumns+` FROM compliance_violations WHERE id = ?`, id)
	v, err := scanViolationRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan violation: %w", err)
	}
	return v, nil
}

func (s *Store) UpsertViolation(ctx context.Context, v *compliance.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, err := json.Marshal(v.Details)
	if err != nil {
		return fmt.Errorf("failed to encode violation details: %w", err)
	}

	now := time.Now().UTC()
	if v.ID == "" {
		v.ID = compliance.ViolationID(schedule.NewID())
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	// On conflict only derived content is replaced; silencing fields and
	// the original row identity survive recomputation.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compliance_violations (`+violationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, rule_id, violation_date) DO UPDATE SET
			severity = excluded.severity,
			details_json = excluded.details_json,
			updated_at = excluded.updated_at`,
		v.ID, v.OrgID, v.LocationID, v.UserID, v.RuleID,
		fmtTime(v.Date), v.Severity, string(detailsJSON),
		v.IsSilenced, nil, nil, v.SilenceReason,
		fmtTime(v.CreatedAt), fmtTime(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert violation: %w", err)
	}

	// Reflect the stored row (existing ID and silencing) back to the caller.
	row := s.db.QueryRowContext(ctx, `
		SELECT `+violationColumns+` FROM compliance_violations
		WHERE user_id = ? AND rule_id = ? AND violation_date = ?`,
		v.UserID, v.RuleID, fmtTime(v.Date))
	stored, err := scanViolationRow(row.Scan)
	if err != nil {
		return fmt.Errorf("failed to read back violation: %w", err)
	}
	*v = *stored
	return nil
}

func (s *Store) queryViolations(ctx context.Context, query string, args ...any) ([]compliance.Violation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var out []compliance.Violation
	for rows.Next() {
		v, err := scanViolationRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *Store) ListViolationsByUser(ctx context.Context, userID schedule.UserID, from, to time.Time) ([]compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryViolations(ctx, `
		SELECT `+violationColumns+` FROM compliance_violations
		WHERE user_id = ? AND violation_date >= ? AND violation_date < ?
		ORDER BY violation_date ASC`,
		userID, fmtTime(from), fmtTime(to))
}

func (s *Store) ListViolationsByLocation(ctx context.Context, locationID schedule.LocationID, from, to time.Time) ([]compliance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryViolations(ctx, `
		SELECT `+violationColumns+` FROM compliance_violations
		WHERE location_id = ? AND violation_date >= ? AND violation_date < ?
		ORDER BY violation_date ASC`,
		locationID, fmtTime(from), fmtTime(to))
}

func (s *Store) SilenceViolation(ctx context.Context, id compliance.ViolationID, by schedule.UserID, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE compliance_violations
		SET is_silenced = 1, silenced_by = ?, silenced_at = ?, silence_reason = ?, updated_at = ?
		WHERE id = ?`,
		by, fmtTime(at), reason, fmtTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to silence violation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &schedule.NotFoundError{Entity: "violation", ID: string(id)}
	}
	return nil
}
