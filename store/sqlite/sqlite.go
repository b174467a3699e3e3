/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:

	Implements all persistence interfaces (Store, Directory, AuditLog) using
	SQLite. In production, the same patterns apply to PostgreSQL - only minor
	SQL dialect differences.

INTERFACES IMPLEMENTED:

	generic.Store:     Leave requests with compare-and-set transitions
	generic.Directory: Employee records
	generic.AuditLog:  Append-only history

COMPARE-AND-SET:

	Terminal transitions are a single guarded statement:

	  UPDATE leave_requests SET status = ?, decided_by = ?, decided_at = ?
	  WHERE id = ? AND status = 'Pending'

	  DELETE FROM leave_requests WHERE id = ? AND status = 'Pending'

	Zero affected rows means another caller won; the row is then re-read to
	tell NotFound from InvalidState. The guard lives in SQL so it also holds
	when several processes share the database file.

KEY TABLES:

	leave_requests: One row per request, removed on cancel
	employees:      Directory records
	audit_log:      Who did what to which leave (survives cancel)

TIME FORMAT:

	Timestamps are stored as fixed-width UTC text (nanosecond precision) so
	that string comparison in SQL matches time ordering. Dates are YYYY-MM-DD.

CONCURRENCY:

	Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
	database-level concurrency control handles this instead.

USAGE:

	store, err := sqlite.New("./data/leave.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	svc := timeoff.NewService(store, store, store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
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
	"github.com/warp/leave-engine/generic"
)

// timeLayout is fixed width so lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.Store     = (*Store)(nil)
	_ generic.Directory = (*Store)(nil)
	_ generic.AuditLog  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('Pending', 'Approved', 'Rejected')),
		created_at TEXT NOT NULL,
		decided_by TEXT,
		decided_at TEXT,
		CHECK (from_date <= to_date)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, from_date);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_range
		ON leave_requests(from_date, to_date);

	-- Sweep hot path: Pending rows by age
	CREATE INDEX IF NOT EXISTS idx_leave_requests_pending
		ON leave_requests(created_at) WHERE status = 'Pending';

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		department TEXT,
		manager_id TEXT,
		total_leaves INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department);

	-- Audit log is append-only and has no foreign key: cancelled requests
	-- are deleted but their history stays.
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		leave_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_leave
		ON audit_log(leave_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_log_employee
		ON audit_log(employee_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEAVE STORE (generic.Store interface)
// =============================================================================

const leaveColumns = `id, employee_id, from_date, to_date, reason, status, created_at, decided_by, decided_at`

// Insert adds a new request.
func (s *Store) Insert(ctx context.Context, req generic.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO leave_requests (` + leaveColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.EmployeeID,
		req.Range.Start.String(),
		req.Range.End.String(),
		req.Reason,
		req.Status,
		formatTime(req.CreatedAt),
		nullEmployee(req.DecidedBy),
		nullTime(req.DecidedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ValidationError{Field: "id", Message: "already exists"}
		}
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID.
func (s *Store) Get(ctx context.Context, id generic.LeaveID) (*generic.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(ctx, id)
}

func (s *Store) get(ctx context.Context, id generic.LeaveID) (*generic.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = ?`, id)
	req, err := scanLeave(row)
	if err == sql.ErrNoRows {
		return nil, generic.LeaveNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load leave request: %w", err)
	}
	return &req, nil
}

// TransitionPending is the guarded UPDATE.
func (s *Store) TransitionPending(ctx context.Context, id generic.LeaveID, to generic.Status, decidedBy generic.EmployeeID, at time.Time) (*generic.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = ?`,
		to, decidedBy, formatTime(at), id, generic.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to transition leave request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, &generic.InvalidStateError{LeaveID: id, Status: current.Status}
	}
	return current, nil
}

// DeletePending is the guarded DELETE.
func (s *Store) DeletePending(ctx context.Context, id generic.LeaveID) (*generic.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsPending() {
		return nil, &generic.InvalidStateError{LeaveID: id, Status: current.Status}
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM leave_requests WHERE id = ? AND status = ?`,
		id, generic.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete leave request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost to another process between the read and the delete.
		after, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &generic.InvalidStateError{LeaveID: id, Status: after.Status}
	}
	return current, nil
}

// List returns requests matching the filter ordered by from_date, created_at.
func (s *Store) List(ctx context.Context, filter generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	if filter.EmployeeIDs != nil && len(filter.EmployeeIDs) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if len(filter.EmployeeIDs) > 0 {
		where = append(where, "employee_id IN ("+placeholders(len(filter.EmployeeIDs))+")")
		for _, id := range filter.EmployeeIDs {
			args = append(args, id)
		}
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}
	if filter.Overlapping != nil {
		where = append(where, "from_date <= ? AND to_date >= ?")
		args = append(args, filter.Overlapping.End.String(), filter.Overlapping.Start.String())
	}

	query := `SELECT ` + leaveColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY from_date, created_at, id"

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLeaves(ctx, query, args...)
}

// ListExpiredPending returns Pending requests created at or before cutoff.
func (s *Store) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]generic.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLeaves(ctx,
		`SELECT `+leaveColumns+` FROM leave_requests
		 WHERE status = ? AND created_at <= ?
		 ORDER BY created_at, id`,
		generic.StatusPending, formatTime(cutoff),
	)
}

func (s *Store) queryLeaves(ctx context.Context, query string, args ...any) ([]generic.LeaveRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var leaves []generic.LeaveRequest
	for rows.Next() {
		req, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, req)
	}
	return leaves, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLeave(row scanner) (generic.LeaveRequest, error) {
	var (
		req                  generic.LeaveRequest
		from, to, createdAt  string
		decidedBy, decidedAt sql.NullString
	)
	if err := row.Scan(&req.ID, &req.EmployeeID, &from, &to, &req.Reason, &req.Status, &createdAt, &decidedBy, &decidedAt); err != nil {
		return req, err
	}

	var err error
	if req.Range.Start, err = generic.ParseDate(from); err != nil {
		return req, err
	}
	if req.Range.End, err = generic.ParseDate(to); err != nil {
		return req, err
	}
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return req, err
	}
	if decidedBy.Valid {
		by := generic.EmployeeID(decidedBy.String)
		req.DecidedBy = &by
	}
	if decidedAt.Valid {
		at, err := parseTime(decidedAt.String)
		if err != nil {
			return req, err
		}
		req.DecidedAt = &at
	}
	return req, nil
}

// =============================================================================
// DIRECTORY (generic.Directory interface)
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	if emp.ID == "" {
		return &generic.ValidationError{Field: "id", Message: "is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, role, department, manager_id, total_leaves, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			department = excluded.department,
			manager_id = excluded.manager_id,
			total_leaves = excluded.total_leaves
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, nullString(emp.Email), emp.Role,
		nullString(emp.Department), nullString(string(emp.ManagerID)), emp.TotalLeaves,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, department, manager_id, total_leaves FROM employees WHERE id = ?",
		id,
	)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, generic.EmployeeNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, department, manager_id, total_leaves FROM employees ORDER BY name COLLATE NOCASE, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []generic.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func scanEmployee(row scanner) (generic.Employee, error) {
	var (
		emp                          generic.Employee
		email, department, managerID sql.NullString
	)
	err := row.Scan(&emp.ID, &emp.Name, &email, &emp.Role, &department, &managerID, &emp.TotalLeaves)
	emp.Email = email.String
	emp.Department = department.String
	emp.ManagerID = generic.EmployeeID(managerID.String)
	return emp, err
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// AppendAudit adds an entry. Entries are never updated or deleted.
func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload sql.NullString
	if len(entry.Payload) > 0 {
		b, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, leave_id, employee_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, formatTime(entry.Timestamp), entry.ActorID, entry.Action,
		entry.LeaveID, entry.EmployeeID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns matching entries oldest first.
func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.LeaveID != nil {
		where = append(where, "leave_id = ?")
		args = append(args, *filter.LeaveID)
	}
	if filter.EmployeeID != nil {
		where = append(where, "employee_id = ?")
		args = append(args, *filter.EmployeeID)
	}
	if filter.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *filter.ActorID)
	}
	if len(filter.Actions) > 0 {
		where = append(where, "action IN ("+placeholders(len(filter.Actions))+")")
		for _, a := range filter.Actions {
			args = append(args, a)
		}
	}
	if filter.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(*filter.To))
	}

	query := "SELECT id, timestamp, actor_id, action, leave_id, employee_id, payload_json FROM audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp, rowid"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []generic.AuditEntry
	for rows.Next() {
		var (
			e         generic.AuditEntry
			timestamp string
			payload   sql.NullString
		)
		if err := rows.Scan(&e.ID, &timestamp, &e.ActorID, &e.Action, &e.LeaveID, &e.EmployeeID, &payload); err != nil {
			return nil, err
		}
		if e.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Used when loading demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"leave_requests", "audit_log", "employees"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullEmployee(id *generic.EmployeeID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
