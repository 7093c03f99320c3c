package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buemura/scanhub/pkg/types"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	DB    *sql.DB
	clock clockwork.Clock
}

// NewSQLite opens (creating if needed) the database at dbPath and migrates it.
func NewSQLite(dbPath string, opts ...Option) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps transactions serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	o := buildOptions(opts)
	s := &SQLite{DB: db, clock: o.clock}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

func (s *SQLite) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			full_name TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER REFERENCES users(id),
			target_url TEXT NOT NULL,
			scan_type TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			results TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scans_user ON scans(user_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);`,
		`CREATE TABLE IF NOT EXISTS vulnerabilities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			location TEXT NOT NULL,
			details TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_vulnerabilities_scan ON vulnerabilities(scan_id, id);`,
	}
	for _, stmt := range schema {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const userColumns = `id, username, password_hash, email, full_name, company, created_at`

func (s *SQLite) CreateUser(ctx context.Context, u NewUser) (*types.User, error) {
	if err := validateNewUser(u); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, u.Username).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("username %q: %w", u.Username, ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	createdAt := s.clock.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, email, full_name, company, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.Email, u.FullName, u.Company, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", u.Username, ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &types.User{
		ID:           id,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Email:        u.Email,
		FullName:     u.FullName,
		Company:      u.Company,
		CreatedAt:    createdAt,
	}, nil
}

func (s *SQLite) GetUser(ctx context.Context, id int64) (*types.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return user, err
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return user, err
}

const jobColumns = `id, user_id, target_url, scan_type, status, start_time, end_time, results`

func (s *SQLite) CreateJob(ctx context.Context, ownerID *int64, targetURL string, scanType types.ScanType) (*types.ScanJob, error) {
	if ownerID != nil {
		if _, err := s.GetUser(ctx, *ownerID); err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
	}

	job := &types.ScanJob{
		TargetURL: targetURL,
		ScanType:  scanType,
		Status:    types.StatusPending,
		StartTime: s.clock.Now().UTC(),
	}
	var owner sql.NullInt64
	if ownerID != nil {
		owner = sql.NullInt64{Int64: *ownerID, Valid: true}
		id := *ownerID
		job.OwnerID = &id
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO scans (user_id, target_url, scan_type, status, start_time) VALUES (?, ?, ?, ?, ?)`,
		owner, targetURL, string(scanType), string(job.Status), job.StartTime,
	)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if job.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLite) GetJob(ctx context.Context, id int64) (*types.ScanJob, error) {
	return getJob(ctx, s.DB, id)
}

func (s *SQLite) UpdateJob(ctx context.Context, id int64, u JobUpdate) (*types.ScanJob, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	job, err := s.updateJobTx(ctx, tx, id, u)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

// updateJobTx applies u as a compare-and-set on the job's previous status.
func (s *SQLite) updateJobTx(ctx context.Context, tx *sql.Tx, id int64, u JobUpdate) (*types.ScanJob, error) {
	job, err := getJob(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	prev := job.Status
	if err := applyUpdate(job, u); err != nil {
		return nil, err
	}

	var results sql.NullString
	if job.Results != nil {
		raw, err := json.Marshal(job.Results)
		if err != nil {
			return nil, fmt.Errorf("encode results: %w", err)
		}
		results = sql.NullString{String: string(raw), Valid: true}
	}
	var end sql.NullTime
	if job.EndTime != nil {
		end = sql.NullTime{Time: job.EndTime.UTC(), Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE scans SET status = ?, end_time = ?, results = ? WHERE id = ? AND status = ?`,
		string(job.Status), end, results, id, string(prev),
	)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: job %d changed concurrently", ErrInvalidTransition, id)
	}
	return job, nil
}

func (s *SQLite) CompleteJob(ctx context.Context, id int64, endTime time.Time, results *types.ScanResults, vulns []types.Vulnerability) (*types.ScanJob, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	job, err := s.updateJobTx(ctx, tx, id, JobUpdate{Status: types.StatusCompleted, EndTime: &endTime, Results: results})
	if err != nil {
		return nil, err
	}
	for _, v := range vulns {
		if _, err := insertVulnerability(ctx, tx, id, v); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLite) ListJobsByOwner(ctx context.Context, ownerID int64) ([]*types.ScanJob, error) {
	return queryJobs(ctx, s.DB, `SELECT `+jobColumns+` FROM scans WHERE user_id = ? ORDER BY id ASC`, ownerID)
}

func (s *SQLite) ListJobsByStatus(ctx context.Context, statuses ...types.JobStatus) ([]*types.ScanJob, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return queryJobs(ctx, s.DB, `SELECT `+jobColumns+` FROM scans WHERE status IN (`+placeholders+`) ORDER BY id ASC`, args...)
}

func (s *SQLite) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	jobs, err := queryJobs(ctx, tx, `SELECT `+jobColumns+` FROM scans WHERE status IN (?, ?)`,
		string(types.StatusCompleted), string(types.StatusFailed))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, job := range jobs {
		if job.EndTime == nil || !job.EndTime.Before(cutoff) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vulnerabilities WHERE scan_id = ?`, job.ID); err != nil {
			return 0, fmt.Errorf("delete vulnerabilities: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, job.ID); err != nil {
			return 0, fmt.Errorf("delete job: %w", err)
		}
		deleted++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *SQLite) CreateVulnerability(ctx context.Context, scanID int64, v types.Vulnerability) (*types.Vulnerability, error) {
	if _, err := s.GetJob(ctx, scanID); err != nil {
		return nil, err
	}
	return insertVulnerability(ctx, s.DB, scanID, v)
}

func (s *SQLite) ListVulnerabilitiesByJob(ctx context.Context, scanID int64) ([]types.Vulnerability, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, scan_id, type, severity, description, location, details FROM vulnerabilities WHERE scan_id = ? ORDER BY id ASC`,
		scanID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vulns := []types.Vulnerability{}
	for rows.Next() {
		var v types.Vulnerability
		var severity, details string
		if err := rows.Scan(&v.ID, &v.ScanID, &v.Type, &severity, &v.Description, &v.Location, &details); err != nil {
			return nil, err
		}
		v.Severity = types.Severity(severity)
		if err := json.Unmarshal([]byte(details), &v.Details); err != nil {
			return nil, fmt.Errorf("decode details of vulnerability %d: %w", v.ID, err)
		}
		vulns = append(vulns, v)
	}
	return vulns, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func insertVulnerability(ctx context.Context, q queryer, scanID int64, v types.Vulnerability) (*types.Vulnerability, error) {
	if !v.Severity.Valid() {
		return nil, fmt.Errorf("vulnerability %q: unknown severity %q", v.Type, v.Severity)
	}
	details, err := json.Marshal(v.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO vulnerabilities (scan_id, type, severity, description, location, details) VALUES (?, ?, ?, ?, ?, ?)`,
		scanID, v.Type, string(v.Severity), v.Description, v.Location, string(details),
	)
	if err != nil {
		return nil, fmt.Errorf("create vulnerability: %w", err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	v.ScanID = scanID
	return &v, nil
}

func getJob(ctx context.Context, q queryer, id int64) (*types.ScanJob, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scans WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return job, err
}

func queryJobs(ctx context.Context, q queryer, query string, args ...interface{}) ([]*types.ScanJob, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*types.ScanJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*types.ScanJob, error) {
	var job types.ScanJob
	var owner sql.NullInt64
	var scanType, status string
	var end sql.NullTime
	var results sql.NullString
	if err := row.Scan(&job.ID, &owner, &job.TargetURL, &scanType, &status, &job.StartTime, &end, &results); err != nil {
		return nil, err
	}
	job.ScanType = types.ScanType(scanType)
	job.Status = types.JobStatus(status)
	job.StartTime = job.StartTime.UTC()
	if owner.Valid {
		id := owner.Int64
		job.OwnerID = &id
	}
	if end.Valid {
		t := end.Time.UTC()
		job.EndTime = &t
	}
	if results.Valid {
		var r types.ScanResults
		if err := json.Unmarshal([]byte(results.String), &r); err != nil {
			return nil, fmt.Errorf("decode results of job %d: %w", job.ID, err)
		}
		job.Results = &r
	}
	return &job, nil
}

func scanUser(row rowScanner) (*types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FullName, &u.Company, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
