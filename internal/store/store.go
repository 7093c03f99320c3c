// Package store persists users, scan jobs and vulnerabilities.
//
// Two implementations share the Store contract: an in-memory store for a
// single process and a SQLite store that survives restarts. Both apply job
// mutations through the same transition rules so a reader never observes a
// half-written job.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buemura/scanhub/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition is returned when an update breaks the job state machine.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// NewUser holds the fields supplied when registering a user.
type NewUser struct {
	Username     string
	PasswordHash string
	Email        string
	FullName     string
	Company      string
}

// JobUpdate carries the mutable fields of a job. Zero fields are left as is.
type JobUpdate struct {
	Status  types.JobStatus
	EndTime *time.Time
	Results *types.ScanResults
}

// Store is the persistence contract used by the lifecycle manager and the API.
type Store interface {
	CreateUser(ctx context.Context, u NewUser) (*types.User, error)
	GetUser(ctx context.Context, id int64) (*types.User, error)
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)

	CreateJob(ctx context.Context, ownerID *int64, targetURL string, scanType types.ScanType) (*types.ScanJob, error)
	GetJob(ctx context.Context, id int64) (*types.ScanJob, error)
	UpdateJob(ctx context.Context, id int64, u JobUpdate) (*types.ScanJob, error)
	// CompleteJob attaches results and persists vulns as one unit.
	CompleteJob(ctx context.Context, id int64, endTime time.Time, results *types.ScanResults, vulns []types.Vulnerability) (*types.ScanJob, error)
	ListJobsByOwner(ctx context.Context, ownerID int64) ([]*types.ScanJob, error)
	ListJobsByStatus(ctx context.Context, statuses ...types.JobStatus) ([]*types.ScanJob, error)
	// DeleteTerminalJobsBefore evicts completed/failed jobs that ended before cutoff.
	DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int, error)

	CreateVulnerability(ctx context.Context, scanID int64, v types.Vulnerability) (*types.Vulnerability, error)
	ListVulnerabilitiesByJob(ctx context.Context, scanID int64) ([]types.Vulnerability, error)

	Close() error
}

// applyUpdate merges u into job, enforcing the state machine and the
// status/endTime/results invariants. job is left untouched on error.
func applyUpdate(job *types.ScanJob, u JobUpdate) error {
	if job.Status.IsTerminal() {
		return fmt.Errorf("%w: job %d is already %s", ErrInvalidTransition, job.ID, job.Status)
	}

	next := *job
	if u.Status != "" && u.Status != job.Status {
		if !job.Status.CanTransition(u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, u.Status)
		}
		next.Status = u.Status
	}
	if u.EndTime != nil {
		end := *u.EndTime
		next.EndTime = &end
	}
	if u.Results != nil {
		next.Results = u.Results.Clone()
	}

	if (next.Results != nil) != (next.Status == types.StatusCompleted) {
		return fmt.Errorf("%w: results must be set exactly when status is completed", ErrInvalidTransition)
	}
	if (next.EndTime != nil) != next.Status.IsTerminal() {
		return fmt.Errorf("%w: end time must be set exactly when status is terminal", ErrInvalidTransition)
	}

	*job = next
	return nil
}

func validateNewUser(u NewUser) error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
