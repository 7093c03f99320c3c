package types

import (
	"fmt"
	"time"
)

// ScanType selects how thorough a scan is.
type ScanType string

const (
	ScanTypeQuick ScanType = "quick"
	ScanTypeDeep  ScanType = "deep"
)

// ParseScanType validates raw against the known scan types.
func ParseScanType(raw string) (ScanType, error) {
	switch st := ScanType(raw); st {
	case ScanTypeQuick, ScanTypeDeep:
		return st, nil
	default:
		return "", fmt.Errorf("scan type must be one of %q or %q, got %q", ScanTypeQuick, ScanTypeDeep, raw)
	}
}

// JobStatus represents the current state of a scan job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next follows the job state machine.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusFailed
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ScanJob is a single scan request and its lifecycle state.
//
// Only Status, EndTime and Results change after creation. Results is set iff
// Status is completed; EndTime is set iff Status is terminal.
type ScanJob struct {
	ID        int64        `json:"id"`
	OwnerID   *int64       `json:"ownerId"`
	TargetURL string       `json:"targetUrl"`
	ScanType  ScanType     `json:"scanType"`
	Status    JobStatus    `json:"status"`
	StartTime time.Time    `json:"startTime"`
	EndTime   *time.Time   `json:"endTime"`
	Results   *ScanResults `json:"results"`
}

// OwnedBy reports whether the job belongs to userID.
func (j *ScanJob) OwnedBy(userID int64) bool {
	return j.OwnerID != nil && *j.OwnerID == userID
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (j *ScanJob) Clone() *ScanJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.OwnerID != nil {
		owner := *j.OwnerID
		c.OwnerID = &owner
	}
	if j.EndTime != nil {
		end := *j.EndTime
		c.EndTime = &end
	}
	c.Results = j.Results.Clone()
	return &c
}

// Vulnerability is a normalized finding persisted for an owned job.
type Vulnerability struct {
	ID          int64                `json:"id"`
	ScanID      int64                `json:"scanId"`
	Type        string               `json:"type"`
	Severity    Severity             `json:"severity"`
	Description string               `json:"description"`
	Location    string               `json:"location"`
	Details     VulnerabilityDetails `json:"details"`
}

// User is an account that can own scan jobs.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName,omitempty"`
	Company      string    `json:"company,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
