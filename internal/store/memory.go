package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buemura/scanhub/pkg/types"
	"github.com/jonboulle/clockwork"
)

// Memory is an in-process Store. Records live in id-keyed arenas with
// secondary indexes; every access holds mu, and reads return copies.
type Memory struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	users      map[int64]*types.User
	byUsername map[string]int64

	jobs    map[int64]*types.ScanJob
	byOwner map[int64][]int64

	vulns  map[int64][]types.Vulnerability
	nextID struct{ user, job, vuln int64 }
}

// Option configures a store.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock sets the clock used to stamp creation times.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

func buildOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{
		clock:      o.clock,
		users:      make(map[int64]*types.User),
		byUsername: make(map[string]int64),
		jobs:       make(map[int64]*types.ScanJob),
		byOwner:    make(map[int64][]int64),
		vulns:      make(map[int64][]types.Vulnerability),
	}
}

func (m *Memory) CreateUser(_ context.Context, u NewUser) (*types.User, error) {
	if err := validateNewUser(u); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUsername[u.Username]; ok {
		return nil, fmt.Errorf("username %q: %w", u.Username, ErrConflict)
	}
	m.nextID.user++
	user := &types.User{
		ID:           m.nextID.user,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Email:        u.Email,
		FullName:     u.FullName,
		Company:      u.Company,
		CreatedAt:    m.clock.Now().UTC(),
	}
	m.users[user.ID] = user
	m.byUsername[user.Username] = user.ID

	out := *user
	return &out, nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	out := *user
	return &out, nil
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	m.mu.RLock()
	id, ok := m.byUsername[username]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return m.GetUser(ctx, id)
}

func (m *Memory) CreateJob(_ context.Context, ownerID *int64, targetURL string, scanType types.ScanType) (*types.ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ownerID != nil {
		if _, ok := m.users[*ownerID]; !ok {
			return nil, fmt.Errorf("owner %d: %w", *ownerID, ErrNotFound)
		}
	}

	m.nextID.job++
	job := &types.ScanJob{
		ID:        m.nextID.job,
		TargetURL: targetURL,
		ScanType:  scanType,
		Status:    types.StatusPending,
		StartTime: m.clock.Now().UTC(),
	}
	if ownerID != nil {
		owner := *ownerID
		job.OwnerID = &owner
		m.byOwner[owner] = append(m.byOwner[owner], job.ID)
	}
	m.jobs[job.ID] = job
	return job.Clone(), nil
}

func (m *Memory) GetJob(_ context.Context, id int64) (*types.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return job.Clone(), nil
}

func (m *Memory) UpdateJob(_ context.Context, id int64, u JobUpdate) (*types.ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	if err := applyUpdate(job, u); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

func (m *Memory) CompleteJob(_ context.Context, id int64, endTime time.Time, results *types.ScanResults, vulns []types.Vulnerability) (*types.ScanJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}

	// Apply to a scratch copy so nothing is visible until both halves succeed.
	next := *job
	if err := applyUpdate(&next, JobUpdate{Status: types.StatusCompleted, EndTime: &endTime, Results: results}); err != nil {
		return nil, err
	}
	created := make([]types.Vulnerability, 0, len(vulns))
	nextVulnID := m.nextID.vuln
	for _, v := range vulns {
		if !v.Severity.Valid() {
			return nil, fmt.Errorf("vulnerability %q: unknown severity %q", v.Type, v.Severity)
		}
		nextVulnID++
		v.ID = nextVulnID
		v.ScanID = id
		created = append(created, v)
	}

	*job = next
	m.nextID.vuln = nextVulnID
	m.vulns[id] = append(m.vulns[id], created...)
	return job.Clone(), nil
}

func (m *Memory) ListJobsByOwner(_ context.Context, ownerID int64) ([]*types.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byOwner[ownerID]
	out := make([]*types.ScanJob, 0, len(ids))
	for _, id := range ids {
		if job, ok := m.jobs[id]; ok {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (m *Memory) ListJobsByStatus(_ context.Context, statuses ...types.JobStatus) ([]*types.ScanJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[types.JobStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*types.ScanJob
	for id := int64(1); id <= m.nextID.job; id++ {
		if job, ok := m.jobs[id]; ok && want[job.Status] {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (m *Memory) DeleteTerminalJobsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := make(map[int64]bool)
	for id, job := range m.jobs {
		if job.Status.IsTerminal() && job.EndTime != nil && job.EndTime.Before(cutoff) {
			evicted[id] = true
			delete(m.jobs, id)
			delete(m.vulns, id)
		}
	}
	if len(evicted) == 0 {
		return 0, nil
	}
	for owner, ids := range m.byOwner {
		kept := ids[:0]
		for _, id := range ids {
			if !evicted[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(m.byOwner, owner)
		} else {
			m.byOwner[owner] = kept
		}
	}
	return len(evicted), nil
}

func (m *Memory) CreateVulnerability(_ context.Context, scanID int64, v types.Vulnerability) (*types.Vulnerability, error) {
	if !v.Severity.Valid() {
		return nil, fmt.Errorf("vulnerability %q: unknown severity %q", v.Type, v.Severity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[scanID]; !ok {
		return nil, fmt.Errorf("job %d: %w", scanID, ErrNotFound)
	}
	m.nextID.vuln++
	v.ID = m.nextID.vuln
	v.ScanID = scanID
	m.vulns[scanID] = append(m.vulns[scanID], v)
	return &v, nil
}

func (m *Memory) ListVulnerabilitiesByJob(_ context.Context, scanID int64) ([]types.Vulnerability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.vulns[scanID]
	out := make([]types.Vulnerability, len(src))
	copy(out, src)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
