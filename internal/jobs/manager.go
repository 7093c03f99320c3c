// Package jobs drives scan jobs through their lifecycle.
//
// A submitted job is stored as pending and handed to two timers: after the
// dispatch delay it moves to in_progress, and after the scan type's duration
// the scanner runs and the job is completed (or failed) in one store commit.
// Execution errors never reach the submitter; they are absorbed into the
// job's status.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buemura/scanhub/internal/scanner"
	"github.com/buemura/scanhub/internal/store"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDispatchDelay models queueing latency before a job starts.
	DefaultDispatchDelay = 500 * time.Millisecond

	phaseTimeout = 30 * time.Second
)

// Manager manages scan job lifecycle: create, schedule, execute, store results.
type Manager struct {
	store         store.Store
	registry      *scanner.Registry
	scanner       scanner.Scanner
	clock         clockwork.Clock
	log           logrus.FieldLogger
	dispatchDelay time.Duration

	mu     sync.Mutex
	timers map[int64]clockwork.Timer
	closed bool
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock driving the dispatch and execution delays.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

// WithDispatchDelay sets the delay between submission and in_progress.
func WithDispatchDelay(d time.Duration) Option {
	return func(m *Manager) { m.dispatchDelay = d }
}

// NewManager creates a job manager backed by st. Profiles for each scan type
// come from reg; sc produces the findings.
func NewManager(st store.Store, reg *scanner.Registry, sc scanner.Scanner, opts ...Option) *Manager {
	m := &Manager{
		store:         st,
		registry:      reg,
		scanner:       sc,
		clock:         clockwork.NewRealClock(),
		log:           logrus.StandardLogger(),
		dispatchDelay: DefaultDispatchDelay,
		timers:        make(map[int64]clockwork.Timer),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit validates the request, stores a pending job and schedules its
// execution. It returns without waiting for the scan.
func (m *Manager) Submit(ctx context.Context, ownerID *int64, targetURL, scanType string) (*types.ScanJob, error) {
	target, st, err := m.validate(targetURL, scanType)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	job, err := m.store.CreateJob(ctx, ownerID, target.URL, st)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	log := m.jobLogger(job)
	log.Info("scan job submitted")

	if !m.schedule(job.ID, m.dispatchDelay, m.dispatch) {
		m.fail(job.ID, ErrClosed)
	}
	return job, nil
}

func (m *Manager) validate(targetURL, scanType string) (types.Target, types.ScanType, error) {
	verr := &ValidationError{}

	target, err := types.ParseTarget(targetURL)
	if err != nil {
		verr.add("targetUrl", "Must be a valid URL: "+err.Error())
	}

	st, err := types.ParseScanType(scanType)
	if err != nil {
		verr.add("scanType", err.Error())
	} else if _, err := m.registry.Get(st); err != nil {
		verr.add("scanType", err.Error())
	}

	if len(verr.Fields) > 0 {
		return types.Target{}, "", verr
	}
	return target, st, nil
}

// schedule runs phase for jobID after d. It reports false once the manager
// is closed.
func (m *Manager) schedule(jobID int64, d time.Duration, phase func(jobID int64)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.wg.Add(1)
	m.timers[jobID] = m.clock.AfterFunc(d, func() {
		defer m.wg.Done()

		m.mu.Lock()
		delete(m.timers, jobID)
		m.mu.Unlock()

		m.runPhase(jobID, phase)
	})
	return true
}

func (m *Manager) runPhase(jobID int64, phase func(jobID int64)) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(jobID, fmt.Errorf("panic: %v", r))
		}
	}()
	phase(jobID)
}

// dispatch moves a pending job to in_progress and schedules its execution.
func (m *Manager) dispatch(jobID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), phaseTimeout)
	defer cancel()

	job, err := m.store.UpdateJob(ctx, jobID, store.JobUpdate{Status: types.StatusInProgress})
	if err != nil {
		m.handleUpdateError(jobID, "dispatch", err)
		return
	}

	profile, err := m.registry.Get(job.ScanType)
	if err != nil {
		m.fail(jobID, err)
		return
	}

	m.jobLogger(job).Debug("scan job started")
	if !m.schedule(jobID, profile.Duration, func(int64) { m.execute(job, profile) }) {
		m.fail(jobID, ErrClosed)
	}
}

// execute runs the scan and commits results and vulnerabilities together.
func (m *Manager) execute(job *types.ScanJob, profile scanner.Profile) {
	ctx, cancel := context.WithTimeout(context.Background(), phaseTimeout)
	defer cancel()

	target, err := types.ParseTarget(job.TargetURL)
	if err != nil {
		m.fail(job.ID, err)
		return
	}

	findings, err := m.scanner.Scan(ctx, target, profile)
	if err != nil {
		m.fail(job.ID, fmt.Errorf("scan: %w", err))
		return
	}

	completedAt := m.clock.Now().UTC()
	results, err := types.NewScanResults(job.TargetURL, job.ScanType, completedAt, findings)
	if err != nil {
		m.fail(job.ID, fmt.Errorf("build results: %w", err))
		return
	}

	// Anonymous jobs carry their findings only inside results.
	var vulns []types.Vulnerability
	if job.OwnerID != nil {
		vulns = make([]types.Vulnerability, len(findings))
		for i, f := range findings {
			vulns[i] = f.Vulnerability(job.ID)
		}
	}

	done, err := m.store.CompleteJob(ctx, job.ID, completedAt, results, vulns)
	if err != nil {
		m.handleUpdateError(job.ID, "complete", err)
		return
	}
	m.jobLogger(done).WithField("vulnerabilities", results.Summary.TotalVulnerabilities).Info("scan job completed")
}

func (m *Manager) handleUpdateError(jobID int64, phase string, err error) {
	log := m.log.WithFields(logrus.Fields{"job_id": jobID, "phase": phase})
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Jobs are never evicted while active, so this is an invariant violation.
		log.WithError(err).Warn("scan job vanished during execution")
	case errors.Is(err, store.ErrInvalidTransition):
		log.WithError(err).Warn("scan job already advanced")
	default:
		m.fail(jobID, err)
	}
}

// fail drives a job to failed. Errors are logged, never returned.
func (m *Manager) fail(jobID int64, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), phaseTimeout)
	defer cancel()

	log := m.log.WithField("job_id", jobID)
	end := m.clock.Now().UTC()
	if _, err := m.store.UpdateJob(ctx, jobID, store.JobUpdate{Status: types.StatusFailed, EndTime: &end}); err != nil {
		log.WithError(err).WithField("cause", cause.Error()).Error("could not mark scan job failed")
		return
	}
	log.WithError(cause).Warn("scan job failed")
}

// RecoverOrphans fails jobs left pending or in_progress by a previous
// process; no timer exists for them any more.
func (m *Manager) RecoverOrphans(ctx context.Context) (int, error) {
	orphans, err := m.store.ListJobsByStatus(ctx, types.StatusPending, types.StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("list orphaned jobs: %w", err)
	}

	m.mu.Lock()
	owned := make(map[int64]bool, len(m.timers))
	for id := range m.timers {
		owned[id] = true
	}
	m.mu.Unlock()

	n := 0
	for _, job := range orphans {
		if owned[job.ID] {
			continue
		}
		m.fail(job.ID, errors.New("orphaned by restart"))
		n++
	}
	return n, nil
}

// Close stops accepting submissions, cancels jobs still waiting on a timer
// (they are marked failed), and waits for running phases to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.wg.Wait()
		return
	}
	m.closed = true
	close(m.stopCh)

	var stopped []int64
	for id, t := range m.timers {
		if t.Stop() {
			stopped = append(stopped, id)
			m.wg.Done()
		}
		delete(m.timers, id)
	}
	m.mu.Unlock()

	for _, id := range stopped {
		m.fail(id, ErrClosed)
	}
	m.wg.Wait()
}

func (m *Manager) jobLogger(job *types.ScanJob) logrus.FieldLogger {
	fields := logrus.Fields{
		"job_id":    job.ID,
		"scan_type": job.ScanType,
		"status":    job.Status,
	}
	if job.OwnerID != nil {
		fields["owner_id"] = *job.OwnerID
	}
	return m.log.WithFields(fields)
}
