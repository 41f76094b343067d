package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tg-modbot/internal/crash"
	"tg-modbot/internal/logger"
	"tg-modbot/internal/models"
)

var (
	ErrDuplicateJob = errors.New("scheduler: job id already scheduled")
	ErrNotStarted   = errors.New("scheduler: not started")
	ErrStarted      = errors.New("scheduler: already started")
)

// Job is a one-shot expiry task for a poll
type Job struct {
	ID     string
	PollID string
	RunAt  time.Time
}

// Handler runs when a job fires. missed is true when the job is being
// recovered after its fire time passed without an armed timer.
type Handler func(ctx context.Context, job Job, missed bool)

type Options struct {
	// SweepInterval is how often persisted jobs are checked for missed fires
	SweepInterval time.Duration
	// MissedGrace is how far past RunAt an unarmed job must be to count as missed
	MissedGrace time.Duration
}

type entry struct {
	job   Job
	timer Timer
}

// Scheduler runs each job at most once. Jobs are persisted through a JobStore
// and re-armed or recovered on Start.
type Scheduler struct {
	clock Clock
	store JobStore
	opts  Options

	mu      sync.Mutex
	entries map[string]*entry
	// settling holds ids that left entries but whose persisted row is still being removed
	settling map[string]struct{}
	// removed maps canceled or fired ids to the removal sequence that dropped
	// their row, so a ListJobs snapshot taken earlier cannot revive them
	removed    map[string]uint64
	removals   uint64
	handler    Handler
	baseCtx    context.Context
	cancelBase context.CancelFunc
	started    bool
	sweepTimer Timer

	running sync.WaitGroup
}

func New(store JobStore, clock Clock, opts Options) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.MissedGrace < 0 {
		opts.MissedGrace = 0
	}
	return &Scheduler{
		clock:    clock,
		store:    store,
		opts:     opts,
		entries:  make(map[string]*entry),
		settling: make(map[string]struct{}),
		removed:  make(map[string]uint64),
	}
}

// Start installs the handler, recovers persisted jobs and starts the missed-job sweep.
// Missed jobs found at startup are handled before Start returns.
func (s *Scheduler) Start(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	s.handler = handler
	s.baseCtx, s.cancelBase = context.WithCancel(context.WithoutCancel(ctx))
	since := s.removals
	s.mu.Unlock()

	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	armed, missed := s.reconcile(jobs, since)
	logger.Infof("Scheduler started: %d jobs re-armed, %d missed", armed, missed)

	s.mu.Lock()
	if s.started {
		s.sweepTimer = s.clock.AfterFunc(s.opts.SweepInterval, s.sweep)
	}
	s.mu.Unlock()
	return nil
}

// Stop disarms every timer and waits for running handlers. Persisted jobs are
// left in the store for the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	for _, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.entries = make(map[string]*entry)
	if s.sweepTimer != nil {
		s.sweepTimer.Stop()
		s.sweepTimer = nil
	}
	cancel := s.cancelBase
	s.mu.Unlock()

	s.running.Wait()
	if cancel != nil {
		cancel()
	}
}

// Schedule persists job and arms a timer for job.RunAt
func (s *Scheduler) Schedule(ctx context.Context, job Job) error {
	if job.ID == "" {
		return fmt.Errorf("scheduler: empty job id")
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if _, ok := s.entries[job.ID]; ok {
		s.mu.Unlock()
		return ErrDuplicateJob
	}
	// reserve the id; a Cancel racing the save removes the reservation
	reserved := &entry{job: job}
	s.entries[job.ID] = reserved
	s.mu.Unlock()

	err := s.store.SaveJob(ctx, &models.ScheduledJob{
		JobID:  job.ID,
		PollID: job.PollID,
		RunAt:  job.RunAt,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.entries[job.ID] == reserved {
			delete(s.entries, job.ID)
		}
		return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
	}
	if s.entries[job.ID] != reserved || !s.started {
		// canceled or stopped while saving
		return nil
	}
	s.arm(reserved)
	logger.Debugf("Scheduled job %s for poll %s at %s", job.ID, job.PollID, job.RunAt.Format(time.RFC3339))
	return nil
}

// Cancel removes a job. Unknown or already fired ids are not an error.
func (s *Scheduler) Cancel(ctx context.Context, jobID string) error {
	s.mu.Lock()
	if e, ok := s.entries[jobID]; ok {
		delete(s.entries, jobID)
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.settling[jobID] = struct{}{}
	s.mu.Unlock()

	err := s.store.DeleteJob(ctx, jobID)

	s.mu.Lock()
	s.forget(jobID)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}

// Pending returns the number of armed jobs
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// arm must be called with s.mu held
func (s *Scheduler) arm(e *entry) {
	delay := e.job.RunAt.Sub(s.clock.Now())
	id := e.job.ID
	e.timer = s.clock.AfterFunc(delay, func() { s.fire(id, false) })
}

// forget must be called with s.mu held, after the persisted row was deleted
func (s *Scheduler) forget(jobID string) {
	delete(s.settling, jobID)
	s.removals++
	s.removed[jobID] = s.removals
}

func (s *Scheduler) fire(jobID string, missed bool) {
	s.mu.Lock()
	e, ok := s.entries[jobID]
	if !ok || !s.started {
		s.mu.Unlock()
		return
	}
	delete(s.entries, jobID)
	s.settling[jobID] = struct{}{}
	s.running.Add(1)
	ctx, handler := s.baseCtx, s.handler
	s.mu.Unlock()

	defer s.running.Done()

	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		logger.Warningf("Error removing fired job %s from store: %v", jobID, err)
	}
	s.mu.Lock()
	s.forget(jobID)
	s.mu.Unlock()

	if missed {
		logger.Warningf("Recovering missed job %s (due %s)", jobID, e.job.RunAt.Format(time.RFC3339))
	}

	_ = crash.Capture("scheduler-job-"+jobID, func() {
		handler(ctx, e.job, missed)
	})
}

// reconcile arms future jobs and fires missed ones; it returns both counts.
// jobs must have been listed after the removal sequence reached since.
func (s *Scheduler) reconcile(jobs []models.ScheduledJob, since uint64) (int, int) {
	cutoff := s.clock.Now().Add(-s.opts.MissedGrace)
	var missed []string
	armed := 0

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return 0, 0
	}
	for _, pj := range jobs {
		if _, ok := s.entries[pj.JobID]; ok {
			continue
		}
		if _, ok := s.settling[pj.JobID]; ok {
			continue
		}
		if _, ok := s.removed[pj.JobID]; ok {
			continue
		}
		e := &entry{job: Job{ID: pj.JobID, PollID: pj.PollID, RunAt: pj.RunAt}}
		s.entries[pj.JobID] = e
		if pj.RunAt.Before(cutoff) {
			missed = append(missed, pj.JobID)
			continue
		}
		s.arm(e)
		armed++
	}
	// rows removed before the snapshot was taken cannot appear in a later one
	for id, seq := range s.removed {
		if seq <= since {
			delete(s.removed, id)
		}
	}
	s.mu.Unlock()

	for _, id := range missed {
		s.fire(id, true)
	}
	return armed, len(missed)
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	ctx := s.baseCtx
	since := s.removals
	s.mu.Unlock()

	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		logger.Warningf("Missed-job sweep failed to list jobs: %v", err)
	} else if armed, missed := s.reconcile(jobs, since); armed+missed > 0 {
		logger.Infof("Missed-job sweep: %d re-armed, %d recovered", armed, missed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.sweepTimer = s.clock.AfterFunc(s.opts.SweepInterval, s.sweep)
	}
}
