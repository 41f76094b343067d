package scheduler

import (
	"context"
	"sort"
	"sync"

	"tg-modbot/internal/models"
)

// JobStore persists scheduled jobs so they survive a restart
type JobStore interface {
	SaveJob(ctx context.Context, job *models.ScheduledJob) error
	// DeleteJob must not fail for unknown ids
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context) ([]models.ScheduledJob, error)
}

// MemoryJobStore keeps jobs in a map. Nothing survives the process.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.ScheduledJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]models.ScheduledJob)}
}

func (m *MemoryJobStore) SaveJob(_ context.Context, job *models.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = *job
	return nil
}

func (m *MemoryJobStore) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *MemoryJobStore) ListJobs(_ context.Context) ([]models.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]models.ScheduledJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].RunAt.Before(jobs[k].RunAt) })
	return jobs, nil
}
