package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tg-modbot/internal/models"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fired struct {
	job    Job
	missed bool
}

type recorder struct {
	mu    sync.Mutex
	calls []fired
}

func (r *recorder) handle(_ context.Context, job Job, missed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fired{job: job, missed: missed})
}

func (r *recorder) snapshot() []fired {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fired(nil), r.calls...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *ManualClock, *MemoryJobStore, *recorder) {
	t.Helper()
	clock := NewManualClock(epoch)
	store := NewMemoryJobStore()
	s := New(store, clock, Options{SweepInterval: time.Minute, MissedGrace: 5 * time.Second})
	rec := &recorder{}
	require.NoError(t, s.Start(context.Background(), rec.handle))
	t.Cleanup(s.Stop)
	return s, clock, store, rec
}

func TestScheduleFiresOnceAtRunAt(t *testing.T) {
	s, clock, store, rec := newTestScheduler(t)
	ctx := context.Background()

	job := Job{ID: "job-1", PollID: "poll-1", RunAt: epoch.Add(60 * time.Second)}
	require.NoError(t, s.Schedule(ctx, job))
	assert.Equal(t, 1, s.Pending())

	persisted, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "poll-1", persisted[0].PollID)

	clock.Advance(59 * time.Second)
	assert.Empty(t, rec.snapshot())

	clock.Advance(time.Second)
	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, job, calls[0].job)
	assert.False(t, calls[0].missed)

	clock.Advance(10 * time.Minute)
	assert.Len(t, rec.snapshot(), 1)
	assert.Equal(t, 0, s.Pending())

	persisted, err = store.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestCancelPreventsFire(t *testing.T) {
	s, clock, store, rec := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, Job{ID: "job-1", PollID: "poll-1", RunAt: epoch.Add(time.Minute)}))
	require.NoError(t, s.Cancel(ctx, "job-1"))

	clock.Advance(2 * time.Minute)
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 0, s.Pending())

	persisted, err := store.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestCancelIsIdempotent(t *testing.T) {
	s, clock, _, rec := newTestScheduler(t)
	ctx := context.Background()

	assert.NoError(t, s.Cancel(ctx, "never-scheduled"))

	require.NoError(t, s.Schedule(ctx, Job{ID: "job-1", PollID: "poll-1", RunAt: epoch.Add(time.Second)}))
	clock.Advance(time.Second)
	require.Len(t, rec.snapshot(), 1)

	assert.NoError(t, s.Cancel(ctx, "job-1"))
	assert.NoError(t, s.Cancel(ctx, "job-1"))
}

func TestScheduleRejectsDuplicateID(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, Job{ID: "job-1", PollID: "a", RunAt: epoch.Add(time.Minute)}))
	err := s.Schedule(ctx, Job{ID: "job-1", PollID: "b", RunAt: epoch.Add(time.Minute)})
	assert.ErrorIs(t, err, ErrDuplicateJob)
}

func TestScheduleBeforeStart(t *testing.T) {
	s := New(NewMemoryJobStore(), NewManualClock(epoch), Options{})
	err := s.Schedule(context.Background(), Job{ID: "x", RunAt: epoch})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStartTwice(t *testing.T) {
	s, _, _, rec := newTestScheduler(t)
	assert.ErrorIs(t, s.Start(context.Background(), rec.handle), ErrStarted)
}

func TestStartRecoversPersistedJobs(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	store := NewMemoryJobStore()
	require.NoError(t, store.SaveJob(ctx, &models.ScheduledJob{JobID: "overdue", PollID: "p1", RunAt: epoch.Add(-time.Minute)}))
	require.NoError(t, store.SaveJob(ctx, &models.ScheduledJob{JobID: "within-grace", PollID: "p2", RunAt: epoch.Add(-time.Second)}))
	require.NoError(t, store.SaveJob(ctx, &models.ScheduledJob{JobID: "future", PollID: "p3", RunAt: epoch.Add(30 * time.Second)}))

	s := New(store, clock, Options{SweepInterval: time.Hour, MissedGrace: 5 * time.Second})
	rec := &recorder{}
	require.NoError(t, s.Start(ctx, rec.handle))
	defer s.Stop()

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "overdue", calls[0].job.ID)
	assert.Equal(t, "p1", calls[0].job.PollID)
	assert.True(t, calls[0].missed)
	assert.Equal(t, 2, s.Pending())

	clock.Advance(0)
	calls = rec.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "within-grace", calls[1].job.ID)
	assert.False(t, calls[1].missed)

	clock.Advance(30 * time.Second)
	calls = rec.snapshot()
	require.Len(t, calls, 3)
	assert.Equal(t, "future", calls[2].job.ID)
	assert.False(t, calls[2].missed)
}

func TestSweepRecoversUnarmedJob(t *testing.T) {
	s, clock, store, rec := newTestScheduler(t)
	ctx := context.Background()

	// a persisted job with no timer, as if the arming was lost
	require.NoError(t, store.SaveJob(ctx, &models.ScheduledJob{JobID: "lost", PollID: "p9", RunAt: epoch.Add(-time.Hour)}))

	clock.Advance(time.Minute)
	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "lost", calls[0].job.ID)
	assert.True(t, calls[0].missed)

	clock.Advance(time.Minute)
	assert.Len(t, rec.snapshot(), 1)
	assert.Equal(t, 0, s.Pending())
}

func TestStopKeepsPersistedJobs(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	store := NewMemoryJobStore()

	first := New(store, clock, Options{SweepInterval: time.Hour})
	rec := &recorder{}
	require.NoError(t, first.Start(ctx, rec.handle))
	require.NoError(t, first.Schedule(ctx, Job{ID: "job-1", PollID: "p1", RunAt: epoch.Add(time.Minute)}))
	first.Stop()
	assert.Equal(t, 0, first.Pending())

	clock.Advance(2 * time.Minute)
	assert.Empty(t, rec.snapshot())

	second := New(store, clock, Options{SweepInterval: time.Hour, MissedGrace: 5 * time.Second})
	require.NoError(t, second.Start(ctx, rec.handle))
	defer second.Stop()

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "job-1", calls[0].job.ID)
	assert.True(t, calls[0].missed)
}

func TestHandlerPanicDoesNotBreakScheduler(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	s := New(NewMemoryJobStore(), clock, Options{SweepInterval: time.Hour})
	var calls int
	require.NoError(t, s.Start(ctx, func(context.Context, Job, bool) {
		calls++
		panic("handler exploded")
	}))
	defer s.Stop()

	require.NoError(t, s.Schedule(ctx, Job{ID: "a", RunAt: epoch.Add(time.Second)}))
	require.NoError(t, s.Schedule(ctx, Job{ID: "b", RunAt: epoch.Add(2 * time.Second)}))
	clock.Advance(3 * time.Second)
	assert.Equal(t, 2, calls)
}

func TestRealClockFiresAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := New(NewMemoryJobStore(), RealClock{}, Options{SweepInterval: time.Hour})
	done := make(chan Job, 1)
	require.NoError(t, s.Start(ctx, func(_ context.Context, job Job, _ bool) {
		done <- job
	}))

	require.NoError(t, s.Schedule(ctx, Job{ID: "rt", PollID: "p", RunAt: time.Now().Add(10 * time.Millisecond)}))
	select {
	case job := <-done:
		assert.Equal(t, "rt", job.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	require.NoError(t, s.Schedule(ctx, Job{ID: "later", PollID: "p", RunAt: time.Now().Add(time.Hour)}))
	s.Stop()
}

func TestConcurrentCancelAndFireAtMostOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := New(NewMemoryJobStore(), RealClock{}, Options{SweepInterval: time.Hour})
	var mu sync.Mutex
	counts := make(map[string]int)
	require.NoError(t, s.Start(ctx, func(_ context.Context, job Job, _ bool) {
		mu.Lock()
		counts[job.ID]++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("job-%d", i)
		require.NoError(t, s.Schedule(ctx, Job{ID: id, RunAt: time.Now().Add(time.Millisecond)}))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Cancel(ctx, id)
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	for id, n := range counts {
		assert.LessOrEqual(t, n, 1, "job %s fired more than once", id)
	}
}

// listHookStore runs onList once, after ListJobs has taken its snapshot
type listHookStore struct {
	*MemoryJobStore
	once   sync.Once
	onList func()
}

func (h *listHookStore) ListJobs(ctx context.Context) ([]models.ScheduledJob, error) {
	jobs, err := h.MemoryJobStore.ListJobs(ctx)
	if h.onList != nil {
		h.once.Do(h.onList)
	}
	return jobs, err
}

func TestSweepDoesNotReviveRemovedJob(t *testing.T) {
	tests := []struct {
		name      string
		remove    func(t *testing.T, s *Scheduler)
		wantCalls int
	}{
		{
			name:      "canceled while listing",
			remove:    func(t *testing.T, s *Scheduler) { require.NoError(t, s.Cancel(context.Background(), "job-1")) },
			wantCalls: 0,
		},
		{
			name:      "fired while listing",
			remove:    func(_ *testing.T, s *Scheduler) { s.fire("job-1", false) },
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			clock := NewManualClock(epoch)
			store := &listHookStore{MemoryJobStore: NewMemoryJobStore()}
			s := New(store, clock, Options{SweepInterval: time.Minute, MissedGrace: 5 * time.Second})
			rec := &recorder{}
			require.NoError(t, s.Start(ctx, rec.handle))
			defer s.Stop()

			require.NoError(t, s.Schedule(ctx, Job{ID: "job-1", PollID: "p1", RunAt: epoch.Add(2 * time.Minute)}))
			store.onList = func() { tt.remove(t, s) }

			// first sweep at one minute lists the job, then it is removed
			clock.Advance(time.Minute)
			assert.Equal(t, 0, s.Pending())

			clock.Advance(10 * time.Minute)
			assert.Len(t, rec.snapshot(), tt.wantCalls)
			assert.Equal(t, 0, s.Pending())

			persisted, err := store.ListJobs(ctx)
			require.NoError(t, err)
			assert.Empty(t, persisted)
		})
	}
}

func TestRemovalTombstonesArePruned(t *testing.T) {
	s, clock, _, _ := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, s.Schedule(ctx, Job{ID: "job-1", PollID: "p1", RunAt: epoch.Add(time.Hour)}))
	require.NoError(t, s.Cancel(ctx, "job-1"))

	clock.Advance(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.removed)
}
