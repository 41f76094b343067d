package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tg-modbot/internal/logger"
	"tg-modbot/internal/metrics"
	"tg-modbot/internal/models"
	"tg-modbot/internal/scheduler"
)

// Reason is what triggered a settlement
type Reason int

const (
	Expired Reason = iota
	ThresholdReached
)

func (r Reason) String() string {
	if r == ThresholdReached {
		return "threshold"
	}
	return "expired"
}

// State of a poll as seen by this process. A closed poll has no record,
// so it reads as StateNone.
type State int

const (
	StateNone State = iota
	StateOpen
	StateSettling
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateSettling:
		return "SETTLING"
	default:
		return "NONE"
	}
}

// settlement outcomes, used as metric labels
const (
	outcomeDeleted      = "deleted"
	outcomeKept         = "kept"
	outcomeDeleteFailed = "delete_failed"
	outcomeCloseFailed  = "close_failed"
)

type Options struct {
	Metrics *metrics.Metrics
	// Clock defaults to scheduler.RealClock
	Clock scheduler.Clock
}

type OpenRequest struct {
	ChatID             int64
	OffendingMessageID int
	RequesterID        int64
}

// OpenResult.AlreadyExists is set when a poll for the same message was already open;
// Record is then the existing poll.
type OpenResult struct {
	Record        *models.PollRecord
	AlreadyExists bool
}

// Lifecycle drives deletion polls from creation to settlement
type Lifecycle struct {
	store Store
	gw    Gateway
	sched Scheduler
	opts  Options
	locks *keyedMutex

	mu       sync.Mutex
	settling map[string]struct{}
}

func NewLifecycle(store Store, gw Gateway, sched Scheduler, opts Options) *Lifecycle {
	if opts.Clock == nil {
		opts.Clock = scheduler.RealClock{}
	}
	return &Lifecycle{
		store:    store,
		gw:       gw,
		sched:    sched,
		opts:     opts,
		locks:    newKeyedMutex(),
		settling: make(map[string]struct{}),
	}
}

// Open starts a deletion poll for req.OffendingMessageID, or returns the poll
// already open for it.
func (l *Lifecycle) Open(ctx context.Context, req OpenRequest) (OpenResult, error) {
	unlock := l.locks.Lock(pollKey(req.ChatID, req.OffendingMessageID))
	defer unlock()

	cfg, err := l.store.GetConfig(ctx, req.ChatID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("open poll in chat %d: %w", req.ChatID, err)
	}

	existing, err := l.store.FindOpenPoll(ctx, req.ChatID, req.OffendingMessageID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("failed to look up open poll: %w", err)
	}
	if existing != nil {
		l.opts.Metrics.PollDeduplicated()
		return OpenResult{Record: existing, AlreadyExists: true}, nil
	}

	question := pollQuestion(cfg.ExpirySeconds, cfg.Threshold)
	pollID, pollMsgID, err := l.gw.CreatePoll(ctx, req.ChatID, question, []string{OptionDelete, OptionKeep}, req.OffendingMessageID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("failed to create poll: %w", err)
	}

	now := l.opts.Clock.Now()
	record := &models.PollRecord{
		PollID:             pollID,
		PollMessageID:      pollMsgID,
		OffendingMessageID: req.OffendingMessageID,
		ChatID:             req.ChatID,
		JobID:              newJobID(req.ChatID),
		StartedAt:          now,
	}

	job := scheduler.Job{ID: record.JobID, PollID: pollID, RunAt: now.Add(cfg.Expiry())}
	if err := l.sched.Schedule(ctx, job); err != nil {
		l.abandonPoll(ctx, record)
		return OpenResult{}, fmt.Errorf("failed to schedule poll expiry: %w", err)
	}

	if err := l.store.InsertPoll(ctx, record); err != nil {
		if cerr := l.sched.Cancel(ctx, record.JobID); cerr != nil {
			logger.Errorf("Error canceling job %s after failed insert: %v", record.JobID, cerr)
		}
		l.abandonPoll(ctx, record)
		return OpenResult{}, fmt.Errorf("failed to save poll record: %w", err)
	}

	l.opts.Metrics.PollOpened()
	logger.Infof("Opened poll %s in chat %d for message %d (requested by %d, expires %s)",
		pollID, req.ChatID, req.OffendingMessageID, req.RequesterID, job.RunAt.Format("15:04:05"))
	return OpenResult{Record: record}, nil
}

// MaybeSettleEarly settles the poll once deletes reaches the chat's current threshold
func (l *Lifecycle) MaybeSettleEarly(ctx context.Context, pollID string, deletes int) error {
	record, err := l.store.FindPollByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to look up poll %s: %w", pollID, err)
	}
	if record == nil {
		return nil
	}

	cfg, err := l.store.GetConfig(ctx, record.ChatID)
	if err != nil {
		return fmt.Errorf("settle poll %s: %w", pollID, err)
	}
	if deletes < cfg.Threshold {
		return nil
	}
	return l.resolvePoll(ctx, pollID, ThresholdReached)
}

// SettleOnExpiry settles the poll after its expiry job fired
func (l *Lifecycle) SettleOnExpiry(ctx context.Context, pollID string) error {
	return l.resolvePoll(ctx, pollID, Expired)
}

// HandleJob is the scheduler handler. Missed jobs are traced back to their poll
// through the job id.
func (l *Lifecycle) HandleJob(ctx context.Context, job scheduler.Job, missed bool) {
	pollID := job.PollID
	if missed {
		l.opts.Metrics.MissedJobRecovered()
		record, err := l.PollForJob(ctx, job.ID)
		if errors.Is(err, ErrNotFound) {
			logger.Debugf("Missed job %s has no open poll", job.ID)
			return
		}
		if err != nil {
			logger.Errorf("Error looking up poll for missed job %s: %v", job.ID, err)
			return
		}
		pollID = record.PollID
	}

	if err := l.SettleOnExpiry(ctx, pollID); err != nil {
		logger.Errorf("Error settling poll %s on expiry: %v", pollID, err)
	}
}

// PollForJob returns the open poll whose expiry job is jobID, or ErrNotFound
func (l *Lifecycle) PollForJob(ctx context.Context, jobID string) (*models.PollRecord, error) {
	record, err := l.store.FindPollByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up poll for job %s: %w", jobID, err)
	}
	if record == nil {
		return nil, fmt.Errorf("poll for job %s: %w", jobID, ErrNotFound)
	}
	return record, nil
}

// State reports where pollID is in its lifecycle
func (l *Lifecycle) State(ctx context.Context, pollID string) (State, error) {
	l.mu.Lock()
	_, settling := l.settling[pollID]
	l.mu.Unlock()
	if settling {
		return StateSettling, nil
	}

	record, err := l.store.FindPollByID(ctx, pollID)
	if err != nil {
		return StateNone, err
	}
	if record == nil {
		return StateNone, nil
	}
	return StateOpen, nil
}

// resolvePoll settles pollID at most once. Whichever caller removes the
// record from the store proceeds; every other caller returns nil.
func (l *Lifecycle) resolvePoll(ctx context.Context, pollID string, reason Reason) error {
	record, err := l.store.FindPollByID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("failed to look up poll %s: %w", pollID, err)
	}
	if record == nil {
		logger.Debugf("Poll %s already settled (%s)", pollID, reason)
		return nil
	}

	removed, err := l.claim(ctx, record, reason)
	if err != nil || removed == nil {
		return err
	}
	defer l.release(pollID)

	if reason == ThresholdReached {
		if err := l.sched.Cancel(ctx, removed.JobID); err != nil {
			logger.Warningf("Error canceling expiry job %s: %v", removed.JobID, err)
		}
	}

	chatID := removed.ChatID
	statusID, err := l.gw.SendMessage(ctx, chatID, statusText(reason), removed.PollMessageID)
	if err != nil {
		logger.Warningf("Error sending status message for poll %s: %v", pollID, err)
		statusID = 0
	}

	tally, err := l.gw.ClosePoll(ctx, chatID, removed.PollMessageID)
	if err != nil {
		l.report(ctx, chatID, statusID, err.Error())
		l.opts.Metrics.PollSettled(reason.String(), outcomeCloseFailed)
		logger.Warningf("Error stopping poll %s: %v", pollID, err)
		return nil
	}

	cfg, err := l.store.GetConfig(ctx, chatID)
	if err != nil {
		return fmt.Errorf("settle poll %s: %w", pollID, err)
	}

	outcome := outcomeKept
	if tally.Deletes() >= cfg.Threshold {
		if err := l.gw.DeleteMessage(ctx, chatID, removed.OffendingMessageID); err != nil {
			text := err.Error()
			if errors.Is(err, ErrCannotDelete) {
				text += msgCheckPermission
			}
			l.report(ctx, chatID, statusID, text)
			outcome = outcomeDeleteFailed
		} else {
			l.report(ctx, chatID, statusID, msgDeleted)
			outcome = outcomeDeleted
		}
	} else {
		l.report(ctx, chatID, statusID, msgNotReached)
	}

	l.opts.Metrics.PollSettled(reason.String(), outcome)
	logger.Infof("Settled poll %s in chat %d: reason=%s deletes=%d threshold=%d outcome=%s",
		pollID, chatID, reason, tally.Deletes(), cfg.Threshold, outcome)
	return nil
}

// claim removes record from the store if it is still the open poll for its
// message. It returns nil when another caller got there first.
func (l *Lifecycle) claim(ctx context.Context, record *models.PollRecord, reason Reason) (*models.PollRecord, error) {
	unlock := l.locks.Lock(pollKey(record.ChatID, record.OffendingMessageID))
	defer unlock()

	current, err := l.store.FindOpenPoll(ctx, record.ChatID, record.OffendingMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open poll: %w", err)
	}
	if current == nil || current.PollID != record.PollID {
		logger.Debugf("Poll %s already settled (%s)", record.PollID, reason)
		return nil, nil
	}

	l.mu.Lock()
	l.settling[record.PollID] = struct{}{}
	l.mu.Unlock()

	removed, err := l.store.DeleteOpenPoll(ctx, record.ChatID, record.OffendingMessageID)
	if err != nil || removed == nil {
		l.release(record.PollID)
		if err != nil {
			return nil, fmt.Errorf("failed to remove poll %s: %w", record.PollID, err)
		}
	}
	return removed, nil
}

func (l *Lifecycle) release(pollID string) {
	l.mu.Lock()
	delete(l.settling, pollID)
	l.mu.Unlock()
}

// report edits the status message, or sends text when there is none
func (l *Lifecycle) report(ctx context.Context, chatID int64, statusID int, text string) {
	if statusID != 0 {
		if err := l.gw.EditMessage(ctx, chatID, statusID, text); err != nil {
			logger.Warningf("Error editing status message %d in chat %d: %v", statusID, chatID, err)
		}
		return
	}
	if _, err := l.gw.SendMessage(ctx, chatID, text, 0); err != nil {
		logger.Warningf("Error sending status to chat %d: %v", chatID, err)
	}
}

// abandonPoll closes a poll that never made it into the store
func (l *Lifecycle) abandonPoll(ctx context.Context, record *models.PollRecord) {
	if _, err := l.gw.ClosePoll(ctx, record.ChatID, record.PollMessageID); err != nil {
		logger.Warningf("Error closing abandoned poll %s: %v", record.PollID, err)
	}
}

func newJobID(chatID int64) string {
	return fmt.Sprintf("%d-%s", chatID, uuid.NewString())
}
