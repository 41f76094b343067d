package moderation

import (
	"context"

	"tg-modbot/internal/models"
	"tg-modbot/internal/scheduler"
)

const (
	OptionDelete = "Delete"
	OptionKeep   = "Don't Delete"
)

// Store persists chat configuration and open poll records.
// Lookups return (nil, nil) when nothing matches, except GetConfig.
type Store interface {
	// GetConfig returns ErrConfigMissing when the chat has no configuration
	GetConfig(ctx context.Context, chatID int64) (*models.ChatConfig, error)
	SetConfig(ctx context.Context, cfg *models.ChatConfig) error

	FindOpenPoll(ctx context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error)
	InsertPoll(ctx context.Context, record *models.PollRecord) error
	// DeleteOpenPoll removes the record and returns it. Of two concurrent
	// callers for the same poll only one receives the record.
	DeleteOpenPoll(ctx context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error)
	FindPollByID(ctx context.Context, pollID string) (*models.PollRecord, error)
	FindPollByJobID(ctx context.Context, jobID string) (*models.PollRecord, error)
	ListPolls(ctx context.Context, chatID int64) ([]models.PollRecord, error)

	DeleteChat(ctx context.Context, chatID int64) error
	RemapChatID(ctx context.Context, oldID, newID int64) error
}

// Gateway performs the outbound platform calls. Failures are *GatewayError.
type Gateway interface {
	CreatePoll(ctx context.Context, chatID int64, question string, options []string, replyTo int) (pollID string, pollMessageID int, err error)
	ClosePoll(ctx context.Context, chatID int64, pollMessageID int) (Tally, error)
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	GetChatMemberCount(ctx context.Context, chatID int64) (int, error)
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Scheduler is the part of *scheduler.Scheduler the lifecycle drives
type Scheduler interface {
	Schedule(ctx context.Context, job scheduler.Job) error
	Cancel(ctx context.Context, jobID string) error
}

// Tally maps option text to voter count
type Tally map[string]int

func (t Tally) Deletes() int {
	return t[OptionDelete]
}
