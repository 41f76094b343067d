package storage

import (
	"context"
	"fmt"

	"tg-modbot/internal/models"
	"tg-modbot/internal/moderation"
	"tg-modbot/internal/scheduler"

	"gorm.io/gorm"
)

var (
	_ moderation.Store   = (*Store)(nil)
	_ scheduler.JobStore = (*Store)(nil)
)

// tables in creation order
var tables = []interface{}{
	&models.ChatConfig{},
	&models.PollRecord{},
	&models.ScheduledJob{},
}

// Store is the gorm-backed chat, poll and job store
type Store struct {
	db    *gorm.DB
	chats *ChatRepository
	polls *PollRepository
	jobs  *JobRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		chats: NewChatRepository(db),
		polls: NewPollRepository(db),
		jobs:  NewJobRepository(db),
	}
}

// AutoMigrate ensures all tables exist with the right schema
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

// Reset drops and recreates every table
func (s *Store) Reset() error {
	if err := s.db.Migrator().DropTable(tables...); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return s.AutoMigrate()
}

// Stats are the row counts reported by the migrate status action
type Stats struct {
	Chats int64
	Polls int64
	Jobs  int64
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Chats, err = s.chats.Count(ctx); err != nil {
		return st, err
	}
	if st.Polls, err = s.polls.Count(ctx); err != nil {
		return st, err
	}
	if st.Jobs, err = s.jobs.Count(ctx); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Store) GetConfig(ctx context.Context, chatID int64) (*models.ChatConfig, error) {
	cfg, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for chat %d: %w", chatID, err)
	}
	if cfg == nil {
		return nil, moderation.ErrConfigMissing
	}
	return cfg, nil
}

func (s *Store) SetConfig(ctx context.Context, cfg *models.ChatConfig) error {
	return s.chats.Upsert(ctx, cfg)
}

func (s *Store) FindOpenPoll(ctx context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error) {
	return s.polls.FindOpen(ctx, chatID, offendingMessageID)
}

func (s *Store) InsertPoll(ctx context.Context, record *models.PollRecord) error {
	return s.polls.Create(ctx, record)
}

func (s *Store) DeleteOpenPoll(ctx context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error) {
	return s.polls.DeleteOpen(ctx, chatID, offendingMessageID)
}

func (s *Store) FindPollByID(ctx context.Context, pollID string) (*models.PollRecord, error) {
	return s.polls.FindByPollID(ctx, pollID)
}

func (s *Store) FindPollByJobID(ctx context.Context, jobID string) (*models.PollRecord, error) {
	return s.polls.FindByJobID(ctx, jobID)
}

func (s *Store) ListPolls(ctx context.Context, chatID int64) ([]models.PollRecord, error) {
	return s.polls.ListByChat(ctx, chatID)
}

// DeleteChat removes the config and every poll of the chat together
func (s *Store) DeleteChat(ctx context.Context, chatID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.PollRecord{}).Error; err != nil {
			return err
		}
		return NewChatRepository(tx).Delete(ctx, chatID)
	})
}

// RemapChatID moves a group's config and polls to its supergroup id.
// A config already stored under newID is replaced.
func (s *Store) RemapChatID(ctx context.Context, oldID, newID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ChatConfig{}).Where("chat_id = ?", oldID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			if err := tx.Where("chat_id = ?", newID).Delete(&models.ChatConfig{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ChatConfig{}).Where("chat_id = ?", oldID).Update("chat_id", newID).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.PollRecord{}).Where("chat_id = ?", oldID).Update("chat_id", newID).Error
	})
}

func (s *Store) SaveJob(ctx context.Context, job *models.ScheduledJob) error {
	return s.jobs.Save(ctx, job)
}

func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	return s.jobs.Delete(ctx, jobID)
}

func (s *Store) ListJobs(ctx context.Context) ([]models.ScheduledJob, error) {
	return s.jobs.List(ctx)
}
