package storage

import (
	"context"
	"errors"

	"tg-modbot/internal/models"

	"gorm.io/gorm"
)

// PollRepository handles database operations for PollRecord
type PollRepository struct {
	db *gorm.DB
}

func NewPollRepository(db *gorm.DB) *PollRepository {
	return &PollRepository{db: db}
}

func (r *PollRepository) Create(ctx context.Context, record *models.PollRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindOpen returns the poll open for a message, or nil
func (r *PollRepository) FindOpen(ctx context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error) {
	return r.first(ctx, "chat_id = ? AND offending_message_id = ?", chatID, offendingMessageID)
}

func (r *PollRepository) FindByPollID(ctx context.Context, pollID string) (*models.PollRecord, error) {
	return r.first(ctx, "poll_id = ?", pollID)
}

func (r *PollRepository) FindByJobID(ctx context.Context, jobID string) (*models.PollRecord, error) {
	return r.first(ctx, "job_id = ?", jobID)
}

// ListByChat returns the chat's open polls, oldest first
func (r *PollRepository) ListByChat(ctx context.Context, chatID int64) ([]models.PollRecord, error) {
	var records []models.PollRecord
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("started_at").Find(&records)
	return records, result.Error
}

// DeleteOpen removes the poll open for a message. The row is deleted by
// primary key, and only the caller whose delete hit the row gets it back.
func (r *PollRepository) DeleteOpen(ctx context.Context, chatID int64, offendingMessageID int) (*models.PollRecord, error) {
	record, err := r.FindOpen(ctx, chatID, offendingMessageID)
	if err != nil || record == nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).Where("id = ?", record.ID).Delete(&models.PollRecord{})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected != 1 {
		return nil, nil
	}
	return record, nil
}

func (r *PollRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PollRecord{}).Count(&n).Error
	return n, err
}

func (r *PollRepository) first(ctx context.Context, query string, args ...interface{}) (*models.PollRecord, error) {
	var record models.PollRecord
	result := r.db.WithContext(ctx).Where(query, args...).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}
