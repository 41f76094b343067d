package storage

import (
	"context"
	"errors"

	"tg-modbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository handles database operations for ChatConfig
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Get returns nil when the chat has no configuration
func (r *ChatRepository) Get(ctx context.Context, chatID int64) (*models.ChatConfig, error) {
	var cfg models.ChatConfig
	result := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&cfg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &cfg, nil
}

// Upsert creates the configuration or overwrites threshold and expiry
func (r *ChatRepository) Upsert(ctx context.Context, cfg *models.ChatConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"threshold", "expiry_seconds", "updated_at"}),
	}).Create(cfg).Error
}

func (r *ChatRepository) Delete(ctx context.Context, chatID int64) error {
	return r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&models.ChatConfig{}).Error
}

// Count returns the number of configured chats
func (r *ChatRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ChatConfig{}).Count(&n).Error
	return n, err
}
