package models

import "time"

// ChatConfig holds the moderation settings of one chat
type ChatConfig struct {
	ChatID        int64 `gorm:"primaryKey;autoIncrement:false"`
	Threshold     int   `gorm:"not null"`
	ExpirySeconds int   `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expiry returns the poll duration as a time.Duration
func (c *ChatConfig) Expiry() time.Duration {
	return time.Duration(c.ExpirySeconds) * time.Second
}
