package models

import "time"

// PollRecord tracks one open deletion poll.
// At most one record exists per (ChatID, OffendingMessageID).
type PollRecord struct {
	ID                 uint      `gorm:"primarykey"`
	PollID             string    `gorm:"size:64;uniqueIndex;not null"`
	PollMessageID      int       `gorm:"not null"`
	OffendingMessageID int       `gorm:"uniqueIndex:idx_chat_offending;not null"`
	ChatID             int64     `gorm:"uniqueIndex:idx_chat_offending;index;not null"`
	JobID              string    `gorm:"size:128;uniqueIndex;not null"`
	StartedAt          time.Time `gorm:"not null"`
}
