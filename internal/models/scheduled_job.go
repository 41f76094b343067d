package models

import "time"

// ScheduledJob is the persisted form of a pending expiry task
type ScheduledJob struct {
	JobID     string    `gorm:"size:128;primaryKey"`
	PollID    string    `gorm:"size:64;index;not null"`
	RunAt     time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
