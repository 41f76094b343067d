package storage

import (
	"context"

	"tg-modbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository persists the scheduler's pending jobs
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Save(ctx context.Context, job *models.ScheduledJob) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(job).Error
}

func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.ScheduledJob{}).Error
}

// List returns every pending job ordered by fire time
func (r *JobRepository) List(ctx context.Context) ([]models.ScheduledJob, error) {
	var jobs []models.ScheduledJob
	result := r.db.WithContext(ctx).Order("run_at").Find(&jobs)
	return jobs, result.Error
}

func (r *JobRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ScheduledJob{}).Count(&n).Error
	return n, err
}
