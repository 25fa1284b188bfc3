package repository

import (
	"context"
	"errors"
	"fmt"

	"melodex/model"

	"gorm.io/gorm"
)

// ScanJobRepository records scan runs for status reporting.
type ScanJobRepository interface {
	Create(ctx context.Context, job *model.ScanJob) error
	Update(ctx context.Context, job *model.ScanJob) error
	LatestByUserID(ctx context.Context, userID int64) (*model.ScanJob, error)
}

// gormScanJobRepository implements ScanJobRepository with GORM.
type gormScanJobRepository struct {
	db *gorm.DB
}

// NewGormScanJobRepository creates a new instance of gormScanJobRepository.
func NewGormScanJobRepository(db *gorm.DB) ScanJobRepository {
	return &gormScanJobRepository{db: db}
}

func (r *gormScanJobRepository) Create(ctx context.Context, job *model.ScanJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create scan job: %w", err)
	}
	return nil
}

func (r *gormScanJobRepository) Update(ctx context.Context, job *model.ScanJob) error {
	err := r.db.WithContext(ctx).
		Model(&model.ScanJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"files_scanned": job.FilesScanned,
			"status":        job.Status,
			"error":         job.Error,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update scan job %s: %w", job.ID, err)
	}
	return nil
}

func (r *gormScanJobRepository) LatestByUserID(ctx context.Context, userID int64) (*model.ScanJob, error) {
	var job model.ScanJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest scan job for user ID %d: %w", userID, err)
	}
	return &job, nil
}
