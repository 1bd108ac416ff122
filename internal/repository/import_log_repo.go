package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/timmy/jobimport/internal/domain"
)

// ImportLogRepository persists run audit records.
type ImportLogRepository struct {
	db *gorm.DB
}

func NewImportLogRepository(db *gorm.DB) *ImportLogRepository {
	return &ImportLogRepository{db: db}
}

// Create inserts the log when a run starts.
func (r *ImportLogRepository) Create(ctx context.Context, log *domain.ImportLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Complete writes the final counters and status of a run. Logs that are
// already completed are not touched again.
func (r *ImportLogRepository) Complete(ctx context.Context, log *domain.ImportLog) error {
	res := r.db.WithContext(ctx).Model(&domain.ImportLog{}).
		Where("id = ? AND completed_at IS NULL", log.ID).
		Select("status", "total_checked", "still_active", "removed_at_source", "marked_filled", "reactivated",
			"total_items", "inserted", "updated", "failed", "notes", "completed_at").
		Updates(log)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListRecent returns the newest logs first. An empty source lists all sources.
func (r *ImportLogRepository) ListRecent(ctx context.Context, source string, limit int) ([]domain.ImportLog, error) {
	var logs []domain.ImportLog
	q := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	err := q.Find(&logs).Error
	return logs, err
}
