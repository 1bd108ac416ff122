package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/jobimport/internal/domain"
)

// Columns an import must never rewrite on an existing row.
var immutableJobColumns = []string{"id", "source", "source_id", "created_at", "last_checked_at", "last_synced_at"}

// JobRepository handles canonical job rows.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetByKey retrieves a job by its dedup key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: (source, source_id) pair.
// Returns:
//   - *domain.Job: job row if found.
//   - error: gorm.ErrRecordNotFound when absent, other errors on lookup failure.
func (r *JobRepository) GetByKey(ctx context.Context, key domain.SourceKey) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "source = ? AND source_id = ?", key.Source, key.SourceID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Create inserts a new job row. A conflicting dedup key surfaces as
// gorm.ErrDuplicatedKey.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// UpdateFromSource rewrites the content and source-reported lifecycle of
// an existing row. Identity columns and sync timestamps are left alone;
// last_seen_at is only written for live listings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - draft: transformed source record.
//   - seenAt: time recorded as last_seen_at when the draft is active.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateFromSource(ctx context.Context, id string, draft *domain.JobDraft, seenAt time.Time) error {
	job := domain.Job{
		JobContent:   draft.Content,
		IsActive:     draft.IsActive(),
		SourceStatus: draft.SourceStatus,
	}
	omit := immutableJobColumns
	if job.IsActive {
		job.LastSeenAt = &seenAt
	} else {
		omit = append(append([]string(nil), omit...), "last_seen_at")
	}

	res := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", id).
		Select("*").Omit(omit...).Updates(&job)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListLifecycle returns one keyset page of a source's rows ordered by id,
// loading only identity and lifecycle columns.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source name.
//   - afterID: last id of the previous page, "" for the first page.
//   - limit: page size.
// Returns:
//   - []domain.Job: partially loaded rows.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListLifecycle(ctx context.Context, source, afterID string, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := r.db.WithContext(ctx).
		Select("id", "source", "source_id", "is_active", "source_status", "last_seen_at").
		Where("source = ? AND id > ?", source, afterID).
		Order("id").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// UpdateLifecycle writes the sync engine's patch. Content columns are not touched.
func (r *JobRepository) UpdateLifecycle(ctx context.Context, id string, u domain.LifecycleUpdate) error {
	patch := map[string]interface{}{
		"is_active":       u.IsActive,
		"source_status":   u.SourceStatus,
		"last_checked_at": u.LastCheckedAt,
		"last_synced_at":  u.LastSyncedAt,
	}
	if u.LastSeenAt != nil {
		patch["last_seen_at"] = *u.LastSeenAt
	}
	res := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListUnmapped returns one keyset page of a source's rows missing a
// region, district or category.
func (r *JobRepository) ListUnmapped(ctx context.Context, source, afterID string, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := r.db.WithContext(ctx).
		Where("source = ? AND id > ?", source, afterID).
		Where("(region_id IS NULL OR district_id IS NULL OR category_id IS NULL)").
		Order("id").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// UpdateClassification writes normalizer output only.
func (r *JobRepository) UpdateClassification(ctx context.Context, id string, c domain.Classification) error {
	return r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"region_id":     c.RegionID,
		"district_id":   c.DistrictID,
		"region_name":   c.RegionName,
		"district_name": c.DistrictName,
		"category_id":   c.CategoryID,
	}).Error
}

// CountBySource returns active and total row counts for a source.
func (r *JobRepository) CountBySource(ctx context.Context, source string) (active, total int64, err error) {
	db := r.db.WithContext(ctx).Model(&domain.Job{}).Where("source = ?", source)
	if err = db.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("source = ? AND is_active = ?", source, true).
		Count(&active).Error
	return active, total, err
}
