package service

import (
	"context"
	"time"

	"github.com/timmy/jobimport/internal/domain"
)

// JobStore is the canonical job table as the engines use it.
// Lookups of absent rows return gorm.ErrRecordNotFound; inserts that
// collide on the dedup key return gorm.ErrDuplicatedKey.
type JobStore interface {
	GetByKey(ctx context.Context, key domain.SourceKey) (*domain.Job, error)
	Create(ctx context.Context, job *domain.Job) error
	UpdateFromSource(ctx context.Context, id string, draft *domain.JobDraft, seenAt time.Time) error

	ListLifecycle(ctx context.Context, source, afterID string, limit int) ([]domain.Job, error)
	UpdateLifecycle(ctx context.Context, id string, u domain.LifecycleUpdate) error

	ListUnmapped(ctx context.Context, source, afterID string, limit int) ([]domain.Job, error)
	UpdateClassification(ctx context.Context, id string, c domain.Classification) error
}

// GeoStore supplies the reference data the normalizer indexes are built from.
type GeoStore interface {
	ListRegions(ctx context.Context) ([]domain.Region, error)
	ListDistricts(ctx context.Context) ([]domain.District, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListMappings(ctx context.Context, source string) ([]domain.SourceMapping, error)
}

type ImportLogStore interface {
	Create(ctx context.Context, log *domain.ImportLog) error
	Complete(ctx context.Context, log *domain.ImportLog) error
	ListRecent(ctx context.Context, source string, limit int) ([]domain.ImportLog, error)
}
