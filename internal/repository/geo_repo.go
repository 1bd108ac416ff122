package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/jobimport/internal/domain"
)

// GeoRepository reads the canonical reference tables and source id mappings.
type GeoRepository struct {
	db *gorm.DB
}

func NewGeoRepository(db *gorm.DB) *GeoRepository {
	return &GeoRepository{db: db}
}

// ListRegions returns every region in id order. Match order in the
// normalizer follows this order.
func (r *GeoRepository) ListRegions(ctx context.Context) ([]domain.Region, error) {
	var out []domain.Region
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (r *GeoRepository) ListDistricts(ctx context.Context) ([]domain.District, error) {
	var out []domain.District
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (r *GeoRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

// ListMappings returns the id mappings of one source.
func (r *GeoRepository) ListMappings(ctx context.Context, source string) ([]domain.SourceMapping, error) {
	var out []domain.SourceMapping
	err := r.db.WithContext(ctx).Where("source = ?", source).Order("id").Find(&out).Error
	return out, err
}

// UpsertMapping creates or repoints a mapping keyed by (source, kind, external_id).
func (r *GeoRepository) UpsertMapping(ctx context.Context, m *domain.SourceMapping) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "kind"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_id"}),
	}).Create(m).Error
}

// Seed upserts reference rows by primary key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - regions, districts, categories: rows to create or overwrite.
// Returns:
//   - error: non-nil if any upsert fails; the whole seed is one transaction.
func (r *GeoRepository) Seed(ctx context.Context, regions []domain.Region, districts []domain.District, categories []domain.Category) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func(rows interface{}) error {
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error
		}
		if len(regions) > 0 {
			if err := upsert(&regions); err != nil {
				return err
			}
		}
		if len(districts) > 0 {
			if err := upsert(&districts); err != nil {
				return err
			}
		}
		if len(categories) > 0 {
			return upsert(&categories)
		}
		return nil
	})
}
