package service

import (
	"context"
	"fmt"

	"github.com/timmy/jobimport/internal/geo"
	"github.com/timmy/jobimport/internal/transform"
)

// loadMapper builds the per-run normalizer indexes for one source.
func loadMapper(ctx context.Context, store GeoStore, source string) (*transform.Mapper, error) {
	regions, err := store.ListRegions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}
	districts, err := store.ListDistricts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load districts: %w", err)
	}
	categories, err := store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	mappings, err := store.ListMappings(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load source mappings: %w", err)
	}

	ids := geo.NewIDMap(mappings)
	return &transform.Mapper{
		Source:     source,
		Geo:        geo.NewIndex(regions, districts, ids),
		Categories: geo.NewCategoryIndex(categories, ids),
	}, nil
}
