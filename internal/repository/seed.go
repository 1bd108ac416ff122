package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/timmy/jobimport/internal/domain"
)

// SeedData is the reference data file loaded by the importer's seed command.
type SeedData struct {
	Regions    []domain.Region        `json:"regions"`
	Districts  []domain.District      `json:"districts"`
	Categories []domain.Category      `json:"categories"`
	Mappings   []domain.SourceMapping `json:"mappings"`
}

// LoadSeedData decodes and checks a seed file. Districts must point at a
// region from the same file and mappings at a row of their kind.
func LoadSeedData(r io.Reader) (*SeedData, error) {
	var data SeedData
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	regions := make(map[int64]bool, len(data.Regions))
	for _, reg := range data.Regions {
		if reg.ID <= 0 || reg.NameUz == "" {
			return nil, fmt.Errorf("region %d: id and name_uz are required", reg.ID)
		}
		regions[reg.ID] = true
	}
	districts := make(map[int64]bool, len(data.Districts))
	for _, d := range data.Districts {
		if d.ID <= 0 || d.NameUz == "" {
			return nil, fmt.Errorf("district %d: id and name_uz are required", d.ID)
		}
		if d.RegionID != nil && !regions[*d.RegionID] {
			return nil, fmt.Errorf("district %d: unknown region %d", d.ID, *d.RegionID)
		}
		districts[d.ID] = true
	}
	categories := make(map[int64]bool, len(data.Categories))
	for _, c := range data.Categories {
		if c.ID <= 0 || c.NameUz == "" {
			return nil, fmt.Errorf("category %d: id and name_uz are required", c.ID)
		}
		categories[c.ID] = true
	}

	for i, m := range data.Mappings {
		if m.Source == "" || m.ExternalID == "" {
			return nil, fmt.Errorf("mapping %d: source and external_id are required", i)
		}
		var known map[int64]bool
		switch m.Kind {
		case domain.MappingKindRegion:
			known = regions
		case domain.MappingKindDistrict:
			known = districts
		case domain.MappingKindCategory:
			known = categories
		default:
			return nil, fmt.Errorf("mapping %d: unknown kind %q", i, m.Kind)
		}
		if !known[m.CanonicalID] {
			return nil, fmt.Errorf("mapping %d: unknown %s %d", i, m.Kind, m.CanonicalID)
		}
	}
	return &data, nil
}

// Apply writes the reference rows and then the mappings.
func (r *GeoRepository) Apply(ctx context.Context, data *SeedData) error {
	if err := r.Seed(ctx, data.Regions, data.Districts, data.Categories); err != nil {
		return fmt.Errorf("seed reference rows: %w", err)
	}
	for i := range data.Mappings {
		m := data.Mappings[i]
		m.ID = 0
		if err := r.UpsertMapping(ctx, &m); err != nil {
			return fmt.Errorf("upsert mapping %s/%s/%s: %w", m.Source, m.Kind, m.ExternalID, err)
		}
	}
	return nil
}
