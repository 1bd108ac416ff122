package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
)

const remapPageSize = 200

// RemapStats summarizes one remap run.
type RemapStats struct {
	LogID   string `json:"log_id"`
	Source  string `json:"source"`
	Checked int    `json:"checked"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}

// RemapService backfills region, district and category ids on stored
// rows after reference data or source mappings changed.
type RemapService struct {
	jobs   JobStore
	geo    GeoStore
	logs   ImportLogStore
	logger *logger.Logger
	now    func() time.Time
}

func NewRemapService(jobs JobStore, geoStore GeoStore, logs ImportLogStore, log *logger.Logger) *RemapService {
	return &RemapService{jobs: jobs, geo: geoStore, logs: logs, logger: log, now: time.Now}
}

// Remap re-runs the normalizer over rows missing a location or category.
// A resolved id replaces a null one; ids already set are never cleared.
func (s *RemapService) Remap(ctx context.Context, source string) (*RemapStats, error) {
	mapper, err := loadMapper(ctx, s.geo, source)
	if err != nil {
		return nil, err
	}

	start := s.now()
	entry, err := startRunLog(ctx, s.logs, source, domain.OperationRemap, start)
	if err != nil {
		return nil, fmt.Errorf("failed to create remap log: %w", err)
	}
	ctx = logger.SetRun(ctx, entry.ID, string(domain.OperationRemap))
	log := logger.FromContext(ctx)

	stats := &RemapStats{LogID: entry.ID, Source: source}
	var failures []RecordFailure
	var runErr error

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		rows, err := s.jobs.ListUnmapped(ctx, source, afterID, remapPageSize)
		if err != nil {
			runErr = fmt.Errorf("failed to list unmapped rows: %w", err)
			break
		}
		if len(rows) == 0 {
			break
		}

		for i := range rows {
			row := &rows[i]
			stats.Checked++

			current := row.JobContent.Classification()
			next, changed := mergeClassification(current, mapper.Reclassify(row))
			if !changed {
				continue
			}
			if err := s.jobs.UpdateClassification(ctx, row.ID, next); err != nil {
				stats.Failed++
				failures = append(failures, RecordFailure{SourceID: row.SourceID, Operation: OpRemap, Error: err.Error()})
				log.WithError(err).WithField(logger.FieldSourceID, row.SourceID).Warn("Failed to update classification")
				continue
			}
			stats.Updated++
		}
		afterID = rows[len(rows)-1].ID
		if len(rows) < remapPageSize {
			break
		}
	}

	entry.TotalChecked = stats.Checked
	entry.TotalItems = stats.Checked
	entry.Updated = stats.Updated
	entry.Failed = stats.Failed
	entry.Notes = failureNotes(failures)
	finishRunLog(ctx, s.logs, entry, runErr, s.now())

	logger.With(logger.Fields{"checked": stats.Checked, "updated": stats.Updated, "failed": stats.Failed}).
		WithSince(start).WithStatus(string(entry.Status)).Info(ctx, "Remap finished")

	return stats, runErr
}

// mergeClassification fills null ids of cur from next. A newly resolved
// district brings its region along so the pair stays consistent.
func mergeClassification(cur, next domain.Classification) (domain.Classification, bool) {
	out := cur
	changed := false

	if next.DistrictID != nil && cur.DistrictID == nil {
		out.DistrictID, out.DistrictName = next.DistrictID, next.DistrictName
		if next.RegionID != nil && !sameID(cur.RegionID, next.RegionID) {
			out.RegionID, out.RegionName = next.RegionID, next.RegionName
		}
		changed = true
	}
	if out.RegionID == nil && next.RegionID != nil {
		out.RegionID, out.RegionName = next.RegionID, next.RegionName
		changed = true
	}
	if cur.CategoryID == nil && next.CategoryID != nil {
		out.CategoryID = next.CategoryID
		changed = true
	}
	return out, changed
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
