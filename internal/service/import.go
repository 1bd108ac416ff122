package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
)

// ImportStats summarizes one import batch.
type ImportStats struct {
	LogID    string          `json:"log_id"`
	Source   string          `json:"source"`
	Total    int             `json:"total"`
	Inserted int             `json:"inserted"`
	Updated  int             `json:"updated"`
	Failed   int             `json:"failed"`
	Failures []RecordFailure `json:"failures,omitempty"`
}

type importOutcome int

const (
	outcomeInserted importOutcome = iota
	outcomeUpdated
	outcomeFailed
)

type importResult struct {
	outcome importOutcome
	failure RecordFailure
}

func (s *ImportStats) add(r importResult) {
	switch r.outcome {
	case outcomeInserted:
		s.Inserted++
	case outcomeUpdated:
		s.Updated++
	default:
		s.fail(r.failure)
	}
}

func (s *ImportStats) fail(f RecordFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}

// ImportService upserts drafts into the canonical store.
type ImportService struct {
	jobs   JobStore
	logs   ImportLogStore
	logger *logger.Logger
	now    func() time.Time
}

// NewImportService creates a new import service.
func NewImportService(jobs JobStore, logs ImportLogStore, log *logger.Logger) *ImportService {
	return &ImportService{jobs: jobs, logs: logs, logger: log, now: time.Now}
}

func (s *ImportService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// ImportBatch inserts drafts that have no row yet and refreshes the rest.
// One bad record never stops the batch: it is folded into the stats and
// the run continues. Records rejected before this point (fetch or
// transform failures) can be passed in so the run log counts them.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - source: source name every draft must belong to.
//   - drafts: transformed records.
//   - rejected: failures from earlier stages of the same run.
// Returns:
//   - *ImportStats: counters and failure list; non-nil whenever the run log was created.
//   - error: non-nil if the run could not start or was cancelled.
func (s *ImportService) ImportBatch(ctx context.Context, source string, drafts []*domain.JobDraft, rejected ...RecordFailure) (*ImportStats, error) {
	start := s.now()
	entry, err := startRunLog(ctx, s.logs, source, domain.OperationImport, start)
	if err != nil {
		return nil, fmt.Errorf("failed to create import log: %w", err)
	}
	ctx = logger.SetRun(ctx, entry.ID, string(domain.OperationImport))

	stats := &ImportStats{LogID: entry.ID, Source: source, Total: len(drafts) + len(rejected)}
	for _, f := range rejected {
		stats.fail(f)
	}

	var runErr error
	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			runErr = err
			for _, rest := range drafts[i:] {
				stats.fail(RecordFailure{SourceID: draftID(rest), Operation: OpUpdate, Error: err.Error()})
			}
			break
		}
		stats.add(s.importOne(ctx, source, d, start))
	}

	entry.TotalItems = stats.Total
	entry.Inserted = stats.Inserted
	entry.Updated = stats.Updated
	entry.Failed = stats.Failed
	entry.Notes = failureNotes(stats.Failures)
	finishRunLog(ctx, s.logs, entry, runErr, s.now())

	logger.With(logger.Fields{
		"total":    stats.Total,
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
		"failed":   stats.Failed,
	}).WithSince(start).WithStatus(string(entry.Status)).Info(ctx, "Import batch finished")

	return stats, runErr
}

func (s *ImportService) importOne(ctx context.Context, source string, d *domain.JobDraft, seenAt time.Time) importResult {
	id := draftID(d)
	failed := func(op string, err error) importResult {
		s.log(ctx).WithError(err).WithFields(logger.Fields{
			logger.FieldSourceID: id,
			"step":               op,
		}).Warn("Failed to import record")
		return importResult{outcome: outcomeFailed, failure: RecordFailure{SourceID: id, Operation: op, Error: err.Error()}}
	}

	if d == nil || id == "" {
		return failed(OpValidate, errors.New("draft has no source id"))
	}
	if d.Key.Source != source {
		return failed(OpValidate, fmt.Errorf("draft belongs to source %q", d.Key.Source))
	}

	existing, err := s.jobs.GetByKey(ctx, d.Key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.jobs.Create(ctx, newJob(d, seenAt))
		if err == nil {
			return importResult{outcome: outcomeInserted}
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return failed(OpInsert, err)
		}
		// Lost an insert race with an overlapping run; refresh its row instead.
		existing, err = s.jobs.GetByKey(ctx, d.Key)
	}
	if err != nil {
		return failed(OpLookup, err)
	}

	if err := s.jobs.UpdateFromSource(ctx, existing.ID, d, seenAt); err != nil {
		return failed(OpUpdate, err)
	}
	return importResult{outcome: outcomeUpdated}
}

func newJob(d *domain.JobDraft, seenAt time.Time) *domain.Job {
	job := &domain.Job{
		ID:           uuid.New().String(),
		Source:       d.Key.Source,
		SourceID:     d.Key.SourceID,
		JobContent:   d.Content,
		IsActive:     d.IsActive(),
		SourceStatus: d.SourceStatus,
	}
	if job.SourceStatus == "" {
		job.SourceStatus = domain.SourceStatusActive
	}
	if job.IsActive {
		job.LastSeenAt = &seenAt
	}
	return job
}

func draftID(d *domain.JobDraft) string {
	if d == nil {
		return ""
	}
	return d.Key.SourceID
}
