package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
)

// ErrEmptySnapshot rejects a reconcile with neither active nor filled
// ids, which would mark every live row of the source as removed.
var ErrEmptySnapshot = errors.New("active and filled source id sets are empty")

const syncPageSize = 500

// SyncStats summarizes one reconciliation run.
type SyncStats struct {
	LogID           string `json:"log_id"`
	Source          string `json:"source"`
	TotalChecked    int    `json:"total_checked"`
	StillActive     int    `json:"still_active"`
	RemovedAtSource int    `json:"removed_at_source"`
	MarkedFilled    int    `json:"marked_filled"`
	Reactivated     int    `json:"reactivated"`
	Failed          int    `json:"failed"`
	// NotImported counts active ids with no stored row yet.
	NotImported int `json:"not_imported"`
}

// SyncOutcome is the counter a row's transition lands in.
type SyncOutcome int

const (
	OutcomeStillActive SyncOutcome = iota
	OutcomeReactivated
	OutcomeMarkedFilled
	OutcomeAlreadyFilled
	OutcomeRemoved
	OutcomeAlreadyRemoved
)

// Transition is the lifecycle a row moves to.
type Transition struct {
	Status   domain.SourceStatus
	IsActive bool
	Seen     bool
	Outcome  SyncOutcome
}

// Decide applies the reconciliation rules to one row, in priority order:
// filled wins over active; anything not listed as active is removed;
// the rest is active. Rows with no stored status count as active.
func Decide(prev domain.SourceStatus, inActive, inFilled bool) Transition {
	switch {
	case inFilled:
		t := Transition{Status: domain.SourceStatusFilled, Outcome: OutcomeMarkedFilled}
		if prev == domain.SourceStatusFilled {
			t.Outcome = OutcomeAlreadyFilled
		}
		return t
	case !inActive:
		t := Transition{Status: domain.SourceStatusRemovedAtSource, Outcome: OutcomeRemoved}
		if prev == domain.SourceStatusRemovedAtSource {
			t.Outcome = OutcomeAlreadyRemoved
		}
		return t
	default:
		t := Transition{Status: domain.SourceStatusActive, IsActive: true, Seen: true, Outcome: OutcomeStillActive}
		if prev == domain.SourceStatusFilled || prev == domain.SourceStatusRemovedAtSource {
			t.Outcome = OutcomeReactivated
		}
		return t
	}
}

func (s *SyncStats) count(o SyncOutcome) {
	s.TotalChecked++
	switch o {
	case OutcomeStillActive:
		s.StillActive++
	case OutcomeReactivated:
		s.Reactivated++
	case OutcomeMarkedFilled:
		s.MarkedFilled++
	case OutcomeRemoved:
		s.RemovedAtSource++
	}
}

// SyncService reconciles stored lifecycle against the ids a source lists.
type SyncService struct {
	jobs     JobStore
	logs     ImportLogStore
	logger   *logger.Logger
	pageSize int
	now      func() time.Time
}

func NewSyncService(jobs JobStore, logs ImportLogStore, log *logger.Logger) *SyncService {
	return &SyncService{jobs: jobs, logs: logs, logger: log, pageSize: syncPageSize, now: time.Now}
}

// Reconcile walks every stored row of source and moves it to active,
// filled or removed_at_source. Only lifecycle columns are written. Every
// row gets last_checked_at and last_synced_at set to the run start; only
// rows that stay or become active get last_seen_at. Row failures are
// counted and the walk goes on.
func (s *SyncService) Reconcile(ctx context.Context, source string, activeIDs, filledIDs []string) (*SyncStats, error) {
	active := idSet(activeIDs)
	filled := idSet(filledIDs)
	if len(active) == 0 && len(filled) == 0 {
		return nil, ErrEmptySnapshot
	}

	start := s.now()
	entry, err := startRunLog(ctx, s.logs, source, domain.OperationSync, start)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}
	ctx = logger.SetRun(ctx, entry.ID, string(domain.OperationSync))
	log := logger.FromContextOr(ctx, s.logger)

	stats := &SyncStats{LogID: entry.ID, Source: source}
	matched := 0
	var runErr error

	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		rows, err := s.jobs.ListLifecycle(ctx, source, afterID, s.pageSize)
		if err != nil {
			runErr = fmt.Errorf("failed to list rows after %q: %w", afterID, err)
			break
		}
		if len(rows) == 0 {
			break
		}

		for i := range rows {
			row := &rows[i]
			_, inActive := active[row.SourceID]
			_, inFilled := filled[row.SourceID]
			if inActive {
				matched++
			}

			t := Decide(row.SourceStatus, inActive, inFilled)
			u := domain.LifecycleUpdate{
				IsActive:      t.IsActive,
				SourceStatus:  t.Status,
				LastCheckedAt: start,
				LastSyncedAt:  start,
			}
			if t.Seen {
				u.LastSeenAt = &start
			}
			if err := s.jobs.UpdateLifecycle(ctx, row.ID, u); err != nil {
				stats.TotalChecked++
				stats.Failed++
				log.WithError(err).WithField(logger.FieldSourceID, row.SourceID).Warn("Failed to update lifecycle")
				continue
			}
			stats.count(t.Outcome)
		}
		afterID = rows[len(rows)-1].ID
		if len(rows) < s.pageSize {
			break
		}
	}
	stats.NotImported = len(active) - matched

	entry.TotalChecked = stats.TotalChecked
	entry.StillActive = stats.StillActive
	entry.RemovedAtSource = stats.RemovedAtSource
	entry.MarkedFilled = stats.MarkedFilled
	entry.Reactivated = stats.Reactivated
	entry.Failed = stats.Failed
	if stats.NotImported > 0 {
		entry.Notes = fmt.Sprintf("%d active ids not imported yet", stats.NotImported)
	}
	finishRunLog(ctx, s.logs, entry, runErr, s.now())

	logger.With(logger.Fields{
		"total_checked":     stats.TotalChecked,
		"still_active":      stats.StillActive,
		"reactivated":       stats.Reactivated,
		"marked_filled":     stats.MarkedFilled,
		"removed_at_source": stats.RemovedAtSource,
		"failed":            stats.Failed,
	}).WithSince(start).WithStatus(string(entry.Status)).Info(ctx, "Reconciliation finished")

	return stats, runErr
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}
