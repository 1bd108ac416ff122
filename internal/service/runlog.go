package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
)

// Operation names recorded on per-record failures.
const (
	OpValidate  = "validate"
	OpFetch     = "fetch"
	OpTransform = "transform"
	OpLookup    = "lookup"
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpSync      = "sync"
	OpRemap     = "remap"
)

// RecordFailure identifies one record that could not be processed, with
// enough context to retry it by hand.
type RecordFailure struct {
	SourceID  string `json:"source_id"`
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// maxLoggedFailures caps the failure list copied into ImportLog notes.
const maxLoggedFailures = 20

func startRunLog(ctx context.Context, logs ImportLogStore, source string, op domain.OperationType, now time.Time) (*domain.ImportLog, error) {
	entry := &domain.ImportLog{
		ID:            uuid.New().String(),
		Source:        source,
		OperationType: op,
		Status:        domain.RunStatusRunning,
		StartedAt:     now,
	}
	if err := logs.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// finishRunLog finalizes entry. A cancelled run still gets its log written.
func finishRunLog(ctx context.Context, logs ImportLogStore, entry *domain.ImportLog, runErr error, now time.Time) {
	entry.CompletedAt = &now
	entry.Status = domain.StatusFor(entry.Failed)
	if runErr != nil {
		entry.Status = domain.RunStatusFailed
		entry.Notes = joinNotes(entry.Notes, runErr.Error())
	}
	if err := logs.Complete(context.WithoutCancel(ctx), entry); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("log_id", entry.ID).Error("Failed to complete import log")
	}
}

func failureNotes(failures []RecordFailure) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failures {
		if i > 0 {
			b.WriteString("; ")
		}
		if i == maxLoggedFailures {
			b.WriteString("...")
			break
		}
		b.WriteString(f.Operation + " " + f.SourceID + ": " + f.Error)
	}
	return b.String()
}

func joinNotes(notes ...string) string {
	var parts []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "; ")
}
