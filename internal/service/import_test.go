package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
)

func newImporter(jobs *fakeJobs, logs *fakeLogs) *ImportService {
	s := NewImportService(jobs, logs, logger.GetDefault())
	s.now = func() time.Time { return syncStart }
	return s
}

func draftOf(id, title string, status domain.SourceStatus) *domain.JobDraft {
	return &domain.JobDraft{
		Key:          domain.SourceKey{Source: "osonish", SourceID: id},
		Content:      domain.JobContent{TitleUz: title, VacancyCount: 1},
		SourceStatus: status,
	}
}

func TestImportBatchIsIdempotent(t *testing.T) {
	jobs := newFakeJobs()
	svc := newImporter(jobs, &fakeLogs{})
	batch := []*domain.JobDraft{
		draftOf("1", "Sotuvchi", domain.SourceStatusActive),
		draftOf("2", "Oshpaz", domain.SourceStatusActive),
		draftOf("3", "Haydovchi", domain.SourceStatusFilled),
	}

	first, err := svc.ImportBatch(context.Background(), "osonish", batch)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Equal(t, 0, first.Updated)

	snapshot := map[string]domain.Job{}
	for _, id := range []string{"1", "2", "3"} {
		snapshot[id] = *jobs.bySourceID(id)
	}

	second, err := svc.ImportBatch(context.Background(), "osonish", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Updated)
	assert.Equal(t, 3, jobs.count())

	for id, before := range snapshot {
		after := jobs.bySourceID(id)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, before.JobContent, after.JobContent)
		assert.Equal(t, before.IsActive, after.IsActive)
		assert.Equal(t, before.SourceStatus, after.SourceStatus)
	}

	filled := jobs.bySourceID("3")
	assert.False(t, filled.IsActive)
	assert.Nil(t, filled.LastSeenAt)
}

func TestImportBatchSameKeyResolvesToOneRow(t *testing.T) {
	jobs := newFakeJobs()
	svc := newImporter(jobs, &fakeLogs{})
	ctx := context.Background()

	_, err := svc.ImportBatch(ctx, "osonish", []*domain.JobDraft{draftOf("9", "old title", domain.SourceStatusActive)})
	require.NoError(t, err)
	id := jobs.bySourceID("9").ID

	_, err = svc.ImportBatch(ctx, "osonish", []*domain.JobDraft{draftOf("9", "new title", domain.SourceStatusActive)})
	require.NoError(t, err)

	assert.Equal(t, 1, jobs.count())
	got := jobs.bySourceID("9")
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "new title", got.TitleUz)
}

func TestImportBatchFoldsFailures(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failCreate["2"] = errors.New("value too long for column")
	logs := &fakeLogs{}
	svc := newImporter(jobs, logs)

	stats, err := svc.ImportBatch(context.Background(), "osonish",
		[]*domain.JobDraft{
			draftOf("1", "a", domain.SourceStatusActive),
			draftOf("2", "b", domain.SourceStatusActive),
			nil,
			{Key: domain.SourceKey{Source: "other", SourceID: "4"}},
			draftOf("5", "e", domain.SourceStatusActive),
		},
		RecordFailure{SourceID: "6", Operation: OpFetch, Error: "502"},
	)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 4, stats.Failed)
	require.Len(t, stats.Failures, 4)
	assert.Equal(t, RecordFailure{SourceID: "6", Operation: OpFetch, Error: "502"}, stats.Failures[0])
	assert.Equal(t, OpInsert, stats.Failures[1].Operation)
	assert.Equal(t, "2", stats.Failures[1].SourceID)
	assert.Equal(t, OpValidate, stats.Failures[2].Operation)
	assert.Equal(t, OpValidate, stats.Failures[3].Operation)

	entry := logs.last()
	assert.Equal(t, domain.OperationImport, entry.OperationType)
	assert.Equal(t, domain.RunStatusCompletedWithErrors, entry.Status)
	assert.Equal(t, 6, entry.TotalItems)
	assert.Equal(t, 2, entry.Inserted)
	assert.Equal(t, 4, entry.Failed)
	assert.Contains(t, entry.Notes, "insert 2: value too long")
}

func TestImportBatchDuplicateRaceFallsBackToUpdate(t *testing.T) {
	jobs := newFakeJobs()
	// Another run inserts the same key between our lookup and insert.
	jobs.beforeCreate = func(job *domain.Job) {
		jobs.beforeCreate = nil
		jobs.seed("other-run", job.SourceID, domain.SourceStatusActive)
	}
	svc := newImporter(jobs, &fakeLogs{})

	stats, err := svc.ImportBatch(context.Background(), "osonish", []*domain.JobDraft{draftOf("1", "Sotuvchi", domain.SourceStatusActive)})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, jobs.count())
	assert.Equal(t, "Sotuvchi", jobs.bySourceID("1").TitleUz)
}

func TestImportBatchCancelledStillCompletesLog(t *testing.T) {
	jobs := newFakeJobs()
	logs := &fakeLogs{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := newImporter(jobs, logs).ImportBatch(ctx, "osonish", []*domain.JobDraft{draftOf("1", "x", domain.SourceStatusActive)})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.RunStatusFailed, logs.last().Status)
	assert.NotNil(t, logs.last().CompletedAt)
	assert.Zero(t, jobs.count())
}

func TestImportBatchInsertErrorIsRecordFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failCreate["1"] = gorm.ErrInvalidDB
	stats, err := newImporter(jobs, &fakeLogs{}).ImportBatch(context.Background(), "osonish", []*domain.JobDraft{draftOf("1", "x", domain.SourceStatusActive)})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, OpInsert, stats.Failures[0].Operation)
}

func TestImportLogsThroughServiceLoggerUnlessContextHasOne(t *testing.T) {
	var svcOut, ctxOut bytes.Buffer
	svcLog := logger.New(&logger.Config{Level: "info", Format: "json", Output: &svcOut})
	ctxLog := logger.New(&logger.Config{Level: "info", Format: "json", Output: &ctxOut})

	tests := []struct {
		name string
		ctx  context.Context
		want *bytes.Buffer
		idle *bytes.Buffer
	}{
		{name: "bare context", ctx: context.Background(), want: &svcOut, idle: &ctxOut},
		{name: "context logger", ctx: ctxLog.WithContext(context.Background()), want: &ctxOut, idle: &svcOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcOut.Reset()
			ctxOut.Reset()
			svc := NewImportService(newFakeJobs(), &fakeLogs{}, svcLog)

			stats, err := svc.ImportBatch(tt.ctx, "osonish", []*domain.JobDraft{
				{Key: domain.SourceKey{Source: "other", SourceID: "7"}},
			})
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Failed)
			assert.Contains(t, tt.want.String(), "Failed to import record")
			assert.NotContains(t, tt.idle.String(), "Failed to import record")
		})
	}
}
