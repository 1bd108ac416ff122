package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/jobimport/internal/cache"
	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/source"
	"github.com/timmy/jobimport/internal/source/snapshot"
	"github.com/timmy/jobimport/internal/transform"
)

var (
	// ErrRunInProgress is returned when another run holds the source's lock.
	ErrRunInProgress = errors.New("a run for this source is already in progress")
	ErrUnknownSource = errors.New("unknown source")
	// ErrNoArchive is returned by Replay when snapshot storage is disabled.
	ErrNoArchive = errors.New("snapshot storage is not configured")
)

// SnapshotArchive keeps raw fetched vacancies for audit and replay.
type SnapshotArchive interface {
	Save(ctx context.Context, sourceName, runID string, fetchedAt time.Time, vacancies []*source.Vacancy) (string, error)
	Open(ctx context.Context, key string, pageSize int) (*snapshot.Reader, error)
	Latest(ctx context.Context, sourceName string) (string, error)
	Prune(ctx context.Context, sourceName string, keep int) (int, error)
}

// PipelineConfig holds configuration for the pipeline service.
type PipelineConfig struct {
	Workers          int
	TransformWorkers int
	LockTTL          time.Duration
	Snapshot         bool
	// SnapshotKeep is how many snapshots per source survive a run; 0 keeps all.
	SnapshotKeep     int
	// MaxPages and OnlyWithContacts are defaults for RunOptions.
	MaxPages         int
	OnlyWithContacts bool
}

// RunOptions tune a single run. Zero values fall back to PipelineConfig.
type RunOptions struct {
	MaxPages         int   `json:"max_pages,omitempty"`
	OnlyWithContacts *bool `json:"only_with_contacts,omitempty"`
}

// RunReport is returned for every run that got past the lock, even when
// some stage failed.
type RunReport struct {
	RunID        string    `json:"run_id"`
	Source       string    `json:"source"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Pages        int       `json:"pages"`
	ListComplete bool      `json:"list_complete"`
	Listed       int       `json:"listed"`
	Fetched      int       `json:"fetched"`
	Missing      int       `json:"missing"`
	NoContacts   int       `json:"skipped_no_contacts"`
	SnapshotKey  string    `json:"snapshot_key,omitempty"`

	Import      *ImportStats `json:"import,omitempty"`
	Sync        *SyncStats   `json:"sync,omitempty"`
	SyncSkipped bool         `json:"sync_skipped"`
	Notes       []string     `json:"notes,omitempty"`
}

func (r *RunReport) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// PipelineService chains fetch, transform, import and reconcile for a source.
type PipelineService struct {
	sources  map[string]source.Source
	geo      GeoStore
	importer *ImportService
	syncer   *SyncService
	archive  SnapshotArchive
	locker   cache.Locker
	logger   *logger.Logger
	cfg      PipelineConfig
	now      func() time.Time
}

// NewPipelineService creates a new pipeline service. archive may be nil.
func NewPipelineService(
	sources []source.Source,
	geoStore GeoStore,
	importer *ImportService,
	syncer *SyncService,
	archive SnapshotArchive,
	locker cache.Locker,
	log *logger.Logger,
	cfg PipelineConfig,
) *PipelineService {
	byName := make(map[string]source.Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	return &PipelineService{
		sources:  byName,
		geo:      geoStore,
		importer: importer,
		syncer:   syncer,
		archive:  archive,
		locker:   locker,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Sources returns the configured source names in sorted order.
func (s *PipelineService) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *PipelineService) lock(ctx context.Context, sourceName string) (func(), error) {
	release, err := s.locker.TryLock(ctx, "run:"+sourceName, s.cfg.LockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return release, nil
}

// Run performs one full import of a source: list every page, fetch the
// details, transform, import, then reconcile lifecycle. Reconciliation
// is skipped when the listing was incomplete so unseen live rows are not
// marked removed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceName: configured source to run.
//   - opts: per-run overrides.
// Returns:
//   - *RunReport: stage counters and notes; nil only when the run never started.
//   - error: ErrUnknownSource, ErrRunInProgress, or a fatal stage error.
func (s *PipelineService) Run(ctx context.Context, sourceName string, opts RunOptions) (*RunReport, error) {
	src, ok := s.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}
	release, err := s.lock(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	defer release()

	maxPages := s.cfg.MaxPages
	if opts.MaxPages > 0 {
		maxPages = opts.MaxPages
	}
	onlyWithContacts := s.cfg.OnlyWithContacts
	if opts.OnlyWithContacts != nil {
		onlyWithContacts = *opts.OnlyWithContacts
	}

	report := &RunReport{RunID: uuid.New().String(), Source: sourceName, StartedAt: s.now()}
	ctx = logger.SetSource(logger.SetRun(ctx, report.RunID, "pipeline"), sourceName)
	log := logger.FromContext(ctx)
	log.WithFields(logger.Fields{"max_pages": maxPages, "only_with_contacts": onlyWithContacts}).Info("Starting pipeline run")

	mapper, err := loadMapper(ctx, s.geo, sourceName)
	if err != nil {
		return report, err
	}

	items := s.list(ctx, src, maxPages, report)
	vacancies, fetchFailures := s.fetchDetails(ctx, src, items, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	activeIDs, filledIDs := splitByStatus(items, vacancies)

	if s.cfg.Snapshot && s.archive != nil && len(vacancies) > 0 {
		key, err := s.archive.Save(ctx, sourceName, report.RunID, report.StartedAt, vacancies)
		if err != nil {
			log.WithError(err).Warn("Failed to archive snapshot")
			report.note("snapshot not archived: %v", err)
		} else {
			report.SnapshotKey = key
			if removed, err := s.archive.Prune(ctx, sourceName, s.cfg.SnapshotKeep); err != nil {
				log.WithError(err).Warn("Failed to prune snapshots")
			} else if removed > 0 {
				log.WithField(logger.FieldCount, removed).Info("Pruned old snapshots")
			}
		}
	}

	if onlyWithContacts {
		kept := vacancies[:0]
		for _, v := range vacancies {
			if v.HasContacts() {
				kept = append(kept, v)
			}
		}
		report.NoContacts = len(vacancies) - len(kept)
		vacancies = kept
	}

	stats, err := s.importVacancies(ctx, mapper, vacancies, fetchFailures)
	report.Import = stats
	if err != nil {
		return s.finish(ctx, report), err
	}

	if !report.ListComplete {
		report.SyncSkipped = true
		report.note("reconciliation skipped: source listing incomplete")
		return s.finish(ctx, report), nil
	}
	if len(activeIDs) == 0 && len(filledIDs) == 0 {
		report.SyncSkipped = true
		report.note("reconciliation skipped: source listed no vacancies")
		return s.finish(ctx, report), nil
	}

	syncStats, err := s.syncer.Reconcile(ctx, sourceName, activeIDs, filledIDs)
	report.Sync = syncStats
	return s.finish(ctx, report), err
}

// Replay imports a stored snapshot without touching the source. An empty
// key replays the newest snapshot of sourceName. Reconciliation is not run.
func (s *PipelineService) Replay(ctx context.Context, sourceName, key string) (*RunReport, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	if key == "" {
		latest, err := s.archive.Latest(ctx, sourceName)
		if err != nil {
			return nil, err
		}
		key = latest
	}

	r, err := s.archive.Open(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	if sourceName == "" {
		sourceName = r.Name()
	}
	if r.Name() != "" && r.Name() != sourceName {
		return nil, fmt.Errorf("snapshot %s belongs to source %q", key, r.Name())
	}

	release, err := s.lock(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &RunReport{
		RunID:       uuid.New().String(),
		Source:      sourceName,
		StartedAt:   s.now(),
		SyncSkipped: true,
		SnapshotKey: key,
	}
	ctx = logger.SetSource(logger.SetRun(ctx, report.RunID, "replay"), sourceName)

	mapper, err := loadMapper(ctx, s.geo, sourceName)
	if err != nil {
		return report, err
	}

	// The snapshot is served as a source, so replay pages and fetches the
	// same way a live run does.
	items := s.list(ctx, r, 0, report)
	vacancies, fetchFailures := s.fetchDetails(ctx, r, items, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	stats, err := s.importVacancies(ctx, mapper, vacancies, fetchFailures)
	report.Import = stats
	return s.finish(ctx, report), err
}

func (s *PipelineService) importVacancies(ctx context.Context, mapper *transform.Mapper, vacancies []*source.Vacancy, rejected []RecordFailure) (*ImportStats, error) {
	drafts, failures, err := mapper.TransformAll(ctx, vacancies, s.cfg.TransformWorkers)
	if err != nil {
		return nil, err
	}
	for _, f := range failures {
		rejected = append(rejected, RecordFailure{SourceID: f.SourceID, Operation: OpTransform, Error: f.Err.Error()})
	}
	return s.importer.ImportBatch(ctx, mapper.Source, drafts, rejected...)
}

func (s *PipelineService) finish(ctx context.Context, report *RunReport) *RunReport {
	report.FinishedAt = s.now()
	entry := logger.With(logger.Fields{
		"pages":        report.Pages,
		"listed":       report.Listed,
		"fetched":      report.Fetched,
		"sync_skipped": report.SyncSkipped,
	}).WithSince(report.StartedAt)
	if report.Import != nil {
		entry = entry.With(logger.Fields{"inserted": report.Import.Inserted, "updated": report.Import.Updated, "failed": report.Import.Failed})
	}
	entry.Info(ctx, "Pipeline run finished")
	return report
}

// list pages through the source. ListComplete is set only when the last
// page was reached without errors.
func (s *PipelineService) list(ctx context.Context, src source.Source, maxPages int, report *RunReport) []source.ListItem {
	var items []source.ListItem
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			report.note("listing stopped at page limit %d", maxPages)
			return items
		}
		if ctx.Err() != nil {
			return items
		}

		lp, err := src.FetchList(ctx, page)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("page", page).Error("Failed to fetch list page")
			report.note("list page %d failed: %v", page, err)
			return items
		}
		report.Pages++

		for _, it := range lp.Items {
			id := strings.TrimSpace(it.SourceID)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			it.SourceID = id
			items = append(items, it)
		}
		report.Listed = len(items)

		if !lp.HasMore || len(lp.Items) == 0 {
			report.ListComplete = true
			return items
		}
	}
}

type detailResult struct {
	index   int
	vacancy *source.Vacancy
	err     error
}

// fetchDetails loads every listed vacancy with a fixed pool of workers.
// Results keep listing order; missing details are counted, not failed.
func (s *PipelineService) fetchDetails(ctx context.Context, src source.Source, items []source.ListItem, report *RunReport) ([]*source.Vacancy, []RecordFailure) {
	jobsChan := make(chan int, s.cfg.Workers*2)
	resultsChan := make(chan detailResult, s.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobsChan {
				if ctx.Err() != nil {
					resultsChan <- detailResult{index: idx, err: ctx.Err()}
					continue
				}
				v, err := src.FetchDetail(ctx, items[idx].SourceID)
				resultsChan <- detailResult{index: idx, vacancy: v, err: err}
			}
		}()
	}

	go func() {
		defer close(jobsChan)
		for i := range items {
			select {
			case jobsChan <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	byIndex := make([]*source.Vacancy, len(items))
	var failures []RecordFailure
	for r := range resultsChan {
		id := items[r.index].SourceID
		switch {
		case r.err != nil:
			logger.FromContext(ctx).WithError(r.err).WithField(logger.FieldSourceID, id).Warn("Failed to fetch vacancy detail")
			failures = append(failures, RecordFailure{SourceID: id, Operation: OpFetch, Error: r.err.Error()})
		case r.vacancy == nil:
			report.Missing++
		default:
			if r.vacancy.SourceID == "" {
				r.vacancy.SourceID = id
			}
			if r.vacancy.StatusCode == 0 {
				r.vacancy.StatusCode = items[r.index].StatusCode
			}
			byIndex[r.index] = r.vacancy
		}
	}

	vacancies := make([]*source.Vacancy, 0, len(items))
	for _, v := range byIndex {
		if v != nil {
			vacancies = append(vacancies, v)
		}
	}
	report.Fetched = len(vacancies)
	sort.Slice(failures, func(i, j int) bool { return failures[i].SourceID < failures[j].SourceID })
	return vacancies, failures
}

// splitByStatus builds the reconcile id sets. A filled status from either
// the listing or the detail wins.
func splitByStatus(items []source.ListItem, vacancies []*source.Vacancy) (active, filled []string) {
	isFilled := make(map[string]bool, len(items))
	for _, it := range items {
		isFilled[it.SourceID] = transform.SourceStatus(it.StatusCode) == domain.SourceStatusFilled
	}
	for _, v := range vacancies {
		if transform.SourceStatus(v.StatusCode) == domain.SourceStatusFilled {
			isFilled[v.SourceID] = true
		}
	}
	for _, it := range items {
		if isFilled[it.SourceID] {
			filled = append(filled, it.SourceID)
		} else {
			active = append(active, it.SourceID)
		}
	}
	return active, filled
}
