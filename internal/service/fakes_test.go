package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/source"
)

type fakeJobs struct {
	mu   sync.Mutex
	rows map[string]*domain.Job

	failCreate    map[string]error
	failLifecycle map[string]bool
	beforeCreate  func(job *domain.Job)
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{rows: make(map[string]*domain.Job), failCreate: map[string]error{}, failLifecycle: map[string]bool{}}
}

func (f *fakeJobs) seed(id, sourceID string, status domain.SourceStatus) *domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &domain.Job{
		ID: id, Source: "osonish", SourceID: sourceID,
		SourceStatus: status,
		IsActive:     status == domain.SourceStatusActive,
	}
	f.rows[id] = job
	return job
}

func (f *fakeJobs) bySourceID(sourceID string) *domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.rows {
		if j.SourceID == sourceID {
			cp := *j
			return &cp
		}
	}
	return nil
}

func (f *fakeJobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeJobs) GetByKey(_ context.Context, key domain.SourceKey) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.rows {
		if j.Source == key.Source && j.SourceID == key.SourceID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobs) Create(_ context.Context, job *domain.Job) error {
	if f.beforeCreate != nil {
		f.beforeCreate(job)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreate[job.SourceID]; err != nil {
		return err
	}
	for _, j := range f.rows {
		if j.Source == job.Source && j.SourceID == job.SourceID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *job
	cp.CreatedAt = time.Now()
	f.rows[job.ID] = &cp
	return nil
}

func (f *fakeJobs) UpdateFromSource(_ context.Context, id string, d *domain.JobDraft, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	j.JobContent = d.Content
	j.IsActive = d.IsActive()
	j.SourceStatus = d.SourceStatus
	if j.IsActive {
		j.LastSeenAt = &seenAt
	}
	return nil
}

func (f *fakeJobs) sorted(source, afterID string, keep func(*domain.Job) bool) []*domain.Job {
	var out []*domain.Job
	for _, j := range f.rows {
		if j.Source == source && j.ID > afterID && keep(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (f *fakeJobs) page(rows []*domain.Job, limit int) []domain.Job {
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.Job, len(rows))
	for i, j := range rows {
		out[i] = *j
	}
	return out
}

func (f *fakeJobs) ListLifecycle(_ context.Context, source, afterID string, limit int) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page(f.sorted(source, afterID, func(*domain.Job) bool { return true }), limit), nil
}

func (f *fakeJobs) UpdateLifecycle(_ context.Context, id string, u domain.LifecycleUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if f.failLifecycle[j.SourceID] {
		return errors.New("connection reset")
	}
	j.IsActive = u.IsActive
	j.SourceStatus = u.SourceStatus
	checked, synced := u.LastCheckedAt, u.LastSyncedAt
	j.LastCheckedAt, j.LastSyncedAt = &checked, &synced
	if u.LastSeenAt != nil {
		seen := *u.LastSeenAt
		j.LastSeenAt = &seen
	}
	return nil
}

func (f *fakeJobs) ListUnmapped(_ context.Context, source, afterID string, limit int) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.sorted(source, afterID, func(j *domain.Job) bool {
		return j.RegionID == nil || j.DistrictID == nil || j.CategoryID == nil
	})
	return f.page(rows, limit), nil
}

func (f *fakeJobs) UpdateClassification(_ context.Context, id string, c domain.Classification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	j.RegionID, j.DistrictID, j.CategoryID = c.RegionID, c.DistrictID, c.CategoryID
	j.RegionName, j.DistrictName = c.RegionName, c.DistrictName
	return nil
}

type fakeLogs struct {
	mu   sync.Mutex
	logs []*domain.ImportLog
}

func (f *fakeLogs) Create(_ context.Context, log *domain.ImportLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *log
	f.logs = append(f.logs, &cp)
	return nil
}

func (f *fakeLogs) Complete(_ context.Context, log *domain.ImportLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.logs {
		if l.ID == log.ID {
			if l.CompletedAt != nil {
				return fmt.Errorf("log %s already completed", log.ID)
			}
			cp := *log
			f.logs[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeLogs) ListRecent(_ context.Context, source string, limit int) ([]domain.ImportLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ImportLog
	for i := len(f.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if source == "" || f.logs[i].Source == source {
			out = append(out, *f.logs[i])
		}
	}
	return out, nil
}

func (f *fakeLogs) last() *domain.ImportLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[len(f.logs)-1]
}

type fakeGeo struct {
	regions    []domain.Region
	districts  []domain.District
	categories []domain.Category
	mappings   []domain.SourceMapping
}

func ptr(v int64) *int64 { return &v }

func newFakeGeo() *fakeGeo {
	return &fakeGeo{
		regions: []domain.Region{
			{ID: 1, NameUz: "Toshkent shahri", NameRu: "г. Ташкент"},
			{ID: 2, NameUz: "Andijon viloyati", NameRu: "Андижанская область"},
			{ID: 3, NameUz: "Namangan viloyati", NameRu: "Наманганская область"},
		},
		districts: []domain.District{
			{ID: 20, RegionID: ptr(2), NameUz: "Asaka tumani"},
			{ID: 30, RegionID: ptr(3), NameUz: "Chust tumani"},
		},
		categories: []domain.Category{
			{ID: 5, NameUz: "Savdo", Keywords: domain.StringArray{"sotuvchi", "kassir"}},
		},
	}
}

func (f *fakeGeo) ListRegions(context.Context) ([]domain.Region, error) {
	return f.regions, nil
}

func (f *fakeGeo) ListDistricts(context.Context) ([]domain.District, error) {
	return f.districts, nil
}

func (f *fakeGeo) ListCategories(context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeGeo) ListMappings(_ context.Context, source string) ([]domain.SourceMapping, error) {
	var out []domain.SourceMapping
	for _, m := range f.mappings {
		if m.Source == source {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeSource serves fixed pages and details.
type fakeSource struct {
	mu       sync.Mutex
	pages    [][]source.ListItem
	details  map[string]*source.Vacancy
	listErr  map[int]error
	failing  map[string]error
	detailed []string
}

func (f *fakeSource) Name() string { return "osonish" }

func (f *fakeSource) FetchList(_ context.Context, page int) (*source.ListPage, error) {
	if err := f.listErr[page]; err != nil {
		return nil, err
	}
	if page > len(f.pages) {
		return &source.ListPage{Page: page}, nil
	}
	return &source.ListPage{Page: page, Items: f.pages[page-1], HasMore: page < len(f.pages)}, nil
}

func (f *fakeSource) FetchDetail(_ context.Context, id string) (*source.Vacancy, error) {
	f.mu.Lock()
	f.detailed = append(f.detailed, id)
	f.mu.Unlock()
	if err := f.failing[id]; err != nil {
		return nil, err
	}
	v, ok := f.details[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}
