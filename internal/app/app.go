// Package app builds the object graph shared by the API server and the
// importer CLI.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/timmy/jobimport/internal/api/handler"
	"github.com/timmy/jobimport/internal/cache"
	"github.com/timmy/jobimport/internal/config"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/repository"
	"github.com/timmy/jobimport/internal/service"
	"github.com/timmy/jobimport/internal/source"
	"github.com/timmy/jobimport/internal/source/osonish"
	"github.com/timmy/jobimport/internal/storage"
)

// fetchCacheEntries bounds the in-process response cache used without redis.
const fetchCacheEntries = 5000

// App holds the wired services.
type App struct {
	DB    *gorm.DB
	Redis *redis.Client

	Jobs *repository.JobRepository
	Geo  *repository.GeoRepository
	Logs *repository.ImportLogRepository

	Import   *service.ImportService
	Sync     *service.SyncService
	Remap    *service.RemapService
	Pipeline *service.PipelineService
	Archive  *storage.SnapshotArchive // nil when storage is disabled
}

// New connects to the database, optional redis and object storage, then
// builds every service.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a := &App{
		DB:   db,
		Jobs: repository.NewJobRepository(db),
		Geo:  repository.NewGeoRepository(db),
		Logs: repository.NewImportLogRepository(db),
	}

	var fetchCache cache.Cache = cache.NewMemory(fetchCacheEntries)
	var locker cache.Locker = cache.NewLocalLocker()
	if cfg.Redis.URL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.Redis = rdb
		fetchCache = cache.NewRedis(rdb, cfg.Redis.Prefix+"cache:")
		locker = cache.NewRedisLocker(rdb, cfg.Redis.Prefix+"lock:")
		log.Info("Redis cache and run lock enabled")
	}

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	var archive service.SnapshotArchive
	if store != nil {
		if b, ok := store.(interface{ EnsureBucket(context.Context) error }); ok {
			if err := b.EnsureBucket(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("ensure bucket: %w", err)
			}
		}
		a.Archive = storage.NewSnapshotArchive(store, cfg.Storage.Prefix)
		archive = a.Archive
		log.WithField("bucket", cfg.Storage.Bucket).Info("Snapshot storage enabled")
	}

	var sources []source.Source
	if oc := cfg.Sources.OsonIsh; oc.Enabled {
		sources = append(sources, osonish.NewClient(osonish.Config{
			BaseURLs:          oc.BaseURLs,
			ListPath:          oc.ListPath,
			DetailPath:        oc.DetailPath,
			PageSize:          oc.PageSize,
			MaxRetries:        oc.MaxRetries,
			RetryDelay:        oc.RetryDelay,
			Timeout:           oc.Timeout,
			RequestsPerSecond: oc.RequestsPerSecond,
			CacheTTL:          oc.CacheTTL,
		}, osonish.WithCache(fetchCache)))
	}

	a.Import = service.NewImportService(a.Jobs, a.Logs, log)
	a.Sync = service.NewSyncService(a.Jobs, a.Logs, log)
	a.Remap = service.NewRemapService(a.Jobs, a.Geo, a.Logs, log)
	a.Pipeline = service.NewPipelineService(sources, a.Geo, a.Import, a.Sync, archive, locker, log, service.PipelineConfig{
		Workers:          cfg.Pipeline.Workers,
		TransformWorkers: cfg.Pipeline.TransformWorkers,
		LockTTL:          cfg.Pipeline.LockTTL,
		Snapshot:         cfg.Pipeline.Snapshot,
		SnapshotKeep:     cfg.Pipeline.SnapshotKeep,
		MaxPages:         cfg.Pipeline.MaxPages,
		OnlyWithContacts: cfg.Pipeline.OnlyWithContacts,
	})
	return a, nil
}

// HealthChecks returns the dependency checks for the health endpoint.
func (a *App) HealthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases connections. It is safe to call on a partial App.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
