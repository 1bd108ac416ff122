package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/jobimport/internal/domain"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/service"
	"github.com/timmy/jobimport/internal/storage"
)

// The import endpoints depend on these narrow views of the services.
type (
	Reconciler interface {
		Reconcile(ctx context.Context, source string, activeIDs, filledIDs []string) (*service.SyncStats, error)
	}
	PipelineRunner interface {
		Sources() []string
		Run(ctx context.Context, sourceName string, opts service.RunOptions) (*service.RunReport, error)
		Replay(ctx context.Context, sourceName, key string) (*service.RunReport, error)
	}
	Remapper interface {
		Remap(ctx context.Context, source string) (*service.RemapStats, error)
	}
	LogLister interface {
		ListRecent(ctx context.Context, source string, limit int) ([]domain.ImportLog, error)
	}
	JobCounter interface {
		CountBySource(ctx context.Context, source string) (active, total int64, err error)
	}
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 200
)

// ImportHandler serves the /import endpoints.
type ImportHandler struct {
	sync     Reconciler
	pipeline PipelineRunner
	remap    Remapper
	logs     LogLister
	counter  JobCounter
	logger   *logger.Logger
}

// NewImportHandler creates a new import handler.
// Parameters:
//   - sync: reconciliation engine behind POST /import/sync.
//   - pipeline: full-run orchestrator behind /import/run and /import/replay.
//   - remap: backfill behind /import/remap.
//   - logs: run log reader behind GET /import/logs.
//   - counter: row counts behind GET /import/status.
//   - log: logger instance.
// Returns:
//   - *ImportHandler: initialized handler.
func NewImportHandler(sync Reconciler, pipeline PipelineRunner, remap Remapper, logs LogLister, counter JobCounter, log *logger.Logger) *ImportHandler {
	return &ImportHandler{sync: sync, pipeline: pipeline, remap: remap, logs: logs, counter: counter, logger: log}
}

// log returns a logger from Gin context if available, otherwise returns the default logger
func (h *ImportHandler) log(c *gin.Context) *logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if log, ok := l.(*logger.Logger); ok {
			return log
		}
	}
	return h.logger
}

// SyncRequest is the body of POST /import/sync. At least one id list must
// be non-empty.
type SyncRequest struct {
	Source          string   `json:"source" binding:"required"`
	ActiveSourceIDs []string `json:"active_source_ids"`
	FilledSourceIDs []string `json:"filled_source_ids"`
}

// RunRequest is the body of POST /import/run. Every field is optional.
type RunRequest struct {
	Source           string `json:"source"`
	MaxPages         int    `json:"max_pages" binding:"min=0"`
	OnlyWithContacts *bool  `json:"only_with_contacts"`
}

// SourceRequest names the source of POST /import/remap.
type SourceRequest struct {
	Source string `json:"source" binding:"required"`
}

// ReplayRequest is the body of POST /import/replay. An empty key replays
// the newest snapshot of the source.
type ReplayRequest struct {
	Source string `json:"source"`
	Key    string `json:"key"`
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// Sync reconciles stored rows against the ids the caller saw at the source.
func (h *ImportHandler) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	stats, err := h.sync.Reconcile(runContext(c), strings.TrimSpace(req.Source), req.ActiveSourceIDs, req.FilledSourceIDs)
	if err != nil {
		h.respondError(c, "sync", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// Run fetches, transforms, imports and reconciles one source.
func (h *ImportHandler) Run(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	sourceName := strings.TrimSpace(req.Source)
	if sourceName == "" {
		sources := h.pipeline.Sources()
		if len(sources) != 1 {
			fail(c, http.StatusBadRequest, errors.New("source is required"))
			return
		}
		sourceName = sources[0]
	}

	report, err := h.pipeline.Run(runContext(c), sourceName, service.RunOptions{
		MaxPages:         req.MaxPages,
		OnlyWithContacts: req.OnlyWithContacts,
	})
	if err != nil && report == nil {
		h.respondError(c, "run", err)
		return
	}
	if err != nil {
		h.log(c).WithError(err).Error("Pipeline run ended with error")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

// Replay imports an archived snapshot.
func (h *ImportHandler) Replay(c *gin.Context) {
	var req ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if req.Source == "" && req.Key == "" {
		fail(c, http.StatusBadRequest, errors.New("source or key is required"))
		return
	}

	report, err := h.pipeline.Replay(runContext(c), strings.TrimSpace(req.Source), strings.TrimSpace(req.Key))
	if err != nil {
		h.respondError(c, "replay", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

// Remap backfills missing location and category ids.
func (h *ImportHandler) Remap(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	stats, err := h.remap.Remap(runContext(c), strings.TrimSpace(req.Source))
	if err != nil {
		h.respondError(c, "remap", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// Logs lists recent run logs, newest first.
func (h *ImportHandler) Logs(c *gin.Context) {
	limit := defaultLogLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := h.logs.ListRecent(c.Request.Context(), c.Query("source"), limit)
	if err != nil {
		h.respondError(c, "logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

// Status reports stored row counts per source.
func (h *ImportHandler) Status(c *gin.Context) {
	sources := h.pipeline.Sources()
	if s := c.Query("source"); s != "" {
		sources = []string{s}
	}

	out := make([]gin.H, 0, len(sources))
	for _, name := range sources {
		active, total, err := h.counter.CountBySource(c.Request.Context(), name)
		if err != nil {
			h.respondError(c, "status", err)
			return
		}
		out = append(out, gin.H{"source": name, "active": active, "total": total})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sources": out})
}

func (h *ImportHandler) respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		fail(c, http.StatusConflict, err)
	case errors.Is(err, service.ErrEmptySnapshot),
		errors.Is(err, service.ErrUnknownSource),
		errors.Is(err, service.ErrNoArchive):
		fail(c, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrObjectNotFound):
		fail(c, http.StatusNotFound, err)
	default:
		h.log(c).WithError(err).WithField("op", op).Error("Import request failed")
		fail(c, http.StatusInternalServerError, err)
	}
}

// runContext keeps a run going when the caller disconnects.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
