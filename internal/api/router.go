package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/jobimport/internal/api/handler"
	"github.com/timmy/jobimport/internal/api/middleware"
	"github.com/timmy/jobimport/internal/config"
	"github.com/timmy/jobimport/internal/logger"
)

// Services bundles what the routes call into.
type Services struct {
	Sync     handler.Reconciler
	Pipeline handler.PipelineRunner
	Remap    handler.Remapper
	Logs     handler.LogLister
	Counter  handler.JobCounter
	Health   map[string]handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, svc Services, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.Health)
	importHandler := handler.NewImportHandler(svc.Sync, svc.Pipeline, svc.Remap, svc.Logs, svc.Counter, log)

	// Health check
	r.GET("/health", healthHandler.Health)

	imports := r.Group("/import", middleware.ImportKey(cfg.Import.APIKey))
	{
		imports.POST("/sync", importHandler.Sync)
		imports.POST("/run", importHandler.Run)
		imports.POST("/replay", importHandler.Replay)
		imports.POST("/remap", importHandler.Remap)
		imports.GET("/logs", importHandler.Logs)
		imports.GET("/status", importHandler.Status)
	}

	return r
}
