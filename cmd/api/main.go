package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/jobimport/internal/api"
	"github.com/timmy/jobimport/internal/app"
	"github.com/timmy/jobimport/internal/config"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/scheduler"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Logger("jobimport-api"))
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize services")
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(a.Pipeline, cfg.Scheduler.Spec, appLogger)
		if err := sched.Start(ctx, cfg.Scheduler.RunOnStart); err != nil {
			appLogger.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	router := api.SetupRouter(cfg, api.Services{
		Sync:     a.Sync,
		Pipeline: a.Pipeline,
		Remap:    a.Remap,
		Logs:     a.Logs,
		Counter:  a.Jobs,
		Health:   a.HealthChecks(),
	}, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if sched != nil {
		sched.Stop()
	}

	appLogger.Info("Server exited")
}
