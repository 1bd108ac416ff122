// Package scheduler wires up the cron job that periodically runs the
// import pipeline for every configured source.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/service"
)

// Runner is the part of the pipeline the scheduler drives.
type Runner interface {
	Sources() []string
	Run(ctx context.Context, sourceName string, opts service.RunOptions) (*service.RunReport, error)
}

// Scheduler wraps robfig/cron and manages the import loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "@every 6h"
	log    *logger.Logger
}

// New creates a Scheduler for spec. Ticks that arrive while the previous
// cycle is still running are skipped.
func New(runner Runner, spec string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetDefault()
	}
	log = log.WithField(logger.FieldComponent, "scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		spec:   spec,
		log:    log,
	}
}

// Start registers the job and starts the scheduler. With runNow one cycle
// also starts immediately in the background.
func (s *Scheduler) Start(ctx context.Context, runNow bool) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.WithField("spec", s.spec).Info("Cron started")

	if runNow {
		go s.RunCycle(ctx)
	}
	return nil
}

// Stop halts the scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Cron stopped")
}

// RunCycle runs the pipeline once per source, in order. A failing source
// does not stop the others.
func (s *Scheduler) RunCycle(ctx context.Context) {
	ctx = logger.SetComponent(s.log.WithContext(ctx), "scheduler")
	sources := s.runner.Sources()
	s.log.WithField(logger.FieldCount, len(sources)).Info("Import cycle started")

	for _, name := range sources {
		if ctx.Err() != nil {
			return
		}
		report, err := s.runner.Run(ctx, name, service.RunOptions{})
		switch {
		case errors.Is(err, service.ErrRunInProgress):
			s.log.WithField(logger.FieldSource, name).Warn("Previous run still in progress, skipping")
		case err != nil:
			s.log.WithError(err).WithField(logger.FieldSource, name).Error("Pipeline run failed")
		default:
			s.log.WithFields(logger.Fields{
				logger.FieldSource: name,
				logger.FieldRunID:  report.RunID,
				"sync_skipped":     report.SyncSkipped,
			}).Info("Pipeline run completed")
		}
	}

	s.log.Info("Import cycle complete")
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).WithFields(kvFields(keysAndValues)).Error(msg)
}

func kvFields(kv []interface{}) logger.Fields {
	f := make(logger.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
