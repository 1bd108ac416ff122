package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/timmy/jobimport/internal/app"
	"github.com/timmy/jobimport/internal/config"
	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/repository"
	"github.com/timmy/jobimport/internal/service"
)

// Context is passed to every command's Run.
type Context struct {
	context.Context
	Config *config.Config
	Logger *logger.Logger
	Out    io.Writer
}

func (c *Context) open() (*app.App, error) {
	return app.New(c.Context, c.Config, c.Logger)
}

func (c *Context) print(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type RunCmd struct {
	Source   string `help:"Source to run (default: every enabled source)."`
	MaxPages int    `help:"Stop listing after N pages; skips reconciliation." default:"0"`
	Contacts string `help:"Contact filter: config, required or any." enum:"config,required,any" default:"config"`
}

func (r *RunCmd) onlyWithContacts() *bool {
	var v bool
	switch r.Contacts {
	case "required":
		v = true
	case "any":
		v = false
	default:
		return nil
	}
	return &v
}

func (r *RunCmd) Run(ctx *Context) error {
	a, err := ctx.open()
	if err != nil {
		return err
	}
	defer a.Close()

	sources := a.Pipeline.Sources()
	if r.Source != "" {
		sources = []string{r.Source}
	}
	opts := service.RunOptions{MaxPages: r.MaxPages, OnlyWithContacts: r.onlyWithContacts()}

	var firstErr error
	for _, name := range sources {
		report, err := a.Pipeline.Run(ctx, name, opts)
		if report != nil {
			if perr := ctx.print(report); perr != nil {
				return perr
			}
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("run %s: %w", name, err)
		}
	}
	return firstErr
}

// SyncCmd reads {"active_source_ids": [...], "filled_source_ids": [...]}.
type SyncCmd struct {
	Source string `required:"" help:"Source the ids belong to."`
	File   string `arg:"" type:"existingfile" help:"JSON file with active_source_ids and filled_source_ids."`
}

type syncFile struct {
	ActiveSourceIDs []string `json:"active_source_ids"`
	FilledSourceIDs []string `json:"filled_source_ids"`
}

func (s *SyncCmd) Run(ctx *Context) error {
	raw, err := os.ReadFile(s.File)
	if err != nil {
		return err
	}
	var ids syncFile
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode %s: %w", s.File, err)
	}

	a, err := ctx.open()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Sync.Reconcile(ctx, s.Source, ids.ActiveSourceIDs, ids.FilledSourceIDs)
	if err != nil {
		return err
	}
	return ctx.print(stats)
}

type RemapCmd struct {
	Source string `required:"" help:"Source whose vacancies are remapped."`
}

func (r *RemapCmd) Run(ctx *Context) error {
	a, err := ctx.open()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Remap.Remap(ctx, r.Source)
	if err != nil {
		return err
	}
	return ctx.print(stats)
}

type ReplayCmd struct {
	Source string `help:"Source of the snapshot."`
	Key    string `help:"Snapshot object key (default: newest for --source)."`
}

func (r *ReplayCmd) Run(ctx *Context) error {
	if r.Source == "" && r.Key == "" {
		return fmt.Errorf("--source or --key is required")
	}
	a, err := ctx.open()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Pipeline.Replay(ctx, r.Source, r.Key)
	if err != nil {
		return err
	}
	return ctx.print(report)
}

type SeedCmd struct {
	File string `arg:"" type:"existingfile" help:"Seed JSON with regions, districts, categories and mappings."`
}

func (s *SeedCmd) Run(ctx *Context) error {
	f, err := os.Open(s.File)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := repository.LoadSeedData(f)
	if err != nil {
		return err
	}

	a, err := ctx.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Geo.Apply(ctx, data); err != nil {
		return err
	}
	ctx.Logger.WithFields(logger.Fields{
		"regions":    len(data.Regions),
		"districts":  len(data.Districts),
		"categories": len(data.Categories),
		"mappings":   len(data.Mappings),
	}).Info("Seed applied")
	return nil
}

type LogsCmd struct {
	Source string `help:"Only logs of this source."`
	Limit  int    `help:"Maximum number of logs." default:"20"`
}

func (l *LogsCmd) Run(ctx *Context) error {
	a, err := ctx.open()
	if err != nil {
		return err
	}
	defer a.Close()

	logs, err := a.Logs.ListRecent(ctx, l.Source, l.Limit)
	if err != nil {
		return err
	}
	return ctx.print(logs)
}
