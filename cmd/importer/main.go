package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/timmy/jobimport/internal/config"
	"github.com/timmy/jobimport/internal/logger"
)

// CLI is the importer command tree.
type CLI struct {
	Config  string `help:"Path to config file." env:"CONFIG_PATH" type:"path"`
	Verbose bool   `help:"Enable debug logging."`

	Run    RunCmd    `cmd:"" help:"Fetch, import and reconcile a source."`
	Sync   SyncCmd   `cmd:"" help:"Reconcile stored vacancies against id lists from a file."`
	Remap  RemapCmd  `cmd:"" help:"Backfill missing region, district and category ids."`
	Replay ReplayCmd `cmd:"" help:"Import an archived snapshot."`
	Seed   SeedCmd   `cmd:"" help:"Load regions, districts, categories and source mappings."`
	Logs   LogsCmd   `cmd:"" help:"List recent run logs."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("importer"),
		kong.Description("Vacancy import pipeline."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cli.Verbose {
		cfg.Log.Level = "debug"
	}
	// The CLI logs to stderr and leaves stdout to command output.
	logCfg := cfg.Log.Logger("jobimport-cli")
	logCfg.Output = os.Stderr
	appLogger := logger.New(logCfg)
	logger.SetDefaultLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&Context{
		Context: ctx,
		Config:  cfg,
		Logger:  appLogger,
		Out:     os.Stdout,
	})
	_ = logger.Sync()
	if err != nil {
		appLogger.WithError(err).Error("Command failed")
		stop()
		os.Exit(1)
	}
}
