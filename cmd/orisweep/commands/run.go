package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/timmy/orisweep/internal/browser"
	"github.com/timmy/orisweep/internal/config"
	"github.com/timmy/orisweep/internal/logger"
	"github.com/timmy/orisweep/internal/portal"
	"github.com/timmy/orisweep/internal/report"
	"github.com/timmy/orisweep/internal/repository"
	"github.com/timmy/orisweep/internal/service"
	"github.com/timmy/orisweep/internal/staging"
	"github.com/timmy/orisweep/internal/storage"
)

type runFlags struct {
	fileType      string
	examplePrefix string
	ready         string
	headless      bool
	stagingDir    string
	maxAttempts   int
}

var runOpts runFlags

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.fileType, "file-type", "", "Suffix for renamed exports, e.g. offenses.")
	f.StringVar(&runOpts.examplePrefix, "example-prefix", "", "Filename prefix the portal gives its CSV downloads.")
	f.StringVar(&runOpts.ready, "ready", "", "Readiness gate: manual or auto.")
	f.BoolVar(&runOpts.headless, "headless", false, "Run Chrome without a window.")
	f.StringVar(&runOpts.stagingDir, "staging-dir", "", "Directory the browser downloads into.")
	f.IntVar(&runOpts.maxAttempts, "max-attempts", 0, "Tries per agency before it is skipped.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--file-type <type>] [--example-prefix <prefix>]",
	Short: "Exports and renames the CSV of every agency in the selector.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		console := service.NewConsole(os.Stdin, cmd.OutOrStdout())
		if err := promptMissing(cmd.Context(), console, &cfg.Export); err != nil {
			return err
		}
		return runSweep(cmd.Context(), cfg, console, cmd.OutOrStdout())
	},
}

// applyRunFlags lays explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("file-type") {
		cfg.Export.FileType = runOpts.fileType
	}
	if f.Changed("example-prefix") {
		cfg.Export.ExamplePrefix = runOpts.examplePrefix
	}
	if f.Changed("ready") {
		cfg.Export.ReadyMode = runOpts.ready
	}
	if f.Changed("headless") {
		cfg.Browser.Headless = runOpts.headless
	}
	if f.Changed("staging-dir") {
		cfg.Export.StagingDir = runOpts.stagingDir
	}
	if f.Changed("max-attempts") {
		cfg.Retry.MaxAttempts = runOpts.maxAttempts
	}
	return cfg.Validate()
}

// promptMissing asks for the file type and then the example prefix when
// neither a flag nor the configuration supplied them.
func promptMissing(ctx context.Context, console *service.Console, cfg *config.ExportConfig) error {
	if cfg.FileType == "" {
		v, err := console.Ask(ctx, "Input file type: ")
		if err != nil {
			return err
		}
		cfg.FileType = v
	}
	if cfg.ExamplePrefix == "" {
		v, err := console.Ask(ctx, "Input file example: ")
		if err != nil {
			return err
		}
		cfg.ExamplePrefix = v
	}
	if cfg.FileType == "" || cfg.ExamplePrefix == "" {
		return errors.New("file type and example prefix are required")
	}
	return nil
}

func runSweep(ctx context.Context, cfg *config.Config, console *service.Console, out io.Writer) error {
	appLogger := logger.GetDefault()

	if cfg.Portal.Preflight {
		if err := portal.NewChecker(cfg.Portal.PreflightTimeout).Check(ctx, cfg.Portal.URL); err != nil {
			return err
		}
	}

	dir, err := staging.Ensure(cfg.Export.StagingDir, staging.Options{
		Timeout:  cfg.Export.PollTimeout,
		Interval: cfg.Export.PollInterval,
	})
	if err != nil {
		return err
	}

	var recorder service.RunRecorder
	if cfg.Database.Enabled {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer repository.Close(db)
		recorder = repository.NewRunRepository(db)
	}

	var uploader service.Uploader
	if cfg.Archive.Enabled {
		archive, err := storage.NewStorage(&cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to initialize archive: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		uploader = archive
	}

	appLogger.WithFields(logger.Fields{
		"file_type":   cfg.Export.FileType,
		"prefix":      cfg.Export.ExamplePrefix,
		"staging_dir": dir.Path(),
		"samples":     dir.Samples(),
		"ready_mode":  cfg.Export.ReadyMode,
	}).Info("Starting sweep")

	session, err := browser.Launch(ctx, browser.Config{
		URL:         cfg.Portal.URL,
		DownloadDir: dir.Path(),
		Headless:    cfg.Browser.Headless,
		ExecPath:    cfg.Browser.ExecPath,
		NoSandbox:   cfg.Browser.NoSandbox,
		WaitTimeout: cfg.Browser.WaitTimeout,
	})
	if err != nil {
		return err
	}
	defer session.Close()
	dir.Track(session.Downloads())

	svc := service.NewExportService(session, dir, newGate(cfg, console), recorder, uploader, appLogger, &service.ExportConfig{
		PortalURL:              cfg.Portal.URL,
		FileType:               cfg.Export.FileType,
		ExamplePrefix:          cfg.Export.ExamplePrefix,
		SettleDelay:            cfg.Export.SettleDelay,
		ReloadDelay:            cfg.Export.ReloadDelay,
		MaxEnumerationRestarts: cfg.Export.MaxEnumerationRestarts,
		Retry: service.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
			Multiplier:     cfg.Retry.Multiplier,
		},
		ArchivePrefix: cfg.Archive.Prefix,
	})

	stats, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	report.WriteRun(out, stats.Run, stats.Results)
	return nil
}

func newGate(cfg *config.Config, console *service.Console) service.Gate {
	if cfg.Export.ReadyMode == "auto" {
		return &service.AutoGate{Timeout: cfg.Export.ReadyTimeout}
	}
	return &service.ManualGate{Console: console}
}
