package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/eml-digest/config"
	"github.com/dhcgn/eml-digest/progress"
	"github.com/dhcgn/eml-digest/runner"
	"github.com/dhcgn/eml-digest/stats"
)

var rootCmd = &cobra.Command{
	Use:   "eml-digest",
	Short: "Render archived email messages into one chronological HTML digest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		slog.SetDefault(logger)
		logger.Info("starting eml-digest", "src", cfg.SrcDir, "output", cfg.OutputPath, "maxDepth", cfg.MaxDepth)

		return run(cmd, cfg, logger)
	},
	SilenceUsage: true,
}

func init() {
	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, cfg config.Config, logger *slog.Logger) error {
	reporter := stats.NewReporter(logger)
	bar := progress.New(cfg.LogLevel, cfg.Progress)

	r, err := runner.New(cfg, logger, reporter, bar)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	err = r.Run(cmd.Context())
	bar.Stop()
	reporter.Report()
	return err
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("eml-digest-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler), cleanup, nil
}
