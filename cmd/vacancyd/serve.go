package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vacancy_insight/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling daemon",
	Long:  "Poll hh.ru with the stored settings on a fixed interval; blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer a.Close()

	store, release, err := openSettings(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open settings store", "error", err)
		return err
	}
	defer release()

	poller := scheduler.NewPoller(store, a.source, a.ingest, scheduler.Config{
		Interval:     cfg.Polling.Interval,
		StartupDelay: cfg.Polling.StartupDelay,
		CycleTimeout: cfg.Polling.CycleTimeout,
		MaxLimit:     cfg.Polling.MaxLimit,
	}, logger)

	logger.Info("starting vacancy poller",
		"source", a.source.Name(),
		"settings_backend", cfg.Settings.Backend,
		"publisher_enabled", cfg.RabbitMQ.Enabled,
	)

	if err := poller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poller error", "error", err)
		return err
	}

	logger.Info("goodbye")
	return nil
}
