package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"vacancy_insight/internal/config"
	"vacancy_insight/internal/publisher"
	"vacancy_insight/internal/service"
	"vacancy_insight/internal/settings"
	"vacancy_insight/internal/source/hh"
	"vacancy_insight/internal/storage/postgres"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:          "vacancyd",
	Short:        "Vacancy ingestion service",
	Long:         "vacancyd pulls job postings from hh.ru, normalizes them and stores them in Postgres.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: VACANCYD_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit flag > VACANCYD_CONFIG env var > "./config.yaml"
func loadConfig() (*config.Config, *slog.Logger, error) {
	path := cfgPath
	if path == "" {
		if env := os.Getenv("VACANCYD_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger := setupLogger("info")
		logger.Error("failed to load config", "path", path, "error", err)
		return nil, nil, err
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	return cfg, setupLogger(level), nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// app holds the wired pipeline and everything that must be released on exit.
type app struct {
	db        *sqlx.DB
	source    *hh.Source
	ingest    *service.IngestService
	publisher *publisher.RabbitMQ
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	a := &app{db: db}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.publisher = rabbitMQ
		pub = rabbitMQ
	}

	a.source = hh.New(hh.Config{
		BaseURL:        cfg.API.BaseURL,
		PageSize:       cfg.API.PageSize,
		UserAgent:      cfg.API.UserAgent,
		Timeout:        cfg.API.Timeout,
		Concurrency:    cfg.API.Concurrency,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
	}, logger)

	a.ingest = service.NewIngestService(
		a.source,
		postgres.NewVacancyStore(db),
		postgres.NewCompanyStore(db),
		postgres.NewReferenceStore(db),
		postgres.NewPollStateStore(db),
		postgres.NewTransactionManager(db),
		pub,
		logger,
	)

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	_ = a.db.Close()
}

// openSettings returns the configured settings store and a release func.
func openSettings(ctx context.Context, cfg *config.Config, logger *slog.Logger) (settings.Store, func(), error) {
	if cfg.Settings.Backend == config.SettingsBackendRedis {
		client, err := settings.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return settings.NewRedisStore(client, cfg.Settings.RedisKey, logger), func() { _ = client.Close() }, nil
	}
	return settings.NewFileStore(cfg.Settings.Path, logger), func() {}, nil
}
