package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"vacancy_insight/internal/domain"
)

type SettingsLoader interface {
	Load(ctx context.Context) (domain.PollingSettings, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.RawVacancy, error)
}

type BatchIngestor interface {
	IngestBatch(ctx context.Context, items []domain.RawVacancy) (*domain.IngestStats, error)
}

type Config struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// CycleTimeout bounds one cycle; zero means unbounded.
	CycleTimeout time.Duration
	// MaxLimit caps the per-cycle fetch size whatever the stored settings say.
	MaxLimit int
}

// Poller periodically fetches the configured search and ingests what it
// finds. It alternates between sleeping and running a cycle until its
// context is cancelled; a cycle already running is allowed to finish.
type Poller struct {
	settings SettingsLoader
	fetcher  Fetcher
	ingestor BatchIngestor
	cfg      Config
	logger   *slog.Logger
}

func NewPoller(settings SettingsLoader, fetcher Fetcher, ingestor BatchIngestor, cfg Config, logger *slog.Logger) *Poller {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = domain.DefaultPollLimit
	}
	return &Poller{
		settings: settings,
		fetcher:  fetcher,
		ingestor: ingestor,
		cfg:      cfg,
		logger:   logger.With("component", "poller"),
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"startup_delay", p.cfg.StartupDelay,
		"max_limit", p.cfg.MaxLimit,
	)

	if !sleep(ctx, p.cfg.StartupDelay) {
		p.logger.Info("poller stopped")
		return ctx.Err()
	}

	for {
		p.runCycle(ctx)

		if !sleep(ctx, p.cfg.Interval) {
			p.logger.Info("poller stopped")
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports whether the context is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	logger := p.logger.With("cycle_id", uuid.NewString())

	cycleCtx := context.WithoutCancel(ctx)
	if p.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(cycleCtx, p.cfg.CycleTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("polling cycle panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := p.cycle(cycleCtx, logger); err != nil {
		logger.Error("polling cycle failed", "error", err)
	}
}

func (p *Poller) cycle(ctx context.Context, logger *slog.Logger) error {
	settings, err := p.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if !settings.Enabled {
		logger.Info("polling disabled, cycle skipped")
		return nil
	}

	query := strings.TrimSpace(settings.Query())
	if query == "" {
		logger.Info("polling query is empty, cycle skipped")
		return nil
	}

	limit := min(max(settings.Limit, 1), p.cfg.MaxLimit)
	area := settings.Area
	if area <= 0 {
		area = domain.DefaultPollArea
	}

	logger.Info("polling cycle start",
		"query", query,
		"limit", limit,
		"area", area,
		"only_with_salary", settings.OnlyWithSalary,
	)

	start := time.Now()
	items, err := p.fetcher.Fetch(ctx, domain.SearchQuery{
		Text:           query,
		Limit:          limit,
		Area:           &area,
		OnlyWithSalary: settings.OnlyWithSalary,
		Light:          true,
	})
	if err != nil {
		return fmt.Errorf("fetch vacancies: %w", err)
	}
	fetchTime := time.Since(start)

	dbStart := time.Now()
	stats, err := p.ingestor.IngestBatch(ctx, items)
	if err != nil {
		return fmt.Errorf("ingest vacancies: %w", err)
	}

	logger.Info("polling cycle end",
		"fetched", len(items),
		"added", stats.Created,
		"skipped", stats.Skipped,
		"fetch_time", fetchTime,
		"db_time", time.Since(dbStart),
		"total", time.Since(start),
	)

	return nil
}
