// Package app wires configuration, storage, the remote client and the
// services into one object shared by the CLI and the API server.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/timmy/matchsync/internal/config"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/repository"
	"github.com/timmy/matchsync/internal/service"
	"github.com/timmy/matchsync/internal/source/sportmonks"
	"github.com/timmy/matchsync/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *gorm.DB
	Registry *prometheus.Registry
	Metrics  *service.Metrics

	Fixtures *repository.FixtureRepository
	Rows     *repository.RowRepository
	Runs     *repository.RunRepository

	Client   *sportmonks.Client
	Archive  *storage.PayloadArchive // nil when archiving is disabled
	Enrich   *service.EnrichService
	Catalog  *service.CatalogService
	Coverage *service.CoverageService
}

// New builds every component from cfg.
// Parameters:
//   - ctx: used for start-up checks such as the archive bucket.
//   - cfg: loaded configuration.
//   - log: base logger.
// Returns:
//   - *App: wired application; call Close when done.
//   - error: non-nil if the database or archive cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(reg)

	a := &App{
		Config:   cfg,
		Logger:   log,
		DB:       db,
		Registry: reg,
		Metrics:  metrics,
		Fixtures: repository.NewFixtureRepository(db, cfg.Enrich.FinalStatuses),
		Rows:     repository.NewRowRepository(db),
		Runs:     repository.NewRunRepository(db),
	}

	limiter := sportmonks.NewLimiter(cfg.Sportmonks.RequestDelay)
	a.Client = sportmonks.NewClient(&sportmonks.Config{
		BaseURL:     cfg.Sportmonks.BaseURL,
		APIToken:    cfg.Sportmonks.APIToken,
		Timeout:     cfg.Sportmonks.Timeout,
		MaxBulkSize: cfg.Sportmonks.MaxBulkSize,
		PerPage:     cfg.Sportmonks.PerPage,
		MaxPages:    cfg.Sportmonks.MaxPages,
	}, limiter).WithObserver(metrics)

	var archiver service.Archiver
	store, err := storage.NewArchiveStore(&cfg.Archive)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}
	if store != nil {
		if err := store.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure archive bucket: %w", err)
		}
		a.Archive = storage.NewPayloadArchive(store, cfg.Archive.Prefix)
		archiver = a.Archive
		log.WithField("bucket", cfg.Archive.Bucket).Info("Raw payload archive enabled")
	}

	reporter := service.NewProgressReporter()
	sink := service.NewUpsertSink(a.Rows)
	oracle := service.NewCompletenessOracle(a.Rows, cfg.Enrich.Threshold, cfg.Enrich.Thresholds)

	a.Enrich = service.NewEnrichService(a.Fixtures, a.Client, oracle, sink, archiver, a.Runs, reporter, log, &service.EnrichConfig{
		BatchSize:         cfg.Enrich.BatchSize,
		Workers:           cfg.Enrich.Workers,
		InterBatchDelay:   cfg.Enrich.InterBatchDelay,
		LongPauseInterval: cfg.Enrich.LongPauseInterval,
		LongPauseDelay:    cfg.Enrich.LongPauseDelay,
		RateLimitBackoff:  cfg.Enrich.RateLimitBackoff,
		MaxParents:        cfg.Enrich.MaxParents,
		MaxStoreFailures:  cfg.Enrich.MaxStoreFailures,
	}).WithMetrics(metrics)
	a.Catalog = service.NewCatalogService(a.Client, sink, a.Runs, reporter, log).WithMetrics(metrics)
	a.Coverage = service.NewCoverageService(a.Fixtures)

	return a, nil
}

// Close releases the database connection pool.
func (a *App) Close() {
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
