package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/source"
)

// CatalogService syncs paginated catalog collections (teams, players, ...)
// straight into their tables.
type CatalogService struct {
	fetcher  source.CollectionFetcher
	sink     *UpsertSink
	runs     RunStore
	reporter *ProgressReporter
	metrics  *Metrics
	logger   *logger.Logger
}

// NewCatalogService creates a new catalog service. runs may be nil.
func NewCatalogService(fetcher source.CollectionFetcher, sink *UpsertSink, runs RunStore, reporter *ProgressReporter, log *logger.Logger) *CatalogService {
	if reporter == nil {
		reporter = NewProgressReporter()
	}
	return &CatalogService{fetcher: fetcher, sink: sink, runs: runs, reporter: reporter, logger: log}
}

// WithMetrics attaches Prometheus metrics.
func (s *CatalogService) WithMetrics(m *Metrics) *CatalogService {
	s.metrics = m
	return s
}

// Sync walks every page of each collection and upserts the mapped items.
// A failing collection is logged and counted; the next one still runs.
// Cancellation is checked between pages.
func (s *CatalogService) Sync(ctx context.Context, collections []*domain.CollectionTarget) (*RunStats, error) {
	if len(collections) == 0 {
		return nil, errors.New("no collections selected")
	}
	names := make([]string, len(collections))
	for i, c := range collections {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		names[i] = c.Name
	}

	stats := &RunStats{
		RunID:     uuid.New().String(),
		Kind:      domain.RunKindCatalog,
		Targets:   names,
		StartTime: time.Now(),
	}
	ctx = logger.FromContextOr(ctx, s.logger).WithContext(ctx)
	ctx = logger.SetRunID(ctx, stats.RunID)
	ctx = logger.SetComponent(ctx, "catalog")
	log := logger.FromContext(ctx)

	s.metrics.runStarted()
	record := startRunRecord(ctx, s.runs, log, stats)

	var runErr error
	for _, c := range collections {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := s.syncOne(ctx, c, stats); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				runErr = err
				break
			}
			atomic.AddInt64(&stats.Errored, 1)
			s.metrics.pair(c.Name, OutcomeErrored)
			log.WithField(logger.FieldCollection, c.Name).WithError(err).Error("Collection sync failed")
		}
	}

	end := time.Now()
	stats.finish(end)
	status := runStatus(stats, runErr)
	s.metrics.runFinished(string(stats.Kind), string(status), end.Sub(stats.StartTime))
	finishRunRecord(ctx, s.runs, log, record, stats, status, runErr)
	s.reporter.Summary(ctx, stats, status, runErr)
	return stats, runErr
}

func (s *CatalogService) syncOne(ctx context.Context, c *domain.CollectionTarget, stats *RunStats) error {
	ctx = logger.WithField(ctx, logger.FieldCollection, c.Name)
	page := 0
	var seen int64
	start := time.Now()

	err := s.fetcher.Pages(ctx, c.Endpoint, c.Includes, func(items []domain.Payload) error {
		page++
		rows := make([]domain.TargetRow, 0, len(items))
		for _, item := range items {
			row, err := c.Map(item)
			if err != nil {
				atomic.AddInt64(&stats.Errored, 1)
				s.metrics.pair(c.Name, OutcomeErrored)
				logger.FromContext(ctx).WithError(err).Warn("Skipping unmappable item")
				continue
			}
			rows = append(rows, row)
		}
		atomic.AddInt64(&stats.Processed, int64(len(items)))
		seen += int64(len(items))

		written, err := s.sink.Write(context.WithoutCancel(ctx), c.Table, c.ConflictKey, rows)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		atomic.AddInt64(&stats.Inserted, int64(written))
		atomic.AddInt64(&stats.SubRowsWritten, int64(written))
		atomic.AddInt64(&stats.Batches, 1)
		s.metrics.rows(c.Name, written)
		s.metrics.batch()
		s.reporter.Report(ctx, stats, page)
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	logger.With(logger.Fields{"pages": page}).
		WithCount(seen).
		WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Collection %s synced", c.Name)
	return nil
}
