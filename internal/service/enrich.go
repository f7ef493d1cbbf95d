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
	"golang.org/x/sync/errgroup"
)

// ParentLister enumerates eligible parents in keyset order.
type ParentLister interface {
	ListFinal(ctx context.Context, after domain.Cursor, limit int) ([]domain.ParentRecord, error)
	CountFinal(ctx context.Context) (int64, error)
}

// RunStore persists run records for operators.
type RunStore interface {
	Create(ctx context.Context, run *domain.EnrichmentRun) error
	Update(ctx context.Context, run *domain.EnrichmentRun) error
}

// Archiver keeps a copy of raw API responses.
type Archiver interface {
	Archive(ctx context.Context, runID, chunk string, payloads map[int64]domain.Payload) error
}

// PauseFunc sleeps for d or until ctx is done.
type PauseFunc func(ctx context.Context, d time.Duration) error

// EnrichConfig holds configuration for the enrichment engine
type EnrichConfig struct {
	BatchSize         int
	Workers           int
	InterBatchDelay   time.Duration
	LongPauseInterval int
	LongPauseDelay    time.Duration
	RateLimitBackoff  time.Duration
	MaxParents        int // 0 means no bound
	MaxStoreFailures  int // 0 disables the abort
}

// EnrichService runs the incremental enrichment pipeline: enumerate final
// parents, skip pairs that are already complete, bulk-fetch the rest, map
// and write them.
type EnrichService struct {
	parents  ParentLister
	fetcher  source.BulkFetcher
	oracle   *CompletenessOracle
	sink     *UpsertSink
	archive  Archiver
	runs     RunStore
	reporter *ProgressReporter
	metrics  *Metrics
	logger   *logger.Logger
	cfg      EnrichConfig
	pause    PauseFunc

	current atomic.Pointer[RunStats]
}

// NewEnrichService creates a new enrichment service. archive and runs may
// be nil.
func NewEnrichService(
	parents ParentLister,
	fetcher source.BulkFetcher,
	oracle *CompletenessOracle,
	sink *UpsertSink,
	archive Archiver,
	runs RunStore,
	reporter *ProgressReporter,
	log *logger.Logger,
	cfg *EnrichConfig,
) *EnrichService {
	c := *cfg
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if reporter == nil {
		reporter = NewProgressReporter()
	}
	return &EnrichService{
		parents:  parents,
		fetcher:  fetcher,
		oracle:   oracle,
		sink:     sink,
		archive:  archive,
		runs:     runs,
		reporter: reporter,
		logger:   log,
		cfg:      c,
		pause:    Sleep,
	}
}

// WithMetrics attaches Prometheus metrics.
func (s *EnrichService) WithMetrics(m *Metrics) *EnrichService {
	s.metrics = m
	return s
}

// WithPause replaces the pause function (tests use a recorder).
func (s *EnrichService) WithPause(p PauseFunc) *EnrichService {
	s.pause = p
	return s
}

// Snapshot returns the counters of the active or last run, or nil.
func (s *EnrichService) Snapshot() *RunStats {
	cur := s.current.Load()
	if cur == nil {
		return nil
	}
	snap := cur.Snapshot()
	return &snap
}

func (s *EnrichService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Sleep pauses for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run enriches every eligible parent for the given targets.
// Cancellation is honored between batches and during pauses; a batch that
// has started always finishes.
// Parameters:
//   - ctx: run context.
//   - targets: entity kinds to enrich.
// Returns:
//   - *RunStats: final counters, also on error.
//   - error: ErrEnumeration, ErrStoreUnavailable or the context error. Item
//     errors are only counted.
func (s *EnrichService) Run(ctx context.Context, targets []*domain.EnrichmentTarget) (*RunStats, error) {
	if len(targets) == 0 {
		return nil, errors.New("no targets selected")
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		names[i] = t.Name
	}

	stats := &RunStats{
		RunID:     uuid.New().String(),
		Kind:      domain.RunKindEnrich,
		Targets:   names,
		StartTime: time.Now(),
	}
	ctx = s.log(ctx).WithContext(ctx)
	ctx = logger.SetRunID(ctx, stats.RunID)
	ctx = logger.SetComponent(ctx, "enrich")

	if total, err := s.parents.CountFinal(ctx); err != nil {
		s.log(ctx).WithError(err).Warn("Could not count eligible parents; progress will have no ETA")
	} else {
		if s.cfg.MaxParents > 0 && total > int64(s.cfg.MaxParents) {
			total = int64(s.cfg.MaxParents)
		}
		stats.Total = total
	}

	s.current.Store(stats)
	s.metrics.runStarted()
	record := s.startRecord(ctx, stats)

	s.log(ctx).WithFields(logger.Fields{
		"targets":    names,
		"total":      stats.Total,
		"batch_size": s.cfg.BatchSize,
		"workers":    s.cfg.Workers,
	}).Info("Starting enrichment run")

	runErr := s.loop(ctx, targets, stats)

	end := time.Now()
	stats.finish(end)
	status := runStatus(stats, runErr)
	s.metrics.runFinished(string(stats.Kind), string(status), end.Sub(stats.StartTime))
	s.finishRecord(ctx, record, stats, status, runErr)
	s.reporter.Summary(ctx, stats, status, runErr)

	return stats, runErr
}

func (s *EnrichService) loop(ctx context.Context, targets []*domain.EnrichmentTarget, stats *RunStats) error {
	var (
		cursor        domain.Cursor
		enumerated    int
		batchNo       int
		failedBatches int
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := s.cfg.BatchSize
		if s.cfg.MaxParents > 0 {
			remaining := s.cfg.MaxParents - enumerated
			if remaining <= 0 {
				return nil
			}
			if remaining < limit {
				limit = remaining
			}
		}

		batch, err := s.parents.ListFinal(ctx, cursor, limit)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEnumeration, err)
		}
		if len(batch) == 0 {
			return nil
		}
		enumerated += len(batch)
		cursor = batch[len(batch)-1].Cursor()
		batchNo++

		res := s.processBatch(ctx, batchNo, batch, targets, stats)
		atomic.AddInt64(&stats.Batches, 1)
		s.metrics.batch()
		s.reporter.Report(ctx, stats, batchNo)

		if res.storeOps > 0 && res.storeFailures == res.storeOps {
			failedBatches++
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldBatch: batchNo,
				"consecutive":     failedBatches,
			}).Warn("Every store operation in batch failed")
		} else if res.storeOps > 0 {
			failedBatches = 0
		}
		if s.cfg.MaxStoreFailures > 0 && failedBatches >= s.cfg.MaxStoreFailures {
			return fmt.Errorf("%w: %d consecutive batches failed every write", ErrStoreUnavailable, failedBatches)
		}

		if len(batch) < limit {
			return nil
		}

		if err := s.pause(ctx, s.cfg.InterBatchDelay); err != nil {
			return err
		}
		if s.cfg.LongPauseInterval > 0 && batchNo%s.cfg.LongPauseInterval == 0 {
			s.log(ctx).WithField("delay", s.cfg.LongPauseDelay.String()).Info("Long pause")
			if err := s.pause(ctx, s.cfg.LongPauseDelay); err != nil {
				return err
			}
		}
	}
}

// pairWork is one (parent, target) pair that needs fetching.
type pairWork struct {
	target *domain.EnrichmentTarget
	class  domain.Classification
}

type parentWork struct {
	parent  domain.ParentRecord
	pending []pairWork
	payload domain.Payload
	fetched bool // the chunk holding this parent was fetched without error
}

type batchResult struct {
	storeOps      int64
	storeFailures int64
}

func (r *batchResult) store(err error) {
	atomic.AddInt64(&r.storeOps, 1)
	if err != nil {
		atomic.AddInt64(&r.storeFailures, 1)
	}
}

// processBatch runs classify, fetch, and map+write for one batch. Work runs
// on a context detached from cancellation so a started batch completes;
// runCtx is only used for pauses.
func (s *EnrichService) processBatch(runCtx context.Context, batchNo int, batch []domain.ParentRecord, targets []*domain.EnrichmentTarget, stats *RunStats) *batchResult {
	ctx := logger.WithField(context.WithoutCancel(runCtx), logger.FieldBatch, batchNo)
	res := &batchResult{}

	work := s.classify(ctx, batch, targets, stats, res)
	s.fetch(ctx, runCtx, batchNo, work, stats)
	s.mapAndWrite(ctx, work, stats, res)

	return res
}

func (s *EnrichService) classify(ctx context.Context, batch []domain.ParentRecord, targets []*domain.EnrichmentTarget, stats *RunStats, res *batchResult) []*parentWork {
	work := make([]*parentWork, len(batch))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, p := range batch {
		g.Go(func() error {
			pw := &parentWork{parent: p}
			for _, t := range targets {
				class, _, err := s.oracle.Classify(ctx, p.ID, t)
				res.store(err)
				if err != nil {
					s.itemFailed(ctx, stats, &ItemError{ParentID: p.ID, Entity: t.Name, Stage: StageClassify, Err: err})
					continue
				}
				if class == domain.Complete {
					atomic.AddInt64(&stats.Skipped, 1)
					s.metrics.pair(t.Name, OutcomeSkipped)
					continue
				}
				pw.pending = append(pw.pending, pairWork{target: t, class: class})
			}
			work[i] = pw
			atomic.AddInt64(&stats.Processed, 1)
			s.metrics.parent()
			return nil
		})
	}
	_ = g.Wait()
	return work
}

// fetch requests pending parents in chunks of MaxBulkSize. Each chunk asks
// for the union of its parents' pending includes.
func (s *EnrichService) fetch(ctx, runCtx context.Context, batchNo int, work []*parentWork, stats *RunStats) {
	var pending []*parentWork
	for _, pw := range work {
		if len(pw.pending) > 0 {
			pending = append(pending, pw)
		}
	}

	size := s.fetcher.MaxBulkSize()
	if size <= 0 {
		size = 1
	}
	for start, chunkNo := 0, 1; start < len(pending); start, chunkNo = start+size, chunkNo+1 {
		end := start + size
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		ids := make([]int64, len(chunk))
		for i, pw := range chunk {
			ids[i] = pw.parent.SourceID
		}
		include := unionIncludes(chunk)

		payloads, err := s.fetcher.FetchBulk(ctx, ids, include)
		if err != nil {
			s.log(ctx).WithFields(logger.Fields{
				"parents":   len(chunk),
				"include":   include,
				"transient": source.IsTransient(err),
			}).WithError(err).Error("Bulk fetch failed")
			for _, pw := range chunk {
				for _, pair := range pw.pending {
					s.itemFailed(ctx, stats, &ItemError{ParentID: pw.parent.ID, Entity: pair.target.Name, Stage: StageFetch, Err: err})
				}
				pw.pending = nil
			}
			if errors.Is(err, source.ErrRateLimited) {
				s.log(ctx).WithField("backoff", s.cfg.RateLimitBackoff.String()).Warn("Rate limited, backing off")
				_ = s.pause(runCtx, s.cfg.RateLimitBackoff)
			}
			continue
		}

		if s.archive != nil {
			name := fmt.Sprintf("batch-%05d-chunk-%03d", batchNo, chunkNo)
			if err := s.archive.Archive(ctx, logger.GetRunID(ctx), name, payloads); err != nil {
				s.log(ctx).WithError(err).WithField("chunk", name).Warn("Failed to archive raw payloads")
			}
		}

		for _, pw := range chunk {
			pw.fetched = true
			pw.payload = payloads[pw.parent.SourceID]
		}
	}
}

func (s *EnrichService) mapAndWrite(ctx context.Context, work []*parentWork, stats *RunStats, res *batchResult) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, pw := range work {
		if !pw.fetched || len(pw.pending) == 0 {
			continue
		}
		g.Go(func() error {
			pctx := logger.WithFields(ctx, logger.Fields{
				logger.FieldParentID: pw.parent.ID,
				"fixture":            pw.parent.Label,
			})
			for _, pair := range pw.pending {
				s.applyPair(pctx, pw, pair, stats, res)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *EnrichService) applyPair(ctx context.Context, pw *parentWork, pair pairWork, stats *RunStats, res *batchResult) {
	t := pair.target

	// The API did not return this parent: leave it eligible for a later run.
	if pw.payload == nil {
		atomic.AddInt64(&stats.NoData, 1)
		s.metrics.pair(t.Name, OutcomeNoData)
		return
	}

	rows, err := t.Map(pw.parent.ID, pw.payload)
	if err != nil {
		s.itemFailed(ctx, stats, &ItemError{ParentID: pw.parent.ID, Entity: t.Name, Stage: StageMap, Err: err})
		return
	}
	if len(rows) == 0 {
		atomic.AddInt64(&stats.NoData, 1)
		s.metrics.pair(t.Name, OutcomeNoData)
		return
	}

	var written int
	outcome := OutcomeInserted
	if pair.class == domain.Partial {
		outcome = OutcomeUpdated
		var deleted int64
		deleted, written, err = s.sink.Replace(ctx, t, pw.parent.ID, rows)
		if err == nil {
			logger.With(logger.Fields{
				logger.FieldEntity: t.Name,
				"deleted":          deleted,
			}).WithRows(int64(written)).Debug(ctx, "Replaced partial rows")
		}
	} else {
		written, err = s.sink.WriteTarget(ctx, t, rows)
	}
	res.store(err)
	if err != nil {
		s.itemFailed(ctx, stats, &ItemError{ParentID: pw.parent.ID, Entity: t.Name, Stage: StageWrite, Err: err})
		return
	}

	if outcome == OutcomeUpdated {
		atomic.AddInt64(&stats.Updated, 1)
	} else {
		atomic.AddInt64(&stats.Inserted, 1)
	}
	atomic.AddInt64(&stats.SubRowsWritten, int64(written))
	s.metrics.pair(t.Name, outcome)
	s.metrics.rows(t.Name, written)
}

func (s *EnrichService) itemFailed(ctx context.Context, stats *RunStats, ie *ItemError) {
	atomic.AddInt64(&stats.Errored, 1)
	s.metrics.pair(ie.Entity, OutcomeErrored)
	s.log(ctx).WithFields(logger.Fields{
		logger.FieldParentID: ie.ParentID,
		logger.FieldEntity:   ie.Entity,
		"stage":              string(ie.Stage),
	}).WithError(ie.Err).Warn("Item failed")
}

func unionIncludes(chunk []*parentWork) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pw := range chunk {
		for _, pair := range pw.pending {
			for _, inc := range pair.target.Includes {
				if !seen[inc] {
					seen[inc] = true
					out = append(out, inc)
				}
			}
		}
	}
	return out
}

func runStatus(stats *RunStats, runErr error) domain.RunStatus {
	switch {
	case runErr == nil && atomic.LoadInt64(&stats.Errored) == 0:
		return domain.RunStatusCompleted
	case runErr == nil:
		return domain.RunStatusPartial
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return domain.RunStatusCancelled
	default:
		return domain.RunStatusAborted
	}
}

func (s *EnrichService) startRecord(ctx context.Context, stats *RunStats) *domain.EnrichmentRun {
	return startRunRecord(ctx, s.runs, s.log(ctx), stats)
}

func (s *EnrichService) finishRecord(ctx context.Context, record *domain.EnrichmentRun, stats *RunStats, status domain.RunStatus, runErr error) {
	finishRunRecord(ctx, s.runs, s.log(ctx), record, stats, status, runErr)
}

func startRunRecord(ctx context.Context, runs RunStore, log *logger.Logger, stats *RunStats) *domain.EnrichmentRun {
	if runs == nil {
		return nil
	}
	record := &domain.EnrichmentRun{
		ID:        stats.RunID,
		Kind:      stats.Kind,
		Targets:   domain.StringArray(stats.Targets),
		Status:    domain.RunStatusRunning,
		StartedAt: stats.StartTime,
	}
	if err := runs.Create(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to persist run record")
		return nil
	}
	return record
}

func finishRunRecord(ctx context.Context, runs RunStore, log *logger.Logger, record *domain.EnrichmentRun, stats *RunStats, status domain.RunStatus, runErr error) {
	if runs == nil || record == nil {
		return
	}
	snap := stats.Snapshot()
	finished := snap.EndTime
	record.Status = status
	record.Processed = snap.Processed
	record.Inserted = snap.Inserted
	record.Updated = snap.Updated
	record.Skipped = snap.Skipped
	record.NoData = snap.NoData
	record.Errored = snap.Errored
	record.SubRowsWritten = snap.SubRowsWritten
	record.Batches = snap.Batches
	record.FinishedAt = &finished
	if runErr != nil {
		record.ErrorLog = runErr.Error()
	}
	if err := runs.Update(context.WithoutCancel(ctx), record); err != nil {
		log.WithError(err).Warn("Failed to update run record")
	}
}
