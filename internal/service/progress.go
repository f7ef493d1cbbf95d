package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
)

// RunStats holds the counters of one run. Counter fields are updated with
// atomic operations from worker goroutines; read them through Snapshot.
//
// Processed counts parents (or catalog items). The pair counters count
// (parent, entity) pairs: Inserted for Absent pairs written, Updated for
// Partial pairs replaced, Skipped for Complete pairs, NoData for pairs the
// API returned nothing for, Errored for failures at any stage.
//
// StartTime is fixed before the stats are shared. The end time is recorded
// with finish and appears in snapshots as EndTime.
type RunStats struct {
	RunID          string         `json:"run_id"`
	Kind           domain.RunKind `json:"kind"`
	Targets        []string       `json:"targets"`
	Total          int64          `json:"total"`
	Processed      int64          `json:"processed"`
	Inserted       int64          `json:"inserted"`
	Updated        int64          `json:"updated"`
	Skipped        int64          `json:"skipped"`
	NoData         int64          `json:"no_data"`
	Errored        int64          `json:"errored"`
	SubRowsWritten int64          `json:"sub_rows_written"`
	Batches        int64          `json:"batches"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`

	endNanos int64
}

func (s *RunStats) finish(t time.Time) {
	atomic.StoreInt64(&s.endNanos, t.UnixNano())
}

func (s *RunStats) endTime() time.Time {
	if n := atomic.LoadInt64(&s.endNanos); n != 0 {
		return time.Unix(0, n)
	}
	return s.EndTime
}

// Snapshot returns a consistent-enough copy safe to serialize.
func (s *RunStats) Snapshot() RunStats {
	return RunStats{
		RunID:          s.RunID,
		Kind:           s.Kind,
		Targets:        append([]string(nil), s.Targets...),
		Total:          atomic.LoadInt64(&s.Total),
		Processed:      atomic.LoadInt64(&s.Processed),
		Inserted:       atomic.LoadInt64(&s.Inserted),
		Updated:        atomic.LoadInt64(&s.Updated),
		Skipped:        atomic.LoadInt64(&s.Skipped),
		NoData:         atomic.LoadInt64(&s.NoData),
		Errored:        atomic.LoadInt64(&s.Errored),
		SubRowsWritten: atomic.LoadInt64(&s.SubRowsWritten),
		Batches:        atomic.LoadInt64(&s.Batches),
		StartTime:      s.StartTime,
		EndTime:        s.endTime(),
	}
}

// Progress is a derived view of RunStats at a point in time.
type Progress struct {
	Processed int64         `json:"processed"`
	Total     int64         `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
	Rate      float64       `json:"rate_per_second"`
	ETA       time.Duration `json:"eta"`
	Percent   float64       `json:"percent"`
}

// ComputeProgress derives throughput, percentage and ETA. Unknown totals
// (zero) and zero elapsed time yield zero ETA and percent.
func ComputeProgress(processed, total int64, elapsed time.Duration) Progress {
	p := Progress{Processed: processed, Total: total, Elapsed: elapsed}
	if elapsed > 0 {
		p.Rate = float64(processed) / elapsed.Seconds()
	}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
		if p.Rate > 0 && processed < total {
			p.ETA = time.Duration(float64(total-processed) / p.Rate * float64(time.Second))
		}
	}
	return p
}

// ProgressReporter logs run progress after each batch and a final summary.
type ProgressReporter struct {
	now func() time.Time
}

// NewProgressReporter creates a new reporter.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{now: time.Now}
}

// Report logs cumulative counters and throughput after a batch.
func (r *ProgressReporter) Report(ctx context.Context, stats *RunStats, batch int) {
	snap := stats.Snapshot()
	p := ComputeProgress(snap.Processed, snap.Total, r.now().Sub(snap.StartTime))

	logger.With(logger.Fields{
		logger.FieldBatch: batch,
		"processed":       snap.Processed,
		"total":           snap.Total,
		"inserted":        snap.Inserted,
		"updated":         snap.Updated,
		"skipped":         snap.Skipped,
		"no_data":         snap.NoData,
		"errored":         snap.Errored,
		"rows":            snap.SubRowsWritten,
		"rate_per_sec":    round2(p.Rate),
		"percent":         round2(p.Percent),
		"eta":             p.ETA.Truncate(time.Second).String(),
	}).Info(ctx, "Batch %d done", batch)
}

// Summary logs the final counters. It is called on every exit path.
func (r *ProgressReporter) Summary(ctx context.Context, stats *RunStats, status domain.RunStatus, runErr error) {
	snap := stats.Snapshot()
	end := snap.EndTime
	if end.IsZero() {
		end = r.now()
	}
	p := ComputeProgress(snap.Processed, snap.Total, end.Sub(snap.StartTime))

	entry := logger.With(logger.Fields{
		"processed":    snap.Processed,
		"inserted":     snap.Inserted,
		"updated":      snap.Updated,
		"skipped":      snap.Skipped,
		"no_data":      snap.NoData,
		"errored":      snap.Errored,
		"batches":      snap.Batches,
		"rate_per_sec": round2(p.Rate),
	}).WithDuration(p.Elapsed.Milliseconds()).
		WithRows(snap.SubRowsWritten).
		WithStatus(string(status))
	if runErr != nil {
		entry = entry.WithField("error", runErr.Error())
		entry.Error(ctx, "Run %s finished: %s", snap.RunID, status)
		return
	}
	entry.Info(ctx, "Run %s finished: %s", snap.RunID, status)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
