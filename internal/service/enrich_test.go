package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/matchsync/internal/config"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/logger"
	"github.com/timmy/matchsync/internal/mapping"
	"github.com/timmy/matchsync/internal/repository"
	"github.com/timmy/matchsync/internal/source"
	"gorm.io/gorm"
)

func quietLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// fakeFetcher serves canned payloads keyed by source id.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[int64]domain.Payload
	bulk     int
	err      error
	calls    [][]int64
	includes [][]string
}

func (f *fakeFetcher) FetchBulk(_ context.Context, ids []int64, include []string) (map[int64]domain.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]int64(nil), ids...))
	f.includes = append(f.includes, append([]string(nil), include...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]domain.Payload)
	for _, id := range ids {
		if p, ok := f.payloads[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeFetcher) MaxBulkSize() int {
	if f.bulk == 0 {
		return 10
	}
	return f.bulk
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type pauseRecorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *pauseRecorder) pause(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.pauses = append(p.pauses, d)
	p.mu.Unlock()
	return ctx.Err()
}

func eventsPayload(sourceID int64, n int) domain.Payload {
	events := make([]interface{}, n)
	for i := 0; i < n; i++ {
		events[i] = map[string]interface{}{
			"id":          float64(sourceID*100 + int64(i)),
			"type_id":     float64(14),
			"minute":      float64(10 + i),
			"player_name": fmt.Sprintf("player %d", i),
		}
	}
	return domain.Payload{"id": float64(sourceID), "events": events}
}

type enrichEnv struct {
	db       *gorm.DB
	fixtures *repository.FixtureRepository
	rows     *repository.RowRepository
	runs     *repository.RunRepository
	fetcher  *fakeFetcher
	pauses   *pauseRecorder
}

// newEnrichEnv seeds n final fixtures with ids 1..n and source ids 1001..
// spread one hour apart.
func newEnrichEnv(t *testing.T, n int) *enrichEnv {
	t.Helper()
	db := newTestDB(t)
	env := &enrichEnv{
		db:       db,
		fixtures: repository.NewFixtureRepository(db, []string{"FT"}),
		rows:     repository.NewRowRepository(db),
		runs:     repository.NewRunRepository(db),
		fetcher:  &fakeFetcher{payloads: make(map[int64]domain.Payload)},
		pauses:   &pauseRecorder{},
	}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fixtures := make([]domain.Fixture, n)
	for i := 0; i < n; i++ {
		fixtures[i] = domain.Fixture{
			ID:           int64(i + 1),
			SportmonksID: int64(1001 + i),
			Status:       "FT",
			StartingAt:   base.Add(time.Duration(i) * time.Hour),
		}
	}
	if n > 0 {
		require.NoError(t, env.fixtures.Upsert(context.Background(), fixtures))
	}
	return env
}

func (e *enrichEnv) service(cfg EnrichConfig) *EnrichService {
	oracle := NewCompletenessOracle(e.rows, DefaultThreshold, nil)
	svc := NewEnrichService(e.fixtures, e.fetcher, oracle, NewUpsertSink(e.rows), nil, e.runs, nil, quietLogger(), &cfg)
	return svc.WithPause(e.pauses.pause)
}

func (e *enrichEnv) count(t *testing.T, table string, fixtureID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Table(table).Where("fixture_id = ?", fixtureID).Count(&n).Error)
	return n
}

func eventsTarget(t *testing.T) []*domain.EnrichmentTarget {
	t.Helper()
	targets, err := mapping.Lookup([]string{"events"})
	require.NoError(t, err)
	return targets
}

func TestEnrichRunIsIdempotent(t *testing.T) {
	env := newEnrichEnv(t, 3)
	for i := int64(0); i < 3; i++ {
		env.fetcher.payloads[1001+i] = eventsPayload(1001+i, 2)
	}
	svc := env.service(EnrichConfig{BatchSize: 10, Workers: 2})
	ctx := context.Background()

	first, err := svc.Run(ctx, eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 3, first.Processed)
	assert.EqualValues(t, 3, first.Inserted)
	assert.EqualValues(t, 6, first.SubRowsWritten)
	assert.EqualValues(t, 0, first.Errored)
	assert.Equal(t, 1, env.fetcher.callCount())

	second, err := svc.Run(ctx, eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 3, second.Skipped)
	assert.EqualValues(t, 0, second.Inserted)
	assert.EqualValues(t, 0, second.SubRowsWritten)
	assert.Equal(t, 1, env.fetcher.callCount(), "complete pairs must not be fetched again")

	for id := int64(1); id <= 3; id++ {
		assert.EqualValues(t, 2, env.count(t, "match_events", id))
	}
}

func TestEnrichReplacesPartialPairs(t *testing.T) {
	env := newEnrichEnv(t, 1)
	ctx := context.Background()
	sink := NewUpsertSink(env.rows)

	// 2 of 3 rows satisfy the predicate: 0.67 < 0.8.
	_, err := sink.Write(ctx, "match_events", []string{"id"}, []domain.TargetRow{
		{"id": "1_1", "fixture_id": int64(1), "type_id": int64(14), "minute": int64(3)},
		{"id": "1_2", "fixture_id": int64(1), "type_id": int64(14), "minute": int64(9)},
		{"id": "1_stale", "fixture_id": int64(1), "type_id": int64(14)},
	})
	require.NoError(t, err)

	env.fetcher.payloads[1001] = eventsPayload(1001, 2)
	stats, err := env.service(EnrichConfig{BatchSize: 10}).Run(ctx, eventsTarget(t))
	require.NoError(t, err)

	assert.EqualValues(t, 1, stats.Updated)
	assert.EqualValues(t, 0, stats.Inserted)
	assert.EqualValues(t, 2, env.count(t, "match_events", 1), "stale rows are removed on replace")
}

func TestEnrichSkipsPairAtThreshold(t *testing.T) {
	env := newEnrichEnv(t, 1)
	ctx := context.Background()

	rows := make([]domain.TargetRow, 5)
	for i := range rows {
		rows[i] = domain.TargetRow{"id": fmt.Sprintf("1_%d", i), "fixture_id": int64(1), "type_id": int64(14), "minute": int64(i)}
	}
	delete(rows[4], "minute")
	_, err := NewUpsertSink(env.rows).Write(ctx, "match_events", []string{"id"}, rows)
	require.NoError(t, err)

	stats, err := env.service(EnrichConfig{BatchSize: 10}).Run(ctx, eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Skipped)
	assert.Equal(t, 0, env.fetcher.callCount())
}

func TestEnrichMissingParentsAreNoData(t *testing.T) {
	env := newEnrichEnv(t, 10)
	for i := int64(0); i < 7; i++ {
		env.fetcher.payloads[1001+i] = eventsPayload(1001+i, 1)
	}

	stats, err := env.service(EnrichConfig{BatchSize: 20}).Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.Processed)
	assert.EqualValues(t, 7, stats.Inserted)
	assert.EqualValues(t, 3, stats.NoData)
	assert.EqualValues(t, 0, stats.Errored)
	assert.Equal(t, domain.RunStatusCompleted, runStatus(stats, nil))
}

func TestEnrichEmptyPayloadIsNoData(t *testing.T) {
	env := newEnrichEnv(t, 1)
	env.fetcher.payloads[1001] = domain.Payload{"id": float64(1001), "events": []interface{}{}}

	stats, err := env.service(EnrichConfig{BatchSize: 10}).Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.NoData)
	assert.EqualValues(t, 0, env.count(t, "match_events", 1))
}

func TestEnrichFetchErrorIsCountedPerPair(t *testing.T) {
	env := newEnrichEnv(t, 3)
	env.fetcher.err = &source.StatusError{StatusCode: 500, Path: "/fixtures/multi"}
	targets, err := mapping.Lookup([]string{"events", "lineups"})
	require.NoError(t, err)

	stats, err := env.service(EnrichConfig{BatchSize: 10}).Run(context.Background(), targets)
	require.NoError(t, err, "item errors never abort the run")
	assert.EqualValues(t, 6, stats.Errored)
	assert.EqualValues(t, 3, stats.Processed)
	assert.Equal(t, domain.RunStatusPartial, runStatus(stats, nil))
	require.Len(t, env.fetcher.includes, 1)
	assert.ElementsMatch(t, []string{"events.type", "lineups"}, env.fetcher.includes[0])
}

func TestEnrichItemFailureLogsFixtureLabel(t *testing.T) {
	env := newEnrichEnv(t, 1)
	require.NoError(t, env.db.Model(&domain.Fixture{}).Where("id = ?", 1).
		Updates(map[string]interface{}{"home_team_name": "Arsenal", "away_team_name": "Chelsea"}).Error)
	env.fetcher.payloads[1001] = domain.Payload{"id": float64(1001), "events": "not a list"}

	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "warn", Format: "json", Output: &buf})
	cfg := EnrichConfig{BatchSize: 10}
	svc := NewEnrichService(env.fixtures, env.fetcher, NewCompletenessOracle(env.rows, DefaultThreshold, nil),
		NewUpsertSink(env.rows), nil, env.runs, nil, log, &cfg).WithPause(env.pauses.pause)

	stats, err := svc.Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Errored)

	var failed map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["message"] == "Item failed" {
			failed = entry
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "Arsenal vs Chelsea", failed["fixture"])
	assert.Equal(t, "events", failed[logger.FieldEntity])
	assert.Equal(t, "map", failed["stage"])
	assert.NotEmpty(t, failed[logger.FieldRunID])
}

func TestEnrichBacksOffWhenRateLimited(t *testing.T) {
	env := newEnrichEnv(t, 1)
	env.fetcher.err = source.ErrRateLimited

	_, err := env.service(EnrichConfig{BatchSize: 10, RateLimitBackoff: time.Minute}).Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)
	assert.Contains(t, env.pauses.pauses, time.Minute)
}

func TestEnrichChunksBulkRequestsBySourceID(t *testing.T) {
	env := newEnrichEnv(t, 5)
	env.fetcher.bulk = 2

	_, err := env.service(EnrichConfig{BatchSize: 10}).Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)

	require.Len(t, env.fetcher.calls, 3)
	assert.Len(t, env.fetcher.calls[0], 2)
	assert.Len(t, env.fetcher.calls[1], 2)
	assert.Len(t, env.fetcher.calls[2], 1)
	// most recent first
	assert.Equal(t, []int64{1005, 1004}, env.fetcher.calls[0])
}

func TestEnrichPausesBetweenBatches(t *testing.T) {
	env := newEnrichEnv(t, 5)
	cfg := EnrichConfig{
		BatchSize:         1,
		InterBatchDelay:   time.Second,
		LongPauseInterval: 2,
		LongPauseDelay:    time.Hour,
	}

	stats, err := env.service(cfg).Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Batches)
	assert.Equal(t, []time.Duration{
		time.Second,
		time.Second, time.Hour,
		time.Second,
		time.Second, time.Hour,
		time.Second,
	}, env.pauses.pauses)
}

func TestEnrichHonorsMaxParents(t *testing.T) {
	env := newEnrichEnv(t, 5)

	stats, err := env.service(EnrichConfig{BatchSize: 2, MaxParents: 3}).Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Processed)
	assert.EqualValues(t, 3, stats.Total)
}

func TestEnrichPersistsRunRecord(t *testing.T) {
	env := newEnrichEnv(t, 2)
	env.fetcher.payloads[1001] = eventsPayload(1001, 3)
	ctx := context.Background()

	stats, err := env.service(EnrichConfig{BatchSize: 10}).Run(ctx, eventsTarget(t))
	require.NoError(t, err)

	run, err := env.runs.GetByID(ctx, stats.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.EqualValues(t, 1, run.Inserted)
	assert.EqualValues(t, 1, run.NoData)
	assert.EqualValues(t, 3, run.SubRowsWritten)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, []string{"events"}, []string(run.Targets))
}

func TestEnrichArchivesFetchedChunks(t *testing.T) {
	env := newEnrichEnv(t, 2)
	env.fetcher.payloads[1001] = eventsPayload(1001, 1)
	arch := &fakeArchiver{}

	oracle := NewCompletenessOracle(env.rows, 0, nil)
	svc := NewEnrichService(env.fixtures, env.fetcher, oracle, NewUpsertSink(env.rows), arch, nil, nil, quietLogger(), &EnrichConfig{BatchSize: 10})
	stats, err := svc.Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)

	require.Len(t, arch.chunks, 1)
	assert.Equal(t, "batch-00001-chunk-001", arch.chunks[0])
	assert.Equal(t, stats.RunID, arch.runID)
}

type fakeArchiver struct {
	runID  string
	chunks []string
}

func (a *fakeArchiver) Archive(_ context.Context, runID, chunk string, _ map[int64]domain.Payload) error {
	a.runID = runID
	a.chunks = append(a.chunks, chunk)
	return errors.New("bucket unreachable")
}

// endlessLister hands out full batches forever.
type endlessLister struct {
	next int64
	err  error
}

func (l *endlessLister) ListFinal(_ context.Context, _ domain.Cursor, limit int) ([]domain.ParentRecord, error) {
	if l.err != nil {
		return nil, l.err
	}
	out := make([]domain.ParentRecord, limit)
	for i := range out {
		l.next++
		out[i] = domain.ParentRecord{ID: l.next, SourceID: l.next, StartingAt: time.Unix(1_700_000_000-l.next, 0)}
	}
	return out, nil
}

func (l *endlessLister) CountFinal(context.Context) (int64, error) { return 0, nil }

type brokenStore struct{}

func (brokenStore) ListByParent(context.Context, string, string, int64, []string) ([]domain.TargetRow, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Upsert(context.Context, string, []domain.TargetRow, []string) (int64, error) {
	return 0, errors.New("connection refused")
}

func (brokenStore) DeleteByParent(context.Context, string, string, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestEnrichAbortsWhenStoreUnavailable(t *testing.T) {
	pauses := &pauseRecorder{}
	svc := NewEnrichService(
		&endlessLister{},
		&fakeFetcher{},
		NewCompletenessOracle(brokenStore{}, 0, nil),
		NewUpsertSink(brokenStore{}),
		nil, nil, nil, quietLogger(),
		&EnrichConfig{BatchSize: 4, Workers: 2, MaxStoreFailures: 2},
	).WithPause(pauses.pause)

	stats, err := svc.Run(context.Background(), eventsTarget(t))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.EqualValues(t, 2, stats.Batches)
	assert.EqualValues(t, 8, stats.Errored)
	assert.Equal(t, domain.RunStatusAborted, runStatus(stats, err))
}

func TestEnrichAbortsOnEnumerationError(t *testing.T) {
	svc := NewEnrichService(
		&endlessLister{err: errors.New("relation fixtures does not exist")},
		&fakeFetcher{},
		NewCompletenessOracle(brokenStore{}, 0, nil),
		NewUpsertSink(brokenStore{}),
		nil, nil, nil, quietLogger(),
		&EnrichConfig{BatchSize: 4},
	)

	stats, err := svc.Run(context.Background(), eventsTarget(t))
	require.ErrorIs(t, err, ErrEnumeration)
	assert.EqualValues(t, 0, stats.Batches)
	assert.Equal(t, domain.RunStatusAborted, runStatus(stats, err))
}

func TestEnrichStopsBetweenBatchesOnCancel(t *testing.T) {
	env := newEnrichEnv(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := env.service(EnrichConfig{BatchSize: 2}).WithPause(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	stats, err := svc.Run(ctx, eventsTarget(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, stats.Batches, "the started batch finishes, the next never starts")
	assert.EqualValues(t, 2, stats.Processed)
	assert.Equal(t, domain.RunStatusCancelled, runStatus(stats, err))
	assert.NotNil(t, svc.Snapshot())
}

func TestEnrichSnapshotWhileRunFinishes(t *testing.T) {
	env := newEnrichEnv(t, 6)
	for i := int64(0); i < 6; i++ {
		env.fetcher.payloads[1001+i] = eventsPayload(1001+i, 2)
	}
	svc := env.service(EnrichConfig{BatchSize: 2, Workers: 2})

	done := make(chan *RunStats)
	go func() {
		stats, err := svc.Run(context.Background(), eventsTarget(t))
		assert.NoError(t, err)
		done <- stats
	}()

	var final *RunStats
	for final == nil {
		select {
		case final = <-done:
		default:
			if snap := svc.Snapshot(); snap != nil {
				_ = snap.EndTime.IsZero()
			}
		}
	}

	snap := svc.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, final.RunID, snap.RunID)
	assert.EqualValues(t, 6, snap.Processed)
	assert.False(t, snap.EndTime.IsZero())
	assert.False(t, snap.EndTime.Before(snap.StartTime))
}

func TestEnrichRejectsEmptyTargets(t *testing.T) {
	env := newEnrichEnv(t, 0)
	_, err := env.service(EnrichConfig{}).Run(context.Background(), nil)
	assert.Error(t, err)
}
