package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/matchsync/internal/domain"
	"github.com/timmy/matchsync/internal/repository"
)

func TestSinkKeepsStoredValueWhenFieldOmitted(t *testing.T) {
	db := newTestDB(t)
	rows := repository.NewRowRepository(db)
	sink := NewUpsertSink(rows)
	ctx := context.Background()

	_, err := sink.Write(ctx, "match_events", []string{"id"}, []domain.TargetRow{
		{"id": "7_1", "fixture_id": int64(7), "minute": int64(23), "player_name": "Saka"},
	})
	require.NoError(t, err)

	n, err := sink.Write(ctx, "match_events", []string{"id"}, []domain.TargetRow{
		{"id": "7_1", "fixture_id": int64(7), "minute": int64(24), "player_name": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := rows.ListByParent(ctx, "match_events", "fixture_id", 7, []string{"minute", "player_name"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.EqualValues(t, 24, stored[0]["minute"])
	assert.Equal(t, "Saka", stored[0]["player_name"])
}

func TestSinkRejectsRowWithoutConflictKey(t *testing.T) {
	sink := NewUpsertSink(brokenStore{})
	_, err := sink.Write(context.Background(), "match_events", []string{"id"}, []domain.TargetRow{
		{"fixture_id": int64(1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing conflict key")
}

type recordingWriter struct {
	upserts [][]domain.TargetRow
	deletes []int64
}

func (w *recordingWriter) Upsert(_ context.Context, _ string, rows []domain.TargetRow, _ []string) (int64, error) {
	w.upserts = append(w.upserts, rows)
	return int64(len(rows)), nil
}

func (w *recordingWriter) DeleteByParent(_ context.Context, _, _ string, parentID int64) (int64, error) {
	w.deletes = append(w.deletes, parentID)
	return 3, nil
}

func TestSinkStampsTimestampsWithoutMutatingInput(t *testing.T) {
	w := &recordingWriter{}
	sink := NewUpsertSink(w)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	in := []domain.TargetRow{{"id": "a", "note": nil}}
	_, err := sink.Write(context.Background(), "t", []string{"id"}, in)
	require.NoError(t, err)

	require.Len(t, w.upserts, 1)
	got := w.upserts[0][0]
	assert.Equal(t, fixed, got["created_at"])
	assert.Equal(t, fixed, got["updated_at"])
	assert.NotContains(t, got, "note")
	assert.Contains(t, in[0], "note")
	assert.NotContains(t, in[0], "updated_at")
}

func TestSinkReplaceDeletesThenWrites(t *testing.T) {
	w := &recordingWriter{}
	target := &domain.EnrichmentTarget{Name: "events", Table: "match_events", ParentColumn: "fixture_id", ConflictKey: []string{"id"}}

	deleted, written, err := NewUpsertSink(w).Replace(context.Background(), target, 42, []domain.TargetRow{{"id": "42_1"}, {"id": "42_2"}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)
	assert.Equal(t, 2, written)
	assert.Equal(t, []int64{42}, w.deletes)
}

func TestSinkCollapsesDuplicateConflictKeys(t *testing.T) {
	w := &recordingWriter{}
	sink := NewUpsertSink(w)

	n, err := sink.Write(context.Background(), "match_lineups", []string{"id"}, []domain.TargetRow{
		{"id": "7_55", "fixture_id": int64(7), "jersey_number": int64(9)},
		{"id": "7_56", "fixture_id": int64(7), "jersey_number": int64(4)},
		{"id": "7_55", "fixture_id": int64(7), "jersey_number": int64(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, w.upserts, 1)
	written := w.upserts[0]
	require.Len(t, written, 2)
	assert.Equal(t, "7_55", written[0]["id"])
	assert.EqualValues(t, 10, written[0]["jersey_number"])
	assert.Equal(t, "7_56", written[1]["id"])
}

func TestSinkWriteEmptyIsNoop(t *testing.T) {
	w := &recordingWriter{}
	n, err := NewUpsertSink(w).Write(context.Background(), "t", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.upserts)
}
