package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/matchsync/internal/domain"
)

// RowWriter performs bulk upserts and per-parent deletes.
type RowWriter interface {
	Upsert(ctx context.Context, table string, rows []domain.TargetRow, conflictKey []string) (int64, error)
	DeleteByParent(ctx context.Context, table, parentColumn string, parentID int64) (int64, error)
}

// UpsertSink writes mapped rows idempotently. It strips nil values so an
// omitted field never overwrites a stored one, and stamps timestamps.
type UpsertSink struct {
	rows RowWriter
	now  func() time.Time
}

// NewUpsertSink creates a new sink.
func NewUpsertSink(rows RowWriter) *UpsertSink {
	return &UpsertSink{rows: rows, now: func() time.Time { return time.Now().UTC() }}
}

// Write upserts rows into table as one bulk operation keyed on conflictKey.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - table: target table.
//   - conflictKey: unique key columns; every row must carry them.
//   - rows: mapped rows; they are not modified.
// Returns:
//   - int: number of rows written.
//   - error: non-nil if a row lacks its key or the store rejects the write.
//
// Rows sharing a conflict key collapse to the last one, since a single
// ON CONFLICT statement may not touch the same row twice.
func (s *UpsertSink) Write(ctx context.Context, table string, conflictKey []string, rows []domain.TargetRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	now := s.now()
	prepared := make([]domain.TargetRow, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		clean := make(domain.TargetRow, len(row)+2)
		for col, v := range row {
			if v != nil {
				clean[col] = v
			}
		}
		if !clean.Has(conflictKey...) {
			return 0, fmt.Errorf("%s row %d: missing conflict key %v", table, i, conflictKey)
		}
		if _, ok := clean["created_at"]; !ok {
			clean["created_at"] = now
		}
		clean["updated_at"] = now

		key := conflictValue(clean, conflictKey)
		if at, dup := seen[key]; dup {
			prepared[at] = clean
			continue
		}
		seen[key] = len(prepared)
		prepared = append(prepared, clean)
	}

	if _, err := s.rows.Upsert(ctx, table, prepared, conflictKey); err != nil {
		return 0, err
	}
	return len(prepared), nil
}

// WriteTarget is Write for a parent-scoped target.
func (s *UpsertSink) WriteTarget(ctx context.Context, target *domain.EnrichmentTarget, rows []domain.TargetRow) (int, error) {
	return s.Write(ctx, target.Table, target.ConflictKey, rows)
}

// Replace deletes every stored row of target for parentID and writes rows.
// The two steps are not atomic: if the write fails the pair is left Absent
// and the next run fills it again.
func (s *UpsertSink) Replace(ctx context.Context, target *domain.EnrichmentTarget, parentID int64, rows []domain.TargetRow) (deleted int64, written int, err error) {
	deleted, err = s.rows.DeleteByParent(ctx, target.Table, target.ParentColumn, parentID)
	if err != nil {
		return 0, 0, err
	}
	written, err = s.WriteTarget(ctx, target, rows)
	return deleted, written, err
}

func conflictValue(row domain.TargetRow, key []string) string {
	parts := make([]string, len(key))
	for i, col := range key {
		parts[i] = fmt.Sprint(row[col])
	}
	return strings.Join(parts, "\x00")
}
