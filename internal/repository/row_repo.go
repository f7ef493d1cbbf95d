package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/timmy/matchsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertChunkSize keeps a single INSERT well under SQLite's bind-variable limit.
const upsertChunkSize = 200

// RowRepository reads and writes schemaless target rows. Table and column
// names come from target descriptors, never from user input.
type RowRepository struct {
	db *gorm.DB
}

// NewRowRepository creates a new RowRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RowRepository: repository instance bound to db.
func NewRowRepository(db *gorm.DB) *RowRepository {
	return &RowRepository{db: db}
}

// ListByParent returns the stored rows of table that belong to one parent.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - table: target table name.
//   - parentColumn: column holding the parent id.
//   - parentID: parent store id.
//   - columns: columns to read; empty reads every column.
// Returns:
//   - []domain.TargetRow: stored rows, possibly empty.
//   - error: non-nil if the query fails.
func (r *RowRepository) ListByParent(ctx context.Context, table, parentColumn string, parentID int64, columns []string) ([]domain.TargetRow, error) {
	query := r.db.WithContext(ctx).Table(table).
		Where(clause.Eq{Column: clause.Column{Name: parentColumn}, Value: parentID})
	if len(columns) > 0 {
		query = query.Select(columns)
	}

	var raw []map[string]interface{}
	if err := query.Find(&raw).Error; err != nil {
		return nil, fmt.Errorf("list %s rows for parent %d: %w", table, parentID, err)
	}

	rows := make([]domain.TargetRow, len(raw))
	for i, m := range raw {
		rows[i] = domain.TargetRow(m)
	}
	return rows, nil
}

// Upsert inserts rows, updating existing rows that collide on conflictKey.
// A conflicting row keeps its stored value for every column the new row
// leaves null, and never changes created_at.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - table: target table name.
//   - rows: rows to write; they may carry different column sets.
//   - conflictKey: columns of the table's unique key.
// Returns:
//   - int64: rows affected as reported by the driver.
//   - error: non-nil if any chunk fails.
func (r *RowRepository) Upsert(ctx context.Context, table string, rows []domain.TargetRow, conflictKey []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var affected int64
	for start := 0; start < len(rows); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		values := make([]map[string]interface{}, len(chunk))
		for i, row := range chunk {
			values[i] = map[string]interface{}(row)
		}

		result := r.db.WithContext(ctx).Table(table).
			Clauses(r.onConflict(table, columnsOf(chunk), conflictKey)).
			Create(values)
		if result.Error != nil {
			return affected, fmt.Errorf("upsert %d rows into %s: %w", len(chunk), table, result.Error)
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// DeleteByParent removes every row of table that belongs to one parent.
func (r *RowRepository) DeleteByParent(ctx context.Context, table, parentColumn string, parentID int64) (int64, error) {
	result := r.db.WithContext(ctx).Exec("DELETE FROM ? WHERE ? = ?",
		clause.Table{Name: table}, clause.Column{Name: parentColumn}, parentID)
	if result.Error != nil {
		return 0, fmt.Errorf("delete %s rows for parent %d: %w", table, parentID, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *RowRepository) onConflict(table string, columns, conflictKey []string) clause.OnConflict {
	keys := make(map[string]bool, len(conflictKey))
	target := make([]clause.Column, len(conflictKey))
	for i, k := range conflictKey {
		keys[k] = true
		target[i] = clause.Column{Name: k}
	}

	var set clause.Set
	for _, col := range columns {
		if keys[col] || col == "created_at" {
			continue
		}
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value: gorm.Expr("COALESCE(?, ?)",
				clause.Column{Table: "excluded", Name: col},
				clause.Column{Table: table, Name: col}),
		})
	}

	if len(set) == 0 {
		return clause.OnConflict{Columns: target, DoNothing: true}
	}
	return clause.OnConflict{Columns: target, DoUpdates: set}
}

// columnsOf returns the sorted union of the rows' column names.
func columnsOf(rows []domain.TargetRow) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
