// Package mapping turns Sportmonks payloads into flat rows for the store.
// Mappers are pure: they never touch the network or the database, and they
// leave a column out of the row when the source does not carry it.
package mapping

import (
	"fmt"

	"github.com/timmy/matchsync/internal/domain"
)

// Columns stamped on every row.
const (
	ColFixtureID = "fixture_id"
	ColID        = "id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

func putInt(row domain.TargetRow, col string, src domain.Payload, key string) {
	if v, ok := src.Int(key); ok {
		row[col] = v
	}
}

func putFloat(row domain.TargetRow, col string, src domain.Payload, key string) {
	if v, ok := src.Float(key); ok {
		row[col] = v
	}
}

func putString(row domain.TargetRow, col string, src domain.Payload, key string) {
	if v, ok := src.String(key); ok {
		row[col] = v
	}
}

func putBool(row domain.TargetRow, col string, src domain.Payload, key string) {
	if v, ok := src.Bool(key); ok {
		row[col] = v
	}
}

// putNested copies obj.key into col, e.g. type.name into event_type.
func putNested(row domain.TargetRow, col string, src domain.Payload, obj, key string) {
	nested, ok := src.Object(obj)
	if !ok {
		return
	}
	if v, ok := nested.String(key); ok {
		row[col] = v
		return
	}
	if v, ok := nested.Int(key); ok {
		row[col] = v
	}
}

// putIDOrNested prefers the flat foreign key (league_id) and falls back to
// the id of the embedded object (league.id).
func putIDOrNested(row domain.TargetRow, col string, src domain.Payload, flat, obj string) {
	if v, ok := src.Int(flat); ok {
		row[col] = v
		return
	}
	if nested, ok := src.Object(obj); ok {
		putInt(row, col, nested, "id")
	}
}

// rowKey builds the deterministic "<fixture>_<suffix>" conflict key. When
// the item has no usable id the fallback field is tried, then the position.
func rowKey(fixtureID int64, item domain.Payload, idKey, fallbackKey string, index int) string {
	if id, ok := item.Int(idKey); ok {
		return fmt.Sprintf("%d_%d", fixtureID, id)
	}
	if fallbackKey != "" {
		if id, ok := item.Int(fallbackKey); ok {
			return fmt.Sprintf("%d_%d", fixtureID, id)
		}
	}
	return fmt.Sprintf("%d_i%d", fixtureID, index)
}

func shapeError(target string, err error) error {
	return fmt.Errorf("map %s: %w", target, err)
}
