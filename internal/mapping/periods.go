package mapping

import "github.com/timmy/matchsync/internal/domain"

// MapPeriods flattens fixture.periods into fixture_periods rows.
func MapPeriods(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	items, err := src.List("periods")
	if err != nil {
		return nil, shapeError("periods", err)
	}

	rows := make([]domain.TargetRow, 0, len(items))
	for i, item := range items {
		row := domain.TargetRow{
			ColID:        rowKey(fixtureID, item, "id", "type_id", i),
			ColFixtureID: fixtureID,
		}
		putInt(row, "type_id", item, "type_id")
		putString(row, "description", item, "description")
		putInt(row, "started", item, "started")
		putInt(row, "ended", item, "ended")
		putInt(row, "counts_from", item, "counts_from")
		putInt(row, "minutes", item, "minutes")
		putInt(row, "time_added", item, "time_added")
		putInt(row, "period_length", item, "period_length")
		putInt(row, "sort_order", item, "sort_order")
		rows = append(rows, row)
	}
	return rows, nil
}

func periodComplete(row domain.TargetRow) bool {
	return row.Has("type_id", "started")
}
