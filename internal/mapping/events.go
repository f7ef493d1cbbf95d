package mapping

import "github.com/timmy/matchsync/internal/domain"

var eventColumns = []string{"type_id", "minute"}

// MapEvents flattens fixture.events into match_events rows.
func MapEvents(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	items, err := src.List("events")
	if err != nil {
		return nil, shapeError("events", err)
	}

	rows := make([]domain.TargetRow, 0, len(items))
	for i, ev := range items {
		row := domain.TargetRow{
			ColID:        rowKey(fixtureID, ev, "id", "", i),
			ColFixtureID: fixtureID,
		}
		putInt(row, "source_event_id", ev, "id")
		putInt(row, "type_id", ev, "type_id")
		putNested(row, "event_type", ev, "type", "name")
		putInt(row, "sub_type_id", ev, "sub_type_id")
		putInt(row, "period_id", ev, "period_id")
		putInt(row, "team_id", ev, "participant_id")
		putInt(row, "player_id", ev, "player_id")
		putString(row, "player_name", ev, "player_name")
		putInt(row, "related_player_id", ev, "related_player_id")
		putString(row, "related_player_name", ev, "related_player_name")
		putInt(row, "minute", ev, "minute")
		putInt(row, "extra_minute", ev, "extra_minute")
		putString(row, "result", ev, "result")
		putString(row, "info", ev, "info")
		putString(row, "addition", ev, "addition")
		putBool(row, "injured", ev, "injured")
		putBool(row, "on_bench", ev, "on_bench")
		putInt(row, "sort_order", ev, "sort_order")
		rows = append(rows, row)
	}
	return rows, nil
}

func eventComplete(row domain.TargetRow) bool {
	return row.Has(eventColumns...)
}
