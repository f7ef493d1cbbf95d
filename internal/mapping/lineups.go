package mapping

import "github.com/timmy/matchsync/internal/domain"

const (
	lineupTypeStarting = 11
	lineupTypeBench    = 12
)

var lineupColumns = []string{"player_id", "team_id"}

// MapLineups flattens fixture.lineups into match_lineups rows.
func MapLineups(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	items, err := src.List("lineups")
	if err != nil {
		return nil, shapeError("lineups", err)
	}

	rows := make([]domain.TargetRow, 0, len(items))
	for i, item := range items {
		row := domain.TargetRow{
			ColID:        rowKey(fixtureID, item, "id", "player_id", i),
			ColFixtureID: fixtureID,
		}
		putInt(row, "team_id", item, "team_id")
		putInt(row, "player_id", item, "player_id")
		putString(row, "player_name", item, "player_name")
		putInt(row, "position_id", item, "position_id")
		putInt(row, "type_id", item, "type_id")
		putInt(row, "jersey_number", item, "jersey_number")
		putString(row, "formation_field", item, "formation_field")
		putInt(row, "formation_position", item, "formation_position")

		if typeID, ok := item.Int("type_id"); ok {
			switch typeID {
			case lineupTypeStarting:
				row["lineup_type"] = "lineup"
			case lineupTypeBench:
				row["lineup_type"] = "bench"
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func lineupComplete(row domain.TargetRow) bool {
	return row.Has(lineupColumns...)
}
