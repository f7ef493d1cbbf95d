package mapping

import "github.com/timmy/matchsync/internal/domain"

// MapParticipants flattens fixture.participants (teams with a meta block)
// into fixture_participants rows.
func MapParticipants(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	items, err := src.List("participants")
	if err != nil {
		return nil, shapeError("participants", err)
	}

	rows := make([]domain.TargetRow, 0, len(items))
	for i, team := range items {
		row := domain.TargetRow{
			ColID:        rowKey(fixtureID, team, "id", "", i),
			ColFixtureID: fixtureID,
		}
		putInt(row, "team_id", team, "id")
		putString(row, "team_name", team, "name")
		putString(row, "short_code", team, "short_code")
		putString(row, "image_path", team, "image_path")
		if meta, ok := team.Object("meta"); ok {
			putString(row, "location", meta, "location")
			putBool(row, "winner", meta, "winner")
			putInt(row, "position", meta, "position")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func participantComplete(row domain.TargetRow) bool {
	return row.Has("team_id", "location")
}
