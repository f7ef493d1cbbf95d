package mapping

import "github.com/timmy/matchsync/internal/domain"

var refereeRoles = map[int64]string{
	6:  "referee",
	7:  "assistant_1",
	8:  "assistant_2",
	9:  "fourth_official",
	10: "var",
}

// MapReferees flattens fixture.referees into fixture_referees rows.
func MapReferees(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	items, err := src.List("referees")
	if err != nil {
		return nil, shapeError("referees", err)
	}

	rows := make([]domain.TargetRow, 0, len(items))
	for i, item := range items {
		row := domain.TargetRow{
			ColID:        rowKey(fixtureID, item, "id", "referee_id", i),
			ColFixtureID: fixtureID,
		}
		putInt(row, "referee_id", item, "referee_id")
		putInt(row, "type_id", item, "type_id")
		if typeID, ok := item.Int("type_id"); ok {
			if role, ok := refereeRoles[typeID]; ok {
				row["role"] = role
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func refereeComplete(row domain.TargetRow) bool {
	return row.Has("referee_id")
}
