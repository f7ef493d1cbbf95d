package mapping

import (
	"fmt"

	"github.com/timmy/matchsync/internal/domain"
)

var detailObjects = []string{"league", "season", "stage", "round", "venue", "state"}

// MapDetails flattens the fixture's own fields and its round, stage, venue,
// league, season and state objects into a single fixture_details row.
// A payload carrying none of them yields no row.
func MapDetails(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	for _, key := range detailObjects {
		if v, ok := src[key]; ok && v != nil {
			if _, isObj := src.Object(key); !isObj {
				return nil, shapeError("details", fmt.Errorf("%w: %q is %T, want object", domain.ErrUnexpectedShape, key, v))
			}
		}
	}

	row := domain.TargetRow{ColFixtureID: fixtureID}

	putString(row, "name", src, "name")
	putString(row, "result_info", src, "result_info")
	putInt(row, "length", src, "length")
	putInt(row, "starting_at_timestamp", src, "starting_at_timestamp")
	putBool(row, "has_odds", src, "has_odds")

	putIDOrNested(row, "league_id", src, "league_id", "league")
	putNested(row, "league_name", src, "league", "name")
	putIDOrNested(row, "season_id", src, "season_id", "season")
	putNested(row, "season_name", src, "season", "name")
	putIDOrNested(row, "stage_id", src, "stage_id", "stage")
	putNested(row, "stage_name", src, "stage", "name")
	putIDOrNested(row, "round_id", src, "round_id", "round")
	putNested(row, "round_name", src, "round", "name")
	putIDOrNested(row, "venue_id", src, "venue_id", "venue")
	putNested(row, "venue_name", src, "venue", "name")
	putNested(row, "venue_city", src, "venue", "city_name")
	putIDOrNested(row, "state_id", src, "state_id", "state")
	putNested(row, "state_code", src, "state", "short_name")
	putNested(row, "state_name", src, "state", "name")

	if len(row) == 1 {
		return nil, nil
	}
	return []domain.TargetRow{row}, nil
}

func detailComplete(row domain.TargetRow) bool {
	return row.Has("league_id", "season_id")
}
