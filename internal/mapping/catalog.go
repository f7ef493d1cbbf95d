package mapping

import (
	"fmt"

	"github.com/timmy/matchsync/internal/domain"
)

func catalogRow(kind string, src domain.Payload) (domain.TargetRow, error) {
	id, ok := src.Int("id")
	if !ok {
		return nil, fmt.Errorf("map %s: %w: missing id", kind, domain.ErrUnexpectedShape)
	}
	return domain.TargetRow{ColID: id}, nil
}

// MapTeam maps one /teams item.
func MapTeam(src domain.Payload) (domain.TargetRow, error) {
	row, err := catalogRow("team", src)
	if err != nil {
		return nil, err
	}
	putString(row, "name", src, "name")
	putString(row, "short_code", src, "short_code")
	putInt(row, "country_id", src, "country_id")
	putInt(row, "venue_id", src, "venue_id")
	putString(row, "gender", src, "gender")
	putString(row, "type", src, "type")
	putInt(row, "founded", src, "founded")
	putString(row, "image_path", src, "image_path")
	putString(row, "last_played_at", src, "last_played_at")
	return row, nil
}

// MapPlayer maps one /players item.
func MapPlayer(src domain.Payload) (domain.TargetRow, error) {
	row, err := catalogRow("player", src)
	if err != nil {
		return nil, err
	}
	putString(row, "name", src, "name")
	putString(row, "common_name", src, "common_name")
	putString(row, "display_name", src, "display_name")
	putInt(row, "country_id", src, "country_id")
	putInt(row, "nationality_id", src, "nationality_id")
	putInt(row, "position_id", src, "position_id")
	putNested(row, "position_name", src, "position", "name")
	putString(row, "date_of_birth", src, "date_of_birth")
	putInt(row, "height", src, "height")
	putInt(row, "weight", src, "weight")
	putString(row, "image_path", src, "image_path")
	return row, nil
}

// MapTransfer maps one /transfers item.
func MapTransfer(src domain.Payload) (domain.TargetRow, error) {
	row, err := catalogRow("transfer", src)
	if err != nil {
		return nil, err
	}
	putInt(row, "player_id", src, "player_id")
	putInt(row, "from_team_id", src, "from_team_id")
	putInt(row, "to_team_id", src, "to_team_id")
	putInt(row, "type_id", src, "type_id")
	putInt(row, "position_id", src, "position_id")
	putString(row, "date", src, "date")
	putInt(row, "amount", src, "amount")
	putBool(row, "completed", src, "completed")
	putBool(row, "career_ended", src, "career_ended")
	return row, nil
}

// MapRound maps one /rounds item.
func MapRound(src domain.Payload) (domain.TargetRow, error) {
	row, err := catalogRow("round", src)
	if err != nil {
		return nil, err
	}
	putInt(row, "league_id", src, "league_id")
	putInt(row, "season_id", src, "season_id")
	putInt(row, "stage_id", src, "stage_id")
	putString(row, "name", src, "name")
	putBool(row, "finished", src, "finished")
	putBool(row, "is_current", src, "is_current")
	putString(row, "starting_at", src, "starting_at")
	putString(row, "ending_at", src, "ending_at")
	return row, nil
}

// MapStage maps one /stages item.
func MapStage(src domain.Payload) (domain.TargetRow, error) {
	row, err := catalogRow("stage", src)
	if err != nil {
		return nil, err
	}
	putInt(row, "league_id", src, "league_id")
	putInt(row, "season_id", src, "season_id")
	putInt(row, "type_id", src, "type_id")
	putString(row, "name", src, "name")
	putInt(row, "sort_order", src, "sort_order")
	putBool(row, "finished", src, "finished")
	putBool(row, "is_current", src, "is_current")
	putString(row, "starting_at", src, "starting_at")
	putString(row, "ending_at", src, "ending_at")
	return row, nil
}
