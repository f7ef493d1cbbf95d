package mapping

import (
	"fmt"
	"sort"

	"github.com/timmy/matchsync/internal/domain"
)

// statColumns maps Sportmonks statistic type ids to match_statistics columns.
var statColumns = map[int64]string{
	34:  "corners",
	41:  "shots_off_target",
	42:  "shots_total",
	43:  "attacks",
	44:  "dangerous_attacks",
	45:  "ball_possession",
	49:  "shots_inside_box",
	50:  "shots_outside_box",
	51:  "offsides",
	56:  "fouls",
	57:  "saves",
	58:  "shots_blocked",
	78:  "tackles",
	80:  "passes_total",
	81:  "passes_accurate",
	82:  "pass_percentage",
	83:  "red_cards",
	84:  "yellow_cards",
	86:  "shots_on_target",
	100: "interceptions",
}

// Percentages keep their fractional part.
var floatStats = map[string]bool{
	"ball_possession": true,
	"pass_percentage": true,
}

var statisticColumns = func() []string {
	cols := make([]string, 0, len(statColumns))
	for _, c := range statColumns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}()

// MapStatistics aggregates the (type_id, data.value) records of
// fixture.statistics into one match_statistics row per team. Unknown types
// are ignored; a team without any known statistic produces no row.
func MapStatistics(fixtureID int64, src domain.Payload) ([]domain.TargetRow, error) {
	items, err := src.List("statistics")
	if err != nil {
		return nil, shapeError("statistics", err)
	}

	byTeam := make(map[int64]domain.TargetRow)
	for _, stat := range items {
		teamID, ok := stat.Int("participant_id")
		if !ok {
			continue
		}
		typeID, ok := stat.Int("type_id")
		if !ok {
			continue
		}
		col, known := statColumns[typeID]
		if !known {
			continue
		}
		data, ok := stat.Object("data")
		if !ok {
			continue
		}

		row, seen := byTeam[teamID]
		if !seen {
			row = domain.TargetRow{
				ColID:        fmt.Sprintf("%d_%d", fixtureID, teamID),
				ColFixtureID: fixtureID,
				"team_id":    teamID,
			}
			byTeam[teamID] = row
		}
		putString(row, "location", stat, "location")
		if floatStats[col] {
			putFloat(row, col, data, "value")
		} else {
			putInt(row, col, data, "value")
		}
	}

	teams := make([]int64, 0, len(byTeam))
	for id := range byTeam {
		teams = append(teams, id)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i] < teams[j] })

	rows := make([]domain.TargetRow, 0, len(teams))
	for _, id := range teams {
		row := byTeam[id]
		if statisticComplete(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func statisticComplete(row domain.TargetRow) bool {
	return row.HasAny(statisticColumns...)
}
