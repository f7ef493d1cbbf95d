package mapping

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/matchsync/internal/domain"
)

func payload(t *testing.T, raw string) domain.Payload {
	t.Helper()
	var p domain.Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestMapEvents(t *testing.T) {
	src := payload(t, `{"id": 500, "events": [
		{"id": 11, "type_id": 14, "type": {"id": 14, "name": "Goal"}, "minute": 23,
		 "participant_id": 3, "player_id": 77, "player_name": "A. Striker", "result": "1-0"},
		{"id": 12, "type_id": 19, "minute": 55, "extra_minute": null, "injured": false}
	]}`)

	rows, err := MapEvents(42, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	goal := rows[0]
	assert.Equal(t, "42_11", goal["id"])
	assert.EqualValues(t, 42, goal["fixture_id"])
	assert.EqualValues(t, 11, goal["source_event_id"])
	assert.Equal(t, "Goal", goal["event_type"])
	assert.EqualValues(t, 3, goal["team_id"])
	assert.EqualValues(t, 23, goal["minute"])
	assert.True(t, eventComplete(goal))

	card := rows[1]
	_, hasType := card["event_type"]
	assert.False(t, hasType, "absent nested type must be omitted")
	_, hasExtra := card["extra_minute"]
	assert.False(t, hasExtra, "null fields must be omitted")
	assert.Equal(t, false, card["injured"])
	for col, v := range card {
		assert.NotNil(t, v, "column %s carries nil", col)
	}
}

func TestMapEventsFallbackKey(t *testing.T) {
	rows, err := MapEvents(7, payload(t, `{"events": [{"type_id": 14}]}`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7_i0", rows[0]["id"])
	assert.False(t, eventComplete(rows[0]))
}

func TestMapEventsKeysAreStable(t *testing.T) {
	raw := `{"events": [{"id": 1, "minute": 3}, {"id": 2, "minute": 9}]}`
	a, err := MapEvents(1, payload(t, raw))
	require.NoError(t, err)
	b, err := MapEvents(1, payload(t, raw))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMapUnexpectedShape(t *testing.T) {
	mappers := map[string]domain.MapFunc{
		"events":       MapEvents,
		"lineups":      MapLineups,
		"statistics":   MapStatistics,
		"referees":     MapReferees,
		"periods":      MapPeriods,
		"participants": MapParticipants,
	}
	for name, fn := range mappers {
		t.Run(name, func(t *testing.T) {
			_, err := fn(1, domain.Payload{name: "not a list"})
			assert.ErrorIs(t, err, domain.ErrUnexpectedShape)
		})
	}

	_, err := MapDetails(1, domain.Payload{"league": []interface{}{1}})
	assert.ErrorIs(t, err, domain.ErrUnexpectedShape)
}

func TestMapEmptyPayloadYieldsNoRows(t *testing.T) {
	for _, target := range Targets() {
		t.Run(target.Name, func(t *testing.T) {
			rows, err := target.Map(1, domain.Payload{"id": float64(1)})
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestMapLineups(t *testing.T) {
	src := payload(t, `{"lineups": [
		{"id": 900, "player_id": 10, "team_id": 3, "type_id": 11, "jersey_number": 9, "formation_field": "4:1"},
		{"player_id": 11, "team_id": 3, "type_id": 12}
	]}`)

	rows, err := MapLineups(5, src)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "5_900", rows[0]["id"])
	assert.Equal(t, "lineup", rows[0]["lineup_type"])
	assert.Equal(t, "5_11", rows[1]["id"], "falls back to player id")
	assert.Equal(t, "bench", rows[1]["lineup_type"])
	assert.True(t, lineupComplete(rows[1]))
}

func TestMapStatistics(t *testing.T) {
	src := payload(t, `{"statistics": [
		{"type_id": 42, "participant_id": 3, "location": "home", "data": {"value": 14}},
		{"type_id": 45, "participant_id": 3, "data": {"value": 61.5}},
		{"type_id": 42, "participant_id": 4, "location": "away", "data": {"value": 6}},
		{"type_id": 9999, "participant_id": 5, "data": {"value": 1}},
		{"type_id": 34, "data": {"value": 2}}
	]}`)

	rows, err := MapStatistics(8, src)
	require.NoError(t, err)
	require.Len(t, rows, 2, "unknown-type-only team and participant-less records are dropped")

	home := rows[0]
	assert.Equal(t, "8_3", home["id"])
	assert.EqualValues(t, 3, home["team_id"])
	assert.Equal(t, "home", home["location"])
	assert.EqualValues(t, 14, home["shots_total"])
	assert.InDelta(t, 61.5, home["ball_possession"], 1e-9)

	away := rows[1]
	assert.Equal(t, "8_4", away["id"])
	_, hasPossession := away["ball_possession"]
	assert.False(t, hasPossession)
}

func TestMapReferees(t *testing.T) {
	rows, err := MapReferees(2, payload(t, `{"referees": [
		{"id": 31, "referee_id": 1001, "type_id": 6},
		{"id": 32, "referee_id": 1002, "type_id": 99},
		{"id": 33, "type_id": 7}
	]}`))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "referee", rows[0]["role"])
	_, hasRole := rows[1]["role"]
	assert.False(t, hasRole)
	assert.True(t, refereeComplete(rows[0]))
	assert.False(t, refereeComplete(rows[2]))
}

func TestMapPeriodsAndParticipants(t *testing.T) {
	src := payload(t, `{
		"periods": [{"id": 1, "type_id": 1, "started": 1700000000, "ended": 1700002700, "description": "1st-half"}],
		"participants": [{"id": 3, "name": "Home FC", "meta": {"location": "home", "winner": true, "position": 1}},
		                 {"id": 4, "name": "Away FC"}]
	}`)

	periods, err := MapPeriods(9, src)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.True(t, periodComplete(periods[0]))

	parts, err := MapParticipants(9, src)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "9_3", parts[0]["id"])
	assert.Equal(t, true, parts[0]["winner"])
	assert.True(t, participantComplete(parts[0]))
	assert.False(t, participantComplete(parts[1]), "no meta means no location")
}

func TestMapDetails(t *testing.T) {
	src := payload(t, `{"id": 1, "name": "Home vs Away", "league_id": 8, "season": {"id": 2023, "name": "2023/2024"},
		"venue": {"id": 5, "name": "Ground", "city_name": "Town"}, "state": {"id": 5, "short_name": "FT", "name": "Full Time"}}`)

	rows, err := MapDetails(1, src)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.EqualValues(t, 1, row["fixture_id"])
	assert.EqualValues(t, 8, row["league_id"])
	assert.EqualValues(t, 2023, row["season_id"])
	assert.Equal(t, "2023/2024", row["season_name"])
	assert.Equal(t, "Town", row["venue_city"])
	assert.Equal(t, "FT", row["state_code"])
	assert.True(t, detailComplete(row))
	_, hasRound := row["round_id"]
	assert.False(t, hasRound)
}

func TestCatalogMappers(t *testing.T) {
	team, err := MapTeam(payload(t, `{"id": 3, "name": "Home FC", "founded": 1899}`))
	require.NoError(t, err)
	assert.EqualValues(t, 3, team["id"])
	assert.EqualValues(t, 1899, team["founded"])

	player, err := MapPlayer(payload(t, `{"id": 77, "display_name": "Striker", "position": {"name": "Attacker"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Attacker", player["position_name"])

	_, err = MapTransfer(payload(t, `{"player_id": 77}`))
	assert.ErrorIs(t, err, domain.ErrUnexpectedShape)

	round, err := MapRound(payload(t, `{"id": 1, "finished": true}`))
	require.NoError(t, err)
	assert.Equal(t, true, round["finished"])

	stage, err := MapStage(payload(t, `{"id": 2, "sort_order": 1}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stage["sort_order"])
}

func TestRegistryTargetsAreValid(t *testing.T) {
	for _, target := range Targets() {
		assert.NoError(t, target.Validate(), target.Name)
	}
	for _, c := range Collections() {
		assert.NoError(t, c.Validate(), c.Name)
	}
}

func TestLookup(t *testing.T) {
	targets, err := Lookup([]string{"Lineups", "events", "lineups", ""})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "lineups", targets[0].Name)
	assert.Equal(t, "events", targets[1].Name)

	_, err = Lookup([]string{"xg"})
	assert.Error(t, err)

	_, err = Lookup(nil)
	assert.Error(t, err)

	cols, err := LookupCollections([]string{"teams", "stages"})
	require.NoError(t, err)
	assert.Len(t, cols, 2)

	_, err = LookupCollections([]string{"venues"})
	assert.Error(t, err)
}
