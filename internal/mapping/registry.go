package mapping

import (
	"fmt"
	"strings"

	"github.com/timmy/matchsync/internal/domain"
)

var idKey = []string{ColID}

// Targets returns every parent-scoped target in a stable order.
func Targets() []*domain.EnrichmentTarget {
	return []*domain.EnrichmentTarget{
		{
			Name: "events", Includes: []string{"events.type"},
			Table: "match_events", ParentColumn: ColFixtureID, ConflictKey: idKey,
			Columns: eventColumns, Map: MapEvents, Complete: eventComplete,
		},
		{
			Name: "lineups", Includes: []string{"lineups"},
			Table: "match_lineups", ParentColumn: ColFixtureID, ConflictKey: idKey,
			Columns: lineupColumns, Map: MapLineups, Complete: lineupComplete,
		},
		{
			Name: "statistics", Includes: []string{"statistics"},
			Table: "match_statistics", ParentColumn: ColFixtureID, ConflictKey: idKey,
			Columns: statisticColumns, Map: MapStatistics, Complete: statisticComplete,
		},
		{
			Name: "referees", Includes: []string{"referees"},
			Table: "fixture_referees", ParentColumn: ColFixtureID, ConflictKey: idKey,
			Columns: []string{"referee_id"}, Map: MapReferees, Complete: refereeComplete,
		},
		{
			Name: "periods", Includes: []string{"periods"},
			Table: "fixture_periods", ParentColumn: ColFixtureID, ConflictKey: idKey,
			Columns: []string{"type_id", "started"}, Map: MapPeriods, Complete: periodComplete,
		},
		{
			Name: "participants", Includes: []string{"participants"},
			Table: "fixture_participants", ParentColumn: ColFixtureID, ConflictKey: idKey,
			Columns: []string{"team_id", "location"}, Map: MapParticipants, Complete: participantComplete,
		},
		{
			Name: "details", Includes: []string{"round", "stage", "venue", "league", "season", "state"},
			Table: "fixture_details", ParentColumn: ColFixtureID, ConflictKey: []string{ColFixtureID},
			Columns: []string{"league_id", "season_id"}, Map: MapDetails, Complete: detailComplete,
		},
	}
}

// Lookup resolves target names, keeping the caller's order.
// Parameters:
//   - names: target names such as "events"; case-insensitive.
// Returns:
//   - []*domain.EnrichmentTarget: resolved targets without duplicates.
//   - error: non-nil on an unknown or empty name list.
func Lookup(names []string) ([]*domain.EnrichmentTarget, error) {
	byName := make(map[string]*domain.EnrichmentTarget)
	for _, t := range Targets() {
		byName[t.Name] = t
	}

	seen := make(map[string]bool)
	var out []*domain.EnrichmentTarget
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q (known: %s)", raw, strings.Join(TargetNames(), ", "))
		}
		seen[name] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no targets selected")
	}
	return out, nil
}

// TargetNames lists the names accepted by Lookup.
func TargetNames() []string {
	targets := Targets()
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}

// Collections returns every catalog collection in a stable order.
func Collections() []*domain.CollectionTarget {
	return []*domain.CollectionTarget{
		{Name: "teams", Endpoint: "/teams", Table: "teams", ConflictKey: idKey, Map: MapTeam},
		{Name: "players", Endpoint: "/players", Includes: []string{"position"}, Table: "players", ConflictKey: idKey, Map: MapPlayer},
		{Name: "transfers", Endpoint: "/transfers", Table: "transfers", ConflictKey: idKey, Map: MapTransfer},
		{Name: "rounds", Endpoint: "/rounds", Table: "rounds", ConflictKey: idKey, Map: MapRound},
		{Name: "stages", Endpoint: "/stages", Table: "stages", ConflictKey: idKey, Map: MapStage},
	}
}

// LookupCollections resolves collection names, keeping the caller's order.
func LookupCollections(names []string) ([]*domain.CollectionTarget, error) {
	byName := make(map[string]*domain.CollectionTarget)
	known := make([]string, 0)
	for _, c := range Collections() {
		byName[c.Name] = c
		known = append(known, c.Name)
	}

	seen := make(map[string]bool)
	var out []*domain.CollectionTarget
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || seen[name] {
			continue
		}
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown collection %q (known: %s)", raw, strings.Join(known, ", "))
		}
		seen[name] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no collections selected")
	}
	return out, nil
}
