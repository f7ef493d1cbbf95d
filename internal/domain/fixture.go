package domain

import "time"

// ParentStatus gates whether a parent is eligible for enrichment.
type ParentStatus string

const (
	ParentFinal    ParentStatus = "final"
	ParentNotFinal ParentStatus = "not-final"
)

// Fixture is a match row as created by the upstream fixture collector.
// The enrichment engine only reads it.
type Fixture struct {
	ID           int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SportmonksID int64     `gorm:"not null;uniqueIndex:idx_fixtures_sportmonks" json:"sportmonks_id"`
	LeagueID     *int64    `json:"league_id,omitempty"`
	SeasonID     *int64    `json:"season_id,omitempty"`
	Status       string    `gorm:"type:text;index:idx_fixtures_status" json:"status"`
	StartingAt   time.Time `gorm:"index:idx_fixtures_starting_at" json:"starting_at"`
	HomeTeamName string    `gorm:"type:text" json:"home_team_name"`
	AwayTeamName string    `gorm:"type:text" json:"away_team_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Fixture.
func (Fixture) TableName() string {
	return "fixtures"
}

// ParentRecord is one unit of enrichment work.
type ParentRecord struct {
	ID         int64 // store key, written into the parent column of target rows
	SourceID   int64 // remote fixture id used when calling the API
	Status     ParentStatus
	StartingAt time.Time
	Label      string // "Home vs Away", carried on per-parent log lines
}

// Cursor returns the enumeration position just after this record.
func (p ParentRecord) Cursor() Cursor {
	return Cursor{StartingAt: p.StartingAt, ID: p.ID}
}

// Cursor is a keyset position in most-recent-first parent order.
type Cursor struct {
	StartingAt time.Time
	ID         int64
}

// IsZero reports whether the cursor points at the start of the enumeration.
func (c Cursor) IsZero() bool {
	return c.ID == 0 && c.StartingAt.IsZero()
}
