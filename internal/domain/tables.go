package domain

import "time"

// The models below describe the target tables written by the enrichment
// engine. The engine itself writes them through untyped rows; the structs
// exist so database.auto_migrate can create the schema.

// MatchEvent is one in-match event (goal, card, substitution, ...).
type MatchEvent struct {
	ID                string  `gorm:"type:text;primaryKey"`
	FixtureID         int64   `gorm:"not null;index:idx_match_events_fixture"`
	SourceEventID     *int64
	TypeID            *int64
	EventType         *string `gorm:"type:text"`
	SubTypeID         *int64
	PeriodID          *int64
	TeamID            *int64
	PlayerID          *int64
	PlayerName        *string `gorm:"type:text"`
	RelatedPlayerID   *int64
	RelatedPlayerName *string `gorm:"type:text"`
	Minute            *int64
	ExtraMinute       *int64
	Result            *string `gorm:"type:text"`
	Info              *string `gorm:"type:text"`
	Addition          *string `gorm:"type:text"`
	Injured           *bool
	OnBench           *bool
	SortOrder         *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (MatchEvent) TableName() string { return "match_events" }

// MatchLineup is one player's appearance in a fixture line-up.
type MatchLineup struct {
	ID                string  `gorm:"type:text;primaryKey"`
	FixtureID         int64   `gorm:"not null;index:idx_match_lineups_fixture"`
	TeamID            *int64
	PlayerID          *int64
	PlayerName        *string `gorm:"type:text"`
	PositionID        *int64
	TypeID            *int64
	LineupType        *string `gorm:"type:text"`
	JerseyNumber      *int64
	FormationField    *string `gorm:"type:text"`
	FormationPosition *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (MatchLineup) TableName() string { return "match_lineups" }

// MatchStatistic holds one team's aggregated statistics for a fixture.
type MatchStatistic struct {
	ID               string  `gorm:"type:text;primaryKey"`
	FixtureID        int64   `gorm:"not null;index:idx_match_statistics_fixture"`
	TeamID           int64   `gorm:"not null"`
	Location         *string `gorm:"type:text"`
	ShotsTotal       *int64
	ShotsOnTarget    *int64
	ShotsOffTarget   *int64
	ShotsBlocked     *int64
	ShotsInsideBox   *int64
	ShotsOutsideBox  *int64
	Corners          *int64
	BallPossession   *float64
	Fouls            *int64
	Offsides         *int64
	YellowCards      *int64
	RedCards         *int64
	Saves            *int64
	PassesTotal      *int64
	PassesAccurate   *int64
	PassPercentage   *float64
	Interceptions    *int64
	Tackles          *int64
	Attacks          *int64
	DangerousAttacks *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (MatchStatistic) TableName() string { return "match_statistics" }

// FixtureReferee links an official to a fixture.
type FixtureReferee struct {
	ID        string  `gorm:"type:text;primaryKey"`
	FixtureID int64   `gorm:"not null;index:idx_fixture_referees_fixture"`
	RefereeID *int64
	TypeID    *int64
	Role      *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FixtureReferee) TableName() string { return "fixture_referees" }

// FixturePeriod is one period of play (first half, extra time, ...).
type FixturePeriod struct {
	ID           string  `gorm:"type:text;primaryKey"`
	FixtureID    int64   `gorm:"not null;index:idx_fixture_periods_fixture"`
	TypeID       *int64
	Description  *string `gorm:"type:text"`
	Started      *int64
	Ended        *int64
	CountsFrom   *int64
	Minutes      *int64
	TimeAdded    *int64
	PeriodLength *int64
	SortOrder    *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (FixturePeriod) TableName() string { return "fixture_periods" }

// FixtureParticipant is one team taking part in a fixture.
type FixtureParticipant struct {
	ID        string  `gorm:"type:text;primaryKey"`
	FixtureID int64   `gorm:"not null;index:idx_fixture_participants_fixture"`
	TeamID    *int64
	TeamName  *string `gorm:"type:text"`
	ShortCode *string `gorm:"type:text"`
	ImagePath *string `gorm:"type:text"`
	Location  *string `gorm:"type:text"`
	Winner    *bool
	Position  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (FixtureParticipant) TableName() string { return "fixture_participants" }

// FixtureDetail flattens the fixture's context objects into one row.
type FixtureDetail struct {
	FixtureID           int64   `gorm:"primaryKey;autoIncrement:false"`
	Name                *string `gorm:"type:text"`
	ResultInfo          *string `gorm:"type:text"`
	Length              *int64
	StartingAtTimestamp *int64
	HasOdds             *bool
	LeagueID            *int64
	LeagueName          *string `gorm:"type:text"`
	SeasonID            *int64
	SeasonName          *string `gorm:"type:text"`
	StageID             *int64
	StageName           *string `gorm:"type:text"`
	RoundID             *int64
	RoundName           *string `gorm:"type:text"`
	VenueID             *int64
	VenueName           *string `gorm:"type:text"`
	VenueCity           *string `gorm:"type:text"`
	StateID             *int64
	StateCode           *string `gorm:"type:text"`
	StateName           *string `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (FixtureDetail) TableName() string { return "fixture_details" }

// Team is a catalog row from the teams collection.
type Team struct {
	ID           int64   `gorm:"primaryKey;autoIncrement:false"`
	Name         *string `gorm:"type:text"`
	ShortCode    *string `gorm:"type:text"`
	CountryID    *int64
	VenueID      *int64
	Gender       *string `gorm:"type:text"`
	Type         *string `gorm:"type:text"`
	Founded      *int64
	ImagePath    *string `gorm:"type:text"`
	LastPlayedAt *string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Team) TableName() string { return "teams" }

// Player is a catalog row from the players collection.
type Player struct {
	ID            int64   `gorm:"primaryKey;autoIncrement:false"`
	Name          *string `gorm:"type:text"`
	CommonName    *string `gorm:"type:text"`
	DisplayName   *string `gorm:"type:text"`
	CountryID     *int64
	NationalityID *int64
	PositionID    *int64
	PositionName  *string `gorm:"type:text"`
	DateOfBirth   *string `gorm:"type:text"`
	Height        *int64
	Weight        *int64
	ImagePath     *string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Player) TableName() string { return "players" }

// Transfer is a catalog row from the transfers collection.
type Transfer struct {
	ID          int64   `gorm:"primaryKey;autoIncrement:false"`
	PlayerID    *int64
	FromTeamID  *int64
	ToTeamID    *int64
	TypeID      *int64
	PositionID  *int64
	Date        *string `gorm:"type:text"`
	Amount      *int64
	Completed   *bool
	CareerEnded *bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Transfer) TableName() string { return "transfers" }

// Round is a catalog row from the rounds collection.
type Round struct {
	ID         int64   `gorm:"primaryKey;autoIncrement:false"`
	LeagueID   *int64
	SeasonID   *int64
	StageID    *int64
	Name       *string `gorm:"type:text"`
	Finished   *bool
	IsCurrent  *bool
	StartingAt *string `gorm:"type:text"`
	EndingAt   *string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Round) TableName() string { return "rounds" }

// Stage is a catalog row from the stages collection.
type Stage struct {
	ID         int64   `gorm:"primaryKey;autoIncrement:false"`
	LeagueID   *int64
	SeasonID   *int64
	TypeID     *int64
	Name       *string `gorm:"type:text"`
	SortOrder  *int64
	Finished   *bool
	IsCurrent  *bool
	StartingAt *string `gorm:"type:text"`
	EndingAt   *string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Stage) TableName() string { return "stages" }

// TargetModels lists every table model the engine may write.
func TargetModels() []interface{} {
	return []interface{}{
		&MatchEvent{},
		&MatchLineup{},
		&MatchStatistic{},
		&FixtureReferee{},
		&FixturePeriod{},
		&FixtureParticipant{},
		&FixtureDetail{},
		&Team{},
		&Player{},
		&Transfer{},
		&Round{},
		&Stage{},
	}
}
