package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunStatus represents the status of an enrichment run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed" // reached Done with no errors
	RunStatusPartial   RunStatus = "partial"   // reached Done with item errors
	RunStatusAborted   RunStatus = "aborted"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunKind distinguishes parent enrichment runs from catalog syncs.
type RunKind string

const (
	RunKindEnrich  RunKind = "enrich"
	RunKindCatalog RunKind = "catalog"
)

// StringArray stores a string slice as JSON text.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// EnrichmentRun is the persisted summary of one engine run.
// It is written at start and finish for operator visibility; it is not used
// to resume work.
type EnrichmentRun struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	Kind           RunKind     `gorm:"type:text;not null;index" json:"kind"`
	Targets        StringArray `gorm:"type:text" json:"targets"`
	Status         RunStatus   `gorm:"type:text;index;default:running" json:"status"`
	Processed      int64       `gorm:"default:0" json:"processed"`
	Inserted       int64       `gorm:"default:0" json:"inserted"`
	Updated        int64       `gorm:"default:0" json:"updated"`
	Skipped        int64       `gorm:"default:0" json:"skipped"`
	NoData         int64       `gorm:"default:0" json:"no_data"`
	Errored        int64       `gorm:"default:0" json:"errored"`
	SubRowsWritten int64       `gorm:"default:0" json:"sub_rows_written"`
	Batches        int64       `gorm:"default:0" json:"batches"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
	ErrorLog       string      `gorm:"type:text" json:"error_log,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for EnrichmentRun.
func (EnrichmentRun) TableName() string {
	return "enrichment_runs"
}
