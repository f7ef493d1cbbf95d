package domain

import (
	"errors"
	"fmt"
)

// Classification is the completeness state of the stored rows for one
// (parent, entity kind) pair.
type Classification int

const (
	Absent Classification = iota
	Partial
	Complete
)

// String returns the lowercase name of the classification.
func (c Classification) String() string {
	switch c {
	case Absent:
		return "absent"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// TargetRow is one flat row destined for a relational table.
// Fields the mapper could not derive are left out rather than set to nil.
type TargetRow map[string]interface{}

// Has reports whether every named column is present with a non-nil value.
func (r TargetRow) Has(columns ...string) bool {
	for _, col := range columns {
		if v, ok := r[col]; !ok || v == nil {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one named column carries a non-nil value.
func (r TargetRow) HasAny(columns ...string) bool {
	for _, col := range columns {
		if v, ok := r[col]; ok && v != nil {
			return true
		}
	}
	return false
}

// MapFunc translates one source payload into target rows for a parent.
type MapFunc func(parentID int64, src Payload) ([]TargetRow, error)

// Predicate decides whether a stored row counts as usefully populated.
type Predicate func(row TargetRow) bool

// EnrichmentTarget describes one parent-scoped entity kind.
type EnrichmentTarget struct {
	Name         string
	Includes     []string // sub-resources requested from the API
	Table        string
	ParentColumn string
	ConflictKey  []string
	Columns      []string // columns read back by the completeness check
	Map          MapFunc
	Complete     Predicate
	Threshold    float64 // zero means the engine default
}

// Validate checks that the descriptor is usable by the engine.
func (t *EnrichmentTarget) Validate() error {
	switch {
	case t == nil:
		return errors.New("target is nil")
	case t.Name == "":
		return errors.New("target: name is required")
	case t.Table == "":
		return fmt.Errorf("target %q: table is required", t.Name)
	case t.ParentColumn == "":
		return fmt.Errorf("target %q: parent column is required", t.Name)
	case len(t.ConflictKey) == 0:
		return fmt.Errorf("target %q: conflict key is required", t.Name)
	case len(t.Includes) == 0:
		return fmt.Errorf("target %q: at least one include is required", t.Name)
	case t.Map == nil:
		return fmt.Errorf("target %q: map function is required", t.Name)
	case t.Complete == nil:
		return fmt.Errorf("target %q: completeness predicate is required", t.Name)
	case t.Threshold < 0 || t.Threshold > 1:
		return fmt.Errorf("target %q: threshold %.2f out of range", t.Name, t.Threshold)
	}
	return nil
}

// CollectionTarget describes a paginated catalog collection (teams, players,
// ...) that is not scoped to a parent.
type CollectionTarget struct {
	Name        string
	Endpoint    string
	Includes    []string
	Table       string
	ConflictKey []string
	Map         func(src Payload) (TargetRow, error)
}

// Validate checks that the collection descriptor is usable.
func (t *CollectionTarget) Validate() error {
	switch {
	case t == nil:
		return errors.New("collection is nil")
	case t.Name == "":
		return errors.New("collection: name is required")
	case t.Endpoint == "":
		return fmt.Errorf("collection %q: endpoint is required", t.Name)
	case t.Table == "":
		return fmt.Errorf("collection %q: table is required", t.Name)
	case len(t.ConflictKey) == 0:
		return fmt.Errorf("collection %q: conflict key is required", t.Name)
	case t.Map == nil:
		return fmt.Errorf("collection %q: map function is required", t.Name)
	}
	return nil
}
