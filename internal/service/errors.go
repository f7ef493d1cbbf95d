package service

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable aborts a run after too many consecutive batches in
	// which every store operation failed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEnumeration aborts a run when the parent list cannot be read.
	ErrEnumeration = errors.New("parent enumeration failed")

	// ErrRunInProgress is returned when a second run is requested while one
	// is still active.
	ErrRunInProgress = errors.New("a run is already in progress")
)

// Stage names the pipeline step an item failed in.
type Stage string

const (
	StageClassify Stage = "classify"
	StageFetch    Stage = "fetch"
	StageMap      Stage = "map"
	StageWrite    Stage = "write"
)

// ItemError is a failure scoped to one (parent, entity) pair. It is counted
// and logged; it never stops the run.
type ItemError struct {
	ParentID int64
	Entity   string
	Stage    Stage
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s for parent %d: %v", e.Stage, e.Entity, e.ParentID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
