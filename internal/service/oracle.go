package service

import (
	"context"
	"fmt"

	"github.com/timmy/matchsync/internal/domain"
)

// DefaultThreshold is the share of stored rows that must satisfy a target's
// completeness predicate for the pair to count as Complete.
const DefaultThreshold = 0.8

// RowReader reads stored rows for one parent.
type RowReader interface {
	ListByParent(ctx context.Context, table, parentColumn string, parentID int64, columns []string) ([]domain.TargetRow, error)
}

// CompletenessOracle decides whether a (parent, entity) pair needs work.
type CompletenessOracle struct {
	rows      RowReader
	threshold float64
	overrides map[string]float64
}

// NewCompletenessOracle creates a new oracle.
// Parameters:
//   - rows: store reader.
//   - threshold: default ratio; zero or less uses DefaultThreshold.
//   - overrides: per-target ratios keyed by target name; may be nil.
// Returns:
//   - *CompletenessOracle: ready-to-use oracle.
func NewCompletenessOracle(rows RowReader, threshold float64, overrides map[string]float64) *CompletenessOracle {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &CompletenessOracle{rows: rows, threshold: threshold, overrides: overrides}
}

// ThresholdFor returns the ratio that applies to target. Configured
// overrides win over the descriptor's own value.
func (o *CompletenessOracle) ThresholdFor(target *domain.EnrichmentTarget) float64 {
	if th, ok := o.overrides[target.Name]; ok && th > 0 {
		return th
	}
	if target.Threshold > 0 {
		return target.Threshold
	}
	return o.threshold
}

// Classify reads the stored rows for parentID and classifies them.
// Returns:
//   - domain.Classification: Absent, Partial or Complete.
//   - int: number of stored rows.
//   - error: non-nil if the store read fails.
func (o *CompletenessOracle) Classify(ctx context.Context, parentID int64, target *domain.EnrichmentTarget) (domain.Classification, int, error) {
	rows, err := o.rows.ListByParent(ctx, target.Table, target.ParentColumn, parentID, target.Columns)
	if err != nil {
		return domain.Absent, 0, fmt.Errorf("classify %s: %w", target.Name, err)
	}
	return ClassifyRows(rows, target.Complete, o.ThresholdFor(target)), len(rows), nil
}

// ClassifyRows applies the completeness rule to already loaded rows.
func ClassifyRows(rows []domain.TargetRow, complete domain.Predicate, threshold float64) domain.Classification {
	if len(rows) == 0 {
		return domain.Absent
	}
	satisfied := 0
	for _, row := range rows {
		if complete(row) {
			satisfied++
		}
	}
	if float64(satisfied)/float64(len(rows)) >= threshold {
		return domain.Complete
	}
	return domain.Partial
}
