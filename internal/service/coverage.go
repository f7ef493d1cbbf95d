package service

import (
	"context"

	"github.com/timmy/matchsync/internal/domain"
)

// CoverageCounter counts eligible parents and those with stored rows.
type CoverageCounter interface {
	CountFinal(ctx context.Context) (int64, error)
	CountFinalWithRows(ctx context.Context, table, parentColumn string) (int64, error)
}

// Coverage is the share of eligible parents with at least one stored row
// for an entity kind.
type Coverage struct {
	Entity  string  `json:"entity"`
	Table   string  `json:"table"`
	Covered int64   `json:"covered"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
}

// CoverageService reports per-target coverage.
type CoverageService struct {
	counter CoverageCounter
}

// NewCoverageService creates a new coverage service.
func NewCoverageService(counter CoverageCounter) *CoverageService {
	return &CoverageService{counter: counter}
}

// Report computes coverage for each target, in order.
func (s *CoverageService) Report(ctx context.Context, targets []*domain.EnrichmentTarget) ([]Coverage, error) {
	total, err := s.counter.CountFinal(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Coverage, 0, len(targets))
	for _, t := range targets {
		covered, err := s.counter.CountFinalWithRows(ctx, t.Table, t.ParentColumn)
		if err != nil {
			return nil, err
		}
		c := Coverage{Entity: t.Name, Table: t.Table, Covered: covered, Total: total}
		if total > 0 {
			c.Percent = round2(float64(covered) / float64(total) * 100)
		}
		out = append(out, c)
	}
	return out, nil
}
