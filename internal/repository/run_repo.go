package repository

import (
	"context"

	"github.com/timmy/matchsync/internal/domain"
	"gorm.io/gorm"
)

// RunRepository persists enrichment run records.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record.
func (r *RunRepository) Create(ctx context.Context, run *domain.EnrichmentRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update saves every field of an existing run record.
func (r *RunRepository) Update(ctx context.Context, run *domain.EnrichmentRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetByID retrieves a run by its ID.
// Returns gorm.ErrRecordNotFound when no such run exists.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.EnrichmentRun, error) {
	var run domain.EnrichmentRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns the most recently started runs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: run kind to filter by; empty means all.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.EnrichmentRun: runs ordered newest first.
//   - error: non-nil if the query fails.
func (r *RunRepository) ListRecent(ctx context.Context, kind domain.RunKind, limit int) ([]domain.EnrichmentRun, error) {
	var runs []domain.EnrichmentRun
	query := r.db.WithContext(ctx)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if err := query.
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
