package repository

import (
	"context"
	"fmt"

	"github.com/timmy/matchsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FixtureRepository reads parent fixtures for the enrichment engine.
type FixtureRepository struct {
	db            *gorm.DB
	finalStatuses []string
}

// NewFixtureRepository creates a new FixtureRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//   - finalStatuses: fixture state codes that count as final (FT, AET, ...).
// Returns:
//   - *FixtureRepository: repository instance bound to db.
func NewFixtureRepository(db *gorm.DB, finalStatuses []string) *FixtureRepository {
	return &FixtureRepository{db: db, finalStatuses: finalStatuses}
}

// ListFinal returns the next page of final fixtures, most recent first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - after: keyset cursor; the zero cursor starts from the most recent fixture.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.ParentRecord: fixtures strictly after the cursor.
//   - error: non-nil if the query fails.
func (r *FixtureRepository) ListFinal(ctx context.Context, after domain.Cursor, limit int) ([]domain.ParentRecord, error) {
	query := r.finalQuery(ctx)
	if !after.IsZero() {
		query = query.Where("(starting_at < ?) OR (starting_at = ? AND id < ?)",
			after.StartingAt, after.StartingAt, after.ID)
	}

	var fixtures []domain.Fixture
	if err := query.
		Order("starting_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&fixtures).Error; err != nil {
		return nil, fmt.Errorf("list final fixtures: %w", err)
	}

	records := make([]domain.ParentRecord, 0, len(fixtures))
	for _, f := range fixtures {
		sourceID := f.SportmonksID
		if sourceID == 0 {
			sourceID = f.ID
		}
		rec := domain.ParentRecord{
			ID:         f.ID,
			SourceID:   sourceID,
			Status:     domain.ParentFinal,
			StartingAt: f.StartingAt,
		}
		if f.HomeTeamName != "" || f.AwayTeamName != "" {
			rec.Label = fmt.Sprintf("%s vs %s", f.HomeTeamName, f.AwayTeamName)
		}
		records = append(records, rec)
	}
	return records, nil
}

// CountFinal counts fixtures eligible for enrichment.
func (r *FixtureRepository) CountFinal(ctx context.Context) (int64, error) {
	var count int64
	if err := r.finalQuery(ctx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count final fixtures: %w", err)
	}
	return count, nil
}

// CountFinalWithRows counts final fixtures that have at least one row in table.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - table: target table name.
//   - parentColumn: column in table holding the fixture id.
// Returns:
//   - int64: number of distinct covered fixtures.
//   - error: non-nil if the query fails.
func (r *FixtureRepository) CountFinalWithRows(ctx context.Context, table, parentColumn string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(table).
		Where(clause.Expr{
			SQL:  "? IN (?)",
			Vars: []interface{}{clause.Column{Name: parentColumn}, r.db.Model(&domain.Fixture{}).Select("id").Where("status IN ?", r.finalStatuses)},
		}).
		Distinct(parentColumn).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count covered fixtures in %s: %w", table, err)
	}
	return count, nil
}

// Upsert creates or replaces fixture rows keyed by id.
func (r *FixtureRepository) Upsert(ctx context.Context, fixtures []domain.Fixture) error {
	if len(fixtures) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&fixtures).Error
}

func (r *FixtureRepository) finalQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Fixture{}).Where("status IN ?", r.finalStatuses)
}
