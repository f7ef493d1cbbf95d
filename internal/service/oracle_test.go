package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/matchsync/internal/domain"
)

func minuteSet(row domain.TargetRow) bool { return row.Has("minute") }

func rowsWithMinutes(satisfied, total int) []domain.TargetRow {
	rows := make([]domain.TargetRow, total)
	for i := range rows {
		rows[i] = domain.TargetRow{}
		if i < satisfied {
			rows[i]["minute"] = int64(i)
		}
	}
	return rows
}

func TestClassifyRows(t *testing.T) {
	tests := []struct {
		name      string
		satisfied int
		total     int
		want      domain.Classification
	}{
		{"no rows", 0, 0, domain.Absent},
		{"none satisfied", 0, 3, domain.Partial},
		{"two of three", 2, 3, domain.Partial},
		{"four of five", 4, 5, domain.Complete},
		{"all", 7, 7, domain.Complete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRows(rowsWithMinutes(tt.satisfied, tt.total), minuteSet, DefaultThreshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

type staticRows []domain.TargetRow

func (s staticRows) ListByParent(context.Context, string, string, int64, []string) ([]domain.TargetRow, error) {
	return s, nil
}

func TestOracleThresholdPrecedence(t *testing.T) {
	target := &domain.EnrichmentTarget{Name: "events", Complete: minuteSet}
	oracle := NewCompletenessOracle(staticRows(rowsWithMinutes(2, 3)), 0, nil)
	assert.Equal(t, DefaultThreshold, oracle.ThresholdFor(target))

	target.Threshold = 0.5
	assert.Equal(t, 0.5, oracle.ThresholdFor(target))

	class, n, err := oracle.Classify(context.Background(), 1, target)
	require.NoError(t, err)
	assert.Equal(t, domain.Complete, class)
	assert.Equal(t, 3, n)

	overridden := NewCompletenessOracle(staticRows(rowsWithMinutes(2, 3)), 0, map[string]float64{"events": 0.9})
	assert.Equal(t, 0.9, overridden.ThresholdFor(target))
	class, _, err = overridden.Classify(context.Background(), 1, target)
	require.NoError(t, err)
	assert.Equal(t, domain.Partial, class)
}

func TestOracleWrapsStoreErrors(t *testing.T) {
	oracle := NewCompletenessOracle(brokenStore{}, 0, nil)
	_, _, err := oracle.Classify(context.Background(), 1, &domain.EnrichmentTarget{Name: "events", Complete: minuteSet})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify events")
}
