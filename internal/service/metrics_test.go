package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordRunOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	env := newEnrichEnv(t, 2)
	env.fetcher.payloads[1001] = eventsPayload(1001, 2)
	svc := env.service(EnrichConfig{BatchSize: 10}).WithMetrics(m)

	_, err := svc.Run(context.Background(), eventsTarget(t))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pairs.WithLabelValues("events", OutcomeInserted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pairs.WithLabelValues("events", OutcomeNoData)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowsWritten.WithLabelValues("events")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.parents))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("enrich", "completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runInProgress))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/fixtures/multi", 200, time.Millisecond)
	m.pair("events", OutcomeSkipped)
	m.runFinished("enrich", "completed", time.Second)
}
