package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[key] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.RecordIngestion("success", 4)
	m.RecordIngestion("duplicate", 0)
	m.RecordRetrieval(3)
	m.RecordGeneration("success", 2*time.Second, 150*time.Millisecond)
	m.RecordGeneration("error", time.Second, 0)

	got := gather(t, reg)
	assert.Equal(t, 1.0, got["virtualrag_sessions_active"])
	assert.Equal(t, 1.0, got["virtualrag_ingestion_total{status=success}"])
	assert.Equal(t, 1.0, got["virtualrag_ingestion_total{status=duplicate}"])
	assert.Equal(t, 1.0, got["virtualrag_ingestion_chunks"])
	assert.Equal(t, 1.0, got["virtualrag_retrieval_results"])
	assert.Equal(t, 2.0, got["virtualrag_generation_duration_seconds"])
	assert.Equal(t, 1.0, got["virtualrag_generation_first_token_seconds"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened()
		m.SessionClosed()
		m.RecordIngestion("error", 0)
		m.RecordRetrieval(0)
		m.RecordGeneration("cancelled", time.Second, 0)
	})
}
