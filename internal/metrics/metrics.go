package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "virtualrag"

// Metrics groups the server's Prometheus instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	sessionsActive       prometheus.Gauge
	ingestionTotal       *prometheus.CounterVec
	ingestionChunks      prometheus.Histogram
	retrievalResults     prometheus.Histogram
	generationTotal      *prometheus.CounterVec
	generationDuration   prometheus.Histogram
	generationFirstToken prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// sessionsActive counts open websocket sessions
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open websocket sessions",
		}),
		// ingestionTotal counts ingestion outcomes.
		// Labels: status (success, duplicate, error, rejected)
		ingestionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_total",
			Help:      "Document ingestion outcomes",
		}, []string{"status"}),
		ingestionChunks: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_chunks",
			Help:      "Chunks produced per indexed document",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		retrievalResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		// generationTotal counts answer streams.
		// Labels: status (success, error, cancelled)
		generationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_total",
			Help:      "Answer generation outcomes",
		}, []string{"status"}),
		generationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time from llm_start to llm_end",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		generationFirstToken: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_first_token_seconds",
			Help:      "Time until the first fragment was relayed",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) RecordIngestion(status string, chunks int) {
	if m == nil {
		return
	}
	m.ingestionTotal.WithLabelValues(status).Inc()
	if chunks > 0 {
		m.ingestionChunks.Observe(float64(chunks))
	}
}

func (m *Metrics) RecordRetrieval(results int) {
	if m == nil {
		return
	}
	m.retrievalResults.Observe(float64(results))
}

// RecordGeneration observes one stream. firstToken is zero when nothing was relayed.
func (m *Metrics) RecordGeneration(status string, total, firstToken time.Duration) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(status).Inc()
	m.generationDuration.Observe(total.Seconds())
	if firstToken > 0 {
		m.generationFirstToken.Observe(firstToken.Seconds())
	}
}
