package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_translate_requests_total",
			Help: "Total number of translate requests by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	translateLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nl2sql_translate_latency_ms",
			Help:    "End to end translate pipeline latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 16000},
		},
	)
	schemaIntrospectionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_schema_introspection_total",
			Help: "Total number of schema introspections by outcome.",
		},
		[]string{"outcome"},
	)
	executeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_execute_requests_total",
			Help: "Total number of SQL execute requests by outcome.",
		},
		[]string{"outcome"},
	)
	businessModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_business_model_requests_total",
			Help: "Total number of business model requests by outcome.",
		},
		[]string{"outcome"},
	)
	archiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_archive_writes_total",
			Help: "Total number of archive object writes by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		translateRequestsTotal,
		translateLatencyMs,
		schemaIntrospectionTotal,
		executeRequestsTotal,
		businessModelRequestsTotal,
		archiveWritesTotal,
	)
}

func ObserveTranslate(mode, outcome string, elapsed time.Duration) {
	translateRequestsTotal.WithLabelValues(mode, outcome).Inc()
	translateLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveSchemaIntrospection(outcome string) {
	schemaIntrospectionTotal.WithLabelValues(outcome).Inc()
}

func ObserveExecute(outcome string) {
	executeRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveBusinessModel(outcome string) {
	businessModelRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveArchiveWrite(kind, outcome string) {
	archiveWritesTotal.WithLabelValues(kind, outcome).Inc()
}
