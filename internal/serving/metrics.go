package serving

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the prometheus collectors for the scoring API. Each server
// owns a private registry so tests can run servers side by side.
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	activeRequests  prometheus.Gauge
	driftScore      prometheus.Gauge
	driftedColumns  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_scoring_requests_total",
			Help: "HTTP requests handled, by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credit_scoring_request_duration_seconds",
			Help:    "Request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_scoring_predictions_total",
			Help: "Predictions served, by risk band.",
		}, []string{"risk_level"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "credit_scoring_active_requests",
			Help: "Requests currently in flight.",
		}),
		driftScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "credit_scoring_dataset_drift_score",
			Help: "Share of feature columns drifted in the last drift check.",
		}),
		driftedColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "credit_scoring_drifted_columns",
			Help: "Feature columns drifted in the last drift check.",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.predictions,
		m.activeRequests,
		m.driftScore,
		m.driftedColumns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
