// Package observability provides Prometheus metrics and component health
// reporting for the detection pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Stream metrics
	NotificationsTotal prometheus.Counter
	ReconnectsTotal    prometheus.Counter
	StreamDropsTotal   prometheus.Counter

	// Pipeline metrics
	DetectionsTotal prometheus.Counter
	DuplicatesTotal prometheus.Counter
	QueueDropsTotal prometheus.Counter
	QueueDepth      prometheus.Gauge

	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisFails    prometheus.Counter
	AnalysisDuration prometheus.Histogram
	CheckDuration    *prometheus.HistogramVec
	CheckTimeouts    prometheus.Counter
	CheckFailures    prometheus.Counter
	RiskScore        prometheus.Histogram

	// RPC metrics
	RPCRequestsTotal prometheus.Counter
	RPCErrorsTotal   prometheus.Counter
	RPCCreditsLeft   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance registered on its own registry, so
// tests can build several without collisions.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mintsentry"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		NotificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream",
			Name: "notifications_total",
			Help: "Raw log notifications received from the websocket stream",
		}),
		ReconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream",
			Name: "reconnects_total",
			Help: "Websocket reconnect attempts",
		}),
		StreamDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream",
			Name: "drops_total",
			Help: "Notifications dropped because the event channel was full",
		}),

		DetectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline",
			Name: "detections_total",
			Help: "Transactions classified as token creations",
		}),
		DuplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline",
			Name: "duplicates_total",
			Help: "Notifications suppressed by the processed-signature set",
		}),
		QueueDropsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pipeline",
			Name: "queue_drops_total",
			Help: "Detections rejected because the queue was full",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pipeline",
			Name: "queue_depth",
			Help: "Current detection queue depth",
		}),

		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name: "analyses_total",
			Help: "Completed token analyses by verdict band",
		}, []string{"safety_level"}),
		AnalysisFails: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name: "failures_total",
			Help: "Analyses aborted before producing a verdict",
		}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name:    "duration_seconds",
			Help:    "Wall time of a full analysis",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		CheckDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name:    "check_duration_seconds",
			Help:    "Wall time of individual checks",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"check"}),
		CheckTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name: "check_timeouts_total",
			Help: "Checks skipped after exceeding their timeout",
		}),
		CheckFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name: "check_failures_total",
			Help: "Checks that returned an error",
		}),
		RiskScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analysis",
			Name:    "risk_score",
			Help:    "Distribution of composite risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),

		RPCRequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rpc",
			Name: "requests_total",
			Help: "JSON-RPC requests issued",
		}),
		RPCErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rpc",
			Name: "errors_total",
			Help: "JSON-RPC requests that failed",
		}),
		RPCCreditsLeft: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rpc",
			Name: "credits_left",
			Help: "Remaining request-credit budget (-1 = unlimited)",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
