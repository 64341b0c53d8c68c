package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Reconciliation metrics
	ReconcileRunsTotal    *prometheus.CounterVec
	ReconcileDuration     *prometheus.HistogramVec
	ReconcilesInProgress  prometheus.Gauge
	PlatformDegradations  *prometheus.CounterVec
	UpstreamRowsProcessed *prometheus.CounterVec
	UpstreamRowsSkipped   *prometheus.CounterVec

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// Chat and export
	ChatRequestsTotal *prometheus.CounterVec
	ExportsTotal      *prometheus.CounterVec
}

// New registers the collectors with the default registry
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg; tests pass a fresh prometheus.NewRegistry()
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ReconcileRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"status", "lookback_days"},
		),

		ReconcileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcile_duration_seconds",
				Help:    "Reconciliation run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"lookback_days"},
		),

		ReconcilesInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reconciles_in_progress",
				Help: "Number of reconciliation runs currently in progress",
			},
		),

		PlatformDegradations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_degradations_total",
				Help: "Runs in which a platform was zero-filled because its fetch failed",
			},
			[]string{"platform"},
		),

		UpstreamRowsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_rows_processed_total",
				Help: "Total number of upstream daily rows mapped into base metrics",
			},
			[]string{"platform"},
		),

		UpstreamRowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_rows_skipped_total",
				Help: "Total number of upstream rows dropped during mapping",
			},
			[]string{"platform", "reason"},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		ChatRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Total number of chat requests forwarded to the language model",
			},
			[]string{"status"},
		),

		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exports_total",
				Help: "Total number of table exports to the sink",
			},
			[]string{"status"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Reconciliation run metrics
func (m *Metrics) RecordReconcile(status, lookbackDays string, duration time.Duration) {
	m.ReconcileRunsTotal.WithLabelValues(status, lookbackDays).Inc()
	m.ReconcileDuration.WithLabelValues(lookbackDays).Observe(duration.Seconds())
}

func (m *Metrics) RecordPlatformDegraded(platform string) {
	m.PlatformDegradations.WithLabelValues(platform).Inc()
}

func (m *Metrics) RecordUpstreamRows(platform string, count int) {
	m.UpstreamRowsProcessed.WithLabelValues(platform).Add(float64(count))
}

func (m *Metrics) RecordUpstreamRowSkipped(platform, reason string) {
	m.UpstreamRowsSkipped.WithLabelValues(platform, reason).Inc()
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

func (m *Metrics) RecordChatRequest(status string) {
	m.ChatRequestsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordExport(status string) {
	m.ExportsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncReconcilesInProgress() {
	m.ReconcilesInProgress.Inc()
}

func (m *Metrics) DecReconcilesInProgress() {
	m.ReconcilesInProgress.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
