package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// The struct is built once at startup and passed to every component that
// records metrics.
type Metrics struct {
	// Classification Metrics
	transactionsClassifiedTotal *prometheus.CounterVec
	classifyDuration            *prometheus.HistogramVec
	actionsPerTransaction       *prometheus.HistogramVec
	batchSize                   prometheus.Histogram
	decodeErrorsTotal           *prometheus.CounterVec

	// Workflow Metrics
	classifyWorkflowDuration        *prometheus.HistogramVec
	classifyWorkflowExecutionsTotal *prometheus.CounterVec
	classifyActivityDuration        *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// Sink Metrics
	sinkMessagesPublished *prometheus.CounterVec
	sinkPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Classification Metrics
		transactionsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_classified_total",
				Help: "Total number of transactions classified by type and outcome",
			},
			[]string{"type", "status"},
		),
		classifyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classify_duration_seconds",
				Help:    "Duration of a single transaction classification in seconds",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
			[]string{"type"},
		),
		actionsPerTransaction: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classify_actions_per_transaction",
				Help:    "Number of actions produced per classified transaction",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
			[]string{"type"},
		),
		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "classify_batch_size",
				Help:    "Number of transactions per classification batch",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
		),
		decodeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_decode_errors_total",
				Help: "Total number of payloads that could not be decoded",
			},
			[]string{"origin"},
		),

		// Workflow Metrics
		classifyWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classify_workflow_duration_seconds",
				Help:    "Duration of classify batch workflow execution in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		classifyWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classify_workflow_executions_total",
				Help: "Total number of classify batch workflow executions",
			},
			[]string{"status"},
		),
		classifyActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classify_activity_duration_seconds",
				Help:    "Duration of classify workflow activities in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"activity", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"address", "event_type"},
		),

		// Sink Metrics
		sinkMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_messages_published_total",
				Help: "Total number of classified transactions published to a sink",
			},
			[]string{"sink", "destination", "status"},
		),
		sinkPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_publish_duration_seconds",
				Help:    "Duration of sink publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"sink"},
		),
	}
}

// Classification metric helpers

// RecordClassification records one classified transaction.
func (m *Metrics) RecordClassification(txType string, unknown bool, actions int, duration float64) {
	status := "resolved"
	if unknown {
		status = "unknown"
	}
	m.transactionsClassifiedTotal.WithLabelValues(txType, status).Inc()
	m.classifyDuration.WithLabelValues(txType).Observe(duration)
	m.actionsPerTransaction.WithLabelValues(txType).Observe(float64(actions))
}

// RecordBatchSize records the size of a classification batch.
func (m *Metrics) RecordBatchSize(size int) {
	m.batchSize.Observe(float64(size))
}

// RecordDecodeError records a payload that failed to decode. origin names the
// entry point, e.g. "http" or "cli".
func (m *Metrics) RecordDecodeError(origin string) {
	m.decodeErrorsTotal.WithLabelValues(origin).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	m.classifyWorkflowDuration.WithLabelValues(status).Observe(duration)
	m.classifyWorkflowExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64, err error) {
	m.classifyActivityDuration.WithLabelValues(activity, errorStatus(err)).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(address string, delta float64) {
	m.sseActiveConnections.WithLabelValues(address).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(address, eventType string) {
	m.sseEventsSent.WithLabelValues(address, eventType).Inc()
}

// Sink metric helpers

// RecordSinkPublish records a publish to NATS or Kafka.
func (m *Metrics) RecordSinkPublish(sink, destination string, err error, duration float64) {
	m.sinkMessagesPublished.WithLabelValues(sink, destination, errorStatus(err)).Inc()
	m.sinkPublishDuration.WithLabelValues(sink).Observe(duration)
}

// Helper functions

func errorStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
