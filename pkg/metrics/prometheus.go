// Package metrics provides Prometheus metrics for the scoreboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the scoreboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Feed Metrics - Envelope flow by kind and parse health
	envelopesTotal   *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	dispatchLatency  prometheus.Histogram
	subscriberPanics *prometheus.CounterVec

	// Connection Metrics - Reconnect lifecycle
	reconnectScheduled prometheus.Counter
	reconnectAttempts  prometheus.Counter

	// Replay Metrics - Virtual clock playback
	replayDispatches prometheus.Counter
	replayPosition   prometheus.Gauge
	replayLoops      prometheus.Counter

	// Queue Metrics - Envelope buffer between provider and fold loop
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueDrops    prometheus.Counter

	// Scoreboard Metrics - Correlator state health
	onCourseSize         prometheus.Gauge
	finishTransitions    prometheus.Counter
	highlightActivations prometheus.Counter
	departingTransitions prometheus.Counter
	foldLatency          prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System Metrics - Runtime health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scoreboard",
		subsystem:        "feed",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.envelopesTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "envelopes_total",
			Help:      "Total normalized envelopes dispatched, by kind",
		},
		[]string{"kind"},
	)

	m.providerErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "provider_errors_total",
			Help:      "Total provider errors emitted, by taxonomy code",
		},
		[]string{"code"},
	)

	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_latency_milliseconds",
		Help:      "Histogram of full fan-out latency per envelope in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.subscriberPanics = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "subscriber_panics_total",
			Help:      "Total recovered subscriber panics, by topic",
		},
		[]string{"topic"},
	)

	m.reconnectScheduled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconnect_scheduled_total",
		Help:      "Total reconnection attempts scheduled by the backoff controller",
	})

	m.reconnectAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconnect_attempts_total",
		Help:      "Total reconnection attempts fired",
	})

	m.replayDispatches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_dispatches_total",
		Help:      "Total recording messages dispatched by the replay scheduler",
	})

	m.replayPosition = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_position_milliseconds",
		Help:      "Current virtual-clock position within the loaded recording",
	})

	m.replayLoops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_loops_total",
		Help:      "Times the replay scheduler wrapped back to the first message",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the envelope queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the envelope queue",
	})

	m.queueDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_drops_total",
		Help:      "Envelopes dropped because the queue was full",
	})

	m.onCourseSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "oncourse_size",
		Help:      "Competitors currently tracked on course",
	})

	m.finishTransitions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "finish_transitions_total",
		Help:      "Observed no-finish to finish transitions",
	})

	m.highlightActivations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "highlight_activations_total",
		Help:      "Highlights activated after results confirmation",
	})

	m.departingTransitions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "departing_transitions_total",
		Help:      "Competitors moved from current to departing",
	})

	m.foldLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fold_latency_milliseconds",
		Help:      "Correlator state transition latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines",
	})
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordEnvelope increments the envelope counter for a kind.
func RecordEnvelope(kind string) {
	globalManager.envelopesTotal.WithLabelValues(kind).Inc()
}

// RecordProviderError increments the provider error counter for a code.
func RecordProviderError(code string) {
	globalManager.providerErrors.WithLabelValues(code).Inc()
}

// RecordDispatchLatency records fan-out latency in milliseconds.
func RecordDispatchLatency(latencyMs float64) {
	globalManager.dispatchLatency.Observe(latencyMs)
}

// RecordSubscriberPanic increments the recovered panic counter for a topic.
func RecordSubscriberPanic(topic string) {
	globalManager.subscriberPanics.WithLabelValues(topic).Inc()
}

// RecordReconnectScheduled increments the scheduled reconnect counter.
func RecordReconnectScheduled() {
	globalManager.reconnectScheduled.Inc()
}

// RecordReconnectAttempt increments the fired reconnect counter.
func RecordReconnectAttempt() {
	globalManager.reconnectAttempts.Inc()
}

// RecordReplayDispatch increments the replay dispatch counter.
func RecordReplayDispatch() {
	globalManager.replayDispatches.Inc()
}

// UpdateReplayPosition sets the current replay position in milliseconds.
func UpdateReplayPosition(positionMs int64) {
	globalManager.replayPosition.Set(float64(positionMs))
}

// RecordReplayLoop increments the replay loop counter.
func RecordReplayLoop() {
	globalManager.replayLoops.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the configured queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueDrop increments the dropped envelope counter.
func RecordQueueDrop() {
	globalManager.queueDrops.Inc()
}

// UpdateOnCourseSize sets the tracked on-course competitor count.
func UpdateOnCourseSize(size int) {
	globalManager.onCourseSize.Set(float64(size))
}

// RecordFinishTransition increments the finish transition counter.
func RecordFinishTransition() {
	globalManager.finishTransitions.Inc()
}

// RecordHighlightActivation increments the highlight activation counter.
func RecordHighlightActivation() {
	globalManager.highlightActivations.Inc()
}

// RecordDepartingTransition increments the departing transition counter.
func RecordDepartingTransition() {
	globalManager.departingTransitions.Inc()
}

// RecordFoldLatency records correlator transition latency in milliseconds.
func RecordFoldLatency(latencyMs float64) {
	globalManager.foldLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}
