// Package metrics provides Prometheus metrics for the pinta analytics service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by pinta.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Wrapped summaries
	summariesBuilt      prometheus.Counter
	summariesSuperseded prometheus.Counter
	summaryBuildLatency prometheus.Histogram
	summaryBuildErrors  *prometheus.CounterVec
	trackedSummaries    prometheus.Gauge
	recordsUnparsed     prometheus.Counter

	// Record store
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Community cache
	communityCacheHits   prometheus.Counter
	communityCacheMisses prometheus.Counter
	communitySize        prometheus.Gauge

	// Identity challenges
	challengesIssued    *prometheus.CounterVec
	challengesVerified  prometheus.Counter
	challengesFailed    prometheus.Counter
	challengesExhausted prometheus.Counter

	// Change pipeline
	changeNotifications *prometheus.CounterVec
	refreshes           prometheus.Counter

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// latencyBucketsMs covers sub-millisecond cache hits up to multi-second
// community rebuilds; every latency is observed in milliseconds.
var latencyBucketsMs = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // shared defaults

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pinta",
		subsystem:        "wrapped",
		histogramBuckets: latencyBucketsMs,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		ConstLabels: m.constLabels,
		Name:        name,
		Help:        help,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		ConstLabels: m.constLabels,
		Name:        name,
		Help:        help,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		ConstLabels: m.constLabels,
		Name:        name,
		Help:        help,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		ConstLabels: m.constLabels,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.HistogramVec {
	return auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		ConstLabels: m.constLabels,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.summariesBuilt = m.counter(auto, "summaries_built_total", "Wrapped summaries built and published")
	m.summariesSuperseded = m.counter(auto, "summaries_superseded_total", "Wrapped summaries discarded because a newer request for the same key won")
	m.summaryBuildLatency = m.histogram(auto, "summary_build_latency_milliseconds", "Wrapped summary build latency in milliseconds")
	m.summaryBuildErrors = m.counterVec(auto, "summary_build_errors_total", "Wrapped summary build failures by kind", "kind")
	m.trackedSummaries = m.gauge(auto, "tracked_summaries", "Customer/year keys recomputed on data change")
	m.recordsUnparsed = m.counter(auto, "records_unparsed_total", "Sale records whose volume could not be parsed")

	m.storeQueryLatency = m.histogramVec(auto, "store_query_latency_milliseconds", "Record store query latency in milliseconds", "query")
	m.storeErrors = m.counterVec(auto, "store_errors_total", "Record store query failures", "query")

	m.communityCacheHits = m.counter(auto, "community_cache_hits_total", "Community snapshot cache hits")
	m.communityCacheMisses = m.counter(auto, "community_cache_misses_total", "Community snapshot cache misses")
	m.communitySize = m.gauge(auto, "community_size", "Customers in the most recently built community snapshot")

	m.challengesIssued = m.counterVec(auto, "challenges_issued_total", "Identity challenges issued by field type", "field_type")
	m.challengesVerified = m.counter(auto, "challenges_verified_total", "Identity challenges answered correctly")
	m.challengesFailed = m.counter(auto, "challenges_failed_total", "Wrong identity challenge answers")
	m.challengesExhausted = m.counter(auto, "challenges_exhausted_total", "Identity challenges discarded after too many wrong answers")

	m.changeNotifications = m.counterVec(auto, "change_notifications_total", "Data change notifications received by source", "source")
	m.refreshes = m.counter(auto, "refreshes_total", "Cache invalidations and recomputations triggered by change notifications")

	m.queueSize = m.gauge(auto, "queue_size", "Current size of the change event queue")
	m.queueCapacity = m.gauge(auto, "queue_capacity", "Maximum change event queue capacity")
	m.queueUtilization = m.gauge(auto, "queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter(auto, "queue_enqueue_total", "Change events enqueued")
	m.queueDequeued = m.counter(auto, "queue_dequeue_total", "Change events dequeued")
	m.queueEnqueueErrors = m.counter(auto, "queue_enqueue_errors_total", "Change events rejected by the queue")
	m.queueProcessingLatency = m.histogram(auto, "queue_processing_latency_milliseconds", "Enqueue latency in milliseconds")

	m.workerCount = m.gauge(auto, "worker_count", "Configured refresh workers")
	m.workerActiveCount = m.gauge(auto, "worker_active_count", "Workers currently processing an event")
	m.workerIdleCount = m.gauge(auto, "worker_idle_count", "Workers waiting for an event")
	m.workerProcessingLatency = m.histogram(auto, "worker_processing_latency_milliseconds", "Worker processing latency in milliseconds")
	m.workerErrors = m.counter(auto, "worker_errors_total", "Worker processing failures")

	m.httpRequests = m.counterVec(auto, "http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec(auto, "http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec(auto, "errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorsByType = m.counterVec(auto, "errors_by_type_total", "Errors by type", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec(auto, "errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		ConstLabels: m.constLabels,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordSummaryBuilt increments the published summaries counter.
func RecordSummaryBuilt() { globalManager.summariesBuilt.Inc() }

// RecordSummarySuperseded increments the discarded summaries counter.
func RecordSummarySuperseded() { globalManager.summariesSuperseded.Inc() }

// RecordSummaryBuildLatency records a summary build in milliseconds.
func RecordSummaryBuildLatency(latencyMs float64) {
	globalManager.summaryBuildLatency.Observe(latencyMs)
}

// RecordSummaryBuildError counts a failed build of the given kind.
func RecordSummaryBuildError(kind string) {
	globalManager.summaryBuildErrors.WithLabelValues(kind).Inc()
}

// UpdateTrackedSummaries sets the number of tracked customer/year keys.
func UpdateTrackedSummaries(count int) {
	globalManager.trackedSummaries.Set(float64(count))
}

// RecordRecordsUnparsed adds n unparseable sale records.
func RecordRecordsUnparsed(n int) {
	if n > 0 {
		globalManager.recordsUnparsed.Add(float64(n))
	}
}

// RecordStoreQueryLatency records a record store query in milliseconds.
func RecordStoreQueryLatency(query string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// RecordStoreError counts a failed record store query.
func RecordStoreError(query string) {
	globalManager.storeErrors.WithLabelValues(query).Inc()
}

// RecordCommunityCacheHit counts a community cache hit.
func RecordCommunityCacheHit() { globalManager.communityCacheHits.Inc() }

// RecordCommunityCacheMiss counts a community cache miss.
func RecordCommunityCacheMiss() { globalManager.communityCacheMisses.Inc() }

// UpdateCommunitySize sets the size of the latest community snapshot.
func UpdateCommunitySize(count int) {
	globalManager.communitySize.Set(float64(count))
}

// RecordChallengeIssued counts an issued challenge by field type.
func RecordChallengeIssued(fieldType string) {
	globalManager.challengesIssued.WithLabelValues(fieldType).Inc()
}

// RecordChallengeVerified counts a correct answer.
func RecordChallengeVerified() { globalManager.challengesVerified.Inc() }

// RecordChallengeFailed counts a wrong answer.
func RecordChallengeFailed() { globalManager.challengesFailed.Inc() }

// RecordChallengeExhausted counts a challenge discarded after its last attempt.
func RecordChallengeExhausted() { globalManager.challengesExhausted.Inc() }

// RecordChangeNotification counts a change notification by source.
func RecordChangeNotification(source string) {
	globalManager.changeNotifications.WithLabelValues(source).Inc()
}

// RecordRefresh counts a cache invalidation.
func RecordRefresh() { globalManager.refreshes.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
