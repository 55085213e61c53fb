package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeContinue = "continue"
	OutcomeFinished = "finished"
	OutcomeError    = "error"
)

// Manager owns every Prometheus metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Decision metrics
	decisions          *prometheus.CounterVec
	decisionLatency    *prometheus.HistogramVec
	candidatesNeeded   *prometheus.HistogramVec
	callbackMinutes    *prometheus.HistogramVec
	solverFailures     prometheus.Counter
	campaignsActive    prometheus.Gauge
	campaignsEvictions prometheus.Counter

	// Simulation metrics
	simulations         *prometheus.CounterVec
	simulationTicks     *prometheus.HistogramVec
	simulationFulfilled *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pacer",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)
	countBuckets := prometheus.ExponentialBuckets(1, 2, 10)

	m.decisions = auto.NewCounterVec(
		m.counterOpts("decisions_total", "Policy decisions by policy and outcome"),
		[]string{"policy", "outcome"},
	)
	m.decisionLatency = auto.NewHistogramVec(
		m.histogramOpts("decision_latency_milliseconds", "Time spent in one policy decision", m.histogramBuckets),
		[]string{"policy"},
	)
	m.candidatesNeeded = auto.NewHistogramVec(
		m.histogramOpts("candidates_needed", "Candidates requested per non-terminal decision", countBuckets),
		[]string{"policy"},
	)
	m.callbackMinutes = auto.NewHistogramVec(
		m.histogramOpts("callback_minutes", "Callback interval per non-terminal decision", countBuckets),
		[]string{"policy"},
	)
	m.solverFailures = auto.NewCounter(m.counterOpts("solver_failures_total", "Decisions aborted by an infeasible program"))
	m.campaignsActive = auto.NewGauge(m.gaugeOpts("campaigns_active", "Campaign policies held in memory"))
	m.campaignsEvictions = auto.NewCounter(m.counterOpts("campaign_evictions_total", "Campaign policies evicted to respect the store size"))

	m.simulations = auto.NewCounterVec(
		m.counterOpts("simulations_total", "Simulated campaigns by policy and outcome"),
		[]string{"policy", "outcome"},
	)
	m.simulationTicks = auto.NewHistogramVec(
		m.histogramOpts("simulation_ticks", "Evaluation ticks per simulated campaign", countBuckets),
		[]string{"policy"},
	)
	m.simulationFulfilled = auto.NewCounterVec(
		m.counterOpts("simulation_fulfilled_total", "Simulated campaigns that filled every vacancy"),
		[]string{"policy"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the simulation queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum capacity of the simulation queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Jobs rejected by a full or closed queue"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured simulation workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently running a simulation"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time to simulate one campaign", m.histogramBuckets),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Simulations that ended in an error"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets),
	)
}

// RecordDecision records one policy decision and its latency.
func (m *Manager) RecordDecision(policy string, finished bool, candidates, callback int, latency time.Duration) {
	outcome := OutcomeContinue
	if finished {
		outcome = OutcomeFinished
	} else {
		m.candidatesNeeded.WithLabelValues(policy).Observe(float64(candidates))
		m.callbackMinutes.WithLabelValues(policy).Observe(float64(callback))
	}
	m.decisions.WithLabelValues(policy, outcome).Inc()
	m.decisionLatency.WithLabelValues(policy).Observe(ms(latency))
}

// RecordDecisionError records a failed decision.
func (m *Manager) RecordDecisionError(policy string, solverFailure bool) {
	m.decisions.WithLabelValues(policy, OutcomeError).Inc()
	if solverFailure {
		m.solverFailures.Inc()
	}
}

// RecordSimulation records one simulated campaign.
func (m *Manager) RecordSimulation(policy string, ticks int, fulfilled bool, err error) {
	if err != nil {
		m.simulations.WithLabelValues(policy, OutcomeError).Inc()
		return
	}
	m.simulations.WithLabelValues(policy, OutcomeFinished).Inc()
	m.simulationTicks.WithLabelValues(policy).Observe(float64(ticks))
	if fulfilled {
		m.simulationFulfilled.WithLabelValues(policy).Inc()
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Package-level helpers write to the global manager.

// RecordDecision records one policy decision on the global manager.
func RecordDecision(policy string, finished bool, candidates, callback int, latency time.Duration) {
	globalManager.RecordDecision(policy, finished, candidates, callback, latency)
}

// RecordDecisionError records a failed decision on the global manager.
func RecordDecisionError(policy string, solverFailure bool) {
	globalManager.RecordDecisionError(policy, solverFailure)
}

// RecordSimulation records one simulated campaign on the global manager.
func RecordSimulation(policy string, ticks int, fulfilled bool, err error) {
	globalManager.RecordSimulation(policy, ticks, fulfilled, err)
}

// UpdateCampaignsActive sets the number of stored campaign policies.
func UpdateCampaignsActive(count int) {
	globalManager.campaignsActive.Set(float64(count))
}

// RecordCampaignEviction increments the eviction counter.
func RecordCampaignEviction() {
	globalManager.campaignsEvictions.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one job took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
