package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results used as label values.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultTimeout  = "timeout"
	ResultExpired  = "expired"
)

// Recorder exposes control plane counters to Prometheus.
//
// All methods are safe on a nil *Recorder so components can run without
// metrics in tests.
type Recorder struct {
	registry *prometheus.Registry

	// LifecycleOps counts start/stop commands by operation and result.
	LifecycleOps *prometheus.CounterVec

	// Imports counts bundle imports by result.
	Imports *prometheus.CounterVec

	// ImportDuration observes the time a bundle spent in the pipeline.
	ImportDuration prometheus.Histogram

	// ClientSessions is the number of connected management clients.
	ClientSessions prometheus.Gauge

	// Stuck is the number of services flagged as stuck in STOPPING.
	Stuck prometheus.Gauge

	// PoolQueue is the number of tasks waiting for a worker.
	PoolQueue prometheus.Gauge
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		LifecycleOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_lifecycle_operations_total",
			Help: "Start and stop commands by operation and result.",
		}, []string{"operation", "result"}),

		Imports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_imports_total",
			Help: "Bundle imports by result.",
		}, []string{"result"}),

		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "berth_import_duration_seconds",
			Help:    "Time spent importing a bundle.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),

		ClientSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "berth_client_sessions",
			Help: "Connected management client sessions.",
		}),

		Stuck: factory.NewGauge(prometheus.GaugeOpts{
			Name: "berth_stuck_services",
			Help: "Services whose stop failed repeatedly.",
		}),

		PoolQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "berth_worker_queue_length",
			Help: "Tasks waiting for a worker.",
		}),
	}
}

// RegisterOnlineAgents exposes the online agent count through fn.
func (r *Recorder) RegisterOnlineAgents(fn func() float64) {
	if r == nil {
		return
	}
	promauto.With(r.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "berth_agents_online",
		Help: "Services with a live agent session.",
	}, fn)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordLifecycle counts a start or stop outcome.
func (r *Recorder) RecordLifecycle(operation, result string) {
	if r == nil {
		return
	}
	r.LifecycleOps.WithLabelValues(operation, result).Inc()
}

// RecordImport counts an import outcome. Completed imports also observe
// their duration.
func (r *Recorder) RecordImport(result string, seconds float64) {
	if r == nil {
		return
	}
	r.Imports.WithLabelValues(result).Inc()
	if seconds > 0 {
		r.ImportDuration.Observe(seconds)
	}
}

// SetClientSessions sets the connected client count.
func (r *Recorder) SetClientSessions(n int) {
	if r == nil {
		return
	}
	r.ClientSessions.Set(float64(n))
}

// AddStuck adjusts the stuck service count by delta.
func (r *Recorder) AddStuck(delta int) {
	if r == nil {
		return
	}
	r.Stuck.Add(float64(delta))
}

// SetQueueLength sets the worker queue length.
func (r *Recorder) SetQueueLength(n int) {
	if r == nil {
		return
	}
	r.PoolQueue.Set(float64(n))
}
