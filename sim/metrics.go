package sim

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus-compatible counters, gauges, and histograms
// for monitoring a running Orchestrator. All metrics are namespaced
// "chronosim_".
//
// Exposed series:
//
//  1. clock_ticks_total (counter): tick-loop iterations that advanced time.
//  2. events_appended_total (counter, labeled by kind): events persisted.
//  3. checkpoints_created_total (counter): snapshots written.
//  4. handler_errors_total (counter, labeled by kind): dispatch failures.
//  5. spatial_query_latency_ms (histogram, labeled by query): spatial index
//     query durations.
//  6. entity_count (gauge): live entity count, updated on create/destroy.
type Metrics struct {
	mu sync.RWMutex

	clockTicks        prometheus.Counter
	eventsAppended    *prometheus.CounterVec
	checkpointsMade   prometheus.Counter
	handlerErrors     *prometheus.CounterVec
	spatialQueryMs    *prometheus.HistogramVec
	entityCount       prometheus.Gauge
	enabled           bool
}

// NewMetrics registers every collector with registry and returns the
// resulting Metrics. A nil registry uses prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		clockTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chronosim",
			Name:      "clock_ticks_total",
			Help:      "Tick-loop iterations that advanced simulation time.",
		}),
		eventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronosim",
			Name:      "events_appended_total",
			Help:      "Events persisted to the event log, labeled by kind.",
		}, []string{"kind"}),
		checkpointsMade: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chronosim",
			Name:      "checkpoints_created_total",
			Help:      "World-state snapshots written to the checkpoint store.",
		}),
		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chronosim",
			Name:      "handler_errors_total",
			Help:      "Handler dispatch failures, labeled by event kind.",
		}, []string{"kind"}),
		spatialQueryMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chronosim",
			Name:      "spatial_query_latency_ms",
			Help:      "Spatial index query duration in milliseconds, labeled by query type.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
		}, []string{"query"}),
		entityCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chronosim",
			Name:      "entity_count",
			Help:      "Current number of live (non-destroyed) entities.",
		}),
	}
}

func (m *Metrics) recordTick() {
	if m == nil || !m.enabled {
		return
	}
	m.clockTicks.Inc()
}

func (m *Metrics) recordEventAppended(kind EventKind) {
	if m == nil || !m.enabled {
		return
	}
	m.eventsAppended.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordCheckpoint() {
	if m == nil || !m.enabled {
		return
	}
	m.checkpointsMade.Inc()
}

func (m *Metrics) recordHandlerError(kind EventKind) {
	if m == nil || !m.enabled {
		return
	}
	m.handlerErrors.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordSpatialQuery(query string, d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.spatialQueryMs.WithLabelValues(query).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *Metrics) setEntityCount(n int) {
	if m == nil || !m.enabled {
		return
	}
	m.entityCount.Set(float64(n))
}

// Disable stops metric recording without unregistering collectors.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable resumes metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
