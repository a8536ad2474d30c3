// Package metrics provides Prometheus metrics for the feeder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync pass outcomes.
const (
	PassCleared = "cleared"
	PassFailed  = "failed"
)

// Manager owns the feeder's collectors. A nil or disabled Manager ignores
// every observation.
type Manager struct {
	namespace   string
	subsystem   string
	gramBuckets []float64
	enabled     bool
	registry    *prometheus.Registry

	feeds           prometheus.Counter
	dispensedGrams  prometheus.Histogram
	eventsPublished prometheus.Counter
	eventsBuffered  prometheus.Counter
	eventsDropped   prometheus.Counter
	bufferDepth     prometheus.Gauge
	syncPasses      *prometheus.CounterVec
	clockSynced     prometheus.Gauge
	scheduleEntries prometheus.Gauge
}

// NewManager creates a manager with its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "petfeeder",
		gramBuckets: []float64{5, 10, 25, 50, 100, 200, 400},
		enabled:     true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.feeds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feeds_total",
		Help:      "Dispense sessions completed",
	})
	m.dispensedGrams = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispensed_grams",
		Help:      "Final weight of each dispense session",
		Buckets:   m.gramBuckets,
	})
	m.eventsPublished = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_published_total",
		Help:      "Status events delivered to the broker, including replays",
	})
	m.eventsBuffered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_buffered_total",
		Help:      "Status events written to the offline buffer",
	})
	m.eventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dropped_total",
		Help:      "Status events lost to a full buffer or a storage failure",
	})
	m.bufferDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_depth",
		Help:      "Status events waiting in the offline buffer",
	})
	m.syncPasses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_passes_total",
		Help:      "Buffer drain passes by result",
	}, []string{"result"})
	m.clockSynced = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clock_synced",
		Help:      "1 once the clock has a time reference",
	})
	m.scheduleEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "schedule_entries",
		Help:      "Feeding entries installed",
	})
}

func (m *Manager) on() bool {
	return m != nil && m.enabled
}

// Registry returns the registry metrics are gathered from.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFeed records a completed dispense session.
func (m *Manager) RecordFeed(finalGrams int) {
	if !m.on() {
		return
	}
	m.feeds.Inc()
	m.dispensedGrams.Observe(float64(finalGrams))
}

// RecordPublished counts delivered status events.
func (m *Manager) RecordPublished(n int) {
	if !m.on() || n <= 0 {
		return
	}
	m.eventsPublished.Add(float64(n))
}

// RecordBuffered counts an event written to the buffer.
func (m *Manager) RecordBuffered() {
	if !m.on() {
		return
	}
	m.eventsBuffered.Inc()
}

// RecordDropped counts a lost event.
func (m *Manager) RecordDropped() {
	if !m.on() {
		return
	}
	m.eventsDropped.Inc()
}

// SetBufferDepth sets the current buffer length.
func (m *Manager) SetBufferDepth(n int) {
	if !m.on() {
		return
	}
	m.bufferDepth.Set(float64(n))
}

// RecordSyncPass counts a drain pass with result PassCleared or PassFailed.
func (m *Manager) RecordSyncPass(result string) {
	if !m.on() {
		return
	}
	m.syncPasses.WithLabelValues(result).Inc()
}

// SetClockSynced flags whether the clock has a reference.
func (m *Manager) SetClockSynced(synced bool) {
	if !m.on() {
		return
	}
	v := 0.0
	if synced {
		v = 1
	}
	m.clockSynced.Set(v)
}

// SetScheduleEntries sets the installed entry count.
func (m *Manager) SetScheduleEntries(n int) {
	if !m.on() {
		return
	}
	m.scheduleEntries.Set(float64(n))
}
