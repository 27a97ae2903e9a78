package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector tracks engine metrics internally. When a real OTLP
// exporter is wired in, these feed directly into OTel instruments.
type MetricsCollector struct {
	// Counters (atomic).
	eventsFetchedTotal      int64
	eventsDispatchedTotal   int64
	cyclesTotal             int64
	fetchRetriesTotal       int64
	callbacksQuarantined    int64
	pluginsQuarantined      int64
	stateWriteFailuresTotal int64
	backlogExpiredTotal     int64

	// Gauges and histograms (mutex-protected).
	mu                sync.RWMutex
	pluginBacklogLen  map[string]int
	cycleDurationHist []float64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		pluginBacklogLen: make(map[string]int),
	}
}

// RecordEventsFetched adds to the events-fetched counter.
func (m *MetricsCollector) RecordEventsFetched(n int) {
	atomic.AddInt64(&m.eventsFetchedTotal, int64(n))
}

// RecordEventsDispatched adds to the events-dispatched counter.
func (m *MetricsCollector) RecordEventsDispatched(n int) {
	atomic.AddInt64(&m.eventsDispatchedTotal, int64(n))
}

// RecordCycle increments the main-loop cycle counter.
func (m *MetricsCollector) RecordCycle() {
	atomic.AddInt64(&m.cyclesTotal, 1)
}

// RecordFetchRetry increments the fetch-retry counter.
func (m *MetricsCollector) RecordFetchRetry() {
	atomic.AddInt64(&m.fetchRetriesTotal, 1)
}

// RecordCallbackQuarantined increments the callback-quarantine counter.
func (m *MetricsCollector) RecordCallbackQuarantined() {
	atomic.AddInt64(&m.callbacksQuarantined, 1)
}

// RecordPluginQuarantined increments the plugin-quarantine counter.
func (m *MetricsCollector) RecordPluginQuarantined() {
	atomic.AddInt64(&m.pluginsQuarantined, 1)
}

// RecordStateWriteFailure increments the state-write-failure counter.
func (m *MetricsCollector) RecordStateWriteFailure() {
	atomic.AddInt64(&m.stateWriteFailuresTotal, 1)
}

// RecordBacklogExpired increments the backlog-entry-expired counter.
func (m *MetricsCollector) RecordBacklogExpired() {
	atomic.AddInt64(&m.backlogExpiredTotal, 1)
}

// SetPluginBacklogLen updates the backlog-size gauge for a plugin.
func (m *MetricsCollector) SetPluginBacklogLen(plugin string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pluginBacklogLen[plugin] = n
}

// RecordCycleDuration records a main-loop cycle duration.
func (m *MetricsCollector) RecordCycleDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cycleDurationHist) > 100 {
		m.cycleDurationHist = m.cycleDurationHist[1:]
	}
	m.cycleDurationHist = append(m.cycleDurationHist, d.Seconds())
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *MetricsCollector) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	backlog := make(map[string]int, len(m.pluginBacklogLen))
	for k, v := range m.pluginBacklogLen {
		backlog[k] = v
	}

	return map[string]interface{}{
		"events_fetched_total":       atomic.LoadInt64(&m.eventsFetchedTotal),
		"events_dispatched_total":    atomic.LoadInt64(&m.eventsDispatchedTotal),
		"cycles_total":               atomic.LoadInt64(&m.cyclesTotal),
		"fetch_retries_total":        atomic.LoadInt64(&m.fetchRetriesTotal),
		"callbacks_quarantined":      atomic.LoadInt64(&m.callbacksQuarantined),
		"plugins_quarantined":        atomic.LoadInt64(&m.pluginsQuarantined),
		"state_write_failures_total": atomic.LoadInt64(&m.stateWriteFailuresTotal),
		"backlog_expired_total":      atomic.LoadInt64(&m.backlogExpiredTotal),
		"plugin_backlog_len":         backlog,
	}
}
