package telemetry

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"gitlab.com/vfx-pipeline/trackerd/activity"
)

// Provider manages observability resources (metrics, traces, heartbeat) and
// subscribes to the engine's activity.Bus to keep them fed. It has no OTLP
// exporter: it always operates in fallback mode, writing structured JSON to
// files instead.
type Provider struct {
	cfg      *Config
	logger   *slog.Logger
	metrics  *MetricsCollector
	tracer   *Tracer
	hb       *Heartbeat
	health   *HealthServer
	fallback *FallbackExporter

	mu        sync.Mutex
	shutdown  bool
	openSpans map[int64]*Span
}

// NewProvider creates a new observability provider. Returns a no-op
// provider if disabled.
func NewProvider(cfg *Config, logger *slog.Logger) *Provider {
	p := &Provider{
		cfg:       cfg,
		logger:    logger,
		openSpans: make(map[int64]*Span),
	}

	if !cfg.Enabled {
		logger.Debug("telemetry disabled")
		return p
	}

	p.metrics = NewMetricsCollector()
	logger.Info("metrics collector initialized (fallback mode)")

	if cfg.FallbackPath != "" {
		p.tracer = NewTracer(cfg.FallbackPath)
		p.fallback = NewFallbackExporter(cfg.FallbackPath + ".metrics")
		logger.Info("tracer initialized (fallback mode)", "path", cfg.FallbackPath)

		// The heartbeat file is derived from FallbackPath, not HeartbeatPath
		// directly: cfg.HeartbeatPath is also where activity.HeartbeatWriter
		// writes its own operator-facing cycle tally, and the two must never
		// race over the same file.
		p.hb = NewHeartbeat(cfg.FallbackPath + ".heartbeat")
		logger.Info("heartbeat initialized", "path", cfg.FallbackPath+".heartbeat")
	}

	if cfg.HealthPort > 0 {
		p.health = NewHealthServer(cfg.HealthPort, logger)
		go p.health.Start()
		logger.Info("health server started", "port", cfg.HealthPort)
	}

	return p
}

// Metrics returns the metrics collector (may be nil if disabled).
func (p *Provider) Metrics() *MetricsCollector {
	return p.metrics
}

// Tracer returns the tracer (may be nil if disabled).
func (p *Provider) Tracer() *Tracer {
	return p.tracer
}

// Heartbeat returns the heartbeat writer (may be nil if disabled).
func (p *Provider) Heartbeat() *Heartbeat {
	return p.hb
}

// RecordHeartbeat writes a heartbeat tick.
func (p *Provider) RecordHeartbeat() {
	if p.hb != nil {
		p.hb.Tick()
	}
}

// Shutdown cleanly shuts down all observability components.
func (p *Provider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return
	}
	p.shutdown = true

	if p.health != nil {
		p.health.Stop()
	}

	if p.metrics != nil && p.cfg.FallbackPath != "" {
		p.flushMetrics()
	}

	if p.tracer != nil {
		p.tracer.Flush()
	}

	p.logger.Info("telemetry shutdown complete")
}

func (p *Provider) flushMetrics() {
	if err := p.fallback.ExportMetrics(p.metrics.Snapshot()); err != nil {
		p.logger.Warn("failed to write metrics fallback", "error", err)
	}
}

// SetReady updates the health server's readiness state, if one is running.
// main wires this to Bootstrap's outcome so /readyz reflects whether the
// daemon has finished loading plugins and seeding cursors, not just whether
// the process is alive.
func (p *Provider) SetReady(ready bool) {
	if p.health != nil {
		p.health.SetReady(ready)
	}
}

// HandleActivity implements activity.Subscriber, feeding the metrics
// collector, tracer, and heartbeat from the engine's own activity.Bus so
// loop iterations, fetch retries, and quarantine events actually drive the
// observability components instead of leaving them constructed but idle.
func (p *Provider) HandleActivity(a activity.Activity) {
	if p.metrics == nil {
		return
	}

	switch payload := a.Payload.(type) {
	case activity.CycleStartPayload:
		p.metrics.RecordCycle()
		if span := p.tracer.StartSpan("cycle", "", ""); span != nil {
			span.Attrs["cycle_id"] = strconv.FormatInt(payload.CycleID, 10)
			span.Attrs["global_next_id"] = strconv.FormatInt(payload.GlobalNextID, 10)
			span.Attrs["active_plugins"] = strconv.Itoa(payload.ActivePlugins)
			p.mu.Lock()
			p.openSpans[payload.CycleID] = span
			p.mu.Unlock()
		}
	case activity.CycleEndPayload:
		p.metrics.RecordEventsFetched(payload.EventsFetched)
		p.metrics.RecordEventsDispatched(payload.EventsFetched)
		p.metrics.RecordCycleDuration(payload.Duration)
		p.RecordHeartbeat()

		p.mu.Lock()
		span := p.openSpans[payload.CycleID]
		delete(p.openSpans, payload.CycleID)
		p.mu.Unlock()
		if span != nil {
			span.Attrs["events_fetched"] = strconv.Itoa(payload.EventsFetched)
			p.tracer.EndSpan(span, "ok")
		}
	case activity.FetchRetryPayload:
		p.metrics.RecordFetchRetry()
	case activity.PluginLoadedPayload:
		if a.Type == activity.PluginQuarantined {
			p.metrics.RecordPluginQuarantined()
		}
	case activity.CallbackQuarantinedPayload:
		p.metrics.RecordCallbackQuarantined()
	case activity.BacklogExpiredPayload:
		p.metrics.RecordBacklogExpired()
	case activity.StateWriteFailedPayload:
		p.metrics.RecordStateWriteFailure()
	}
}

// ResourceAttributes returns common attributes for all telemetry.
func ResourceAttributes() map[string]string {
	hostname, _ := os.Hostname()
	return map[string]string{
		"service.name":    "trackerd",
		"service.version": "0.1.0",
		"host.name":       hostname,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
}
