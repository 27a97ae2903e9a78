// Package telemetry provides lightweight, OTel-shaped observability for the
// tracker event daemon: metrics, traces, heartbeat, and a health endpoint.
// Provider subscribes to the engine's activity.Bus and is fed from loop
// events (CycleStart/CycleEnd, FetchRetry, the quarantine and backlog
// events) rather than from an installed OTel SDK pipeline: no OTLP exporter
// is configured anywhere in this daemon, so Provider's own recorder writes
// JSON lines to a fallback file instead. The only real go.opentelemetry.io
// import in this module is otelhttp, used by eventsource's HTTP client.
package telemetry

import (
	"gitlab.com/vfx-pipeline/trackerd/config"
)

// Config is telemetry's own view of the [telemetry] section, decoupled
// from the config package's on-disk shape.
type Config struct {
	Enabled       bool
	OTLPEndpoint  string
	HeartbeatPath string
	HealthPort    int
	FallbackPath  string
}

// FromConfig converts config.TelemetryConfig to telemetry.Config.
func FromConfig(cfg *config.TelemetryConfig) *Config {
	if cfg == nil {
		return &Config{}
	}
	return &Config{
		Enabled:       true,
		OTLPEndpoint:  cfg.OTLPEndpoint,
		HeartbeatPath: cfg.HeartbeatPath,
		HealthPort:    cfg.HealthPort,
		FallbackPath:  cfg.HeartbeatPath + ".telemetry",
	}
}
