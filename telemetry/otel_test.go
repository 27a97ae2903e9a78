package telemetry

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/config"
)

func TestFromConfig(t *testing.T) {
	cfg := &config.TelemetryConfig{
		OTLPEndpoint:  "http://localhost:4318",
		HeartbeatPath: "/tmp/test-heartbeat",
	}

	tc := FromConfig(cfg)
	if !tc.Enabled {
		t.Error("non-nil config should produce an enabled telemetry.Config")
	}
	if tc.HeartbeatPath != "/tmp/test-heartbeat" {
		t.Errorf("HeartbeatPath = %q", tc.HeartbeatPath)
	}
}

func TestFromConfigNil(t *testing.T) {
	tc := FromConfig(nil)
	if tc.Enabled {
		t.Error("nil config should produce disabled config")
	}
}

func TestProviderDisabled(t *testing.T) {
	cfg := &Config{Enabled: false}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	p := NewProvider(cfg, logger)
	if p.Metrics() != nil {
		t.Error("disabled provider should have nil metrics")
	}
	if p.Tracer() != nil {
		t.Error("disabled provider should have nil tracer")
	}
	p.Shutdown() // should not panic
}

func TestProviderEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Enabled:       true,
		HeartbeatPath: tmpDir + "/heartbeat",
		FallbackPath:  tmpDir + "/otel.json",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	p := NewProvider(cfg, logger)
	defer p.Shutdown()

	if p.Metrics() == nil {
		t.Error("expected metrics collector")
	}
	if p.Tracer() == nil {
		t.Error("expected tracer")
	}
}

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordEventsFetched(5)
	m.RecordEventsDispatched(5)
	m.RecordCycle()
	m.RecordFetchRetry()
	m.RecordCallbackQuarantined()
	m.RecordPluginQuarantined()
	m.RecordStateWriteFailure()
	m.SetPluginBacklogLen("calculateCutDuration", 2)
	m.RecordCycleDuration(10 * time.Second)

	snap := m.Snapshot()
	if snap["events_fetched_total"].(int64) != 5 {
		t.Error("events_fetched_total incorrect")
	}
	if snap["cycles_total"].(int64) != 1 {
		t.Error("cycles_total incorrect")
	}
	if snap["plugins_quarantined"].(int64) != 1 {
		t.Error("plugins_quarantined incorrect")
	}
	backlog := snap["plugin_backlog_len"].(map[string]int)
	if backlog["calculateCutDuration"] != 2 {
		t.Error("plugin_backlog_len incorrect")
	}
}

func TestTracer(t *testing.T) {
	tmpDir := t.TempDir()
	tracer := NewTracer(tmpDir + "/traces.json")

	span := tracer.StartSpan("fetch_events", "trace-1", "")
	span.Attrs["key"] = "value"
	tracer.EndSpan(span, "ok")
	tracer.Flush()

	data, err := os.ReadFile(tmpDir + "/traces.json")
	if err != nil {
		t.Fatalf("trace file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("trace file is empty")
	}
}

func TestTracerNil(t *testing.T) {
	var tracer *Tracer
	span := tracer.StartSpan("test", "trace-1", "")
	tracer.EndSpan(span, "ok")
	tracer.Flush()
	// Should not panic.
}

func TestHeartbeat(t *testing.T) {
	tmpDir := t.TempDir()
	hb := NewHeartbeat(tmpDir + "/heartbeat.json")
	hb.Tick()

	data, err := os.ReadFile(tmpDir + "/heartbeat.json")
	if err != nil {
		t.Fatalf("heartbeat not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("heartbeat file is empty")
	}
}

func TestHeartbeatNil(t *testing.T) {
	var hb *Heartbeat
	hb.Tick() // should not panic
	hb.Path() // should not panic
}

func TestFallbackExporter(t *testing.T) {
	tmpDir := t.TempDir()
	f := NewFallbackExporter(tmpDir + "/fallback.json")

	err := f.ExportMetrics(map[string]interface{}{"test": 42})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	data, err := os.ReadFile(tmpDir + "/fallback.json")
	if err != nil {
		t.Fatalf("fallback file not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("fallback file is empty")
	}
}

func TestProviderHandleActivityDrivesMetricsAndTracer(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Enabled:      true,
		FallbackPath: tmpDir + "/otel.json",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	p := NewProvider(cfg, logger)
	defer p.Shutdown()

	p.HandleActivity(activity.Activity{
		Type: activity.CycleStart,
		Payload: activity.CycleStartPayload{
			CycleID:       1,
			GlobalNextID:  100,
			ActivePlugins: 2,
		},
	})
	p.HandleActivity(activity.Activity{
		Type: activity.CycleEnd,
		Payload: activity.CycleEndPayload{
			CycleID:       1,
			Duration:      5 * time.Millisecond,
			EventsFetched: 3,
		},
	})
	p.HandleActivity(activity.Activity{
		Type:    activity.FetchRetry,
		Payload: activity.FetchRetryPayload{Attempt: 1},
	})
	p.HandleActivity(activity.Activity{
		Type:    activity.BacklogExpired,
		Payload: activity.BacklogExpiredPayload{PluginName: "calculateCutDuration", EventID: 42},
	})

	snap := p.Metrics().Snapshot()
	if snap["cycles_total"].(int64) != 1 {
		t.Error("cycles_total should be incremented by CycleStart")
	}
	if snap["events_fetched_total"].(int64) != 3 {
		t.Error("events_fetched_total should be incremented by CycleEnd")
	}
	if snap["backlog_expired_total"].(int64) != 1 {
		t.Error("backlog_expired_total should be incremented by BacklogExpired")
	}
	if _, err := os.Stat(p.Heartbeat().Path()); err != nil {
		t.Errorf("expected a heartbeat tick to have been recorded via CycleEnd: %v", err)
	}
}
