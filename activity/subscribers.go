package activity

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogSubscriber mirrors activities into the engine's own logger (cycle
// boundaries and plugin loads at DEBUG, retries and backlog expiry at WARN,
// fetch failures, quarantines and state-write failures at ERROR), so an
// operator tailing the daemon log sees them without needing the JSON
// heartbeat file.
type LogSubscriber struct {
	logger *slog.Logger
}

// NewLogSubscriber builds a subscriber bound to logger.
func NewLogSubscriber(logger *slog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger}
}

// Handle implements Subscriber.
func (s *LogSubscriber) Handle(a Activity) {
	switch p := a.Payload.(type) {
	case CycleStartPayload:
		s.logger.Debug("cycle start", "cycle_id", p.CycleID, "global_next_id", p.GlobalNextID)
	case CycleEndPayload:
		s.logger.Debug("cycle end", "cycle_id", p.CycleID, "duration", p.Duration, "events_fetched", p.EventsFetched)
	case FetchRetryPayload:
		s.logger.Warn("fetch retry", "attempt", p.Attempt, "err", p.Err)
	case FetchFailedPayload:
		s.logger.Error("fetch failed, backing off", "attempts", p.Attempts, "slept_for", p.SleptFor)
	case PluginLoadedPayload:
		if a.Type == PluginQuarantined {
			s.logger.Error("plugin quarantined", "collection", p.CollectionPath, "plugin", p.PluginName)
		} else {
			s.logger.Debug("plugin loaded", "collection", p.CollectionPath, "plugin", p.PluginName)
		}
	case CallbackQuarantinedPayload:
		s.logger.Error("callback quarantined", "plugin", p.PluginName, "callback", p.CallbackName, "reason", p.Reason)
	case BacklogExpiredPayload:
		s.logger.Warn("backlog entry expired", "plugin", p.PluginName, "event_id", p.EventID)
	case StateWriteFailedPayload:
		s.logger.Error("state write failed", "err", p.Err)
	default:
		s.logger.Debug(a.Type.String())
	}
}

// HeartbeatWriter atomically writes a JSON status file on every CycleEnd,
// following the temp-file-then-rename discipline used everywhere else in
// this codebase that a file must never be observed half-written.
type HeartbeatWriter struct {
	path      string
	startTime time.Time

	mu         sync.Mutex
	cyclesRun  int64
	lastCycle  time.Time
	lastEvents int
}

// NewHeartbeatWriter builds a writer targeting path.
func NewHeartbeatWriter(path string) *HeartbeatWriter {
	return &HeartbeatWriter{path: path, startTime: time.Now()}
}

// Handle implements Subscriber; only CycleEnd triggers a write.
func (w *HeartbeatWriter) Handle(a Activity) {
	if a.Type != CycleEnd {
		return
	}
	p, ok := a.Payload.(CycleEndPayload)
	if !ok {
		return
	}

	w.mu.Lock()
	w.cyclesRun++
	w.lastCycle = a.Timestamp
	w.lastEvents = p.EventsFetched
	data := map[string]interface{}{
		"timestamp":      w.lastCycle.UTC().Format(time.RFC3339),
		"uptime_seconds": time.Since(w.startTime).Seconds(),
		"cycles_run":     w.cyclesRun,
		"last_events":    w.lastEvents,
		"pid":            os.Getpid(),
	}
	w.mu.Unlock()

	w.write(data)
}

func (w *HeartbeatWriter) write(data map[string]interface{}) {
	if w.path == "" {
		return
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		return
	}
	os.Rename(tmpPath, w.path)
}
