package telemetry

import (
	"sync"
	"time"
)

// Span represents one traced step of the fetch-dispatch-checkpoint cycle
// (Provider records one span per whole cycle). Attrs carries
// cycle-specific context such as cycle_id and events_fetched so the
// fallback trace file stays useful without a real OTLP collector attached.
type Span struct {
	Name      string            `json:"name"`
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Attrs     map[string]string `json:"attributes,omitempty"`
	Status    string            `json:"status,omitempty"`
}

// Tracer collects cycle spans and exports them through a FallbackExporter,
// since no OTLP collector is assumed to be listening.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	exporter *FallbackExporter
}

// NewTracer creates a new tracer exporting to fallbackPath.
func NewTracer(fallbackPath string) *Tracer {
	return &Tracer{
		maxSpans: 2048,
		exporter: NewFallbackExporter(fallbackPath),
	}
}

// StartSpan begins a new span and returns it for later ending.
func (t *Tracer) StartSpan(name, traceID, parentID string) *Span {
	if t == nil {
		return nil
	}
	return &Span{
		Name:      name,
		TraceID:   traceID,
		SpanID:    generateID(),
		ParentID:  parentID,
		StartTime: time.Now(),
		Attrs:     make(map[string]string),
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, status string) {
	if t == nil || span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Status = status

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.spans) >= t.maxSpans {
		// Flush before overflow.
		t.flushLocked()
	}
	t.spans = append(t.spans, *span)
}

// Flush exports accumulated spans.
func (t *Tracer) Flush() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked()
}

func (t *Tracer) flushLocked() {
	if len(t.spans) == 0 {
		return
	}
	t.exporter.ExportSpans(t.spans)
	t.spans = t.spans[:0]
}

// generateID produces a simple unique ID (not cryptographically secure).
func generateID() string {
	return time.Now().Format("20060102150405.000000000")
}
