// Package activity provides the daemon's internal telemetry bus.
//
// This is deliberately separate from the tracker's domain event stream: the
// engine publishes here to describe its own operation (cycle boundaries,
// retries, reloads, backlog expiry), and the heartbeat writer, the log
// mirror, and the metrics collector all subscribe independently. Nothing
// published here feeds back into dispatch decisions.
package activity

import (
	"sync"
	"time"
)

// Type identifies the kind of activity being reported.
type Type int

const (
	CycleStart Type = iota
	CycleEnd
	FetchRetry
	FetchFailed
	PluginLoaded
	PluginQuarantined
	CallbackQuarantined
	BacklogExpired
	StateWriteFailed
	Heartbeat
)

// String names the activity type for logging.
func (t Type) String() string {
	switch t {
	case CycleStart:
		return "cycle_start"
	case CycleEnd:
		return "cycle_end"
	case FetchRetry:
		return "fetch_retry"
	case FetchFailed:
		return "fetch_failed"
	case PluginLoaded:
		return "plugin_loaded"
	case PluginQuarantined:
		return "plugin_quarantined"
	case CallbackQuarantined:
		return "callback_quarantined"
	case BacklogExpired:
		return "backlog_expired"
	case StateWriteFailed:
		return "state_write_failed"
	case Heartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Activity is a single telemetry event published on the Bus.
type Activity struct {
	Type      Type
	Timestamp time.Time
	Payload   interface{}
}

// CycleStartPayload accompanies CycleStart.
type CycleStartPayload struct {
	CycleID       int64
	GlobalNextID  int64
	ActivePlugins int
}

// CycleEndPayload accompanies CycleEnd.
type CycleEndPayload struct {
	CycleID       int64
	Duration      time.Duration
	EventsFetched int
}

// FetchRetryPayload accompanies FetchRetry.
type FetchRetryPayload struct {
	Attempt int
	Err     error
}

// FetchFailedPayload accompanies FetchFailed.
type FetchFailedPayload struct {
	Attempts int
	SleptFor time.Duration
}

// PluginLoadedPayload accompanies PluginLoaded/PluginQuarantined.
type PluginLoadedPayload struct {
	CollectionPath string
	PluginName     string
}

// CallbackQuarantinedPayload accompanies CallbackQuarantined.
type CallbackQuarantinedPayload struct {
	PluginName    string
	CallbackName  string
	Reason        string
}

// BacklogExpiredPayload accompanies BacklogExpired.
type BacklogExpiredPayload struct {
	PluginName string
	EventID    int64
}

// StateWriteFailedPayload accompanies StateWriteFailed.
type StateWriteFailedPayload struct {
	Err error
}

// Subscriber handles one activity at a time, from its own goroutine.
type Subscriber func(Activity)

// Bus is a pub/sub fanout: every subscriber gets its own buffered channel
// and a dedicated draining goroutine. Publish never blocks the caller — a
// full subscriber buffer simply drops the activity for that subscriber,
// because the engine's main loop must never stall on a slow observer.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscriberEntry
	bufferSize  int
	closed      bool
}

type subscriberEntry struct {
	name string
	ch   chan Activity
	done chan struct{}
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers fn under name, draining its own channel in a
// dedicated goroutine until Close.
func (b *Bus) Subscribe(name string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Activity, b.bufferSize)
	done := make(chan struct{})
	entry := subscriberEntry{name: name, ch: ch, done: done}

	go func() {
		defer close(done)
		for a := range ch {
			fn(a)
		}
	}()

	b.subscribers = append(b.subscribers, entry)
}

// Publish fans a out to every subscriber, non-blocking.
func (b *Bus) Publish(a Activity) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- a:
		default:
		}
	}
}

// PublishTyped is a convenience wrapper around Publish.
func (b *Bus) PublishTyped(t Type, payload interface{}) {
	b.Publish(Activity{Type: t, Timestamp: time.Now(), Payload: payload})
}

// Close stops accepting new publishes, closes every subscriber channel, and
// waits for each drain goroutine to finish processing what's buffered.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]subscriberEntry, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
	for _, sub := range subs {
		<-sub.done
	}
}
