// Package pluginrpc defines the out-of-process plugin worker protocol: each
// plugin is a standalone binary that serves a CallbackWorker over
// hashicorp/go-plugin's net/rpc transport, and the engine dispenses a client
// stub to drive it.
package pluginrpc

import (
	"time"

	"github.com/hashicorp/go-plugin"
)

// Handshake is shared by every worker and the engine so a stray non-plugin
// process can never be mistaken for a callback worker.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "TRACKERD_PLUGIN",
	MagicCookieValue: "a3f9c1-callback-worker",
}

// CallTimeout is a 30-second window for engine-to-worker RPCs. The RPC stub
// does not apply it: a call blocks until the worker replies or the
// connection fails, so a wedged worker blocks the engine.
const CallTimeout = 30 * time.Second

// CallbackDescriptor is what RegisterCallbacks returns for one callback: its
// display name, match filter, and opaque argument blob. Index is assigned
// by the worker at registration time (a monotonic surrogate, never a memory
// address) and is echoed back on every subsequent CanProcess/Invoke call.
type CallbackDescriptor struct {
	Index  int
	Name   string
	Filter MatchFilter
	Args   []byte // gob-encoded opaque user argument, round-tripped by the worker
}

// MatchFilter is the over-the-wire shape of a callback's event filter: nil
// or an empty map admits everything; "*" as a key wildcards the event type;
// otherwise each key is an event type mapping to the attribute names that
// must be present (a nil slice means "any attribute, including none"; an
// empty non-nil slice matches no event).
type MatchFilter map[string][]string

// CallbackFailure structurally reports a worker-side callback failure
// instead of letting the worker process die silently. The worker recovers
// its own panics and fills this in; an actual process death surfaces as an
// error from the RPC call itself and is treated identically.
type CallbackFailure struct {
	Message    string
	Stack      string
	LocalsDump string
}

func (f *CallbackFailure) Error() string {
	if f == nil {
		return ""
	}
	return f.Message
}

// WireEvent is the over-the-wire shape of eventsource.Event, duplicated here
// so this package has no dependency on the eventsource package's types
// (net/rpc arguments must be gob-encodable value types, not interfaces tied
// to another package's method set).
type WireEvent struct {
	ID            int64
	EventType     string
	AttributeName string
	Meta          map[string]interface{}
	Entity        map[string]interface{}
	User          map[string]interface{}
	Project       map[string]interface{}
	SessionUUID   string
}

// RegisterCallbacksArgs carries nothing today but exists for forward
// compatibility with go-plugin's net/rpc calling convention, which always
// passes a single args value.
type RegisterCallbacksArgs struct{}

// RegisterCallbacksReply is the worker's response to RegisterCallbacks.
type RegisterCallbacksReply struct {
	Callbacks []CallbackDescriptor
}

// CanProcessArgs carries the event and the callback index to test.
type CanProcessArgs struct {
	Event WireEvent
	Index int
}

// CanProcessReply reports whether the identified callback's filter matches.
type CanProcessReply struct {
	Matches bool
}

// InvokeArgs carries the event and the callback index to run.
type InvokeArgs struct {
	Event WireEvent
	Index int
}

// InvokeReply reports the callback's resulting active flag, or a non-nil
// Failure if the callback panicked or returned an error.
type InvokeReply struct {
	Active  bool
	Failure *CallbackFailure
}

// CallbackWorker is the RPC surface every plugin worker binary serves and
// every engine-side Plugin dispenses a client stub for.
type CallbackWorker interface {
	RegisterCallbacks() ([]CallbackDescriptor, error)
	CanProcess(event WireEvent, index int) (bool, error)
	Invoke(event WireEvent, index int) (bool, *CallbackFailure)
}
