package plugin

import (
	"log/slog"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/eventsource"
	"gitlab.com/vfx-pipeline/trackerd/pluginrpc"
)

// Callback is the engine-side proxy for one registered callback slot inside
// a worker process: its descriptor (name, filter, index) plus the shared
// worker handle it dispatches through.
type Callback struct {
	Index      int
	Name       string
	Filter     MatchFilter
	PluginName string

	worker pluginrpc.CallbackWorker
	logger *slog.Logger
	bus    *activity.Bus
}

// NewCallback builds a Callback bound to the given worker stub. pluginName
// is used only for log/activity attribution.
func NewCallback(desc pluginrpc.CallbackDescriptor, pluginName string, worker pluginrpc.CallbackWorker, logger *slog.Logger, bus *activity.Bus) *Callback {
	return &Callback{
		Index:      desc.Index,
		Name:       desc.Name,
		Filter:     desc.Filter,
		PluginName: pluginName,
		worker:     worker,
		logger:     logger,
		bus:        bus,
	}
}

// CanProcess reports whether this callback's filter admits event.
func (c *Callback) CanProcess(event eventsource.Event) bool {
	return CanProcess(c.Filter, event.EventType, event.AttributeName)
}

// Process invokes the worker's callback over RPC. It returns the callback's
// resulting active flag (false means this callback has disabled itself and
// its plugin must be quarantined) and any CallbackFailure the worker
// reported or that an RPC-level failure implies.
func (c *Callback) Process(event eventsource.Event) (active bool, failure *pluginrpc.CallbackFailure) {
	wire := toWireEvent(event)

	active, failure = c.worker.Invoke(wire, c.Index)
	if failure != nil {
		c.logger.Error("callback invocation failed",
			"callback", c.Name,
			"event_id", event.ID,
			"message", failure.Message,
			"stack", failure.Stack,
		)
		if c.bus != nil {
			c.bus.PublishTyped(activity.CallbackQuarantined, activity.CallbackQuarantinedPayload{
				PluginName:   c.PluginName,
				CallbackName: c.Name,
				Reason:       failure.Message,
			})
		}
	}
	return active, failure
}

func toWireEvent(e eventsource.Event) pluginrpc.WireEvent {
	return pluginrpc.WireEvent{
		ID:            e.ID,
		EventType:     e.EventType,
		AttributeName: e.AttributeName,
		Meta:          e.Meta,
		Entity:        e.Entity,
		User:          e.User,
		Project:       e.Project,
		SessionUUID:   e.SessionUUID,
	}
}
