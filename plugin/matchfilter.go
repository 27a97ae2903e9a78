// Package plugin implements the engine's view of a hot-reloadable plugin
// directory: match filtering, per-callback dispatch, cursor/backlog
// bookkeeping, and the worker-process lifecycle behind it.
package plugin

import "gitlab.com/vfx-pipeline/trackerd/pluginrpc"

// MatchFilter gates which events a callback is offered. Shape:
//   - nil or empty: admits everything.
//   - key "*": admits every event type, subject to the same attribute check
//     as any other matched key.
//   - otherwise: each key is an event type; its value is the list of
//     attribute names that must match, or nil/containing "*" to admit any
//     attribute (including events with no attribute at all).
type MatchFilter = pluginrpc.MatchFilter

// CanProcess implements the callback filter algebra described alongside
// MatchFilter: no filter admits everything; a "*" key or nil/"*" attribute
// list admits any attribute; otherwise the event's attribute name must
// appear in the matched key's attribute list.
func CanProcess(filter MatchFilter, eventType, attributeName string) bool {
	if len(filter) == 0 {
		return true
	}

	attrs, ok := filter["*"]
	if !ok {
		attrs, ok = filter[eventType]
		if !ok {
			return false
		}
	}

	return attributesMatch(attrs, attributeName)
}

func attributesMatch(attrs []string, attributeName string) bool {
	if attrs == nil {
		return true
	}
	for _, a := range attrs {
		if a == "*" {
			return true
		}
	}
	if attributeName == "" {
		return false
	}
	for _, a := range attrs {
		if a == attributeName {
			return true
		}
	}
	return false
}
