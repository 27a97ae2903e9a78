// Package logging builds the daemon's hierarchical logger tree.
//
// There is no package-level default logger here: the Registry owns the root
// *slog.Logger and hands out named children to the engine, to collections,
// to plugins, and to callbacks at construction time. Nothing reaches back
// into a global to find its logger.
package logging

import (
	"fmt"
	"log/slog"
)

// Registry constructs namespaced child loggers from a single root handler
// chain (rotating file + SMTP fanout, see Build in logging.go).
type Registry struct {
	root *slog.Logger
}

// NewRegistry wraps an already-built root logger.
func NewRegistry(root *slog.Logger) *Registry {
	return &Registry{root: root}
}

// Engine returns the top-level "engine" logger.
func (r *Registry) Engine() *slog.Logger {
	return r.root.With("component", "engine")
}

// Collection returns the logger for a plugin collection at the given path.
func (r *Registry) Collection(path string) *slog.Logger {
	return r.root.With("component", "collection", "path", path)
}

// Plugin returns the logger for a single plugin, namespaced
// "plugin.<name>" to match the original dotted-logger-name convention.
func (r *Registry) Plugin(name string) *slog.Logger {
	return r.root.With("logger", fmt.Sprintf("plugin.%s", name), "plugin", name)
}

// Callback returns the logger for a single callback, namespaced
// "plugin.<pluginName>.<callbackName>".
func (r *Registry) Callback(pluginName, callbackName string) *slog.Logger {
	return r.root.With(
		"logger", fmt.Sprintf("plugin.%s.%s", pluginName, callbackName),
		"plugin", pluginName,
		"callback", callbackName,
	)
}
