package plugin

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/eventsource"
	"gitlab.com/vfx-pipeline/trackerd/state"
)

// workerSuffix is the naming convention a directory entry must match to be
// treated as a plugin worker binary.
const workerSuffix = ".plugin"

// Collection owns a directory of plugins, iterated in sorted-basename order
// (load-bearing: it fixes callback invocation order across plugins).
type Collection struct {
	Path string

	logger  *slog.Logger
	bus     *activity.Bus
	plugins map[string]*Plugin
	order   []string
}

// NewCollection builds an empty Collection rooted at path.
func NewCollection(path string, logger *slog.Logger, bus *activity.Bus) *Collection {
	return &Collection{
		Path:    path,
		logger:  logger,
		bus:     bus,
		plugins: make(map[string]*Plugin),
	}
}

// Load rescans the directory: new matching files get fresh Plugins, files
// still present keep their existing Plugin (and cursor), files that
// disappeared are dropped. Every kept-or-new plugin is then asked to Load.
func (c *Collection) Load() error {
	entries, err := os.ReadDir(c.Path)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(entries))
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, workerSuffix) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	for name := range c.plugins {
		if !seen[name] {
			c.plugins[name].Close()
			delete(c.plugins, name)
		}
	}

	for _, name := range names {
		p, ok := c.plugins[name]
		if !ok {
			p = New(filepath.Join(c.Path, name), c.logger.With("plugin", name), c.bus)
			c.plugins[name] = p
		}
		if err := p.Load(); err != nil {
			c.logger.Error("plugin load failed", "plugin", name, "err", err)
		}
	}

	c.order = names
	return nil
}

// Process dispatches event to every plugin in sorted-basename order.
func (c *Collection) Process(event eventsource.Event) {
	for _, name := range c.order {
		p := c.plugins[name]
		if !p.Active() {
			c.logger.Debug("skipping inactive plugin", "plugin", name, "event_id", event.ID)
			continue
		}
		p.Process(event)
	}
}

// GetNextUnprocessedEventID returns the minimum next-unprocessed-id across
// active plugins, or (0, false) if none have one.
func (c *Collection) GetNextUnprocessedEventID() (int64, bool) {
	best, has := int64(0), false
	for _, name := range c.order {
		p := c.plugins[name]
		if !p.Active() {
			continue
		}
		id, ok := p.NextUnprocessedID()
		if !ok {
			continue
		}
		if !has || id < best {
			best, has = id, true
		}
	}
	return best, has
}

// GetState snapshots every plugin's (lastEventId, backlog).
func (c *Collection) GetState() state.CollectionState {
	out := make(state.CollectionState, len(c.plugins))
	for name, p := range c.plugins {
		out[name] = p.State()
	}
	return out
}

// SetState restores every plugin's (lastEventId, backlog) from a structured
// snapshot produced by GetState.
func (c *Collection) SetState(s state.CollectionState) {
	for name, ps := range s {
		if p, ok := c.plugins[name]; ok {
			p.SetState(ps)
		}
	}
}

// BroadcastLastEventID sets the given cursor on every plugin in the
// collection, used for legacy bare-integer state files and fresh-install
// bootstrap.
func (c *Collection) BroadcastLastEventID(id int64) {
	for _, p := range c.plugins {
		p.SetLastEventID(id)
	}
}

// Plugins returns the currently loaded plugins in dispatch order, for
// diagnostics and tests.
func (c *Collection) Plugins() []*Plugin {
	out := make([]*Plugin, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.plugins[name])
	}
	return out
}
