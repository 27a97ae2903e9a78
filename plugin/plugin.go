package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/eventsource"
	"gitlab.com/vfx-pipeline/trackerd/pluginrpc"
	"gitlab.com/vfx-pipeline/trackerd/state"
	"gopkg.in/yaml.v3"
)

// BacklogExpiry bounds how long a skipped event id waits in a plugin's
// backlog for late arrival before being dropped.
const BacklogExpiry = 5 * time.Minute

// spawnedWorker is the surface Plugin needs from a live worker process.
// Satisfied by *pluginrpc.WorkerHandle; tests substitute a fake to avoid
// spawning a real subprocess.
type spawnedWorker interface {
	CallbackWorker() pluginrpc.CallbackWorker
	Alive() bool
	Kill()
}

// spawnFunc starts a plugin worker binary and returns its handle.
type spawnFunc func(path string) (spawnedWorker, error)

func defaultSpawn(path string) (spawnedWorker, error) {
	return pluginrpc.Spawn(path)
}

// sidecarMeta is the optional <name>.meta.yaml default-filter override.
type sidecarMeta struct {
	DefaultFilter map[string][]string `yaml:"default_filter"`
}

// Plugin owns one hot-reloaded source file: its worker process, its
// registered callbacks, its cursor, and its backlog.
type Plugin struct {
	Name string
	Path string

	logger *slog.Logger
	bus    *activity.Bus

	mtime     time.Time
	hasLoaded bool

	active    bool
	callbacks []*Callback
	worker    spawnedWorker
	spawn     spawnFunc

	lastEventID int64
	hasLast     bool
	backlog     map[int64]time.Time
}

// New builds an unloaded Plugin for the source file at path.
func New(path string, logger *slog.Logger, bus *activity.Bus) *Plugin {
	return &Plugin{
		Name:    filepath.Base(path),
		Path:    path,
		logger:  logger,
		bus:     bus,
		backlog: make(map[int64]time.Time),
		spawn:   defaultSpawn,
	}
}

// Active reports whether this plugin currently accepts events.
func (p *Plugin) Active() bool { return p.active }

// Load re-scans the plugin's mtime and, if it has advanced since the last
// load, respawns its worker process and re-registers callbacks. A no-op if
// the mtime is unchanged.
func (p *Plugin) Load() error {
	info, err := os.Stat(p.Path)
	if err != nil {
		p.active = false
		p.logger.Error("plugin source file vanished", "path", p.Path, "err", err)
		return err
	}

	mtime := info.ModTime()
	if p.hasLoaded && mtime.Equal(p.mtime) {
		return nil
	}

	p.callbacks = nil
	p.active = true
	p.mtime = mtime
	p.hasLoaded = true

	if p.worker != nil {
		p.worker.Kill()
		p.worker = nil
	}

	worker, err := p.spawn(p.Path)
	if err != nil {
		p.active = false
		p.logger.Error("plugin worker spawn failed", "plugin", p.Name, "err", err)
		return err
	}
	p.worker = worker

	descs, err := worker.CallbackWorker().RegisterCallbacks()
	if err != nil || len(descs) == 0 {
		p.active = false
		if err == nil {
			err = fmt.Errorf("plugin %s: RegisterCallbacks returned no callbacks", p.Name)
		}
		p.logger.Error("plugin registration failed", "plugin", p.Name, "err", err)
		return err
	}

	defaultFilter := p.loadSidecarFilter()

	callbacks := make([]*Callback, 0, len(descs))
	for _, d := range descs {
		if len(d.Filter) == 0 && defaultFilter != nil {
			d.Filter = defaultFilter
		}
		callbacks = append(callbacks, NewCallback(d, p.Name, worker.CallbackWorker(), p.logger, p.bus))
	}
	p.callbacks = callbacks

	if p.bus != nil {
		p.bus.PublishTyped(activity.PluginLoaded, activity.PluginLoadedPayload{PluginName: p.Name})
	}
	return nil
}

// loadSidecarFilter parses <name>.meta.yaml next to the plugin source, if
// present, returning its default_filter for callbacks that registered no
// filter of their own. A missing or unreadable sidecar is not an error.
func (p *Plugin) loadSidecarFilter() MatchFilter {
	sidecarPath := p.Path + ".meta.yaml"
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return nil
	}

	var meta sidecarMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		p.logger.Warn("plugin sidecar metadata is malformed, ignoring", "plugin", p.Name, "path", sidecarPath, "err", err)
		return nil
	}
	if len(meta.DefaultFilter) == 0 {
		return nil
	}
	return MatchFilter(meta.DefaultFilter)
}

// Process dispatches event to this plugin per the backlog/cursor rules and
// returns the plugin's resulting active flag.
func (p *Plugin) Process(event eventsource.Event) bool {
	if !p.active {
		return false
	}

	if _, inBacklog := p.backlog[event.ID]; inBacklog {
		if p.processInternal(event) {
			delete(p.backlog, event.ID)
			p.updateLastEventID(event.ID)
		}
		return p.active
	}

	if p.hasLast && event.ID <= p.lastEventID {
		p.logger.Debug("dropping duplicate or stale event", "plugin", p.Name, "event_id", event.ID)
		return p.active
	}

	if p.processInternal(event) {
		p.updateLastEventID(event.ID)
	}
	return p.active
}

// processInternal runs every active callback whose filter admits event, in
// registration order, stopping and quarantining the whole plugin the moment
// any callback reports itself inactive. Returns whether the event was fully
// processed (i.e. the plugin is still active afterward).
func (p *Plugin) processInternal(event eventsource.Event) bool {
	for _, cb := range p.callbacks {
		if !cb.CanProcess(event) {
			continue
		}
		active, failure := cb.Process(event)
		if failure != nil || !active {
			p.active = false
			p.logger.Warn("plugin quarantined by callback", "plugin", p.Name, "callback", cb.Name, "event_id", event.ID)
			if p.bus != nil {
				p.bus.PublishTyped(activity.PluginQuarantined, activity.PluginLoadedPayload{PluginName: p.Name})
			}
			return false
		}
	}
	return true
}

// updateLastEventID advances the cursor, adding any skipped ids to the
// backlog with a fresh expiry.
func (p *Plugin) updateLastEventID(newID int64) {
	if p.hasLast && newID > p.lastEventID+1 {
		expiry := time.Now().Add(BacklogExpiry)
		for id := p.lastEventID + 1; id < newID; id++ {
			p.backlog[id] = expiry
		}
	}
	if !p.hasLast || newID > p.lastEventID {
		p.lastEventID = newID
		p.hasLast = true
	}
}

// NextUnprocessedID expires stale backlog entries and returns the lowest
// remaining unprocessed id, or (0, false) if there is none.
func (p *Plugin) NextUnprocessedID() (int64, bool) {
	now := time.Now()
	for id, expiry := range p.backlog {
		if now.After(expiry) {
			delete(p.backlog, id)
			p.logger.Warn("backlog entry expired", "plugin", p.Name, "event_id", id)
			if p.bus != nil {
				p.bus.PublishTyped(activity.BacklogExpired, activity.BacklogExpiredPayload{PluginName: p.Name, EventID: id})
			}
		}
	}

	best, has := int64(0), false
	for id := range p.backlog {
		if !has || id < best {
			best, has = id, true
		}
	}
	if p.hasLast {
		candidate := p.lastEventID + 1
		if !has || candidate < best {
			best, has = candidate, true
		}
	}
	return best, has
}

// State snapshots this plugin's cursor and backlog for durable storage.
func (p *Plugin) State() state.PluginState {
	backlog := make(map[int64]time.Time, len(p.backlog))
	for id, expiry := range p.backlog {
		backlog[id] = expiry
	}
	return state.PluginState{LastEventID: p.lastEventID, HasLast: p.hasLast, Backlog: backlog}
}

// SetState restores this plugin's cursor and backlog from durable storage.
func (p *Plugin) SetState(s state.PluginState) {
	p.lastEventID = s.LastEventID
	p.hasLast = s.HasLast
	p.backlog = make(map[int64]time.Time, len(s.Backlog))
	for id, expiry := range s.Backlog {
		p.backlog[id] = expiry
	}
}

// SetLastEventID broadcasts a bare cursor value, used for legacy state-file
// restoration and fresh-install bootstrap.
func (p *Plugin) SetLastEventID(id int64) {
	p.lastEventID = id
	p.hasLast = true
}

// Close tears down this plugin's worker process, if any.
func (p *Plugin) Close() {
	if p.worker != nil {
		p.worker.Kill()
		p.worker = nil
	}
}
