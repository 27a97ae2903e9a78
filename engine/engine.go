// Package engine drives the single-threaded fetch-dispatch-checkpoint loop
// that ties the event source, plugin collections, and durable state
// together.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/eventsource"
	"gitlab.com/vfx-pipeline/trackerd/plugin"
	"gitlab.com/vfx-pipeline/trackerd/state"
)

// Config parameterizes the Engine's loop timing and connection retry
// policy, mirroring the daemon config's Daemon section.
type Config struct {
	FetchInterval  time.Duration
	MaxConnRetries int
	ConnRetrySleep time.Duration
}

// Engine drives the main loop: reload, compute next id, fetch, dispatch,
// checkpoint, sleep.
type Engine struct {
	cfg         Config
	source      eventsource.Client
	collections []*plugin.Collection
	store       *state.Store
	logger      *slog.Logger
	bus         *activity.Bus

	cycleID int64
}

// New builds an Engine over the given collections, sharing one event source
// and one durable state store across all of them.
func New(cfg Config, source eventsource.Client, collections []*plugin.Collection, store *state.Store, logger *slog.Logger, bus *activity.Bus) *Engine {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = time.Second
	}
	if cfg.MaxConnRetries <= 0 {
		cfg.MaxConnRetries = 3
	}
	if cfg.ConnRetrySleep <= 0 {
		cfg.ConnRetrySleep = 10 * time.Second
	}
	return &Engine{cfg: cfg, source: source, collections: collections, store: store, logger: logger, bus: bus}
}

// Bootstrap runs the one-time startup sequence: load every collection, read
// durable state (structured or legacy form), and, if no plugin anywhere has
// a cursor yet, seed every plugin from the source's most recent event id so
// a fresh install never replays full history.
func (e *Engine) Bootstrap(ctx context.Context) error {
	errs := plugin.LoadAll(e.collections, len(e.collections))
	for i, err := range errs {
		if err != nil {
			e.logger.Error("collection load failed during bootstrap", "path", e.collections[i].Path, "err", err)
		}
	}

	result, err := e.store.Load()
	switch {
	case err == nil && result.Legacy:
		for _, c := range e.collections {
			c.BroadcastLastEventID(result.LegacyLastEventID)
		}
	case err == nil:
		for _, c := range e.collections {
			if cs, ok := result.Collections[c.Path]; ok {
				c.SetState(cs)
			}
		}
	case state.IsNotExist(err):
		e.logger.Info("no durable state file found, starting fresh")
	default:
		e.logger.Error("state read failed during bootstrap", "err", err)
	}

	if !e.anyPluginHasCursor() {
		mostRecent, err := e.fetchMostRecentWithRetry(ctx)
		if err != nil {
			return err
		}
		for _, c := range e.collections {
			c.BroadcastLastEventID(mostRecent)
		}
	}

	return e.checkpoint()
}

func (e *Engine) anyPluginHasCursor() bool {
	for _, c := range e.collections {
		if _, ok := c.GetNextUnprocessedEventID(); ok {
			return true
		}
		for _, p := range c.Plugins() {
			if p.Active() {
				if _, has := p.NextUnprocessedID(); has {
					return true
				}
			}
		}
	}
	return false
}

// Run executes the main loop until ctx is cancelled. Each iteration
// reloads, fetches, dispatches, and checkpoints per the engine's bootstrap
// contract.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := e.runOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.cfg.FetchInterval):
		}

		errs := plugin.LoadAll(e.collections, len(e.collections))
		for i, err := range errs {
			if err != nil {
				e.logger.Error("collection reload failed", "path", e.collections[i].Path, "err", err)
			}
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) error {
	cycleID := atomic.AddInt64(&e.cycleID, 1)

	globalNextID, has := e.globalNextID()
	if !has {
		return nil
	}

	e.bus.PublishTyped(activity.CycleStart, activity.CycleStartPayload{
		CycleID:       cycleID,
		GlobalNextID:  globalNextID,
		ActivePlugins: e.countActivePlugins(),
	})
	start := time.Now()

	events, err := e.fetchWithRetry(ctx, globalNextID)
	if err != nil {
		return err
	}

	for _, ev := range events {
		for _, c := range e.collections {
			c.Process(ev)
		}
		if err := e.checkpoint(); err != nil {
			e.logger.Error("state write failed", "err", err)
			e.bus.PublishTyped(activity.StateWriteFailed, activity.StateWriteFailedPayload{Err: err})
		}
	}

	e.bus.PublishTyped(activity.CycleEnd, activity.CycleEndPayload{
		CycleID:       cycleID,
		Duration:      time.Since(start),
		EventsFetched: len(events),
	})
	return nil
}

func (e *Engine) globalNextID() (int64, bool) {
	best, has := int64(0), false
	for _, c := range e.collections {
		id, ok := c.GetNextUnprocessedEventID()
		if !ok {
			continue
		}
		if !has || id < best {
			best, has = id, true
		}
	}
	return best, has
}

func (e *Engine) countActivePlugins() int {
	n := 0
	for _, c := range e.collections {
		for _, p := range c.Plugins() {
			if p.Active() {
				n++
			}
		}
	}
	return n
}

// fetchWithRetry implements the event-source retry policy: protocol,
// response, and socket failures increment an attempt counter; on reaching
// MaxConnRetries the engine logs at ERROR and sleeps ConnRetrySleep before
// resetting and continuing. Retries never advance the cursor.
func (e *Engine) fetchWithRetry(ctx context.Context, sinceID int64) ([]eventsource.Event, error) {
	attempt := 0
	for {
		events, err := e.source.FetchSince(ctx, sinceID)
		if err == nil {
			sortEventsByID(events)
			return events, nil
		}

		if !eventsource.IsTransient(err) {
			return nil, err
		}

		attempt++
		e.bus.PublishTyped(activity.FetchRetry, activity.FetchRetryPayload{Attempt: attempt, Err: err})

		if attempt >= e.cfg.MaxConnRetries {
			e.logger.Error("event source unreachable, backing off", "attempts", attempt, "sleep", e.cfg.ConnRetrySleep, "err", err)
			e.bus.PublishTyped(activity.FetchFailed, activity.FetchFailedPayload{Attempts: attempt, SleptFor: e.cfg.ConnRetrySleep})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.cfg.ConnRetrySleep):
			}
			attempt = 0
			continue
		}

		e.logger.Warn("event source fetch failed, retrying", "attempt", attempt, "err", err)
	}
}

func (e *Engine) fetchMostRecentWithRetry(ctx context.Context) (int64, error) {
	attempt := 0
	for {
		id, err := e.source.MostRecentID(ctx)
		if err == nil {
			return id, nil
		}
		if !eventsource.IsTransient(err) {
			return 0, err
		}

		attempt++
		if attempt >= e.cfg.MaxConnRetries {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(e.cfg.ConnRetrySleep):
			}
			attempt = 0
			continue
		}
	}
}

// checkpoint persists every collection's current state atomically.
func (e *Engine) checkpoint() error {
	snapshot := make(map[string]state.CollectionState, len(e.collections))
	for _, c := range e.collections {
		snapshot[c.Path] = c.GetState()
	}
	return e.store.Save(snapshot)
}

func sortEventsByID(events []eventsource.Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
}
