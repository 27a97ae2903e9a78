package engine

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/eventsource"
	"gitlab.com/vfx-pipeline/trackerd/plugin"
	"gitlab.com/vfx-pipeline/trackerd/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emptyCollection(t *testing.T, name string) *plugin.Collection {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	c := plugin.NewCollection(dir, discardLogger(), activity.NewBus(16))
	if err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestBootstrapWritesStructuredStateOnFreshInstall(t *testing.T) {
	dir := t.TempDir()
	store := state.New(filepath.Join(dir, "eventLastId.txt"))

	source := eventsource.NewFakeClient()
	source.Seed(eventsource.Event{ID: 500})

	c := emptyCollection(t, "collectionA")
	e := New(Config{}, source, []*plugin.Collection{c}, store, discardLogger(), activity.NewBus(16))

	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	result, err := store.Load()
	if err != nil {
		t.Fatalf("Load state: %v", err)
	}
	if result.Legacy {
		t.Fatal("bootstrap must write the structured form")
	}
	if _, ok := result.Collections[c.Path]; !ok {
		t.Fatalf("state has no entry for collection %s", c.Path)
	}
}

func TestBootstrapAcceptsLegacyStateFile(t *testing.T) {
	dir := t.TempDir()
	store := state.New(filepath.Join(dir, "eventLastId.txt"))

	if err := writeLegacyFixture(store.Path, 777); err != nil {
		t.Fatalf("write legacy fixture: %v", err)
	}

	source := eventsource.NewFakeClient()
	c := emptyCollection(t, "collectionA")
	e := New(Config{}, source, []*plugin.Collection{c}, store, discardLogger(), activity.NewBus(16))

	if err := e.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	// No plugins exist in this empty collection to assert a cursor on: the
	// legacy id reaches no plugin, so bootstrap falls through to the
	// most-recent-id query, which the empty fake answers with 0. Reaching
	// here without error is the assertion.
}

func TestGlobalNextIDWithNoCollectionsReportsNone(t *testing.T) {
	dir := t.TempDir()
	store := state.New(filepath.Join(dir, "eventLastId.txt"))
	source := eventsource.NewFakeClient()

	e := New(Config{}, source, nil, store, discardLogger(), activity.NewBus(16))
	if _, has := e.globalNextID(); has {
		t.Fatal("globalNextID on zero collections must report false")
	}
}

func TestRunOnceWithoutActivePluginsIsNoop(t *testing.T) {
	dir := t.TempDir()
	store := state.New(filepath.Join(dir, "eventLastId.txt"))

	source := eventsource.NewFakeClient()
	source.Seed(eventsource.Event{ID: 1}, eventsource.Event{ID: 2})

	c := emptyCollection(t, "collectionA")
	bus := activity.NewBus(16)
	e := New(Config{FetchInterval: time.Millisecond}, source, []*plugin.Collection{c}, store, discardLogger(), bus)

	// No cursor is seeded: an empty collection has no active plugins, so
	// globalNextID reports none and runOnce must simply no-op cleanly.
	if err := e.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
}

func writeLegacyFixture(path string, id int64) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(id); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
