package state

import (
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var collectionPathGen = rapid.StringMatching(`/plugins/[a-z]{1,8}`)
var pluginNameGen = rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9]{0,12}`)

func pluginStateGen() *rapid.Generator[PluginState] {
	return rapid.Custom(func(t *rapid.T) PluginState {
		hasLast := rapid.Bool().Draw(t, "hasLast")
		lastID := int64(0)
		if hasLast {
			lastID = rapid.Int64Range(0, 1_000_000).Draw(t, "lastEventID")
		}

		n := rapid.IntRange(0, 4).Draw(t, "backlogSize")
		backlog := make(map[int64]time.Time, n)
		for i := 0; i < n; i++ {
			id := rapid.Int64Range(0, 1_000_000).Draw(t, "backlogID")
			offset := rapid.IntRange(-3600, 3600).Draw(t, "expiryOffsetSeconds")
			backlog[id] = time.Unix(int64(offset), 0).UTC()
		}

		return PluginState{LastEventID: lastID, HasLast: hasLast, Backlog: backlog}
	})
}

func collectionsGen() *rapid.Generator[map[string]CollectionState] {
	return rapid.Custom(func(t *rapid.T) map[string]CollectionState {
		numCollections := rapid.IntRange(0, 3).Draw(t, "numCollections")
		out := make(map[string]CollectionState, numCollections)
		for i := 0; i < numCollections; i++ {
			path := collectionPathGen.Draw(t, "collectionPath")
			numPlugins := rapid.IntRange(0, 3).Draw(t, "numPlugins")
			cs := make(CollectionState, numPlugins)
			for j := 0; j < numPlugins; j++ {
				name := pluginNameGen.Draw(t, "pluginName")
				cs[name] = pluginStateGen().Draw(t, "pluginState")
			}
			out[path] = cs
		}
		return out
	})
}

// TestRoundTripProperty checks the invariant that state written by the
// engine and re-read on restart reconstructs every plugin's
// (lastEventId, backlog) exactly, for arbitrary collection/plugin layouts.
func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dir := t.TempDir()
		s := New(filepath.Join(dir, "eventLastId.txt"))

		want := collectionsGen().Draw(t, "collections")

		if err := s.Save(want); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got.Legacy {
			t.Fatalf("Load reported Legacy=true for a structured write")
		}

		if len(got.Collections) != len(want) {
			t.Fatalf("collection count = %d, want %d", len(got.Collections), len(want))
		}
		for path, wantCS := range want {
			gotCS, ok := got.Collections[path]
			if !ok {
				t.Fatalf("missing collection %q after round-trip", path)
			}
			if len(gotCS) != len(wantCS) {
				t.Fatalf("collection %q: plugin count = %d, want %d", path, len(gotCS), len(wantCS))
			}
			for name, wantPS := range wantCS {
				gotPS, ok := gotCS[name]
				if !ok {
					t.Fatalf("collection %q: missing plugin %q after round-trip", path, name)
				}
				if gotPS.HasLast != wantPS.HasLast || gotPS.LastEventID != wantPS.LastEventID {
					t.Fatalf("collection %q plugin %q: cursor = %+v, want %+v", path, name, gotPS, wantPS)
				}
				if len(gotPS.Backlog) != len(wantPS.Backlog) {
					t.Fatalf("collection %q plugin %q: backlog size = %d, want %d", path, name, len(gotPS.Backlog), len(wantPS.Backlog))
				}
				for id, wantExpiry := range wantPS.Backlog {
					gotExpiry, ok := gotPS.Backlog[id]
					if !ok || !gotExpiry.Equal(wantExpiry) {
						t.Fatalf("collection %q plugin %q backlog[%d] = %v, want %v", path, name, id, gotExpiry, wantExpiry)
					}
				}
			}
		}
	})
}
