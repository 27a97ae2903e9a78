// Package state persists the per-plugin cursor and backlog across restarts.
package state

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PluginState is one plugin's durable cursor: the highest event id fully
// processed, and the set of lower ids skipped over and still awaiting late
// arrival, each with an absolute expiry.
type PluginState struct {
	LastEventID int64
	HasLast     bool
	Backlog     map[int64]time.Time
}

// CollectionState maps plugin name to its PluginState within one collection.
type CollectionState map[string]PluginState

// document is the structured form written to disk: collection path to
// CollectionState. Gob-encoded so the legacy-fallback reader can cheaply
// distinguish "a bare encoded integer" (form a, pre-backlog daemons) from
// "an encoded map" (form b) without sniffing text syntax.
type document struct {
	Collections map[string]CollectionState
}

// LoadResult reports what the store actually found on disk.
type LoadResult struct {
	// Collections holds the per-collection state when the file was in the
	// structured form (b).
	Collections map[string]CollectionState

	// LegacyLastEventID and Legacy are set when the file held the bare
	// integer form (a): a single last-processed id with no backlog, no
	// per-collection breakdown. Callers broadcast this id to every plugin
	// in every collection as their initial lastEventId.
	Legacy            bool
	LegacyLastEventID int64
}

// Store reads and writes the durable state file at Path using an atomic
// temp-file-then-rename discipline, matching the write pattern used
// elsewhere in this codebase for the heartbeat file.
type Store struct {
	Path string
}

// New returns a Store backed by path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads the state file. A missing file is reported via os.IsNotExist
// on the returned error so callers can tell "fresh install" from a genuine
// read failure.
func (s *Store) Load() (LoadResult, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return LoadResult{}, err
	}
	return decode(data)
}

func decode(data []byte) (LoadResult, error) {
	var doc document
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&doc); err == nil {
		return LoadResult{Collections: doc.Collections}, nil
	}

	// Structured decode failed; this may be a legacy file containing a
	// single bare integer (the pre-backlog daemon's entire state format).
	var legacy int64
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&legacy); err == nil {
		return LoadResult{Legacy: true, LegacyLastEventID: legacy}, nil
	}

	return LoadResult{}, fmt.Errorf("state: unrecognized file format at %s", "state file")
}

// Save atomically rewrites the whole state file with the given per-collection
// snapshot. Always emits the structured form (b); legacy form (a) is
// read-only, never written.
func (s *Store) Save(collections map[string]CollectionState) error {
	doc := document{Collections: collections}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("state: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("state: rename into place: %w", err)
	}
	return nil
}

// IsNotExist reports whether err indicates the state file has never been
// written (fresh-install bootstrap path).
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
