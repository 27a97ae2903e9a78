package state

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "eventLastId.txt"))

	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	want := map[string]CollectionState{
		"/plugins/a": {
			"logArgs": {LastEventID: 42, HasLast: true, Backlog: map[int64]time.Time{40: expiry}},
		},
		"/plugins/b": {
			"calculateCutDuration": {LastEventID: 0, HasLast: false, Backlog: map[int64]time.Time{}},
		},
	}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Legacy {
		t.Fatalf("Load reported Legacy=true for a freshly written structured file")
	}

	pa := got.Collections["/plugins/a"]["logArgs"]
	if !pa.HasLast || pa.LastEventID != 42 {
		t.Errorf("plugin a state = %+v, want LastEventID=42", pa)
	}
	if exp, ok := pa.Backlog[40]; !ok || !exp.Equal(expiry) {
		t.Errorf("plugin a backlog[40] = %v, want %v", exp, expiry)
	}
}

func TestLoadMissingFileReturnsNotExist(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "does-not-exist.txt"))

	_, err := s.Load()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !IsNotExist(err) {
		t.Errorf("IsNotExist(err) = false, want true for %v", err)
	}
}

func TestLoadLegacyBareIntegerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eventLastId.txt")
	s := New(path)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(int64(9001)); err != nil {
		t.Fatalf("encode legacy fixture: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write legacy fixture: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Legacy {
		t.Fatal("expected Legacy=true for bare-integer fixture")
	}
	if got.LegacyLastEventID != 9001 {
		t.Errorf("LegacyLastEventID = %d, want 9001", got.LegacyLastEventID)
	}
}

func TestSaveAlwaysEmitsStructuredForm(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "eventLastId.txt"))

	if err := s.Save(map[string]CollectionState{}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Legacy {
		t.Fatal("Save must never produce a file that decodes as legacy")
	}
}
