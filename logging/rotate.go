package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingFileHandler wraps a slog.Handler, rotating the underlying file at
// local midnight and retaining up to maxBackups prior files
// (<path>.1 .. <path>.<maxBackups>, oldest deleted).
//
// Follows the same wrap-an-inner-handler shape as a tracing handler: all
// slog.Handler methods delegate to an inner handler built fresh around the
// current file, swapped out under a mutex when the day rolls over.
type RotatingFileHandler struct {
	mu         sync.Mutex
	path       string
	maxBackups int
	opts       *slog.HandlerOptions
	file       *os.File
	inner      slog.Handler
	day        int
}

// NewRotatingFileHandler opens path (creating parent directories) and
// returns a handler that rotates it daily.
func NewRotatingFileHandler(path string, maxBackups int, opts *slog.HandlerOptions) (*RotatingFileHandler, error) {
	if maxBackups <= 0 {
		maxBackups = 10
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	h := &RotatingFileHandler{path: path, maxBackups: maxBackups, opts: opts}
	if err := h.openLocked(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *RotatingFileHandler) openLocked() error {
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if h.file != nil {
		h.file.Close()
	}
	h.file = f
	h.inner = slog.NewTextHandler(f, h.opts)
	h.day = time.Now().Day()
	return nil
}

func (h *RotatingFileHandler) rotateIfNeeded() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Now().Day() == h.day {
		return nil
	}

	if h.file != nil {
		h.file.Close()
	}

	for i := h.maxBackups - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", h.path, i)
		dst := fmt.Sprintf("%s.%d", h.path, i+1)
		if i+1 > h.maxBackups {
			os.Remove(src)
			continue
		}
		os.Rename(src, dst)
	}
	os.Rename(h.path, h.path+".1")

	return h.openLocked()
}

// Enabled reports whether the current inner handler is enabled at level.
func (h *RotatingFileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	h.mu.Lock()
	inner := h.inner
	h.mu.Unlock()
	return inner.Enabled(ctx, level)
}

// Handle rotates the file if the day has rolled over, then delegates.
func (h *RotatingFileHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.rotateIfNeeded(); err != nil {
		return err
	}
	h.mu.Lock()
	inner := h.inner
	h.mu.Unlock()
	return inner.Handle(ctx, record)
}

// WithAttrs delegates to the inner handler.
func (h *RotatingFileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &wrappedHandler{h.inner.WithAttrs(attrs)}
}

// WithGroup delegates to the inner handler.
func (h *RotatingFileHandler) WithGroup(name string) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &wrappedHandler{h.inner.WithGroup(name)}
}

// wrappedHandler is a thin passthrough used once WithAttrs/WithGroup have
// fixed a derived handler; it no longer needs to track rotation itself
// because slog re-derives from the root logger on every log call site, not
// from the retained derived handler.
type wrappedHandler struct {
	slog.Handler
}
