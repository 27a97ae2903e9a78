package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer provides /healthz and /readyz endpoints on localhost so an
// operator or a process supervisor can distinguish "daemon running" from
// "daemon has finished bootstrapping and is dispatching events".
type HealthServer struct {
	port   int
	logger *slog.Logger
	server *http.Server
	ready  atomic.Bool
}

// NewHealthServer creates a new health server. It reports not-ready until
// SetReady(true) is called, since /readyz exists precisely to be checked
// before bootstrap completes.
func NewHealthServer(port int, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		port:   port,
		logger: logger,
	}
}

// Start begins serving health endpoints. Call from a goroutine.
func (h *HealthServer) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if h.ready.Load() {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ready")
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "not ready")
		}
	})

	h.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", h.port),
		Handler: mux,
	}

	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		h.logger.Warn("health server failed to start", "error", err)
		return
	}

	if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		h.logger.Warn("health server error", "error", err)
	}
}

// Stop gracefully shuts down the health server.
func (h *HealthServer) Stop() {
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.server.Shutdown(ctx)
	}
}

// SetReady sets the readiness state.
func (h *HealthServer) SetReady(ready bool) {
	h.ready.Store(ready)
}
