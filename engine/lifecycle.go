package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Lifecycle wraps an Engine with the pid-file-mediated start/stop/restart
// contract described for the daemon as a whole.
type Lifecycle struct {
	*Engine
	PidFile *PidFile

	// ReadyHook, if set, is called with true once Bootstrap succeeds and
	// with false if it fails, so an external readiness probe can be kept in
	// sync with the daemon's own bootstrap state.
	ReadyHook func(ready bool)
}

// NewLifecycle wraps e with pid-file bookkeeping at pidPath.
func NewLifecycle(e *Engine, pidPath string) *Lifecycle {
	return &Lifecycle{Engine: e, PidFile: &PidFile{Path: pidPath}}
}

// Start acquires the pid file (failing if it names a live process other than
// this one; a pid file whose process has exited is overwritten), optionally
// daemonizes into the background, installs TERM/INT handlers for graceful
// shutdown, treats removal of the pid file (checked once a second) the same
// way, then runs the bootstrap sequence and the main loop.
func (l *Lifecycle) Start(ctx context.Context, daemonize bool) error {
	if daemonize && !IsDetachedChild() {
		_, err := Daemonize(l.PidFile)
		return err
	}

	if pid, running := l.PidFile.IsRunning(); running && pid != os.Getpid() {
		return fmt.Errorf("engine: daemon already running as pid %d", pid)
	}
	if err := l.PidFile.Write(os.Getpid()); err != nil {
		return fmt.Errorf("engine: write pid file: %w", err)
	}
	defer l.PidFile.Remove()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sigCh:
				cancel()
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := os.Stat(l.PidFile.Path); os.IsNotExist(err) {
					cancel()
					return
				}
			}
		}
	}()

	if err := l.Bootstrap(runCtx); err != nil {
		l.logger.Error("bootstrap failed", "err", err)
		if l.ReadyHook != nil {
			l.ReadyHook(false)
		}
		return err
	}
	if l.ReadyHook != nil {
		l.ReadyHook(true)
	}

	return l.Run(runCtx)
}

// Foreground is equivalent to Start(ctx, false).
func (l *Lifecycle) Foreground(ctx context.Context) error {
	return l.Start(ctx, false)
}

// Stop signals a running daemon to exit, per StopDaemon's pid-file protocol.
func (l *Lifecycle) Stop(timeout time.Duration) error {
	return StopDaemon(l.PidFile, timeout)
}

// Restart stops any running daemon, then starts a fresh one.
func (l *Lifecycle) Restart(ctx context.Context, daemonize bool, stopTimeout time.Duration) error {
	if err := l.Stop(stopTimeout); err != nil {
		return err
	}
	return l.Start(ctx, daemonize)
}
