// Command trackerd polls a project-tracking service's event log and
// dispatches new events to hot-reloadable, out-of-process plugins.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/vfx-pipeline/trackerd/activity"
	"gitlab.com/vfx-pipeline/trackerd/config"
	"gitlab.com/vfx-pipeline/trackerd/engine"
	"gitlab.com/vfx-pipeline/trackerd/eventsource"
	"gitlab.com/vfx-pipeline/trackerd/logging"
	"gitlab.com/vfx-pipeline/trackerd/plugin"
	"gitlab.com/vfx-pipeline/trackerd/state"
	"gitlab.com/vfx-pipeline/trackerd/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	verb := os.Args[1]
	switch verb {
	case "start", "foreground", "stop", "restart":
	default:
		usage()
		os.Exit(2)
	}

	cfgPath := os.Getenv("TRACKERD_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "trackerd:", err)
		os.Exit(1)
	}

	registry, err := logging.Build(logging.Options{
		FilePath:   filepath.Join(cfg.Daemon.LogPath, cfg.Daemon.LogFile),
		MaxBackups: 10,
		Level:      toSlogLevel(config.Level(cfg.Daemon.Logging)),
		Mail: logging.MailConfig{
			Server:   cfg.Emails.Server,
			From:     cfg.Emails.From,
			To:       cfg.Emails.To(),
			Subject:  cfg.Emails.Subject,
			Username: cfg.Emails.Username,
			Password: cfg.Emails.Password,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "trackerd: build logging:", err)
		os.Exit(1)
	}
	engineLogger := registry.Engine()

	provider := telemetry.NewProvider(telemetry.FromConfig(&cfg.Telemetry), engineLogger)
	defer provider.Shutdown()

	bus := activity.NewBus(256)
	bus.Subscribe("log", activity.NewLogSubscriber(engineLogger).Handle)
	bus.Subscribe("telemetry", provider.HandleActivity)
	if cfg.Telemetry.HeartbeatPath != "" {
		bus.Subscribe("heartbeat", activity.NewHeartbeatWriter(cfg.Telemetry.HeartbeatPath).Handle)
	}
	defer bus.Close()

	source := eventsource.NewHTTPClient(cfg.Tracker.Server, cfg.Tracker.Name, cfg.Tracker.Key, 500)
	store := state.New(cfg.Daemon.EventIDFile)

	var collections []*plugin.Collection
	for _, path := range cfg.Plugins.Paths() {
		collections = append(collections, plugin.NewCollection(path, registry.Collection(path), bus))
	}

	eng := engine.New(engine.Config{
		FetchInterval:  time.Duration(cfg.Daemon.FetchInterval) * time.Second,
		MaxConnRetries: cfg.Daemon.MaxConnRetries,
		ConnRetrySleep: time.Duration(cfg.Daemon.ConnRetrySleep) * time.Second,
	}, source, collections, store, engineLogger, bus)

	lifecycle := engine.NewLifecycle(eng, cfg.Daemon.PidFile)
	lifecycle.ReadyHook = provider.SetReady

	ctx := context.Background()
	switch verb {
	case "start":
		err = lifecycle.Start(ctx, true)
	case "foreground":
		err = lifecycle.Foreground(ctx)
	case "stop":
		err = lifecycle.Stop(30 * time.Second)
	case "restart":
		err = lifecycle.Restart(ctx, true, 30*time.Second)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		engineLogger.Error("command failed", "verb", verb, "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: trackerd <start|stop|restart|foreground>")
}

func toSlogLevel(l config.Level) slog.Level {
	return slog.Level(l)
}
