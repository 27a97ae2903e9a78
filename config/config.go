// Package config loads the daemon's INI configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultConfigPath is used when Load is given an empty path (main passes
// the TRACKERD_CONFIG environment variable, which may be unset).
const DefaultConfigPath = "/etc/shotgunEventDaemon.conf"

// ConfigError wraps a malformed or missing configuration section.
type ConfigError struct {
	Path    string
	Section string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("config %s: section [%s]: %v", e.Path, e.Section, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DaemonConfig is the [daemon] section.
type DaemonConfig struct {
	PidFile        string `ini:"pidFile"`
	EventIDFile    string `ini:"eventIdFile"`
	LogFile        string `ini:"logFile"`
	LogPath        string `ini:"logPath"`
	LogMode        int    `ini:"logMode"`
	Logging        int    `ini:"logging"`
	MaxConnRetries int    `ini:"max_conn_retries"`
	ConnRetrySleep int    `ini:"conn_retry_sleep"`
	FetchInterval  int    `ini:"fetch_interval"`
}

// TrackerConfig is the [shotgun] section: credentials for the event source.
type TrackerConfig struct {
	Server         string `ini:"server"`
	Name           string `ini:"name"`
	Key            string `ini:"key"`
	UseSessionUUID bool   `ini:"use_session_uuid"`
}

// PluginsConfig is the [plugins] section.
type PluginsConfig struct {
	PathsRaw string `ini:"paths"`
}

// Paths splits the comma-separated plugin directory list.
func (p PluginsConfig) Paths() []string {
	var out []string
	for _, s := range strings.Split(p.PathsRaw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EmailsConfig is the [emails] section.
type EmailsConfig struct {
	Server   string `ini:"server"`
	From     string `ini:"from"`
	ToRaw    string `ini:"to"`
	Subject  string `ini:"subject"`
	Username string `ini:"username"`
	Password string `ini:"password"`
}

// To splits the comma-separated recipient list.
func (e EmailsConfig) To() []string {
	var out []string
	for _, s := range strings.Split(e.ToRaw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TelemetryConfig is the [telemetry] section.
type TelemetryConfig struct {
	HeartbeatPath string `ini:"heartbeatPath"`
	OTLPEndpoint  string `ini:"otlpEndpoint"`
	HealthPort    int    `ini:"healthPort"`
}

// Config is the fully parsed configuration file.
type Config struct {
	Daemon    DaemonConfig
	Tracker   TrackerConfig
	Plugins   PluginsConfig
	Emails    EmailsConfig
	Telemetry TelemetryConfig
}

// Level mirrors the configured [daemon] logging integer to a familiar name.
type Level int

const (
	LevelDebug    Level = -4
	LevelInfo     Level = 0
	LevelWarning  Level = 4
	LevelError    Level = 8
	LevelCritical Level = 12
)

// Default returns the configuration's built-in defaults, applied before the
// file is parsed so that omitted keys still have sane values.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			PidFile:        "/var/run/shotgunEventDaemon.pid",
			EventIDFile:    "/var/lib/shotgunEventDaemon/eventIdData.gob",
			LogFile:        "shotgunEventDaemon.log",
			LogMode:        0,
			Logging:        int(LevelInfo),
			MaxConnRetries: 3,
			ConnRetrySleep: 60,
			FetchInterval:  1,
		},
		Telemetry: TelemetryConfig{
			HeartbeatPath: "/var/lib/shotgunEventDaemon/heartbeat.json",
			HealthPort:    0,
		},
	}
}

// Load reads and validates path, merging onto Default(). A missing file is a
// ConfigError — the daemon has no business running on pure built-in defaults
// in production, unlike the ambient logging/telemetry packages it drives.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	cfg := Default()

	file, err := ini.Load(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	if err := file.Section("daemon").MapTo(&cfg.Daemon); err != nil {
		return nil, &ConfigError{Path: path, Section: "daemon", Err: err}
	}
	if err := file.Section("shotgun").MapTo(&cfg.Tracker); err != nil {
		return nil, &ConfigError{Path: path, Section: "shotgun", Err: err}
	}
	if err := file.Section("plugins").MapTo(&cfg.Plugins); err != nil {
		return nil, &ConfigError{Path: path, Section: "plugins", Err: err}
	}
	if err := file.Section("emails").MapTo(&cfg.Emails); err != nil {
		return nil, &ConfigError{Path: path, Section: "emails", Err: err}
	}
	if err := file.Section("telemetry").MapTo(&cfg.Telemetry); err != nil {
		return nil, &ConfigError{Path: path, Section: "telemetry", Err: err}
	}

	if cfg.Tracker.Server == "" {
		return nil, &ConfigError{Path: path, Section: "shotgun", Err: fmt.Errorf("server is required")}
	}
	if len(cfg.Plugins.Paths()) == 0 {
		return nil, &ConfigError{Path: path, Section: "plugins", Err: fmt.Errorf("paths is required")}
	}

	return cfg, nil
}
