// Package config loads presentd configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "presentd"

// Config holds all application configuration.
type Config struct {
	DataDir           string        `envconfig:"DATA_DIR"`
	HostAppID         string        `envconfig:"HOST_APP_ID" default:"presentd"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"30s"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`

	Monitor MonitorConfig `envconfig:"MONITOR"`
	Sync    SyncConfig    `envconfig:"SYNC"`
	Reset   ResetConfig   `envconfig:"RESET"`
	Log     LogConfig     `envconfig:"LOG"`
	Metrics MetricsConfig `envconfig:"METRICS"`
}

// MonitorConfig holds foreground polling configuration.
type MonitorConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	Debounce     time.Duration `envconfig:"DEBOUNCE" default:"2s"`
}

// SyncConfig holds remote sync configuration.
type SyncConfig struct {
	ConvexURL string        `envconfig:"CONVEX_URL"`
	Interval  time.Duration `envconfig:"INTERVAL" default:"15m"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"20s"`
	RateLimit float64       `envconfig:"RATE_LIMIT" default:"5"`
}

// ResetConfig holds daily reset configuration.
type ResetConfig struct {
	GrantWeekday string        `envconfig:"GRANT_WEEKDAY" default:"monday"`
	Grace        time.Duration `envconfig:"GRACE" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
}

// MetricsConfig holds the metrics endpoint configuration.
// An empty address disables the endpoint.
type MetricsConfig struct {
	Addr string `envconfig:"ADDR"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		HostAppID:         "presentd",
		ReconcileInterval: 30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		Monitor: MonitorConfig{
			PollInterval: time.Second,
			Debounce:     2 * time.Second,
		},
		Sync: SyncConfig{
			Interval:  15 * time.Minute,
			Timeout:   20 * time.Second,
			RateLimit: 5,
		},
		Reset: ResetConfig{
			GrantWeekday: "monday",
			Grace:        30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor poll interval must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Sync.Interval <= 0 || c.Sync.Timeout <= 0 {
		return fmt.Errorf("sync interval and timeout must be positive")
	}
	if c.ReconcileInterval <= 0 || c.HeartbeatInterval <= 0 {
		return fmt.Errorf("reconcile and heartbeat intervals must be positive")
	}
	if _, err := ParseWeekday(c.Reset.GrantWeekday); err != nil {
		return err
	}
	return nil
}

// GrantWeekday returns the parsed freeze grant day.
func (c *Config) GrantWeekday() time.Weekday {
	day, err := ParseWeekday(c.Reset.GrantWeekday)
	if err != nil {
		return time.Monday
	}
	return day
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday: %q", s)
}
