// Package config loads the db4sphinx configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	// BaseDir is the directory manifest hrefs resolve against; the same
	// value the upstream chunking transform was given as base.dir.
	BaseDir string `yaml:"base_dir"`

	// Assemblies lists the manifest files to resolve, relative to BaseDir
	// unless absolute.
	Assemblies []string `yaml:"assemblies"`

	// Passthrough selects the unknown-element policy: preserve or drop.
	Passthrough string `yaml:"passthrough,omitempty"`

	// Concurrency bounds the parallel per-file build fan-out.
	Concurrency int `yaml:"concurrency,omitempty"`

	// InventoryPath, when set, enables the persistent id inventory.
	InventoryPath string `yaml:"inventory_path,omitempty"`

	Watch  WatchConfig  `yaml:"watch,omitempty"`
	Events EventsConfig `yaml:"events,omitempty"`
}

// WatchConfig configures daemon mode.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
	// Debounce batches rapid file changes into one re-resolution.
	Debounce time.Duration `yaml:"debounce,omitempty"`
	// FullResolveInterval schedules periodic full re-resolutions; zero
	// disables the schedule.
	FullResolveInterval time.Duration `yaml:"full_resolve_interval,omitempty"`
}

// EventsConfig configures the optional NATS run-event publisher.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load reads the configuration file, expanding ${VAR} references from the
// environment (a .env file beside the process is honored when present).
func Load(configPath string) (*Config, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ManifestPaths returns the configured assemblies resolved against
// BaseDir. Absolute entries pass through unchanged.
func (c *Config) ManifestPaths() []string {
	out := make([]string, len(c.Assemblies))
	for i, a := range c.Assemblies {
		if filepath.IsAbs(a) {
			out[i] = a
		} else {
			out[i] = filepath.Join(c.BaseDir, a)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	if c.Passthrough == "" {
		c.Passthrough = "preserve"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 2 * time.Second
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "db4sphinx.runs"
	}
	if c.Events.NATSURL == "" {
		c.Events.NATSURL = "nats://127.0.0.1:4222"
	}
}

func (c *Config) validate() error {
	if c.Passthrough != "preserve" && c.Passthrough != "drop" {
		return fmt.Errorf("invalid passthrough policy %q (want preserve or drop)", c.Passthrough)
	}
	if len(c.Assemblies) == 0 {
		return fmt.Errorf("no assemblies configured")
	}
	return nil
}
