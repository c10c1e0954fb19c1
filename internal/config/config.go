// Package config loads loomwork's configuration: defaults, then a TOML
// file, then environment variables, each layer overriding the last.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the loomwork CLI and REPL.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Log      LogConfig      `toml:"log"`
	Snapshot SnapshotConfig `toml:"snapshot"`
}

// StoreConfig controls the in-memory content-addressed store.
type StoreConfig struct {
	// RootQuestion seeds a new session when none is loaded from a
	// snapshot. Empty means the caller must supply one explicitly.
	RootQuestion string `toml:"root_question"`
}

// LogConfig sets the level of the zap logger the CLI builds at startup.
// The store and scheduler the CLI creates are constructed with a nil
// logger, which they replace with a no-op one, so they do not log at any
// level.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// SnapshotConfig controls where session state is persisted between runs.
type SnapshotConfig struct {
	// Path is the YAML file snapshots are saved to and loaded from.
	Path string `toml:"path"`
}

// Load builds a Config by layering a TOML file and environment variables
// on top of defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath (from --config)
//  2. LOOMWORK_CONFIG environment variable
//  3. ./loomwork.toml (current directory)
//  4. ~/.config/loomwork/loomwork.toml (XDG-style)
//
// All fields are optional in the config file; environment variables
// always override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{},
		Log: LogConfig{
			Level: "info",
		},
		Snapshot: SnapshotConfig{
			Path: "loomwork.snapshot.yaml",
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("LOOMWORK_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("loomwork.toml"); err == nil {
		return "loomwork.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/loomwork/loomwork.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("LOOMWORK_ROOT_QUESTION", &c.Store.RootQuestion)
	envOverride("LOOMWORK_LOG_LEVEL", &c.Log.Level)
	envOverride("LOOMWORK_SNAPSHOT_PATH", &c.Snapshot.Path)
}

// Validate checks that field values are ones the rest of the system
// knows how to act on.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot path must not be empty")
	}
	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
