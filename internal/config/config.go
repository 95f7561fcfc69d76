// Package config loads the icdrive configuration with the usual layering:
// built-in defaults, then the TOML config file, then ICDRIVE_* environment
// variables, then CLI flags (applied by the command layer, which always wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the effective icdrive configuration.
type Config struct {
	// ChunkSize bounds in-flight per-file downloads per chunk.
	ChunkSize int `toml:"chunk_size"`
	// CachePath is the persisted entity-store snapshot location.
	CachePath string `toml:"cache_path"`
	// SessionPath is the session file written by the sign-in flow.
	SessionPath string `toml:"session_path"`
	// NoCache starts every invocation from an empty store and discards it.
	NoCache bool `toml:"no_cache"`
	// RestoreMtime resets downloaded files' mtimes to the remote's.
	RestoreMtime bool `toml:"restore_mtime"`
	// LogLevel is debug, info, warn, or error.
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChunkSize:    5,
		CachePath:    filepath.Join(stateDir(), "cache.json"),
		SessionPath:  filepath.Join(stateDir(), "session.json"),
		RestoreMtime: true,
		LogLevel:     "info",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// Load reads the config file at path (or the default location when path is
// empty) over the defaults, then applies environment overrides. A missing
// file is not an error unless the user named it explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	meta, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("config %q: unknown key %q", path, undecoded[0].String())
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	default:
		return Config{}, fmt.Errorf("loading config %q: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.ChunkSize < 1 {
		return Config{}, fmt.Errorf("config: chunk_size must be at least 1, got %d", cfg.ChunkSize)
	}

	return cfg, nil
}

// applyEnv overrides config fields from ICDRIVE_* environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("ICDRIVE_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ICDRIVE_CHUNK_SIZE %q: %w", v, err)
		}

		cfg.ChunkSize = n
	}

	if v := os.Getenv("ICDRIVE_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}

	if v := os.Getenv("ICDRIVE_SESSION_PATH"); v != "" {
		cfg.SessionPath = v
	}

	if v := os.Getenv("ICDRIVE_NO_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ICDRIVE_NO_CACHE %q: %w", v, err)
		}

		cfg.NoCache = b
	}

	if v := os.Getenv("ICDRIVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return nil
}

// configDir is ~/.config/icdrive, honoring XDG_CONFIG_HOME.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "icdrive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "icdrive"
	}

	return filepath.Join(home, ".config", "icdrive")
}

// stateDir is ~/.local/state/icdrive, honoring XDG_STATE_HOME.
func stateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "icdrive")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "icdrive"
	}

	return filepath.Join(home, ".local", "state", "icdrive")
}
