// Package config provides configuration types and defaults for multidispatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/tracing"
)

// Ambiguity policies applied by `multidispatch check`.
const (
	AmbiguityWarn   = "warn"   // Report ambiguities, exit zero
	AmbiguityError  = "error"  // Report ambiguities, exit non-zero
	AmbiguityIgnore = "ignore" // Do not report
)

// Config holds all configuration options for multidispatch.
type Config struct {
	Table     string          `mapstructure:"table"`     // Dispatch table file
	Debug     bool            `mapstructure:"debug"`     // Log to LogPath
	LogPath   string          `mapstructure:"log_path"`  // Default: debug.log
	LogLevel  string          `mapstructure:"log_level"` // debug (default), info, warn or error
	Ambiguity string          `mapstructure:"ambiguity"` // warn (default), error or ignore
	Cache     CacheConfig     `mapstructure:"cache"`
	Store     StoreConfig     `mapstructure:"store"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Flags     map[string]bool `mapstructure:"flags"`
}

// CacheConfig controls the per-registry resolution cache.
type CacheConfig struct {
	// Enabled turns the resolution cache on. Disabled registries scan the
	// ordering on every call.
	Enabled bool `mapstructure:"enabled"`

	// Expiration evicts cached resolutions after the given duration.
	// Zero keeps entries until the registry changes.
	Expiration time.Duration `mapstructure:"expiration"`
}

// StoreConfig holds snapshot persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file.
	// Default: ~/.multidispatch/snapshots.db
	Path string `mapstructure:"path"`
}

// WatchConfig controls `check --watch`.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DefaultStorePath returns ~/.multidispatch/snapshots.db, or an empty
// string if the home directory is unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".multidispatch", "snapshots.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Table:     "dispatch.yaml",
		LogPath:   "debug.log",
		LogLevel:  "debug",
		Ambiguity: AmbiguityWarn,
		Cache: CacheConfig{
			Enabled:    true,
			Expiration: 0,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks every section of cfg.
func Validate(cfg Config) error {
	if err := ValidateAmbiguity(cfg.Ambiguity); err != nil {
		return err
	}
	if err := ValidateCache(cfg.Cache); err != nil {
		return err
	}
	if err := ValidateWatch(cfg.Watch); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateAmbiguity checks the ambiguity policy. Empty uses the default.
func ValidateAmbiguity(policy string) error {
	switch policy {
	case "", AmbiguityWarn, AmbiguityError, AmbiguityIgnore:
		return nil
	default:
		return fmt.Errorf("ambiguity must be %q, %q, or %q, got %q",
			AmbiguityWarn, AmbiguityError, AmbiguityIgnore, policy)
	}
}

// ValidateCache checks cache configuration for errors.
func ValidateCache(cache CacheConfig) error {
	if cache.Expiration < 0 {
		return fmt.Errorf("cache.expiration must not be negative, got %s", cache.Expiration)
	}
	return nil
}

// ValidateWatch checks watcher configuration for errors.
func ValidateWatch(watch WatchConfig) error {
	if watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", watch.Debounce)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}

	if cfg.Exporter != "" {
		switch cfg.Exporter {
		case "none", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"stdout\", or \"otlp\", got %q", cfg.Exporter)
		}
	}

	if cfg.Enabled && cfg.Exporter == "otlp" && cfg.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# multidispatch configuration

# Dispatch table to load (types, operations and their variants)
table: dispatch.yaml

# How 'multidispatch check' treats ambiguous signatures: warn, error, or ignore
ambiguity: warn

# Debug logging (also enabled with --debug)
# debug: false
# log_path: debug.log
# log_level: debug

# Resolution cache
cache:
  enabled: true
  # expiration: 10m   # Evict cached resolutions after this long (0 = until the table changes)

# Snapshot persistence for 'multidispatch store'
# store:
#   path: ~/.multidispatch/snapshots.db

# File watching for 'multidispatch check --watch'
watch:
  debounce: 250ms

# Distributed tracing of resolve and call
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: stdout               # Export backend: none, stdout, otlp (default: stdout)
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Feature flags
# flags:
#   suggest-signatures: true       # Include suggested signatures in ambiguity reports
#   auto-snapshot: false           # Save a snapshot of every operation on check
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
