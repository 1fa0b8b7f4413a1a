package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ModeRead  = "read"
	ModeWrite = "write"

	DefaultParallel = 5
	MaxParallel     = 20
	DefaultSyncDir  = "docs/backlog"
)

// ErrNotConfigured is returned when connection settings are missing.
var ErrNotConfigured = errors.New("backlog connection is not configured")

// Config represents the complete application configuration. Values are
// layered: defaults, user config, project config, explicit --config file,
// then BACKLOGSYNC_* environment variables.
type Config struct {
	Space      string        `mapstructure:"space"`
	APIKey     string        `mapstructure:"api_key"`
	ProjectKey string        `mapstructure:"project_key"`
	Domain     string        `mapstructure:"domain"`
	BaseURL    string        `mapstructure:"base_url"`
	Mode       string        `mapstructure:"mode"`
	Parallel   int           `mapstructure:"parallel"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SyncDir    string        `mapstructure:"sync_dir"`

	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`

	// ProjectRoot is the directory holding .backlogsync/, resolved at load time.
	ProjectRoot string `mapstructure:"-"`
	// Sources lists the config files merged, lowest precedence first.
	Sources []string `mapstructure:"-"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// Validate checks value ranges. Missing connection settings are reported by
// RequireConnection instead, so local-only commands still work.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNotConfigured
	}
	switch c.Mode {
	case ModeRead, ModeWrite:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeRead, ModeWrite)
	}
	if c.Parallel < 1 || c.Parallel > MaxParallel {
		return fmt.Errorf("invalid parallel %d: must be between 1 and %d", c.Parallel, MaxParallel)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}
	return nil
}

// RequireConnection reports which connection settings are missing.
func (c *Config) RequireConnection() error {
	if c == nil {
		return ErrNotConfigured
	}
	var missing []string
	if strings.TrimSpace(c.Space) == "" && strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "space")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(c.ProjectKey) == "" {
		missing = append(missing, "project_key")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s (run: backlogsync config set --space <space> --api-key <key> --project-key <key>)",
		ErrNotConfigured, strings.Join(missing, ", "))
}

// WriteModeError is returned when a mutating command runs in read mode.
type WriteModeError struct {
	Operation string
}

func (e *WriteModeError) Error() string {
	return fmt.Sprintf("Operation %q requires write mode. Run: backlogsync config set --mode write", e.Operation)
}

// RequireWriteMode guards mutating operations.
func (c *Config) RequireWriteMode(operation string) error {
	if c != nil && c.Mode == ModeWrite {
		return nil
	}
	return &WriteModeError{Operation: operation}
}

// MaskAPIKey hides all but the first and last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
