package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds storage backend configuration.
type Config struct {
	// WorkspaceRoot is the base directory for all persisted state:
	// scan records, engine output trees, and engine logs.
	WorkspaceRoot string `koanf:"workspace_root"`

	// Retention configures automatic cleanup of old scans.
	Retention RetentionConfig `koanf:"retention"`
}

// RetentionConfig defines scan retention policies.
//
// Retention is enforced by GarbageCollect, which must be invoked
// explicitly (or on a schedule by the server); nothing is deleted
// inline during normal operation.
type RetentionConfig struct {
	// MaxAgeDays deletes scans older than this many days (0 = disabled).
	MaxAgeDays int `koanf:"max_age_days"`

	// MaxScans caps the total number of retained scans; oldest are
	// deleted first (0 = disabled).
	MaxScans int `koanf:"max_scans"`
}

// IsEnabled reports whether any retention policy is active.
func (r RetentionConfig) IsEnabled() bool {
	return r.MaxAgeDays > 0 || r.MaxScans > 0
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace root is required")
	}
	if c.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("retention max_age_days cannot be negative")
	}
	if c.Retention.MaxScans < 0 {
		return fmt.Errorf("retention max_scans cannot be negative")
	}
	return nil
}

// DefaultConfig returns a Config rooted under the user's home directory,
// falling back to the working directory when home cannot be resolved.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		WorkspaceRoot: filepath.Join(home, ".recontor"),
	}, nil
}
