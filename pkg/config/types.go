package config

import "time"

// Config is the root application configuration.
type Config struct {
	Log    LogConfig    `koanf:"log"`
	Server ServerConfig `koanf:"server"`
	Engine EngineConfig `koanf:"engine"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "text" (console writer) or "json".
	Format string `koanf:"format"`

	// File, when set, sends log output to a rotated file instead of stderr.
	File string `koanf:"file"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	Port         int           `koanf:"port"`
	APIEnabled   bool          `koanf:"api_enabled"`
	JobsEnabled  bool          `koanf:"jobs_enabled"`
	WorkspaceDir string        `koanf:"workspace_dir"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// EngineConfig locates and bounds the external scanning engine.
type EngineConfig struct {
	// Binary is the path to the external engine executable.
	Binary string `koanf:"binary"`

	// OutputRoot is the base path for per-scan output trees and logs.
	// Empty means "<workspace>/scans".
	OutputRoot string `koanf:"output_root"`

	// Concurrency is the ceiling on simultaneously running scans.
	Concurrency int `koanf:"concurrency"`

	// PollInterval is the dispatcher queue poll tick.
	PollInterval time.Duration `koanf:"poll_interval"`

	// SettleDelay is the pause between engine exit and result extraction.
	SettleDelay time.Duration `koanf:"settle_delay"`

	// StopGrace is how long a signaled engine gets before a force kill.
	StopGrace time.Duration `koanf:"stop_grace"`
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "127.0.0.1",
		Port:         8080,
		APIEnabled:   true,
		JobsEnabled:  true,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Binary:       "reconftw",
		Concurrency:  2,
		PollInterval: 5 * time.Second,
		SettleDelay:  2 * time.Second,
		StopGrace:    5 * time.Second,
	}
}
