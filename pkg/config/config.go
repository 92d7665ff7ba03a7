// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // protects currentConfig during runtime updates
}

// NewManager creates a new Manager over the global Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
	}
}

// DefaultConfig returns a Config populated with the baseline defaults
// that apply when no other source overrides them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Server: DefaultServerConfig(),
		Engine: DefaultEngineConfig(),
	}
}

// Load loads configuration from the default sources.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--log.level=debug)
//  2. Environment variables (RECONTOR_LOG_LEVEL=debug)
//  3. Config file (YAML)
//  4. Default values
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags))
}

// LoadWithSources loads configuration from the provided sources in
// priority order. Lower priority values load first; higher priority
// sources override them. Custom chains can insert extra sources
// (secrets manager, system config) anywhere in the order.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, src := range sources {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("error loading config from %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfgCopy := m.currentConfig
	return cfgCopy
}

// GetValue retrieves a configuration value by key path.
// Example: GetValue("engine.concurrency"). Returns nil if absent.
func (m *Manager) GetValue(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.Get(key)
}

// DefaultConfigAsMap converts DefaultConfig to the flat key map consumed
// by koanf's confmap provider, so every key is known to the instance.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Server configuration
		"server.addr":          def.Server.Addr,
		"server.port":          def.Server.Port,
		"server.api_enabled":   def.Server.APIEnabled,
		"server.jobs_enabled":  def.Server.JobsEnabled,
		"server.workspace_dir": def.Server.WorkspaceDir,
		"server.read_timeout":  def.Server.ReadTimeout,
		"server.write_timeout": def.Server.WriteTimeout,

		// Engine configuration
		"engine.binary":        def.Engine.Binary,
		"engine.output_root":   def.Engine.OutputRoot,
		"engine.concurrency":   def.Engine.Concurrency,
		"engine.poll_interval": def.Engine.PollInterval,
		"engine.settle_delay":  def.Engine.SettleDelay,
		"engine.stop_grace":    def.Engine.StopGrace,
	}
}

// BindFlags defines command-line flags corresponding to configuration
// settings. Called when setting up the Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()

	flags.String("log.level", def.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", def.Log.Format, "Log format (text, json)")
	flags.String("log.file", def.Log.File, "Path to log file (empty for stderr)")

	flags.String("engine.binary", def.Engine.Binary, "Path to the external scanning engine")
	flags.Int("engine.concurrency", def.Engine.Concurrency, "Maximum simultaneously running scans")
}
