package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	def := DefaultConfig()

	require.Equal(t, "info", def.Log.Level)
	require.Equal(t, "text", def.Log.Format)
	require.Equal(t, "127.0.0.1", def.Server.Addr)
	require.Equal(t, 8080, def.Server.Port)
	require.True(t, def.Server.APIEnabled)
	require.True(t, def.Server.JobsEnabled)
	require.Equal(t, "reconftw", def.Engine.Binary)
	require.Equal(t, 2, def.Engine.Concurrency)
	require.Equal(t, 5*time.Second, def.Engine.PollInterval)
}

func TestDefaultConfigAsMapMirrorsDefaults(t *testing.T) {
	def := DefaultConfig()
	m := DefaultConfigAsMap()

	require.Equal(t, def.Log.Level, m["log.level"])
	require.Equal(t, def.Server.Port, m["server.port"])
	require.Equal(t, def.Engine.Binary, m["engine.binary"])
	require.Equal(t, def.Engine.PollInterval, m["engine.poll_interval"])
}

func TestLoadPrecedence(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "recontor.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
log:
  level: warn
engine:
  concurrency: 7
  poll_interval: 15s
`), 0o644))

	// File over defaults.
	m := NewManager()
	require.NoError(t, m.Load(nil, configPath))
	cfg := m.Get()
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, 7, cfg.Engine.Concurrency)
	require.Equal(t, 15*time.Second, cfg.Engine.PollInterval)
	// Untouched keys keep their defaults.
	require.Equal(t, "reconftw", cfg.Engine.Binary)

	// Environment over file.
	t.Setenv("RECONTOR_LOG_LEVEL", "error")
	require.NoError(t, m.Load(nil, configPath))
	require.Equal(t, "error", m.Get().Log.Level)

	// Flags over everything.
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Set("log.level", "debug"))
	require.NoError(t, flags.Set("engine.concurrency", "9"))
	require.NoError(t, m.Load(flags, configPath))

	cfg = m.Get()
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 9, cfg.Engine.Concurrency)
}

func TestLoadMissingConfigFile(t *testing.T) {
	m := NewManager()
	err := m.Load(nil, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestGetValue(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, ""))

	require.Equal(t, "reconftw", m.GetValue("engine.binary"))
	require.Nil(t, m.GetValue("engine.nonexistent"))
}

func TestLoadWithCustomSourceOrder(t *testing.T) {
	m := NewManager()

	// Priorities decide the outcome, not slice order.
	require.NoError(t, m.LoadWithSources([]ConfigSource{
		overrideSource{priority: 50, key: "log.format", value: "json"},
		defaultsSource{},
	}))
	require.Equal(t, "json", m.Get().Log.Format)
}

type overrideSource struct {
	priority int
	key      string
	value    any
}

func (s overrideSource) Name() string  { return "override" }
func (s overrideSource) Priority() int { return s.priority }
func (s overrideSource) Load(k *koanf.Koanf) error {
	return k.Set(s.key, s.value)
}
