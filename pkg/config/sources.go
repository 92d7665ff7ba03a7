package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigSource is one provider in the loading chain. Sources are loaded
// in ascending Priority order; later sources override earlier values.
type ConfigSource interface {
	Name() string
	Priority() int
	Load(k *koanf.Koanf) error
}

// DefaultSources returns the standard source chain:
//
//	defaults (0) < config file (10) < environment (20) < flags (30)
//
// Environment variables use the RECONTOR_ prefix with underscore-to-dot
// mapping: RECONTOR_LOG_LEVEL -> log.level.
func DefaultSources(configFilePath string, flags *pflag.FlagSet) []ConfigSource {
	sources := []ConfigSource{
		defaultsSource{},
		fileSource{path: configFilePath},
		envSource{},
	}
	if flags != nil {
		sources = append(sources, flagSource{flags: flags})
	}
	return sources
}

type defaultsSource struct{}

func (defaultsSource) Name() string  { return "defaults" }
func (defaultsSource) Priority() int { return 0 }
func (defaultsSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

type fileSource struct {
	path string
}

func (s fileSource) Name() string  { return "file:" + s.path }
func (s fileSource) Priority() int { return 10 }
func (s fileSource) Load(k *koanf.Koanf) error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("config file %s does not exist", s.path)
	}
	return k.Load(file.Provider(s.path), yaml.Parser())
}

type envSource struct{}

func (envSource) Name() string  { return "env" }
func (envSource) Priority() int { return 20 }
func (envSource) Load(k *koanf.Koanf) error {
	return k.Load(env.Provider("RECONTOR_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "RECONTOR_")), "_", ".")
	}), nil)
}

type flagSource struct {
	flags *pflag.FlagSet
}

func (flagSource) Name() string  { return "flags" }
func (flagSource) Priority() int { return 30 }
func (s flagSource) Load(k *koanf.Koanf) error {
	return k.Load(posflag.Provider(s.flags, ".", k), nil)
}
