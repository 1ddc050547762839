// Package config loads tplsync settings with Viper from .tplsync.yml,
// TPLSYNC_ environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/modules"
	"github.com/conneroisu/tplsync/internal/patterns"
)

// Viper keys shared with the command flags.
const (
	KeySourceDir        = "source.dir"
	KeySourceLegacy     = "source.legacy"
	KeySourceOmit       = "source.omit"
	KeySourceIgnoreConf = "source.ignore_conf"
	KeySourcePrecedence = "source.precedence"
	KeyBuildDir         = "build.dir"
	KeyBuildNoClean     = "build.no_clean"
	KeyWatchEnabled     = "watch.enabled"
	KeyReloadAddr       = "reload.addr"
	KeyReloadOrigins    = "reload.allowed_origins"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
)

// Keys returns every configuration key.
func Keys() []string {
	return []string{
		KeySourceDir, KeySourceLegacy, KeySourceOmit, KeySourceIgnoreConf, KeySourcePrecedence,
		KeyBuildDir, KeyBuildNoClean,
		KeyWatchEnabled,
		KeyReloadAddr, KeyReloadOrigins,
		KeyLogLevel, KeyLogFormat,
	}
}

type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Build  BuildConfig  `yaml:"build" mapstructure:"build"`
	Watch  WatchConfig  `yaml:"watch" mapstructure:"watch"`
	Reload ReloadConfig `yaml:"reload" mapstructure:"reload"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

type SourceConfig struct {
	Dir        string   `yaml:"dir" mapstructure:"dir"`
	Legacy     bool     `yaml:"legacy" mapstructure:"legacy"`
	Omit       []string `yaml:"omit" mapstructure:"omit"`
	IgnoreConf bool     `yaml:"ignore_conf" mapstructure:"ignore_conf"`
	Precedence string   `yaml:"precedence" mapstructure:"precedence"`
}

type BuildConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	NoClean bool   `yaml:"no_clean" mapstructure:"no_clean"`
}

type WatchConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

type ReloadConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Defaults for unset keys.
var (
	DefaultSourceDir      = "."
	DefaultBuildDir       = "build"
	DefaultAllowedOrigins = []string{"localhost:*", "127.0.0.1:*"}
)

// EnvKeyReplacer maps nested keys to environment names: build.dir is
// TPLSYNC_BUILD_DIR.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Workaround for viper slice handling when values come from flags or env.
	if viper.IsSet(KeySourceOmit) {
		config.Source.Omit = viper.GetStringSlice(KeySourceOmit)
	}
	if viper.IsSet(KeyReloadOrigins) {
		config.Reload.AllowedOrigins = viper.GetStringSlice(KeyReloadOrigins)
	}

	if config.Source.Dir == "" {
		config.Source.Dir = DefaultSourceDir
	}
	if config.Build.Dir == "" {
		config.Build.Dir = DefaultBuildDir
	}
	if config.Source.Precedence == "" {
		config.Source.Precedence = modules.LastWins.String()
	}
	if len(config.Reload.AllowedOrigins) == 0 {
		config.Reload.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Flags returns the pattern selection flags.
func (c *Config) Flags() patterns.Flags {
	return patterns.Flags{
		Legacy:     c.Source.Legacy,
		IgnoreConf: c.Source.IgnoreConf,
		Omit:       append([]string(nil), c.Source.Omit...),
	}
}

// Precedence returns the module shadowing rule. Load has validated it.
func (c *Config) Precedence() modules.Precedence {
	p, _ := modules.ParsePrecedence(c.Source.Precedence)
	return p
}

// Logger returns the logger configuration. Load has validated the level.
func (c *Config) Logger() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}
