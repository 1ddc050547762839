package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/modules"
	"github.com/conneroisu/tplsync/internal/patterns"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, c *Config)
	}{
		{
			name:  "defaults",
			setup: func() {},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, ".", c.Source.Dir)
				assert.Equal(t, "build", c.Build.Dir)
				assert.Equal(t, "last", c.Source.Precedence)
				assert.Equal(t, []string{"localhost:*", "127.0.0.1:*"}, c.Reload.AllowedOrigins)
				assert.Equal(t, "info", c.Log.Level)
				assert.Equal(t, "text", c.Log.Format)
				assert.False(t, c.Watch.Enabled)
				assert.Equal(t, patterns.Flags{}, c.Flags())
			},
		},
		{
			name: "values from viper",
			setup: func() {
				viper.Set(KeySourceDir, "template")
				viper.Set(KeyBuildDir, "out")
				viper.Set(KeyBuildNoClean, true)
				viper.Set(KeySourceLegacy, true)
				viper.Set(KeySourceOmit, []string{"pages", "conf"})
				viper.Set(KeySourcePrecedence, "first")
				viper.Set(KeyWatchEnabled, true)
				viper.Set(KeyReloadAddr, ":35729")
				viper.Set(KeyLogLevel, "debug")
				viper.Set(KeyLogFormat, "json")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "template", c.Source.Dir)
				assert.Equal(t, "out", c.Build.Dir)
				assert.True(t, c.Build.NoClean)
				assert.True(t, c.Watch.Enabled)
				assert.Equal(t, ":35729", c.Reload.Addr)
				assert.Equal(t, patterns.Flags{Legacy: true, Omit: []string{"pages", "conf"}}, c.Flags())
				assert.Equal(t, modules.FirstWins, c.Precedence())
				assert.Equal(t, logging.LevelDebug, c.Logger().Level)
				assert.Equal(t, "json", c.Logger().Format)
			},
		},
		{
			name:        "unknown omitted category",
			setup:       func() { viper.Set(KeySourceOmit, []string{"pictures"}) },
			expectError: true,
		},
		{
			name:        "unknown precedence",
			setup:       func() { viper.Set(KeySourcePrecedence, "middle") },
			expectError: true,
		},
		{
			name:        "build dir traversal",
			setup:       func() { viper.Set(KeyBuildDir, "../../etc") },
			expectError: true,
		},
		{
			name:        "build dir equals source dir",
			setup:       func() { viper.Set(KeyBuildDir, ".") },
			expectError: true,
		},
		{
			name:        "dangerous build dir",
			setup:       func() { viper.Set(KeyBuildDir, "out;rm -rf") },
			expectError: true,
		},
		{
			name:        "bad reload address",
			setup:       func() { viper.Set(KeyReloadAddr, "35729") },
			expectError: true,
		},
		{
			name:        "bad log level",
			setup:       func() { viper.Set(KeyLogLevel, "loud") },
			expectError: true,
		},
		{
			name:        "bad log format",
			setup:       func() { viper.Set(KeyLogFormat, "xml") },
			expectError: true,
		},
		{
			name:        "unmarshal failure",
			setup:       func() { viper.Set(KeyBuildNoClean, "not a bool") },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			tt.setup()

			config, err := Load()
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, ".tplsync.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  dir: site
  ignore_conf: true
  omit: [scripts]
build:
  dir: dist
reload:
  allowed_origins: ["example.com"]
`), 0644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "site", config.Source.Dir)
	assert.True(t, config.Source.IgnoreConf)
	assert.Equal(t, []string{"scripts"}, config.Source.Omit)
	assert.Equal(t, "dist", config.Build.Dir)
	assert.Equal(t, []string{"example.com"}, config.Reload.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	t.Setenv("TPLSYNC_BUILD_DIR", "from-env")
	viper.SetEnvPrefix("TPLSYNC")
	viper.SetEnvKeyReplacer(EnvKeyReplacer())
	viper.AutomaticEnv()
	require.NoError(t, viper.BindEnv(KeyBuildDir))

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Build.Dir)
}

func TestValidateConfigWithDetails(t *testing.T) {
	config := &Config{
		Source: SourceConfig{Dir: "src", Precedence: "last"},
		Build:  BuildConfig{Dir: filepath.Join("src", "build")},
		Reload: ReloadConfig{Addr: ":35729"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}

	result := ValidateConfigWithDetails(config)
	assert.False(t, result.HasErrors())
	require.True(t, result.HasWarnings())
	assert.Len(t, result.Warnings, 2)
	assert.Contains(t, result.String(), "build directory is inside the source directory")
	assert.Contains(t, result.String(), "pass --watch")

	config.Source.Omit = []string{"nope"}
	config.Log.Format = "xml"
	result = ValidateConfigWithDetails(config)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, KeySourceOmit, result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Error(), "unknown categories: [nope]")
	assert.Equal(t, KeyLogFormat, result.Errors[1].Field)
	assert.Contains(t, result.String(), "Validation errors")
}
