package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tplsync/internal/config"
	"github.com/conneroisu/tplsync/internal/logging"
)

// ConfigFileEnv names a config file to use when --config is not given.
const ConfigFileEnv = "TPLSYNC_CONFIG_FILE"

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tplsync",
		Short: "Assemble a template and its modules into one build directory",
		Long: `tplsync flattens a template source tree and every template module it
depends on into a single build directory, merging module configuration into
the template's template.conf. With --watch it keeps the build in step as
sources change.

Quick Start:
  tplsync assemble                 Assemble ./ into ./build
  tplsync assemble --watch         Assemble, then keep syncing
  tplsync modules                  Show the resolved module set
  tplsync clean                    Empty the build directory`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tplsync.yml, can also use "+ConfigFileEnv+" env var)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	rootCmd.AddCommand(
		newAssembleCmd(),
		newCleanCmd(),
		newModulesCmd(),
		newPatternsCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// initConfig wires viper to the config file, the environment and the flags
// of the command being run.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. TPLSYNC_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .tplsync.yml in current directory
func initConfig(cmd *cobra.Command, cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	explicit := true
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(ConfigFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tplsync")
	}

	viper.SetEnvPrefix("TPLSYNC")
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())
	viper.AutomaticEnv()
	for _, key := range config.Keys() {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
	}

	return bindFlags(cmd, map[string]string{
		"log-level":  config.KeyLogLevel,
		"log-format": config.KeyLogFormat,
	})
}

// loadConfig loads the configuration and builds the logger for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logCfg := cfg.Logger()
	logCfg.Output = cmd.ErrOrStderr()
	return cfg, logging.NewLogger(logCfg), nil
}
