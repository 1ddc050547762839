package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplsync/internal/config"
)

func newConfigCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Display the configuration after loading the config file, applying
TPLSYNC_ environment variables and filling in defaults.

Examples:
  tplsync config                      # YAML
  tplsync config --format json        # JSON
  tplsync config validate             # check .tplsync.yml
  tplsync config validate --strict    # warnings fail too`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")
	AddFlagValidation(cmd, "format", func(f string) error {
		return ValidateFormat(f, []string{"yaml", "json"})
	})

	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var (
		file   string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, file, strict)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration file to validate (default: .tplsync.yml)")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}

func runConfigShow(cmd *cobra.Command, format string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigValidate(cmd *cobra.Command, file string, strict bool) error {
	target := file
	if target == "" {
		target = viper.ConfigFileUsed()
	}
	if target == "" {
		if _, err := os.Stat(".tplsync.yml"); err != nil {
			return errors.New("no configuration file found. Use --file to specify a config file")
		}
		target = ".tplsync.yml"
	}

	v := viper.New()
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if cfg.Source.Dir == "" {
		cfg.Source.Dir = config.DefaultSourceDir
	}
	if cfg.Build.Dir == "" {
		cfg.Build.Dir = config.DefaultBuildDir
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating configuration file: %s\n", target)

	result := config.ValidateConfigWithDetails(&cfg)
	fmt.Fprint(out, result.String())

	switch {
	case result.HasErrors():
		return fmt.Errorf("configuration validation failed with %d errors", len(result.Errors))
	case result.HasWarnings() && strict:
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(result.Warnings))
	case result.HasWarnings():
		fmt.Fprintf(out, "Configuration is valid with %d warning(s).\n", len(result.Warnings))
	default:
		fmt.Fprintln(out, "Configuration is valid.")
	}
	return nil
}
