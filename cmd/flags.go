package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/tplsync/internal/config"
	"github.com/conneroisu/tplsync/internal/patterns"
)

// Output formats accepted by --output on listing commands.
var outputFormats = []string{"table", "json", "yaml"}

// addSourceFlags adds the flags that select the template source and its files.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("directory", "d", "", "template source directory (default \".\")")
	addPatternFlags(cmd)
	cmd.Flags().String("precedence", "", "module shadowing rule when a name is found twice (last, first)")
}

// addPatternFlags adds the flags that shape the pattern catalog.
func addPatternFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("legacy", false, "include the legacy scripts category")
	cmd.Flags().Bool("ignore-conf", false, "leave configuration files out")
	cmd.Flags().StringSlice("omit", nil, "categories to leave out ("+strings.Join(patterns.Default().Categories(), ", ")+")")
	AddFlagValidation(cmd, "omit", validateCategories)
}

// sourceBindings maps the source flags to configuration keys.
var sourceBindings = map[string]string{
	"directory":   config.KeySourceDir,
	"legacy":      config.KeySourceLegacy,
	"ignore-conf": config.KeySourceIgnoreConf,
	"omit":        config.KeySourceOmit,
	"precedence":  config.KeySourcePrecedence,
}

// addOutputFlag adds a validated --output format flag.
func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", "table", "output format ("+strings.Join(outputFormats, "|")+")")
	AddFlagValidation(cmd, "output", func(format string) error {
		return ValidateFormat(format, outputFormats)
	})
}

// bindFlags binds the named flags of cmd to viper keys. Binding happens per
// run so commands sharing a key do not steal each other's flags.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("binding --%s: %w", flagName, err)
		}
	}
	return nil
}

// preRunBind returns a PreRunE that binds flags before the command runs.
func preRunBind(bindings ...map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		for _, b := range bindings {
			if err := bindFlags(cmd, b); err != nil {
				return err
			}
		}
		return nil
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormat checks an output format against the supported ones.
func ValidateFormat(format string, valid []string) error {
	for _, f := range valid {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid output format %s, must be one of: %s", format, strings.Join(valid, ", "))
}

// validateCategories checks a comma-separated --omit value.
func validateCategories(value string) error {
	var names []string
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return patterns.Default().Validate(patterns.Flags{Omit: names})
}
