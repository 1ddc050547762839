package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tplsync/internal/config"
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Empty the build directory",
		Long: `Remove everything inside the build directory. The directory itself and
entries whose names start with .git are kept.

Examples:
  tplsync clean
  tplsync clean -o dist`,
		Args: cobra.NoArgs,
		RunE: runClean,
	}
	cmd.Flags().StringP("directory", "d", "", "template source directory (default \".\")")
	cmd.Flags().StringP("output", "o", "", "build directory (default \"build\")")
	cmd.PreRunE = preRunBind(map[string]string{
		"directory": config.KeySourceDir,
		"output":    config.KeyBuildDir,
	})
	return cmd
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	if err := manager.DeleteBuild(); err != nil {
		return fmt.Errorf("failed to clean build directory: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s\n", manager.BuildDir())
	return nil
}
