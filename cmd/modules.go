package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplsync/internal/modules"
)

func newModulesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"m", "list"},
		Short:   "List the template modules the source depends on",
		Long: `Resolve template modules through the source's package.json dependencies
and list them in the order their configuration is merged.

Examples:
  tplsync modules                 # table
  tplsync modules -o json         # JSON
  tplsync modules -d site -o yaml # YAML for another source directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModules(cmd, format)
		},
	}
	cmd.Flags().StringP("directory", "d", "", "template source directory (default \".\")")
	cmd.Flags().String("precedence", "", "module shadowing rule when a name is found twice (last, first)")
	addOutputFlag(cmd, &format)
	cmd.PreRunE = preRunBind(sourceBindings)
	return cmd
}

func runModules(cmd *cobra.Command, format string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return err
	}

	src, err := filepath.Abs(cfg.Source.Dir)
	if err != nil {
		return err
	}
	set := resolver.Resolve(src)
	mods := set.Modules()

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mods); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(mods); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		writeModuleTable(out, src, mods)
	}

	for _, err := range set.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return nil
}

func writeModuleTable(out io.Writer, src string, mods []modules.Descriptor) {
	if len(mods) == 0 {
		fmt.Fprintln(out, "No template modules found")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEPTH\tPATH")
	for _, m := range mods {
		path := m.Path
		if rel, err := filepath.Rel(src, m.Path); err == nil {
			path = rel
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", m.Name, m.Depth, path)
	}
	w.Flush()
}
