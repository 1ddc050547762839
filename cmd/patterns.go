package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/tplsync/internal/patterns"
)

func newPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Show which files belong in the build",
		Long: `Print the file categories and the glob patterns that select them, as
applied to the source directory and to every module's template directory.

Examples:
  tplsync patterns
  tplsync patterns --legacy --omit pages`,
		Args: cobra.NoArgs,
		RunE: runPatterns,
	}
	addPatternFlags(cmd)
	cmd.PreRunE = preRunBind(sourceBindings)
	return cmd
}

func runPatterns(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	title := cases.Title(language.English)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	byCategory := make(map[string][]string)
	var order []string
	for _, p := range patterns.Default().Patterns(cfg.Flags()) {
		if _, ok := byCategory[p.Category]; !ok {
			order = append(order, p.Category)
		}
		byCategory[p.Category] = append(byCategory[p.Category], p.Glob)
	}
	for _, category := range order {
		fmt.Fprintf(w, "%s\t%s\n", title.String(category), strings.Join(byCategory[category], " "))
	}
	return w.Flush()
}
