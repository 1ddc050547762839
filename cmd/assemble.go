package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tplsync/internal/config"
	"github.com/conneroisu/tplsync/internal/filemanager"
	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/manifest"
	"github.com/conneroisu/tplsync/internal/modules"
	"github.com/conneroisu/tplsync/internal/reload"
	"github.com/conneroisu/tplsync/internal/watcher"
)

func newAssembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assemble",
		Aliases: []string{"a", "build"},
		Short:   "Assemble the template and its modules into the build directory",
		Long: `Empty the build directory, then copy every template file from the source
directory and from each template module into it. Module template.conf files
are merged into the template's own.

Examples:
  tplsync assemble                          # ./ into ./build
  tplsync assemble -d site -o dist          # site/ into dist/
  tplsync assemble --noclean                # keep existing build files
  tplsync assemble --omit scripts,pages     # skip categories
  tplsync assemble --watch                  # keep syncing until Ctrl+C
  tplsync assemble --watch --reload-addr :35729`,
		Args: cobra.NoArgs,
		RunE: runAssemble,
	}

	addSourceFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "build directory (default \"build\")")
	cmd.Flags().Bool("noclean", false, "do not empty the build directory first")
	cmd.Flags().BoolP("watch", "w", false, "keep the build in sync with source changes")
	cmd.Flags().String("reload-addr", "", "serve live-reload notifications on this address while watching")

	cmd.PreRunE = preRunBind(sourceBindings, map[string]string{
		"output":      config.KeyBuildDir,
		"noclean":     config.KeyBuildNoClean,
		"watch":       config.KeyWatchEnabled,
		"reload-addr": config.KeyReloadAddr,
	})
	return cmd
}

func runAssemble(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	manager, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !cfg.Build.NoClean {
		if err := manager.DeleteBuild(); err != nil {
			return fmt.Errorf("failed to clean build directory: %w", err)
		}
	}

	report := manager.SyncAll(cfg.Flags())
	fmt.Fprintf(out, "Assembled %d files into %s (copied %d, merged %d, skipped %d)\n",
		report.Files, manager.BuildDir(), report.Copied, report.Merged, report.Skipped)
	if n := len(report.Errors); n > 0 {
		fmt.Fprintf(out, "%d problem(s) reported; see log for details\n", n)
	}

	if !cfg.Watch.Enabled {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchBuild(ctx, cmd, cfg, manager, logger)
}

// watchBuild runs the sync watcher and, when configured, the reload server
// until ctx is done.
func watchBuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, manager *filemanager.Manager, logger logging.Logger) error {
	out := cmd.OutOrStdout()
	onEvent := func(kind watcher.EventKind, path string) {
		fmt.Fprintf(out, "%s %s\n", kind, path)
	}

	if cfg.Reload.Addr != "" {
		hub := reload.NewHub(logger, reload.WithOriginPatterns(cfg.Reload.AllowedOrigins...))
		srv, err := serveReload(cfg.Reload.Addr, hub)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Live reload on ws://%s\n", srv.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hub.Shutdown(shutdownCtx)
			srv.Shutdown(shutdownCtx)
		}()

		printEvent := onEvent
		onEvent = func(kind watcher.EventKind, path string) {
			printEvent(kind, path)
			hub.Notify(kind, path)
		}
	}

	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")
	err := watcher.WatchAndCollect(ctx, manager, cfg.Flags(), onEvent, logger)
	fmt.Fprintln(out, "Stopped watching")
	return err
}

func serveReload(addr string, hub *reload.Hub) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           hub,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Reload server stopped: %v\n", err)
		}
	}()
	return srv, nil
}

// newManager builds the file manager described by cfg.
func newManager(cfg *config.Config, logger logging.Logger) (*filemanager.Manager, error) {
	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return nil, err
	}
	return filemanager.New(filemanager.Options{
		SourceDir: cfg.Source.Dir,
		BuildDir:  cfg.Build.Dir,
		Resolver:  resolver,
		Logger:    logger,
	})
}

func newResolver(cfg *config.Config, logger logging.Logger) (*modules.Resolver, error) {
	reader, err := manifest.NewReader(manifest.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return modules.NewResolver(reader,
		modules.WithPrecedence(cfg.Precedence()),
		modules.WithLogger(logger)), nil
}
