package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/metrics"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/server"
	"github.com/conneroisu/pagemill/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with live reload",
	Long: `Start the development server. Pages are rendered on request from the
current URL map; adding, removing or renaming a page rebuilds the map and
every change reloads connected browsers.

Examples:
  pagemill serve                   # Serve on localhost:3000
  pagemill serve -p 8080           # Serve on another port
  pagemill serve --no-live-reload  # Disable the reload client`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-live-reload", false, "Don't inject the live reload client")
	serveCmd.Flags().Duration("debounce", 300*time.Millisecond, "Delay before a batch of file changes is handled")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("development.debounce", serveCmd.Flags().Lookup("debounce"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noReload, _ := cmd.Flags().GetBool("no-live-reload"); noReload {
		cfg.Development.LiveReload = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	s, err := newSite(ctx, cfg, module.ModeDevelopment, logger, recorder)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Runtime:   s.runtime,
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		PublicDir: cfg.Server.Public,
		Logger:    logger,
		Metrics:   recorder,
		Registry:  registry,
	})

	fw, err := watcher.NewFileWatcher(cfg.Development.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddHandler(newReloadHandler(s, srv, recorder))
	for _, dir := range watchDirs(cfg.Pages.Root, cfg.Pages.Layouts, cfg.Pages.Data, cfg.Server.Public) {
		if err := fw.AddRecursive(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer fw.Stop()

	go func() {
		<-ctx.Done()
		logger.Info(context.Background(), "Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, err, "error during server shutdown")
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting pagemill server at http://%s\n", srv.Addr())
	if err := srv.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "address already in use") || strings.Contains(err.Error(), "bind") ||
			strings.Contains(err.Error(), "permission denied") {
			return pmerrors.NewEnhancedError(
				fmt.Sprintf("Failed to start server on port %d", cfg.Server.Port),
				err,
				pmerrors.ServerStartError(err, cfg.Server.Port),
			)
		}
		return err
	}
	return nil
}

// reloader is the part of the dev server the watcher handler needs.
type reloader interface {
	Reload(target string)
}

// newReloadHandler rebuilds the URL map when pages are added or removed,
// drops stale compiled modules and reloads connected browsers.
func newReloadHandler(s *site, r reloader, rec metrics.Recorder) watcher.ChangeHandler {
	logger := s.logger.WithComponent("watcher")
	root := filepath.Clean(s.cfg.Pages.Root)

	return func(ctx context.Context, events []watcher.ChangeEvent) error {
		structural := false
		shared := false
		for _, event := range events {
			if !within(root, event.Path) {
				// Layouts and data feed many pages.
				shared = true
				continue
			}
			if event.Structural() {
				structural = true
			}
			s.loader.Invalidate(event.Path)
		}
		if shared {
			s.loader.Reset()
		}

		if structural {
			perf := logging.StartOperation(logger, "urlmap.rebuild")
			m, err := s.store.Rebuild()
			rec.IncURLMapRebuild(err == nil)
			if err != nil {
				// The previous snapshot keeps serving.
				perf.EndWithError(ctx, explainRebuildError(err))
			} else {
				perf.End(ctx, "version", m.Version, "pages", m.Len())
			}
		}

		target := ""
		if len(events) == 1 {
			target = events[0].Path
		}
		r.Reload(target)
		return nil
	}
}

// watchDirs returns the existing directories among dirs.
func watchDirs(dirs ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
