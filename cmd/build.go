package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagemill/internal/build"
	"github.com/conneroisu/pagemill/internal/module"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Export every page to static files",
	Long: `Render every page reachable from the URL map, including every page of
every paginated collection, and write the results to the output directory.
Collections that declare a feed get /feed/<name>.xml. A sitemap and
robots.txt are written when a site origin is configured.

The build fails if any page fails to render; every failure is reported.

Examples:
  pagemill build                               # Export to ./dist
  pagemill build --out public_html --clean     # Start from an empty directory
  pagemill build --site https://example.com    # Absolute feed and sitemap URLs
  pagemill build --report build.json           # Write a JSON report`,
	RunE: runBuild,
}

var buildReport string

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("out", "./dist", "Output directory")
	buildCmd.Flags().String("site", "", "Site origin for canonical URLs, feeds and the sitemap")
	buildCmd.Flags().Bool("clean", false, "Remove the output directory before exporting")
	buildCmd.Flags().StringVar(&buildReport, "report", "", "Write a JSON build report to this file")

	_ = viper.BindPFlag("build.out_dir", buildCmd.Flags().Lookup("out"))
	_ = viper.BindPFlag("build.site", buildCmd.Flags().Lookup("site"))
	_ = viper.BindPFlag("build.clean", buildCmd.Flags().Lookup("clean"))
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	s, err := newSite(ctx, cfg, module.ModeExport, logger, nil)
	if err != nil {
		return err
	}

	exporter := &build.Exporter{
		Runtime:   s.runtime,
		OutDir:    cfg.Build.OutDir,
		Site:      cfg.Build.Site,
		Sitemap:   cfg.Build.Sitemap,
		Clean:     cfg.Build.Clean,
		PublicDir: cfg.Server.Public,
		Logger:    logger,
	}
	report, exportErr := exporter.Export(ctx)
	if report != nil {
		printReport(cmd.OutOrStdout(), report, cfg.Build.OutDir)
		if buildReport != "" {
			if err := writeReport(buildReport, report); err != nil {
				return err
			}
		}
	}
	if exportErr != nil {
		return fmt.Errorf("build failed: %w", exportErr)
	}
	return nil
}

func printReport(w io.Writer, report *build.Report, outDir string) {
	fmt.Fprintf(w, "Exported %d pages to %s in %v\n",
		report.Count("success"), outDir, report.Duration.Round(time.Millisecond))
	if n := report.Count("redirect"); n > 0 {
		fmt.Fprintf(w, "   - %d redirects\n", n)
	}
	if n := report.Count("not-found"); n > 0 {
		fmt.Fprintf(w, "   - %d pages not found\n", n)
	}
	if len(report.Feeds) > 0 {
		fmt.Fprintf(w, "   - %d feeds\n", len(report.Feeds))
	}
	if report.Sitemap != "" {
		fmt.Fprintf(w, "   - sitemap: %s\n", report.Sitemap)
	}
	for _, failed := range report.Failed() {
		fmt.Fprintf(w, "   x %s: %s (%s)\n", failed.URL, failed.Error, strings.TrimPrefix(failed.Outcome, "error-"))
	}
}

func writeReport(path string, report *build.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode build report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write build report: %w", err)
	}
	return nil
}
