// Package build exports a site to static files. It walks the URL space with
// the build planner, writes every rendered page and the feeds collections
// capture, and adds a sitemap.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/metrics"
	"github.com/conneroisu/pagemill/internal/planner"
	"github.com/conneroisu/pagemill/internal/runtime"
)

// Exporter renders every reachable page of a site to a directory.
type Exporter struct {
	Runtime *runtime.Runtime
	OutDir  string
	// Site is the origin used for feeds and the sitemap.
	Site string
	// Sitemap writes sitemap.xml and robots.txt when Site is set.
	Sitemap bool
	// Clean removes OutDir before exporting.
	Clean bool
	// PublicDir is copied verbatim into OutDir when it exists.
	PublicDir string
	Logger    logging.Logger
	Metrics   metrics.Recorder
}

// PageResult is the export record of one URL.
type PageResult struct {
	URL      string `json:"url"`
	Status   int    `json:"status"`
	Outcome  string `json:"outcome"`
	File     string `json:"file,omitempty"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// Report summarizes an export.
type Report struct {
	Pages    []PageResult  `json:"pages"`
	Feeds    []string      `json:"feeds,omitempty"`
	Sitemap  string        `json:"sitemap,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Count returns how many pages ended with the given outcome label.
func (r *Report) Count(label string) int {
	n := 0
	for _, p := range r.Pages {
		if p.Outcome == label {
			n++
		}
	}
	return n
}

// Failed returns the pages that ended with a server error.
func (r *Report) Failed() []PageResult {
	var failed []PageResult
	for _, p := range r.Pages {
		if p.Status >= 500 {
			failed = append(failed, p)
		}
	}
	return failed
}

// Export renders the site. Every page is attempted; the returned error
// aggregates all server errors and the report is returned in either case.
func (e *Exporter) Export(ctx context.Context) (*Report, error) {
	if e.OutDir == "" {
		return nil, pmerrors.NewConfigError("OUT_DIR", "no output directory configured")
	}
	logger := e.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("export")
	rec := metrics.OrNoop(e.Metrics)

	op := logging.StartOperation(logger, "export")
	report, err := e.export(ctx, logger, rec)
	if report != nil {
		report.Duration = op.Elapsed()
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return report, err
	}
	op.End(ctx, "pages", len(report.Pages), "feeds", len(report.Feeds))
	return report, nil
}

func (e *Exporter) export(ctx context.Context, logger logging.Logger, rec metrics.Recorder) (*Report, error) {
	if err := e.prepareOutDir(); err != nil {
		return nil, err
	}
	if e.PublicDir != "" {
		if err := copyDir(e.PublicDir, e.OutDir); err != nil {
			return nil, pmerrors.NewIOError("PUBLIC_COPY", "cannot copy public directory", err)
		}
	}

	entries, err := e.Runtime.EntryURLs(ctx)
	if err != nil {
		// The failing collections were seeded with their base URL and are
		// reported when rendered.
		logger.Warn(ctx, err, "some collections could not be enumerated")
	}

	plan := planner.New()
	plan.Seed(entries...)

	report := &Report{}
	var errs pmerrors.Multi
	var rendered []string

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		u, ok := plan.Next()
		if !ok {
			break
		}

		out := e.Runtime.Load(ctx, u)
		plan.MarkRendered(u)
		rec.IncExportedPage(runtime.Label(out))

		result := PageResult{URL: u, Status: out.StatusCode(), Outcome: runtime.Label(out)}
		switch o := out.(type) {
		case *runtime.Success:
			file, err := OutputPath(e.OutDir, u)
			if err == nil {
				err = writeFile(file, []byte(o.Body))
			}
			if err != nil {
				result.Error = err.Error()
				errs = append(errs, fmt.Errorf("%s: %w", u, err))
				break
			}
			result.File = file
			result.Size = len(o.Body)
			rendered = append(rendered, u)
		case *runtime.Redirect:
			result.Location = o.Location
		case *runtime.NotFound:
			result.Error = o.Reason
			logger.Warn(ctx, nil, "page not found during export", "url", u, "reason", o.Reason)
		case *runtime.ServerError:
			result.Error = o.Detail
			errs = append(errs, fmt.Errorf("%s (%s): %w", u, o.Kind, o.Err))
		}
		report.Pages = append(report.Pages, result)

		if scheduled := plan.Plan(out); len(scheduled) > 0 {
			logger.Debug(ctx, "scheduled additional pages", "from", u, "urls", scheduled)
		}

		if info := out.CollectionInfo(); info != nil && info.RSS != nil {
			name, err := e.writeFeed(u, info)
			if err != nil {
				errs = append(errs, pmerrors.Wrap(err, pmerrors.ErrorTypeIO, "FEED", "cannot write feed for "+u))
				continue
			}
			report.Feeds = append(report.Feeds, name)
		}
	}

	if e.Sitemap && e.Site != "" {
		sitemap, err := e.writeSitemap(rendered)
		if err != nil {
			errs = append(errs, err)
		} else {
			report.Sitemap = sitemap
		}
	}

	return report, errs.ErrOrNil()
}

func (e *Exporter) prepareOutDir() error {
	abs, err := filepath.Abs(e.OutDir)
	if err != nil {
		return pmerrors.NewIOError("OUT_DIR", "cannot resolve output directory", err)
	}
	if e.Clean {
		if abs == filepath.Dir(abs) {
			return pmerrors.NewConfigError("OUT_DIR", "refusing to clean the filesystem root")
		}
		if err := os.RemoveAll(abs); err != nil {
			return pmerrors.NewIOError("OUT_DIR", "cannot clean output directory", err)
		}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return pmerrors.NewIOError("OUT_DIR", "cannot create output directory", err)
	}
	return nil
}
