// Package runtime is the request entry point. It resolves a request against
// the current URL map, loads the page module, runs the collection engine and
// renders, turning every failure into an Outcome a transport can serve.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/pagemill/internal/canonical"
	"github.com/conneroisu/pagemill/internal/collection"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/metrics"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/resolver"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

const htmlContentType = "text/html; charset=utf-8"

// Options configures a Runtime.
type Options struct {
	Store  *urlmap.Store
	Loader module.Loader
	Mode   module.Mode
	// Site is the origin used for canonical URLs, e.g. "https://example.com".
	Site            string
	DefaultPageSize int
	// LiveReload injects the reload client in development mode.
	LiveReload bool
	Logger     logging.Logger
	Metrics    metrics.Recorder
}

// Runtime serves requests. It is safe for concurrent use; each Load works on
// the URL map snapshot current when it started.
type Runtime struct {
	store           *urlmap.Store
	loader          module.Loader
	mode            module.Mode
	site            string
	defaultPageSize int
	liveReload      bool
	logger          logging.Logger
	metrics         metrics.Recorder
}

// New creates a Runtime.
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Runtime{
		store:           opts.Store,
		loader:          opts.Loader,
		mode:            opts.Mode,
		site:            opts.Site,
		defaultPageSize: opts.DefaultPageSize,
		liveReload:      opts.LiveReload,
		logger:          logger.WithComponent("runtime"),
		metrics:         metrics.OrNoop(opts.Metrics),
	}
}

// Mode returns the render mode.
func (r *Runtime) Mode() module.Mode {
	return r.mode
}

// Store returns the URL map store the runtime resolves against.
func (r *Runtime) Store() *urlmap.Store {
	return r.store
}

// Load serves rawPath, the escaped request path. A query string or fragment
// is dropped. Load never fails: errors are reported as outcomes.
func (r *Runtime) Load(ctx context.Context, rawPath string) (out Outcome) {
	start := time.Now()
	reqPath := stripQuery(rawPath)
	snapshot := r.store.Load()

	decision := resolver.Resolve(snapshot, reqPath)
	defer func() {
		r.metrics.ObserveRender(Label(out), time.Since(start))
	}()

	if !decision.Found() {
		r.logger.Debug(ctx, "no route", "path", reqPath)
		return &NotFound{Reason: fmt.Sprintf("no page matches %s", reqPath)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := &pmerrors.RenderRuntimeError{
				File:  decision.Source.RelPath,
				Cause: fmt.Errorf("panic: %v", rec),
			}
			out = r.fail(ctx, reqPath, decision.Source, err, nil)
		}
	}()

	return r.serve(ctx, reqPath, decision)
}

func (r *Runtime) serve(ctx context.Context, reqPath string, decision resolver.Decision) Outcome {
	source := decision.Source
	mod, err := r.loader.Load(ctx, source)
	if err != nil {
		return r.fail(ctx, reqPath, source, err, nil)
	}

	rc := module.RenderContext{
		URL:          reqPath,
		CanonicalURL: canonical.URL(reqPath, r.site),
		Styles:       mod.Styles(),
		Mode:         r.mode,
	}

	var info *collection.Info
	if decision.Kind == resolver.CollectionHit {
		res, err := r.loadCollection(ctx, reqPath, decision, mod)
		if err != nil {
			return r.fail(ctx, reqPath, source, err, nil)
		}
		info = &res.Info
		rc.Params = res.Params
		rc.Props = res.Props
		rc.Page = res.Page
	}

	body, err := mod.RenderPage(ctx, rc)
	if err != nil {
		return r.fail(ctx, reqPath, source, err, info)
	}
	if r.mode == module.ModeDevelopment && r.liveReload {
		body = InjectLiveReload(body)
	}

	return &Success{Body: body, ContentType: htmlContentType, Info: info}
}

func (r *Runtime) loadCollection(ctx context.Context, reqPath string, decision resolver.Decision, mod module.Module) (*collection.Result, error) {
	spec, err := r.createCollection(ctx, decision.Source, mod)
	if err != nil {
		return nil, err
	}
	return collection.Load(ctx, spec, collection.LoadOptions{
		File:            decision.Source.RelPath,
		RequestPath:     reqPath,
		Base:            decision.Base,
		DefaultPageSize: r.defaultPageSize,
		Logger:          r.logger,
	})
}

func (r *Runtime) createCollection(ctx context.Context, source *urlmap.PageSource, mod module.Module) (*collection.Spec, error) {
	var spec *collection.Spec
	if cm, ok := mod.(module.CollectionModule); ok {
		created, err := cm.CreateCollection(ctx)
		if err != nil {
			var cv *pmerrors.CollectionValidationError
			if errors.As(err, &cv) {
				return nil, err
			}
			return nil, &pmerrors.RenderRuntimeError{File: source.RelPath, Cause: err}
		}
		spec = created
	}
	if err := collection.Validate(spec, source.RelPath); err != nil {
		return nil, err
	}
	return spec, nil
}

// fail maps an error to an outcome.
func (r *Runtime) fail(ctx context.Context, reqPath string, source *urlmap.PageSource, err error, info *collection.Info) Outcome {
	var (
		violation  *pmerrors.PaginationContractViolation
		validation *pmerrors.CollectionValidationError
		loadErr    *pmerrors.ModuleLoadError
		parseErr   *pmerrors.ParseError
	)

	se := &ServerError{Kind: KindUnknown, Detail: err.Error(), Err: err, File: source.RelPath, Info: info}
	switch {
	case errors.As(err, &violation):
		if violation.IsExplicitFirstPage() {
			location := canonical.Path(reqPath)
			r.logger.Debug(ctx, "redirecting explicit first page", "path", reqPath, "location", location)
			return &Redirect{Status: http.StatusMovedPermanently, Location: location, Info: info}
		}
		if violation.IsNotFound() {
			return &NotFound{Reason: violation.Error(), Info: info}
		}
		se.Kind = KindPagination
	case errors.As(err, &validation):
		if validation.IsNotFound() {
			return &NotFound{Reason: validation.Error(), Info: info}
		}
		se.Kind = KindCollection
	case errors.As(err, &loadErr):
		se.Kind = KindNotFound
		se.Detail = loadErr.Module
		if se.Detail == "" {
			se.Detail = loadErr.File
		}
	case errors.As(err, &parseErr):
		se.Kind = KindParseError
	}

	r.logger.Error(ctx, err, "page failed", "path", reqPath, "file", source.RelPath, "kind", string(se.Kind))
	return se
}

// EntryURLs lists the URLs an export starts from: every static .html alias
// and the first page of every collection path. A collection whose paths
// cannot be enumerated contributes its base URL, so the export reports the
// failure when it renders it, and its error is returned alongside.
func (r *Runtime) EntryURLs(ctx context.Context) ([]string, error) {
	snapshot := r.store.Load()

	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	for _, u := range snapshot.StaticEntries() {
		add(u)
	}

	var errs pmerrors.Multi
	for _, source := range snapshot.CollectionSources() {
		entries, err := r.collectionEntries(ctx, source)
		if err != nil {
			r.logger.Warn(ctx, err, "cannot enumerate collection", "file", source.RelPath)
			errs = append(errs, err)
			add(source.URL)
			continue
		}
		for _, u := range entries {
			add(u)
		}
	}

	sort.Strings(urls)
	return urls, errs.ErrOrNil()
}

func (r *Runtime) collectionEntries(ctx context.Context, source *urlmap.PageSource) ([]string, error) {
	mod, err := r.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	spec, err := r.createCollection(ctx, source, mod)
	if err != nil {
		return nil, err
	}
	return collection.EntryURLs(ctx, spec, source.RelPath, source.URL)
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	return p
}
