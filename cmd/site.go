package cmd

import (
	"context"
	"errors"

	"github.com/conneroisu/pagemill/internal/config"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/metrics"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/pagesrc"
	"github.com/conneroisu/pagemill/internal/runtime"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

// site bundles the pieces every command builds from the configuration.
type site struct {
	cfg     *config.Config
	logger  logging.Logger
	store   *urlmap.Store
	loader  *module.FileLoader
	runtime *runtime.Runtime
}

// newSite scans the pages root and wires the file loader and runtime.
// A URL map conflict aborts with suggestions.
func newSite(ctx context.Context, cfg *config.Config, mode module.Mode, logger logging.Logger, rec metrics.Recorder) (*site, error) {
	store := urlmap.NewStore(cfg.Pages.Root, urlmap.Options{
		Extensions:       cfg.Pages.Extensions,
		CollectionPrefix: cfg.Pages.CollectionPrefix,
	})

	perf := logging.StartOperation(logger.WithComponent("urlmap"), "urlmap.build")
	m, err := store.Rebuild()
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, explainRebuildError(err)
	}
	perf.End(ctx, "pages", m.Len()-len(m.Collections), "collections", len(m.Collections))

	loader := module.NewFileLoader()
	pagesrc.New(pagesrc.Options{
		LayoutsDir:       cfg.Pages.Layouts,
		DataDir:          cfg.Pages.Data,
		CollectionPrefix: cfg.Pages.CollectionPrefix,
		Logger:           logger,
	}).Register(loader, cfg.Pages.Extensions...)

	rt := runtime.New(runtime.Options{
		Store:           store,
		Loader:          loader,
		Mode:            mode,
		Site:            cfg.Build.Site,
		DefaultPageSize: cfg.Collections.DefaultPageSize,
		LiveReload:      mode == module.ModeDevelopment && cfg.Development.LiveReload,
		Logger:          logger,
		Metrics:         rec,
	})

	return &site{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		loader:  loader,
		runtime: rt,
	}, nil
}

// explainRebuildError attaches suggestions to URL map conflicts.
func explainRebuildError(err error) error {
	var conflict *pmerrors.ConflictError
	if errors.As(err, &conflict) {
		return pmerrors.NewEnhancedError("URL map conflict", err, pmerrors.ConflictSuggestions(conflict))
	}
	return err
}
