// Package module defines how the engine talks to compiled page sources and
// how page sources are turned into modules.
package module

import (
	"context"

	"github.com/conneroisu/pagemill/internal/collection"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

// Mode tells a module whether it renders for the dev server or an export.
type Mode int

const (
	ModeDevelopment Mode = iota
	ModeExport
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	if m == ModeExport {
		return "export"
	}
	return "development"
}

// RenderContext is everything a module may use to render one page.
type RenderContext struct {
	// URL is the request path without query string.
	URL          string
	CanonicalURL string
	Params       collection.Params
	Props        any
	// Page is set for paginated collections.
	Page   *collection.Page
	Styles []string
	Mode   Mode
}

// Module is a compiled page source.
type Module interface {
	RenderPage(ctx context.Context, rc RenderContext) (string, error)
	Styles() []string
}

// CollectionModule is a module that declares a collection. CreateCollection
// is called once per request.
type CollectionModule interface {
	Module
	CreateCollection(ctx context.Context) (*collection.Spec, error)
}

// Loader resolves a page source to its module. A missing source or import
// is reported as *errors.ModuleLoadError wrapping errors.ErrModuleNotFound;
// a source the compiler rejects as *errors.ParseError.
type Loader interface {
	Load(ctx context.Context, source *urlmap.PageSource) (Module, error)
}

// RenderFunc renders a page.
type RenderFunc func(ctx context.Context, rc RenderContext) (string, error)

// PageFunc adapts a RenderFunc to Module.
type PageFunc struct {
	Render RenderFunc
	CSS    []string
}

// RenderPage calls Render.
func (p PageFunc) RenderPage(ctx context.Context, rc RenderContext) (string, error) {
	return p.Render(ctx, rc)
}

// Styles returns CSS.
func (p PageFunc) Styles() []string {
	return p.CSS
}

// CollectionFunc adapts functions to CollectionModule.
type CollectionFunc struct {
	PageFunc
	Create func(ctx context.Context) (*collection.Spec, error)
}

// CreateCollection calls Create.
func (c CollectionFunc) CreateCollection(ctx context.Context) (*collection.Spec, error) {
	if c.Create == nil {
		return nil, nil
	}
	return c.Create(ctx)
}
