package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagemill/internal/collection"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/urlmap"
)

// loaderFunc lets a test fail specific sources before the registry sees them.
type loaderFunc func(ctx context.Context, source *urlmap.PageSource) (module.Module, error)

func (f loaderFunc) Load(ctx context.Context, source *urlmap.PageSource) (module.Module, error) {
	return f(ctx, source)
}

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("<p>"+rel+"</p>"), 0o644))
	}
	return root
}

func newStore(t *testing.T, files ...string) *urlmap.Store {
	t.Helper()
	store := urlmap.NewStore(writeTree(t, files...), urlmap.DefaultOptions())
	_, err := store.Rebuild()
	require.NoError(t, err)
	return store
}

func page(body string) module.PageFunc {
	return module.PageFunc{Render: func(_ context.Context, rc module.RenderContext) (string, error) {
		return body + " " + rc.URL, nil
	}}
}

func blogCollection(calls int) module.CollectionFunc {
	return module.CollectionFunc{
		PageFunc: module.PageFunc{Render: func(_ context.Context, rc module.RenderContext) (string, error) {
			return fmt.Sprintf("%v next=%s prev=%s", rc.Page.Data, rc.Page.URL.Next, rc.Page.URL.Prev), nil
		}},
		Create: func(context.Context) (*collection.Spec, error) {
			return &collection.Spec{
				Route:    ":page?",
				Paginate: true,
				Props: func(_ context.Context, in collection.PropsInput) (any, error) {
					for i := 0; i < calls; i++ {
						in.Paginator.Paginate([]any{"a", "b", "c", "d"}, collection.PageOptions{PageSize: 2})
					}
					return nil, nil
				},
			}, nil
		},
	}
}

func newTestRuntime(t *testing.T, reg *module.Registry, opts Options) *Runtime {
	t.Helper()
	if opts.Store == nil {
		opts.Store = newStore(t, "index.html", "about.md", "$blog.html", "missing.html")
	}
	if opts.Loader == nil {
		opts.Loader = reg
	}
	return New(opts)
}

func defaultRegistry() *module.Registry {
	reg := module.NewRegistry()
	reg.Register("index.html", page("home"))
	reg.Register("about.md", page("about"))
	reg.Register("$blog.html", blogCollection(1))
	return reg
}

func TestLoadOutcomes(t *testing.T) {
	rt := newTestRuntime(t, defaultRegistry(), Options{})
	ctx := context.Background()

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "root", path: "/", status: http.StatusOK, body: "home /"},
		{name: "root index", path: "/index.html", status: http.StatusOK, body: "home /index.html"},
		{name: "query dropped", path: "/about/?draft=1", status: http.StatusOK, body: "about /about/"},
		{name: "collection first page", path: "/blog", status: http.StatusOK, body: "[a b] next=/blog/2 prev="},
		{name: "collection second page", path: "/blog/2", status: http.StatusOK, body: "[c d] next= prev=/blog"},
		{name: "out of range", path: "/blog/3", status: http.StatusNotFound},
		{name: "invalid page", path: "/blog/two", status: http.StatusNotFound},
		{name: "page number overflow", path: "/blog/4611686018427387905", status: http.StatusNotFound},
		{name: "route mismatch", path: "/blog/2/extra", status: http.StatusNotFound},
		{name: "unknown path", path: "/nope", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rt.Load(ctx, tt.path)
			require.Equal(t, tt.status, out.StatusCode(), "%#v", out)
			if tt.body != "" {
				success, ok := out.(*Success)
				require.True(t, ok)
				assert.Equal(t, tt.body, success.Body)
				assert.Equal(t, "text/html; charset=utf-8", success.ContentType)
			}
		})
	}
}

func TestLoadCollectionInfo(t *testing.T) {
	rt := newTestRuntime(t, defaultRegistry(), Options{})

	first := rt.Load(context.Background(), "/blog/")
	require.NotNil(t, first.CollectionInfo())
	assert.Equal(t, []string{"/blog/2"}, first.CollectionInfo().AdditionalURLs)

	second := rt.Load(context.Background(), "/blog/2")
	require.NotNil(t, second.CollectionInfo())
	assert.Empty(t, second.CollectionInfo().AdditionalURLs)

	static := rt.Load(context.Background(), "/about")
	assert.Nil(t, static.CollectionInfo())
}

func TestLoadExplicitFirstPageRedirects(t *testing.T) {
	rt := newTestRuntime(t, defaultRegistry(), Options{})

	for _, p := range []string{"/blog/1", "/blog/1/", "/blog/1/index.html"} {
		out := rt.Load(context.Background(), p)
		redirect, ok := out.(*Redirect)
		require.True(t, ok, "%s: %#v", p, out)
		assert.Equal(t, http.StatusMovedPermanently, redirect.Status)
		assert.Equal(t, "/blog/", redirect.Location)
	}
}

func TestLoadServerErrors(t *testing.T) {
	parseErr := &pmerrors.ParseError{File: "about.md", Cause: errors.New("bad front matter")}
	renderErr := errors.New("template exploded")

	reg := defaultRegistry()
	reg.Register("index.html", module.PageFunc{Render: func(context.Context, module.RenderContext) (string, error) {
		return "", renderErr
	}})

	loader := loaderFunc(func(ctx context.Context, source *urlmap.PageSource) (module.Module, error) {
		if source.RelPath == "about.md" {
			return nil, parseErr
		}
		return reg.Load(ctx, source)
	})
	rt := newTestRuntime(t, reg, Options{Loader: loader})

	tests := []struct {
		path string
		kind ErrorKind
		file string
	}{
		{path: "/about", kind: KindParseError, file: "about.md"},
		{path: "/missing", kind: KindNotFound, file: "missing.html"},
		{path: "/", kind: KindUnknown, file: "index.html"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			out := rt.Load(context.Background(), tt.path)
			se, ok := out.(*ServerError)
			require.True(t, ok, "%#v", out)
			assert.Equal(t, http.StatusInternalServerError, se.StatusCode())
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.file, se.File)
		})
	}

	out := rt.Load(context.Background(), "/").(*ServerError)
	assert.ErrorIs(t, out.Err, renderErr)

	missing := rt.Load(context.Background(), "/missing").(*ServerError)
	assert.ErrorIs(t, missing.Err, pmerrors.ErrModuleNotFound)
	assert.Equal(t, "missing.html", missing.Detail)
}

func TestLoadCollectionErrors(t *testing.T) {
	t.Run("paginate called twice", func(t *testing.T) {
		reg := defaultRegistry()
		reg.Register("$blog.html", blogCollection(2))
		out := newTestRuntime(t, reg, Options{}).Load(context.Background(), "/blog")

		se, ok := out.(*ServerError)
		require.True(t, ok)
		assert.Equal(t, KindPagination, se.Kind)
		assert.Contains(t, se.Detail, "Called 2 times")
	})

	t.Run("page number overflow", func(t *testing.T) {
		rt := newTestRuntime(t, defaultRegistry(), Options{})
		for _, path := range []string{"/blog/4611686018427387905", "/blog/9223372036854775807"} {
			out := rt.Load(context.Background(), path)
			nf, ok := out.(*NotFound)
			require.True(t, ok, "%s: %#v", path, out)
			assert.Equal(t, http.StatusNotFound, nf.StatusCode())
		}
	})

	t.Run("negative page size", func(t *testing.T) {
		reg := defaultRegistry()
		reg.Register("$blog.html", module.CollectionFunc{
			PageFunc: page("blog"),
			Create: func(context.Context) (*collection.Spec, error) {
				return &collection.Spec{
					Route:    ":page?",
					Paginate: true,
					Props: func(_ context.Context, in collection.PropsInput) (any, error) {
						in.Paginator.Paginate([]any{"a", "b"}, collection.PageOptions{PageSize: -5})
						return nil, nil
					},
				}, nil
			},
		})
		out := newTestRuntime(t, reg, Options{}).Load(context.Background(), "/blog")

		se, ok := out.(*ServerError)
		require.True(t, ok, "%#v", out)
		assert.Equal(t, KindCollection, se.Kind)
		assert.Contains(t, se.Detail, "pageSize must be positive")
	})

	t.Run("page segment without pagination", func(t *testing.T) {
		reg := defaultRegistry()
		reg.Register("$blog.html", module.CollectionFunc{
			PageFunc: page("blog"),
			Create: func(context.Context) (*collection.Spec, error) {
				return &collection.Spec{
					Route: ":page?",
					Props: func(context.Context, collection.PropsInput) (any, error) {
						return nil, nil
					},
				}, nil
			},
		})
		rt := newTestRuntime(t, reg, Options{})

		assert.Equal(t, http.StatusOK, rt.Load(context.Background(), "/blog").StatusCode())
		_, ok := rt.Load(context.Background(), "/blog/7").(*NotFound)
		assert.True(t, ok)
	})

	t.Run("no collection declared", func(t *testing.T) {
		reg := defaultRegistry()
		reg.Register("$blog.html", page("not a collection"))
		out := newTestRuntime(t, reg, Options{}).Load(context.Background(), "/blog")

		se, ok := out.(*ServerError)
		require.True(t, ok)
		assert.Equal(t, KindCollection, se.Kind)
		assert.Contains(t, se.Detail, "no collection declared")
	})

	t.Run("create fails", func(t *testing.T) {
		reg := defaultRegistry()
		reg.Register("$blog.html", module.CollectionFunc{
			PageFunc: page("blog"),
			Create: func(context.Context) (*collection.Spec, error) {
				return nil, errors.New("database offline")
			},
		})
		out := newTestRuntime(t, reg, Options{}).Load(context.Background(), "/blog")

		se, ok := out.(*ServerError)
		require.True(t, ok)
		assert.Equal(t, KindUnknown, se.Kind)
		var rre *pmerrors.RenderRuntimeError
		assert.ErrorAs(t, se.Err, &rre)
	})
}

func TestLoadRecoversPanics(t *testing.T) {
	reg := defaultRegistry()
	reg.Register("about.md", module.PageFunc{Render: func(context.Context, module.RenderContext) (string, error) {
		panic("boom")
	}})
	rt := newTestRuntime(t, reg, Options{})

	out := rt.Load(context.Background(), "/about")
	se, ok := out.(*ServerError)
	require.True(t, ok)
	assert.Equal(t, KindUnknown, se.Kind)
	assert.Contains(t, se.Detail, "panic: boom")
}

func TestLoadLiveReload(t *testing.T) {
	reg := defaultRegistry()
	reg.Register("about.md", module.PageFunc{Render: func(context.Context, module.RenderContext) (string, error) {
		return "<!DOCTYPE html><html><head></head><body><h1>About</h1></body></html>", nil
	}})

	dev := newTestRuntime(t, reg, Options{Mode: module.ModeDevelopment, LiveReload: true})
	body := dev.Load(context.Background(), "/about").(*Success).Body
	assert.Contains(t, body, LiveReloadPath)
	assert.Contains(t, body, `data-pagemill="live-reload"`)
	assert.Contains(t, body, "<h1>About</h1>")

	export := newTestRuntime(t, reg, Options{Mode: module.ModeExport, LiveReload: true})
	body = export.Load(context.Background(), "/about").(*Success).Body
	assert.NotContains(t, body, LiveReloadPath)
}

func TestInjectLiveReloadFragment(t *testing.T) {
	out := InjectLiveReload("<p>fragment</p>")
	assert.Contains(t, out, "<body><p>fragment</p><script")
	assert.Contains(t, out, "full_reload")
}

func TestCanonicalURLUsesSite(t *testing.T) {
	reg := defaultRegistry()
	reg.Register("about.md", module.PageFunc{Render: func(_ context.Context, rc module.RenderContext) (string, error) {
		return rc.CanonicalURL, nil
	}})
	rt := newTestRuntime(t, reg, Options{Site: "https://example.com"})

	out := rt.Load(context.Background(), "/about/index.html").(*Success)
	assert.Equal(t, "https://example.com/about/", out.Body)
}

func TestEntryURLs(t *testing.T) {
	rt := newTestRuntime(t, defaultRegistry(), Options{
		Store: newStore(t, "index.html", "about.md", "$blog.html"),
	})

	urls, err := rt.EntryURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/about/index.html", "/blog", "/index.html"}, urls)
}

func TestEntryURLsSeedsBaseOnFailure(t *testing.T) {
	reg := defaultRegistry()
	reg.Register("$blog.html", page("not a collection"))
	rt := newTestRuntime(t, reg, Options{
		Store: newStore(t, "index.html", "$blog.html"),
	})

	urls, err := rt.EntryURLs(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"/blog", "/index.html"}, urls)

	var multi pmerrors.Multi
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi, 1)
}

func TestStatusTextAndLabel(t *testing.T) {
	assert.Equal(t, "OK", StatusText(&Success{}))
	assert.Equal(t, "Not Found", StatusText(&NotFound{}))
	assert.Equal(t, "Moved Permanently", StatusText(&Redirect{Status: http.StatusMovedPermanently}))
	assert.Equal(t, "Parse Error", StatusText(&ServerError{Kind: KindParseError}))
	assert.Equal(t, "Pagination Error", StatusText(&ServerError{Kind: KindPagination}))
	assert.Equal(t, "Internal Server Error", StatusText(&ServerError{Kind: KindUnknown}))

	assert.Equal(t, "success", Label(&Success{}))
	assert.Equal(t, "redirect", Label(&Redirect{}))
	assert.Equal(t, "not-found", Label(&NotFound{}))
	assert.Equal(t, "error-collection", Label(&ServerError{Kind: KindCollection}))
}
