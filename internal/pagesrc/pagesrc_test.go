package pagesrc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conneroisu/pagemill/internal/collection"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/urlmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type site struct {
	root     string
	compiler *Compiler
}

func newSite(t *testing.T, files map[string]string) *site {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return &site{
		root: root,
		compiler: New(Options{
			LayoutsDir: filepath.Join(root, "layouts"),
			DataDir:    filepath.Join(root, "data"),
		}),
	}
}

func (s *site) compile(t *testing.T, rel, content string) (module.Module, error) {
	t.Helper()
	kind := urlmap.KindStatic
	if strings.HasPrefix(filepath.Base(rel), "$") {
		kind = urlmap.KindCollection
	}
	source := &urlmap.PageSource{
		FilePath: filepath.Join(s.root, "pages", filepath.FromSlash(rel)),
		RelPath:  rel,
		Kind:     kind,
	}
	return s.compiler.Compile(context.Background(), source, []byte(content))
}

func render(t *testing.T, m module.Module, rc module.RenderContext) string {
	t.Helper()
	if rc.Styles == nil {
		rc.Styles = m.Styles()
	}
	out, err := m.RenderPage(context.Background(), rc)
	require.NoError(t, err)
	return out
}

func TestSplitFrontMatter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		front   string
		body    string
		wantErr bool
	}{
		{"no front matter", "# Hi\n", "", "# Hi\n", false},
		{"front matter", "---\ntitle: x\n---\nbody\n", "title: x\n", "body\n", false},
		{"empty block", "---\n---\nbody", "", "body", false},
		{"crlf", "---\r\ntitle: x\r\n---\r\nbody", "title: x\r\n", "body", false},
		{"closing at end", "---\ntitle: x\n---", "title: x", "", false},
		{"unclosed", "---\ntitle: x\nbody", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			front, body, err := splitFrontMatter([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingClosingDelimiter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.front, string(front))
			assert.Equal(t, tt.body, string(body))
		})
	}
}

func TestCompileMarkdown(t *testing.T) {
	s := newSite(t, nil)

	m, err := s.compile(t, "getting-started.md", "---\nstyles: [/css/site.css]\n---\n# Welcome\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"/css/site.css"}, m.Styles())

	out := render(t, m, module.RenderContext{URL: "/getting-started", CanonicalURL: "/getting-started/"})
	assert.Contains(t, out, "<title>Getting Started</title>")
	assert.Contains(t, out, `<h1 id="welcome">Welcome</h1>`)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `<link rel="stylesheet" href="/css/site.css">`)
	assert.Contains(t, out, `<link rel="canonical" href="/getting-started/">`)

	_, isCollection := m.(module.CollectionModule)
	assert.False(t, isCollection)
}

func TestCompileHTML(t *testing.T) {
	s := newSite(t, nil)

	m, err := s.compile(t, "about.html", "---\ntitle: About us\nauthor: Ada\n---\n<h1>{{.Title}}</h1><p>{{.Front.author}}</p><a href=\"{{canonical .URL}}\">{{title \"self link\"}}</a>")
	require.NoError(t, err)

	out := render(t, m, module.RenderContext{URL: "/about/index.html"})
	assert.Equal(t, `<h1>About us</h1><p>Ada</p><a href="/about/">Self Link</a>`, out)
	assert.Equal(t, "About us", m.(*Page).Title())
}

func TestCompileLayout(t *testing.T) {
	s := newSite(t, map[string]string{
		"layouts/base.html": `<main class="{{.Mode}}">{{.Content}}</main>`,
		"layouts/bad.html":  `{{ .Content `,
	})

	m, err := s.compile(t, "post.md", "---\nlayout: base.html\n---\n*hi*")
	require.NoError(t, err)
	out := render(t, m, module.RenderContext{Mode: module.ModeExport})
	assert.Equal(t, "<main class=\"export\"><p><em>hi</em></p>\n</main>", out)

	_, err = s.compile(t, "post.md", "---\nlayout: missing.html\n---\nx")
	var loadErr *pmerrors.ModuleLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.True(t, strings.HasSuffix(loadErr.Module, "layouts/missing.html"))
	assert.ErrorIs(t, err, pmerrors.ErrModuleNotFound)

	_, err = s.compile(t, "post.md", "---\nlayout: ../../etc/passwd\n---\nx")
	require.True(t, errors.As(err, &loadErr))

	_, err = s.compile(t, "post.md", "---\nlayout: bad.html\n---\nx")
	var parseErr *pmerrors.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.True(t, strings.HasSuffix(parseErr.File, "layouts/bad.html"))
}

func TestCompileParseErrors(t *testing.T) {
	s := newSite(t, nil)

	for name, content := range map[string]string{
		"template": "<p>{{ .Title </p>",
		"yaml":     "---\ntitle: [unclosed\n---\n<p></p>",
		"unclosed": "---\ntitle: x\n<p></p>",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.compile(t, "page.html", content)
			var parseErr *pmerrors.ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, "page.html", parseErr.File)
		})
	}
}

func TestRenderError(t *testing.T) {
	s := newSite(t, nil)
	m, err := s.compile(t, "page.html", `<p>{{template "missing"}}</p>`)
	require.NoError(t, err)

	_, err = m.RenderPage(context.Background(), module.RenderContext{})
	assert.Error(t, err)
}

func TestDefaultTitle(t *testing.T) {
	c := New(Options{})
	tests := map[string]string{
		"index.html":              "Home",
		"blog/index.md":           "Blog",
		"getting_started.md":      "Getting Started",
		"blog/$posts.html":        "Posts",
		"$tags/index.html":        "Tags",
		"docs/api-reference.html": "Api Reference",
	}
	for rel, want := range tests {
		assert.Equal(t, want, c.defaultTitle(rel), rel)
	}
}

const postsData = `---
title: First
date: 2026-01-01
tags: [go, web]
---
First post.
`

func blogSite(t *testing.T) *site {
	return newSite(t, map[string]string{
		"data/posts/first.md": postsData,
		"data/posts/second.md": `---
title: Second
date: 2026-02-01
tags: [go]
---
Second post.
`,
		"data/posts/third.md": `---
title: Third
date: 2026-03-01
tags: [rust]
slug: custom-third
---
Third post.
`,
	})
}

func loadCollection(t *testing.T, m module.Module, base, reqPath string) (*collection.Result, error) {
	t.Helper()
	cm, ok := m.(module.CollectionModule)
	require.True(t, ok, "not a collection module: %T", m)
	spec, err := cm.CreateCollection(context.Background())
	require.NoError(t, err)
	return collection.Load(context.Background(), spec, collection.LoadOptions{
		File:        "$posts.html",
		RequestPath: reqPath,
		Base:        base,
	})
}

func TestDeclarativePaginatedCollection(t *testing.T) {
	s := blogSite(t)

	m, err := s.compile(t, "blog/$posts.html", `---
collection:
  route: ":page?"
  paginate: true
  props:
    data: posts/*.md
    pageSize: 2
    sortBy: date
    order: desc
  rss:
    title: Blog
    description: All posts
    item:
      link: /blog/post/:slug
---
<ul>{{range .Page.Data}}<li>{{field . "title"}}</li>{{end}}</ul>{{with .Page.URL.Next}}<a href="{{.}}">next</a>{{end}}`)
	require.NoError(t, err)

	res, err := loadCollection(t, m, "/blog/posts", "/blog/posts")
	require.NoError(t, err)
	require.NotNil(t, res.Page)
	assert.Equal(t, 3, res.Page.Total)
	assert.Equal(t, []string{"/blog/posts/2"}, res.Info.AdditionalURLs)

	out := render(t, m, module.RenderContext{Props: res.Props, Page: res.Page})
	assert.Equal(t, `<ul><li>Third</li><li>Second</li></ul><a href="/blog/posts/2">next</a>`, out)

	require.NotNil(t, res.Info.RSS)
	items := res.Info.RSS.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "Third", items[0].Title)
	assert.Equal(t, "/blog/post/custom-third", items[0].Link)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), items[0].PubDate)

	res, err = loadCollection(t, m, "/blog/posts", "/blog/posts/2")
	require.NoError(t, err)
	out = render(t, m, module.RenderContext{Props: res.Props, Page: res.Page})
	assert.Equal(t, `<ul><li>First</li></ul>`, out)
}

func TestDeclarativeGroupedCollection(t *testing.T) {
	s := blogSite(t)

	m, err := s.compile(t, "$tags.html", `---
collection:
  route: ":tag/:page?"
  paginate: true
  paths: {groupBy: tags, param: tag}
  props:
    data: posts
    pageSize: .inf
    sortBy: title
    filterBy: {tags: tag}
---
{{range .Props}}{{field . "slug"}} {{end}}`)
	require.NoError(t, err)

	cm := m.(module.CollectionModule)
	spec, err := cm.CreateCollection(context.Background())
	require.NoError(t, err)

	urls, err := collection.EntryURLs(context.Background(), spec, "$tags.html", "/tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tags/go", "/tags/rust", "/tags/web"}, urls)

	res, err := loadCollection(t, m, "/tags", "/tags/go")
	require.NoError(t, err)
	assert.Equal(t, collection.Unlimited, res.Page.Page.Size)
	assert.Equal(t, "first second ", render(t, m, module.RenderContext{Props: res.Props, Page: res.Page}))

	_, err = loadCollection(t, m, "/tags", "/tags/python")
	var invalid *pmerrors.CollectionValidationError
	assert.True(t, errors.As(err, &invalid))
}

func TestDeclarativeListData(t *testing.T) {
	s := newSite(t, map[string]string{
		"data/authors.yaml": "- name: Ada\n  born: 1815\n- name: Grace\n  born: 1906\n- name: Alan\n  born: 1912\n",
		"data/links.json":   `[{"name": "home", "url": "/"}, {"name": "docs", "url": "/docs/"}]`,
	})

	m, err := s.compile(t, "$authors.html", `---
collection:
  route: /authors/:name
  paths:
    - name: Ada
    - name: Alan
  props:
    data: authors.yaml
    sortBy: born
    order: desc
---
{{range .Props}}{{field . "name"}},{{end}}`)
	require.NoError(t, err)

	res, err := loadCollection(t, m, "/authors", "/authors/Alan")
	require.NoError(t, err)
	assert.Nil(t, res.Page)
	assert.Equal(t, "Alan,Grace,Ada,", render(t, m, module.RenderContext{Props: res.Props}))

	m, err = s.compile(t, "$links.html", "---\ncollection:\n  route: \"/links\"\n  props: {data: links.json}\n---\n{{len .Props}}")
	require.NoError(t, err)
	res, err = loadCollection(t, m, "/links", "/links")
	require.NoError(t, err)
	assert.Equal(t, "2", render(t, m, module.RenderContext{Props: res.Props}))
}

func TestDeclarativeDataErrors(t *testing.T) {
	s := newSite(t, map[string]string{"data/broken.yaml": "- [unclosed\n"})

	missing, err := s.compile(t, "$a.html", "---\ncollection:\n  route: /a\n  props: {data: nope.yaml}\n---\n")
	require.NoError(t, err)
	_, err = loadCollection(t, missing, "/a", "/a")
	var loadErr *pmerrors.ModuleLoadError
	require.True(t, errors.As(err, &loadErr), "got %v", err)
	assert.ErrorIs(t, err, pmerrors.ErrModuleNotFound)

	broken, err := s.compile(t, "$b.html", "---\ncollection:\n  route: /b\n  props: {data: broken.yaml}\n---\n")
	require.NoError(t, err)
	_, err = loadCollection(t, broken, "/b", "/b")
	var parseErr *pmerrors.ParseError
	assert.True(t, errors.As(err, &parseErr), "got %v", err)

	escape, err := s.compile(t, "$c.html", "---\ncollection:\n  route: /c\n  props: {data: ../../secret.yaml}\n---\n")
	require.NoError(t, err)
	_, err = loadCollection(t, escape, "/c", "/c")
	var invalid *pmerrors.CollectionValidationError
	assert.True(t, errors.As(err, &invalid), "got %v", err)
}

func TestDeclarationValidation(t *testing.T) {
	s := newSite(t, nil)

	tests := []struct {
		name       string
		front      string
		key        string
		deprecated bool
	}{
		{"legacy key", "collection:\n  permalink: x\n  route: /a\n  props: {}", "permalink", true},
		{"unknown key", "collection:\n  route: /a\n  props: {}\n  pageSize: 3", "pageSize", false},
		{"missing props", "collection:\n  route: /a", "props", false},
		{"bad order", "collection:\n  route: /a\n  props: {order: sideways}", "props", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.compile(t, "$a.html", "---\n"+tt.front+"\n---\n")
			var invalid *pmerrors.CollectionValidationError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, tt.key, invalid.Key)
			assert.Equal(t, tt.deprecated, invalid.Deprecated)
		})
	}

	_, err := s.compile(t, "$a.html", "---\ncollection:\n---\n")
	var invalid *pmerrors.CollectionValidationError
	assert.True(t, errors.As(err, &invalid), "got %v", err)

	var parseErr *pmerrors.ParseError
	_, err = s.compile(t, "$a.html", "---\ncollection: yes\n---\n")
	assert.True(t, errors.As(err, &parseErr), "got %v", err)

	_, err = s.compile(t, "$a.html", "---\ncollection:\n  route: /a\n  props: {pageSize: 0}\n---\n")
	assert.True(t, errors.As(err, &parseErr), "got %v", err)
}

func TestCollectionPrefixWithoutDeclaration(t *testing.T) {
	s := newSite(t, nil)

	m, err := s.compile(t, "$posts.html", "<p>no collection</p>")
	require.NoError(t, err)
	_, ok := m.(module.CollectionModule)
	assert.False(t, ok)

	// A declaration on a static page is ignored.
	m, err = s.compile(t, "about.html", "---\ncollection:\n  route: /a\n  props: {}\n---\n<p>about</p>")
	require.NoError(t, err)
	_, ok = m.(module.CollectionModule)
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	s := newSite(t, map[string]string{"pages/index.md": "# Home"})
	loader := module.NewFileLoader()
	s.compiler.Register(loader, ".md", ".html")

	m, err := loader.Load(context.Background(), &urlmap.PageSource{
		FilePath: filepath.Join(s.root, "pages", "index.md"),
		RelPath:  "index.md",
	})
	require.NoError(t, err)
	assert.Contains(t, render(t, m, module.RenderContext{}), "<title>Home</title>")
}
