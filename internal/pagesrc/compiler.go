// Package pagesrc compiles page sources into modules. Markdown pages are
// rendered with goldmark, HTML pages are html/template templates, and either
// kind may carry YAML front matter with a title, a layout, styles and, for
// collection sources, a declarative collection.
package pagesrc

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pagemill/internal/collection"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/urlmap"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Options configures a Compiler.
type Options struct {
	// LayoutsDir holds templates named by a page's "layout" front matter.
	LayoutsDir string
	// DataDir is where collection data sources are resolved.
	DataDir          string
	CollectionPrefix string
	Logger           logging.Logger
}

// Compiler implements module.Compiler for markdown and HTML page sources.
type Compiler struct {
	layoutsDir string
	dataDir    string
	prefix     string
	logger     logging.Logger
	markdown   goldmark.Markdown
}

var _ module.Compiler = (*Compiler)(nil)

// New creates a Compiler.
func New(opts Options) *Compiler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	prefix := opts.CollectionPrefix
	if prefix == "" {
		prefix = "$"
	}
	return &Compiler{
		layoutsDir: opts.LayoutsDir,
		dataDir:    opts.DataDir,
		prefix:     prefix,
		logger:     logger.WithComponent("pagesrc"),
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// Register installs the compiler on loader for each extension.
func (c *Compiler) Register(loader *module.FileLoader, extensions ...string) {
	for _, ext := range extensions {
		loader.Register(ext, c)
	}
}

// Compile implements module.Compiler.
func (c *Compiler) Compile(ctx context.Context, source *urlmap.PageSource, content []byte) (module.Module, error) {
	front, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, &pmerrors.ParseError{File: source.RelPath, Cause: err}
	}
	fields, fm, err := parseFrontMatter(front)
	if err != nil {
		return nil, &pmerrors.ParseError{File: source.RelPath, Cause: fmt.Errorf("front matter: %w", err)}
	}

	page := &Page{
		source: source,
		front:  fields,
		title:  fm.Title,
		styles: fm.Styles,
	}
	if page.title == "" {
		page.title = c.defaultTitle(source.RelPath)
	}

	if fm.Layout != "" {
		page.layout, err = c.loadLayout(source, fm.Layout)
		if err != nil {
			return nil, err
		}
	}

	if strings.EqualFold(filepath.Ext(source.FilePath), ".md") {
		html, err := c.renderMarkdown(body)
		if err != nil {
			return nil, &pmerrors.ParseError{File: source.RelPath, Cause: err}
		}
		page.content = template.HTML(html)
		if page.layout == nil {
			page.layout = defaultDocument
		}
	} else {
		page.body, err = template.New(source.RelPath).Funcs(c.funcs()).Parse(string(body))
		if err != nil {
			return nil, &pmerrors.ParseError{File: source.RelPath, Cause: err}
		}
	}

	raw, declared := fields["collection"]
	if source.Kind != urlmap.KindCollection {
		if declared {
			c.logger.Warn(ctx, nil, "collection block ignored on a page without the collection prefix",
				"file", source.RelPath, "prefix", c.prefix)
		}
		return page, nil
	}
	if !declared {
		// The runtime reports the missing declaration per request.
		return page, nil
	}

	rawDecl, ok := raw.(map[string]any)
	if !ok {
		return nil, pmerrors.NewCollectionError(source.RelPath, "collection must be a mapping, got %T", raw)
	}
	if err := collection.DecodeKeys(rawDecl, source.RelPath); err != nil {
		return nil, err
	}
	spec, err := fm.Collection.spec(c, source)
	if err != nil {
		return nil, err
	}

	return &CollectionPage{Page: page, spec: spec}, nil
}

func (c *Compiler) renderMarkdown(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.markdown.Convert(body, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Compiler) loadLayout(source *urlmap.PageSource, name string) (*template.Template, error) {
	layoutPath := filepath.Join(c.layoutsDir, filepath.FromSlash(name))
	display := filepath.ToSlash(layoutPath)

	if !within(c.layoutsDir, layoutPath) {
		return nil, &pmerrors.ModuleLoadError{
			File:   source.RelPath,
			Module: display,
			Cause:  fmt.Errorf("layout outside %s: %w", c.layoutsDir, pmerrors.ErrModuleNotFound),
		}
	}

	content, err := os.ReadFile(layoutPath)
	if err != nil {
		cause := err
		if os.IsNotExist(err) {
			cause = pmerrors.ErrModuleNotFound
		}
		return nil, &pmerrors.ModuleLoadError{File: source.RelPath, Module: display, Cause: cause}
	}

	tmpl, err := template.New(path.Base(display)).Funcs(c.funcs()).Parse(string(content))
	if err != nil {
		return nil, &pmerrors.ParseError{File: display, Cause: err}
	}
	return tmpl, nil
}

// defaultTitle derives a title from the file name: "getting-started.md"
// becomes "Getting Started", an index page takes its directory's name.
func (c *Compiler) defaultTitle(relPath string) string {
	name := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
	name = strings.TrimPrefix(name, c.prefix)
	if name == "index" {
		dir := path.Base(path.Dir(relPath))
		if dir == "." || dir == "/" {
			return "Home"
		}
		name = strings.TrimPrefix(dir, c.prefix)
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.English).String(name)
}

// within reports whether target is inside dir.
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
