package pagesrc

import (
	"bytes"
	"context"
	"html/template"
	"strings"

	"github.com/conneroisu/pagemill/internal/canonical"
	"github.com/conneroisu/pagemill/internal/collection"
	"github.com/conneroisu/pagemill/internal/module"
	"github.com/conneroisu/pagemill/internal/urlmap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Page is a compiled static page.
type Page struct {
	source *urlmap.PageSource
	front  map[string]any
	title  string
	styles []string

	// body is set for HTML sources, content for markdown sources.
	body    *template.Template
	content template.HTML
	layout  *template.Template
}

// CollectionPage is a compiled page that declares a collection.
type CollectionPage struct {
	*Page
	spec *collection.Spec
}

var (
	_ module.Module           = (*Page)(nil)
	_ module.CollectionModule = (*CollectionPage)(nil)
)

// TemplateData is the value templates and layouts execute with.
type TemplateData struct {
	Title        string
	Front        map[string]any
	Props        any
	Page         *collection.Page
	Params       collection.Params
	URL          string
	CanonicalURL string
	Styles       []string
	Mode         string
	// Content is the rendered page body, for layouts.
	Content template.HTML
}

// Title returns the page title.
func (p *Page) Title() string {
	return p.title
}

// Styles implements module.Module.
func (p *Page) Styles() []string {
	return p.styles
}

// RenderPage implements module.Module.
func (p *Page) RenderPage(_ context.Context, rc module.RenderContext) (string, error) {
	data := TemplateData{
		Title:        p.title,
		Front:        p.front,
		Props:        rc.Props,
		Page:         rc.Page,
		Params:       rc.Params,
		URL:          rc.URL,
		CanonicalURL: rc.CanonicalURL,
		Styles:       rc.Styles,
		Mode:         rc.Mode.String(),
		Content:      p.content,
	}

	if p.body != nil {
		var buf bytes.Buffer
		if err := p.body.Execute(&buf, data); err != nil {
			return "", err
		}
		data.Content = template.HTML(buf.String())
	}

	if p.layout == nil {
		return string(data.Content), nil
	}

	var out bytes.Buffer
	if err := p.layout.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// CreateCollection implements module.CollectionModule.
func (c *CollectionPage) CreateCollection(context.Context) (*collection.Spec, error) {
	return c.spec, nil
}

func (c *Compiler) funcs() template.FuncMap {
	return template.FuncMap{
		"canonical": canonical.Path,
		"title": func(s string) string {
			return cases.Title(language.English).String(s)
		},
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"field": func(entry any, key string) any {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil
			}
			return m[key]
		},
	}
}

// defaultDocument wraps markdown pages that name no layout.
var defaultDocument = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="canonical" href="{{.CanonicalURL}}">
{{range .Styles}}<link rel="stylesheet" href="{{.}}">
{{end}}</head>
<body>
{{.Content}}
</body>
</html>
`))
