package server

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:0;background:#f8fafc;color:#0f172a}` +
	`main{max-width:48rem;margin:4rem auto;padding:0 1.5rem}` +
	`h1{font-size:1.75rem;margin-bottom:.25rem}` +
	`.status{color:#64748b;font-size:.875rem;text-transform:uppercase;letter-spacing:.05em}` +
	`pre{background:#0f172a;color:#f8fafc;padding:1rem;border-radius:.5rem;overflow-x:auto;white-space:pre-wrap}` +
	`code{font-family:ui-monospace,monospace}`

// ErrorPage describes a page shown instead of a rendered route.
type ErrorPage struct {
	Status int
	Title  string
	Path   string
	Detail string
	// File is the page source that failed, if any.
	File      string
	RequestID string
}

// errorPage renders p as a complete HTML document.
func errorPage(p ErrorPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>`)
		b.WriteString(templ.EscapeString(strconv.Itoa(p.Status) + " " + p.Title))
		b.WriteString(`</title><style>`)
		b.WriteString(pageStyle)
		b.WriteString(`</style></head><body><main>`)
		b.WriteString(`<p class="status">`)
		b.WriteString(strconv.Itoa(p.Status))
		b.WriteString(`</p><h1>`)
		b.WriteString(templ.EscapeString(p.Title))
		b.WriteString(`</h1><p>Path: <code>`)
		b.WriteString(templ.EscapeString(p.Path))
		b.WriteString(`</code></p>`)
		if p.File != "" {
			b.WriteString(`<p>Source: <code>`)
			b.WriteString(templ.EscapeString(p.File))
			b.WriteString(`</code></p>`)
		}
		if p.Detail != "" {
			b.WriteString(`<pre>`)
			b.WriteString(templ.EscapeString(p.Detail))
			b.WriteString(`</pre>`)
		}
		if p.RequestID != "" {
			b.WriteString(`<p class="status">Request `)
			b.WriteString(templ.EscapeString(p.RequestID))
			b.WriteString(`</p>`)
		}
		b.WriteString(`</main></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
