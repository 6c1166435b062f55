// Package canonical normalizes request paths into the canonical form used for
// comparison and for navigation metadata: no index.html suffix, no page-1
// marker, a trailing slash on extensionless paths and no duplicate slashes.
package canonical

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Rule is one normalization step.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	reIndexHTML = regexp.MustCompile(`/index\.html$`)
	rePageOne   = regexp.MustCompile(`/1/?$`)
	reSlashes   = regexp.MustCompile(`/{2,}`)
)

// Rules are applied in order. Stripping index.html must precede stripping the
// page-1 marker so "/blog/1/index.html" collapses to "/blog/", and the
// trailing slash is added only after both so "/blog/1" does not become
// "/blog/1/".
var Rules = []Rule{
	{Name: "strip-index-html", Apply: func(p string) string {
		return reIndexHTML.ReplaceAllString(p, "")
	}},
	{Name: "strip-page-one", Apply: func(p string) string {
		return rePageOne.ReplaceAllString(p, "")
	}},
	{Name: "trailing-slash", Apply: func(p string) string {
		if path.Ext(lastSegment(p)) != "" {
			return p
		}
		return strings.TrimRight(p, "/") + "/"
	}},
	{Name: "collapse-slashes", Apply: func(p string) string {
		return reSlashes.ReplaceAllString(p, "/")
	}},
}

// Path returns the canonical form of a request path.
func Path(p string) string {
	for _, rule := range Rules {
		p = rule.Apply(p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// URL returns the canonical path joined to base, a site origin such as
// "https://example.com". An empty or unparsable base yields the bare path.
func URL(p, base string) string {
	canon := Path(p)
	if base == "" {
		return canon
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return canon
	}
	// canon is an escaped path; keep its encoding.
	joined := strings.TrimRight(u.EscapedPath(), "/") + canon
	if decoded, err := url.PathUnescape(joined); err == nil {
		u.Path, u.RawPath = decoded, joined
	} else {
		u.Path = joined
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// TrimIndex strips an index.html suffix and a trailing slash, keeping the
// page-1 marker intact. It produces the key collections match requests on.
func TrimIndex(p string) string {
	p = reIndexHTML.ReplaceAllString(p, "/")
	p = reSlashes.ReplaceAllString(p, "/")
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
