package feed

import (
	"encoding/xml"
	"io"
	"sort"

	"github.com/conneroisu/pagemill/internal/canonical"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// WriteSitemap encodes the canonical URL of every path, deduplicated and
// sorted. lastMod is written when not empty.
func WriteSitemap(w io.Writer, site string, paths []string, lastMod string) error {
	seen := make(map[string]struct{}, len(paths))
	locs := make([]string, 0, len(paths))
	for _, p := range paths {
		loc := canonical.URL(p, site)
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		locs = append(locs, loc)
	}
	sort.Strings(locs)

	set := sitemapURLSet{XMLNS: sitemapNS, URLs: make([]sitemapURL, 0, len(locs))}
	for _, loc := range locs {
		set.URLs = append(set.URLs, sitemapURL{Loc: loc, LastMod: lastMod})
	}
	return encode(w, set)
}
