// Package urlmap builds the immutable URL map of a page tree.
//
// Every page source under the root becomes either a static route, reachable
// through its three aliases ("/p", "/p/" and "/p/index.html"), or a
// collection route keyed by its base URL. Two sources claiming the same alias,
// or collection bases that are equal or nested, fail construction with a
// ConflictError. Maps are never mutated after Build returns; Store swaps whole
// snapshots atomically.
package urlmap

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/pagemill/internal/errors"
)

// Kind distinguishes static pages from collections.
type Kind int

const (
	KindStatic Kind = iota
	KindCollection
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// PageSource is one page file discovered under the root.
type PageSource struct {
	// FilePath is the path on disk, root included.
	FilePath string
	// RelPath is the slash-separated path relative to the root.
	RelPath string
	Kind    Kind
	// URL is the canonical URL of a static page or the base of a collection.
	URL string
}

// Name returns the collection name (the base name with prefix and extension
// removed) or the page's base name.
func (s *PageSource) Name() string {
	base := path.Base(s.RelPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.TrimLeft(base, "$")
}

// Options controls which files become pages.
type Options struct {
	// Extensions lists page source extensions, each with a leading dot.
	Extensions []string
	// CollectionPrefix marks collection sources when it starts the base name.
	CollectionPrefix string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Extensions:       []string{".html", ".md"},
		CollectionPrefix: "$",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Extensions) == 0 {
		o.Extensions = d.Extensions
	}
	if o.CollectionPrefix == "" {
		o.CollectionPrefix = d.CollectionPrefix
	}
	return o
}

// URLMap is an immutable snapshot of the routes under one root.
type URLMap struct {
	Root        string
	Static      map[string]*PageSource
	Collections map[string]*PageSource
	Version     uint64
	BuiltAt     time.Time
}

// Route describes one entry of the map for listings.
type Route struct {
	URL  string `json:"url" yaml:"url"`
	Kind string `json:"kind" yaml:"kind"`
	File string `json:"file" yaml:"file"`
}

// Empty returns a map with no routes.
func Empty(root string) *URLMap {
	return &URLMap{
		Root:        root,
		Static:      make(map[string]*PageSource),
		Collections: make(map[string]*PageSource),
	}
}

// Build scans root and returns a new URL map.
func Build(root string, opts Options) (*URLMap, error) {
	opts = opts.withDefaults()

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewIOError("PAGES_ROOT", "cannot read pages root", err).WithFile(root)
	}
	if !info.IsDir() {
		return nil, errors.NewConfigError("PAGES_ROOT", "pages root is not a directory").WithFile(root)
	}

	m := Empty(root)
	m.BuiltAt = time.Now()

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			return nil
		}
		if !hasExtension(name, opts.Extensions) {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return m.add(p, filepath.ToSlash(rel), opts)
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

func hasExtension(name string, extensions []string) bool {
	ext := filepath.Ext(name)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (m *URLMap) add(filePath, rel string, opts Options) error {
	withoutExt := "/" + strings.TrimSuffix(rel, path.Ext(rel))
	dir, base := path.Split(withoutExt)

	if strings.HasPrefix(base, opts.CollectionPrefix) {
		// Only the last segment loses the prefix.
		collectionBase := dir + strings.TrimPrefix(base, opts.CollectionPrefix)
		collectionBase = stripIndex(collectionBase)
		if len(collectionBase) > 1 {
			collectionBase = strings.TrimRight(collectionBase, "/")
		}
		source := &PageSource{FilePath: filePath, RelPath: rel, Kind: KindCollection, URL: collectionBase}
		return m.addCollection(source)
	}

	url := stripIndex(withoutExt)
	source := &PageSource{FilePath: filePath, RelPath: rel, Kind: KindStatic}
	trimmed := strings.TrimRight(url, "/")
	source.URL = trimmed + "/"

	aliases := []string{trimmed, trimmed + "/", trimmed + "/index.html"}
	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		if existing, ok := m.Static[alias]; ok {
			return &errors.ConflictError{URL: alias, Existing: existing.RelPath, Incoming: rel}
		}
	}
	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		m.Static[alias] = source
	}
	return nil
}

func (m *URLMap) addCollection(source *PageSource) error {
	for base, existing := range m.Collections {
		if overlaps(base, source.URL) {
			url := source.URL
			if len(base) < len(url) {
				url = base
			}
			return &errors.ConflictError{URL: url, Existing: existing.RelPath, Incoming: source.RelPath, Collection: true}
		}
	}
	m.Collections[source.URL] = source
	return nil
}

// overlaps reports whether two collection bases are equal or one is a
// segment-wise prefix of the other.
func overlaps(a, b string) bool {
	if a == b || a == "/" || b == "/" {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// stripIndex removes a trailing "index" segment, keeping the slash.
func stripIndex(url string) string {
	if url == "/index" {
		return "/"
	}
	if strings.HasSuffix(url, "/index") {
		return strings.TrimSuffix(url, "index")
	}
	return url
}

// StaticEntries returns the explicit "/index.html" alias of every static
// page, sorted. These are the export entry points.
func (m *URLMap) StaticEntries() []string {
	entries := make([]string, 0, len(m.Static)/3+1)
	for url := range m.Static {
		if strings.HasSuffix(url, ".html") {
			entries = append(entries, url)
		}
	}
	sort.Strings(entries)
	return entries
}

// CollectionSources returns collection sources ordered by base URL.
func (m *URLMap) CollectionSources() []*PageSource {
	bases := make([]string, 0, len(m.Collections))
	for base := range m.Collections {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	sources := make([]*PageSource, 0, len(bases))
	for _, base := range bases {
		sources = append(sources, m.Collections[base])
	}
	return sources
}

// Routes lists every static alias and collection base, sorted by URL.
func (m *URLMap) Routes() []Route {
	routes := make([]Route, 0, len(m.Static)+len(m.Collections))
	for url, source := range m.Static {
		routes = append(routes, Route{URL: url, Kind: source.Kind.String(), File: source.RelPath})
	}
	for base, source := range m.Collections {
		routes = append(routes, Route{URL: base + "/*", Kind: source.Kind.String(), File: source.RelPath})
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].URL < routes[j].URL
	})
	return routes
}

// Len returns the number of distinct page sources in the map.
func (m *URLMap) Len() int {
	seen := make(map[*PageSource]struct{}, len(m.Static)/3+len(m.Collections))
	for _, s := range m.Static {
		seen[s] = struct{}{}
	}
	return len(seen) + len(m.Collections)
}

// String summarizes the map for logs.
func (m *URLMap) String() string {
	return fmt.Sprintf("urlmap v%d (%d pages, %d collections)", m.Version, m.Len()-len(m.Collections), len(m.Collections))
}
