// Package resolver decides which page source answers a request path.
package resolver

import (
	"net/url"
	"strings"

	"github.com/conneroisu/pagemill/internal/urlmap"
)

// DecisionKind is the outcome class of a resolution.
type DecisionKind int

const (
	NotFound DecisionKind = iota
	StaticHit
	CollectionHit
)

// String returns the string representation of the DecisionKind
func (k DecisionKind) String() string {
	switch k {
	case StaticHit:
		return "static"
	case CollectionHit:
		return "collection"
	default:
		return "not-found"
	}
}

// Decision is the result of resolving one request path.
type Decision struct {
	Kind   DecisionKind
	Source *urlmap.PageSource
	// Path is the decoded request path.
	Path string
	// Base is the matched collection base for a CollectionHit.
	Base string
}

// Found reports whether the decision names a source.
func (d Decision) Found() bool {
	return d.Kind != NotFound
}

// Resolve maps a request path to a page source of m. The map is read but
// never retained, so callers should pass the snapshot captured for the
// request.
func Resolve(m *urlmap.URLMap, requestPath string) Decision {
	decoded, err := url.PathUnescape(requestPath)
	if err != nil || !strings.HasPrefix(decoded, "/") {
		return Decision{Kind: NotFound, Path: requestPath}
	}

	key := decoded
	if strings.HasSuffix(key, "/") {
		key += "index.html"
	}
	if source, ok := m.Static[key]; ok {
		return Decision{Kind: StaticHit, Source: source, Path: decoded}
	}

	if base, source, ok := matchCollection(m, decoded); ok {
		return Decision{Kind: CollectionHit, Source: source, Path: decoded, Base: base}
	}

	return Decision{Kind: NotFound, Path: decoded}
}

// matchCollection walks the path from its full length down, cutting one
// segment at a time, until a collection base matches. The root base is
// tried last.
func matchCollection(m *urlmap.URLMap, decoded string) (string, *urlmap.PageSource, bool) {
	if len(m.Collections) == 0 {
		return "", nil, false
	}

	candidate := strings.TrimRight(decoded, "/")
	for candidate != "" {
		if source, ok := m.Collections[candidate]; ok {
			return candidate, source, true
		}
		i := strings.LastIndex(candidate, "/")
		if i < 0 {
			break
		}
		candidate = candidate[:i]
	}

	if source, ok := m.Collections["/"]; ok {
		return "/", source, true
	}
	return "", nil, false
}
