// Package pattern compiles route patterns such as "/tag/:tag/:page?" into a
// matcher and a path builder that are exact inverses of each other.
//
// A pattern is a sequence of "/"-separated segments. Each segment is either a
// literal, a named parameter ":name" matching exactly one non-empty segment,
// or an optional parameter ":name?" that may be absent together with its
// leading slash.
package pattern

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Params holds matched or to-be-substituted parameter values by name.
type Params map[string]string

var reParamName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type segment struct {
	literal  string
	param    string
	optional bool
}

func (s segment) isParam() bool { return s.param != "" }

// Pattern is a compiled route pattern.
type Pattern struct {
	raw      string
	segments []segment
	names    []string
}

// Compile parses a route pattern. The pattern must be absolute.
func Compile(route string) (*Pattern, error) {
	if !strings.HasPrefix(route, "/") {
		return nil, fmt.Errorf("route %q must start with /", route)
	}

	p := &Pattern{raw: route}
	seen := make(map[string]bool)

	for _, part := range strings.Split(strings.Trim(route, "/"), "/") {
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ":") {
			p.segments = append(p.segments, segment{literal: part})
			continue
		}

		name := strings.TrimPrefix(part, ":")
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")
		if !reParamName.MatchString(name) {
			return nil, fmt.Errorf("route %q: invalid parameter %q", route, part)
		}
		if seen[name] {
			return nil, fmt.Errorf("route %q: duplicate parameter %q", route, name)
		}
		seen[name] = true

		p.segments = append(p.segments, segment{param: name, optional: optional})
		p.names = append(p.names, name)
	}

	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(route string) *Pattern {
	p, err := Compile(route)
	if err != nil {
		panic(err)
	}
	return p
}

// Join resolves route against a collection base. Absolute routes are
// returned unchanged; relative ones are appended to base.
func Join(base, route string) string {
	if strings.HasPrefix(route, "/") {
		return route
	}
	joined := path.Join("/", base, route)
	if strings.HasSuffix(route, "/") && joined != "/" {
		joined += "/"
	}
	return joined
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.raw
}

// Names returns parameter names in declaration order.
func (p *Pattern) Names() []string {
	return append([]string(nil), p.names...)
}

// HasParam reports whether the pattern declares the named parameter.
func (p *Pattern) HasParam(name string) bool {
	for _, n := range p.names {
		if n == name {
			return true
		}
	}
	return false
}

// IsOptional reports whether the named parameter is declared optional.
func (p *Pattern) IsOptional(name string) bool {
	for _, s := range p.segments {
		if s.param == name {
			return s.optional
		}
	}
	return false
}

// Match matches a request path against the pattern. One trailing slash is
// tolerated and segments are percent-decoded. Absent optional parameters are
// not present in the returned Params.
func (p *Pattern) Match(reqPath string) (Params, bool) {
	if !strings.HasPrefix(reqPath, "/") {
		return nil, false
	}
	trimmed := strings.TrimPrefix(reqPath, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")

	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}

	decoded := make([]string, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, false
		}
		v, err := url.PathUnescape(part)
		if err != nil {
			return nil, false
		}
		decoded[i] = v
	}

	params := make(Params)
	if !p.match(0, decoded, params) {
		return nil, false
	}
	return params, true
}

func (p *Pattern) match(i int, parts []string, params Params) bool {
	if i == len(p.segments) {
		return len(parts) == 0
	}

	seg := p.segments[i]
	if seg.optional {
		if len(parts) > 0 {
			params[seg.param] = parts[0]
			if p.match(i+1, parts[1:], params) {
				return true
			}
			delete(params, seg.param)
		}
		return p.match(i+1, parts, params)
	}

	if len(parts) == 0 {
		return false
	}
	if seg.isParam() {
		params[seg.param] = parts[0]
		if p.match(i+1, parts[1:], params) {
			return true
		}
		delete(params, seg.param)
		return false
	}
	if seg.literal != parts[0] {
		return false
	}
	return p.match(i+1, parts[1:], params)
}

// Build substitutes params into the pattern. Optional parameters with an
// empty or missing value are omitted; missing required parameters are an
// error. Values are path-escaped.
func (p *Pattern) Build(params Params) (string, error) {
	parts := make([]string, 0, len(p.segments))
	for _, seg := range p.segments {
		if !seg.isParam() {
			parts = append(parts, seg.literal)
			continue
		}
		value := params[seg.param]
		if value == "" {
			if seg.optional {
				continue
			}
			return "", fmt.Errorf("route %q: missing value for parameter %q", p.raw, seg.param)
		}
		if strings.Contains(value, "/") {
			return "", fmt.Errorf("route %q: value for parameter %q must be a single segment, got %q", p.raw, seg.param, value)
		}
		parts = append(parts, url.PathEscape(value))
	}
	return "/" + strings.Join(parts, "/"), nil
}
