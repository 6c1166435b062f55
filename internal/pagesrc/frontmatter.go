package pagesrc

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter is returned for a document that opens a front
// matter block and never closes it.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// splitFrontMatter separates a leading "---" delimited YAML block from the
// body. Documents without the block return the whole input as body.
func splitFrontMatter(content []byte) (front, body []byte, err error) {
	nl := []byte("\n")
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		nl = []byte("\r\n")
	}

	open := append([]byte("---"), nl...)
	if !bytes.HasPrefix(content, open) {
		return nil, content, nil
	}
	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], nil
	}

	closing := append(append([]byte{}, nl...), open...)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		// A closing delimiter on the last line has no trailing newline.
		last := append(append([]byte{}, nl...), []byte("---")...)
		if bytes.HasSuffix(rest, last) {
			return rest[:len(rest)-len(last)], []byte{}, nil
		}
		return nil, nil, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closing):], nil
}

// frontMatter is the typed view of a page's front matter.
type frontMatter struct {
	Title      string          `yaml:"title"`
	Layout     string          `yaml:"layout"`
	Styles     []string        `yaml:"styles"`
	Collection *collectionDecl `yaml:"collection"`
}

// parseFrontMatter decodes front matter into both the raw field map used by
// templates and the typed view.
func parseFrontMatter(front []byte) (map[string]any, *frontMatter, error) {
	fields, err := parseFields(front)
	if err != nil {
		return nil, nil, err
	}
	typed := &frontMatter{}
	if len(fields) == 0 {
		return fields, typed, nil
	}
	if err := yaml.Unmarshal(front, typed); err != nil {
		return nil, nil, err
	}
	return fields, typed, nil
}

// parseFields decodes front matter into a field map.
func parseFields(front []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(bytes.TrimSpace(front)) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(front, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}
