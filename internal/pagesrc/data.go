package pagesrc

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"gopkg.in/yaml.v3"
)

// dataSource reads collection entries from the data directory. The pattern
// names a markdown file, a YAML or JSON list, a directory of markdown files
// or a glob over any of these.
type dataSource struct {
	dir      string
	pattern  string
	file     string
	compiler *Compiler
}

func (s *dataSource) load(ctx context.Context) ([]map[string]any, error) {
	if s.pattern == "" {
		return nil, nil
	}

	full := filepath.Join(s.dir, filepath.FromSlash(s.pattern))
	if !within(s.dir, full) {
		return nil, &pmerrors.CollectionValidationError{
			File:   s.file,
			Key:    "props",
			Reason: fmt.Sprintf("data %q is outside the data directory", s.pattern),
		}
	}

	var files []string
	if strings.ContainsAny(s.pattern, "*?[") {
		matches, err := filepath.Glob(full)
		if err != nil {
			return nil, &pmerrors.CollectionValidationError{File: s.file, Key: "props", Reason: err.Error()}
		}
		files = matches
	} else {
		info, err := os.Stat(full)
		if err != nil {
			cause := err
			if os.IsNotExist(err) {
				cause = pmerrors.ErrModuleNotFound
			}
			return nil, &pmerrors.ModuleLoadError{File: s.file, Module: filepath.ToSlash(full), Cause: cause}
		}
		if info.IsDir() {
			matches, err := filepath.Glob(filepath.Join(full, "*.md"))
			if err != nil {
				return nil, err
			}
			files = matches
		} else {
			files = []string{full}
		}
	}
	sort.Strings(files)

	var entries []map[string]any
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := s.readFile(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, loaded...)
	}
	return entries, nil
}

func (s *dataSource) readFile(path string) ([]map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &pmerrors.ModuleLoadError{File: s.file, Module: filepath.ToSlash(path), Cause: err}
	}
	display := filepath.ToSlash(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		entry, err := s.markdownEntry(path, content)
		if err != nil {
			return nil, &pmerrors.ParseError{File: display, Cause: err}
		}
		return []map[string]any{entry}, nil
	case ".yaml", ".yml", ".json":
		// JSON is valid YAML, so one decoder serves both.
		var list []map[string]any
		if err := yaml.Unmarshal(content, &list); err != nil {
			var single map[string]any
			if yaml.Unmarshal(content, &single) != nil {
				return nil, &pmerrors.ParseError{File: display, Cause: err}
			}
			list = []map[string]any{single}
		}
		return list, nil
	default:
		return nil, nil
	}
}

// markdownEntry turns a markdown data file into an entry holding its front
// matter fields plus slug, file and rendered content.
func (s *dataSource) markdownEntry(path string, content []byte) (map[string]any, error) {
	front, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(front)
	if err != nil {
		return nil, err
	}
	html, err := s.compiler.renderMarkdown(body)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		rel = path
	}
	base := filepath.Base(path)

	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	if _, ok := entry["slug"]; !ok {
		entry["slug"] = strings.TrimSuffix(base, filepath.Ext(base))
	}
	entry["file"] = filepath.ToSlash(rel)
	entry["content"] = template.HTML(html)
	return entry, nil
}
