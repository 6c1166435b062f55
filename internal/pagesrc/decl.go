package pagesrc

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/pagemill/internal/collection"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/pattern"
	"github.com/conneroisu/pagemill/internal/urlmap"
	"gopkg.in/yaml.v3"
)

// collectionDecl is a collection declared in front matter:
//
//	collection:
//	  route: "tag/:tag/:page?"
//	  paginate: true
//	  paths: {groupBy: tags, param: tag}
//	  props:
//	    data: posts/*.md
//	    pageSize: 5
//	    sortBy: date
//	    order: desc
//	    filterBy: {tags: tag}
//	  rss:
//	    title: Posts
//	    item: {title: title, link: "/blog/:slug", pubDate: date}
type collectionDecl struct {
	Route    string     `yaml:"route"`
	Paginate bool       `yaml:"paginate"`
	Paths    *pathsDecl `yaml:"paths"`
	Props    *propsDecl `yaml:"props"`
	RSS      *rssDecl   `yaml:"rss"`
}

// pathsDecl is either a list of parameter maps or a group-by rule.
type pathsDecl struct {
	List    []map[string]string
	GroupBy string
	Param   string
}

// UnmarshalYAML accepts a sequence or a {groupBy, param} mapping.
func (p *pathsDecl) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		return node.Decode(&p.List)
	case yaml.MappingNode:
		var g struct {
			GroupBy string `yaml:"groupBy"`
			Param   string `yaml:"param"`
		}
		if err := node.Decode(&g); err != nil {
			return err
		}
		if g.GroupBy == "" {
			return fmt.Errorf("line %d: paths mapping needs a groupBy field", node.Line)
		}
		p.GroupBy = g.GroupBy
		p.Param = g.Param
		if p.Param == "" {
			p.Param = g.GroupBy
		}
		return nil
	default:
		return fmt.Errorf("line %d: paths must be a list or a groupBy mapping", node.Line)
	}
}

// pageSize accepts an integer, ".inf" or "all".
type pageSize int

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *pageSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && strings.EqualFold(node.Value, "all") {
		*s = collection.Unlimited
		return nil
	}
	var f float64
	if err := node.Decode(&f); err != nil {
		return fmt.Errorf("line %d: pageSize must be a number, .inf or all", node.Line)
	}
	switch {
	case math.IsInf(f, 1):
		*s = collection.Unlimited
	case f < 1 || f != math.Trunc(f):
		return fmt.Errorf("line %d: pageSize must be a positive integer", node.Line)
	default:
		*s = pageSize(f)
	}
	return nil
}

type propsDecl struct {
	Data     string            `yaml:"data"`
	PageSize pageSize          `yaml:"pageSize"`
	SortBy   string            `yaml:"sortBy"`
	Order    string            `yaml:"order"`
	FilterBy map[string]string `yaml:"filterBy"`
}

type rssDecl struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Item        struct {
		Title       string `yaml:"title"`
		Link        string `yaml:"link"`
		Description string `yaml:"description"`
		PubDate     string `yaml:"pubDate"`
	} `yaml:"item"`
}

// spec turns the declaration into a collection spec. Data is read on every
// props call so edits show up without recompiling the page.
func (d *collectionDecl) spec(c *Compiler, source *urlmap.PageSource) (*collection.Spec, error) {
	props := d.Props
	if props == nil {
		props = &propsDecl{}
	}
	switch strings.ToLower(props.Order) {
	case "", "asc", "desc":
	default:
		return nil, &pmerrors.CollectionValidationError{File: source.RelPath, Key: "props", Reason: fmt.Sprintf("order must be asc or desc, got %q", props.Order)}
	}

	data := &dataSource{
		dir:      c.dataDir,
		pattern:  props.Data,
		file:     source.RelPath,
		compiler: c,
	}

	spec := &collection.Spec{
		Route:    d.Route,
		Paginate: d.Paginate,
		Props: func(ctx context.Context, in collection.PropsInput) (any, error) {
			entries, err := data.load(ctx)
			if err != nil {
				return nil, err
			}
			entries = filterEntries(entries, props.FilterBy, in.Params)
			sortEntries(entries, props.SortBy, strings.EqualFold(props.Order, "desc"))

			items := collection.Items(entries)
			if d.Paginate {
				page := in.Paginator.Paginate(items, collection.PageOptions{PageSize: int(props.PageSize)})
				return page.Data, nil
			}
			return items, nil
		},
	}

	if d.Paths != nil {
		spec.Paths = d.Paths.pathsFunc(data)
	}

	if d.RSS != nil {
		item, err := d.RSS.itemFunc(source.RelPath)
		if err != nil {
			return nil, err
		}
		spec.RSS = &collection.RSS{Title: d.RSS.Title, Description: d.RSS.Description, Item: item}
	}

	return spec, nil
}

func (p *pathsDecl) pathsFunc(data *dataSource) collection.PathsFunc {
	if p.GroupBy == "" {
		combos := make([]collection.Params, 0, len(p.List))
		for _, m := range p.List {
			combo := make(collection.Params, len(m))
			for k, v := range m {
				combo[k] = v
			}
			combos = append(combos, combo)
		}
		return func(context.Context) ([]collection.Params, error) {
			return combos, nil
		}
	}

	return func(ctx context.Context) ([]collection.Params, error) {
		entries, err := data.load(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		var values []string
		for _, entry := range entries {
			for _, v := range fieldValues(entry[p.GroupBy]) {
				if _, dup := seen[v]; dup || v == "" {
					continue
				}
				seen[v] = struct{}{}
				values = append(values, v)
			}
		}
		sort.Strings(values)

		combos := make([]collection.Params, 0, len(values))
		for _, v := range values {
			combos = append(combos, collection.Params{p.Param: v})
		}
		return combos, nil
	}
}

func (r *rssDecl) itemFunc(file string) (func(any) collection.FeedItem, error) {
	titleKey := orDefault(r.Item.Title, "title")
	descKey := orDefault(r.Item.Description, "description")
	dateKey := orDefault(r.Item.PubDate, "date")
	linkKey := orDefault(r.Item.Link, "url")

	var link *pattern.Pattern
	if strings.HasPrefix(linkKey, "/") {
		var err error
		link, err = pattern.Compile(linkKey)
		if err != nil {
			return nil, &pmerrors.CollectionValidationError{File: file, Key: "rss", Reason: err.Error()}
		}
	}

	return func(entry any) collection.FeedItem {
		m, _ := entry.(map[string]any)
		item := collection.FeedItem{
			Title:       stringValue(m[titleKey]),
			Description: stringValue(m[descKey]),
			PubDate:     timeValue(m[dateKey]),
		}
		if link == nil {
			item.Link = stringValue(m[linkKey])
			return item
		}
		params := make(pattern.Params, len(m))
		for k, v := range m {
			params[k] = stringValue(v)
		}
		if u, err := link.Build(params); err == nil {
			item.Link = u
		}
		return item
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// filterEntries keeps entries whose field matches the request parameter
// named by filterBy[field]. Unset parameters do not filter.
func filterEntries(entries []map[string]any, filterBy map[string]string, params collection.Params) []map[string]any {
	if len(filterBy) == 0 {
		return entries
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		keep := true
		for field, param := range filterBy {
			want := params[param]
			if want == "" {
				continue
			}
			if !containsValue(fieldValues(entry[field]), want) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, entry)
		}
	}
	return out
}

func sortEntries(entries []map[string]any, key string, desc bool) {
	if key == "" {
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		c := compareValues(entries[i][key], entries[j][key])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(stringValue(a), stringValue(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// fieldValues flattens a scalar or list field to strings.
func fieldValues(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, stringValue(item))
		}
		return out
	case []string:
		return x
	default:
		return []string{stringValue(x)}
	}
}

func containsValue(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func timeValue(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
