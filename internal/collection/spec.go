// Package collection loads collection pages: it matches a request against a
// collection's route, finds the declared parameter combination it belongs
// to, runs the props function with a request-scoped Paginator and enforces
// the pagination contract afterwards.
package collection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/pattern"
)

// PageParam is the route parameter reserved for the page number.
const PageParam = "page"

// Unlimited as a page size puts the whole dataset on one page.
const Unlimited = -1

// DefaultPageSize applies when neither the call nor the configuration sets one.
const DefaultPageSize = 10

// Params is one combination of route parameter values.
type Params = pattern.Params

// PathsFunc enumerates every parameter combination that exists.
type PathsFunc func(ctx context.Context) ([]Params, error)

// PropsFunc produces the page props for one parameter combination.
type PropsFunc func(ctx context.Context, in PropsInput) (any, error)

// PropsInput is what a PropsFunc receives.
type PropsInput struct {
	Params    Params
	Paginator *Paginator
}

// Spec declares a collection.
type Spec struct {
	// Route is the route pattern. A relative route is joined to the
	// collection base.
	Route string
	// Paths defaults to a single empty combination.
	Paths PathsFunc
	Props PropsFunc
	// Paginate requires the route to contain ":page?".
	Paginate bool
	RSS      *RSS
}

// RSS describes the feed a paginated collection exports.
type RSS struct {
	Title       string
	Description string
	// Item maps one dataset entry to a feed item.
	Item func(entry any) FeedItem
}

// FeedItem is one entry of a collection feed.
type FeedItem struct {
	Title       string
	Link        string
	Description string
	PubDate     time.Time
}

// RSSData is the full dataset captured for a feed on the page-1 request.
type RSSData struct {
	RSS     *RSS
	Entries []any
}

// Items maps the captured entries to feed items.
func (d *RSSData) Items() []FeedItem {
	items := make([]FeedItem, 0, len(d.Entries))
	for _, entry := range d.Entries {
		if d.RSS.Item != nil {
			items = append(items, d.RSS.Item(entry))
			continue
		}
		items = append(items, FeedItem{Title: fmt.Sprint(entry)})
	}
	return items
}

// ValidKeys are the keys a collection declaration may use.
var ValidKeys = []string{"route", "paths", "props", "paginate", "rss"}

// LegacyKeys belong to the retired collection API.
var LegacyKeys = []string{"permalink", "data", "routes"}

var requiredKeys = []string{"route", "props"}

// DecodeKeys checks the keys of a dynamic collection declaration before any
// of it is used.
func DecodeKeys(raw map[string]any, file string) error {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if contains(LegacyKeys, key) {
			return &errors.CollectionValidationError{
				File:       file,
				Key:        key,
				Reason:     fmt.Sprintf("it looks like you're using the legacy collection API (key %q)", key),
				Deprecated: true,
			}
		}
	}
	for _, key := range keys {
		if !contains(ValidKeys, key) {
			return &errors.CollectionValidationError{
				File:   file,
				Key:    key,
				Reason: fmt.Sprintf("unknown option %q. Expected one of %s", key, strings.Join(ValidKeys, ", ")),
			}
		}
	}
	for _, key := range requiredKeys {
		if v, ok := raw[key]; !ok || v == nil {
			return &errors.CollectionValidationError{
				File:   file,
				Key:    key,
				Reason: fmt.Sprintf("missing required option %q", key),
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Validate checks a declaration before any user code runs.
func Validate(spec *Spec, file string) error {
	if spec == nil {
		return errors.NewCollectionError(file, "no collection declared. Add one or remove the collection prefix from the file name")
	}
	if spec.Route == "" {
		return &errors.CollectionValidationError{File: file, Key: "route", Reason: `missing required option "route"`}
	}
	if spec.Props == nil {
		return &errors.CollectionValidationError{File: file, Key: "props", Reason: `missing required option "props"`}
	}
	if spec.Paginate && !strings.Contains(spec.Route, ":"+PageParam+"?") {
		return &errors.CollectionValidationError{
			File:   file,
			Key:    "route",
			Reason: `when "paginate" is set the route must include a "/:page?" param`,
		}
	}
	return nil
}

func reservedPageError(file string) error {
	return &errors.CollectionValidationError{
		File:   file,
		Key:    "paths",
		Reason: `"page" param is reserved for pagination and cannot be returned by paths()`,
	}
}
