package collection

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/conneroisu/pagemill/internal/canonical"
	"github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/logging"
	"github.com/conneroisu/pagemill/internal/pattern"
)

// Info is the metadata an export needs from a rendered collection page.
type Info struct {
	// AdditionalURLs lists pages 2..last; only set on the page-1 request.
	AdditionalURLs []string
	RSS            *RSSData
}

// Result is a loaded collection page.
type Result struct {
	Props  any
	Params Params
	// Page is nil unless the collection paginates.
	Page *Page
	Info Info
}

// LoadOptions carries the request being served.
type LoadOptions struct {
	File string
	// RequestPath is the escaped request path without query string.
	RequestPath string
	// Base is the collection base the resolver matched.
	Base            string
	DefaultPageSize int
	Logger          logging.Logger
}

// Load serves one request of a collection.
func Load(ctx context.Context, spec *Spec, opts LoadOptions) (*Result, error) {
	if err := Validate(spec, opts.File); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	pat, err := compileRoute(spec, opts)
	if err != nil {
		return nil, err
	}

	reqPath := canonical.TrimIndex(opts.RequestPath)
	logger.Debug(ctx, "matching collection route", "route", pat.String(), "request", reqPath)

	reqParams, ok := pat.Match(reqPath)
	if !ok {
		return nil, &errors.CollectionValidationError{
			File:    opts.File,
			Key:     "route",
			Reason:  fmt.Sprintf("route pattern %q does not match request %q", pat.String(), reqPath),
			NoRoute: true,
		}
	}

	page, err := requestedPage(spec, reqParams, opts.File)
	if err != nil {
		return nil, err
	}

	combos, err := paths(ctx, spec, opts.File)
	if err != nil {
		return nil, err
	}
	matched, ok := findCombination(pat, combos, reqParams)
	if !ok {
		return nil, errors.NewCollectionError(opts.File, "no matching path found for %q in route %q", reqPath, pat.String())
	}
	if _, reserved := matched[PageParam]; reserved {
		return nil, reservedPageError(opts.File)
	}
	logger.Debug(ctx, "matched collection path", "params", matched, "page", page)

	pager := newPaginator(spec.Paginate, pat, matched, page, opts.DefaultPageSize, spec.RSS)
	props, err := spec.Props(ctx, PropsInput{Params: copyParams(matched), Paginator: pager})
	if err != nil {
		return nil, &errors.RenderRuntimeError{File: opts.File, Cause: err}
	}

	if !spec.Paginate {
		if pager.calls > 0 {
			return nil, errors.NewCollectionError(opts.File, `paginate() was called but "paginate" is not set`)
		}
		return &Result{Props: props, Params: matched}, nil
	}

	if pager.calls != 1 {
		return nil, &errors.PaginationContractViolation{File: opts.File, Calls: pager.calls, Page: page}
	}
	if pager.sizeErr != nil {
		return nil, &errors.CollectionValidationError{File: opts.File, Key: "pageSize", Reason: pager.sizeErr.Error()}
	}
	if page > pager.lastPage {
		return nil, &errors.PaginationContractViolation{File: opts.File, Calls: 1, Page: page, LastPage: pager.lastPage}
	}
	if pager.buildErr != nil {
		return nil, errors.NewCollectionError(opts.File, "cannot build page URL: %v", pager.buildErr)
	}

	return &Result{
		Props:  props,
		Params: matched,
		Page:   pager.current,
		Info: Info{
			AdditionalURLs: pager.additional,
			RSS:            pager.rssData,
		},
	}, nil
}

// EntryURLs returns the page-1 URL of every declared combination, sorted.
func EntryURLs(ctx context.Context, spec *Spec, file, base string) ([]string, error) {
	if err := Validate(spec, file); err != nil {
		return nil, err
	}
	pat, err := compileRoute(spec, LoadOptions{File: file, Base: base})
	if err != nil {
		return nil, err
	}
	combos, err := paths(ctx, spec, file)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(combos))
	urls := make([]string, 0, len(combos))
	for _, combo := range combos {
		u, err := pat.Build(combo)
		if err != nil {
			return nil, &errors.CollectionValidationError{File: file, Key: "paths", Reason: err.Error()}
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

func compileRoute(spec *Spec, opts LoadOptions) (*pattern.Pattern, error) {
	base := opts.Base
	if base == "" {
		base = "/"
	}
	pat, err := pattern.Compile(pattern.Join(base, spec.Route))
	if err != nil {
		return nil, &errors.CollectionValidationError{File: opts.File, Key: "route", Reason: err.Error()}
	}
	if spec.Paginate && !pat.IsOptional(PageParam) {
		return nil, &errors.CollectionValidationError{
			File:   opts.File,
			Key:    "route",
			Reason: `when "paginate" is set the route must include a "/:page?" param`,
		}
	}
	return pat, nil
}

// requestedPage extracts the page number. Page 1 is only reachable without
// a page segment, and collections that do not paginate serve none.
func requestedPage(spec *Spec, reqParams Params, file string) (int, error) {
	raw, explicit := reqParams[PageParam]
	if explicit && !spec.Paginate {
		return 0, &errors.CollectionValidationError{
			File:    file,
			Key:     "route",
			Reason:  fmt.Sprintf("page %q requested but %q is not set", raw, "paginate"),
			NoRoute: true,
		}
	}
	if !explicit {
		return 1, nil
	}
	if raw == "1" {
		return 0, &errors.PaginationContractViolation{File: file, Calls: -1, Page: 1, ExplicitFirstPage: true}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || strconv.Itoa(n) != raw {
		return 0, &errors.PaginationContractViolation{File: file, Calls: -1, InvalidPage: true}
	}
	return n, nil
}

func paths(ctx context.Context, spec *Spec, file string) ([]Params, error) {
	if spec.Paths == nil {
		return []Params{{}}, nil
	}
	combos, err := spec.Paths(ctx)
	if err != nil {
		return nil, &errors.RenderRuntimeError{File: file, Cause: err}
	}
	for _, combo := range combos {
		if _, reserved := combo[PageParam]; reserved {
			return nil, reservedPageError(file)
		}
	}
	return combos, nil
}

// findCombination returns the combination whose values equal the matched
// request parameters. The page parameter always comes from the request.
func findCombination(pat *pattern.Pattern, combos []Params, reqParams Params) (Params, bool) {
	for _, combo := range combos {
		if sameParams(pat, combo, reqParams) {
			return combo, true
		}
	}
	return nil, false
}

func sameParams(pat *pattern.Pattern, combo, reqParams Params) bool {
	for _, name := range pat.Names() {
		if name == PageParam {
			continue
		}
		if combo[name] != reqParams[name] {
			return false
		}
	}
	return true
}

func copyParams(p Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
