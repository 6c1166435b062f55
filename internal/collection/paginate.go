package collection

import (
	"fmt"
	"strconv"

	"github.com/conneroisu/pagemill/internal/pattern"
)

// PageOptions tunes one Paginate call.
type PageOptions struct {
	// PageSize of 0 uses the configured default; Unlimited disables slicing.
	// Any other negative size is rejected.
	PageSize int
}

// PageInfo holds page numbers, 1-indexed.
type PageInfo struct {
	Size    int `json:"size"`
	Current int `json:"current"`
	Last    int `json:"last"`
}

// PageURLs holds navigation URLs. Next and Prev are empty at the boundaries.
type PageURLs struct {
	Current string `json:"current"`
	Next    string `json:"next,omitempty"`
	Prev    string `json:"prev,omitempty"`
}

// Page is one page of a paginated dataset.
type Page struct {
	Data []any `json:"data"`
	// Start and End are inclusive indexes into the full dataset.
	Start int      `json:"start"`
	End   int      `json:"end"`
	Total int      `json:"total"`
	Page  PageInfo `json:"page"`
	URL   PageURLs `json:"url"`
}

// Paginator is the pagination capability handed to a PropsFunc. It belongs
// to a single request and is not safe for concurrent use.
type Paginator struct {
	enabled     bool
	pattern     *pattern.Pattern
	params      Params
	page        int
	defaultSize int
	rss         *RSS

	calls      int
	lastPage   int
	current    *Page
	additional []string
	rssData    *RSSData
	buildErr   error
	sizeErr    error
}

func newPaginator(enabled bool, pat *pattern.Pattern, params Params, page, defaultSize int, rss *RSS) *Paginator {
	if defaultSize == 0 {
		defaultSize = DefaultPageSize
	}
	return &Paginator{
		enabled:     enabled,
		pattern:     pat,
		params:      params,
		page:        page,
		defaultSize: defaultSize,
		rss:         rss,
	}
}

// Paginate slices data into the requested page. It must be called exactly
// once per props call of a paginated collection.
func (p *Paginator) Paginate(data []any, opts PageOptions) Page {
	p.calls++

	size := opts.PageSize
	if size == 0 {
		size = p.defaultSize
	}

	if size < 0 && size != Unlimited && p.sizeErr == nil {
		p.sizeErr = fmt.Errorf("pageSize must be positive or Unlimited, got %d", size)
	}

	n := len(data)
	var start, end, last int
	if size < 0 {
		start, end, last = 0, n, 1
	} else {
		last = max(1, n/size)
		if n%size != 0 && n > size {
			last++
		}
		start = min((min(p.page, last)-1)*size, n)
		end = min(start+size, n)
	}
	// Pages past the end are empty; the caller reports them as not found.
	if p.page > last {
		start, end = n, n
	}
	p.lastPage = last

	if p.enabled && p.page == 1 && p.calls == 1 {
		p.additional = make([]string, 0, last-1)
		for i := 2; i <= last; i++ {
			p.additional = append(p.additional, p.urlFor(i))
		}
		if p.rss != nil {
			p.rssData = &RSSData{RSS: p.rss, Entries: append([]any(nil), data...)}
		}
	}

	page := Page{
		Data:  data[start:end:end],
		Start: start,
		End:   end - 1,
		Total: n,
		Page:  PageInfo{Size: size, Current: p.page, Last: last},
		URL:   PageURLs{Current: p.urlFor(p.page)},
	}
	if p.page < last {
		page.URL.Next = p.urlFor(p.page + 1)
	}
	if p.page > 1 {
		page.URL.Prev = p.urlFor(p.page - 1)
	}

	p.current = &page
	return page
}

// Calls returns how many times Paginate ran.
func (p *Paginator) Calls() int {
	return p.calls
}

// CurrentPage returns the requested page number.
func (p *Paginator) CurrentPage() int {
	return p.page
}

// urlFor builds the URL of page n for the matched combination. Page 1 never
// carries a page segment.
func (p *Paginator) urlFor(n int) string {
	params := make(Params, len(p.params)+1)
	for k, v := range p.params {
		params[k] = v
	}
	if n > 1 {
		params[PageParam] = strconv.Itoa(n)
	}
	u, err := p.pattern.Build(params)
	if err != nil && p.buildErr == nil {
		p.buildErr = err
	}
	return u
}

// Items converts a typed slice for Paginate.
func Items[T any](xs []T) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
