// Package planner decides which URLs a static export visits. It starts from
// the entry URLs and grows the queue with the additional pages collections
// report while they render.
package planner

import (
	"sort"

	"github.com/conneroisu/pagemill/internal/canonical"
	"github.com/conneroisu/pagemill/internal/collection"
)

// Rendered is anything that may carry collection metadata, such as a
// runtime outcome.
type Rendered interface {
	CollectionInfo() *collection.Info
}

// Planner is a FIFO work queue with set semantics. A URL is visited at most
// once per pass. It is owned by a single goroutine.
type Planner struct {
	queue    []string
	queued   map[string]struct{}
	rendered map[string]string
}

// New creates an empty planner.
func New() *Planner {
	return &Planner{
		queued:   make(map[string]struct{}),
		rendered: make(map[string]string),
	}
}

// Seed enqueues urls that were neither queued nor rendered yet.
func (p *Planner) Seed(urls ...string) int {
	added := 0
	for _, u := range urls {
		key := canonical.TrimIndex(u)
		if _, ok := p.queued[key]; ok {
			continue
		}
		if _, ok := p.rendered[key]; ok {
			continue
		}
		p.queued[key] = struct{}{}
		p.queue = append(p.queue, u)
		added++
	}
	return added
}

// Next pops the next URL to render.
func (p *Planner) Next() (string, bool) {
	if len(p.queue) == 0 {
		return "", false
	}
	u := p.queue[0]
	p.queue = p.queue[1:]
	return u, true
}

// MarkRendered records u as visited.
func (p *Planner) MarkRendered(u string) {
	key := canonical.TrimIndex(u)
	delete(p.queued, key)
	p.rendered[key] = u
}

// Plan unions the additional URLs of every outcome into the queue and
// returns the URLs that were newly scheduled.
func (p *Planner) Plan(outcomes ...Rendered) []string {
	var scheduled []string
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		info := o.CollectionInfo()
		if info == nil {
			continue
		}
		for _, u := range info.AdditionalURLs {
			if p.Seed(u) == 1 {
				scheduled = append(scheduled, u)
			}
		}
	}
	return scheduled
}

// Pending returns the number of queued URLs.
func (p *Planner) Pending() int {
	return len(p.queue)
}

// Rendered returns every visited URL, sorted.
func (p *Planner) Rendered() []string {
	urls := make([]string, 0, len(p.rendered))
	for _, u := range p.rendered {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
