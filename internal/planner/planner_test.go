package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/pagemill/internal/collection"
)

type outcome struct {
	info *collection.Info
}

func (o outcome) CollectionInfo() *collection.Info { return o.info }

func withURLs(urls ...string) outcome {
	return outcome{info: &collection.Info{AdditionalURLs: urls}}
}

func drain(p *Planner, onRender func(string) []Rendered) []string {
	var order []string
	for {
		u, ok := p.Next()
		if !ok {
			return order
		}
		order = append(order, u)
		p.MarkRendered(u)
		if onRender != nil {
			p.Plan(onRender(u)...)
		}
	}
}

func TestPlannerFIFO(t *testing.T) {
	p := New()
	assert.Equal(t, 3, p.Seed("/index.html", "/about/index.html", "/blog"))
	assert.Equal(t, 3, p.Pending())

	order := drain(p, nil)
	assert.Equal(t, []string{"/index.html", "/about/index.html", "/blog"}, order)
	assert.Equal(t, 0, p.Pending())
}

func TestPlannerAddsPaginationPages(t *testing.T) {
	p := New()
	p.Seed("/index.html", "/blog")

	order := drain(p, func(u string) []Rendered {
		if u == "/blog" {
			return []Rendered{withURLs("/blog/2", "/blog/3")}
		}
		return []Rendered{outcome{}}
	})

	assert.Equal(t, []string{"/index.html", "/blog", "/blog/2", "/blog/3"}, order)
	assert.Equal(t, []string{"/blog", "/blog/2", "/blog/3", "/index.html"}, p.Rendered())
}

func TestPlannerSetSemantics(t *testing.T) {
	p := New()
	p.Seed("/blog", "/blog")
	assert.Equal(t, 1, p.Pending())

	u, _ := p.Next()
	p.MarkRendered(u)

	// Already rendered, already queued and index variants are all ignored.
	scheduled := p.Plan(
		withURLs("/blog/2", "/blog", "/blog/"),
		withURLs("/blog/2", "/blog/2/index.html"),
	)
	assert.Equal(t, []string{"/blog/2"}, scheduled)
	assert.Equal(t, 1, p.Pending())
}

func TestPlannerIgnoresEmptyOutcomes(t *testing.T) {
	p := New()
	assert.Empty(t, p.Plan(nil, outcome{}, withURLs()))
	assert.Equal(t, 0, p.Pending())
}

func TestPlannerTerminates(t *testing.T) {
	p := New()
	p.Seed("/a")

	// Every page links back to the pages already seen.
	order := drain(p, func(string) []Rendered {
		return []Rendered{withURLs("/a", "/a/2", "/a/3")}
	})
	assert.Equal(t, []string{"/a", "/a/2", "/a/3"}, order)
}
