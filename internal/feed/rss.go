// Package feed encodes RSS 2.0 feeds and sitemaps for static exports.
package feed

import (
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/conneroisu/pagemill/internal/collection"
)

// RSSContentType is served with encoded feeds.
const RSSContentType = "application/rss+xml; charset=utf-8"

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link,omitempty"`
	Description string `xml:"description,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid,omitempty"`
}

// WriteRSS encodes the feed captured by a collection. link is the URL of the
// collection's first page; relative links are resolved against site.
func WriteRSS(w io.Writer, data *collection.RSSData, site, link string) error {
	var title, description string
	if data.RSS != nil {
		title = data.RSS.Title
		description = data.RSS.Description
	}

	feedItems := data.Items()
	items := make([]rssItem, 0, len(feedItems))
	for _, it := range feedItems {
		itemLink := Absolute(site, it.Link)
		items = append(items, rssItem{
			Title:       it.Title,
			Link:        itemLink,
			Description: it.Description,
			PubDate:     formatDate(it.PubDate),
			GUID:        itemLink,
		})
	}

	doc := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       title,
			Link:        Absolute(site, link),
			Description: description,
			Items:       items,
		},
	}
	return encode(w, doc)
}

// Absolute joins a root-relative link to site. Absolute links and links
// without a site are returned unchanged.
func Absolute(site, link string) string {
	if site == "" || !strings.HasPrefix(link, "/") {
		return link
	}
	return strings.TrimRight(site, "/") + link
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123Z)
}

func encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
