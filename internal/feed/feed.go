// Package feed writes RSS 2.0 and Atom 1.0 syndication feeds and the
// gzip-compressed sitemap.
package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Channel describes the feed as a whole.
type Channel struct {
	Title       string
	Description string
	Author      string
	// SiteURL is the absolute URL of the site home page.
	SiteURL string
	// FeedURL is the absolute URL of the feed itself.
	FeedURL string
	Updated time.Time
}

// Item is a single feed entry.
type Item struct {
	Title     string
	URL       string
	Content   string
	Published time.Time
	Updated   time.Time
	Tags      []string
}

func (i Item) updated() time.Time {
	if i.Updated.IsZero() {
		return i.Published
	}
	return i.Updated
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	AtomLink      rssLink   `xml:"atom:link"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
	Description string   `xml:"description"`
}

// RSS renders ch and items as an RSS 2.0 document.
func RSS(ch Channel, items []Item) ([]byte, error) {
	doc := rss{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         ch.Title,
			Link:          ch.SiteURL,
			Description:   ch.Description,
			AtomLink:      rssLink{Href: ch.FeedURL, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: ch.Updated.UTC().Format(time.RFC1123Z),
		},
	}
	for _, it := range items {
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       it.Title,
			Link:        it.URL,
			GUID:        rssGUID{IsPermaLink: true, Value: it.URL},
			PubDate:     it.Published.UTC().Format(time.RFC1123Z),
			Categories:  it.Tags,
			Description: it.Content,
		})
	}
	return marshal(doc)
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	NS      string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Author  *atomAuthor `xml:"author,omitempty"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomContent struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type atomEntry struct {
	Title      string         `xml:"title"`
	ID         string         `xml:"id"`
	Link       atomLink       `xml:"link"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Categories []atomCategory `xml:"category"`
	Content    atomContent    `xml:"content"`
}

// Atom renders ch and items as an Atom 1.0 document.
func Atom(ch Channel, items []Item) ([]byte, error) {
	doc := atomFeed{
		NS:      "http://www.w3.org/2005/Atom",
		Title:   ch.Title,
		ID:      ch.SiteURL,
		Updated: ch.Updated.UTC().Format(time.RFC3339),
		Links: []atomLink{
			{Href: ch.SiteURL},
			{Href: ch.FeedURL, Rel: "self", Type: "application/atom+xml"},
		},
	}
	if ch.Author != "" {
		doc.Author = &atomAuthor{Name: ch.Author}
	}
	for _, it := range items {
		e := atomEntry{
			Title:     it.Title,
			ID:        it.URL,
			Link:      atomLink{Href: it.URL, Rel: "alternate"},
			Published: it.Published.UTC().Format(time.RFC3339),
			Updated:   it.updated().UTC().Format(time.RFC3339),
			Content:   atomContent{Type: "html", Value: it.Content},
		}
		for _, tag := range it.Tags {
			e.Categories = append(e.Categories, atomCategory{Term: tag})
		}
		doc.Entries = append(doc.Entries, e)
	}
	return marshal(doc)
}

func marshal(v any) ([]byte, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feed: marshal: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
