package feed

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

var testChannel = Channel{
	Title:   "Site",
	Author:  "Ann",
	SiteURL: "https://example.com/",
	FeedURL: "https://example.com/feeds/atom.xml",
	Updated: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
}

var testItems = []Item{{
	Title:     "Hello & Goodbye",
	URL:       "https://example.com/2020/01/hello/",
	Content:   "<p>Hi</p>",
	Published: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	Tags:      []string{"go"},
}}

func TestRSS(t *testing.T) {
	out, err := RSS(testChannel, testItems)
	if err != nil {
		t.Fatalf("RSS: %v", err)
	}
	var doc rss
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v\n%s", err, out)
	}
	if len(doc.Channel.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(doc.Channel.Items))
	}
	item := doc.Channel.Items[0]
	if item.Title != "Hello & Goodbye" || item.Description != "<p>Hi</p>" {
		t.Errorf("item = %+v", item)
	}
	if item.PubDate != "Wed, 01 Jan 2020 00:00:00 +0000" {
		t.Errorf("PubDate = %q", item.PubDate)
	}
}

func TestAtom(t *testing.T) {
	out, err := Atom(testChannel, testItems)
	if err != nil {
		t.Fatalf("Atom: %v", err)
	}
	var doc atomFeed
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v\n%s", err, out)
	}
	if doc.Updated != "2020-01-02T03:04:05Z" {
		t.Errorf("Updated = %q", doc.Updated)
	}
	if len(doc.Entries) != 1 || doc.Entries[0].Updated != "2020-01-01T00:00:00Z" {
		t.Errorf("entries = %+v", doc.Entries)
	}
	if !strings.Contains(string(out), `<author>`) {
		t.Error("author missing")
	}
}

func TestSitemap_Deterministic(t *testing.T) {
	urls := []URL{{Loc: "https://example.com/"}, {Loc: "https://example.com/a/", LastMod: testChannel.Updated}}
	a, err := Sitemap(urls)
	if err != nil {
		t.Fatalf("Sitemap: %v", err)
	}
	b, _ := Sitemap(urls)
	if !bytes.Equal(a, b) {
		t.Error("identical input produced different bytes")
	}

	zr, err := gzip.NewReader(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "<lastmod>2020-01-02</lastmod>") {
		t.Errorf("sitemap = %s", raw)
	}
}
