package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"
)

// SitemapFile is the name of the sitemap in the output root.
const SitemapFile = "sitemap.xml.gz"

// URL is one sitemap location.
type URL struct {
	Loc     string
	LastMod time.Time
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Sitemap renders urls as a gzip-compressed sitemap. The gzip header carries
// no name or timestamp, so identical input yields identical bytes.
func Sitemap(urls []URL) ([]byte, error) {
	doc := urlset{NS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, u := range urls {
		su := sitemapURL{Loc: u.Loc}
		if !u.LastMod.IsZero() {
			su.LastMod = u.LastMod.UTC().Format("2006-01-02")
		}
		doc.URLs = append(doc.URLs, su)
	}
	raw, err := marshal(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("feed: sitemap: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("feed: sitemap: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("feed: sitemap: %w", err)
	}
	return buf.Bytes(), nil
}
