// Package compress minifies static assets in the staging tree, reusing
// cached output for files whose content has not changed.
package compress

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/starford/scribe/internal/cache"
)

// CacheName and CacheVersion identify the compression cache namespace.
const (
	CacheName    = "compress"
	CacheVersion = "1"
)

// DefaultExtensions are the asset types minified when none are configured.
var DefaultExtensions = []string{".css", ".js"}

var mediaTypes = map[string]string{
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// Supported reports whether ext has a minifier.
func Supported(ext string) bool {
	_, ok := mediaTypes[strings.ToLower(ext)]
	return ok
}

// Stats counts the files a run handled.
type Stats struct {
	Minified int `json:"minified"`
	Cached   int `json:"cached"`
}

// Compressor minifies assets through an artifact cache keyed by the
// uncompressed file's path and checksum.
type Compressor struct {
	m      *minify.M
	cache  *cache.Cache[[]byte]
	exts   []string
	logger *slog.Logger
}

// New creates a Compressor for exts. Extensions without a known minifier are
// rejected.
func New(c *cache.Cache[[]byte], exts []string, logger *slog.Logger) (*Compressor, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		if !Supported(ext) {
			return nil, fmt.Errorf("compress: no minifier for %q", ext)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)

	return &Compressor{m: m, cache: c, exts: exts, logger: logger}, nil
}

// Run minifies every eligible file below root in place.
func (c *Compressor) Run(root string) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !c.eligible(p) {
			return nil
		}
		if out, ok := c.cache.Lookup(p); ok {
			stats.Cached++
			return os.WriteFile(p, out, 0o644)
		}
		out, err := c.File(p)
		if err != nil {
			return err
		}
		if err := c.cache.Put(p, out); err != nil {
			return err
		}
		stats.Minified++
		return os.WriteFile(p, out, 0o644)
	})
	if err != nil {
		return stats, fmt.Errorf("compress: %w", err)
	}
	c.logger.Debug("assets minified", slog.Int("minified", stats.Minified), slog.Int("cached", stats.Cached))
	return stats, nil
}

func (c *Compressor) eligible(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	if strings.HasSuffix(strings.ToLower(p), ".min"+ext) {
		return false
	}
	return slices.ContainsFunc(c.exts, func(e string) bool { return strings.EqualFold(e, ext) })
}

// File returns the minified contents of the file at p.
func (c *Compressor) File(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	mediaType := mediaTypes[strings.ToLower(filepath.Ext(p))]
	out, err := c.m.Bytes(mediaType, data)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", p, err)
	}
	return out, nil
}
