// Package postservice loads source documents into posts, consulting the
// artifact cache before running the parser and plugin pipeline.
package postservice

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/cache"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/plugin"
	"github.com/starford/scribe/internal/storage"
)

// CacheName and CacheVersion identify the post cache namespace. Bump the
// version whenever the cached Post encoding changes.
const (
	CacheName    = "posts"
	CacheVersion = "1.2"
)

// DefaultExtensions are the source file extensions loaded when none are
// configured.
var DefaultExtensions = []string{".md", ".markdown"}

// Result partitions loaded posts by whether they came from the cache.
type Result struct {
	New     []*models.Post
	Cached  []*models.Post
	Skipped []string
}

// All returns new posts followed by cached ones.
func (r *Result) All() []*models.Post {
	out := make([]*models.Post, 0, len(r.New)+len(r.Cached))
	out = append(out, r.New...)
	return append(out, r.Cached...)
}

// Loader turns source files into posts.
type Loader struct {
	files   storage.Provider
	cache   *cache.Cache[*models.Post]
	plugins *plugin.Registry
	site    models.Site
	exts    []string
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithExtensions sets the source file extensions.
func WithExtensions(exts []string) Option {
	return func(l *Loader) {
		if len(exts) > 0 {
			l.exts = exts
		}
	}
}

// WithClock sets the clock used for posts without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader.
func NewLoader(files storage.Provider, c *cache.Cache[*models.Post], plugins *plugin.Registry, site models.Site, opts ...Option) *Loader {
	l := &Loader{
		files:   files,
		cache:   c,
		plugins: plugins,
		site:    site,
		exts:    DefaultExtensions,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load finds every source file under dirs and loads it. Files with broken
// metadata are logged and skipped; any other failure aborts the load.
func (l *Loader) Load(dirs []string) (*Result, error) {
	paths, err := l.files.Find(dirs, l.exts)
	if err != nil {
		return nil, fmt.Errorf("postservice: %w", err)
	}

	res := &Result{}
	for _, path := range paths {
		post, cached, err := l.LoadFile(path)
		if err != nil {
			if apperr.IsMetadata(err) {
				l.logger.Warn("skipping post", slog.String("path", path), slog.String("error", err.Error()))
				res.Skipped = append(res.Skipped, path)
				continue
			}
			return nil, err
		}
		if cached {
			res.Cached = append(res.Cached, post)
		} else {
			res.New = append(res.New, post)
		}
	}

	l.logger.Debug("posts loaded",
		slog.Int("new", len(res.New)),
		slog.Int("cached", len(res.Cached)),
		slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// LoadFile returns the post for path and whether it came from the cache.
func (l *Loader) LoadFile(path string) (*models.Post, bool, error) {
	if post, ok := l.cache.Lookup(path); ok {
		return post, true, nil
	}

	data, err := l.files.Read(path)
	if err != nil {
		return nil, false, fmt.Errorf("postservice: %w", err)
	}

	res, err := parser.Parse(data)
	if err != nil {
		var me *apperr.MetadataError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, false, err
	}

	post, meta, err := l.plugins.Preprocess(models.NewPost(path, string(data), res), res.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("postservice: %s: %w", path, err)
	}
	if err := post.Apply(meta, l.site, l.now(), l.logger); err != nil {
		return nil, false, err
	}
	if err := l.plugins.Postprocess(post); err != nil {
		return nil, false, fmt.Errorf("postservice: %s: %w", path, err)
	}

	if post.Source() != path {
		l.cache.Delete(path)
	}
	if err := l.cache.Put(post.Source(), post); err != nil {
		return nil, false, fmt.Errorf("postservice: %w", err)
	}
	return post, false, nil
}
