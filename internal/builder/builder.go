// Package builder runs a full site build: it stages static files, loads posts
// through the cache and plugin pipeline, renders every page into a staging
// tree and publishes the staging tree into the live output directory only
// when something other than the sitemap changed.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/starford/scribe/internal/assets"
	"github.com/starford/scribe/internal/cache"
	"github.com/starford/scribe/internal/compress"
	"github.com/starford/scribe/internal/feed"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/mirror"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/plugin"
	"github.com/starford/scribe/internal/plugin/bundled"
	"github.com/starford/scribe/internal/postservice"
	"github.com/starford/scribe/internal/render"
	"github.com/starford/scribe/internal/storage"
)

// Build stages, used as metric labels.
const (
	StageStatic   = "static"
	StageLoad     = "load"
	StageRender   = "render"
	StageCompress = "compress"
	StagePublish  = "publish"
)

// StagingName is the staging directory inside the cache directory.
const StagingName = "output"

// Paths are the absolute locations a build reads and writes.
type Paths struct {
	// Root is the site directory; plugin paths are relative to it.
	Root string
	// Posts are the source directories. A trailing "*" searches recursively.
	Posts         []string
	Content       string
	Output        string
	OutputIgnore  []string
	Templates     string
	TemplatePages string
	Theme         string
	CacheDir      string
	CacheFile     string
	StatsFile     string
}

// Publish selects the non-published posts that are built anyway.
type Publish struct {
	Drafts  bool
	Pending bool
	Review  bool
}

// Feed configures the syndication feeds.
type Feed struct {
	Title       string
	Description string
	URL         string
	ItemLimit   int
}

// Plugins selects and configures the bundled plugins.
type Plugins struct {
	Enabled     []string
	Permissions map[string][]string
	Settings    map[string]map[string]any
}

// Options is everything a build needs to know about the site.
type Options struct {
	Site           models.Site
	RenderSite     render.Site
	Paths          Paths
	Publish        Publish
	Feed           Feed
	Plugins        Plugins
	RollupPageSize int
	CacheDisabled  bool

	Compress           bool
	CompressExtensions []string

	LESS        bool
	LESSCommand string
}

// Flags change a single build.
type Flags struct {
	// Clean wipes the output, staging and cache before building.
	Clean bool
	// NoCache discards the stored post cache.
	NoCache bool
}

// Builder builds a site. It is not safe for concurrent use.
type Builder struct {
	opts     Options
	md       render.Converter
	clock    clockwork.Clock
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the clock used for publish decisions and stats.
func WithClock(c clockwork.Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithConverter replaces the markdown converter.
func WithConverter(md render.Converter) Option {
	return func(b *Builder) { b.md = md }
}

// New creates a Builder.
func New(opts Options, options ...Option) (*Builder, error) {
	if opts.Paths.Output == "" {
		return nil, fmt.Errorf("builder: output path is required")
	}
	if opts.Paths.CacheDir == "" {
		return nil, fmt.Errorf("builder: cache dir is required")
	}
	if opts.Paths.CacheFile == "" {
		opts.Paths.CacheFile = filepath.Join(opts.Paths.CacheDir, "cache.db")
	}
	if opts.Paths.StatsFile == "" {
		opts.Paths.StatsFile = filepath.Join(opts.Paths.CacheDir, "build_stats.json")
	}
	if opts.RollupPageSize < 1 {
		opts.RollupPageSize = 10
	}
	if opts.Feed.ItemLimit < 1 {
		opts.Feed.ItemLimit = opts.RollupPageSize
	}

	b := &Builder{
		opts:     opts,
		md:       render.NewMarkdown(),
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(b)
	}
	return b, nil
}

// StagingDir returns the directory pages are rendered into.
func (b *Builder) StagingDir() string {
	return filepath.Join(b.opts.Paths.CacheDir, StagingName)
}

// StatsFile returns the location of the build stats file.
func (b *Builder) StatsFile() string { return b.opts.Paths.StatsFile }

// Build runs one build and returns its stats. Stats are written to the stats
// file only when the output was published.
func (b *Builder) Build(ctx context.Context, flags Flags) (*Stats, error) {
	start := b.clock.Now()
	stats, err := b.build(ctx, flags)
	b.recorder.ObserveBuildDuration(b.clock.Since(start))
	if err != nil {
		b.recorder.IncBuildOutcome(metrics.OutcomeFailed)
		return nil, err
	}
	if stats.Published {
		b.recorder.IncBuildOutcome(metrics.OutcomePublished)
	} else {
		b.recorder.IncBuildOutcome(metrics.OutcomeSkipped)
	}
	return stats, nil
}

func (b *Builder) build(ctx context.Context, flags Flags) (*Stats, error) {
	if flags.Clean {
		if _, err := b.Clean(); err != nil {
			return nil, err
		}
	}

	stats := &Stats{ID: uuid.NewString(), TimeRun: b.clock.Now().UTC()}
	staging := b.StagingDir()

	if err := b.stage(StageStatic, func() error { return b.prepareStaging(ctx, staging) }); err != nil {
		return nil, err
	}

	store, err := cache.OpenStore(b.opts.Paths.CacheFile, b.logger)
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	defer store.Close()

	posts := cache.New[*models.Post](postservice.CacheName, postservice.CacheVersion,
		cache.WithDisabled(b.opts.CacheDisabled), cache.WithLogger(b.logger))
	artifacts := cache.New[[]byte](compress.CacheName, compress.CacheVersion,
		cache.WithDisabled(b.opts.CacheDisabled), cache.WithLogger(b.logger))
	if flags.NoCache {
		if err := posts.Purge(store); err != nil {
			return nil, fmt.Errorf("builder: purge post cache: %w", err)
		}
	} else {
		posts.Load(store)
	}
	artifacts.Load(store)

	var set *models.Collection
	err = b.stage(StageLoad, func() error {
		res, err := b.loadPosts(posts)
		if err != nil {
			return err
		}
		stats.Counts.NewPosts = len(res.New)
		stats.Counts.CachedPosts = len(res.Cached)
		set = b.publishSet(res.All())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = b.stage(StageRender, func() error { return b.render(staging, set, &stats.Counts) })
	if err != nil {
		return nil, err
	}

	if b.opts.Compress {
		err = b.stage(StageCompress, func() error {
			c, err := compress.New(artifacts, b.opts.CompressExtensions, b.logger)
			if err != nil {
				return fmt.Errorf("builder: %w", err)
			}
			_, err = c.Run(staging)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	b.saveCaches(store, posts, artifacts)

	err = b.stage(StagePublish, func() error { return b.publish(staging, stats) })
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type savable interface {
	Name() string
	Save(s *cache.Store) error
}

// saveCaches persists caches. Failures are logged and never fail the build.
func (b *Builder) saveCaches(store *cache.Store, caches ...savable) {
	for _, c := range caches {
		if err := c.Save(store); err != nil {
			b.logger.Warn("cache not saved", slog.String("cache", c.Name()), slog.Any("error", err))
		}
	}
}

func (b *Builder) stage(name string, fn func() error) error {
	start := b.clock.Now()
	err := fn()
	b.recorder.ObserveStageDuration(name, b.clock.Since(start))
	return err
}

// prepareStaging recreates the staging tree with the theme's static files and
// the site content.
func (b *Builder) prepareStaging(ctx context.Context, staging string) error {
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("builder: reset staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("builder: create staging: %w", err)
	}

	if b.opts.Paths.Theme != "" {
		static := filepath.Join(b.opts.Paths.Theme, "static")
		if isDir(static) {
			if _, err := mirror.Sync(static, filepath.Join(staging, "theme"), mirror.KeepOrphans()); err != nil {
				return fmt.Errorf("builder: copy theme static: %w", err)
			}
		}
	}
	if err := b.mirrorContent(staging); err != nil {
		return err
	}

	if b.opts.LESS {
		less, err := assets.NewLESS(b.opts.LESSCommand, b.logger)
		if err != nil {
			return fmt.Errorf("builder: %w", err)
		}
		if _, err := less.Compile(ctx, staging); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) mirrorContent(staging string) error {
	if b.opts.Paths.Content == "" || !isDir(b.opts.Paths.Content) {
		return nil
	}
	if _, err := mirror.Sync(b.opts.Paths.Content, staging, mirror.KeepOrphans()); err != nil {
		return fmt.Errorf("builder: mirror content: %w", err)
	}
	return nil
}

func (b *Builder) registry() (*plugin.Registry, error) {
	enabled := b.opts.Plugins.Enabled
	if enabled == nil {
		enabled = bundled.DefaultEnabled
	}
	r := plugin.NewRegistry(b.opts.Plugins.Permissions, b.logger)
	if err := bundled.Register(r, enabled); err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	return r, nil
}

func (b *Builder) files() (*storage.FS, error) {
	root := b.opts.Paths.Root
	if root == "" {
		root = "."
	}
	files, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	return files, nil
}

func (b *Builder) loadPosts(c *cache.Cache[*models.Post]) (*postservice.Result, error) {
	files, err := b.files()
	if err != nil {
		return nil, err
	}
	plugins, err := b.registry()
	if err != nil {
		return nil, err
	}
	env := plugin.Env{Site: b.opts.Site, Files: files, Logger: b.logger, Root: files.Root()}
	if err := plugins.Configure(b.opts.Plugins.Settings, env); err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}

	loader := postservice.NewLoader(files, c, plugins, b.opts.Site,
		postservice.WithClock(b.clock.Now),
		postservice.WithLogger(b.logger))
	return loader.Load(b.opts.Paths.Posts)
}

// Scan loads every post without plugins or the cache, leaving source files
// untouched.
func (b *Builder) Scan() (*models.Collection, error) {
	files, err := b.files()
	if err != nil {
		return nil, err
	}
	c := cache.New[*models.Post](postservice.CacheName, postservice.CacheVersion,
		cache.WithDisabled(true), cache.WithLogger(b.logger))
	loader := postservice.NewLoader(files, c, plugin.NewRegistry(nil, b.logger), b.opts.Site,
		postservice.WithClock(b.clock.Now),
		postservice.WithLogger(b.logger))
	res, err := loader.Load(b.opts.Paths.Posts)
	if err != nil {
		return nil, err
	}
	all := models.NewCollection(res.All()).WithClock(b.clock.Now)
	all.SortNewest()
	return all, nil
}

// publishSet returns the posts to render, newest first.
func (b *Builder) publishSet(posts []*models.Post) *models.Collection {
	all := models.NewCollection(posts).WithClock(b.clock.Now)

	b.recorder.SetPosts("published", len(all.Published()))
	b.recorder.SetPosts("pending", len(all.Pending()))
	b.recorder.SetPosts("draft", len(all.Drafts()))
	b.recorder.SetPosts("review", len(all.Review()))

	set := append([]*models.Post{}, all.Published()...)
	if b.opts.Publish.Drafts {
		set = append(set, all.Drafts()...)
	}
	if b.opts.Publish.Review {
		set = append(set, all.Review()...)
	}
	if b.opts.Publish.Pending {
		set = append(set, all.Pending()...)
	} else {
		for _, p := range all.Pending() {
			b.logger.Warn("pending post excluded",
				slog.String("title", p.Title),
				slog.String("path", p.Source()),
				slog.String("publishes", b.since(p.Timestamp)))
		}
	}

	out := models.NewCollection(set).WithClock(b.clock.Now)
	out.SortNewest()
	return out
}

// publish syncs staging into the output directory unless nothing but the
// sitemap differs.
func (b *Builder) publish(staging string, stats *Stats) error {
	ignore := b.opts.Paths.OutputIgnore
	diffs, err := mirror.Diff(staging, b.opts.Paths.Output, 2, ignore...)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if len(diffs) == 0 || (len(diffs) == 1 && diffs[0] == feed.SitemapFile) {
		b.logger.Info("output unchanged, skipping publish",
			slog.String("output", b.opts.Paths.Output))
		return nil
	}

	report, err := mirror.Sync(staging, b.opts.Paths.Output, mirror.WithIgnore(ignore...))
	if err != nil {
		return fmt.Errorf("builder: publish: %w", err)
	}
	stats.Files = report
	stats.Published = true

	b.recorder.AddFileChanges("new", len(report.New))
	b.recorder.AddFileChanges("overwritten", len(report.Overwritten))
	b.recorder.AddFileChanges("deleted", len(report.Deleted))
	b.logger.Info("output published",
		slog.String("output", b.opts.Paths.Output),
		slog.Int("new", len(report.New)),
		slog.Int("overwritten", len(report.Overwritten)),
		slog.Int("deleted", len(report.Deleted)))

	return WriteStats(b.opts.Paths.StatsFile, stats)
}

// Clean removes every non-ignored file from the output, then the staging
// tree and the cache directory. It returns the deleted output files.
func (b *Builder) Clean() ([]string, error) {
	var deleted []string
	if isDir(b.opts.Paths.Output) {
		var err error
		deleted, err = mirror.Clean(b.opts.Paths.Output, b.opts.Paths.OutputIgnore...)
		if err != nil {
			return nil, fmt.Errorf("builder: clean output: %w", err)
		}
	}
	for _, dir := range []string{b.StagingDir(), b.opts.Paths.CacheDir} {
		if err := os.RemoveAll(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("builder: clean %s: %w", dir, err)
		}
	}
	if err := os.Remove(b.opts.Paths.CacheFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("builder: clean cache file: %w", err)
	}
	b.logger.Info("cleaned", slog.Int("deleted", len(deleted)))
	return deleted, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// since formats the time between t and the builder clock.
func (b *Builder) since(t time.Time) string {
	return humanize.RelTime(t, b.clock.Now(), "ago", "from now")
}
