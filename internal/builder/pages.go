package builder

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/scribe/internal/feed"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/render"
	"github.com/starford/scribe/internal/slug"
	"github.com/starford/scribe/internal/storage"
)

// Template identifiers of the built-in page kinds.
const (
	ListTemplate     = "theme/post_list.html"
	ArchivesTemplate = "theme/post_archives.html"
	PagesPrefix      = "pages/"
)

// Output files of the feeds, relative to the staging root.
const (
	RSSFile  = "feeds/rss.xml"
	AtomFile = "feeds/atom.xml"
)

func (b *Builder) layers() []render.Layer {
	var layers []render.Layer
	add := func(dir, prefix string) {
		if dir != "" && isDir(dir) {
			layers = append(layers, render.Layer{Prefix: prefix, FS: os.DirFS(dir)})
		}
	}
	add(b.opts.Paths.Templates, "")
	add(b.opts.Paths.TemplatePages, PagesPrefix)
	if b.opts.Paths.Theme != "" {
		add(filepath.Join(b.opts.Paths.Theme, "templates"), "theme/")
	}
	return layers
}

// render writes every page of the site below staging.
func (b *Builder) render(staging string, set *models.Collection, counts *Counts) error {
	out, err := storage.NewFS(staging)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	tmpl, err := render.New(b.opts.RenderSite, b.md, b.logger, b.layers()...)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	site := b.opts.RenderSite
	var urls []feed.URL

	write := func(rel string, data []byte) error {
		if err := out.Write(rel, data); err != nil {
			return fmt.Errorf("builder: write %s: %w", rel, err)
		}
		return nil
	}
	page := func(rel, templateID string, data map[string]any, lastMod time.Time) error {
		html, err := tmpl.Render(templateID, data)
		if err != nil {
			return fmt.Errorf("builder: %s: %w", rel, err)
		}
		urls = append(urls, feed.URL{Loc: site.AbsoluteURLFor(pageURL(rel)), LastMod: lastMod})
		return write(rel, html)
	}

	for _, p := range set.Posts() {
		newer, older := set.Neighbors(p)
		data := map[string]any{"title": p.Title, "post": p, "newer": newer, "older": older}
		if err := page(models.OutputFile(p.Permalink()), p.Template, data, lastMod(p)); err != nil {
			return err
		}
	}

	pages := set.Paginate(b.opts.RollupPageSize)
	if len(pages) == 0 {
		pages = [][]*models.Post{nil}
	}
	for i, posts := range pages {
		data := map[string]any{"posts": posts}
		if i > 0 {
			data["newer_url"] = site.URLFor(rollupDir(i - 1))
		}
		if i < len(pages)-1 {
			data["older_url"] = site.URLFor(rollupDir(i + 1))
		}
		if err := page(rollupDir(i)+"index.html", ListTemplate, data, time.Time{}); err != nil {
			return err
		}
		counts.Rollups++
	}
	if err := page("index.html", ListTemplate, map[string]any{
		"posts":     pages[0],
		"older_url": olderURL(site, len(pages)),
	}, newest(set)); err != nil {
		return err
	}

	if err := page("archives/index.html", ArchivesTemplate, map[string]any{
		"title": "Archives",
		"posts": set.Posts(),
		"tags":  set.AllTags(),
	}, newest(set)); err != nil {
		return err
	}

	for _, tag := range set.AllTags() {
		if slug.Make(tag) == "" {
			b.logger.Warn("skipping tag without slug", slog.String("tag", tag))
			continue
		}
		data := map[string]any{"title": tag, "tag": tag, "posts": set.Tagged(tag)}
		if err := page(render.TagPath(tag)+"index.html", ListTemplate, data, time.Time{}); err != nil {
			return err
		}
		counts.TagPages++
	}

	for _, id := range tmpl.IDs() {
		name, ok := strings.CutPrefix(id, PagesPrefix)
		if !ok || strings.HasPrefix(path.Base(name), "_") {
			continue
		}
		data := map[string]any{"posts": set.Posts(), "tags": set.AllTags()}
		if err := page(templatePageFile(name), id, data, time.Time{}); err != nil {
			return err
		}
		counts.TemplatePages++
	}

	if err := b.feeds(write, tmpl, set); err != nil {
		return err
	}

	sitemap, err := feed.Sitemap(urls)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if err := write(feed.SitemapFile, sitemap); err != nil {
		return err
	}

	return b.mirrorContent(staging)
}

func (b *Builder) feeds(write func(string, []byte) error, tmpl *render.Templates, set *models.Collection) error {
	site := b.opts.RenderSite
	ch := feed.Channel{
		Title:       b.opts.Feed.Title,
		Description: b.opts.Feed.Description,
		Author:      site.Author,
		SiteURL:     site.AbsoluteURLFor(""),
		FeedURL:     b.opts.Feed.URL,
		Updated:     newest(set),
	}
	if ch.Title == "" {
		ch.Title = site.Title
	}
	if ch.FeedURL == "" {
		ch.FeedURL = site.AbsoluteURLFor(AtomFile)
	}

	posts := set.Posts()
	if len(posts) > b.opts.Feed.ItemLimit {
		posts = posts[:b.opts.Feed.ItemLimit]
	}
	items := make([]feed.Item, 0, len(posts))
	for _, p := range posts {
		content, err := tmpl.Content(p)
		if err != nil {
			return fmt.Errorf("builder: feed content %s: %w", p.Source(), err)
		}
		items = append(items, feed.Item{
			Title:     p.Title,
			URL:       p.AbsoluteURL(site.URL, site.HomeURL),
			Content:   string(content),
			Published: p.Timestamp,
			Updated:   p.Updated,
			Tags:      p.Tags,
		})
	}

	rss, err := feed.RSS(ch, items)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if err := write(RSSFile, rss); err != nil {
		return err
	}
	atom, err := feed.Atom(ch, items)
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	return write(AtomFile, atom)
}

// rollupDir returns the directory of rollup page i, counting from zero.
func rollupDir(i int) string {
	return fmt.Sprintf("page/%d/", i+1)
}

func olderURL(site render.Site, pages int) string {
	if pages < 2 {
		return ""
	}
	return site.URLFor(rollupDir(1))
}

// templatePageFile maps "about.html" to "about/index.html". An index
// template keeps its name.
func templatePageFile(name string) string {
	if path.Base(name) == "index.html" {
		return name
	}
	return strings.TrimSuffix(name, ".html") + "/index.html"
}

// pageURL turns an output file into its site-relative URL.
func pageURL(rel string) string {
	if rel == "index.html" {
		return ""
	}
	if dir, ok := strings.CutSuffix(rel, "/index.html"); ok {
		return dir + "/"
	}
	return rel
}

func lastMod(p *models.Post) time.Time {
	if p.Updated.IsZero() {
		return p.Timestamp
	}
	return p.Updated
}

func newest(set *models.Collection) time.Time {
	var t time.Time
	for _, p := range set.Posts() {
		if m := lastMod(p); m.After(t) {
			t = m
		}
	}
	return t
}
