package bundled

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/plugin"
)

const (
	PostLinkName    = "post_link"
	GlobalLinksName = "global_links"
	LazyLinksName   = "lazy_links"
)

// PostLink adds a "[post-link]" reference definition to posts that point at
// an external URL, so the body can write [title][post-link].
type PostLink struct{}

func (*PostLink) Name() string { return PostLinkName }

func (*PostLink) Preprocess(post *models.Post, meta *parser.Metadata) (*models.Post, *parser.Metadata, error) {
	if v, ok := meta.Get("link"); ok {
		if link := strings.TrimSpace(cast.ToString(v)); link != "" {
			post.Stash("\n[post-link]: " + link)
		}
	}
	return post, meta, nil
}

// GlobalLinks appends a shared file of reference definitions to every post.
type GlobalLinks struct {
	links string
}

func (*GlobalLinks) Name() string { return GlobalLinksName }

// Configure reads the links file named by the "file" setting.
func (g *GlobalLinks) Configure(settings map[string]any, env plugin.Env) error {
	file := cast.ToString(settings["file"])
	if file == "" {
		return nil
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(env.Root, file)
	}
	data, err := env.Files.Read(file)
	if err != nil {
		return fmt.Errorf("global links: %w", err)
	}
	g.links = string(data)
	return nil
}

func (g *GlobalLinks) Preprocess(post *models.Post, meta *parser.Metadata) (*models.Post, *parser.Metadata, error) {
	if g.links != "" {
		post.Stash(g.links)
	}
	return post, meta, nil
}

var (
	lazyLink       = regexp.MustCompile(`\[([^\]]*)\]\[\*\]`)
	lazyDefinition = regexp.MustCompile(`(?m)^\[\*\]:`)
	numberedRef    = regexp.MustCompile(`(?m)^\[(\d+)\]:`)
)

// LazyLinks numbers "[text][*]" references and their "[*]:" definitions in
// order, continuing after the highest numbered definition already present.
type LazyLinks struct {
	persist bool
	content plugin.ContentWriter
}

func (*LazyLinks) Name() string { return LazyLinksName }

// Configure reads the "persist" setting. When set, the numbered body is
// written back through the finalizer.
func (l *LazyLinks) Configure(settings map[string]any, env plugin.Env) error {
	l.persist = cast.ToBool(settings["persist"])
	l.content = env.Content
	return nil
}

func (l *LazyLinks) Preprocess(post *models.Post, meta *parser.Metadata) (*models.Post, *parser.Metadata, error) {
	body, changed := NumberLazyLinks(post.ContentPreprocessed)
	if !changed {
		return post, meta, nil
	}
	post.ContentPreprocessed = body
	if l.persist && l.content != nil {
		l.content.SetFinalizedContent(post, LazyLinksName, body)
	}
	return post, meta, nil
}

// NumberLazyLinks rewrites lazy references in body and reports whether any
// were found.
func NumberLazyLinks(body string) (string, bool) {
	if !lazyLink.MatchString(body) && !lazyDefinition.MatchString(body) {
		return body, false
	}

	start := 0
	for _, m := range numberedRef.FindAllStringSubmatch(body, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > start {
			start = n
		}
	}

	n := start
	body = lazyLink.ReplaceAllStringFunc(body, func(s string) string {
		n++
		text := lazyLink.FindStringSubmatch(s)[1]
		return "[" + text + "][" + strconv.Itoa(n) + "]"
	})
	n = start
	body = lazyDefinition.ReplaceAllStringFunc(body, func(string) string {
		n++
		return "[" + strconv.Itoa(n) + "]:"
	})
	return body, true
}
