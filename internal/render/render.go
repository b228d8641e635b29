// Package render executes page templates with html/template.
//
// Templates are looked up by slash-separated identifiers such as
// "theme/post_detail.html" across an ordered list of layers; the first layer
// holding an identifier wins. The built-in theme is always the last layer.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/slug"
)

//go:embed theme/*.html
var defaultTheme embed.FS

// Renderer renders a template with a context mapping.
type Renderer interface {
	Render(templateID string, data map[string]any) ([]byte, error)
}

// Layer is a directory of templates. Identifiers found in FS are registered
// under Prefix.
type Layer struct {
	Prefix string
	FS     fs.FS
}

// Site is the site-wide context every template receives as "site".
type Site struct {
	Title       string
	Description string
	Author      string
	URL         string
	HomeURL     string
	FeedURL     string
	Location    *time.Location
}

// URLFor joins p below the home URL.
func (s Site) URLFor(p string) string {
	return models.JoinURL("/", s.HomeURL, p)
}

// AbsoluteURLFor joins p below the home URL and prefixes the site origin.
func (s Site) AbsoluteURLFor(p string) string {
	return strings.TrimRight(s.URL, "/") + s.URLFor(p)
}

// TagPath returns the site-relative directory of a tag page.
func TagPath(tag string) string {
	return "tag/" + slug.Make(tag) + "/"
}

// Templates is the html/template Renderer.
type Templates struct {
	set    *template.Template
	ids    []string
	site   Site
	md     Converter
	logger *slog.Logger
}

// New parses every .html template in layers followed by the built-in theme.
func New(site Site, md Converter, logger *slog.Logger, layers ...Layer) (*Templates, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if site.Location == nil {
		site.Location = time.UTC
	}
	t := &Templates{site: site, md: md, logger: logger}

	sources := make(map[string]string)
	for _, layer := range append(layers, Layer{FS: defaultTheme}) {
		if layer.FS == nil {
			continue
		}
		err := fs.WalkDir(layer.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".html" {
				return nil
			}
			id := path.Join(layer.Prefix, p)
			if _, ok := sources[id]; ok {
				return nil
			}
			data, err := fs.ReadFile(layer.FS, p)
			if err != nil {
				return err
			}
			sources[id] = string(data)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("render: load templates: %w", err)
		}
	}

	t.set = template.New("").Funcs(t.funcs())
	for id, src := range sources {
		if _, err := t.set.New(id).Parse(src); err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", id, err)
		}
		t.ids = append(t.ids, id)
	}
	slices.Sort(t.ids)
	return t, nil
}

// Has reports whether templateID is defined.
func (t *Templates) Has(templateID string) bool {
	return t.set.Lookup(templateID) != nil
}

// IDs returns every template identifier, sorted.
func (t *Templates) IDs() []string { return t.ids }

// Render executes templateID. The site context is added as "site" unless data
// already has one.
func (t *Templates) Render(templateID string, data map[string]any) ([]byte, error) {
	tmpl := t.set.Lookup(templateID)
	if tmpl == nil {
		return nil, fmt.Errorf("render: template %s: %w", templateID, apperr.ErrNotFound)
	}
	ctx := make(map[string]any, len(data)+1)
	ctx["site"] = t.site
	for k, v := range data {
		ctx[k] = v
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("render: execute %s: %w", templateID, err)
	}
	return buf.Bytes(), nil
}

// Content converts a post's body, including stashed content, to HTML.
func (t *Templates) Content(p *models.Post) (template.HTML, error) {
	return t.markdown(p.Body())
}

// Teaser converts a post's teaser to HTML.
func (t *Templates) Teaser(p *models.Post) (template.HTML, error) {
	return t.markdown(p.TeaserBody())
}

func (t *Templates) markdown(src string) (template.HTML, error) {
	out, err := t.md.Convert(src)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

func (t *Templates) funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": t.markdown,
		"content":  t.Content,
		"teaser":   t.Teaser,
		"description": func(p *models.Post) (string, error) {
			html, err := t.Content(p)
			if err != nil {
				return "", err
			}
			return models.Description(string(html)), nil
		},
		"url": func(p *models.Post) string { return p.URL(t.site.HomeURL) },
		"absurl": func(p *models.Post) string {
			return p.AbsoluteURL(t.site.URL, t.site.HomeURL)
		},
		"siteurl": t.site.URLFor,
		"tagurl":  func(tag string) string { return t.site.URLFor(TagPath(tag)) },
		"date": func(layout string, ts time.Time) string {
			return ts.In(t.site.Location).Format(layout)
		},
		"partial": func(name string, data any) (template.HTML, error) {
			tmpl := t.set.Lookup(name)
			if tmpl == nil {
				return "", fmt.Errorf("partial %s: %w", name, apperr.ErrNotFound)
			}
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, data); err != nil {
				return "", err
			}
			return template.HTML(buf.String()), nil
		},
	}
}
