// Package models holds the document model produced by the build pipeline.
package models

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/slug"
)

// Default templates used when a post does not name its own.
const (
	DefaultTemplate        = "theme/post_detail.html"
	DefaultContentTemplate = "theme/_content_default.html"
)

// DefaultTimeFormat is the layout used to read and write post timestamps.
const DefaultTimeFormat = "2006-01-02 03:04:05 PM"

// Site carries the settings a post needs to derive its defaults.
type Site struct {
	// PermalinkFormat is a resolved permalink format string.
	PermalinkFormat string
	Location        *time.Location
	TimeFormat      string
	// HomeURL is the path the site is served below.
	HomeURL string
}

func (s Site) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Format returns the timestamp layout, falling back to DefaultTimeFormat.
func (s Site) Format() string {
	if s.TimeFormat == "" {
		return DefaultTimeFormat
	}
	return s.TimeFormat
}

// Post is a single source document.
//
// The raw body is fixed at construction. The preprocessed body is the working
// copy plugins edit, and the finalized body is what a write-back stores.
type Post struct {
	Title           string
	Slug            string
	Tags            []string
	Link            string
	Via             string
	ViaLink         string
	Status          Status
	Timestamp       time.Time
	Updated         time.Time
	Template        string
	ContentTemplate string

	// CustomProperties holds every non-reserved metadata key verbatim.
	CustomProperties map[string]any
	// MetadataKeys lists the keys present in the source file's front matter.
	MetadataKeys []string
	Fenced       bool

	ContentPreprocessed string
	ContentTeaser       string

	source           string
	fileContents     string
	contentRaw       string
	contentFinalized string
	permalink        string
	location         *time.Location
	stash            []string
}

// NewPost creates a post from a parsed source file. fileContents is the
// full file text as read from disk.
func NewPost(source, fileContents string, res *parser.Result) *Post {
	return &Post{
		source:              source,
		fileContents:        fileContents,
		contentRaw:          res.Body,
		contentFinalized:    res.Body,
		ContentPreprocessed: res.Body,
		Fenced:              res.Fenced,
		MetadataKeys:        res.Metadata.Keys(),
		CustomProperties:    map[string]any{},
		location:            time.UTC,
	}
}

// Source returns the path of the file the post was read from.
func (p *Post) Source() string { return p.source }

// Relocate changes the post's source path after its file has been moved.
func (p *Post) Relocate(path string) { p.source = path }

// FileContents returns the source file text as it was when the post was read.
func (p *Post) FileContents() string { return p.fileContents }

// ContentRaw returns the body exactly as it appeared in the source file.
func (p *Post) ContentRaw() string { return p.contentRaw }

// ContentFinalized returns the body a write-back stores.
func (p *Post) ContentFinalized() string { return p.contentFinalized }

// SetFinalizedContent replaces the body a write-back stores.
func (p *Post) SetFinalizedContent(content string) { p.contentFinalized = content }

// Permalink returns the site-relative permalink without the home URL.
func (p *Post) Permalink() string { return p.permalink }

// TimestampLocal returns the timestamp in the post's timezone.
func (p *Post) TimestampLocal() time.Time { return p.Timestamp.In(p.location) }

// UpdatedLocal returns the updated timestamp in the post's timezone.
func (p *Post) UpdatedLocal() time.Time {
	if p.Updated.IsZero() {
		return p.Updated
	}
	return p.Updated.In(p.location)
}

// Location returns the post's timezone.
func (p *Post) Location() *time.Location { return p.location }

// Apply consumes the reserved keys of meta and fills in defaults for those
// that are missing. Whatever remains in meta becomes custom properties.
func (p *Post) Apply(meta *parser.Metadata, site Site, now time.Time, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	p.location = site.location()

	if v, ok := meta.Pop("title"); ok {
		p.Title = strings.TrimSpace(cast.ToString(v))
	}
	if p.Title == "" {
		p.Title = slug.TitleFromFilename(p.source)
	}

	if v, ok := meta.Pop("slug"); ok {
		p.Slug = strings.TrimSpace(cast.ToString(v))
	}

	if v, ok := meta.Pop("tags"); ok {
		p.Tags = parser.StringList(v)
	}
	if v, ok := meta.Pop("link"); ok {
		p.Link = cast.ToString(v)
	}
	if v, ok := meta.Pop("via"); ok {
		p.Via = cast.ToString(v)
	}
	if v, ok := meta.Pop("via-link", "via_link"); ok {
		p.ViaLink = cast.ToString(v)
	}

	p.Status = StatusDraft
	if v, ok := meta.Pop("status"); ok {
		status, err := ParseStatus(cast.ToString(v))
		if err != nil {
			logger.Warn("unknown post status, treating as draft",
				slog.String("path", p.source), slog.Any("status", v))
		}
		p.Status = status
	}

	if v, ok := meta.Pop("timestamp"); ok && v != nil {
		ts, err := ParseTime(v, p.location, site.Format())
		if err != nil {
			return &apperr.MetadataError{Path: p.source, Reason: "timestamp: " + err.Error()}
		}
		p.Timestamp = ts
	} else {
		p.Timestamp = now.In(p.location).Truncate(time.Minute).UTC()
	}

	if v, ok := meta.Pop("updated"); ok && v != nil {
		ts, err := ParseTime(v, p.location, site.Format())
		if err != nil {
			return &apperr.MetadataError{Path: p.source, Reason: "updated: " + err.Error()}
		}
		p.Updated = ts
	}

	if p.Slug == "" {
		p.Slug = p.defaultSlug()
	}

	p.Template = DefaultTemplate
	if v, ok := meta.Pop("template"); ok {
		p.Template = templateName(cast.ToString(v))
	}
	p.ContentTemplate = DefaultContentTemplate
	if v, ok := meta.Pop("content-template", "content_template"); ok {
		p.ContentTemplate = templateName(cast.ToString(v))
	}

	for _, key := range meta.Keys() {
		v, _ := meta.Get(key)
		p.CustomProperties[key] = v
	}

	p.permalink = Permalink(ResolvePermalinkStyle(site.PermalinkFormat), p.TimestampLocal(), p.Slug)
	return nil
}

// defaultSlug derives a slug from the title, then the file name, then the
// timestamp, so that every post gets a non-empty one.
func (p *Post) defaultSlug() string {
	if s := slug.Make(p.Title); s != "" {
		return s
	}
	if s := slug.Make(slug.TitleFromFilename(p.source)); s != "" {
		return s
	}
	return p.TimestampLocal().Format("2006-01-02-150405")
}

func templateName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	return name
}

var extraLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 03:04 PM",
	"2006-01-02",
}

// ParseTime reads a metadata timestamp. Values without timezone information
// are interpreted in loc. The result is in UTC.
func ParseTime(v any, loc *time.Location, layout string) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		s := strings.TrimSpace(val)
		for _, l := range append([]string{layout}, extraLayouts...) {
			if t, err := time.ParseInLocation(l, s, loc); err == nil {
				return t.UTC(), nil
			}
		}
		t, err := cast.ToTimeInDefaultLocationE(s, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized time %q", s)
		}
		return t.UTC(), nil
	default:
		t, err := cast.ToTimeInDefaultLocationE(val, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized time %v", val)
		}
		return t.UTC(), nil
	}
}

// IsDraft reports whether the post is a draft.
func (p *Post) IsDraft() bool { return p.Status == StatusDraft }

// IsReview reports whether the post is awaiting review.
func (p *Post) IsReview() bool { return p.Status == StatusReview }

// IsPublished reports whether the post is published and its timestamp has
// passed.
func (p *Post) IsPublished(now time.Time) bool {
	return p.Status == StatusPublished && !p.Timestamp.After(now)
}

// IsPending reports whether the post is published with a future timestamp.
func (p *Post) IsPending(now time.Time) bool {
	return p.Status == StatusPublished && p.Timestamp.After(now)
}

// IsExternalLink reports whether the post points at an external URL.
func (p *Post) IsExternalLink() bool { return p.Link != "" }

// URL returns the post URL below homeURL.
func (p *Post) URL(homeURL string) string {
	return JoinURL("/", homeURL, p.permalink)
}

// AbsoluteURL returns the post URL including the site origin.
func (p *Post) AbsoluteURL(siteURL, homeURL string) string {
	return strings.TrimRight(siteURL, "/") + p.URL(homeURL)
}

// OutputPath returns the file the post renders to below root.
func (p *Post) OutputPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(OutputFile(p.permalink)))
}

// Stash appends content that is rendered with the body but never written
// back to the source file.
func (p *Post) Stash(content string) {
	p.stash = append(p.stash, content)
}

// Stashed returns the stashed fragments in order.
func (p *Post) Stashed() []string { return p.stash }

// Body returns the preprocessed body followed by any stashed content.
func (p *Post) Body() string {
	if len(p.stash) == 0 {
		return p.ContentPreprocessed
	}
	return p.ContentPreprocessed + "\n\n" + strings.Join(p.stash, "\n")
}

// TeaserBody returns the teaser followed by stashed content, or the full
// body when the post has no teaser.
func (p *Post) TeaserBody() string {
	if p.ContentTeaser == "" {
		return p.Body()
	}
	if len(p.stash) == 0 {
		return p.ContentTeaser
	}
	return p.ContentTeaser + "\n\n" + strings.Join(p.stash, "\n")
}

// HasTeaser reports whether the body was split into a teaser.
func (p *Post) HasTeaser() bool { return p.ContentTeaser != "" }

// NewerThan orders posts by timestamp, newest first.
func NewerThan(a, b *Post) int {
	return b.Timestamp.Compare(a.Timestamp)
}

var (
	firstParagraph = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	htmlTag        = regexp.MustCompile(`<[^>]+>`)
)

// Description extracts the text of the first paragraph of rendered HTML.
func Description(html string) string {
	m := firstParagraph.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(htmlTag.ReplaceAllString(m[1], ""))
}

func (p *Post) String() string {
	return fmt.Sprintf("%s (%s)", p.Title, p.Status)
}

type postJSON struct {
	Source              string         `json:"source"`
	FileContents        string         `json:"file_contents"`
	ContentRaw          string         `json:"content_raw"`
	ContentFinalized    string         `json:"content_finalized"`
	ContentPreprocessed string         `json:"content_preprocessed"`
	ContentTeaser       string         `json:"content_teaser,omitempty"`
	Permalink           string         `json:"permalink"`
	Location            string         `json:"location"`
	Stash               []string       `json:"stash,omitempty"`
	Title               string         `json:"title"`
	Slug                string         `json:"slug"`
	Tags                []string       `json:"tags,omitempty"`
	Link                string         `json:"link,omitempty"`
	Via                 string         `json:"via,omitempty"`
	ViaLink             string         `json:"via_link,omitempty"`
	Status              Status         `json:"status"`
	Timestamp           time.Time      `json:"timestamp"`
	Updated             time.Time      `json:"updated"`
	Template            string         `json:"template"`
	ContentTemplate     string         `json:"content_template"`
	CustomProperties    map[string]any `json:"custom_properties,omitempty"`
	MetadataKeys        []string       `json:"metadata_keys,omitempty"`
	Fenced              bool           `json:"fenced"`
}

// MarshalJSON encodes the full post state, including unexported fields, for
// the artifact cache.
func (p *Post) MarshalJSON() ([]byte, error) {
	return json.Marshal(postJSON{
		Source:              p.source,
		FileContents:        p.fileContents,
		ContentRaw:          p.contentRaw,
		ContentFinalized:    p.contentFinalized,
		ContentPreprocessed: p.ContentPreprocessed,
		ContentTeaser:       p.ContentTeaser,
		Permalink:           p.permalink,
		Location:            p.location.String(),
		Stash:               p.stash,
		Title:               p.Title,
		Slug:                p.Slug,
		Tags:                p.Tags,
		Link:                p.Link,
		Via:                 p.Via,
		ViaLink:             p.ViaLink,
		Status:              p.Status,
		Timestamp:           p.Timestamp,
		Updated:             p.Updated,
		Template:            p.Template,
		ContentTemplate:     p.ContentTemplate,
		CustomProperties:    p.CustomProperties,
		MetadataKeys:        p.MetadataKeys,
		Fenced:              p.Fenced,
	})
}

// UnmarshalJSON restores a post written by MarshalJSON.
func (p *Post) UnmarshalJSON(data []byte) error {
	var v postJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	loc, err := time.LoadLocation(v.Location)
	if err != nil {
		return fmt.Errorf("models: post location: %w", err)
	}
	*p = Post{
		Title:               v.Title,
		Slug:                v.Slug,
		Tags:                v.Tags,
		Link:                v.Link,
		Via:                 v.Via,
		ViaLink:             v.ViaLink,
		Status:              v.Status,
		Timestamp:           v.Timestamp,
		Updated:             v.Updated,
		Template:            v.Template,
		ContentTemplate:     v.ContentTemplate,
		CustomProperties:    v.CustomProperties,
		MetadataKeys:        v.MetadataKeys,
		Fenced:              v.Fenced,
		ContentPreprocessed: v.ContentPreprocessed,
		ContentTeaser:       v.ContentTeaser,
		source:              v.Source,
		fileContents:        v.FileContents,
		contentRaw:          v.ContentRaw,
		contentFinalized:    v.ContentFinalized,
		permalink:           v.Permalink,
		location:            loc,
		stash:               v.Stash,
	}
	if p.CustomProperties == nil {
		p.CustomProperties = map[string]any{}
	}
	return nil
}
