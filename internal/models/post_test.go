package models

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/parser"
)

func parsePost(t *testing.T, source, text string, site Site, now time.Time) *Post {
	t.Helper()
	res, err := parser.Parse([]byte(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p := NewPost(source, text, res)
	if err := p.Apply(res.Metadata, site, now, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return p
}

func TestPermalink_Styles(t *testing.T) {
	ts := time.Date(2012, 9, 4, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		format string
		want   string
	}{
		{"{year}/{month}/{day}/{title}.html", "2012/09/04/tag-multiple.html"},
		{"{year}/{month}/{title}/", "2012/09/tag-multiple/"},
		{"{year}/{month}/{title}/index.html", "2012/09/tag-multiple/"},
		{"{year}/{i_month}/{i_day}/{slug}", "2012/9/4/tag-multiple.html"},
	}
	for _, tt := range tests {
		if got := Permalink(tt.format, ts, "tag-multiple"); got != tt.want {
			t.Errorf("Permalink(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestResolvePermalinkStyle(t *testing.T) {
	if got := ResolvePermalinkStyle("slug"); got != "{year}/{month}/{day}/{title}.html" {
		t.Errorf("slug = %q", got)
	}
	if got := ResolvePermalinkStyle(""); got != DefaultPermalinkStyle {
		t.Errorf("empty = %q", got)
	}
	if got := ResolvePermalinkStyle("{slug}/"); got != "{slug}/" {
		t.Errorf("literal = %q", got)
	}
}

func TestOutputFile(t *testing.T) {
	tests := map[string]string{
		"/2012/09/tag-multiple/":       "2012/09/tag-multiple/index.html",
		"2012/09/04/tag-multiple.html": "2012/09/04/tag-multiple.html",
		"/":                            "index.html",
	}
	for in, want := range tests {
		if got := OutputFile(in); got != want {
			t.Errorf("OutputFile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPost_URLs(t *testing.T) {
	site := Site{PermalinkFormat: "slug"}
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	p := parsePost(t, "/posts/tag.md", "title: Tag Multiple\ntimestamp: 2012-09-04 10:00:00\n---\nbody\n", site, now)

	if got := p.URL("/"); got != "/2012/09/04/tag-multiple.html" {
		t.Errorf("URL = %q", got)
	}
	if got := p.URL("/blog/"); got != "/blog/2012/09/04/tag-multiple.html" {
		t.Errorf("URL(/blog/) = %q", got)
	}
	if got := p.AbsoluteURL("https://example.com/", "/"); got != "https://example.com/2012/09/04/tag-multiple.html" {
		t.Errorf("AbsoluteURL = %q", got)
	}

	p2 := parsePost(t, "/posts/tag.md", "title: Tag Multiple\ntimestamp: 2012-09-04 10:00:00\n---\nbody\n", Site{PermalinkFormat: "pretty"}, now)
	want := filepath.Join("out", "2012", "09", "tag-multiple", "index.html")
	if got := p2.OutputPath("out"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}
}

func TestPost_Defaults(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	p := parsePost(t, "/posts/my_first-post.md", "tags: go\n---\nHello\n", Site{Location: loc}, now)

	if p.Title != "My First Post" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.Slug != "my-first-post" {
		t.Errorf("Slug = %q", p.Slug)
	}
	if p.Status != StatusDraft {
		t.Errorf("Status = %v, want draft", p.Status)
	}
	if want := time.Date(2021, 3, 14, 15, 9, 0, 0, time.UTC); !p.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", p.Timestamp, want)
	}
	if len(p.Tags) != 1 || p.Tags[0] != "go" {
		t.Errorf("Tags = %v", p.Tags)
	}
	if p.Template != DefaultTemplate || p.ContentTemplate != DefaultContentTemplate {
		t.Errorf("templates = %q, %q", p.Template, p.ContentTemplate)
	}
	if p.ContentRaw() != "Hello\n" {
		t.Errorf("ContentRaw = %q", p.ContentRaw())
	}
}

func TestPost_NonLatinTitleSlug(t *testing.T) {
	now := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	doc := "title: Привет мир\ntimestamp: 2012-09-04 10:00:00\n---\nx\n"
	p := parsePost(t, "/posts/hello.md", doc, Site{}, now)

	if p.Slug != "privet-mir" {
		t.Errorf("Slug = %q, want privet-mir", p.Slug)
	}
	if p.Permalink() != "2012/09/privet-mir/" {
		t.Errorf("Permalink = %q", p.Permalink())
	}
}

func TestPost_SlugFallsBackToTimestamp(t *testing.T) {
	now := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	doc := "title: \"?!\"\ntimestamp: 2012-09-04 10:30:00\n---\nx\n"
	p := parsePost(t, "/posts/___.md", doc, Site{}, now)

	if p.Slug != "2012-09-04-103000" {
		t.Errorf("Slug = %q, want 2012-09-04-103000", p.Slug)
	}
	if strings.HasSuffix(p.Permalink(), "//") {
		t.Errorf("Permalink = %q has an empty slug", p.Permalink())
	}
}

func TestPost_TimestampInterpretedInLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	p := parsePost(t, "/p.md", "timestamp: 2012-09-04 10:00:00\n---\nx\n", Site{Location: loc}, time.Now())

	if want := time.Date(2012, 9, 4, 15, 0, 0, 0, time.UTC); !p.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", p.Timestamp, want)
	}
	if p.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", p.Timestamp.Location())
	}
	if got := p.TimestampLocal().Hour(); got != 10 {
		t.Errorf("local hour = %d, want 10", got)
	}
}

func TestPost_UnknownStatusIsDraft(t *testing.T) {
	p := parsePost(t, "/p.md", "status: someday\n---\nx\n", Site{}, time.Now())
	if p.Status != StatusDraft {
		t.Errorf("Status = %v, want draft", p.Status)
	}
}

func TestPost_InvalidTimestamp(t *testing.T) {
	text := "timestamp: not a date\n---\nx\n"
	res, err := parser.Parse([]byte(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	err = NewPost("/p.md", text, res).Apply(res.Metadata, Site{}, time.Now(), nil)
	if !apperr.IsMetadata(err) {
		t.Fatalf("err = %v, want MetadataError", err)
	}
}

func TestPost_CustomPropertiesAndAliases(t *testing.T) {
	text := "Title: Hi\nVia_Link: https://x.test\nContent_Template: short\nmood: happy\n---\nx\n"
	p := parsePost(t, "/p.md", text, Site{}, time.Now())

	if p.Title != "Hi" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.ViaLink != "https://x.test" {
		t.Errorf("ViaLink = %q", p.ViaLink)
	}
	if p.ContentTemplate != "short.html" {
		t.Errorf("ContentTemplate = %q", p.ContentTemplate)
	}
	if len(p.CustomProperties) != 1 || p.CustomProperties["mood"] != "happy" {
		t.Errorf("CustomProperties = %v", p.CustomProperties)
	}
}

func TestPost_PendingClassification(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	p := parsePost(t, "/p.md", "status: published\ntimestamp: "+future+"\n---\nx\n", Site{}, now)

	if !p.IsPending(now) {
		t.Fatal("IsPending = false, want true")
	}
	if p.IsPublished(now) {
		t.Fatal("IsPublished = true, want false")
	}
}

func TestPost_StashIsNotFinalized(t *testing.T) {
	p := parsePost(t, "/p.md", "title: x\n---\nbody", Site{}, time.Now())
	p.Stash("[a]: https://a.test")

	if !strings.HasSuffix(p.Body(), "[a]: https://a.test") {
		t.Errorf("Body = %q", p.Body())
	}
	if strings.Contains(p.ContentFinalized(), "https://a.test") {
		t.Errorf("ContentFinalized contains stash: %q", p.ContentFinalized())
	}
}

func TestPost_JSONRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	p := parsePost(t, "/posts/a.md", "title: A\nstatus: review\ntags: [x, y]\nextra: 3\n---\nbody\n", Site{Location: loc}, time.Now())
	p.Stash("stashed")
	p.ContentTeaser = "teaser"

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Post
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Source() != p.Source() || got.Permalink() != p.Permalink() || got.ContentRaw() != p.ContentRaw() {
		t.Errorf("unexported state lost: %+v", got)
	}
	if got.Status != StatusReview || got.Title != "A" || len(got.Tags) != 2 {
		t.Errorf("fields lost: %+v", got)
	}
	if got.Location().String() != "America/New_York" {
		t.Errorf("Location = %v", got.Location())
	}
	if len(got.Stashed()) != 1 || got.ContentTeaser != "teaser" {
		t.Errorf("stash/teaser lost: %v %q", got.Stashed(), got.ContentTeaser)
	}
}

func TestDescription(t *testing.T) {
	got := Description("<h1>T</h1>\n<p>First <em>para</em>.</p><p>Second</p>")
	if got != "First para." {
		t.Errorf("Description = %q", got)
	}
}
