package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSiteConfig_URLRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("config without site.url should fail")
	}
	if !strings.Contains(err.Error(), "site.url is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSiteConfig_InvalidTimezone(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Site.URL = "https://example.test"
	cfg.Site.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown timezone should fail validation")
	}
}

func TestSiteConfig_RollupPageSize(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Site.URL = "https://example.test"
	cfg.Site.RollupPageSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("rollup page size 0 should fail validation")
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := ApplicationConfig{LogFormat: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log format should fail validation")
	}
}

func TestServerConfig_Port(t *testing.T) {
	for _, port := range []int{0, 70000} {
		cfg := ServerConfig{Port: port}
		if err := cfg.Validate(); err == nil {
			t.Errorf("port %d should fail validation", port)
		}
	}
	cfg := ServerConfig{Port: 8080}
	if cfg.Address() != ":8080" {
		t.Errorf("Address = %q, want :8080", cfg.Address())
	}
}

func TestPluginsConfig_UnknownPlugin(t *testing.T) {
	cfg := PluginsConfig{Enabled: []string{"post_breaks", "nope"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("err = %v, want unknown plugin error", err)
	}
}

func TestCompressorConfig_UnsupportedExtension(t *testing.T) {
	cfg := CompressorConfig{Extensions: []string{".css", ".png"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unsupported extension should fail validation")
	}
}

func TestLoadConfig_ResolvesPathsAndPlugins(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "config.yaml", `
app:
  log_level: debug
site:
  url: https://example.test/
  home_url: /blog/
  timezone: America/New_York
  permalink_style: pretty
paths:
  posts: [posts, drafts/*]
  output: /srv/www
plugins:
  enabled: [post_breaks, finalize_metadata]
  permissions:
    modify_raw_post: [lazy_links]
  finalize_metadata:
    format: fenced
`)
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.App.LogLevel)
	}
	want := []string{filepath.Join(dir, "posts"), filepath.Join(dir, "drafts") + string(filepath.Separator) + "*"}
	if strings.Join(cfg.Paths.Posts, "|") != strings.Join(want, "|") {
		t.Errorf("Posts = %v, want %v", cfg.Paths.Posts, want)
	}
	if cfg.Paths.Output != "/srv/www" {
		t.Errorf("Output = %q, want absolute path kept", cfg.Paths.Output)
	}
	if cfg.Paths.CacheFile != filepath.Join(dir, ".cache", "cache.db") {
		t.Errorf("CacheFile = %q", cfg.Paths.CacheFile)
	}
	if got := cfg.Plugins.Settings["finalize_metadata"]["format"]; got != "fenced" {
		t.Errorf("finalize format = %v, want fenced", got)
	}
	if len(cfg.Plugins.Permissions["modify_raw_post"]) != 1 {
		t.Errorf("Permissions = %v", cfg.Plugins.Permissions)
	}

	opts := cfg.BuilderOptions()
	if opts.Site.PermalinkFormat != "{year}/{month}/{title}/" {
		t.Errorf("PermalinkFormat = %q", opts.Site.PermalinkFormat)
	}
	if opts.Site.Location.String() != "America/New_York" {
		t.Errorf("Location = %v", opts.Site.Location)
	}
	if opts.Feed.URL != "https://example.test/blog/feeds/atom.xml" {
		t.Errorf("Feed.URL = %q", opts.Feed.URL)
	}
	if opts.Feed.ItemLimit != cfg.Site.RollupPageSize {
		t.Errorf("ItemLimit = %d, want rollup size %d", opts.Feed.ItemLimit, cfg.Site.RollupPageSize)
	}
	if opts.Paths.Root != dir {
		t.Errorf("Root = %q, want %q", opts.Paths.Root, dir)
	}
}

func TestLoadConfig_InheritsSuper(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "site:\n  url: https://base.test\n  title: Base\npublish:\n  drafts: true\n")
	p := writeConfig(t, dir, "config.yaml", "super: base.yaml\nsite:\n  title: Child\npublish:\n  drafts: false\n")

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Site.URL != "https://base.test" || cfg.Site.Title != "Child" {
		t.Errorf("Site = %+v", cfg.Site)
	}
	if cfg.Publish.Drafts {
		t.Error("child drafts: false did not override parent")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestConfig_RenderSite(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Site.URL = "https://example.test/"
	cfg.Site.Timezone = "UTC"
	site := cfg.RenderSite()
	if site.URL != "https://example.test" {
		t.Errorf("URL = %q", site.URL)
	}
	if site.Location != time.UTC {
		t.Errorf("Location = %v", site.Location)
	}
	if site.FeedURL != "https://example.test/feeds/atom.xml" {
		t.Errorf("FeedURL = %q", site.FeedURL)
	}
}
