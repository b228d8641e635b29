package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/builder"
	"github.com/starford/scribe/internal/compress"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/plugin/bundled"
	"github.com/starford/scribe/internal/render"
	"github.com/starford/scribe/pkg/config"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Site       SiteConfig        `yaml:"site"`
	Paths      PathsConfig       `yaml:"paths"`
	Publish    PublishConfig     `yaml:"publish"`
	Feed       FeedConfig        `yaml:"feed"`
	Cache      CacheConfig       `yaml:"cache"`
	Compressor CompressorConfig  `yaml:"compressor"`
	LESS       LESSConfig        `yaml:"less"`
	Server     ServerConfig      `yaml:"server"`
	Plugins    PluginsConfig     `yaml:"plugins"`

	// dir is the directory of the loaded config file.
	dir string
}

// LoadConfig reads the config file at path over the defaults and resolves
// relative paths against its directory.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := config.Load(path, cfg); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	cfg.ResolvePaths(filepath.Dir(abs))
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Site, &c.Paths, &c.Feed, &c.Compressor, &c.Server, &c.Plugins} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Dir returns the directory relative paths were resolved against.
func (c *Config) Dir() string { return c.dir }

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// SiteConfig describes the published site.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	// URL is the site origin, e.g. "https://example.com".
	URL string `yaml:"url"`
	// HomeURL is the path the site is served below.
	HomeURL string `yaml:"home_url"`
	Timezone string `yaml:"timezone"`
	// PermalinkStyle is a named style (slug, pretty, fulldate) or a format
	// string with placeholders such as {year} and {title}.
	PermalinkStyle string `yaml:"permalink_style"`
	RollupPageSize int    `yaml:"rollup_page_size"`
	TimeFormat     string `yaml:"time_format"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required.Error("site.url is required")),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := time.LoadLocation(c.Timezone)
			return err
		})),
		validation.Field(&c.RollupPageSize, validation.Required, validation.Min(1)),
	)
}

// Location returns the configured timezone.
func (c *SiteConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PathsConfig holds the site directories. Relative paths are resolved
// against the config file's directory.
type PathsConfig struct {
	// Posts are the source directories; a trailing "*" searches recursively.
	Posts         []string `yaml:"posts"`
	Content       string   `yaml:"content"`
	Output        string   `yaml:"output"`
	OutputIgnore  []string `yaml:"output_ignore"`
	Templates     string   `yaml:"templates"`
	TemplatePages string   `yaml:"template_pages"`
	Theme         string   `yaml:"theme"`
	CacheDir      string   `yaml:"cache_dir"`
	CacheFile     string   `yaml:"cache_file"`
	BuildStats    string   `yaml:"build_stats_file"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Posts, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.CacheDir, validation.Required),
	)
}

// PublishConfig forces non-published posts into the build.
type PublishConfig struct {
	Drafts  bool `yaml:"drafts"`
	Pending bool `yaml:"pending"`
	Review  bool `yaml:"review"`
}

// FeedConfig configures the syndication feeds.
type FeedConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	// URL defaults to the Atom feed below the home URL.
	URL       string `yaml:"url"`
	ItemLimit int    `yaml:"item_limit"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ItemLimit, validation.Min(0)),
	)
}

// CacheConfig controls the artifact cache.
type CacheConfig struct {
	Disabled bool `yaml:"disabled"`
}

// CompressorConfig controls CSS and JavaScript minification.
type CompressorConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
}

// Validate validates the compressor configuration.
func (c *CompressorConfig) Validate() error {
	for _, ext := range c.Extensions {
		if !compress.Supported(ext) {
			return fmt.Errorf("compressor: unsupported extension %q", ext)
		}
	}
	return nil
}

// LESSConfig controls LESS compilation.
type LESSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

// ServerConfig holds development server configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Address returns the server listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PluginsConfig selects the bundled plugins. Every other key is the settings
// mapping of the plugin it names.
type PluginsConfig struct {
	Enabled     []string                  `yaml:"enabled"`
	Permissions map[string][]string       `yaml:"permissions"`
	Settings    map[string]map[string]any `yaml:",inline"`
}

// Validate validates the plugins configuration.
func (c *PluginsConfig) Validate() error {
	var errs []error
	for _, name := range c.Enabled {
		if !slices.Contains(bundled.Names, name) {
			errs = append(errs, fmt.Errorf("plugins: unknown plugin %q", name))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Settings)) {
		if !slices.Contains(bundled.Names, name) {
			errs = append(errs, fmt.Errorf("plugins: settings for unknown plugin %q", name))
		}
	}
	return errors.Join(errs...)
}

// ResolvePaths makes every relative path absolute against dir.
func (c *Config) ResolvePaths(dir string) {
	c.dir = dir
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	posts := make([]string, 0, len(c.Paths.Posts))
	for _, p := range c.Paths.Posts {
		recursive := strings.HasSuffix(p, "*")
		p = abs(strings.TrimSuffix(p, "*"))
		if recursive {
			p = strings.TrimSuffix(p, string(filepath.Separator)) + string(filepath.Separator) + "*"
		}
		posts = append(posts, p)
	}
	c.Paths.Posts = posts

	c.Paths.Content = abs(c.Paths.Content)
	c.Paths.Output = abs(c.Paths.Output)
	c.Paths.Templates = abs(c.Paths.Templates)
	c.Paths.TemplatePages = abs(c.Paths.TemplatePages)
	c.Paths.Theme = abs(c.Paths.Theme)
	c.Paths.CacheDir = abs(c.Paths.CacheDir)
	if c.Paths.CacheFile == "" {
		c.Paths.CacheFile = filepath.Join(c.Paths.CacheDir, "cache.db")
	}
	c.Paths.CacheFile = abs(c.Paths.CacheFile)
	if c.Paths.BuildStats == "" {
		c.Paths.BuildStats = filepath.Join(c.Paths.CacheDir, "build_stats.json")
	}
	c.Paths.BuildStats = abs(c.Paths.BuildStats)
}

// PostSite returns the settings posts derive their defaults from.
func (c *Config) PostSite() models.Site {
	return models.Site{
		PermalinkFormat: models.ResolvePermalinkStyle(c.Site.PermalinkStyle),
		Location:        c.Site.Location(),
		TimeFormat:      c.Site.TimeFormat,
		HomeURL:         c.homeURL(),
	}
}

// RenderSite returns the site context handed to templates.
func (c *Config) RenderSite() render.Site {
	return render.Site{
		Title:       c.Site.Title,
		Description: c.Site.Description,
		Author:      c.Site.Author,
		URL:         strings.TrimRight(c.Site.URL, "/"),
		HomeURL:     c.homeURL(),
		FeedURL:     c.feedURL(),
		Location:    c.Site.Location(),
	}
}

func (c *Config) homeURL() string {
	if c.Site.HomeURL == "" {
		return "/"
	}
	return c.Site.HomeURL
}

func (c *Config) feedURL() string {
	if c.Feed.URL != "" {
		return c.Feed.URL
	}
	return strings.TrimRight(c.Site.URL, "/") + models.JoinURL("/", c.homeURL(), builder.AtomFile)
}

// BuilderOptions converts the configuration into build options.
func (c *Config) BuilderOptions() builder.Options {
	itemLimit := c.Feed.ItemLimit
	if itemLimit == 0 {
		itemLimit = c.Site.RollupPageSize
	}
	return builder.Options{
		Site:       c.PostSite(),
		RenderSite: c.RenderSite(),
		Paths: builder.Paths{
			Root:          c.dir,
			Posts:         c.Paths.Posts,
			Content:       c.Paths.Content,
			Output:        c.Paths.Output,
			OutputIgnore:  c.Paths.OutputIgnore,
			Templates:     c.Paths.Templates,
			TemplatePages: c.Paths.TemplatePages,
			Theme:         c.Paths.Theme,
			CacheDir:      c.Paths.CacheDir,
			CacheFile:     c.Paths.CacheFile,
			StatsFile:     c.Paths.BuildStats,
		},
		Publish: builder.Publish{
			Drafts:  c.Publish.Drafts,
			Pending: c.Publish.Pending,
			Review:  c.Publish.Review,
		},
		Feed: builder.Feed{
			Title:       c.Feed.Title,
			Description: c.Feed.Description,
			URL:         c.feedURL(),
			ItemLimit:   itemLimit,
		},
		Plugins: builder.Plugins{
			Enabled:     c.Plugins.Enabled,
			Permissions: c.Plugins.Permissions,
			Settings:    c.Plugins.Settings,
		},
		RollupPageSize:     c.Site.RollupPageSize,
		CacheDisabled:      c.Cache.Disabled,
		Compress:           c.Compressor.Enabled,
		CompressExtensions: c.Compressor.Extensions,
		LESS:               c.LESS.Enabled,
		LESSCommand:        c.LESS.Command,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Site: SiteConfig{
			Title:          "My Blog",
			HomeURL:        "/",
			Timezone:       "UTC",
			PermalinkStyle: models.DefaultPermalinkStyle,
			RollupPageSize: 5,
			TimeFormat:     models.DefaultTimeFormat,
		},
		Paths: PathsConfig{
			Posts:         []string{"posts"},
			Content:       "content",
			Output:        "output",
			OutputIgnore:  []string{".git", ".gitignore"},
			Templates:     "templates",
			TemplatePages: "template_pages",
			CacheDir:      ".cache",
		},
		Compressor: CompressorConfig{
			Extensions: compress.DefaultExtensions,
		},
		LESS: LESSConfig{
			Command: "lessc",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Plugins: PluginsConfig{
			Enabled: bundled.DefaultEnabled,
		},
	}
}
