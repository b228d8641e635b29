package models

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Named permalink styles accepted in site configuration.
var PermalinkStyles = map[string]string{
	"slug":     "{year}/{month}/{day}/{title}.html",
	"pretty":   "{year}/{month}/{title}/",
	"fulldate": "{year}/{month}/{day}/{title}/",
}

// DefaultPermalinkStyle is used when the site does not configure one.
const DefaultPermalinkStyle = "{year}/{month}/{title}/"

// ResolvePermalinkStyle expands a named style; any other value is returned
// as a literal format string.
func ResolvePermalinkStyle(style string) string {
	if style == "" {
		return DefaultPermalinkStyle
	}
	if format, ok := PermalinkStyles[style]; ok {
		return format
	}
	return style
}

// Permalink evaluates format for a post with the given local timestamp and
// slug. The result is either a directory URL ending in "/" or an explicit
// ".html" URL.
func Permalink(format string, local time.Time, slug string) string {
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(local.Year()),
		"{month}", local.Format("01"),
		"{day}", local.Format("02"),
		"{i_month}", strconv.Itoa(int(local.Month())),
		"{i_day}", strconv.Itoa(local.Day()),
		"{title}", slug,
		"{slug}", slug,
		"{timestamp}", local.Format("2006-01-02T15-04-05"),
	)
	link := r.Replace(format)

	switch {
	case strings.HasSuffix(link, "index.html"):
		link = strings.TrimSuffix(link, "index.html")
		if link != "" && !strings.HasSuffix(link, "/") {
			link += "/"
		}
	case strings.HasSuffix(link, ".html"), strings.HasSuffix(link, "/"):
	default:
		link += ".html"
	}
	return link
}

var slashes = regexp.MustCompile(`/{2,}`)

// JoinURL joins URL fragments and collapses repeated slashes.
func JoinURL(parts ...string) string {
	return slashes.ReplaceAllString(strings.Join(parts, "/"), "/")
}

// OutputFile maps a site-relative URL to a file path relative to the output
// root: directory URLs resolve to their index.html.
func OutputFile(link string) string {
	link = strings.TrimPrefix(link, "/")
	if link == "" || strings.HasSuffix(link, "/") {
		return path.Join(link, "index.html")
	}
	return path.Clean(link)
}
