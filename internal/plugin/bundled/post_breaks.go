package bundled

import (
	"regexp"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
)

// PostBreaksName identifies the PostBreaks plugin.
const PostBreaksName = "post_breaks"

// BreakMarker is the normalized form of a post break.
const BreakMarker = "<!-- more -->"

var breakPattern = regexp.MustCompile(`(?i)<!--\s*more\s*-->|-{2,}\s*more\s*-{2,}`)

// PostBreaks normalizes "-- more --" style markers and cuts the teaser at the
// first one.
type PostBreaks struct{}

func (*PostBreaks) Name() string { return PostBreaksName }

func (*PostBreaks) Preprocess(post *models.Post, meta *parser.Metadata) (*models.Post, *parser.Metadata, error) {
	body := post.ContentPreprocessed
	loc := breakPattern.FindStringIndex(body)
	if loc == nil {
		return post, meta, nil
	}
	post.ContentTeaser = body[:loc[0]]
	post.ContentPreprocessed = breakPattern.ReplaceAllString(body, BreakMarker)
	return post, meta, nil
}
