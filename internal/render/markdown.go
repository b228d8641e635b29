package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Converter turns markdown into HTML.
type Converter interface {
	Convert(src string) (string, error)
}

// Markdown is the goldmark-backed Converter. Raw HTML in the source is
// passed through so post break markers and embeds survive.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown returns a Converter with GitHub flavoured markdown, footnotes
// and typographic punctuation enabled.
func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)}
}

func (m *Markdown) Convert(src string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render: markdown: %w", err)
	}
	return buf.String(), nil
}
