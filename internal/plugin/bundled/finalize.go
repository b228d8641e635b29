package bundled

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/plugin"
	"github.com/starford/scribe/internal/storage"
)

// Write-back formats.
const (
	FormatInput    = "input"
	FormatFenced   = "fenced"
	FormatUnfenced = "unfenced"
)

var formatAliases = map[string]string{
	FormatInput:    FormatInput,
	FormatFenced:   FormatFenced,
	"jekyll":       FormatFenced,
	"octopress":    FormatFenced,
	FormatUnfenced: FormatUnfenced,
	"engineer":     FormatUnfenced,
}

// finalizedFields is the order reserved fields are written in.
var finalizedFields = []string{
	"title", "status", "timestamp", "link", "via", "via-link", "slug",
	"tags", "updated", "template", "content-template", "url",
}

var fieldAliases = map[string][]string{
	"via-link":         {"via-link", "via_link"},
	"content-template": {"content-template", "content_template"},
}

// Finalizer rewrites each post's source file with normalized metadata.
// A field is written when the file already had it or when the post's
// status is listed for it in the configuration. The write is skipped when
// the file would not change.
type Finalizer struct {
	always map[string][]models.Status
	format string
	site   models.Site
	files  storage.Provider
	logger *slog.Logger
}

// NewFinalizer returns a Finalizer with the default field configuration.
func NewFinalizer() *Finalizer {
	all := models.Statuses()
	return &Finalizer{
		always: map[string][]models.Status{
			"timestamp": {models.StatusPublished},
			"title":     all,
			"slug":      all,
			"url":       {models.StatusReview, models.StatusPublished},
		},
		format: FormatInput,
		logger: slog.Default(),
	}
}

func (*Finalizer) Name() string { return plugin.FinalizerName }

// Configure reads "format" and "config", the latter mapping a field name to
// the statuses for which it is always written.
func (f *Finalizer) Configure(settings map[string]any, env plugin.Env) error {
	f.site = env.Site
	f.files = env.Files
	if env.Logger != nil {
		f.logger = env.Logger
	}

	if v, ok := settings["format"]; ok {
		format, ok := formatAliases[strings.ToLower(cast.ToString(v))]
		if !ok {
			return fmt.Errorf("finalize: unknown format %q", v)
		}
		f.format = format
	}

	if v, ok := settings["config"]; ok {
		fields, err := cast.ToStringMapE(v)
		if err != nil {
			return fmt.Errorf("finalize: config: %w", err)
		}
		for field, raw := range fields {
			field = strings.ToLower(field)
			if !slices.Contains(finalizedFields, field) {
				return fmt.Errorf("finalize: unknown field %q", field)
			}
			var statuses []models.Status
			for _, name := range parser.StringList(raw) {
				if strings.EqualFold(name, "all") {
					statuses = models.Statuses()
					break
				}
				s, err := models.ParseStatus(name)
				if err != nil {
					return fmt.Errorf("finalize: field %s: %w", field, err)
				}
				statuses = append(statuses, s)
			}
			f.always[field] = statuses
		}
	}
	return nil
}

// Postprocess writes the finalized post back to its source file when it
// differs from what is on disk.
func (f *Finalizer) Postprocess(post *models.Post) error {
	metadata, err := f.Metadata(post)
	if err != nil {
		return err
	}
	fenced := f.fenced(post)

	if !f.needsUpdate(post, metadata, fenced) {
		return nil
	}

	if err := f.files.Write(post.Source(), []byte(Compose(metadata, post.ContentFinalized(), fenced))); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	f.logger.Info("finalized post metadata", slog.String("path", post.Source()))
	return nil
}

func (f *Finalizer) fenced(post *models.Post) bool {
	switch f.format {
	case FormatFenced:
		return true
	case FormatUnfenced:
		return false
	default:
		return post.Fenced
	}
}

func (f *Finalizer) needsUpdate(post *models.Post, metadata string, fenced bool) bool {
	raw, body, wasFenced, err := parser.Split(post.FileContents())
	if err != nil {
		return true
	}
	return wasFenced != fenced ||
		strings.TrimSpace(raw) != strings.TrimSpace(metadata) ||
		strings.TrimSpace(body) != strings.TrimSpace(post.ContentFinalized())
}

// Compose assembles a source file from a metadata block and a body.
func Compose(metadata, body string, fenced bool) string {
	var b strings.Builder
	if fenced {
		b.WriteString(parser.Delimiter + "\n")
	}
	b.WriteString(strings.TrimRight(metadata, "\n"))
	b.WriteString("\n" + parser.Delimiter + "\n\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n")
	return b.String()
}

func (f *Finalizer) include(post *models.Post, field string) bool {
	if slices.Contains(f.always[field], post.Status) {
		return true
	}
	names := fieldAliases[field]
	if names == nil {
		names = []string{field}
	}
	return slices.ContainsFunc(post.MetadataKeys, func(k string) bool {
		return slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(k, n) })
	})
}

func (f *Finalizer) value(post *models.Post, field string) (any, bool) {
	switch field {
	case "title":
		return post.Title, true
	case "status":
		return post.Status.String(), true
	case "timestamp":
		return post.TimestampLocal().Format(f.site.Format()), true
	case "link":
		return post.Link, post.Link != ""
	case "via":
		return post.Via, post.Via != ""
	case "via-link":
		return post.ViaLink, post.ViaLink != ""
	case "slug":
		return post.Slug, post.Slug != ""
	case "tags":
		return post.Tags, true
	case "updated":
		if post.Updated.IsZero() {
			return nil, false
		}
		return post.UpdatedLocal().Format(f.site.Format()), true
	case "template":
		return post.Template, post.Template != ""
	case "content-template":
		return post.ContentTemplate, post.ContentTemplate != ""
	case "url":
		return post.URL(f.site.HomeURL), true
	}
	return nil, false
}

// Metadata renders the normalized metadata block for post: reserved fields
// in a fixed order, then a blank line and the custom properties.
func (f *Finalizer) Metadata(post *models.Post) (string, error) {
	reserved := &yaml.Node{Kind: yaml.MappingNode}
	for _, field := range finalizedFields {
		if !f.include(post, field) {
			continue
		}
		v, ok := f.value(post, field)
		if !ok {
			continue
		}
		var node yaml.Node
		if err := node.Encode(v); err != nil {
			return "", fmt.Errorf("finalize: encode %s: %w", field, err)
		}
		if node.Kind == yaml.SequenceNode {
			node.Style = yaml.FlowStyle
		}
		reserved.Content = append(reserved.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field}, &node)
	}

	var out string
	if len(reserved.Content) > 0 {
		var err error
		if out, err = encodeYAML(reserved); err != nil {
			return "", err
		}
	}

	custom := make(map[string]any, len(post.CustomProperties))
	for k, v := range post.CustomProperties {
		if strings.EqualFold(k, "url") {
			continue
		}
		custom[k] = v
	}
	if len(custom) > 0 {
		extra, err := encodeYAML(custom)
		if err != nil {
			return "", err
		}
		if out != "" {
			out += "\n"
		}
		out += extra
	}
	return strings.TrimRight(out, "\n"), nil
}

func encodeYAML(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("finalize: encode metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("finalize: encode metadata: %w", err)
	}
	return buf.String(), nil
}
