package bundled

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/plugin"
	"github.com/starford/scribe/internal/storage"
)

// RenamerName identifies the Renamer plugin.
const RenamerName = "post_rename"

// Renamer moves source files to a name derived from the post's status, date
// and slug. A status without a mask is left alone.
type Renamer struct {
	masks  map[models.Status]string
	files  storage.Provider
	logger *slog.Logger
}

// NewRenamer returns a Renamer with the default masks.
func NewRenamer() *Renamer {
	return &Renamer{
		masks: map[models.Status]string{
			models.StatusPublished: "({status_short}) {year}-{month}-{day} {slug}.md",
			models.StatusDraft:     "({status}) {slug}.md",
			models.StatusReview:    "({status}) {year}-{month}-{day} {slug}.md",
		},
		logger: slog.Default(),
	}
}

func (*Renamer) Name() string { return RenamerName }

// Configure reads "config", a mapping of status name to file name mask. An
// empty mask disables renaming for that status.
func (r *Renamer) Configure(settings map[string]any, env plugin.Env) error {
	r.files = env.Files
	if env.Logger != nil {
		r.logger = env.Logger
	}
	v, ok := settings["config"]
	if !ok {
		return nil
	}
	masks, err := cast.ToStringMapStringE(v)
	if err != nil {
		return fmt.Errorf("rename: config: %w", err)
	}
	for name, mask := range masks {
		s, err := models.ParseStatus(name)
		if err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		if mask == "" {
			delete(r.masks, s)
			continue
		}
		r.masks[s] = mask
	}
	return nil
}

// Target returns the file name post should have, or "" when its status has
// no mask.
func (r *Renamer) Target(post *models.Post) string {
	mask, ok := r.masks[post.Status]
	if !ok {
		return ""
	}
	ts := post.TimestampLocal()
	status := post.Status.String()
	return strings.NewReplacer(
		"{status}", status,
		"{status_short}", status[:1],
		"{year}", strconv.Itoa(ts.Year()),
		"{month}", ts.Format("01"),
		"{day}", ts.Format("02"),
		"{i_month}", strconv.Itoa(int(ts.Month())),
		"{i_day}", strconv.Itoa(ts.Day()),
		"{slug}", post.Slug,
		"{title}", post.Title,
	).Replace(mask)
}

// Postprocess renames the post's source file and relocates the post. An
// existing file at the target name is never replaced.
func (r *Renamer) Postprocess(post *models.Post) error {
	name := r.Target(post)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	target := filepath.Join(filepath.Dir(post.Source()), name)
	if target == post.Source() {
		return nil
	}
	if r.files.Exists(target) {
		r.logger.Warn("not renaming post: target exists",
			slog.String("path", post.Source()), slog.String("target", target))
		return nil
	}
	if err := r.files.Move(post.Source(), target); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	r.logger.Info("renamed post", slog.String("from", post.Source()), slog.String("to", target))
	post.Relocate(target)
	return nil
}
