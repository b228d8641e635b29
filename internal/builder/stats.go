package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/mirror"
	"github.com/starford/scribe/internal/storage"
)

// Counts tallies what a build produced.
type Counts struct {
	TemplatePages int `json:"template_pages"`
	NewPosts      int `json:"new_posts"`
	CachedPosts   int `json:"cached_posts"`
	Rollups       int `json:"rollups"`
	TagPages      int `json:"tag_pages"`
}

// Stats describes one build.
type Stats struct {
	ID        string        `json:"id"`
	TimeRun   time.Time     `json:"time_run"`
	Counts    Counts        `json:"counts"`
	Files     mirror.Report `json:"files"`
	Published bool          `json:"published"`
}

// WriteStats stores stats as JSON at path.
func WriteStats(path string, stats *Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("builder: encode stats: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("builder: stats dir: %w", err)
	}
	files, err := storage.NewFS(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	if err := files.Write(path, append(data, '\n')); err != nil {
		return fmt.Errorf("builder: write stats: %w", err)
	}
	return nil
}

// ReadStats loads the stats of the last published build.
func ReadStats(path string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("builder: stats %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("builder: read stats: %w", err)
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("builder: decode stats: %w", err)
	}
	return &stats, nil
}
