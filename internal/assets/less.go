// Package assets prepares static assets in the staging tree.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/starford/scribe/internal/apperr"
)

// DefaultLESSCommand compiles a .less file given its input and output paths.
const DefaultLESSCommand = "lessc"

// LESS compiles .less stylesheets to CSS with an external compiler.
type LESS struct {
	command []string
	logger  *slog.Logger
}

// NewLESS returns a LESS step running command followed by the input and
// output paths. The executable must be on PATH or given as a path.
func NewLESS(command string, logger *slog.Logger) (*LESS, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		args = []string{DefaultLESSCommand}
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("assets: less compiler %q: %w", args[0], err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LESS{command: args, logger: logger}, nil
}

// Compile builds every .less file below root into a sibling .css file, then
// removes all .less sources. Files starting with "_" are treated as imports
// and only removed. The first failing compile aborts with an
// *apperr.ProcessError carrying the compiler output.
func (l *LESS) Compile(ctx context.Context, root string) ([]string, error) {
	var sources, built []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".less") {
			sources = append(sources, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assets: find less: %w", err)
	}

	for _, src := range sources {
		if strings.HasPrefix(filepath.Base(src), "_") {
			continue
		}
		dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".css"
		if err := l.run(ctx, src, dst); err != nil {
			return built, err
		}
		built = append(built, dst)
	}

	for _, src := range sources {
		if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return built, fmt.Errorf("assets: remove %s: %w", src, err)
		}
	}
	return built, nil
}

func (l *LESS) run(ctx context.Context, src, dst string) error {
	args := append(append([]string{}, l.command[1:]...), src, dst)
	cmd := exec.CommandContext(ctx, l.command[0], args...)
	cmd.Dir = filepath.Dir(src)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &apperr.ProcessError{
			Command: strings.Join(append([]string{l.command[0]}, args...), " "),
			Output:  string(out),
			Err:     err,
		}
	}
	l.logger.Debug("compiled less", slog.String("source", src), slog.String("output", dst))
	return nil
}
