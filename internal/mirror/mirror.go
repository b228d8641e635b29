// Package mirror synchronizes a source directory tree into a target tree,
// copying only what changed and reporting every path it touched.
package mirror

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Report lists the absolute target paths a sync created, overwrote or
// deleted. The three lists are disjoint and sorted.
type Report struct {
	New         []string `json:"new"`
	Overwritten []string `json:"overwritten"`
	Deleted     []string `json:"deleted"`
}

// Empty reports whether the sync changed nothing.
func (r Report) Empty() bool {
	return len(r.New) == 0 && len(r.Overwritten) == 0 && len(r.Deleted) == 0
}

func (r *Report) merge(o Report) {
	r.New = append(r.New, o.New...)
	r.Overwritten = append(r.Overwritten, o.Overwritten...)
	r.Deleted = append(r.Deleted, o.Deleted...)
}

func (r *Report) sort() {
	slices.Sort(r.New)
	slices.Sort(r.Overwritten)
	slices.Sort(r.Deleted)
}

type options struct {
	deleteOrphans bool
	recurse       bool
	ignore        []string
}

// Option configures Sync.
type Option func(*options)

// KeepOrphans leaves target entries that are missing from the source.
func KeepOrphans() Option {
	return func(o *options) { o.deleteOrphans = false }
}

// NoRecurse restricts the sync to the top level of both trees.
func NoRecurse() Option {
	return func(o *options) { o.recurse = false }
}

// WithIgnore protects target-only paths from orphan deletion. Source entries
// are still copied over ignored targets. Relative paths are resolved against
// the target root; an ignored directory protects everything below it.
func WithIgnore(paths ...string) Option {
	return func(o *options) { o.ignore = append(o.ignore, paths...) }
}

// ignoreSet holds absolute ignored paths under a root.
type ignoreSet []string

func newIgnoreSet(root string, paths []string) ignoreSet {
	out := make(ignoreSet, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func (s ignoreSet) has(path string) bool {
	for _, p := range s {
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Sync makes dst mirror src. By default orphans are deleted and
// subdirectories are mirrored recursively. src is never modified and dst is
// created when missing.
func Sync(src, dst string, opts ...Option) (Report, error) {
	o := options{deleteOrphans: true, recurse: true}
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	if src, err = filepath.Abs(src); err != nil {
		return Report{}, fmt.Errorf("mirror: %w", err)
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return Report{}, fmt.Errorf("mirror: %w", err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return Report{}, fmt.Errorf("mirror: source: %w", err)
	}
	if !info.IsDir() {
		return Report{}, fmt.Errorf("mirror: source %s is not a directory", src)
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return Report{}, fmt.Errorf("mirror: create target: %w", err)
	}

	report, err := syncDir(src, dst, o, newIgnoreSet(dst, o.ignore))
	if err != nil {
		return Report{}, err
	}
	report.sort()
	return report, nil
}

func syncDir(src, dst string, o options, ignore ignoreSet) (Report, error) {
	var report Report

	srcEntries, err := entries(src)
	if err != nil {
		return report, err
	}
	dstEntries, err := entries(dst)
	if err != nil {
		return report, err
	}

	for _, name := range sortedKeys(dstEntries) {
		if _, ok := srcEntries[name]; ok || !o.deleteOrphans {
			continue
		}
		target := filepath.Join(dst, name)
		if ignore.has(target) {
			continue
		}
		if dstEntries[name].IsDir() {
			if !o.recurse {
				continue
			}
			paths, err := tree(target)
			if err != nil {
				return report, err
			}
			if err := os.RemoveAll(target); err != nil {
				return report, fmt.Errorf("mirror: delete %s: %w", target, err)
			}
			report.Deleted = append(report.Deleted, paths...)
			continue
		}
		if err := os.Remove(target); err != nil {
			return report, fmt.Errorf("mirror: delete %s: %w", target, err)
		}
		report.Deleted = append(report.Deleted, target)
	}

	for _, name := range sortedKeys(srcEntries) {
		source, target := filepath.Join(src, name), filepath.Join(dst, name)
		srcEntry := srcEntries[name]
		dstEntry, exists := dstEntries[name]

		switch {
		case !exists && srcEntry.IsDir():
			if !o.recurse {
				continue
			}
			paths, err := copyTree(source, target)
			if err != nil {
				return report, err
			}
			report.New = append(report.New, paths...)

		case !exists:
			if err := copyFile(source, target); err != nil {
				return report, err
			}
			report.New = append(report.New, target)

		case srcEntry.IsDir() && dstEntry.IsDir():
			if !o.recurse {
				continue
			}
			sub, err := syncDir(source, target, o, ignore)
			if err != nil {
				return report, err
			}
			report.merge(sub)

		case srcEntry.IsDir() != dstEntry.IsDir():
			if srcEntry.IsDir() && !o.recurse {
				continue
			}
			if err := os.RemoveAll(target); err != nil {
				return report, fmt.Errorf("mirror: replace %s: %w", target, err)
			}
			if srcEntry.IsDir() {
				paths, err := copyTree(source, target)
				if err != nil {
					return report, err
				}
				report.Overwritten = append(report.Overwritten, paths[0])
				report.New = append(report.New, paths[1:]...)
				continue
			}
			if err := copyFile(source, target); err != nil {
				return report, err
			}
			report.Overwritten = append(report.Overwritten, target)

		default:
			same, err := sameContent(source, target)
			if err != nil {
				return report, err
			}
			if same {
				continue
			}
			if err := copyFile(source, target); err != nil {
				return report, err
			}
			report.Overwritten = append(report.Overwritten, target)
		}
	}
	return report, nil
}

func entries(dir string) (map[string]fs.DirEntry, error) {
	list, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("mirror: read %s: %w", dir, err)
	}
	out := make(map[string]fs.DirEntry, len(list))
	for _, e := range list {
		out[e.Name()] = e
	}
	return out, nil
}

func sortedKeys(m map[string]fs.DirEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// tree returns root and every path below it.
func tree(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: walk %s: %w", root, err)
	}
	return out, nil
}

// copyTree copies the directory src to dst and returns every created path,
// dst first.
func copyTree(src, dst string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return err
			}
		} else if err := copyFile(p, target); err != nil {
			return err
		}
		out = append(out, target)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: copy %s: %w", src, err)
	}
	return out, nil
}

// copyFile copies contents, permissions and modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("mirror: copy %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("mirror: copy %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("mirror: copy to %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("mirror: copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("mirror: copy to %s: %w", dst, err)
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("mirror: chmod %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("mirror: chtimes %s: %w", dst, err)
	}
	return nil
}

func sameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, fmt.Errorf("mirror: %w", err)
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, fmt.Errorf("mirror: %w", err)
	}
	if ai.Size() != bi.Size() {
		return false, nil
	}
	ad, err := os.ReadFile(a)
	if err != nil {
		return false, fmt.Errorf("mirror: %w", err)
	}
	bd, err := os.ReadFile(b)
	if err != nil {
		return false, fmt.Errorf("mirror: %w", err)
	}
	return bytes.Equal(ad, bd), nil
}

var errStop = errors.New("stop")

// Diff compares two trees and returns the slash-separated relative paths of
// entries that exist on one side only, change kind, or differ in content. A
// directory present on one side only is reported once and not descended. As
// with Sync, ignored paths, relative to the right root, are skipped only when
// they are missing from the left tree. Diff stops once limit differences are
// found; a limit below one means no limit. A missing right tree is reported
// as a single "." entry.
func Diff(left, right string, limit int, ignore ...string) ([]string, error) {
	if _, err := os.Stat(right); errors.Is(err, fs.ErrNotExist) {
		return []string{"."}, nil
	}
	rightIgnore := newIgnoreSet(right, ignore)

	var diffs []string
	add := func(rel string) error {
		diffs = append(diffs, filepath.ToSlash(rel))
		if limit > 0 && len(diffs) >= limit {
			return errStop
		}
		return nil
	}

	err := filepath.WalkDir(left, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == left {
			return nil
		}
		rel, _ := filepath.Rel(left, p)
		other := filepath.Join(right, rel)
		oi, statErr := os.Stat(other)
		if d.IsDir() {
			if statErr != nil || !oi.IsDir() {
				if err := add(rel); err != nil {
					return err
				}
				return filepath.SkipDir
			}
			return nil
		}
		if statErr != nil || oi.IsDir() {
			return add(rel)
		}
		same, err := sameContent(p, other)
		if err != nil {
			return err
		}
		if !same {
			return add(rel)
		}
		return nil
	})
	if err == nil {
		err = filepath.WalkDir(right, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == right {
				return nil
			}
			rel, _ := filepath.Rel(right, p)
			li, statErr := os.Stat(filepath.Join(left, rel))
			if statErr == nil {
				// Present on both sides; kind changes were reported above.
				if d.IsDir() && !li.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if rightIgnore.has(p) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if err := add(rel); err != nil {
				return err
			}
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		})
	}
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("mirror: diff: %w", err)
	}
	return diffs, nil
}

// Clean deletes every file below root that is not ignored, then removes the
// directories left empty. root itself is kept. It returns the deleted paths.
func Clean(root string, ignore ...string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	skip := newIgnoreSet(root, ignore)

	var deleted, dirs []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if skip.has(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
			return nil
		}
		if err := os.Remove(p); err != nil {
			return err
		}
		deleted = append(deleted, p)
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("mirror: clean: %w", err)
	}

	// Deepest first so parents are empty by the time they are visited.
	slices.Reverse(dirs)
	for _, d := range dirs {
		if list, err := os.ReadDir(d); err == nil && len(list) == 0 {
			if err := os.Remove(d); err != nil {
				return deleted, fmt.Errorf("mirror: clean: %w", err)
			}
			deleted = append(deleted, d)
		}
	}
	return deleted, nil
}
