// Package testutil provides shared test helpers for scaffolding sites.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Site is a temporary site directory with the standard layout.
type Site struct {
	Root    string
	Posts   string
	Content string
	Output  string
	Cache   string
}

// NewSite creates a temporary site with empty posts and content directories.
// The output directory is not created.
func NewSite(t *testing.T) *Site {
	t.Helper()
	root := t.TempDir()
	s := &Site{
		Root:    root,
		Posts:   filepath.Join(root, "posts"),
		Content: filepath.Join(root, "content"),
		Output:  filepath.Join(root, "output"),
		Cache:   filepath.Join(root, ".cache"),
	}
	for _, dir := range []string{s.Posts, s.Content} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

// WritePost writes a source document into the posts directory and returns
// its path.
func (s *Site) WritePost(t *testing.T, name, content string) string {
	t.Helper()
	return WriteFile(t, filepath.Join(s.Posts, name), content)
}

// Post renders a published document with the given title and timestamp.
func Post(title, timestamp, body string) string {
	return fmt.Sprintf("title: %s\nstatus: published\ntimestamp: %s\n---\n%s\n", title, timestamp, body)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
