package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/scribe/internal/apperr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "scribe.cache"), nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutContainsGet(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.md", "hello")

	c := New[string]("posts", "1")
	if c.Contains(p) {
		t.Fatal("empty cache should not contain key")
	}
	if err := c.Put(p, "artifact"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Contains(p) {
		t.Fatal("expected Contains after Put")
	}
	got, ok := c.Get(p)
	if !ok || got != "artifact" {
		t.Errorf("Get = %q, %v; want %q, true", got, ok, "artifact")
	}
}

func TestContains_ChecksumChange(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.md", "hello")

	c := New[string]("posts", "1")
	if err := c.Put(p, "artifact"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "a.md", "hello, changed")

	if c.Contains(p) {
		t.Error("Contains should be false once the file content changes")
	}
	if _, ok := c.Get(p); !ok {
		t.Error("stale entry should still be retrievable with Get")
	}
	if _, ok := c.Lookup(p); ok {
		t.Error("Lookup should miss on a stale entry")
	}
}

func TestPut_MissingFile(t *testing.T) {
	c := New[string]("posts", "1")
	err := c.Put(filepath.Join(t.TempDir(), "missing.md"), "x")
	if !errors.Is(err, apperr.ErrFileNotCached) {
		t.Fatalf("err = %v, want ErrFileNotCached", err)
	}
}

func TestDisabled_NeverContains(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.md", "hello")
	c := New[string]("posts", "1", WithDisabled(true))
	if err := c.Put(p, "x"); err != nil {
		t.Fatal(err)
	}
	if c.Contains(p) {
		t.Error("disabled cache must not report hits")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "a.md", "one")
	p2 := writeFile(t, dir, "b.md", "two")
	s := testStore(t)

	c := New[[]byte]("compress", "1")
	_ = c.Put(p1, []byte("A"))
	_ = c.Put(p2, []byte("B"))
	if err := c.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := New[[]byte]("compress", "1")
	loaded.Load(s)
	if loaded.Len() != 2 {
		t.Fatalf("len = %d, want 2", loaded.Len())
	}
	got, ok := loaded.Lookup(p2)
	if !ok || string(got) != "B" {
		t.Errorf("Lookup = %q, %v; want %q, true", got, ok, "B")
	}
}

func TestLoad_VersionMismatchStartsEmpty(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.md", "one")
	s := testStore(t)

	old := New[string]("posts", "1.1")
	_ = old.Put(p, "stale")
	if err := old.Save(s); err != nil {
		t.Fatal(err)
	}

	c := New[string]("posts", "1.2")
	c.Load(s)
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0 after version mismatch", c.Len())
	}
	if c.Contains(p) {
		t.Error("mismatched cache must behave as cold")
	}
}

func TestLoad_NamespacesAreIndependent(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.md", "one")
	s := testStore(t)

	posts := New[string]("posts", "1")
	_ = posts.Put(p, "post")
	_ = posts.Save(s)

	other := New[string]("compress", "1")
	other.Load(s)
	if other.Len() != 0 {
		t.Errorf("len = %d, want 0 for an unrelated namespace", other.Len())
	}
}

func TestLoad_UndecodableEntryStartsEmpty(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.md", "one")
	s := testStore(t)
	if err := s.replace("posts", "1", []row{{Key: p, Checksum: "x", Artifact: []byte("{not json")}}); err != nil {
		t.Fatal(err)
	}

	c := New[string]("posts", "1")
	c.Load(s)
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0", c.Len())
	}
}

func TestOpenStore_CorruptFileIsRebuilt(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scribe.cache", strings.Repeat("not a database ", 256))
	s, err := OpenStore(path, nil)
	if err != nil {
		t.Fatalf("OpenStore on corrupt file: %v", err)
	}
	defer s.Close()

	c := New[string]("posts", "1")
	c.Load(s)
	if c.Len() != 0 {
		t.Errorf("len = %d, want 0", c.Len())
	}
}

func TestPurge(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.md", "one")
	s := testStore(t)

	c := New[string]("posts", "1")
	_ = c.Put(p, "x")
	_ = c.Save(s)
	if err := c.Purge(s); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	reloaded := New[string]("posts", "1")
	reloaded.Load(s)
	if reloaded.Len() != 0 {
		t.Errorf("len = %d, want 0 after purge", reloaded.Len())
	}
}
