package mirror

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func read(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func TestSync_CopiesIntoMissingTarget(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	write(t, src, "index.html", "home")
	write(t, src, "a/b/c.html", "deep")

	r, err := Sync(src, dst)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := []string{
		filepath.Join(dst, "a"),
		filepath.Join(dst, "a", "b"),
		filepath.Join(dst, "a", "b", "c.html"),
		filepath.Join(dst, "index.html"),
	}
	if !slices.Equal(r.New, want) {
		t.Errorf("New = %v, want %v", r.New, want)
	}
	if got := read(t, filepath.Join(dst, "a", "b", "c.html")); got != "deep" {
		t.Errorf("copied content = %q", got)
	}
}

func TestSync_SecondRunIsEmpty(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "index.html", "home")
	write(t, src, "posts/a.html", "a")

	if _, err := Sync(src, dst); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	r, err := Sync(src, dst)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !r.Empty() {
		t.Errorf("second sync report = %+v, want empty", r)
	}
}

func TestSync_OrphanDeleted(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "keep.html", "k")
	x := write(t, dst, "x.html", "orphan")

	r, err := Sync(src, dst)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !slices.Equal(r.Deleted, []string{x}) {
		t.Errorf("Deleted = %v, want [%s]", r.Deleted, x)
	}
	if _, err := os.Stat(x); !os.IsNotExist(err) {
		t.Error("orphan still exists")
	}
}

func TestSync_IgnoredOrphanUntouched(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "keep.html", "k")
	x := write(t, dst, "x.html", "orphan")
	g := write(t, dst, ".git/HEAD", "ref")

	r, err := Sync(src, dst, WithIgnore("x.html", ".git"))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	for _, p := range append(append(r.New, r.Overwritten...), r.Deleted...) {
		if p == x || p == g || p == filepath.Dir(g) {
			t.Errorf("ignored path %s reported", p)
		}
	}
	if read(t, x) != "orphan" || read(t, g) != "ref" {
		t.Error("ignored files were modified")
	}
}

func TestSync_IgnoredSourceStillCopied(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "CNAME", "example.test")
	write(t, src, "robots.txt", "new")
	robots := write(t, dst, "robots.txt", "old")

	r, err := Sync(src, dst, WithIgnore("CNAME", "robots.txt"))
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	cname := filepath.Join(dst, "CNAME")
	if !slices.Equal(r.New, []string{cname}) {
		t.Errorf("New = %v, want [%s]", r.New, cname)
	}
	if !slices.Equal(r.Overwritten, []string{robots}) {
		t.Errorf("Overwritten = %v, want [%s]", r.Overwritten, robots)
	}
	if read(t, cname) != "example.test" || read(t, robots) != "new" {
		t.Error("ignored source files were not published")
	}
}

func TestSync_OverwritesOnlyChangedContent(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "same.html", "same")
	changed := write(t, src, "changed.html", "new")
	write(t, dst, "same.html", "same")
	target := write(t, dst, "changed.html", "old")

	mtime := time.Date(2015, 5, 5, 5, 5, 5, 0, time.UTC)
	if err := os.Chtimes(changed, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	r, err := Sync(src, dst)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !slices.Equal(r.Overwritten, []string{target}) {
		t.Errorf("Overwritten = %v, want [%s]", r.Overwritten, target)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestSync_DeletedSubtreeReportsEveryPath(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, dst, "old/a.html", "a")
	write(t, dst, "old/sub/b.html", "b")

	r, err := Sync(src, dst)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(r.Deleted) != 4 {
		t.Errorf("Deleted = %v, want 4 paths", r.Deleted)
	}
}

func TestSync_KeepOrphansAndNoRecurse(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "top.html", "t")
	write(t, src, "dir/inner.html", "i")
	x := write(t, dst, "x.html", "orphan")

	r, err := Sync(src, dst, KeepOrphans(), NoRecurse())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(r.Deleted) != 0 {
		t.Errorf("Deleted = %v, want none", r.Deleted)
	}
	if read(t, x) != "orphan" {
		t.Error("orphan removed")
	}
	if _, err := os.Stat(filepath.Join(dst, "dir")); !os.IsNotExist(err) {
		t.Error("subdirectory copied without recursion")
	}
	if !slices.Equal(r.New, []string{filepath.Join(dst, "top.html")}) {
		t.Errorf("New = %v", r.New)
	}
}

func TestSync_SourceUnchanged(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "a.html", "a")
	write(t, dst, "a.html", "b")
	if _, err := Sync(src, dst); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if read(t, filepath.Join(src, "a.html")) != "a" {
		t.Error("source modified")
	}
}

func TestDiff(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	write(t, left, "index.html", "same")
	write(t, right, "index.html", "same")
	write(t, left, "sitemap.xml.gz", "new")
	write(t, right, "sitemap.xml.gz", "old")
	write(t, right, ".git/HEAD", "ignored")

	diffs, err := Diff(left, right, 2, ".git")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !slices.Equal(diffs, []string{"sitemap.xml.gz"}) {
		t.Fatalf("diffs = %v, want [sitemap.xml.gz]", diffs)
	}

	write(t, left, "posts/new.html", "n")
	write(t, right, "gone.html", "g")
	diffs, err = Diff(left, right, 2, ".git")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 2 {
		t.Errorf("diffs = %v, want 2 entries (stopped at limit)", diffs)
	}

	all, err := Diff(left, right, 0, ".git")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all diffs = %v, want 3", all)
	}
}

func TestDiff_OneSidedDirectories(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	write(t, left, "index.html", "same")
	write(t, right, "index.html", "same")
	if err := os.MkdirAll(filepath.Join(left, "drafts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(right, "old", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	diffs, err := Diff(left, right, 0)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !slices.Equal(diffs, []string{"drafts", "old"}) {
		t.Errorf("diffs = %v, want [drafts old]", diffs)
	}
}

func TestDiff_IgnoredPathStillComparedWhenStaged(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	write(t, left, "CNAME", "new")
	write(t, right, "CNAME", "old")

	diffs, err := Diff(left, right, 0, "CNAME")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !slices.Equal(diffs, []string{"CNAME"}) {
		t.Errorf("diffs = %v, want [CNAME]", diffs)
	}
}

func TestDiff_MissingRight(t *testing.T) {
	diffs, err := Diff(t.TempDir(), filepath.Join(t.TempDir(), "nope"), 0)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !slices.Equal(diffs, []string{"."}) {
		t.Errorf("diffs = %v", diffs)
	}
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	write(t, root, "index.html", "x")
	write(t, root, "a/b/c.html", "x")
	keep := write(t, root, ".git/config", "keep")
	write(t, root, ".gitignore", "keep")

	deleted, err := Clean(root, ".git", ".gitignore")
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(deleted) != 4 {
		t.Errorf("deleted = %v, want 2 files and 2 directories", deleted)
	}
	entries, _ := os.ReadDir(root)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if !slices.Equal(names, []string{".git", ".gitignore"}) {
		t.Errorf("remaining = %v", names)
	}
	if read(t, keep) != "keep" {
		t.Error("ignored file modified")
	}
}
