package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string         `yaml:"name"`
	Port  int            `yaml:"port"`
	Tags  []string       `yaml:"tags"`
	Site  testSite       `yaml:"site"`
	Extra map[string]any `yaml:"extra"`
}

type testSite struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

type validated struct {
	Port int `yaml:"port"`
}

func (v *validated) Validate() error {
	if v.Port == 0 {
		return os.ErrInvalid
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SCRIBE_TEST_NAME", "from-env")
	dir := t.TempDir()
	p := writeFile(t, dir, "c.yaml", "name: ${SCRIBE_TEST_NAME}\n")

	cfg := testConfig{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "from-env" {
		t.Errorf("Name = %q, want from-env", cfg.Name)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Port)
	}
}

func TestLoad_SuperChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base/base.yaml", "name: base\nport: 1\ntags: [a, b]\nsite:\n  title: Base\n  url: https://base.test\nextra:\n  keep: 1\n")
	writeFile(t, dir, "mid.yaml", "super: base/base.yaml\nport: 2\nsite:\n  title: Mid\n")
	child := writeFile(t, dir, "child.yaml", "super: mid.yaml\ntags: [c]\nextra:\n  added: 2\n")

	var cfg testConfig
	if err := Load(child, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "base" || cfg.Port != 2 {
		t.Errorf("scalars = %q/%d, want base/2", cfg.Name, cfg.Port)
	}
	if strings.Join(cfg.Tags, ",") != "c" {
		t.Errorf("Tags = %v, want [c]", cfg.Tags)
	}
	if cfg.Site.Title != "Mid" || cfg.Site.URL != "https://base.test" {
		t.Errorf("Site = %+v, want merged mapping", cfg.Site)
	}
	if len(cfg.Extra) != 2 {
		t.Errorf("Extra = %v, want both keys", cfg.Extra)
	}
}

func TestResolve_Cycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "super: b.yaml\n")
	a := filepath.Join(dir, "a.yaml")
	writeFile(t, dir, "b.yaml", "super: a.yaml\n")

	if _, err := Resolve(a); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err = %v, want cycle error", err)
	}
}

func TestResolve_DropsSuperKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "x: 1\n")
	child := writeFile(t, dir, "child.yaml", "super: base.yaml\n")

	merged, err := Resolve(child)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := merged[SuperKey]; ok {
		t.Error("super key left in merged config")
	}
}

func TestMerge(t *testing.T) {
	dst := map[string]any{
		"a": 1,
		"nested": map[string]any{"x": 1, "y": 2},
	}
	src := map[string]any{
		"a":      2,
		"nested": map[string]any{"y": 3, "z": 4},
	}
	if err := Merge(dst, src); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if dst["a"] != 2 {
		t.Errorf("a = %v, want 2", dst["a"])
	}
	nested := dst["nested"].(map[string]any)
	if nested["x"] != 1 || nested["y"] != 3 || nested["z"] != 4 {
		t.Errorf("nested = %v", nested)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Validator(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.yaml", "port: 0\n")
	var cfg validated
	if err := Load(p, &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadWithDefaults_FallsBack(t *testing.T) {
	dir := t.TempDir()
	def := writeFile(t, dir, "default.yaml", "name: default\n")
	var cfg testConfig
	if err := LoadWithDefaults(filepath.Join(dir, "missing.yaml"), def, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("Name = %q", cfg.Name)
	}
}
