package plugin

import (
	"errors"
	"testing"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
)

type recorder struct {
	name string
	log  *[]string
	err  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Preprocess(p *models.Post, m *parser.Metadata) (*models.Post, *parser.Metadata, error) {
	*r.log = append(*r.log, "pre:"+r.name)
	m.Set("seen-by-"+r.name, true)
	return p, m, r.err
}

func (r *recorder) Postprocess(p *models.Post) error {
	*r.log = append(*r.log, "post:"+r.name)
	return r.err
}

type named string

func (n named) Name() string { return string(n) }

func newPost(t *testing.T) (*models.Post, *parser.Metadata) {
	t.Helper()
	res, err := parser.Parse([]byte("title: x\n---\nbody\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return models.NewPost("/p.md", "", res), res.Metadata
}

func TestRegistry_RunsInRegistrationOrder(t *testing.T) {
	var log []string
	r := NewRegistry(nil, nil)
	for _, name := range []string{"b", "a", "c"} {
		if err := r.Register(&recorder{name: name, log: &log}); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	post, meta := newPost(t)
	_, meta, err := r.Preprocess(post, meta)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if err := r.Postprocess(post); err != nil {
		t.Fatalf("Postprocess: %v", err)
	}

	want := []string{"pre:b", "pre:a", "pre:c", "post:b", "post:a", "post:c"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
	if !meta.Has("seen-by-c") {
		t.Error("metadata changes were not threaded through")
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry(nil, nil)
	_ = r.Register(named("x"))
	if err := r.Register(named("x")); err == nil {
		t.Fatal("expected error registering duplicate name")
	}
}

func TestRegistry_HookErrorStops(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	r := NewRegistry(nil, nil)
	_ = r.Register(&recorder{name: "a", log: &log, err: boom})
	_ = r.Register(&recorder{name: "b", log: &log})

	post, meta := newPost(t)
	if _, _, err := r.Preprocess(post, meta); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(log) != 1 {
		t.Errorf("log = %v, want only first hook", log)
	}
}

func TestRegistry_SetFinalizedContent(t *testing.T) {
	post, _ := newPost(t)

	noFinalizer := NewRegistry(map[string][]string{PermissionModifyRawPost: {"*"}}, nil)
	if noFinalizer.SetFinalizedContent(post, "lazy_links", "new") {
		t.Error("content changed without finalizer")
	}

	denied := NewRegistry(map[string][]string{PermissionModifyRawPost: {"other"}}, nil)
	_ = denied.Register(named(FinalizerName))
	if denied.SetFinalizedContent(post, "lazy_links", "new") {
		t.Error("content changed without permission")
	}
	if post.ContentFinalized() != "body\n" {
		t.Errorf("ContentFinalized = %q", post.ContentFinalized())
	}

	granted := NewRegistry(map[string][]string{PermissionModifyRawPost: {"lazy_links"}}, nil)
	_ = granted.Register(named(FinalizerName))
	if !granted.SetFinalizedContent(post, "lazy_links", "new") {
		t.Fatal("content not changed with permission")
	}
	if post.ContentFinalized() != "new" {
		t.Errorf("ContentFinalized = %q, want new", post.ContentFinalized())
	}
}

type configurable struct {
	named
	got map[string]any
	env Env
}

func (c *configurable) Configure(settings map[string]any, env Env) error {
	c.got = settings
	c.env = env
	return nil
}

func TestRegistry_Configure(t *testing.T) {
	r := NewRegistry(nil, nil)
	c := &configurable{named: "c"}
	_ = r.Register(c)

	err := r.Configure(map[string]map[string]any{"c": {"k": "v"}}, Env{Root: "/site"})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if c.got["k"] != "v" {
		t.Errorf("settings = %v", c.got)
	}
	if c.env.Content != r || c.env.Root != "/site" || c.env.Logger == nil {
		t.Errorf("env not populated: %+v", c.env)
	}
}
