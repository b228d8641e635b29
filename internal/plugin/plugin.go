// Package plugin holds the ordered registry of document processing hooks.
//
// Hooks are registered explicitly at startup and run in registration order.
// A plugin implements Plugin plus any of Preprocessor, Postprocessor and
// Configurable.
package plugin

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/parser"
	"github.com/starford/scribe/internal/storage"
)

// PermissionModifyRawPost allows a plugin to replace a post's finalized body.
const PermissionModifyRawPost = "modify_raw_post"

// FinalizerName is the name of the plugin that writes finalized posts back to
// their source files. Modifying finalized content requires it to be
// registered.
const FinalizerName = "finalize_metadata"

// Plugin is implemented by every registered hook.
type Plugin interface {
	Name() string
}

// Preprocessor runs after a source file is parsed and before post defaults
// are derived. It may edit the working body and the metadata.
type Preprocessor interface {
	Plugin
	Preprocess(post *models.Post, meta *parser.Metadata) (*models.Post, *parser.Metadata, error)
}

// Postprocessor runs once a post is fully constructed.
type Postprocessor interface {
	Plugin
	Postprocess(post *models.Post) error
}

// Configurable receives the plugin's settings section before any post is
// processed.
type Configurable interface {
	Plugin
	Configure(settings map[string]any, env Env) error
}

// Env is the build context handed to configurable plugins.
type Env struct {
	Site   models.Site
	Files  storage.Provider
	Logger *slog.Logger
	// Root is the directory relative plugin paths are resolved against.
	Root string
	// Content gates writes to finalized post content.
	Content ContentWriter
}

// ContentWriter replaces finalized post content on behalf of a plugin.
type ContentWriter interface {
	SetFinalizedContent(post *models.Post, caller, content string) bool
}

// Registry keeps plugins in registration order.
type Registry struct {
	plugins     []Plugin
	pre         []Preprocessor
	post        []Postprocessor
	permissions map[string][]string
	logger      *slog.Logger
}

// NewRegistry creates an empty registry. permissions maps a permission name
// to the plugins granted it; "*" grants every plugin.
func NewRegistry(permissions map[string][]string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{permissions: permissions, logger: logger}
}

// Register appends p to every hook list it implements. Registering the same
// name twice is an error.
func (r *Registry) Register(p Plugin) error {
	if r.Enabled(p.Name()) {
		return fmt.Errorf("plugin: %s already registered", p.Name())
	}
	r.plugins = append(r.plugins, p)
	if pre, ok := p.(Preprocessor); ok {
		r.pre = append(r.pre, pre)
	}
	if post, ok := p.(Postprocessor); ok {
		r.post = append(r.post, post)
	}
	return nil
}

// Plugins returns the registered plugins in order.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// Enabled reports whether a plugin named name is registered.
func (r *Registry) Enabled(name string) bool {
	return slices.ContainsFunc(r.plugins, func(p Plugin) bool { return p.Name() == name })
}

// Configure hands each configurable plugin its settings section.
func (r *Registry) Configure(settings map[string]map[string]any, env Env) error {
	if env.Logger == nil {
		env.Logger = r.logger
	}
	env.Content = r
	for _, p := range r.plugins {
		c, ok := p.(Configurable)
		if !ok {
			continue
		}
		if err := c.Configure(settings[p.Name()], env); err != nil {
			return fmt.Errorf("plugin: configure %s: %w", p.Name(), err)
		}
	}
	return nil
}

// Preprocess runs every preprocessor in order.
func (r *Registry) Preprocess(post *models.Post, meta *parser.Metadata) (*models.Post, *parser.Metadata, error) {
	for _, p := range r.pre {
		var err error
		post, meta, err = p.Preprocess(post, meta)
		if err != nil {
			return nil, nil, fmt.Errorf("plugin: %s preprocess: %w", p.Name(), err)
		}
	}
	return post, meta, nil
}

// Postprocess runs every postprocessor in order.
func (r *Registry) Postprocess(post *models.Post) error {
	for _, p := range r.post {
		if err := p.Postprocess(post); err != nil {
			return fmt.Errorf("plugin: %s postprocess: %w", p.Name(), err)
		}
	}
	return nil
}

// Allowed reports whether plugin name holds permission.
func (r *Registry) Allowed(permission, name string) bool {
	granted := r.permissions[permission]
	return slices.Contains(granted, name) || slices.Contains(granted, "*")
}

// SetFinalizedContent replaces post's finalized body when the finalizer is
// registered and caller may modify raw posts.
func (r *Registry) SetFinalizedContent(post *models.Post, caller, content string) bool {
	if !r.Enabled(FinalizerName) {
		r.logger.Warn("finalized content unchanged: finalizer is not enabled",
			slog.String("plugin", caller), slog.String("path", post.Source()))
		return false
	}
	if !r.Allowed(PermissionModifyRawPost, caller) {
		r.logger.Warn("finalized content unchanged: permission denied",
			slog.String("plugin", caller), slog.String("permission", PermissionModifyRawPost))
		return false
	}
	post.SetFinalizedContent(content)
	return true
}
