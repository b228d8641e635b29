// Package bundled provides the plugins that ship with scribe.
package bundled

import (
	"fmt"
	"slices"

	"github.com/starford/scribe/internal/plugin"
)

// Names lists the bundled plugins in the order they must run. Lazy links are
// numbered before the teaser is cut so the teaser never holds a "[*]"
// reference, and metadata is written back before the file is renamed.
var Names = []string{
	LazyLinksName,
	PostBreaksName,
	PostLinkName,
	GlobalLinksName,
	plugin.FinalizerName,
	RenamerName,
}

// DefaultEnabled lists the plugins enabled when the site configures none.
// Plugins that rewrite source files are opt-in.
var DefaultEnabled = []string{
	LazyLinksName,
	PostBreaksName,
	PostLinkName,
}

// New constructs the bundled plugin called name.
func New(name string) (plugin.Plugin, error) {
	switch name {
	case PostBreaksName:
		return &PostBreaks{}, nil
	case PostLinkName:
		return &PostLink{}, nil
	case GlobalLinksName:
		return &GlobalLinks{}, nil
	case LazyLinksName:
		return &LazyLinks{}, nil
	case plugin.FinalizerName:
		return NewFinalizer(), nil
	case RenamerName:
		return NewRenamer(), nil
	default:
		return nil, fmt.Errorf("bundled: unknown plugin %q", name)
	}
}

// Register adds the enabled plugins to r, in the order of Names.
func Register(r *plugin.Registry, enabled []string) error {
	for _, name := range enabled {
		if !slices.Contains(Names, name) {
			return fmt.Errorf("bundled: unknown plugin %q", name)
		}
	}
	for _, name := range Names {
		if !slices.Contains(enabled, name) {
			continue
		}
		p, err := New(name)
		if err != nil {
			return err
		}
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
