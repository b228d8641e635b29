// Package config provides YAML-based configuration loading with environment
// variable expansion and file inheritance.
//
// A file may name a parent with the "super" key. The parent is resolved
// relative to the child, loaded first, and the child's values are merged on
// top: nested mappings merge key by key, every other value replaces the
// parent's.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// SuperKey names the parent configuration file.
const SuperKey = "super"

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable
// expansion, applying its inheritance chain. Values already set on target
// act as defaults.
func Load[T any](filename string, target *T) error {
	merged, err := Resolve(filename)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to encode merged config %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadWithDefaults loads configuration with fallback to a default file.
func LoadWithDefaults[T any](filename, defaultFile string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile != "" {
			return Load(defaultFile, target)
		}
		return fmt.Errorf("config file not found: %s", filename)
	}
	return Load(filename, target)
}

// Resolve reads filename and its parents and returns the merged mapping,
// without the super key.
func Resolve(filename string) (map[string]any, error) {
	var chain []map[string]any
	seen := make(map[string]bool)

	for current := filename; current != ""; {
		abs, err := filepath.Abs(current)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %s: %w", current, err)
		}
		if seen[abs] {
			return nil, fmt.Errorf("config inheritance cycle at %s", current)
		}
		seen[abs] = true

		values, err := read(abs)
		if err != nil {
			return nil, err
		}
		chain = append(chain, values)

		parent, _ := values[SuperKey].(string)
		delete(values, SuperKey)
		if parent != "" && !filepath.IsAbs(parent) {
			parent = filepath.Join(filepath.Dir(abs), parent)
		}
		current = parent
	}

	merged := map[string]any{}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := Merge(merged, chain[i]); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func read(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return values, nil
}

// Merge applies src on top of dst in place. Nested mappings are merged
// recursively; scalars and lists in src replace those in dst.
func Merge(dst, src map[string]any) error {
	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}
