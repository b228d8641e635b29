// Package cache maps source files to previously computed artifacts. An entry is
// valid only while the SHA-256 checksum of its source file is unchanged.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/checksum"
)

type entry[T any] struct {
	artifact T
	checksum string
}

// Cache is a checksum-validated key -> artifact store. Keys are absolute file
// paths. It is not safe for concurrent use.
type Cache[T any] struct {
	name     string
	version  string
	disabled bool
	logger   *slog.Logger
	entries  map[string]entry[T]
}

// Option configures a Cache.
type Option func(*settings)

type settings struct {
	disabled bool
	logger   *slog.Logger
}

// WithDisabled turns the cache off: Contains always reports false and Save
// writes nothing.
func WithDisabled(disabled bool) Option {
	return func(s *settings) { s.disabled = disabled }
}

// WithLogger sets the logger used for cold-start diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New creates an empty cache. name selects the namespace inside a Store and
// version is the artifact format version; any other stored version is
// treated as an empty cache.
func New[T any](name, version string, opts ...Option) *Cache[T] {
	st := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&st)
	}
	return &Cache[T]{
		name:     name,
		version:  version,
		disabled: st.disabled,
		logger:   st.logger,
		entries:  make(map[string]entry[T]),
	}
}

// Name returns the namespace of the cache.
func (c *Cache[T]) Name() string { return c.name }

// Version returns the artifact format version.
func (c *Cache[T]) Version() string { return c.version }

// Enabled reports whether lookups can hit.
func (c *Cache[T]) Enabled() bool { return !c.disabled }

// Len returns the number of stored entries, valid or not.
func (c *Cache[T]) Len() int { return len(c.entries) }

// Keys returns the stored keys in sorted order.
func (c *Cache[T]) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the stored artifact for key without validating its checksum.
func (c *Cache[T]) Get(key string) (T, bool) {
	e, ok := c.entries[key]
	return e.artifact, ok
}

// Put stores artifact under key together with the current checksum of the
// file at key. The file must exist.
func (c *Cache[T]) Put(key string, artifact T) error {
	if _, err := os.Stat(key); err != nil {
		return fmt.Errorf("cache: %s: %w", key, apperr.ErrFileNotCached)
	}
	sum, err := checksum.File(key)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	c.entries[key] = entry[T]{artifact: artifact, checksum: sum}
	return nil
}

// Contains reports whether key has an entry whose checksum still matches the
// file on disk.
func (c *Cache[T]) Contains(key string) bool {
	if c.disabled {
		return false
	}
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	sum, err := checksum.File(key)
	if err != nil {
		return false
	}
	return sum == e.checksum
}

// Lookup returns the artifact for key only if Contains(key) holds.
func (c *Cache[T]) Lookup(key string) (T, bool) {
	if !c.Contains(key) {
		var zero T
		return zero, false
	}
	return c.Get(key)
}

// Delete removes key from the cache.
func (c *Cache[T]) Delete(key string) {
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.entries = make(map[string]entry[T])
}

// Load replaces the in-memory entries with the namespace stored in s. A
// missing namespace, a version mismatch or an undecodable entry leaves the
// cache empty; Load never fails.
func (c *Cache[T]) Load(s *Store) {
	c.Clear()

	stored, ok, err := s.version(c.name)
	if err != nil {
		c.coldStart("version unreadable", slog.String("error", err.Error()))
		return
	}
	if !ok {
		c.coldStart("no stored cache")
		return
	}
	if stored != c.version {
		c.coldStart("version mismatch",
			slog.String("stored_version", stored),
			slog.String("current_version", c.version))
		return
	}

	rows, err := s.entries(c.name)
	if err != nil {
		c.coldStart("entries unreadable", slog.String("error", err.Error()))
		return
	}
	for _, r := range rows {
		var artifact T
		if err := json.Unmarshal(r.Artifact, &artifact); err != nil {
			c.Clear()
			c.coldStart("entry undecodable", slog.String("key", r.Key), slog.String("error", err.Error()))
			return
		}
		c.entries[r.Key] = entry[T]{artifact: artifact, checksum: r.Checksum}
	}
	c.logger.Debug("cache: loaded",
		slog.String("cache", c.name),
		slog.Int("entries", len(c.entries)))
}

// Save writes every entry to s, replacing what was stored for this namespace.
// A disabled cache saves nothing.
func (c *Cache[T]) Save(s *Store) error {
	if c.disabled {
		return nil
	}
	rows := make([]row, 0, len(c.entries))
	for _, k := range c.Keys() {
		e := c.entries[k]
		data, err := json.Marshal(e.artifact)
		if err != nil {
			return fmt.Errorf("cache: encode %s: %w", k, err)
		}
		rows = append(rows, row{Key: k, Checksum: e.checksum, Artifact: data})
	}
	return s.replace(c.name, c.version, rows)
}

// Purge clears the cache and removes its namespace from s.
func (c *Cache[T]) Purge(s *Store) error {
	c.Clear()
	return s.drop(c.name)
}

func (c *Cache[T]) coldStart(reason string, attrs ...any) {
	args := append([]any{slog.String("cache", c.name), slog.String("reason", reason)}, attrs...)
	c.logger.Debug("cache: starting empty", args...)
}
