package parser

import (
	"sort"
	"strings"
)

// Metadata is a case-insensitive view over front matter fields. Lookups
// ignore key case; iteration returns keys in their original spelling.
type Metadata struct {
	names  map[string]string
	values map[string]any
}

// NewMetadata builds Metadata from a decoded mapping. When two keys differ
// only by case, the lexically greater spelling wins.
func NewMetadata(fields map[string]any) *Metadata {
	m := &Metadata{
		names:  make(map[string]string, len(fields)),
		values: make(map[string]any, len(fields)),
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Set(k, fields[k])
	}
	return m
}

func fold(key string) string { return strings.ToLower(key) }

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	v, ok := m.values[fold(key)]
	return v, ok
}

// Has reports whether key is present.
func (m *Metadata) Has(key string) bool {
	_, ok := m.values[fold(key)]
	return ok
}

// Set stores value under key, replacing any entry that differs only by case.
func (m *Metadata) Set(key string, value any) {
	f := fold(key)
	m.names[f] = key
	m.values[f] = value
}

// Delete removes key.
func (m *Metadata) Delete(key string) {
	f := fold(key)
	delete(m.names, f)
	delete(m.values, f)
}

// Pop removes the first present key among keys and returns its value.
// Every listed alias is removed.
func (m *Metadata) Pop(keys ...string) (any, bool) {
	var (
		value any
		found bool
	)
	for _, k := range keys {
		if v, ok := m.Get(k); ok {
			if !found {
				value, found = v, true
			}
			m.Delete(k)
		}
	}
	return value, found
}

// Keys returns the original key spellings in sorted order.
func (m *Metadata) Keys() []string {
	out := make([]string, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of fields.
func (m *Metadata) Len() int { return len(m.values) }

// Map returns a copy keyed by original spelling.
func (m *Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.values))
	for f, v := range m.values {
		out[m.names[f]] = v
	}
	return out
}

// Clone returns an independent copy.
func (m *Metadata) Clone() *Metadata {
	return NewMetadata(m.Map())
}
