package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Override file names looked up in every source directory.
const (
	DefaultsFile       = "defaults.ini"
	MetricMappingsFile = "metric_mappings.ini"
)

// ExcludeTarget is the metric mapping target that drops a column instead of renaming it.
const ExcludeTarget = "-"

// Mapping is an ordered string to string map. The zero value is an empty mapping.
type Mapping struct {
	keys   []string
	values map[string]string
}

// NewMapping builds a mapping from alternating key/value pairs. Later duplicates win.
func NewMapping(pairs ...string) Mapping {
	if len(pairs)%2 != 0 {
		panic("config.NewMapping: odd number of arguments")
	}
	var m Mapping
	for i := 0; i < len(pairs); i += 2 {
		m.set(pairs[i], pairs[i+1])
	}
	return m
}

func (m *Mapping) set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Len returns the number of entries.
func (m Mapping) Len() int { return len(m.keys) }

// Get returns the value stored under key.
func (m Mapping) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns a copy of the keys in insertion order.
func (m Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (m Mapping) Each(fn func(key, value string)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Merge returns a new mapping holding parent's entries overridden by own's.
// Keys keep the position of their first appearance; own's new keys follow in own's order.
func Merge(parent, own Mapping) Mapping {
	var out Mapping
	parent.Each(out.set)
	own.Each(out.set)
	return out
}

// ReadMapping loads the unnamed section of dir/name. A missing file yields an empty
// mapping; an unparsable one, or one repeating a key, is an error.
func ReadMapping(dir, name string) (Mapping, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Mapping{}, nil
		}
		return Mapping{}, fmt.Errorf("reading %s: %w", path, err)
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:            true,
		IgnoreInlineComment:        true,
		AllowShadows:               true,
		AllowDuplicateShadowValues: true,
	}, data)
	if err != nil {
		return Mapping{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	var m Mapping
	for _, key := range file.Section(ini.DefaultSection).Keys() {
		// shadows are only kept so repeated keys can be rejected
		if len(key.ValueWithShadows()) > 1 {
			return Mapping{}, fmt.Errorf("parsing %s: duplicate key %q", path, key.Name())
		}
		m.set(key.Name(), key.String())
	}
	return m, nil
}
