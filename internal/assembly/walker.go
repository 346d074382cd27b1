package assembly

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"bikegeo/internal/config"
)

// InheritedConfig is the override state in effect at one directory: everything its
// ancestors declared, overridden by its own files.
type InheritedConfig struct {
	Defaults       config.Mapping
	MetricMappings config.Mapping
}

// With returns a new config with own entries layered over c's.
func (c InheritedConfig) With(ownDefaults, ownMappings config.Mapping) InheritedConfig {
	return InheritedConfig{
		Defaults:       config.Merge(c.Defaults, ownDefaults),
		MetricMappings: config.Merge(c.MetricMappings, ownMappings),
	}
}

// Walker collects one DatasourceQuery per leaf directory under a root.
type Walker struct {
	log *zap.Logger
}

// NewWalker returns a walker logging to log. A nil logger discards output.
func NewWalker(log *zap.Logger) *Walker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Walker{log: log}
}

// Walk returns the extraction of every leaf under root in depth-first, lexicographic order.
func (w *Walker) Walk(root string) ([]DatasourceQuery, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", root)
	}
	return w.walk(root, InheritedConfig{})
}

// Walk is a convenience for NewWalker(nil).Walk(root).
func Walk(root string) ([]DatasourceQuery, error) {
	return NewWalker(nil).Walk(root)
}

func (w *Walker) walk(dir string, parent InheritedConfig) ([]DatasourceQuery, error) {
	ownDefaults, err := config.ReadMapping(dir, config.DefaultsFile)
	if err != nil {
		return nil, err
	}
	ownMappings, err := config.ReadMapping(dir, config.MetricMappingsFile)
	if err != nil {
		return nil, err
	}
	cfg := parent.With(ownDefaults, ownMappings)

	w.log.Debug("merged config",
		zap.String("dir", dir),
		zap.Strings("defaults", pairs(cfg.Defaults)),
		zap.Strings("metric_mappings", pairs(cfg.MetricMappings)))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	leaf, err := isLeaf(dir)
	if err != nil {
		return nil, err
	}
	if leaf {
		if skipped := countSubdirs(dir, entries); skipped > 0 {
			w.log.Debug("leaf directory has sub-directories, skipping them",
				zap.String("dir", dir), zap.Int("skipped", skipped))
		}
		return []DatasourceQuery{Synthesize(dir, cfg)}, nil
	}

	var queries []DatasourceQuery
	// os.ReadDir returns entries sorted by name.
	for _, e := range entries {
		child := filepath.Join(dir, e.Name())
		ok, err := isDir(child, e)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		childQueries, err := w.walk(child, cfg)
		if err != nil {
			return nil, err
		}
		queries = append(queries, childQueries...)
	}
	return queries, nil
}

func isLeaf(dir string) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, GeometryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", dir, err)
	}
	return info.Mode().IsRegular(), nil
}

// isDir follows symlinks, so a linked model directory is walked like a real one.
func isDir(path string, e os.DirEntry) (bool, error) {
	if e.Type()&os.ModeSymlink == 0 {
		return e.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", path, err)
	}
	return info.IsDir(), nil
}

func countSubdirs(dir string, entries []os.DirEntry) int {
	n := 0
	for _, e := range entries {
		if ok, _ := isDir(filepath.Join(dir, e.Name()), e); ok {
			n++
		}
	}
	return n
}

func pairs(m config.Mapping) []string {
	out := make([]string, 0, m.Len())
	m.Each(func(k, v string) {
		out = append(out, k+"="+v)
	})
	return out
}
