package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BuildConfig holds the settings of one geometry build. Fields left empty in the file
// keep their defaults.
type BuildConfig struct {
	DataDir  string    `yaml:"data_dir"`
	Output   string    `yaml:"output"`
	Schema   string    `yaml:"schema"`   // DDL file; empty uses the embedded schema
	Database string    `yaml:"database"` // ":memory:" or a SQLite file path
	Sentinel string    `yaml:"sentinel"`
	Log      LogConfig `yaml:"log"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// DefaultBuildConfig returns the settings used when no config file is given.
func DefaultBuildConfig() *BuildConfig {
	return &BuildConfig{
		DataDir:  "data",
		Output:   "build/database.csv",
		Database: ":memory:",
		Sentinel: "-1",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadBuildConfig reads a YAML build config on top of the defaults.
// An empty path returns the defaults; a path that does not exist is an error.
func LoadBuildConfig(path string) (*BuildConfig, error) {
	cfg := DefaultBuildConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing build config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks for values the build cannot run with.
func (c *BuildConfig) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Output == "" {
		return errors.New("output is required")
	}
	if c.Sentinel == "" {
		return errors.New("sentinel must not be empty")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
