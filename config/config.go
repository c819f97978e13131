// Package config loads the daemon's YAML configuration file.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// File is the daemon configuration file.
type File struct {
	Backend     Backend     `yaml:"backend"`
	Cache       Cache       `yaml:"cache"`
	Warming     []Warming   `yaml:"warming"`
	Persistence Persistence `yaml:"persistence"`
}

// Backend configures the CA-DMS backend connection.
type Backend struct {
	URL       string `yaml:"url"`
	TokenFile string `yaml:"token_file"`
	DevMode   bool   `yaml:"dev_mode"`
}

// Cache configures the query cache and its sweeps.
type Cache struct {
	DefaultStaleTime Duration `yaml:"default_stale_time"`
	RetentionTime    Duration `yaml:"retention_time"`
	SweepInterval    Duration `yaml:"sweep_interval"`
	MemoryLimitBytes int      `yaml:"memory_limit_bytes"`
}

// Warming configures one periodically prefetched query.
type Warming struct {
	Slice    string   `yaml:"slice"`
	UserID   string   `yaml:"user_id"`
	Priority string   `yaml:"priority"`
	Interval Duration `yaml:"interval"`
}

// Persistence configures the persistence bridge.
type Persistence struct {
	Enabled  bool     `yaml:"enabled"`
	Dir      string   `yaml:"dir"`
	Slices   []string `yaml:"slices"`
	MaxAge   Duration `yaml:"max_age"`
	Compress bool     `yaml:"compress"`
}

// Load reads and parses the config file at path. An empty path yields
// the defaults.
func Load(path string) (*File, error) {
	f := &File{
		Cache: Cache{
			DefaultStaleTime: Duration(5 * time.Minute),
			RetentionTime:    Duration(30 * time.Minute),
			SweepInterval:    Duration(5 * time.Minute),
		},
	}
	if path == "" {
		return f, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	return f, nil
}
