// Package config holds loglens configuration: the project lookup table used
// for dialect sniffing and the correlation settings. The table is plain data
// passed into the engine entry point; there is no global registry.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dialect names accepted in the project table.
const (
	DialectExplicit = "explicit"
	DialectTrace    = "trace"
)

// Project maps a log source to its dialect. A source is attributed to a
// project when the path of its "Working <path>" marker contains one of the
// markers.
type Project struct {
	Name        string   `yaml:"name"`
	PathMarkers []string `yaml:"path_markers"`
	Dialect     string   `yaml:"dialect"`
}

// CorrelationConfig tunes the auxiliary-log correlator.
type CorrelationConfig struct {
	// WindowMS widens every task interval on both sides and scales the
	// time-drift score.
	WindowMS int64 `yaml:"window_ms"`
}

// Config is the full loglens configuration.
type Config struct {
	Projects    []Project         `yaml:"projects"`
	Correlation CorrelationConfig `yaml:"correlation"`
	// PoolLimit bounds the per-run string pool; zero means the built-in
	// default.
	PoolLimit int `yaml:"pool_limit"`
}

// DefaultConfig returns the built-in configuration. The project table starts
// empty: unknown sources fall back to explicit-event behavior, and
// deployments add their own projects via the config file.
func DefaultConfig() Config {
	return Config{
		Correlation: CorrelationConfig{WindowMS: 5000},
	}
}

// Load reads a yaml config file, layering it over DefaultConfig and then
// applying LOGLENS_* environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv supports overriding scalar settings without touching the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("LOGLENS_CORRELATION_WINDOW_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Correlation.WindowMS = n
		}
	}
	if v := os.Getenv("LOGLENS_POOL_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PoolLimit = n
		}
	}
}

// Validate rejects configurations the engine cannot act on.
func (c *Config) Validate() error {
	for _, p := range c.Projects {
		switch p.Dialect {
		case DialectExplicit, DialectTrace:
		default:
			return fmt.Errorf("project %q: unknown dialect %q", p.Name, p.Dialect)
		}
		if len(p.PathMarkers) == 0 {
			return fmt.Errorf("project %q: no path markers", p.Name)
		}
	}
	if c.Correlation.WindowMS < 0 {
		return fmt.Errorf("correlation window must be >= 0, got %d", c.Correlation.WindowMS)
	}
	return nil
}

// MatchProject returns the first project whose marker appears in path.
func (c *Config) MatchProject(path string) (Project, bool) {
	for _, p := range c.Projects {
		for _, m := range p.PathMarkers {
			if m != "" && strings.Contains(path, m) {
				return p, true
			}
		}
	}
	return Project{}, false
}
