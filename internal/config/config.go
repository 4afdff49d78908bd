// Package config loads ratelsync settings from a YAML file, falling back to
// defaults, then applies RATEL_* environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/resource"
)

// Config holds all ratelsync settings.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Cache  CacheConfig  `yaml:"cache"`
}

// APIConfig locates the Ratel backend.
type APIConfig struct {
	URL        string `yaml:"url"`
	GraphQLURL string `yaml:"graphql_url"`
	Timeout    string `yaml:"timeout"`
}

// ServerConfig configures ratel-api.
type ServerConfig struct {
	Listen          string `yaml:"listen"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	CurrentUser     string `yaml:"current_user"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// CacheConfig configures the query client.
type CacheConfig struct {
	GCInterval string                  `yaml:"gc_interval"`
	Policies   map[string]PolicyConfig `yaml:"policies,omitempty"`
}

// PolicyConfig overrides fields of one kind's cache policy. Empty fields
// keep the kind's default. Durations accept "forever".
type PolicyConfig struct {
	StaleTime            string `yaml:"stale_time"`
	GCTime               string `yaml:"gc_time"`
	RefetchOnWindowFocus *bool  `yaml:"refetch_on_window_focus"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			URL:        "http://localhost:3000",
			GraphQLURL: "http://localhost:3000/graphql",
			Timeout:    "5s",
		},
		Server: ServerConfig{
			Listen:          ":3000",
			ShutdownTimeout: "5s",
			CurrentUser:     "alice",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			GCInterval: "1m",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RATEL_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv("RATEL_GRAPHQL_URL"); v != "" {
		c.API.GraphQLURL = v
	}
	if v := os.Getenv("RATEL_API_TIMEOUT"); v != "" {
		c.API.Timeout = v
	}
	if v := os.Getenv("RATEL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RATEL_LISTEN"); v != "" {
		c.Server.Listen = v
	}
}

// Validate checks URLs, durations, the log settings and cache policies.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api url %q", c.API.URL)
	}
	if c.API.GraphQLURL != "" {
		if g, err := url.Parse(c.API.GraphQLURL); err != nil || g.Scheme == "" || g.Host == "" {
			return fmt.Errorf("invalid graphql url %q", c.API.GraphQLURL)
		}
	}
	for name, v := range map[string]string{
		"api.timeout":             c.API.Timeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"cache.gc_interval":       c.Cache.GCInterval,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q: must be a positive duration", name, v)
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format %q (valid: json, console)", c.Log.Format)
	}
	if _, err := c.CachePolicies(); err != nil {
		return err
	}
	return nil
}

// GetAPITimeout returns the per-request timeout of the API client.
func (c *Config) GetAPITimeout() time.Duration {
	return parseOr(c.API.Timeout, 5*time.Second)
}

// GetShutdownTimeout returns how long ratel-api waits for requests to drain.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseOr(c.Server.ShutdownTimeout, 5*time.Second)
}

// GetGCInterval returns how often the cache collector sweeps.
func (c *Config) GetGCInterval() time.Duration {
	return parseOr(c.Cache.GCInterval, time.Minute)
}

// CachePolicies merges the configured policy fields over each kind's
// default policy.
func (c *Config) CachePolicies() (map[string]query.Policy, error) {
	out := make(map[string]query.Policy, len(c.Cache.Policies))
	for kind, pc := range c.Cache.Policies {
		p, ok := resource.DefaultPolicies[kind]
		if !ok {
			p = query.DefaultPolicy
		}
		if pc.StaleTime != "" {
			d, err := parsePolicyDuration(pc.StaleTime)
			if err != nil {
				return nil, fmt.Errorf("cache.policies.%s.stale_time: %w", kind, err)
			}
			p.StaleTime = d
		}
		if pc.GCTime != "" {
			d, err := parsePolicyDuration(pc.GCTime)
			if err != nil {
				return nil, fmt.Errorf("cache.policies.%s.gc_time: %w", kind, err)
			}
			p.GCTime = d
		}
		if pc.RefetchOnWindowFocus != nil {
			p.RefetchOnWindowFocus = *pc.RefetchOnWindowFocus
		}
		out[kind] = p
	}
	return out, nil
}

func parsePolicyDuration(s string) (time.Duration, error) {
	if strings.EqualFold(s, "forever") {
		return query.Forever, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func parseOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
