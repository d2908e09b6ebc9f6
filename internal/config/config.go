package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Modes selecting the cache-read behavior on a miss of today's file.
const (
	// ModeInteractive substitutes the most recent prior cache file when
	// today's is absent, so local runs don't burn paid API calls.
	ModeInteractive = "interactive"

	// ModeScheduled trusts only today's cache file.
	ModeScheduled = "scheduled"
)

// Topic is one catalog entry: a named subject with a search query, an
// optional simplified retry query, and a freshness tolerance in hours.
// The catalog is immutable after load.
type Topic struct {
	Name           string `yaml:"name"`
	Query          string `yaml:"query"`
	FallbackQuery  string `yaml:"fallback_query,omitempty"`
	FreshnessHours int    `yaml:"freshness_hours"`
}

// Keys holds provider API keys. An empty key disables that provider;
// it is a feature switch, never an error.
type Keys struct {
	GNews      string `yaml:"gnews,omitempty"`
	NewsAPI    string `yaml:"newsapi,omitempty"`
	Serper     string `yaml:"serper,omitempty"`
	Mediastack string `yaml:"mediastack,omitempty"`
}

type Config struct {
	Mode          string  `yaml:"mode"`
	FlagshipTopic string  `yaml:"flagship_topic,omitempty"`
	Topics        []Topic `yaml:"topics"`
	Keys          Keys    `yaml:"keys,omitempty"`
}

// Interactive reports whether the cache may fall back to the most recent
// prior day's file when today's is missing.
func (c *Config) Interactive() bool {
	return c.Mode != ModeScheduled
}

// Flagship returns the topic used for the metered-provider sampling floor,
// defaulting to the first catalog topic.
func (c *Config) Flagship() string {
	if c.FlagshipTopic != "" {
		return c.FlagshipTopic
	}
	if len(c.Topics) > 0 {
		return c.Topics[0].Name
	}
	return ""
}

func keyOr(configured, envVar string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(envVar)
}

// Resolved API keys (config value or env var).
func (c *Config) GNewsKey() string      { return keyOr(c.Keys.GNews, "GNEWS_API_KEY") }
func (c *Config) NewsAPIKey() string    { return keyOr(c.Keys.NewsAPI, "NEWSAPI_API_KEY") }
func (c *Config) SerperKey() string     { return keyOr(c.Keys.Serper, "SERPER_API_KEY") }
func (c *Config) MediastackKey() string { return keyOr(c.Keys.Mediastack, "MEDIASTACK_API_KEY") }

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "newsbrief", "config.yaml")
}

// CacheDir holds the daily result files.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "newsbrief")
}

// UsageDBPath is the provider call-counter database. It lives under
// DataHome because counters must survive cache cleanup.
func UsageDBPath() string {
	return filepath.Join(xdg.DataHome, "newsbrief", "usage.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Write defaults to config path on first run
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

// Validate checks catalog integrity. Topic names are stable identifiers,
// so they must be present and unique.
func Validate(cfg *Config) error {
	if cfg.Mode != "" && cfg.Mode != ModeInteractive && cfg.Mode != ModeScheduled {
		return fmt.Errorf("mode: unknown value %q (valid: interactive, scheduled)", cfg.Mode)
	}
	if len(cfg.Topics) == 0 {
		return fmt.Errorf("topics: at least one topic is required")
	}

	seen := make(map[string]bool, len(cfg.Topics))
	for i, t := range cfg.Topics {
		if t.Name == "" {
			return fmt.Errorf("topic %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("topic %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		if t.Query == "" {
			return fmt.Errorf("topic %q: query is required", t.Name)
		}
		if t.FreshnessHours <= 0 {
			return fmt.Errorf("topic %q: freshness_hours must be positive, got %d", t.Name, t.FreshnessHours)
		}
	}

	if cfg.FlagshipTopic != "" && !seen[cfg.FlagshipTopic] {
		return fmt.Errorf("flagship_topic: %q is not in the topic catalog", cfg.FlagshipTopic)
	}
	return nil
}
