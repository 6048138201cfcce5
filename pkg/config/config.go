package config

import (
	"fmt"
	"os"
	"time"

	"github.com/elan-ai/elan/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all Elan configuration.
type Config struct {
	Listen    string             `yaml:"listen"`
	Providers []ProviderConfig   `yaml:"providers"`
	Cache     CacheConfig        `yaml:"cache"`
	Breaker   BreakerConfig      `yaml:"breaker"`
	RateLimit RateLimitConfig    `yaml:"ratelimit"`
	Upstream  UpstreamConfig     `yaml:"upstream"`
	Router    RouterConfig       `yaml:"router"`
	Audit     models.AuditConfig `yaml:"audit"`
	Usage     UsageConfig        `yaml:"usage"`
}

// ProviderConfig defines an upstream LLM provider.
// Type is "openai" (default) or "anthropic".
type ProviderConfig struct {
	ID                  string  `yaml:"id"`
	Type                string  `yaml:"type"`
	URL                 string  `yaml:"url"`
	APIKey              string  `yaml:"api_key"`
	Model               string  `yaml:"model"`
	PromptCostPer1K     float64 `yaml:"prompt_cost_per_1k"`
	CompletionCostPer1K float64 `yaml:"completion_cost_per_1k"`
	MaxTokens           int     `yaml:"max_tokens"`
	Speed               int     `yaml:"speed"`
	Reliability         float64 `yaml:"reliability"`
}

// Profile converts the config entry to its runtime-immutable profile.
func (p ProviderConfig) Profile() models.ProviderProfile {
	return models.ProviderProfile{
		ID:                  p.ID,
		Type:                p.Type,
		Model:               p.Model,
		PromptCostPer1K:     p.PromptCostPer1K,
		CompletionCostPer1K: p.CompletionCostPer1K,
		MaxTokens:           p.MaxTokens,
		Speed:               p.Speed,
		Reliability:         p.Reliability,
	}
}

// CacheConfig controls the semantic response cache.
type CacheConfig struct {
	Enabled             bool                     `yaml:"enabled"`
	MaxEntries          int                      `yaml:"max_entries"`
	SimilarityThreshold float64                  `yaml:"similarity_threshold"`
	DefaultTTL          time.Duration            `yaml:"default_ttl"`
	CategoryTTLs        map[string]time.Duration `yaml:"category_ttls"`
	SweepInterval       time.Duration            `yaml:"sweep_interval"`
}

// TTLFor returns the TTL for a response category, falling back to the default.
func (c CacheConfig) TTLFor(category string) time.Duration {
	if ttl, ok := c.CategoryTTLs[category]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// BreakerConfig controls the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// RateLimitConfig controls fixed-window admission ceilings.
type RateLimitConfig struct {
	Window       time.Duration `yaml:"window"`
	GlobalLimit  int           `yaml:"global_limit"`
	SubjectLimit int           `yaml:"subject_limit"`
	AILimit      int           `yaml:"ai_limit"`
}

// UpstreamConfig controls provider invocation behavior.
type UpstreamConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RouterConfig defines explicit preference chains per (complexity, tier).
// Unlisted combinations use a default policy derived from provider cost.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps one (complexity, tier) pair to an ordered provider chain.
type RouteConfig struct {
	Complexity string   `yaml:"complexity"`
	Tier       string   `yaml:"tier"`
	Targets    []string `yaml:"targets"`
}

// UsageConfig controls durable archiving of cost-tracker totals.
type UsageConfig struct {
	DBPath        string        `yaml:"db_path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Cache: CacheConfig{
			Enabled:             true,
			MaxEntries:          1000,
			SimilarityThreshold: 0.85,
			DefaultTTL:          time.Hour,
			SweepInterval:       5 * time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         time.Minute,
		},
		RateLimit: RateLimitConfig{
			Window:       time.Minute,
			GlobalLimit:  600,
			SubjectLimit: 60,
			AILimit:      10,
		},
		Upstream: UpstreamConfig{
			Timeout: 30 * time.Second,
		},
		Usage: UsageConfig{
			DBPath:        "elan.db",
			FlushInterval: time.Minute,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("config: provider with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
	}
	for _, r := range c.Router.Routes {
		for _, t := range r.Targets {
			if !seen[t] {
				return fmt.Errorf("config: route %s/%s references unknown provider %q", r.Complexity, r.Tier, t)
			}
		}
	}
	return nil
}

// Profiles returns runtime profiles for all configured providers.
func (c *Config) Profiles() []models.ProviderProfile {
	profiles := make([]models.ProviderProfile, 0, len(c.Providers))
	for _, p := range c.Providers {
		profiles = append(profiles, p.Profile())
	}
	return profiles
}
