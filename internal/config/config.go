// Package config loads service configuration from coded defaults, an optional
// YAML file, and FAMSCOUT_-prefixed environment variables, in that order of
// precedence (later sources win).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Cache     CacheConfig     `koanf:"cache"`
	Retry     RetryConfig     `koanf:"retry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// Development relaxes CORS to allow all origins.
	Development        bool          `koanf:"development"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	RateLimitRequests  int           `koanf:"rate_limit_requests"`
	RateLimitWindow    time.Duration `koanf:"rate_limit_window"`
}

type AnthropicConfig struct {
	APIKey           string        `koanf:"api_key"`
	BaseURL          string        `koanf:"base_url"`
	Model            string        `koanf:"model"`
	MaxTokens        int           `koanf:"max_tokens"`
	Timeout          time.Duration `koanf:"timeout"`
	WebSearchMaxUses int           `koanf:"web_search_max_uses"`
	Streaming        bool          `koanf:"streaming"`
}

type CacheConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries"`
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxDelay   time.Duration `koanf:"max_delay"`
}

// Default returns the coded defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           3001,
			RequestTimeout: 5 * time.Minute,
			Development:    false,
			CORSAllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:5174",
			},
			RateLimitRequests: 10,
			RateLimitWindow:   time.Minute,
		},
		Anthropic: AnthropicConfig{
			Model:            "claude-sonnet-4-5-20250929",
			MaxTokens:        12000,
			Timeout:          5 * time.Minute,
			WebSearchMaxUses: 5,
			Streaming:        true,
		},
		Cache: CacheConfig{
			TTL:           10 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries: 5,
			BaseDelay:  time.Second,
			MaxDelay:   60 * time.Second,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; a missing
// file is not an error. Environment variables use the FAMSCOUT_ prefix with
// "__" as the section separator, e.g. FAMSCOUT_SERVER__PORT=8080 or
// FAMSCOUT_ANTHROPIC__API_KEY=sk-.... The bare ANTHROPIC_API_KEY variable is
// honored as a fallback for the credential.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("FAMSCOUT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "FAMSCOUT_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}
