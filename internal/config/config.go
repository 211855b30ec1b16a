// Package config handles gateway configuration: defaults, an optional YAML
// file with ${VAR} expansion, then environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.yaml.in/yaml/v3"

	"playergate/internal/platform"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"-"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
}

type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
}

// LogConfig comes from ENV and LOG_LEVEL only.
type LogConfig struct {
	Env   string
	Level string `validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
}

type CacheConfig struct {
	Backend    string `yaml:"backend" validate:"oneof=memory bounded redis"`
	MaxEntries int    `yaml:"max_entries" validate:"min=1"`
	Coalesce   bool   `yaml:"coalesce"`
}

type RedisConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"` // empty disables auth
}

type RateLimitConfig struct {
	RPM int64 `yaml:"rpm" validate:"min=0"` // 0 = unlimited
}

type FallbackConfig struct {
	Enabled bool `yaml:"enabled"`
}

type UpstreamConfig struct {
	Users      string `yaml:"users" validate:"omitempty,url"`
	Friends    string `yaml:"friends" validate:"omitempty,url"`
	Thumbnails string `yaml:"thumbnails" validate:"omitempty,url"`
	Games      string `yaml:"games" validate:"omitempty,url"`
	Groups     string `yaml:"groups" validate:"omitempty,url"`
	Economy    string `yaml:"economy" validate:"omitempty,url"`
	APIs       string `yaml:"apis" validate:"omitempty,url"`
	DNSCache   bool   `yaml:"dns_cache"`
}

// Hosts converts the configured base URLs for the platform client.
func (u UpstreamConfig) Hosts() platform.Upstreams {
	return platform.Upstreams{
		Users:      u.Users,
		Friends:    u.Friends,
		Thumbnails: u.Thumbnails,
		Games:      u.Games,
		Groups:     u.Groups,
		Economy:    u.Economy,
		APIs:       u.APIs,
	}
}

func Default() *Config {
	d := platform.DefaultUpstreams()
	return &Config{
		Server:    ServerConfig{Port: "8080"},
		Log:       LogConfig{Level: "info"},
		Cache:     CacheConfig{Backend: "memory", MaxEntries: 10_000},
		Redis:     RedisConfig{Addr: "127.0.0.1:6379"},
		RateLimit: RateLimitConfig{RPM: 100},
		Fallback:  FallbackConfig{Enabled: true},
		Upstream: UpstreamConfig{
			Users:      d.Users,
			Friends:    d.Friends,
			Thumbnails: d.Thumbnails,
			Games:      d.Games,
			Groups:     d.Groups,
			Economy:    d.Economy,
			APIs:       d.APIs,
			DNSCache:   true,
		},
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} with the variable's value; unset variables are kept as-is.
func expandEnv(data []byte, lookup func(string) (string, bool)) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		if val, ok := lookup(string(match[2 : len(match)-1])); ok {
			return []byte(val)
		}
		return match
	})
}

var validate = validator.New()

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(expandEnv(data, lookup), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &cfg.Server.Port)
	str("ENV", &cfg.Log.Env)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("CACHE_BACKEND", &cfg.Cache.Backend)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("API_KEY", &cfg.Auth.APIKey)

	str("UPSTREAM_USERS_URL", &cfg.Upstream.Users)
	str("UPSTREAM_FRIENDS_URL", &cfg.Upstream.Friends)
	str("UPSTREAM_THUMBNAILS_URL", &cfg.Upstream.Thumbnails)
	str("UPSTREAM_GAMES_URL", &cfg.Upstream.Games)
	str("UPSTREAM_GROUPS_URL", &cfg.Upstream.Groups)
	str("UPSTREAM_ECONOMY_URL", &cfg.Upstream.Economy)
	str("UPSTREAM_APIS_URL", &cfg.Upstream.APIs)

	if v, ok := lookup("CACHE_MAX_ENTRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CACHE_MAX_ENTRIES: %w", err)
		}
		cfg.Cache.MaxEntries = n
	}
	if v, ok := lookup("RATE_LIMIT_RPM"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPM: %w", err)
		}
		cfg.RateLimit.RPM = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"CACHE_COALESCE", &cfg.Cache.Coalesce},
		{"MOCK_FALLBACK", &cfg.Fallback.Enabled},
		{"UPSTREAM_DNS_CACHE", &cfg.Upstream.DNSCache},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = parsed
	}

	return nil
}
