// Package config loads search client configuration from YAML files and
// SEARCH_* environment variables and turns it into engine options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/search-client/pkg/cache"
	"github.com/Sternrassler/search-client/pkg/engine"
	"github.com/Sternrassler/search-client/pkg/logging"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvRedisAddr     = "SEARCH_REDIS_ADDR"
	EnvRedisPassword = "SEARCH_REDIS_PASSWORD"
	EnvLogLevel      = "SEARCH_LOG_LEVEL"
	EnvCache         = "SEARCH_CACHE"
	EnvServerAddr    = "SEARCH_SERVER_ADDR"

	envPrefix    = "SEARCH_"
	envKeySuffix = "_API_KEY"
)

// Config is the top-level configuration.
type Config struct {
	Log      logging.Config          `yaml:"log"`
	Redis    RedisConfig             `yaml:"redis"`
	Server   ServerConfig            `yaml:"server"`
	Defaults EngineConfig            `yaml:"defaults"`
	Engines  map[string]EngineConfig `yaml:"engines"`
}

// RedisConfig holds the cache store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ServerConfig holds the search proxy settings.
type ServerConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// EngineConfig configures one engine. Zero fields in an engine entry fall
// back to the defaults entry.
type EngineConfig struct {
	Cache         string         `yaml:"cache"`
	Throttle      time.Duration  `yaml:"throttle"`
	CacheCapacity int            `yaml:"cache_capacity"`
	CacheTTL      time.Duration  `yaml:"cache_ttl"`
	PageSize      int            `yaml:"page_size"`
	Params        map[string]any `yaml:"params"`
}

// Default returns the configuration used when no file is given: caching
// disabled, Redis on localhost and the proxy on :8080.
func Default() *Config {
	return &Config{
		Log: logging.DefaultConfig(),
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Timeout: 30 * time.Second,
		},
		Defaults: EngineConfig{
			Cache:         string(cache.ScopeDisabled),
			CacheCapacity: cache.DefaultCapacity,
			CacheTTL:      cache.DefaultTTL,
		},
		Engines: map[string]EngineConfig{},
	}
}

// Load reads the YAML file at path over the defaults, applies the
// environment and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads YAML over the defaults without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	engines := make(map[string]EngineConfig, len(c.Engines))
	for name, ec := range c.Engines {
		engines[strings.ToLower(name)] = ec
	}
	c.Engines = engines
	return nil
}

// ApplyEnv overrides the configuration from SEARCH_* environment
// variables. SEARCH_<ENGINE>_API_KEY sets the api_key param of that engine.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = logging.LogLevel(v)
	}
	if v := os.Getenv(EnvCache); v != "" {
		c.Defaults.Cache = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(key, envPrefix) || !strings.HasSuffix(key, envKeySuffix) {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(key, envPrefix), envKeySuffix))
		if name == "" {
			continue
		}
		if c.Engines == nil {
			c.Engines = map[string]EngineConfig{}
		}
		ec := c.Engines[name]
		params := make(map[string]any, len(ec.Params)+1)
		for k, v := range ec.Params {
			params[k] = v
		}
		params["api_key"] = value
		ec.Params = params
		c.Engines[name] = ec
	}
}

// Validate checks levels, scopes and numeric bounds.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(string(c.Log.Level)); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	for name, ec := range c.Engines {
		if err := ec.validate(); err != nil {
			return fmt.Errorf("engine %s: %w", name, err)
		}
	}
	if c.CacheEnabled() && c.Redis.Addr == "" {
		return fmt.Errorf("redis: addr is required when caching is enabled")
	}
	return nil
}

func (e EngineConfig) validate() error {
	if _, err := cache.ParseScope(e.Cache); err != nil {
		return err
	}
	switch {
	case e.Throttle < 0:
		return fmt.Errorf("throttle must be >= 0 (got %s)", e.Throttle)
	case e.CacheCapacity < 0:
		return fmt.Errorf("cache_capacity must be >= 0 (got %d)", e.CacheCapacity)
	case e.CacheTTL < 0:
		return fmt.Errorf("cache_ttl must be >= 0 (got %s)", e.CacheTTL)
	case e.PageSize < 0:
		return fmt.Errorf("page_size must be >= 0 (got %d)", e.PageSize)
	}
	if _, err := search.ParamsOf(e.Params); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}

func (e EngineConfig) scope() cache.Scope {
	scope, _ := cache.ParseScope(e.Cache)
	return scope
}

// merged returns the engine entry with unset fields taken from Defaults.
func (c *Config) merged(name string) EngineConfig {
	out := c.Defaults
	ec, ok := c.Engines[strings.ToLower(name)]
	if !ok {
		return out
	}
	if ec.Cache != "" {
		out.Cache = ec.Cache
	}
	if ec.Throttle != 0 {
		out.Throttle = ec.Throttle
	}
	if ec.CacheCapacity != 0 {
		out.CacheCapacity = ec.CacheCapacity
	}
	if ec.CacheTTL != 0 {
		out.CacheTTL = ec.CacheTTL
	}
	if ec.PageSize != 0 {
		out.PageSize = ec.PageSize
	}
	params := make(map[string]any, len(c.Defaults.Params)+len(ec.Params))
	for k, v := range c.Defaults.Params {
		params[k] = v
	}
	for k, v := range ec.Params {
		params[k] = v
	}
	out.Params = params
	return out
}

// EngineOptions builds the engine options for name. client backs the cache
// when the engine's scope enables it.
func (c *Config) EngineOptions(name string, client redis.UniversalClient) (engine.Options, error) {
	ec := c.merged(name)
	scope, err := cache.ParseScope(ec.Cache)
	if err != nil {
		return engine.Options{}, err
	}
	params, err := search.ParamsOf(ec.Params)
	if err != nil {
		return engine.Options{}, err
	}

	opts := engine.Options{
		Cache:         scope,
		CacheCapacity: ec.CacheCapacity,
		CacheTTL:      ec.CacheTTL,
		Throttle:      ec.Throttle,
		PageSize:      ec.PageSize,
		Params:        params,
	}
	if scope.Enabled() {
		opts.Redis = client
	}
	return opts, nil
}

// CacheEnabled reports whether any engine uses the cache.
func (c *Config) CacheEnabled() bool {
	if c.Defaults.scope().Enabled() {
		return true
	}
	for name := range c.Engines {
		if c.merged(name).scope().Enabled() {
			return true
		}
	}
	return false
}

// NewRedisClient returns a client for the configured Redis.
func (c *Config) NewRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}
