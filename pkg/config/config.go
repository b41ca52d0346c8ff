// Package config loads the edge API configuration from an optional file and
// EDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/7and1/famouspeople.id-sub000/pkg/deferred"
	"github.com/7and1/famouspeople.id-sub000/pkg/logging"
	"github.com/7and1/famouspeople.id-sub000/pkg/ratelimit"
	"github.com/7and1/famouspeople.id-sub000/pkg/store"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// Deferred scheduler modes.
const (
	DeferredPool   = "pool"
	DeferredInline = "inline"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Deferred  DeferredConfig  `mapstructure:"deferred" yaml:"deferred"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Profiles  ProfilesConfig  `mapstructure:"profiles" yaml:"profiles"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	SlowRequest     time.Duration `mapstructure:"slow_request" yaml:"slow_request"`
}

// StoreConfig selects and configures the key-value store.
type StoreConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Prefix              string        `mapstructure:"prefix" yaml:"prefix"`
	TTL                 time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SWR                 time.Duration `mapstructure:"swr" yaml:"swr"`
	MaxEntryBytes       int           `mapstructure:"max_entry_bytes" yaml:"max_entry_bytes"`
	CompressThreshold   int           `mapstructure:"compress_threshold" yaml:"compress_threshold"`
	RevalidationBackoff BackoffConfig `mapstructure:"revalidation_backoff" yaml:"revalidation_backoff"`
}

// BackoffConfig configures backoff after failed background revalidations.
type BackoffConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier" yaml:"multiplier"`
}

// RateLimitConfig configures the limiter.
type RateLimitConfig struct {
	Prefix        string                `mapstructure:"prefix" yaml:"prefix"`
	TrustedHeader string                `mapstructure:"trusted_header" yaml:"trusted_header"`
	Tiers         map[string]TierConfig `mapstructure:"tiers" yaml:"tiers"`
}

// TierConfig is one tier's budget.
type TierConfig struct {
	Requests int           `mapstructure:"requests" yaml:"requests"`
	Window   time.Duration `mapstructure:"window" yaml:"window"`
}

// DeferredConfig configures background work.
type DeferredConfig struct {
	Mode        string        `mapstructure:"mode" yaml:"mode"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	TaskTimeout time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// AuthConfig holds the service credentials.
type AuthConfig struct {
	// PurgeToken guards cache purge and profile sync. Empty disables both.
	PurgeToken string `mapstructure:"purge_token" yaml:"purge_token,omitempty"`
}

// ProfilesConfig locates the profile data.
type ProfilesConfig struct {
	// File is a JSON array of profiles. Empty uses the embedded seed.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	tiers := make(map[string]TierConfig)
	defaults := ratelimit.DefaultTiers()
	for _, t := range ratelimit.AllTiers() {
		l := defaults.Get(t)
		tiers[t.String()] = TierConfig{Requests: l.Requests, Window: l.Window}
	}

	backoff := cache.DefaultBackoffConfig()
	pool := deferred.DefaultPoolConfig()

	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 15 * time.Second,
			SlowRequest:     time.Second,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Timeout: store.DefaultTimeout,
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Cache: CacheConfig{
			Prefix:            "api:",
			TTL:               cache.DefaultTTL,
			SWR:               cache.DefaultSWR,
			MaxEntryBytes:     cache.DefaultMaxEntryBytes,
			CompressThreshold: cache.DefaultCompressThreshold,
			RevalidationBackoff: BackoffConfig{
				Enabled:         backoff.Enabled,
				InitialInterval: backoff.InitialInterval,
				MaxInterval:     backoff.MaxInterval,
				Multiplier:      backoff.Multiplier,
			},
		},
		RateLimit: RateLimitConfig{
			Prefix:        "rl:",
			TrustedHeader: ratelimit.DefaultTrustedHeader,
			Tiers:         tiers,
		},
		Deferred: DeferredConfig{
			Mode:        DeferredPool,
			Workers:     pool.MaxConcurrency,
			TaskTimeout: pool.TaskTimeout,
		},
		Log: LogConfig{Level: string(logging.LevelInfo)},
	}
}

// Validate reports every problem in c.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		add("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("server.shutdown_timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			add("store.redis.addr is required for the redis backend")
		}
	case BackendMemory, BackendNone:
	default:
		add("store.backend must be redis, memory or none, got %q", c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		add("store.timeout must be positive")
	}

	if c.Cache.TTL <= 0 {
		add("cache.ttl must be positive")
	}
	if c.Cache.SWR < 0 {
		add("cache.swr must not be negative")
	}
	if c.Cache.MaxEntryBytes <= 0 {
		add("cache.max_entry_bytes must be positive")
	}
	if c.Cache.CompressThreshold < 0 {
		add("cache.compress_threshold must not be negative")
	}
	if b := c.Cache.RevalidationBackoff; b.Enabled {
		if b.InitialInterval <= 0 || b.MaxInterval < b.InitialInterval {
			add("cache.revalidation_backoff intervals must satisfy 0 < initial_interval <= max_interval")
		}
		if b.Multiplier < 1 {
			add("cache.revalidation_backoff.multiplier must be at least 1")
		}
	}

	if _, err := c.RateLimit.LimiterTiers(); err != nil {
		errs = append(errs, err)
	}

	switch c.Deferred.Mode {
	case DeferredPool:
		if c.Deferred.Workers <= 0 {
			add("deferred.workers must be positive")
		}
	case DeferredInline:
	default:
		add("deferred.mode must be pool or inline, got %q", c.Deferred.Mode)
	}
	if c.Deferred.TaskTimeout <= 0 {
		add("deferred.task_timeout must be positive")
	}

	switch logging.LogLevel(strings.ToLower(c.Log.Level)) {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, "warning", logging.LevelError:
	default:
		add("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	return errors.Join(errs...)
}

// LimiterTiers converts the tier map, starting from the stock limits.
// Unknown tier names and unenforceable limits are errors.
func (c RateLimitConfig) LimiterTiers() (ratelimit.Tiers, error) {
	tiers := ratelimit.DefaultTiers()

	names := make([]string, 0, len(c.Tiers))
	for name := range c.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		tier, ok := ratelimit.ParseTier(strings.ToLower(name))
		if !ok {
			errs = append(errs, fmt.Errorf("ratelimit.tiers: unknown tier %q", name))
			continue
		}
		tc := c.Tiers[name]
		limit := ratelimit.Limit{Requests: tc.Requests, Window: tc.Window}
		if err := limit.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ratelimit.tiers.%s: %w", name, err))
			continue
		}
		tiers = tiers.With(tier, limit)
	}
	return tiers, errors.Join(errs...)
}

// ManagerConfig converts c into the cache manager configuration.
func (c CacheConfig) ManagerConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.DefaultTTL = c.TTL
	cfg.DefaultSWR = c.SWR
	cfg.Codec.MaxEntryBytes = c.MaxEntryBytes
	cfg.Codec.CompressThreshold = c.CompressThreshold
	cfg.Backoff.Enabled = c.RevalidationBackoff.Enabled
	cfg.Backoff.InitialInterval = c.RevalidationBackoff.InitialInterval
	cfg.Backoff.MaxInterval = c.RevalidationBackoff.MaxInterval
	cfg.Backoff.Multiplier = c.RevalidationBackoff.Multiplier
	return cfg
}

// PoolConfig converts c into the deferred pool configuration.
func (c DeferredConfig) PoolConfig() deferred.PoolConfig {
	return deferred.PoolConfig{
		MaxConcurrency: c.Workers,
		TaskTimeout:    c.TaskTimeout,
	}
}

// LoggingConfig converts c into the logging configuration.
func (c LogConfig) LoggingConfig(out io.Writer) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Level)
	cfg.Pretty = c.Pretty
	if out != nil {
		cfg.Output = out
	}
	return cfg
}

// WriteYAML renders cfg as YAML with secrets masked.
func WriteYAML(w io.Writer, cfg Config) error {
	if cfg.Store.Redis.Password != "" {
		cfg.Store.Redis.Password = "********"
	}
	if cfg.Auth.PurgeToken != "" {
		cfg.Auth.PurgeToken = "********"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
