package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. EDGE_STORE_BACKEND.
const EnvPrefix = "EDGE"

// Loader reads configuration from an optional file and the environment.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a loader. path may be empty to use defaults and the
// environment only.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			v.SetConfigType(ext)
		}
	}

	return &Loader{v: v, path: path}
}

// Load reads, decodes and validates the configuration.
func (l *Loader) Load() (Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", l.path, err)
		}
	}
	return l.decode()
}

// Watch re-reads the file whenever it changes and calls fn with the result.
// fn receives a non-nil error when the new file is invalid; the caller
// should keep its current configuration in that case. Watch is a no-op
// without a file.
func (l *Loader) Watch(fn func(Config, error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.decode())
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (Config, error) {
	cfg := Default()
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load is a shortcut for NewLoader(path).Load().
func Load(path string) (Config, error) {
	return NewLoader(path).Load()
}

// setDefaults registers every key so environment overrides apply to keys
// the file never mentions.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.slow_request", d.Server.SlowRequest)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	v.SetDefault("store.redis.password", d.Store.Redis.Password)
	v.SetDefault("store.redis.db", d.Store.Redis.DB)

	v.SetDefault("cache.prefix", d.Cache.Prefix)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.swr", d.Cache.SWR)
	v.SetDefault("cache.max_entry_bytes", d.Cache.MaxEntryBytes)
	v.SetDefault("cache.compress_threshold", d.Cache.CompressThreshold)
	v.SetDefault("cache.revalidation_backoff.enabled", d.Cache.RevalidationBackoff.Enabled)
	v.SetDefault("cache.revalidation_backoff.initial_interval", d.Cache.RevalidationBackoff.InitialInterval)
	v.SetDefault("cache.revalidation_backoff.max_interval", d.Cache.RevalidationBackoff.MaxInterval)
	v.SetDefault("cache.revalidation_backoff.multiplier", d.Cache.RevalidationBackoff.Multiplier)

	v.SetDefault("ratelimit.prefix", d.RateLimit.Prefix)
	v.SetDefault("ratelimit.trusted_header", d.RateLimit.TrustedHeader)
	for name, tier := range d.RateLimit.Tiers {
		v.SetDefault("ratelimit.tiers."+name+".requests", tier.Requests)
		v.SetDefault("ratelimit.tiers."+name+".window", tier.Window)
	}

	v.SetDefault("deferred.mode", d.Deferred.Mode)
	v.SetDefault("deferred.workers", d.Deferred.Workers)
	v.SetDefault("deferred.task_timeout", d.Deferred.TaskTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("auth.purge_token", d.Auth.PurgeToken)
	v.SetDefault("profiles.file", d.Profiles.File)
}
