package cache

import (
	"context"
	"errors"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/deferred"
	"github.com/7and1/famouspeople.id-sub000/pkg/store"
	"github.com/rs/zerolog"
)

// Status reports how GetOrCompute produced its value.
type Status string

const (
	// StatusHit means a fresh cached value was served.
	StatusHit Status = "HIT"

	// StatusStale means a stale value was served and a background
	// revalidation was scheduled.
	StatusStale Status = "STALE"

	// StatusMiss means the value was computed on the request path.
	StatusMiss Status = "MISS"
)

// CacheHeader returns the X-Cache value for s. Stale serves report HIT.
func (s Status) CacheHeader() string {
	if s == StatusMiss {
		return "MISS"
	}
	return "HIT"
}

// ComputeFunc produces the value for a key. During background
// revalidation it runs after the request has completed, so it must not
// capture request-scoped state.
type ComputeFunc[T any] func(ctx context.Context) (T, error)

// Result is the outcome of GetOrCompute.
type Result[T any] struct {
	Value  T
	Status Status
	ETag   string
}

// Config holds the manager configuration.
type Config struct {
	// DefaultTTL applies when Options.TTL is zero.
	DefaultTTL time.Duration

	// DefaultSWR applies when Options.SWR is zero.
	DefaultSWR time.Duration

	// Codec serializes entries.
	Codec Codec

	// Backoff controls backoff after failed background revalidations.
	Backoff BackoffConfig

	// Logger receives swallowed failures.
	Logger zerolog.Logger

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: DefaultTTL,
		DefaultSWR: DefaultSWR,
		Codec:      DefaultCodec(),
		Backoff:    DefaultBackoffConfig(),
		Logger:     zerolog.Nop(),
	}
}

// Manager implements stale-while-revalidate caching over a store adapter.
//
// No read or write path returns a store or serialization error: the worst
// case is an uncached response.
type Manager struct {
	store     *store.Adapter
	scheduler deferred.Scheduler
	codec     Codec
	ttl       time.Duration
	swr       time.Duration
	backoff   *revalidationBackoff
	logger    zerolog.Logger
	now       func() time.Time
}

// NewManager creates a cache manager. Writes and revalidations are handed
// to scheduler.
func NewManager(adapter *store.Adapter, scheduler deferred.Scheduler, cfg Config) *Manager {
	if adapter == nil {
		panic("store adapter cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.DefaultSWR < 0 {
		cfg.DefaultSWR = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		store:     adapter,
		scheduler: scheduler,
		codec:     cfg.Codec,
		ttl:       cfg.DefaultTTL,
		swr:       cfg.DefaultSWR,
		backoff:   newRevalidationBackoff(cfg.Backoff, cfg.Now),
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

// Enabled reports whether a store is configured.
func (m *Manager) Enabled() bool {
	return m.store.Enabled()
}

// FreshFor returns how long a value cached with opts stays fresh.
func (m *Manager) FreshFor(opts Options) time.Duration {
	ttl, _ := m.resolve(opts)
	return ttl
}

// Get reads the entry for key and classifies it. An expired entry is
// returned as nil with Expired, and its key is deleted in the background.
// Corrupt payloads read as Absent.
func Get[T any](ctx context.Context, m *Manager, key string) (*CacheEntry[T], Freshness) {
	data, ok := m.store.Get(ctx, key)
	if !ok {
		return nil, Absent
	}

	var entry CacheEntry[T]
	if err := m.codec.Decode(data, &entry); err != nil {
		m.logger.Warn().Err(err).Str("key", m.store.Key(key)).Msg("Cache entry unreadable, treating as miss")
		return nil, Absent
	}

	freshness := entry.Freshness(m.now())
	if freshness == Expired {
		m.scheduler.Schedule(ctx, "cache.delete", func(ctx context.Context) {
			m.store.Delete(ctx, key)
		})
		return nil, Expired
	}
	return &entry, freshness
}

// Set caches value under key and returns its ETag. The store write is
// deferred; oversized or unserializable values are logged and skipped.
func Set[T any](ctx context.Context, m *Manager, key string, value T, opts Options) string {
	etag, payload, ttl, ok := prepare(m, key, value, opts)
	if !ok {
		return etag
	}
	m.scheduler.Schedule(ctx, "cache.write", func(ctx context.Context) {
		m.write(ctx, key, payload, ttl)
	})
	return etag
}

// GetOrCompute returns the cached value for key, computing it when absent.
//
//   - Fresh: the stored value is returned.
//   - Stale: the stored value is returned and a background compute and
//     write is scheduled. Its failure is logged, never returned.
//   - Absent or expired: compute runs on the caller's path and the result
//     is written in the background. A compute error is returned as is.
//
// Concurrent misses on the same key each run compute.
func GetOrCompute[T any](ctx context.Context, m *Manager, key string, compute ComputeFunc[T], opts Options) (Result[T], error) {
	entry, freshness := Get[T](ctx, m, key)

	switch freshness {
	case Fresh:
		CacheRequests.WithLabelValues("hit").Inc()
		m.logger.Debug().Str("key", key).Msg("Cache hit")
		return Result[T]{Value: entry.Value, Status: StatusHit, ETag: entryETag(entry)}, nil

	case Stale:
		CacheRequests.WithLabelValues("stale").Inc()
		m.logger.Debug().Str("key", key).Time("stale_at", entry.StaleAt).Msg("Cache stale, revalidating in background")
		revalidate(ctx, m, key, compute, opts)
		return Result[T]{Value: entry.Value, Status: StatusStale, ETag: entryETag(entry)}, nil
	}

	CacheRequests.WithLabelValues("miss").Inc()
	m.logger.Debug().Str("key", key).Str("freshness", freshness.String()).Msg("Cache miss")

	value, err := compute(ctx)
	if err != nil {
		return Result[T]{Status: StatusMiss}, err
	}

	etag := Set(ctx, m, key, value, opts)
	return Result[T]{Value: value, Status: StatusMiss, ETag: etag}, nil
}

// revalidate schedules one background recompute of key, unless backoff
// holds it.
func revalidate[T any](ctx context.Context, m *Manager, key string, compute ComputeFunc[T], opts Options) {
	if !m.backoff.allow(key) {
		Revalidations.WithLabelValues("backoff").Inc()
		m.logger.Debug().Str("key", key).Msg("Revalidation held back after recent failure")
		return
	}

	m.scheduler.Schedule(ctx, "cache.revalidate", func(ctx context.Context) {
		value, err := compute(ctx)
		if err != nil {
			wait := m.backoff.failure(key)
			Revalidations.WithLabelValues("failure").Inc()
			m.logger.Warn().
				Err(err).
				Str("key", key).
				Dur("backoff", wait).
				Msg("Background revalidation failed")
			return
		}
		m.backoff.success(key)
		Revalidations.WithLabelValues("success").Inc()

		if _, payload, ttl, ok := prepare(m, key, value, opts); ok {
			m.write(ctx, key, payload, ttl)
		}
	})
}

// prepare builds and encodes the entry for value. ok is false when there
// is nothing to write.
func prepare[T any](m *Manager, key string, value T, opts Options) (etag string, payload []byte, ttl time.Duration, ok bool) {
	etag, err := Fingerprint(value)
	if err != nil {
		CacheWrites.WithLabelValues("encode_error").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("Cannot serialize value, skipping cache write")
		return "", nil, 0, false
	}

	if !m.Enabled() {
		CacheWrites.WithLabelValues("disabled").Inc()
		return etag, nil, 0, false
	}

	fresh, swr := m.resolve(opts)
	entry := newEntry(value, m.now(), fresh, swr, etag, opts.Tags)

	payload, err = m.codec.Encode(entry, opts.Compression)
	if err != nil {
		if errors.Is(err, ErrEntryTooLarge) {
			CacheWrites.WithLabelValues("too_large").Inc()
			m.logger.Warn().Err(err).Str("key", key).Msg("Cache entry too large, skipping")
		} else {
			CacheWrites.WithLabelValues("encode_error").Inc()
			m.logger.Warn().Err(err).Str("key", key).Msg("Cannot encode cache entry, skipping")
		}
		return etag, nil, 0, false
	}

	return etag, payload, fresh + swr, true
}

func (m *Manager) write(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if !m.store.Put(ctx, key, payload, ttl) {
		CacheWrites.WithLabelValues("failed").Inc()
		return
	}
	CacheWrites.WithLabelValues("stored").Inc()
	CacheEntryBytes.Observe(float64(len(payload)))
	m.logger.Debug().
		Str("key", key).
		Int("bytes", len(payload)).
		Dur("ttl", ttl).
		Msg("Cached entry")
}

// resolve applies manager defaults to opts.
func (m *Manager) resolve(opts Options) (ttl, swr time.Duration) {
	ttl = opts.TTL
	if ttl <= 0 {
		ttl = m.ttl
	}
	switch {
	case opts.SWR > 0:
		swr = opts.SWR
	case opts.SWR < 0:
		swr = 0
	default:
		swr = m.swr
	}
	return ttl, swr
}

// entryETag returns the stored ETag, recomputing it for entries written
// without one.
func entryETag[T any](entry *CacheEntry[T]) string {
	if entry.ETag != "" {
		return entry.ETag
	}
	etag, _ := Fingerprint(entry.Value)
	return etag
}
