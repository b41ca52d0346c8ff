package cache

import (
	"time"
)

// Default timing applied when Options leaves TTL or SWR unset.
const (
	DefaultTTL = 5 * time.Minute
	DefaultSWR = 1 * time.Minute
)

// Freshness classifies a cache entry at read time.
type Freshness int

const (
	// Absent means there is no usable entry.
	Absent Freshness = iota

	// Fresh means now <= StaleAt; the value is served as is.
	Fresh

	// Stale means StaleAt < now <= ExpiresAt; the value is served while a
	// background recompute refreshes it.
	Stale

	// Expired means now > ExpiresAt; the entry is treated as absent and
	// deleted.
	Expired
)

// String returns the lowercase freshness name.
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Expired:
		return "expired"
	default:
		return "absent"
	}
}

// CacheEntry is a cached value plus its timing metadata.
// StaleAt is never after ExpiresAt.
type CacheEntry[T any] struct {
	// Value is the cached value
	Value T `json:"value"`

	// StaleAt is when the value stops being fresh
	StaleAt time.Time `json:"stale_at"`

	// ExpiresAt is when the value may no longer be served at all
	ExpiresAt time.Time `json:"expires_at"`

	// ETag is the fingerprint of Value, computed when the entry was created
	ETag string `json:"etag,omitempty"`

	// Tags are informational labels supplied by the caller
	Tags []string `json:"tags,omitempty"`
}

// Freshness classifies the entry at now.
func (e *CacheEntry[T]) Freshness(now time.Time) Freshness {
	if e == nil {
		return Absent
	}
	switch {
	case now.After(e.ExpiresAt):
		return Expired
	case now.After(e.StaleAt):
		return Stale
	default:
		return Fresh
	}
}

// TTL returns the time until the entry expires, or 0 if it already has.
func (e *CacheEntry[T]) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Compression selects when an entry payload is compressed.
type Compression int

const (
	// CompressionAuto compresses payloads larger than the codec threshold.
	CompressionAuto Compression = iota

	// CompressionOff never compresses.
	CompressionOff

	// CompressionForce compresses regardless of size.
	CompressionForce
)

// Options controls how a value is cached.
type Options struct {
	// TTL is how long the value stays fresh. Zero means the manager default.
	TTL time.Duration

	// SWR extends the storage lifetime past staleness so a stale copy can be
	// served while revalidating. Zero means the manager default; a negative
	// value disables the stale window.
	SWR time.Duration

	// Tags are stored with the entry.
	Tags []string

	// Compression selects payload compression.
	Compression Compression
}

// newEntry builds an entry created at now: StaleAt = now+TTL and
// ExpiresAt = now+TTL+SWR.
func newEntry[T any](value T, now time.Time, ttl, swr time.Duration, etag string, tags []string) *CacheEntry[T] {
	staleAt := now.Add(ttl)
	return &CacheEntry[T]{
		Value:     value,
		StaleAt:   staleAt,
		ExpiresAt: staleAt.Add(swr),
		ETag:      etag,
		Tags:      tags,
	}
}
