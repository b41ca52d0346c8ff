package cache

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxTrackedKeys bounds the number of keys held in backoff at once.
const maxTrackedKeys = 10000

// BackoffConfig controls backoff after failed background revalidations.
//
// It is off by default: every stale read then schedules one background
// recompute, even while the upstream keeps failing. When enabled, a key
// whose recompute failed is served stale without scheduling another
// recompute until its backoff interval has passed. A successful recompute
// clears the key.
type BackoffConfig struct {
	Enabled             bool
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultBackoffConfig returns a disabled config with usable intervals.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Enabled:             false,
		InitialInterval:     5 * time.Second,
		MaxInterval:         5 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.2,
	}
}

type revalidationBackoff struct {
	config BackoffConfig
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*keyBackoff
}

type keyBackoff struct {
	policy *backoff.ExponentialBackOff
	until  time.Time
}

// newRevalidationBackoff returns nil when backoff is disabled; a nil
// *revalidationBackoff allows everything.
func newRevalidationBackoff(config BackoffConfig, now func() time.Time) *revalidationBackoff {
	if !config.Enabled {
		return nil
	}
	return &revalidationBackoff{
		config: config,
		now:    now,
		keys:   make(map[string]*keyBackoff),
	}
}

// allow reports whether key may be revalidated now.
func (r *revalidationBackoff) allow(key string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kb, ok := r.keys[key]
	if !ok {
		return true
	}
	return !r.now().Before(kb.until)
}

// failure records a failed revalidation and returns the wait before the
// next one.
func (r *revalidationBackoff) failure(key string) time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	kb, ok := r.keys[key]
	if !ok {
		if len(r.keys) >= maxTrackedKeys {
			r.pruneLocked(now)
		}
		kb = &keyBackoff{policy: r.newPolicy()}
		r.keys[key] = kb
	}

	wait := kb.policy.NextBackOff()
	if wait == backoff.Stop {
		wait = r.config.MaxInterval
	}
	kb.until = now.Add(wait)
	return wait
}

// success clears any backoff held for key.
func (r *revalidationBackoff) success(key string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()
}

func (r *revalidationBackoff) newPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialInterval
	b.MaxInterval = r.config.MaxInterval
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = r.config.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (r *revalidationBackoff) pruneLocked(now time.Time) {
	for key, kb := range r.keys {
		if !now.Before(kb.until) {
			delete(r.keys, key)
		}
	}
}
