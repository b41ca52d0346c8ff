package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/deferred"
	"github.com/7and1/famouspeople.id-sub000/pkg/store"
	"github.com/rs/zerolog"
)

// Result is the outcome of a rate limit check.
type Result struct {
	// Success is false when the request must be rejected.
	Success bool

	// Limit is the window's request budget.
	Limit int

	// Remaining is how many more requests the window admits.
	Remaining int

	// ResetAt is when the window closes.
	ResetAt time.Time

	// Window is the window length.
	Window time.Duration
}

// RetryAfter returns the whole seconds until ResetAt, rounded up.
func (r Result) RetryAfter(now time.Time) int64 {
	return ceilSeconds(r.ResetAt.Sub(now))
}

// ResetUnix returns ResetAt as epoch seconds, rounded up.
func (r Result) ResetUnix() int64 {
	ms := r.ResetAt.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}

// Limiter enforces fixed-window limits.
//
// The read-modify-write of a counter is not atomic: two concurrent
// requests that read the same count both write count+1, so under
// contention a window can admit slightly more than its budget. Counter
// writes are deferred and the store is eventually consistent, which
// widens the same gap. This is accepted; the limiter protects upstreams,
// it is not an exact quota.
type Limiter struct {
	store     *store.Adapter
	scheduler deferred.Scheduler
	tiers     Tiers
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithTiers replaces DefaultTiers.
func WithTiers(tiers Tiers) Option {
	return func(l *Limiter) {
		l.tiers = tiers
	}
}

// WithLogger sets the limiter logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithClock sets the clock used for windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter whose counters live in adapter and whose
// writes are handed to scheduler.
func NewLimiter(adapter *store.Adapter, scheduler deferred.Scheduler, opts ...Option) *Limiter {
	if adapter == nil {
		panic("store adapter cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	l := &Limiter{
		store:     adapter,
		scheduler: scheduler,
		tiers:     DefaultTiers(),
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Tiers returns the configured limits.
func (l *Limiter) Tiers() Tiers {
	return l.tiers
}

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Check counts one request by identity against tier.
func (l *Limiter) Check(ctx context.Context, tier Tier, identity string) Result {
	return l.CheckLimit(ctx, tier.String(), l.tiers.Get(tier), identity)
}

// CheckLimit counts one request by identity against an ad-hoc limit. name
// takes the place of the tier in the counter key, so distinct names never
// share counters.
func (l *Limiter) CheckLimit(ctx context.Context, name string, limit Limit, identity string) Result {
	now := l.now()
	if limit.Window < time.Second {
		limit.Window = time.Second
	}

	if !l.store.Enabled() {
		decisionsTotal.WithLabelValues(name, "disabled").Inc()
		return Result{
			Success:   true,
			Limit:     limit.Requests,
			Remaining: limit.Requests,
			ResetAt:   now.Add(limit.Window),
			Window:    limit.Window,
		}
	}

	key := windowKey(name, identity, limit.Window, now)
	state, ok := l.load(ctx, key)

	if !ok || state.RolledOver(now) {
		state = newState(now, limit.Window)
		l.save(ctx, key, state, limit.Window)
		decisionsTotal.WithLabelValues(name, "allowed").Inc()
		return l.result(true, limit, limit.Requests-state.Count, state)
	}

	if state.Count >= limit.Requests {
		decisionsTotal.WithLabelValues(name, "rejected").Inc()
		l.logger.Debug().
			Str("tier", name).
			Str("identity", identity).
			Int("count", state.Count).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exceeded")
		return l.result(false, limit, 0, state)
	}

	state.Count++
	l.save(ctx, key, state, time.Duration(ceilSeconds(state.TimeUntilReset(now)))*time.Second)
	decisionsTotal.WithLabelValues(name, "allowed").Inc()
	return l.result(true, limit, limit.Requests-state.Count, state)
}

func (l *Limiter) result(success bool, limit Limit, remaining int, state State) Result {
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Success:   success,
		Limit:     limit.Requests,
		Remaining: remaining,
		ResetAt:   state.ResetAt,
		Window:    limit.Window,
	}
}

// load reads the counter at key. A miss, a store failure and an
// unreadable counter all read as absent.
func (l *Limiter) load(ctx context.Context, key string) (State, bool) {
	data, ok := l.store.Get(ctx, key)
	if !ok {
		return State{}, false
	}
	state, err := decodeState(data)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", l.store.Key(key)).Msg("Unreadable rate limit state, starting new window")
		return State{}, false
	}
	return state, true
}

// save writes the counter in the background.
func (l *Limiter) save(ctx context.Context, key string, state State, ttl time.Duration) {
	data, err := encodeState(state)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", l.store.Key(key)).Msg("Cannot encode rate limit state")
		return
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	l.scheduler.Schedule(ctx, "ratelimit.write", func(ctx context.Context) {
		l.store.Put(ctx, key, data, ttl)
	})
}

// windowKey returns <name>:<identity>:<windowIndex>, where windowIndex is
// floor(unix seconds / window seconds).
func windowKey(name, identity string, window time.Duration, now time.Time) string {
	seconds := int64(window / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%s:%s:%d", name, identity, now.Unix()/seconds)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
