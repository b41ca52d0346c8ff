package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every store call made through an Adapter.
const DefaultTimeout = 2 * time.Second

// Adapter is the best-effort view of a Binding used by the cache and the
// rate limiter. It prefixes logical keys with a namespace, applies a timeout
// to every call, and never returns a store error: failures are logged,
// counted and reported as a miss or a no-op.
type Adapter struct {
	binding Binding
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(logger zerolog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an adapter over binding whose keys live under prefix
// (for example "api:" or "rl:").
func NewAdapter(binding Binding, prefix string, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		binding: binding,
		prefix:  prefix,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether a store is configured.
func (a *Adapter) Enabled() bool {
	_, ok := a.binding.Store()
	return ok
}

// Prefix returns the key namespace.
func (a *Adapter) Prefix() string {
	return a.prefix
}

// Key returns the physical key for a logical key.
func (a *Adapter) Key(logical string) string {
	return a.prefix + logical
}

// Get returns the value for a logical key. The second result is false on a
// miss, on any store error and when no store is configured.
func (a *Adapter) Get(ctx context.Context, key string) ([]byte, bool) {
	s, ok := a.binding.Store()
	if !ok {
		return nil, false
	}

	var data []byte
	err := a.call(ctx, opGet, key, func(ctx context.Context) error {
		var err error
		data, err = s.Get(ctx, a.Key(key))
		return err
	})
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores value under a logical key and reports whether the write
// succeeded.
func (a *Adapter) Put(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	s, ok := a.binding.Store()
	if !ok {
		return false
	}
	err := a.call(ctx, opPut, key, func(ctx context.Context) error {
		return s.Put(ctx, a.Key(key), value, ttl)
	})
	return err == nil
}

// Delete removes a logical key and reports whether the delete succeeded.
func (a *Adapter) Delete(ctx context.Context, key string) bool {
	s, ok := a.binding.Store()
	if !ok {
		return false
	}
	err := a.call(ctx, opDelete, key, func(ctx context.Context) error {
		return s.Delete(ctx, a.Key(key))
	})
	return err == nil
}

// List returns the logical keys (namespace stripped) starting with prefix.
func (a *Adapter) List(ctx context.Context, prefix string) []string {
	s, ok := a.binding.Store()
	if !ok {
		return nil
	}

	var physical []string
	err := a.call(ctx, opList, prefix, func(ctx context.Context) error {
		var err error
		physical, err = s.List(ctx, a.Key(prefix))
		return err
	})
	if err != nil {
		return nil
	}

	keys := make([]string, 0, len(physical))
	for _, k := range physical {
		keys = append(keys, strings.TrimPrefix(k, a.prefix))
	}
	return keys
}

// Ping checks the store. Unlike the other operations it returns the error,
// because readiness probes need it. A disabled binding is always healthy.
func (a *Adapter) Ping(ctx context.Context) error {
	s, ok := a.binding.Store()
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return s.Ping(ctx)
}

// call runs fn with the adapter timeout and records the outcome. A miss is
// returned as ErrNotFound but is not counted as an error.
func (a *Adapter) call(ctx context.Context, op, key string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	storeOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	storeOperations.WithLabelValues(op).Inc()

	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}

	storeErrors.WithLabelValues(op).Inc()
	a.logger.Warn().
		Err(err).
		Str("operation", op).
		Str("key", a.Key(key)).
		Msg("Store call failed, treating as miss")
	return err
}
