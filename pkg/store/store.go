// Package store provides the key-value store layer shared by the edge cache
// and the rate limiter.
//
// Raw backends (RedisStore, MemoryStore) implement Store and report errors.
// Components never talk to a backend directly: they go through an Adapter,
// which namespaces keys, bounds every call with a timeout and turns every
// failure into "absent" or "no-op". A deployment without a store uses a
// Disabled binding, and every Adapter operation becomes a miss.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is a distributed, eventually consistent key-value store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key. A positive ttl makes the key expire.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every key starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Binding says whether a deployment has a store at all.
// The zero value is Disabled.
type Binding struct {
	store Store
}

// Configured binds a backing store. It panics on a nil store; use Disabled
// for deployments without one.
func Configured(s Store) Binding {
	if s == nil {
		panic("store: Configured called with nil store")
	}
	return Binding{store: s}
}

// Disabled is the binding for deployments without a store.
func Disabled() Binding {
	return Binding{}
}

// Store returns the bound store and whether one is configured.
func (b Binding) Store() (Store, bool) {
	return b.store, b.store != nil
}

// String returns "configured" or "disabled".
func (b Binding) String() string {
	if b.store == nil {
		return "disabled"
	}
	return "configured"
}

// ceilSeconds rounds a ttl up to whole seconds, which is the resolution
// every supported backend expires keys at.
func ceilSeconds(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	secs := (ttl + time.Second - 1) / time.Second
	return secs * time.Second
}
