package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with TTL expiry. It backs local
// development and tests; it is not shared between processes.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(item) {
		delete(s.items, key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if ttl > 0 {
		item.expiresAt = s.now().Add(ceilSeconds(ttl))
	}

	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// List implements Store. Keys are returned sorted.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0)
	for key, item := range s.items {
		if s.expired(item) {
			delete(s.items, key)
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of live keys.
func (s *MemoryStore) Len() int {
	keys, _ := s.List(context.Background(), "")
	return len(keys)
}

func (s *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && s.now().After(item.expiresAt)
}
