package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/store"
)

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("store unavailable")

// FailingStore is a store.Store whose every call fails.
type FailingStore struct {
	Err error
}

// Get implements store.Store.
func (s *FailingStore) Get(context.Context, string) ([]byte, error) { return nil, s.err() }

// Put implements store.Store.
func (s *FailingStore) Put(context.Context, string, []byte, time.Duration) error { return s.err() }

// Delete implements store.Store.
func (s *FailingStore) Delete(context.Context, string) error { return s.err() }

// List implements store.Store.
func (s *FailingStore) List(context.Context, string) ([]string, error) { return nil, s.err() }

// Ping implements store.Store.
func (s *FailingStore) Ping(context.Context) error { return s.err() }

func (s *FailingStore) err() error {
	if s.Err != nil {
		return s.Err
	}
	return ErrStoreDown
}

// RecordingStore wraps a store.Store and records the calls made to it.
type RecordingStore struct {
	store.Store

	mu      sync.Mutex
	puts    []PutCall
	deletes []string
}

// PutCall is one recorded Put.
type PutCall struct {
	Key string
	TTL time.Duration
}

// NewRecordingStore wraps inner.
func NewRecordingStore(inner store.Store) *RecordingStore {
	return &RecordingStore{Store: inner}
}

// Put implements store.Store.
func (s *RecordingStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.puts = append(s.puts, PutCall{Key: key, TTL: ttl})
	s.mu.Unlock()
	return s.Store.Put(ctx, key, value, ttl)
}

// Delete implements store.Store.
func (s *RecordingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, key)
	s.mu.Unlock()
	return s.Store.Delete(ctx, key)
}

// Puts returns the recorded Put calls.
func (s *RecordingStore) Puts() []PutCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PutCall(nil), s.puts...)
}

// Deletes returns the recorded deleted keys.
func (s *RecordingStore) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}
