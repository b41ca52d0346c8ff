package cache_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/7and1/famouspeople.id-sub000/internal/testutil"
	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/7and1/famouspeople.id-sub000/pkg/store"
)

var errUpstream = errors.New("upstream down")

type harness struct {
	manager   *cache.Manager
	scheduler *testutil.RecordingScheduler
	clock     *testutil.FakeClock
	memory    *store.MemoryStore
}

// newHarness wires a manager over an in-memory store sharing a fake clock.
func newHarness(t *testing.T, configure func(*cache.Config)) *harness {
	t.Helper()

	clock := testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	memory := store.NewMemoryStore(store.WithMemoryClock(clock.Now))
	scheduler := &testutil.RecordingScheduler{}

	cfg := cache.DefaultConfig()
	cfg.Now = clock.Now
	if configure != nil {
		configure(&cfg)
	}

	adapter := store.NewAdapter(store.Configured(memory), "api:")
	return &harness{
		manager:   cache.NewManager(adapter, scheduler, cfg),
		scheduler: scheduler,
		clock:     clock,
		memory:    memory,
	}
}

// counter returns a compute function reporting how often it ran.
func counter(values ...string) (cache.ComputeFunc[string], *int) {
	calls := 0
	return func(context.Context) (string, error) {
		v := values[len(values)-1]
		if calls < len(values) {
			v = values[calls]
		}
		calls++
		return v, nil
	}, &calls
}

func TestNewManager_Panic(t *testing.T) {
	tests := []struct {
		name      string
		adapter   *store.Adapter
		scheduler *testutil.RecordingScheduler
	}{
		{name: "nil adapter", adapter: nil, scheduler: &testutil.RecordingScheduler{}},
		{name: "nil scheduler", adapter: store.NewAdapter(store.Disabled(), "api:"), scheduler: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("NewManager should panic")
				}
			}()
			if tt.scheduler == nil {
				cache.NewManager(tt.adapter, nil, cache.DefaultConfig())
				return
			}
			cache.NewManager(tt.adapter, tt.scheduler, cache.DefaultConfig())
		})
	}
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	compute, calls := counter("einstein")

	res, err := cache.GetOrCompute[string](ctx, h.manager, "people:einstein", compute, cache.Options{})
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if res.Status != cache.StatusMiss {
		t.Errorf("Status = %s, want %s", res.Status, cache.StatusMiss)
	}
	if res.Value != "einstein" {
		t.Errorf("Value = %q, want einstein", res.Value)
	}
	wantETag, _ := cache.Fingerprint("einstein")
	if res.ETag != wantETag {
		t.Errorf("ETag = %s, want %s", res.ETag, wantETag)
	}
	if got := h.scheduler.Count("cache.write"); got != 1 {
		t.Fatalf("cache.write scheduled %d times, want 1", got)
	}

	// The write is deferred: nothing is stored until the task runs.
	if h.memory.Len() != 0 {
		t.Errorf("store has %d keys before deferred write, want 0", h.memory.Len())
	}
	h.scheduler.RunAll()

	res, err = cache.GetOrCompute[string](ctx, h.manager, "people:einstein", compute, cache.Options{})
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if res.Status != cache.StatusHit {
		t.Errorf("Status = %s, want %s", res.Status, cache.StatusHit)
	}
	if res.ETag != wantETag {
		t.Errorf("ETag on hit = %s, want %s", res.ETag, wantETag)
	}
	if *calls != 1 {
		t.Errorf("compute ran %d times, want 1", *calls)
	}
}

func TestGetOrCompute_StaleServesAndRevalidatesOnce(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	opts := cache.Options{TTL: time.Minute, SWR: 30 * time.Second}
	compute, calls := counter("v1", "v2")

	if _, err := cache.GetOrCompute[string](ctx, h.manager, "k", compute, opts); err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	h.scheduler.RunAll()

	h.clock.Advance(61 * time.Second)

	res, err := cache.GetOrCompute[string](ctx, h.manager, "k", compute, opts)
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if res.Status != cache.StatusStale {
		t.Errorf("Status = %s, want %s", res.Status, cache.StatusStale)
	}
	if res.Value != "v1" {
		t.Errorf("Value = %q, want stale v1", res.Value)
	}
	if got := h.scheduler.Count("cache.revalidate"); got != 1 {
		t.Errorf("cache.revalidate scheduled %d times, want 1", got)
	}
	if *calls != 1 {
		t.Errorf("compute ran %d times before revalidation, want 1", *calls)
	}

	h.scheduler.RunAll()
	if *calls != 2 {
		t.Errorf("compute ran %d times after revalidation, want 2", *calls)
	}

	res, _ = cache.GetOrCompute[string](ctx, h.manager, "k", compute, opts)
	if res.Status != cache.StatusHit || res.Value != "v2" {
		t.Errorf("after revalidation got %s/%q, want HIT/v2", res.Status, res.Value)
	}
}

func TestGetOrCompute_StaleRevalidationFailure(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	opts := cache.Options{TTL: time.Minute, SWR: time.Hour}

	ok := func(context.Context) (string, error) { return "good", nil }
	failing := func(context.Context) (string, error) { return "", errUpstream }

	cache.GetOrCompute[string](ctx, h.manager, "k", ok, opts)
	h.scheduler.RunAll()
	h.clock.Advance(2 * time.Minute)

	res, err := cache.GetOrCompute[string](ctx, h.manager, "k", failing, opts)
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v, want nil on stale serve", err)
	}
	if res.Value != "good" {
		t.Errorf("Value = %q, want good", res.Value)
	}
	h.scheduler.RunAll()

	// The failed revalidation leaves the stale copy in place and does not
	// suppress the next attempt.
	res, _ = cache.GetOrCompute[string](ctx, h.manager, "k", failing, opts)
	if res.Status != cache.StatusStale || res.Value != "good" {
		t.Errorf("got %s/%q, want STALE/good", res.Status, res.Value)
	}
	if got := h.scheduler.Count("cache.revalidate"); got != 2 {
		t.Errorf("cache.revalidate scheduled %d times, want 2", got)
	}
}

func TestGetOrCompute_RevalidationBackoff(t *testing.T) {
	h := newHarness(t, func(cfg *cache.Config) {
		cfg.Backoff = cache.BackoffConfig{
			Enabled:         true,
			InitialInterval: 10 * time.Second,
			MaxInterval:     time.Minute,
			Multiplier:      2,
		}
	})
	ctx := context.Background()
	opts := cache.Options{TTL: time.Minute, SWR: time.Hour}
	failing := func(context.Context) (string, error) { return "", errUpstream }

	cache.GetOrCompute[string](ctx, h.manager, "k", func(context.Context) (string, error) { return "good", nil }, opts)
	h.scheduler.RunAll()
	h.clock.Advance(2 * time.Minute)

	cache.GetOrCompute[string](ctx, h.manager, "k", failing, opts)
	h.scheduler.RunAll()

	res, _ := cache.GetOrCompute[string](ctx, h.manager, "k", failing, opts)
	if res.Status != cache.StatusStale {
		t.Errorf("Status = %s, want %s", res.Status, cache.StatusStale)
	}
	if got := h.scheduler.Count("cache.revalidate"); got != 1 {
		t.Errorf("cache.revalidate scheduled %d times during backoff, want 1", got)
	}

	h.clock.Advance(11 * time.Second)
	cache.GetOrCompute[string](ctx, h.manager, "k", failing, opts)
	if got := h.scheduler.Count("cache.revalidate"); got != 2 {
		t.Errorf("cache.revalidate scheduled %d times after backoff, want 2", got)
	}
}

func TestGet_ExpiredEntryDeleted(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	past := h.clock.Now().Add(-time.Minute)
	payload, err := cache.DefaultCodec().Encode(cache.CacheEntry[string]{
		Value:     "old",
		StaleAt:   past.Add(-time.Minute),
		ExpiresAt: past,
	}, cache.CompressionOff)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := h.memory.Put(ctx, "api:k", payload, time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entry, freshness := cache.Get[string](ctx, h.manager, "k")
	if entry != nil {
		t.Errorf("Get() entry = %+v, want nil", entry)
	}
	if freshness != cache.Expired {
		t.Errorf("Get() freshness = %v, want %v", freshness, cache.Expired)
	}
	if got := h.scheduler.Count("cache.delete"); got != 1 {
		t.Fatalf("cache.delete scheduled %d times, want 1", got)
	}

	h.scheduler.RunAll()
	if h.memory.Len() != 0 {
		t.Errorf("store has %d keys after delete, want 0", h.memory.Len())
	}
}

func TestGet_CorruptPayloadIsMiss(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.memory.Put(ctx, "api:k", []byte("{not json"), time.Hour)

	compute, calls := counter("fresh")
	res, err := cache.GetOrCompute[string](ctx, h.manager, "k", compute, cache.Options{})
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if res.Status != cache.StatusMiss || *calls != 1 {
		t.Errorf("got %s with %d computes, want MISS with 1", res.Status, *calls)
	}
}

func TestGetOrCompute_ComputeErrorPropagates(t *testing.T) {
	h := newHarness(t, nil)

	_, err := cache.GetOrCompute[string](context.Background(), h.manager, "k",
		func(context.Context) (string, error) { return "", errUpstream },
		cache.Options{},
	)
	if !errors.Is(err, errUpstream) {
		t.Errorf("GetOrCompute() error = %v, want %v", err, errUpstream)
	}
	if h.scheduler.Pending() != 0 {
		t.Errorf("%d tasks scheduled after compute error, want 0", h.scheduler.Pending())
	}
}

func TestGetOrCompute_StoreFailureFailsOpen(t *testing.T) {
	clock := testutil.NewFakeClock(time.Now())
	scheduler := &testutil.RecordingScheduler{}
	cfg := cache.DefaultConfig()
	cfg.Now = clock.Now
	adapter := store.NewAdapter(store.Configured(&testutil.FailingStore{}), "api:")
	manager := cache.NewManager(adapter, scheduler, cfg)
	ctx := context.Background()

	compute, calls := counter("value")
	for i := 0; i < 2; i++ {
		res, err := cache.GetOrCompute[string](ctx, manager, "k", compute, cache.Options{})
		if err != nil {
			t.Fatalf("GetOrCompute() error = %v", err)
		}
		if res.Status != cache.StatusMiss || res.Value != "value" {
			t.Errorf("got %s/%q, want MISS/value", res.Status, res.Value)
		}
		scheduler.RunAll()
	}
	if *calls != 2 {
		t.Errorf("compute ran %d times, want 2", *calls)
	}
}

func TestGetOrCompute_Disabled(t *testing.T) {
	scheduler := &testutil.RecordingScheduler{}
	manager := cache.NewManager(store.NewAdapter(store.Disabled(), "api:"), scheduler, cache.DefaultConfig())

	compute, _ := counter("value")
	res, err := cache.GetOrCompute[string](context.Background(), manager, "k", compute, cache.Options{})
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if res.Status != cache.StatusMiss {
		t.Errorf("Status = %s, want %s", res.Status, cache.StatusMiss)
	}
	if res.ETag == "" {
		t.Error("ETag should be computed even without a store")
	}
	if scheduler.Pending() != 0 {
		t.Errorf("%d tasks scheduled without a store, want 0", scheduler.Pending())
	}
	if manager.Enabled() {
		t.Error("Enabled() = true, want false")
	}
}

func TestSet_StorageLifetime(t *testing.T) {
	tests := []struct {
		name    string
		opts    cache.Options
		wantTTL time.Duration
	}{
		{name: "defaults", opts: cache.Options{}, wantTTL: cache.DefaultTTL + cache.DefaultSWR},
		{name: "explicit", opts: cache.Options{TTL: time.Minute, SWR: 10 * time.Second}, wantTTL: 70 * time.Second},
		{name: "swr disabled", opts: cache.Options{TTL: time.Minute, SWR: -1}, wantTTL: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recording := testutil.NewRecordingStore(store.NewMemoryStore())
			scheduler := &testutil.RecordingScheduler{}
			manager := cache.NewManager(store.NewAdapter(store.Configured(recording), "api:"), scheduler, cache.DefaultConfig())

			cache.Set(context.Background(), manager, "k", "v", tt.opts)
			scheduler.RunAll()

			puts := recording.Puts()
			if len(puts) != 1 {
				t.Fatalf("recorded %d puts, want 1", len(puts))
			}
			if puts[0].Key != "api:k" {
				t.Errorf("Put key = %q, want api:k", puts[0].Key)
			}
			if puts[0].TTL != tt.wantTTL {
				t.Errorf("Put TTL = %v, want %v", puts[0].TTL, tt.wantTTL)
			}
		})
	}
}

func TestSet_OversizedValueSkipped(t *testing.T) {
	h := newHarness(t, func(cfg *cache.Config) {
		cfg.Codec.MaxEntryBytes = 256
	})
	big := strings.Repeat("x", 1024)

	etag := cache.Set(context.Background(), h.manager, "k", big, cache.Options{})
	if etag == "" {
		t.Error("Set() should still return the ETag")
	}
	if h.scheduler.Pending() != 0 {
		t.Errorf("%d tasks scheduled for oversized value, want 0", h.scheduler.Pending())
	}
}

func TestSet_CompressedEntryReadable(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	value := strings.Repeat("celebrity ", 1000)

	cache.Set(ctx, h.manager, "big", value, cache.Options{Compression: cache.CompressionForce})
	h.scheduler.RunAll()

	entry, freshness := cache.Get[string](ctx, h.manager, "big")
	if freshness != cache.Fresh {
		t.Fatalf("freshness = %v, want %v", freshness, cache.Fresh)
	}
	if entry.Value != value {
		t.Error("compressed entry did not round-trip")
	}
}
