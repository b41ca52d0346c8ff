package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/7and1/famouspeople.id-sub000/internal/testutil"
	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/7and1/famouspeople.id-sub000/pkg/store"
)

func seed(t *testing.T, h *harness, keys ...string) {
	t.Helper()
	for _, k := range keys {
		cache.Set(context.Background(), h.manager, k, k, cache.Options{TTL: time.Hour})
	}
	h.scheduler.RunAll()
}

func TestPurge_Keys(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seed(t, h, "people:a", "people:b", "search:q=x")

	res := h.manager.Purge(ctx, []string{"people:a", "people:missing"}, "")
	if res.Skipped {
		t.Error("Skipped = true, want false")
	}
	if res.Purged != 2 {
		t.Errorf("Purged = %d, want 2", res.Purged)
	}
	if _, f := cache.Get[string](ctx, h.manager, "people:a"); f != cache.Absent {
		t.Errorf("people:a freshness = %v, want absent", f)
	}
	if _, f := cache.Get[string](ctx, h.manager, "people:b"); f != cache.Fresh {
		t.Errorf("people:b freshness = %v, want fresh", f)
	}
}

func TestPurge_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	seed(t, h, "people:a")

	first := h.manager.Purge(context.Background(), []string{"people:a"}, "")
	second := h.manager.Purge(context.Background(), []string{"people:a"}, "")

	if first != second {
		t.Errorf("repeat purge = %+v, want %+v", second, first)
	}
}

func TestPurge_Pattern(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	seed(t, h, "people:a", "people:b", "search:q=x")

	res := h.manager.Purge(ctx, nil, "people:*")
	if res.Purged != 2 {
		t.Errorf("Purged = %d, want 2", res.Purged)
	}
	if h.memory.Len() != 1 {
		t.Errorf("store has %d keys, want 1", h.memory.Len())
	}
	if _, f := cache.Get[string](ctx, h.manager, "search:q=x"); f != cache.Fresh {
		t.Errorf("search:q=x freshness = %v, want fresh", f)
	}

	again := h.manager.Purge(ctx, nil, "people:*")
	if again.Purged != 0 {
		t.Errorf("second pattern purge Purged = %d, want 0", again.Purged)
	}
}

func TestPurge_KeysAndPattern(t *testing.T) {
	h := newHarness(t, nil)
	seed(t, h, "people:a", "search:q=x", "search:q=y")

	res := h.manager.Purge(context.Background(), []string{"people:a"}, "search:*")
	if res.Purged != 3 {
		t.Errorf("Purged = %d, want 3", res.Purged)
	}
	if h.memory.Len() != 0 {
		t.Errorf("store has %d keys, want 0", h.memory.Len())
	}
}

func TestPurge_Disabled(t *testing.T) {
	manager := cache.NewManager(store.NewAdapter(store.Disabled(), "api:"), &testutil.RecordingScheduler{}, cache.DefaultConfig())

	res := manager.Purge(context.Background(), []string{"a"}, "b*")
	if !res.Skipped || res.Purged != 0 {
		t.Errorf("Purge() = %+v, want skipped with 0 purged", res)
	}
}

func TestPatternPrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "people:*", want: "people:"},
		{pattern: "*", want: ""},
		{pattern: "a*b*", want: "a"},
		{pattern: "exact", want: "exact"},
	}
	for _, tt := range tests {
		if got := cache.PatternPrefix(tt.pattern); got != tt.want {
			t.Errorf("PatternPrefix(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
