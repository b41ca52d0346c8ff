package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_Freshness(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := newEntry("value", created, time.Minute, 30*time.Second, `"etag"`, nil)

	tests := []struct {
		name string
		now  time.Time
		want Freshness
	}{
		{name: "just created", now: created, want: Fresh},
		{name: "at stale boundary", now: created.Add(time.Minute), want: Fresh},
		{name: "inside swr window", now: created.Add(time.Minute + time.Second), want: Stale},
		{name: "at expiry boundary", now: created.Add(90 * time.Second), want: Stale},
		{name: "past expiry", now: created.Add(91 * time.Second), want: Expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.Freshness(tt.now); got != tt.want {
				t.Errorf("Freshness() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_FreshnessNil(t *testing.T) {
	var entry *CacheEntry[string]
	if got := entry.Freshness(time.Now()); got != Absent {
		t.Errorf("Freshness() = %v, want %v", got, Absent)
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := newEntry(42, created, time.Minute, time.Minute, "", nil)

	if got := entry.TTL(created); got != 2*time.Minute {
		t.Errorf("TTL() = %v, want %v", got, 2*time.Minute)
	}
	if got := entry.TTL(created.Add(time.Hour)); got != 0 {
		t.Errorf("TTL() after expiry = %v, want 0", got)
	}
}

func TestNewEntry_ZeroSWR(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := newEntry("v", created, time.Minute, 0, "", []string{"people"})

	if !entry.StaleAt.Equal(entry.ExpiresAt) {
		t.Errorf("StaleAt = %v, want equal to ExpiresAt %v", entry.StaleAt, entry.ExpiresAt)
	}
	if len(entry.Tags) != 1 || entry.Tags[0] != "people" {
		t.Errorf("Tags = %v, want [people]", entry.Tags)
	}
}

func TestFreshness_String(t *testing.T) {
	tests := map[Freshness]string{
		Absent:  "absent",
		Fresh:   "fresh",
		Stale:   "stale",
		Expired: "expired",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(f), got, want)
		}
	}
}
