package cache

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// purgeConcurrency bounds parallel deletes during a purge.
const purgeConcurrency = 16

// PurgeResult reports a purge.
type PurgeResult struct {
	// Purged counts explicit keys requested plus keys matched by the pattern.
	Purged int `json:"purged"`

	// Skipped is true when no store is configured, so nothing could be purged.
	Skipped bool `json:"skipped"`
}

// Purge deletes the given logical keys and every key matching pattern.
//
// Explicit keys are counted whether or not they existed. A pattern is cut
// at its first "*" and used as a key prefix; each listed key is counted.
func (m *Manager) Purge(ctx context.Context, keys []string, pattern string) PurgeResult {
	if !m.Enabled() {
		return PurgeResult{Skipped: true}
	}

	purged := 0
	if len(keys) > 0 {
		m.deleteAll(ctx, keys)
		purged += len(keys)
	}

	if pattern != "" {
		prefix := PatternPrefix(pattern)
		matched := m.store.List(ctx, prefix)
		m.deleteAll(ctx, matched)
		purged += len(matched)
	}

	PurgedKeys.Add(float64(purged))
	m.logger.Info().
		Int("keys", len(keys)).
		Str("pattern", pattern).
		Int("purged", purged).
		Msg("Cache purged")

	return PurgeResult{Purged: purged}
}

// PatternPrefix reduces a wildcard pattern to its fixed prefix.
//
//	PatternPrefix("people:*") == "people:"
func PatternPrefix(pattern string) string {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

func (m *Manager) deleteAll(ctx context.Context, keys []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			m.store.Delete(gctx, key)
			return nil
		})
	}
	_ = g.Wait()
}
