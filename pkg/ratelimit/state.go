// Package ratelimit implements fixed-window request rate limiting over the
// shared key-value store.
//
// Each (tier, identity, window) triple owns one counter stored under
// rl:<tier>:<identity>:<windowIndex>. The limiter reads the counter, decides,
// and hands the updated counter to a deferred scheduler, so store latency
// never lands on the request. When the store is missing or failing the
// limiter admits every request.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the counter stored for one window.
type State struct {
	// Count is the number of requests admitted in this window.
	Count int `json:"count"`

	// WindowStart is when the first request of the window arrived.
	WindowStart time.Time `json:"window_start"`

	// ResetAt is when the window closes.
	ResetAt time.Time `json:"reset_at"`
}

// newState opens a window at now with one request counted.
func newState(now time.Time, window time.Duration) State {
	return State{
		Count:       1,
		WindowStart: now,
		ResetAt:     now.Add(window),
	}
}

// RolledOver reports whether the window has closed at now.
func (s State) RolledOver(now time.Time) bool {
	return now.After(s.ResetAt)
}

// TimeUntilReset returns the duration until the window closes.
// Returns 0 if it already has.
func (s State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func encodeState(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal rate limit state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal rate limit state: %w", err)
	}
	return s, nil
}
