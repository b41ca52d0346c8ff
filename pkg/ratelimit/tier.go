package ratelimit

import (
	"fmt"
	"time"
)

// Tier names a rate-limit class. The set is closed; see Tiers.
type Tier int

const (
	TierDefault Tier = iota
	TierSearch
	TierHeavy
	TierInternal
	TierStrict

	tierCount
)

var tierNames = [tierCount]string{
	TierDefault:  "default",
	TierSearch:   "search",
	TierHeavy:    "heavy",
	TierInternal: "internal",
	TierStrict:   "strict",
}

// String returns the tier name used in keys, metrics and configuration.
func (t Tier) String() string {
	if t < 0 || t >= tierCount {
		return tierNames[TierDefault]
	}
	return tierNames[t]
}

// AllTiers returns every tier in declaration order.
func AllTiers() []Tier {
	tiers := make([]Tier, 0, tierCount)
	for t := TierDefault; t < tierCount; t++ {
		tiers = append(tiers, t)
	}
	return tiers
}

// ParseTier returns the tier named name.
func ParseTier(name string) (Tier, bool) {
	for t, n := range tierNames {
		if n == name {
			return Tier(t), true
		}
	}
	return TierDefault, false
}

// TierFromName is ParseTier with unknown names remapped to TierDefault.
func TierFromName(name string) Tier {
	t, _ := ParseTier(name)
	return t
}

// Limit is a request budget per fixed window.
type Limit struct {
	Requests int           `json:"requests" yaml:"requests"`
	Window   time.Duration `json:"window" yaml:"window"`
}

// Validate reports whether the limit can be enforced.
func (l Limit) Validate() error {
	if l.Requests <= 0 {
		return fmt.Errorf("requests must be positive, got %d", l.Requests)
	}
	if l.Window < time.Second {
		return fmt.Errorf("window must be at least 1s, got %v", l.Window)
	}
	return nil
}

// Tiers maps every Tier to its Limit.
type Tiers [tierCount]Limit

// DefaultTiers returns the stock limits.
func DefaultTiers() Tiers {
	return Tiers{
		TierDefault:  {Requests: 60, Window: time.Minute},
		TierSearch:   {Requests: 30, Window: time.Minute},
		TierHeavy:    {Requests: 10, Window: time.Minute},
		TierInternal: {Requests: 1000, Window: time.Minute},
		TierStrict:   {Requests: 5, Window: time.Minute},
	}
}

// Get returns the limit for t. Out-of-range tiers get the default limit.
func (ts Tiers) Get(t Tier) Limit {
	if t < 0 || t >= tierCount {
		t = TierDefault
	}
	return ts[t]
}

// With returns a copy of ts with t set to limit.
func (ts Tiers) With(t Tier, limit Limit) Tiers {
	if t >= 0 && t < tierCount {
		ts[t] = limit
	}
	return ts
}
