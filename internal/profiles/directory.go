// Package profiles is the celebrity profile directory served behind the
// edge cache and rate limiter.
package profiles

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound indicates no profile has the requested slug.
	ErrNotFound = errors.New("person not found")

	// ErrInvalidQuery indicates a malformed search, similar or compare request.
	ErrInvalidQuery = errors.New("invalid query")
)

// Limits on result sizes.
const (
	DefaultSearchLimit  = 20
	MaxSearchLimit      = 100
	DefaultSimilarLimit = 10
	MaxSimilarLimit     = 50
	MinCompare          = 2
	MaxCompare          = 5
)

//go:embed seed.json
var seedJSON []byte

// Profile is a public celebrity profile.
type Profile struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Occupation string `json:"occupation"`
	Country    string `json:"country"`
	BirthDate  string `json:"birth_date"`
	NetWorth   int64  `json:"net_worth"`
	Popularity int    `json:"popularity"`
}

// Query filters a search.
type Query struct {
	Text       string
	Occupation string
	Country    string
	Limit      int
}

// Directory looks up profiles.
type Directory interface {
	Get(ctx context.Context, slug string) (Profile, error)
	Search(ctx context.Context, q Query) ([]Profile, error)
	Similar(ctx context.Context, slug string, limit int) ([]Profile, error)
	Compare(ctx context.Context, slugs []string) ([]Profile, error)
	Upsert(ctx context.Context, profiles []Profile) (int, error)
}

// StaticDirectory is an in-memory Directory ordered by popularity.
type StaticDirectory struct {
	mu     sync.RWMutex
	bySlug map[string]Profile
	ranked []Profile
}

// NewStaticDirectory builds a directory from profiles. Later duplicates of a
// slug replace earlier ones.
func NewStaticDirectory(profiles []Profile) (*StaticDirectory, error) {
	d := &StaticDirectory{bySlug: make(map[string]Profile, len(profiles))}
	if _, err := d.Upsert(context.Background(), profiles); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadEmbedded returns the directory built from the bundled seed data.
func LoadEmbedded() (*StaticDirectory, error) {
	return parse(seedJSON, "embedded seed")
}

// LoadFile reads a JSON array of profiles from path.
func LoadFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return parse(data, path)
}

func parse(data []byte, source string) (*StaticDirectory, error) {
	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles from %s: %w", source, err)
	}
	return NewStaticDirectory(profiles)
}

// Len returns the number of profiles.
func (d *StaticDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ranked)
}

// Get implements Directory.
func (d *StaticDirectory) Get(_ context.Context, slug string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.bySlug[slug]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return p, nil
}

// Search implements Directory. Text matches name or occupation,
// case-insensitively; Occupation and Country match exactly.
func (d *StaticDirectory) Search(_ context.Context, q Query) ([]Profile, error) {
	limit, err := clampLimit(q.Limit, DefaultSearchLimit, MaxSearchLimit)
	if err != nil {
		return nil, err
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Profile, 0, limit)
	for _, p := range d.ranked {
		if len(out) == limit {
			break
		}
		if q.Occupation != "" && !strings.EqualFold(p.Occupation, q.Occupation) {
			continue
		}
		if q.Country != "" && !strings.EqualFold(p.Country, q.Country) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Occupation), text) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Similar implements Directory: profiles sharing the occupation first, then
// profiles sharing the country, each group by popularity.
func (d *StaticDirectory) Similar(_ context.Context, slug string, limit int) ([]Profile, error) {
	limit, err := clampLimit(limit, DefaultSimilarLimit, MaxSimilarLimit)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	self, ok := d.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}

	var sameJob, sameCountry []Profile
	for _, p := range d.ranked {
		switch {
		case p.Slug == self.Slug:
		case strings.EqualFold(p.Occupation, self.Occupation):
			sameJob = append(sameJob, p)
		case strings.EqualFold(p.Country, self.Country):
			sameCountry = append(sameCountry, p)
		}
	}

	out := append(sameJob, sameCountry...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Compare implements Directory. Profiles come back in request order.
func (d *StaticDirectory) Compare(_ context.Context, slugs []string) ([]Profile, error) {
	if len(slugs) < MinCompare || len(slugs) > MaxCompare {
		return nil, fmt.Errorf("%w: compare takes %d to %d people, got %d", ErrInvalidQuery, MinCompare, MaxCompare, len(slugs))
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Profile, 0, len(slugs))
	for _, slug := range slugs {
		p, ok := d.bySlug[slug]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		out = append(out, p)
	}
	return out, nil
}

// Upsert implements Directory.
func (d *StaticDirectory) Upsert(_ context.Context, profiles []Profile) (int, error) {
	for i, p := range profiles {
		if strings.TrimSpace(p.Slug) == "" || strings.TrimSpace(p.Name) == "" {
			return 0, fmt.Errorf("%w: profile %d needs slug and name", ErrInvalidQuery, i)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range profiles {
		d.bySlug[p.Slug] = p
	}
	d.ranked = d.ranked[:0]
	for _, p := range d.bySlug {
		d.ranked = append(d.ranked, p)
	}
	sort.Slice(d.ranked, func(i, j int) bool {
		if d.ranked[i].Popularity != d.ranked[j].Popularity {
			return d.ranked[i].Popularity > d.ranked[j].Popularity
		}
		return d.ranked[i].Slug < d.ranked[j].Slug
	})
	return len(profiles), nil
}

func clampLimit(limit, def, max int) (int, error) {
	switch {
	case limit == 0:
		return def, nil
	case limit < 0 || limit > max:
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, max)
	default:
		return limit, nil
	}
}
