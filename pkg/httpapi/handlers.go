package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/7and1/famouspeople.id-sub000/internal/profiles"
	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/gin-gonic/gin"
)

// Cache options per route.
var (
	profileCache = cache.Options{TTL: 10 * time.Minute, Tags: []string{"people"}}
	searchCache  = cache.Options{TTL: 2 * time.Minute, SWR: time.Minute, Tags: []string{"search"}}
	similarCache = cache.Options{TTL: 30 * time.Minute, Tags: []string{"similar"}}
	compareCache = cache.Options{TTL: 10 * time.Minute, Tags: []string{"compare"}}
)

// Key prefixes of derived listings, purged whenever profiles change.
var derivedPatterns = []string{"search:*", "similar:*", "compare:*"}

// SearchResponse is the body of GET /api/v1/search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Count   int                `json:"count"`
	Results []profiles.Profile `json:"results"`
}

// SyncResponse is the body of POST /api/v1/sync/profiles.
type SyncResponse struct {
	Upserted int  `json:"upserted"`
	Purged   int  `json:"purged"`
	Skipped  bool `json:"skipped"`
}

type handlers struct {
	cache     *cache.Manager
	directory profiles.Directory
}

func (h *handlers) profile() gin.HandlerFunc {
	return Cached[profiles.Profile](h.cache, profileCache, func(c *gin.Context) (string, cache.ComputeFunc[profiles.Profile], error) {
		slug := c.Param("slug")
		return cache.Key("people", slug), func(ctx context.Context) (profiles.Profile, error) {
			return h.directory.Get(ctx, slug)
		}, nil
	})
}

func (h *handlers) similar() gin.HandlerFunc {
	return Cached[[]profiles.Profile](h.cache, similarCache, func(c *gin.Context) (string, cache.ComputeFunc[[]profiles.Profile], error) {
		slug := c.Param("slug")
		limit, err := queryInt(c, "limit")
		if err != nil {
			return "", nil, err
		}
		key := cache.Key("similar", slug, "limit="+strconv.Itoa(limit))
		return key, func(ctx context.Context) ([]profiles.Profile, error) {
			return h.directory.Similar(ctx, slug, limit)
		}, nil
	})
}

func (h *handlers) search() gin.HandlerFunc {
	return Cached[SearchResponse](h.cache, searchCache, func(c *gin.Context) (string, cache.ComputeFunc[SearchResponse], error) {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return "", nil, err
		}
		q := profiles.Query{
			Text:       strings.TrimSpace(c.Query("q")),
			Occupation: strings.TrimSpace(c.Query("occupation")),
			Country:    strings.TrimSpace(c.Query("country")),
			Limit:      limit,
		}
		if q.Text == "" && q.Occupation == "" && q.Country == "" {
			return "", nil, NewError(http.StatusBadRequest, CodeInvalidQuery, "q, occupation or country is required")
		}

		// Only recognised parameters take part in the key.
		normalized := url.Values{}
		for name, v := range map[string]string{"q": strings.ToLower(q.Text), "occupation": strings.ToLower(q.Occupation), "country": strings.ToLower(q.Country)} {
			if v != "" {
				normalized.Set(name, v)
			}
		}
		if limit > 0 {
			normalized.Set("limit", strconv.Itoa(limit))
		}

		return cache.RequestKey("search", normalized), func(ctx context.Context) (SearchResponse, error) {
			results, err := h.directory.Search(ctx, q)
			if err != nil {
				return SearchResponse{}, err
			}
			return SearchResponse{Query: q.Text, Count: len(results), Results: results}, nil
		}, nil
	})
}

func (h *handlers) compare() gin.HandlerFunc {
	return Cached[[]profiles.Profile](h.cache, compareCache, func(c *gin.Context) (string, cache.ComputeFunc[[]profiles.Profile], error) {
		var slugs []string
		for _, raw := range c.QueryArray("ids") {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					slugs = append(slugs, s)
				}
			}
		}
		if len(slugs) < profiles.MinCompare || len(slugs) > profiles.MaxCompare {
			return "", nil, NewError(http.StatusBadRequest, CodeInvalidQuery, "ids must list 2 to 5 people")
		}
		return cache.Key("compare", strings.Join(slugs, ",")), func(ctx context.Context) ([]profiles.Profile, error) {
			return h.directory.Compare(ctx, slugs)
		}, nil
	})
}

// syncProfiles upserts profiles and purges every cached view of them.
func (h *handlers) syncProfiles(c *gin.Context) {
	var batch []profiles.Profile
	if err := c.ShouldBindJSON(&batch); err != nil {
		abortWithError(c, NewError(http.StatusBadRequest, CodeInvalidBody, err.Error()))
		return
	}

	ctx := c.Request.Context()
	n, err := h.directory.Upsert(ctx, batch)
	if err != nil {
		abortWithError(c, err)
		return
	}

	keys := make([]string, 0, len(batch))
	for _, p := range batch {
		keys = append(keys, cache.Key("people", p.Slug))
	}

	res := h.cache.Purge(ctx, keys, "")
	purged := res.Purged
	for _, pattern := range derivedPatterns {
		purged += h.cache.Purge(ctx, nil, pattern).Purged
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, SyncResponse{Upserted: n, Purged: purged, Skipped: res.Skipped})
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, NewError(http.StatusBadRequest, CodeInvalidQuery, name+" must be a positive integer")
	}
	return n, nil
}
