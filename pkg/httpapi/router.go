// Package httpapi exposes the profile API through gin, with edge caching,
// per-tier rate limiting and cache purge.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/7and1/famouspeople.id-sub000/internal/profiles"
	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/7and1/famouspeople.id-sub000/pkg/metrics"
	"github.com/7and1/famouspeople.id-sub000/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the router serves.
type Deps struct {
	Cache     *cache.Manager
	Limiter   *ratelimit.Limiter
	Directory profiles.Directory

	// Probes are pinged by /ready, keyed by name.
	Probes map[string]Pinger

	// ServiceToken guards purge and sync. Empty disables them.
	ServiceToken string

	// TrustedHeader names the edge-injected client IP header.
	TrustedHeader string

	// SlowRequest is the Warn threshold for request logging.
	SlowRequest time.Duration

	Logger zerolog.Logger
}

// NewRouter builds the HTTP handler.
//
// Rate limit tiers by route:
//
//	/api/v1/search                 search
//	/api/v1/compare                heavy
//	/api/v1/people/:slug/similar   heavy
//	/api/v1/sync/*                 internal
//	/api/v1/cache/purge            strict
//	other /api/v1 routes           default
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		RequestID(d.Logger),
		RequestLogger(d.SlowRequest, d.TrustedHeader),
		SecurityHeaders(),
		Metrics(),
	)

	h := &handlers{cache: d.Cache, directory: d.Directory}
	limit := func(tier ratelimit.Tier) gin.HandlerFunc {
		return RateLimit(d.Limiter, tier, d.TrustedHeader)
	}

	r.GET("/health", health(d.Cache))
	r.GET("/ready", ready(d.Probes))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/people/:slug", limit(ratelimit.TierDefault), h.profile())
	v1.GET("/people/:slug/similar", limit(ratelimit.TierHeavy), h.similar())
	v1.GET("/search", limit(ratelimit.TierSearch), h.search())
	v1.GET("/compare", limit(ratelimit.TierHeavy), h.compare())
	v1.POST("/sync/profiles", limit(ratelimit.TierInternal), ServiceAuth(d.ServiceToken), h.syncProfiles)
	v1.POST("/cache/purge", limit(ratelimit.TierStrict), ServiceAuth(d.ServiceToken), PurgeHandler(d.Cache))

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, NewError(http.StatusNotFound, CodeNotFound, "Route not found"))
	})

	return r
}

func health(m *cache.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := "disabled"
		if m.Enabled() {
			state = "enabled"
		}
		c.Header("Cache-Control", "public, max-age=10")
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"cache":     state,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func ready(probes map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := make(map[string]string, len(probes))
		status := http.StatusOK
		for name, p := range probes {
			if err := p.Ping(c.Request.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "unavailable"
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(status, gin.H{"status": state, "checks": checks})
	}
}
