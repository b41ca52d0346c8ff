package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/cache"
	"github.com/gin-gonic/gin"
)

// Loader reads request parameters and returns the cache key plus the
// compute function for it. It runs on the request path; compute may run
// after the response is sent, so it must not capture c.
type Loader[T any] func(c *gin.Context) (key string, compute cache.ComputeFunc[T], err error)

// Cached serves the loader's value through the cache manager.
//
// Responses carry ETag, X-Cache (HIT for fresh and stale serves, MISS
// otherwise) and Cache-Control: public, max-age=<ttl>. A matching
// If-None-Match yields 304 with an empty body.
func Cached[T any](m *cache.Manager, opts cache.Options, load Loader[T]) gin.HandlerFunc {
	maxAge := int64(m.FreshFor(opts) / time.Second)

	return func(c *gin.Context) {
		key, compute, err := load(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		res, err := cache.GetOrCompute(c.Request.Context(), m, key, compute, opts)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Header("X-Cache", res.Status.CacheHeader())
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
		if res.ETag != "" {
			c.Header("ETag", res.ETag)
			if cache.NotModified(c.Request, res.ETag) {
				c.AbortWithStatus(http.StatusNotModified)
				return
			}
		}
		c.JSON(http.StatusOK, res.Value)
	}
}
