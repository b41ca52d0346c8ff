package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit counts each request against tier, keyed by client identity.
// Every response carries the X-RateLimit-* headers; rejected requests get
// 429 with Retry-After.
func RateLimit(limiter *ratelimit.Limiter, tier ratelimit.Tier, trustedHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ratelimit.ClientIdentity(c.Request, trustedHeader)
		res := limiter.Check(c.Request.Context(), tier, identity)

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetUnix(), 10))
		c.Header("X-RateLimit-Window", fmt.Sprintf("%ds", int64(res.Window/time.Second)))

		if !res.Success {
			retry := res.RetryAfter(limiter.Now())
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			abortWithError(c, &Error{
				Status:     http.StatusTooManyRequests,
				Code:       CodeRateLimited,
				Message:    "Too many requests, please try again later",
				RetryAfter: retry,
			})
			return
		}
		c.Next()
	}
}
