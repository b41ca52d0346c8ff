package httpapi

import (
	"strconv"
	"time"

	"github.com/7and1/famouspeople.id-sub000/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the request correlation ID in both directions.
const HeaderRequestID = "X-Request-ID"

// DefaultSlowRequest is the latency above which requests log at Warn.
const DefaultSlowRequest = time.Second

const (
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// RequestID assigns every request an ID, reusing a sane inbound
// X-Request-ID. The ID is echoed in the response header, and a logger
// carrying it is attached to the request context.
func RequestID(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.New().String()
		}

		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)

		reqLogger := logger.With().Str("request_id", id).Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()
	}
}

// RequestIDFrom returns the ID assigned by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs each request once it completes. Requests slower than
// slow are logged at Warn. client_id is the rate-limit identity, read
// through trustedHeader.
func RequestLogger(slow time.Duration, trustedHeader string) gin.HandlerFunc {
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		logger := zerolog.Ctx(c.Request.Context())
		event := logger.Info()
		msg := "Request handled"
		if duration > slow {
			event = logger.Warn().Str("event", "slow_request").Dur("threshold", slow)
			msg = "Slow request"
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Int64("duration_ms", duration.Milliseconds()).
			Str("client_id", ratelimit.ClientIdentity(c.Request, trustedHeader)).
			Str("cache", c.Writer.Header().Get("X-Cache")).
			Msg(msg)
	}
}

// SecurityHeaders sets the response hardening headers for a JSON API.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		h.Set("Permissions-Policy", "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()")
		c.Next()
	}
}

// Metrics records request counts and latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
