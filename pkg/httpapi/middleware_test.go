package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(logger zerolog.Logger, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(logger), RequestLogger(time.Second, ""), SecurityHeaders())
	r.GET("/x", handlers...)
	return r
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		reuse   bool
	}{
		{name: "generated", inbound: "", reuse: false},
		{name: "reused", inbound: "abc-123", reuse: true},
		{name: "too long", inbound: strings.Repeat("a", maxRequestIDLen+1), reuse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			r := newEngine(zerolog.Nop(), func(c *gin.Context) {
				seen = RequestIDFrom(c)
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.inbound != "" {
				req.Header.Set(HeaderRequestID, tt.inbound)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("header = %q, context = %q", got, seen)
			}
			if (got == tt.inbound) != tt.reuse {
				t.Errorf("request id = %q, reuse inbound %v", got, tt.reuse)
			}
		})
	}
}

func TestRequestLogger_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine(zerolog.New(&buf), func(c *gin.Context) {
		c.Header("X-Cache", "HIT")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set("CF-Connecting-IP", "192.0.2.10")
	r.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"message":"Request handled"`, `"status":200`, `"cache":"HIT"`, `"client_id":"192.0.2.10"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %s missing %s", line, want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := newEngine(zerolog.Nop(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy", "Permissions-Policy"} {
		if w.Header().Get(name) == "" {
			t.Errorf("%s not set", name)
		}
	}
}

func TestAbortWithError_HidesInternalErrors(t *testing.T) {
	r := newEngine(zerolog.Nop(), func(c *gin.Context) {
		abortWithError(c, errSecret)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), errSecret.Error()) {
		t.Errorf("body %s leaks the error", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), CodeInternalError) {
		t.Errorf("body %s missing %s", w.Body.String(), CodeInternalError)
	}
}

type secretError struct{}

func (secretError) Error() string { return "dsn=postgres://user:pw@db" }

var errSecret error = secretError{}
