package ratelimit

import (
	"net/http"
	"strings"
)

// DefaultTrustedHeader is set by the edge network to the connecting client IP.
const DefaultTrustedHeader = "CF-Connecting-IP"

// UnknownIdentity is the shared bucket for clients without any address header.
const UnknownIdentity = "unknown"

// ClientIdentity returns the rate-limit identity for r.
//
// Order: trustedHeader, the first hop of X-Forwarded-For, X-Real-IP.
// Requests carrying none of them share the UnknownIdentity bucket.
func ClientIdentity(r *http.Request, trustedHeader string) string {
	if trustedHeader == "" {
		trustedHeader = DefaultTrustedHeader
	}

	if ip := strings.TrimSpace(r.Header.Get(trustedHeader)); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	return UnknownIdentity
}
