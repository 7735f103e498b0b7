package handlers

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RateLimiter decides whether a client may issue another mutating request.
type RateLimiter interface {
	Allow(key string) bool
}

// admit consults limiter for the caller of r and answers 429 when the
// request is refused. A nil limiter admits everything.
func admit(ctx context.Context, w http.ResponseWriter, r *http.Request, limiter RateLimiter, scope string) bool {
	if limiter == nil || limiter.Allow(scope+":"+clientIP(r)) {
		return true
	}
	respondJSON(ctx, w, http.StatusTooManyRequests, errorResponse{Error: "too many requests", Code: "rate_limited"})
	return false
}

// clientIP prefers the first X-Forwarded-For hop when it parses as an
// address and falls back to the connection peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}
