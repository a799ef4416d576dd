// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// APIError represents a JSON error response for the API.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

// APIErrorBody is the payload of an APIError.
type APIErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(APIError{Error: APIErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// newLimiterCache creates a new limiter cache.
func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
// Returns true if the cache was cleared.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

const (
	apiSweepInterval  = 5 * time.Minute
	maxTrackedCallers = 10000
)

// APIRateLimiter limits API requests per caller. Authenticated callers are
// keyed by user ID, anonymous ones by client IP. A background sweep drops
// every limiter once more than maxKeys callers are tracked.
type APIRateLimiter struct {
	cache   *limiterCache[string]
	maxKeys int

	done chan struct{}
	once sync.Once
}

// NewAPIRateLimiter creates a limiter allowing rps requests per second with
// the given burst and starts its sweep. Call Stop to end it.
func NewAPIRateLimiter(rps float64, burst int) *APIRateLimiter {
	rl := &APIRateLimiter{
		cache:   newLimiterCache[string](rps, burst),
		maxKeys: maxTrackedCallers,
		done:    make(chan struct{}),
	}
	go rl.run()
	return rl
}

// Middleware returns the rate limiting middleware. It must run after
// Authenticate to key by user.
func (rl *APIRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)
			if id := GetUserID(r); id != "" {
				key = "user:" + id
			}
			if !rl.cache.get(key).Allow() {
				slog.Warn("api rate limit exceeded", "key", key, "path", r.URL.Path)
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *APIRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *APIRateLimiter) run() {
	ticker := time.NewTicker(apiSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep reports whether the limiters were cleared.
func (rl *APIRateLimiter) sweep() bool {
	if rl.cache.clearIfExceeds(rl.maxKeys) {
		slog.Info("api rate limiters cleared", "limit", rl.maxKeys)
		return true
	}
	return false
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Real-IP header (set by reverse proxies)
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	// X-Forwarded-For can contain multiple IPs; take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
