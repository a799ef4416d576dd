// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/blockpress/internal/model"
)

func TestWriteAPIError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAPIError(rr, http.StatusBadRequest, "validation_error", "Validation failed", map[string]string{
		"title": "Title is required",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body APIError
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error.Code != "validation_error" || body.Error.Message != "Validation failed" {
		t.Errorf("error = %+v", body.Error)
	}
	if body.Error.Details["title"] != "Title is required" {
		t.Errorf("details = %v", body.Error.Details)
	}
}

func TestWriteAPIError_OmitsEmptyDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteAPIError(rr, http.StatusNotFound, "not_found", "Post not found", nil)

	var raw map[string]map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if _, ok := raw["error"]["details"]; ok {
		t.Error("details should be omitted when empty")
	}
}

func TestAPIRateLimiter(t *testing.T) {
	rl := NewAPIRateLimiter(0.001, 1)
	t.Cleanup(rl.Stop)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string, user *model.AuthUser) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
		req.RemoteAddr = remote
		if user != nil {
			req = req.WithContext(WithUser(req.Context(), user))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do("10.0.0.1:1000", nil); code != http.StatusOK {
		t.Fatalf("first request = %d", code)
	}
	if code := do("10.0.0.1:1001", nil); code != http.StatusTooManyRequests {
		t.Errorf("second request from same IP = %d, want 429", code)
	}
	if code := do("10.0.0.2:1000", nil); code != http.StatusOK {
		t.Errorf("other IP = %d, want 200", code)
	}

	// Authenticated callers get their own bucket regardless of address.
	user := &model.AuthUser{ID: "u1", Role: model.RoleUser}
	if code := do("10.0.0.1:1002", user); code != http.StatusOK {
		t.Errorf("authenticated first = %d, want 200", code)
	}
	if code := do("10.0.0.3:1000", user); code != http.StatusTooManyRequests {
		t.Errorf("authenticated second = %d, want 429", code)
	}
}

func TestAPIRateLimiterSweep(t *testing.T) {
	rl := NewAPIRateLimiter(1, 1)
	t.Cleanup(rl.Stop)
	rl.maxKeys = 100

	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := range 150 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.1.%d.%d", i/256, i%256))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	rl.cache.mu.RLock()
	tracked := len(rl.cache.limiters)
	rl.cache.mu.RUnlock()
	if tracked != 150 {
		t.Fatalf("tracked = %d, want 150", tracked)
	}

	if !rl.sweep() {
		t.Fatal("sweep should clear limiters above the cap")
	}
	if n := len(rl.cache.limiters); n != 0 {
		t.Errorf("limiters = %d after sweep", n)
	}
	if rl.sweep() {
		t.Error("sweep should not clear below the cap")
	}

	rl.Stop()
	rl.Stop()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xForwarded string
		xRealIP    string
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", "", "", "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", "", "", "192.168.1.1"},
		{"forwarded single", "127.0.0.1:8080", "10.0.0.1", "", "10.0.0.1"},
		{"forwarded multiple", "127.0.0.1:8080", "10.0.0.1, 10.0.0.2", "", "10.0.0.1"},
		{"forwarded with spaces", "127.0.0.1:8080", "  10.0.0.1  ", "", "10.0.0.1"},
		{"real ip wins", "127.0.0.1:8080", "10.0.0.1", "10.0.0.5", "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwarded)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
