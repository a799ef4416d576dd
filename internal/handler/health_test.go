// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/blockpress/internal/cache"
	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/testutil"
	"github.com/olegiv/blockpress/internal/version"
)

func newTestHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()
	db := testutil.TestDB(t)
	// A missing uploads directory keeps the disk check independent of the host.
	h := NewHealthHandler(filepath.Join(t.TempDir(), "uploads"), version.Info{Version: "v1.2.3", GitCommit: "abc1234"})
	h.AddCheck("database", db.PingContext)
	return h
}

func serveHealth(h http.HandlerFunc, user *model.AuthUser, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestHealthHandler_Health_Public(t *testing.T) {
	h := newTestHealthHandler(t)

	for _, user := range []*model.AuthUser{nil, testutil.Author("author1")} {
		w := serveHealth(h.Health, user, "/health")

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q; want application/json", ct)
		}

		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		if resp["status"] != StatusHealthy {
			t.Errorf("status = %v; want healthy", resp["status"])
		}
		if _, ok := resp["checks"]; ok {
			t.Error("non-admin response should not include checks")
		}
	}
}

func TestHealthHandler_Health_Admin(t *testing.T) {
	h := newTestHealthHandler(t)

	w := serveHealth(h.Health, testutil.Admin("admin1"), "/health?verbose=true")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
	}

	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Version != "v1.2.3" || resp.Commit != "abc1234" {
		t.Errorf("version = %q/%q", resp.Version, resp.Commit)
	}
	if c := resp.Checks["database"]; c.Status != StatusHealthy {
		t.Errorf("database status = %q (%s)", c.Status, c.Message)
	}
	if _, ok := resp.Checks["disk"]; !ok {
		t.Error("missing disk check")
	}
	if resp.System == nil || resp.System.GoVersion == "" {
		t.Error("verbose response should include system info")
	}
}

func TestHealthHandler_FailingCheck(t *testing.T) {
	h := newTestHealthHandler(t)
	h.AddCheck("cache", func(context.Context) error { return errors.New("connection refused") })

	w := serveHealth(h.Health, testutil.Admin("admin1"), "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("status = %q; want unhealthy", resp.Status)
	}
	if resp.Checks["cache"].Message != "connection refused" {
		t.Errorf("cache message = %q", resp.Checks["cache"].Message)
	}

	w = serveHealth(h.Readiness, nil, "/health/ready")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d", w.Code)
	}
	var ready map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &ready); err != nil {
		t.Fatalf("failed to unmarshal readiness: %v", err)
	}
	if _, ok := ready["message"]; ok {
		t.Error("anonymous readiness should not include failure details")
	}
}

func TestHealthHandler_CacheStats(t *testing.T) {
	h := newTestHealthHandler(t)
	mc := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mc.Close() })
	h.SetCacheStats(mc)

	ctx := context.Background()
	_ = mc.Set(ctx, "k", []byte("v"), 0)
	_, _ = mc.Get(ctx, "k")
	_, _ = mc.Get(ctx, "missing")

	var resp HealthStatus
	w := serveHealth(h.Health, testutil.Admin("admin1"), "/health")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Cache == nil {
		t.Fatal("admin response should include cache stats")
	}
	if resp.Cache.Hits != 1 || resp.Cache.Misses != 1 || resp.Cache.Items != 1 {
		t.Errorf("cache stats = %+v", *resp.Cache)
	}

	w = serveHealth(h.Health, nil, "/health")
	var public map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &public); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if _, ok := public["cache"]; ok {
		t.Error("public response should not include cache stats")
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(t.TempDir(), version.Info{})
	w := serveHealth(h.Liveness, nil, "/health/live")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestHealthHandler_MissingUploadsDir(t *testing.T) {
	h := NewHealthHandler(filepath.Join(t.TempDir(), "missing"), version.Info{})
	if c := h.checkDiskSpace(); c.Status != StatusHealthy {
		t.Errorf("missing uploads dir status = %q", c.Status)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		checks map[string]Check
		want   string
	}{
		{map[string]Check{}, StatusHealthy},
		{map[string]Check{"a": {Status: StatusHealthy}, "b": {Status: StatusDegraded}}, StatusDegraded},
		{map[string]Check{"a": {Status: StatusDegraded}, "b": {Status: StatusUnhealthy}}, StatusUnhealthy},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.checks); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, want %q", tt.checks, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
