// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler holds the HTTP handlers that live outside /api/v1.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/olegiv/blockpress/internal/cache"
	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/version"
)

// Check statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// checkTimeout bounds each dependency check.
const checkTimeout = 2 * time.Second

// minDiskSpace is the free space below which uploads are reported degraded.
const minDiskSpace = 100 * 1024 * 1024

// CheckFunc checks one dependency.
type CheckFunc func(ctx context.Context) error

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks     map[string]CheckFunc
	cacheStats cache.StatsProvider
	uploadsDir string
	version    version.Info
	startTime  time.Time
	now        func() time.Time
}

// NewHealthHandler creates a new health handler. Dependency checks are
// registered with AddCheck.
func NewHealthHandler(uploadsDir string, info version.Info) *HealthHandler {
	return &HealthHandler{
		checks:     make(map[string]CheckFunc),
		uploadsDir: uploadsDir,
		version:    info,
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// AddCheck registers a dependency check under name. A failing check marks
// the service unhealthy.
func (h *HealthHandler) AddCheck(name string, fn CheckFunc) {
	h.checks[name] = fn
}

// SetCacheStats adds the cache counters to the admin detail.
func (h *HealthHandler) SetCacheStats(sp cache.StatsProvider) {
	h.cacheStats = sp
}

// StartTime returns when the handler (and application) was started.
func (h *HealthHandler) StartTime() time.Time {
	return h.startTime
}

// HealthStatusPublic is the minimal health response for non-admin callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed response shown to admins.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Commit    string           `json:"commit,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Cache     *cache.Stats     `json:"cache,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains system-level information.
type SystemInfo struct {
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutines"`
	NumCPU       int    `json:"numCpus"`
	MemAlloc     string `json:"memAlloc"`
	MemSys       string `json:"memSys"`
}

// Health handles GET /health. Anonymous and non-admin callers get only the
// overall status; admins also see each check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := h.runChecks(r.Context())
	overall := overallStatus(checks)

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	if user := middleware.GetUser(r); user == nil || !user.IsAdmin() {
		writeJSON(w, code, HealthStatusPublic{Status: overall})
		return
	}

	status := HealthStatus{
		Status:    overall,
		Timestamp: h.now().UTC(),
		Uptime:    h.now().Sub(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Commit:    h.version.GitCommit,
		Checks:    checks,
	}
	if h.cacheStats != nil {
		stats := h.cacheStats.Stats()
		status.Cache = &stats
	}
	if r.URL.Query().Get("verbose") == "true" {
		status.System = getSystemInfo()
	}
	writeJSON(w, code, status)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready. It only runs the dependency checks.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	for name, fn := range h.checks {
		if c := runCheck(r.Context(), fn); c.Status != StatusHealthy {
			resp := map[string]string{"status": "not_ready"}
			if user := middleware.GetUser(r); user != nil && user.IsAdmin() {
				resp["message"] = name + ": " + c.Message
			}
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *HealthHandler) runChecks(ctx context.Context) map[string]Check {
	out := make(map[string]Check, len(h.checks)+1)
	for name, fn := range h.checks {
		out[name] = runCheck(ctx, fn)
	}
	out["disk"] = h.checkDiskSpace()
	return out
}

func runCheck(ctx context.Context, fn CheckFunc) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: StatusHealthy, Message: "Connected", Latency: latency.String()}
}

// overallStatus is unhealthy if any check is, otherwise degraded if any
// check is, otherwise healthy.
func overallStatus(checks map[string]Check) string {
	statuses := make([]string, 0, len(checks))
	for _, c := range checks {
		statuses = append(statuses, c.Status)
	}
	switch {
	case slices.Contains(statuses, StatusUnhealthy):
		return StatusUnhealthy
	case slices.Contains(statuses, StatusDegraded):
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// checkDiskSpace checks available disk space in the uploads directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if _, err := os.Stat(h.uploadsDir); os.IsNotExist(err) {
		// Created on first upload.
		return Check{Status: StatusHealthy, Message: "Uploads directory does not exist yet"}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.uploadsDir, &stat); err != nil {
		return Check{Status: StatusDegraded, Message: "Failed to check disk space: " + err.Error()}
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	available := formatBytes(availableBytes)
	if availableBytes < minDiskSpace {
		return Check{Status: StatusDegraded, Message: "Low disk space: " + available + " available"}
	}
	return Check{Status: StatusHealthy, Message: available + " available"}
}

func getSystemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
