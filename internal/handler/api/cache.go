// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/blockpress/internal/cache"
)

// ClearCache handles DELETE /api/v1/cache. It drops every cached listing
// and restarts the hit counters.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var stats *cache.Stats
	if sp, ok := h.cache.(cache.StatsProvider); ok {
		sp.ResetStats()
		s := sp.Stats()
		stats = &s
	}
	h.logger.Info("cache cleared")
	WriteSuccess(w, map[string]any{"cleared": true, "stats": stats}, nil)
}
