// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
)

// ListEvents handles GET /api/v1/events.
// Query params: level, page, limit.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	params := query.ParseParams(r.URL.Query())

	events, pagination, err := h.events.List(r.Context(), middleware.GetUser(r), r.URL.Query().Get("level"), params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	WriteSuccess(w, events, &Meta{Pagination: &pagination})
}
