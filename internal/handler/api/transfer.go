// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/transfer"
)

// Export handles GET /api/v1/transfer/export. The file is built in full
// before anything is sent, so a failed export still gets an error response.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.exporter.ExportToWriter(r.Context(), &buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="blockpress-export.json"`)
	_, _ = w.Write(buf.Bytes())
}

// Import handles POST /api/v1/transfer/import. The body is an export file;
// ?dryRun=true validates it without writing.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if !acceptsJSON(r) {
		WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json", nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	data, err := transfer.Decode(r.Body)
	if err != nil {
		if errors.Is(err, transfer.ErrUnsupportedVersion) {
			WriteBadRequest(w, "Unsupported export version", nil)
			return
		}
		WriteBadRequest(w, "Invalid export file", nil)
		return
	}

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dryRun"))
	result, err := h.importer.Import(r.Context(), middleware.GetUser(r), data, transfer.ImportOptions{DryRun: dryRun})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, result, nil)
}

// maxImportBody caps export files accepted by Import.
const maxImportBody = 32 << 20
