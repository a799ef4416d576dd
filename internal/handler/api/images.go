// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/blockpress/internal/middleware"
)

// multipartSlack leaves room for multipart framing, so an image just above
// the limit is still parsed and rejected with a field error.
const multipartSlack = 1 << 20

// UploadImage handles POST /api/v1/images.
// Accepts multipart/form-data with the file in the "image" field.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	maxSize := h.media.MaxUploadSize()

	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartSlack)
	if err := r.ParseMultipartForm(maxSize + multipartSlack); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
			return
		}
		WriteBadRequest(w, "Failed to parse multipart form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		// Let the service report the missing image as a field error.
		_, err = h.media.Upload(r.Context(), user, "", "", 0, nil)
		h.writeServiceError(w, r, err)
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.media.Upload(r.Context(), user, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, res)
}

// DeleteImage handles DELETE /api/v1/images/{publicId}.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.media.Delete(r.Context(), middleware.GetUser(r), chi.URLParam(r, "publicId")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]bool{"success": true}, nil)
}

// CleanupImages handles POST /api/v1/images/cleanup. It removes stale,
// unreferenced draft images right away instead of waiting for the job.
func (h *Handler) CleanupImages(w http.ResponseWriter, r *http.Request) {
	res, err := h.media.CleanupDraftsAs(r.Context(), middleware.GetUser(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, res, nil)
}
