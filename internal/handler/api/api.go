// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON handlers behind /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/olegiv/blockpress/internal/cache"
	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/query"
	"github.com/olegiv/blockpress/internal/render"
	"github.com/olegiv/blockpress/internal/service"
	"github.com/olegiv/blockpress/internal/transfer"
)

// maxJSONBody caps JSON request bodies. Post content is the largest payload.
const maxJSONBody = 2 << 20

// Config holds the dependencies of the API handlers.
type Config struct {
	Auth   *service.AuthService
	Posts  *service.PostService
	Media  *service.MediaService
	Events *service.EventService

	// Jobs and Cache enable the admin /jobs and /cache endpoints. Optional.
	Jobs  JobRegistry
	Cache cache.Cacher

	// LoginProtection locks accounts after repeated failures. Optional.
	LoginProtection *middleware.LoginProtection

	// SecureCookies sets the Secure flag on the token cookie.
	SecureCookies bool

	Logger *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	auth     *service.AuthService
	posts    *service.PostService
	media    *service.MediaService
	events   *service.EventService
	jobs     JobRegistry
	cache    cache.Cacher
	login    *middleware.LoginProtection
	renderer *render.Renderer
	importer *transfer.Importer
	exporter *transfer.Exporter
	secure   bool
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		auth:     cfg.Auth,
		posts:    cfg.Posts,
		media:    cfg.Media,
		events:   cfg.Events,
		jobs:     cfg.Jobs,
		cache:    cfg.Cache,
		login:    cfg.LoginProtection,
		renderer: render.New(),
		importer: transfer.NewImporter(cfg.Posts, logger),
		exporter: transfer.NewExporter(cfg.Posts, logger),
		secure:   cfg.SecureCookies,
		logger:   logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Pagination *query.Pagination `json:"pagination,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	middleware.WriteAPIError(w, statusCode, code, message, details)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 400 response with one message per field.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps a service error onto a status code. Upstream and
// unknown errors are logged and reported without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *service.ValidationError
		uerr *service.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr.Errors.Map())
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, service.ErrUnauthenticated):
		WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, service.ErrForbidden):
		WriteForbidden(w, "You do not have permission to perform this action")
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, "Resource not found")
	case errors.Is(err, service.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", conflictMessage(err), nil)
	case errors.As(err, &uerr):
		h.logger.Error("upstream failure", "op", uerr.Op, "error", uerr.Err, "path", r.URL.Path)
		WriteInternalError(w, "Internal server error")
	default:
		h.logger.Error("request failed", "error", err, "path", r.URL.Path)
		WriteInternalError(w, "Internal server error")
	}
}

// conflictMessage returns the slug conflict detail when the service gave
// one. Store-level duplicates are reported generically.
func conflictMessage(err error) string {
	if detail, ok := strings.CutPrefix(err.Error(), service.ErrConflict.Error()+": "); ok &&
		strings.HasSuffix(detail, "already in use") {
		return detail
	}
	return "Resource already exists"
}

var errUnsupportedMediaType = errors.New("unsupported media type")

// decodeJSON decodes a JSON request body into v. Bodies that are not
// declared as JSON are refused.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if !acceptsJSON(r) {
		return errUnsupportedMediaType
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// acceptsJSON reports whether the request body is declared as JSON. A
// missing Content-Type is tolerated.
func acceptsJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// requireJSON decodes the body or writes the appropriate error response.
// It returns false when a response has been written.
func requireJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := decodeJSON(w, r, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errUnsupportedMediaType):
		WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json", nil)
	case errors.Is(err, io.EOF):
		WriteBadRequest(w, "Request body is required", nil)
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
			return false
		}
		WriteBadRequest(w, "Invalid JSON body", nil)
	}
	return false
}
