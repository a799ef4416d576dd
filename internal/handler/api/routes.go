// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/blockpress/internal/middleware"
)

// Routes returns the /api/v1 router. Callers are resolved by
// middleware.Authenticate further up the chain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.NoStore)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	r.Route("/auth", func(r chi.Router) {
		if h.login != nil {
			r.With(h.login.Middleware()).Post("/login", h.Login)
		} else {
			r.Post("/login", h.Login)
		}
		r.Post("/logout", h.Logout)
		r.With(middleware.RequireAuth).Get("/me", h.Me)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.ListPosts)
		r.Get("/{id}", h.GetPost)
		r.Get("/{id}/render", h.RenderPost)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/", h.CreatePost)
			r.Post("/import", h.ImportMarkdown)
		})

		// Author-or-admin is decided per post by the service.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Put("/{id}", h.UpdatePost)
			r.Delete("/{id}", h.DeletePost)
		})
	})

	r.Route("/images", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/", h.UploadImage)
		r.With(middleware.RequireAdmin).Post("/cleanup", h.CleanupImages)
		r.Delete("/{publicId}", h.DeleteImage)
	})

	r.Route("/transfer", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
	})

	r.With(middleware.RequireAdmin).Get("/events", h.ListEvents)

	if h.jobs != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/", h.ListJobs)
			r.Put("/{name}", h.UpdateJob)
			r.Post("/{name}/run", h.RunJob)
		})
	}
	if h.cache != nil {
		r.With(middleware.RequireAdmin).Delete("/cache", h.ClearCache)
	}

	return r
}
