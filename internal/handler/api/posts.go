// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/blockpress/internal/middleware"
	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
	"github.com/olegiv/blockpress/internal/render"
	"github.com/olegiv/blockpress/internal/transfer"
	"github.com/olegiv/blockpress/internal/util"
)

// ListPosts handles GET /api/v1/posts.
// Query params: page, limit, tag, search, slug.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	params := query.ParseParams(r.URL.Query())

	page, err := h.posts.List(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page.Data, &Meta{Pagination: &page.Pagination})
}

// GetPost handles GET /api/v1/posts/{id}. The key may be an id or a slug.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Get(r.Context(), middleware.GetUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, p, nil)
}

// RenderedPost is a post together with its rendered body.
type RenderedPost struct {
	Post  *model.Post   `json:"post"`
	Nodes []render.Node `json:"nodes"`
	HTML  template.HTML `json:"html"`
}

// RenderPost handles GET /api/v1/posts/{id}/render.
func (h *Handler) RenderPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.Get(r.Context(), middleware.GetUser(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, RenderedPost{
		Post:  p,
		Nodes: h.renderer.Post(p.Content),
		HTML:  h.renderer.HTML(p.Content),
	}, nil)
}

// CreatePost handles POST /api/v1/posts.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in model.PostInput
	if !requireJSON(w, r, &in) {
		return
	}

	p, err := h.posts.Create(r.Context(), middleware.GetUser(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, p)
}

// UpdatePost handles PUT /api/v1/posts/{id}. Omitted fields are unchanged.
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var upd model.PostUpdate
	if !requireJSON(w, r, &upd) {
		return
	}

	p, err := h.posts.Update(r.Context(), middleware.GetUser(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, p, nil)
}

// DeletePost handles DELETE /api/v1/posts/{id}.
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), middleware.GetUser(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]bool{"success": true}, nil)
}

// ImportMarkdownRequest is the body of POST /posts/import. Fields left
// empty are taken from the document: the first H1 becomes the title and
// the slug is derived from it.
type ImportMarkdownRequest struct {
	Markdown   string   `json:"markdown"`
	Title      string   `json:"title,omitempty"`
	Slug       string   `json:"slug,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
	CoverImage string   `json:"coverImage,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Published  bool     `json:"published"`
}

// ImportMarkdown handles POST /api/v1/posts/import.
func (h *Handler) ImportMarkdown(w http.ResponseWriter, r *http.Request) {
	var req ImportMarkdownRequest
	if !requireJSON(w, r, &req) {
		return
	}

	var resolve transfer.ImageResolver
	if h.media != nil {
		ctx := r.Context()
		resolve = func(url string) string { return h.media.PublicIDForURL(ctx, url) }
	}

	doc, err := transfer.NewMarkdownConverter(resolve).Convert([]byte(req.Markdown))
	if errors.Is(err, transfer.ErrEmptyDocument) {
		WriteValidationError(w, map[string]string{"markdown": "Markdown must contain at least one block"})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	in := model.PostInput{
		Title:      strings.TrimSpace(req.Title),
		Slug:       req.Slug,
		Content:    doc.Blocks,
		Excerpt:    req.Excerpt,
		CoverImage: req.CoverImage,
		Tags:       req.Tags,
		Published:  req.Published,
	}
	if in.Title == "" {
		in.Title = doc.Title
	}
	if in.Slug == "" {
		in.Slug = util.Slugify(in.Title)
	}

	p, err := h.posts.Create(r.Context(), middleware.GetUser(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, p)
}
