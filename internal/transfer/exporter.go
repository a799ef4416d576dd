// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olegiv/blockpress/internal/query"
)

// PostLister pages through published posts.
type PostLister interface {
	List(ctx context.Context, params query.Params) (*query.Page, error)
}

// Exporter writes published posts to the export format.
type Exporter struct {
	posts  PostLister
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates a new Exporter instance.
func NewExporter(posts PostLister, logger *slog.Logger) *Exporter {
	return &Exporter{posts: posts, logger: logger, now: time.Now}
}

// Export collects every published post, newest first.
func (e *Exporter) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: e.now().UTC(),
		Posts:      []ExportPost{},
	}

	params := query.Params{Page: 1, Limit: query.MaxLimit}
	for {
		page, err := e.posts.List(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing posts page %d: %w", params.Page, err)
		}
		for _, p := range page.Data {
			data.Posts = append(data.Posts, ExportPost{
				Title:       p.Title,
				Slug:        p.Slug,
				Content:     p.Content,
				Excerpt:     p.Excerpt,
				CoverImage:  p.CoverImage,
				Tags:        p.Tags,
				Published:   p.Published,
				AuthorEmail: p.Author.Email,
				PublishedAt: p.PublishedAt,
				CreatedAt:   p.CreatedAt,
			})
		}
		if params.Page >= page.Pagination.TotalPages {
			break
		}
		params.Page++
	}

	e.logger.Info("posts exported", "count", len(data.Posts))
	return data, nil
}

// ExportToWriter exports posts as indented JSON to w.
func (e *Exporter) ExportToWriter(ctx context.Context, w io.Writer) error {
	data, err := e.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}
