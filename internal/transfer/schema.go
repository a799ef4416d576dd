// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transfer moves posts in and out of blockpress: markdown documents
// become content blocks, and published posts round-trip through a JSON
// export file.
package transfer

import (
	"time"

	"github.com/olegiv/blockpress/internal/model"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportData represents the complete export structure.
type ExportData struct {
	Version    string       `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	Posts      []ExportPost `json:"posts"`
}

// ExportPost is a post without server-assigned fields.
type ExportPost struct {
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Content     []model.Block `json:"content"`
	Excerpt     string        `json:"excerpt,omitempty"`
	CoverImage  string        `json:"coverImage,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Published   bool          `json:"published"`
	AuthorEmail string        `json:"authorEmail,omitempty"`
	PublishedAt *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Input converts the exported post back into a create request.
func (p ExportPost) Input() model.PostInput {
	return model.PostInput{
		Title:      p.Title,
		Slug:       p.Slug,
		Content:    p.Content,
		Excerpt:    p.Excerpt,
		CoverImage: p.CoverImage,
		Tags:       p.Tags,
		Published:  p.Published,
	}
}

// ImportOptions controls an import run.
type ImportOptions struct {
	DryRun bool `json:"dryRun"`
}

// ImportError describes a post that could not be imported.
type ImportError struct {
	Slug    string            `json:"slug"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ImportResult summarises an import run.
type ImportResult struct {
	Success bool          `json:"success"`
	DryRun  bool          `json:"dryRun"`
	Created []string      `json:"created"`
	Skipped []string      `json:"skipped"`
	Errors  []ImportError `json:"errors"`
}

// NewImportResult creates an empty result.
func NewImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		Success: true,
		DryRun:  dryRun,
		Created: []string{},
		Skipped: []string{},
		Errors:  []ImportError{},
	}
}

// AddError records a failed post and marks the run unsuccessful.
func (r *ImportResult) AddError(slug, message string, fields map[string]string) {
	r.Success = false
	r.Errors = append(r.Errors, ImportError{Slug: slug, Message: message, Fields: fields})
}
