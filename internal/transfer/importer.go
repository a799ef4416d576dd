// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/service"
	"github.com/olegiv/blockpress/internal/validation"
)

// ErrUnsupportedVersion is returned for export files from another format version.
var ErrUnsupportedVersion = errors.New("unsupported export version")

// PostCreator creates posts on behalf of a caller.
type PostCreator interface {
	Create(ctx context.Context, actor *model.AuthUser, in model.PostInput) (*model.Post, error)
}

// Importer recreates posts from an export file. Every post is owned by the
// importing user; posts whose slug already exists are skipped.
type Importer struct {
	posts  PostCreator
	logger *slog.Logger
}

// NewImporter creates a new Importer instance.
func NewImporter(posts PostCreator, logger *slog.Logger) *Importer {
	return &Importer{posts: posts, logger: logger}
}

// Decode reads an export file.
func Decode(r io.Reader) (*ExportData, error) {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}
	if data.Version != ExportVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, data.Version)
	}
	return &data, nil
}

// Import creates the posts in data. A dry run only validates them.
// Per-post problems are collected in the result; only infrastructure
// failures abort the run.
func (i *Importer) Import(ctx context.Context, actor *model.AuthUser, data *ExportData, opts ImportOptions) (*ImportResult, error) {
	result := NewImportResult(opts.DryRun)

	for _, p := range data.Posts {
		in := p.Input()

		if opts.DryRun {
			if errs := validation.CreatePost(in); len(errs) > 0 {
				result.AddError(p.Slug, "validation failed", errs.Map())
				continue
			}
			result.Created = append(result.Created, p.Slug)
			continue
		}

		created, err := i.posts.Create(ctx, actor, in)
		var verr *service.ValidationError
		switch {
		case err == nil:
			result.Created = append(result.Created, created.Slug)
		case errors.Is(err, service.ErrConflict):
			result.Skipped = append(result.Skipped, p.Slug)
		case errors.As(err, &verr):
			result.AddError(p.Slug, "validation failed", verr.Errors.Map())
		case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrUnauthenticated):
			return nil, err
		default:
			return nil, fmt.Errorf("importing post %q: %w", p.Slug, err)
		}
	}

	i.logger.Info("posts imported",
		"created", len(result.Created),
		"skipped", len(result.Skipped),
		"failed", len(result.Errors),
		"dry_run", opts.DryRun)
	return result, nil
}
