// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/blockpress/internal/model"
)

const imageColumns = `public_id, owner_id, filename, mime_type, size, width, height, url, draft, created_at`

// ImageStore records uploaded images.
type ImageStore struct {
	db *sql.DB
}

// NewImageStore creates an ImageStore.
func NewImageStore(db *sql.DB) *ImageStore {
	return &ImageStore{db: db}
}

// Create records an uploaded image.
func (s *ImageStore) Create(ctx context.Context, img *model.Image) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.PublicID, img.OwnerID, img.Filename, img.MimeType, img.Size, img.Width, img.Height,
		img.URL, boolToInt(img.Draft), img.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting image: %w", translate(err))
	}
	return nil
}

// Get returns the image with the given public id.
func (s *ImageStore) Get(ctx context.Context, publicID string) (*model.Image, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE public_id = ?`, publicID)
	return scanImage(row)
}

// GetByURL returns the image served at url.
func (s *ImageStore) GetByURL(ctx context.Context, url string) (*model.Image, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE url = ?`, url)
	return scanImage(row)
}

// MarkPromoted records that a draft image moved to post storage.
func (s *ImageStore) MarkPromoted(ctx context.Context, publicID, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE images SET draft = 0, url = ? WHERE public_id = ?`, url, publicID)
	if err != nil {
		return fmt.Errorf("promoting image: %w", err)
	}
	return requireRow(res)
}

// Delete removes the image record.
func (s *ImageStore) Delete(ctx context.Context, publicID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE public_id = ?`, publicID)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return requireRow(res)
}

// ListDrafts returns draft images uploaded before the given time, oldest first.
func (s *ImageStore) ListDrafts(ctx context.Context, before time.Time) ([]model.Image, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE draft = 1 AND created_at < ? ORDER BY created_at ASC`,
		before.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

func scanImage(row rowScanner) (*model.Image, error) {
	var (
		img   model.Image
		draft int
	)
	err := row.Scan(&img.PublicID, &img.OwnerID, &img.Filename, &img.MimeType, &img.Size,
		&img.Width, &img.Height, &img.URL, &draft, &img.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	img.Draft = draft == 1
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}
