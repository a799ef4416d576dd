// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olegiv/blockpress/internal/model"
)

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

// UserStore persists accounts in PostgreSQL.
type UserStore struct {
	db *pgxpool.Pool
}

// NewUserStore creates a UserStore.
func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user. Emails are stored lower-cased.
func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", translate(err))
	}
	return nil
}

// GetByID returns the user with the given id.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail looks a user up by email, ignoring case.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
}

// UpdatePassword replaces a user's password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id, hash string, now time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRow(tag)
}

// CountAdmins returns the number of admin accounts.
func (s *UserStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, model.RoleAdmin).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

const imageColumns = `public_id, owner_id, filename, mime_type, size, width, height, url, draft, created_at`

// ImageStore records uploaded images in PostgreSQL.
type ImageStore struct {
	db *pgxpool.Pool
}

// NewImageStore creates an ImageStore.
func NewImageStore(db *pgxpool.Pool) *ImageStore {
	return &ImageStore{db: db}
}

// Create records an uploaded image.
func (s *ImageStore) Create(ctx context.Context, img *model.Image) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO images (`+imageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		img.PublicID, img.OwnerID, img.Filename, img.MimeType, img.Size, img.Width, img.Height,
		img.URL, img.Draft, img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting image: %w", translate(err))
	}
	return nil
}

// Get returns the image with the given public id.
func (s *ImageStore) Get(ctx context.Context, publicID string) (*model.Image, error) {
	return scanImage(s.db.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE public_id = $1`, publicID))
}

// GetByURL returns the image served at url.
func (s *ImageStore) GetByURL(ctx context.Context, url string) (*model.Image, error) {
	return scanImage(s.db.QueryRow(ctx, `SELECT `+imageColumns+` FROM images WHERE url = $1`, url))
}

// MarkPromoted records that a draft image moved to post storage.
func (s *ImageStore) MarkPromoted(ctx context.Context, publicID, url string) error {
	tag, err := s.db.Exec(ctx, `UPDATE images SET draft = FALSE, url = $1 WHERE public_id = $2`, url, publicID)
	if err != nil {
		return fmt.Errorf("promoting image: %w", err)
	}
	return requireRow(tag)
}

// Delete removes the image record.
func (s *ImageStore) Delete(ctx context.Context, publicID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM images WHERE public_id = $1`, publicID)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return requireRow(tag)
}

// ListDrafts returns draft images uploaded before the given time, oldest first.
func (s *ImageStore) ListDrafts(ctx context.Context, before time.Time) ([]model.Image, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+imageColumns+` FROM images WHERE draft AND created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

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

func scanImage(row pgx.Row) (*model.Image, error) {
	var img model.Image
	err := row.Scan(&img.PublicID, &img.OwnerID, &img.Filename, &img.MimeType, &img.Size,
		&img.Width, &img.Height, &img.URL, &img.Draft, &img.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}

// EventStore persists the audit event log in PostgreSQL.
type EventStore struct {
	db *pgxpool.Pool
}

// NewEventStore creates an EventStore.
func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

// Create appends an event and sets its id.
func (s *EventStore) Create(ctx context.Context, e *model.Event) error {
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO events (level, category, message, metadata, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5) RETURNING id`,
		e.Level, e.Category, e.Message, e.Metadata, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// List returns events newest first, optionally filtered by level.
func (s *EventStore) List(ctx context.Context, level string, limit, offset int) ([]model.Event, int, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE ($1 = '' OR level = $1)`, level).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, level, category, message, metadata::text, created_at FROM events
		WHERE ($1 = '' OR level = $1) ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		level, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// DeleteBefore removes events created before cutoff.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return tag.RowsAffected(), nil
}
