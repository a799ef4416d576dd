// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
)

const postSelect = `SELECT p.id, p.author_id, p.title, p.slug, p.content, p.excerpt, p.cover_image,
	p.tags, p.published, p.published_at, p.reading_time, p.created_at, p.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')
	FROM posts p LEFT JOIN users u ON u.id = p.author_id`

// Listing order. Posts without a publish time sort last; ties keep
// insertion order.
const postOrder = ` ORDER BY p.published_at IS NULL, p.published_at DESC, p.created_at ASC, p.id ASC`

// PostStore persists posts. Content and tags are stored as JSON.
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a PostStore.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// Create inserts a post. A taken slug yields ErrDuplicate.
func (s *PostStore) Create(ctx context.Context, p *model.Post) error {
	content, tags, err := encodePostJSON(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO posts (
		id, author_id, title, slug, content, excerpt, cover_image, tags, search_text,
		published, published_at, reading_time, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AuthorID, p.Title, p.Slug, content, p.Excerpt, p.CoverImage, tags, query.SearchText(p),
		boolToInt(p.Published), nullTime(p.PublishedAt), p.ReadingTime, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", translate(err))
	}
	return nil
}

// Update overwrites every mutable column of the post with the given id.
func (s *PostStore) Update(ctx context.Context, p *model.Post) error {
	content, tags, err := encodePostJSON(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET
		title = ?, slug = ?, content = ?, excerpt = ?, cover_image = ?, tags = ?, search_text = ?,
		published = ?, published_at = ?, reading_time = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Slug, content, p.Excerpt, p.CoverImage, tags, query.SearchText(p),
		boolToInt(p.Published), nullTime(p.PublishedAt), p.ReadingTime, p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating post: %w", translate(err))
	}
	return requireRow(res)
}

// Delete removes the post with the given id.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return requireRow(res)
}

// GetByID returns the post with the given id, published or not.
func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, postSelect+` WHERE p.id = ?`, id))
}

// GetBySlug returns the post with the given slug, published or not.
func (s *PostStore) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, postSelect+` WHERE p.slug = ?`, slug))
}

// SlugTaken reports whether another post than exceptID uses slug.
func (s *PostStore) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE slug = ? AND id <> ?`, slug, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking slug: %w", err)
	}
	return n > 0, nil
}

// ListPublished returns one page of published posts matching params and
// the total number of matches.
func (s *PostStore) ListPublished(ctx context.Context, params query.Params) ([]model.Post, int, error) {
	params = params.Normalize()

	where := ` WHERE p.published = 1`
	var args []any
	if tag := params.TagNeedle(); tag != "" {
		where += ` AND EXISTS (SELECT 1 FROM json_each(p.tags) t WHERE t.value = ?)`
		args = append(args, tag)
	}
	if needle := params.SearchNeedle(); needle != "" {
		where += ` AND instr(p.search_text, ?) > 0`
		args = append(args, needle)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting posts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, postSelect+where+postOrder+` LIMIT ? OFFSET ?`,
		append(args, params.Limit, params.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing posts: %w", err)
	}
	return posts, total, nil
}

// ImageURLs returns every image URL referenced by any post, as cover or
// image block.
func (s *PostStore) ImageURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content, cover_image FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("reading post images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	urls := make(map[string]struct{})
	for rows.Next() {
		var content, cover string
		if err := rows.Scan(&content, &cover); err != nil {
			return nil, fmt.Errorf("reading post images: %w", err)
		}
		p := model.Post{CoverImage: cover}
		if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
			return nil, fmt.Errorf("decoding content: %w", err)
		}
		for _, u := range p.ImageURLs() {
			urls[u] = struct{}{}
		}
	}
	return urls, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p           model.Post
		content     string
		tags        string
		published   int
		publishedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Slug, &content, &p.Excerpt, &p.CoverImage,
		&tags, &published, &publishedAt, &p.ReadingTime, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.Name, &p.Author.Email)
	if err != nil {
		return nil, translate(err)
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	p.Author.ID = p.AuthorID
	p.Published = published == 1
	p.PublishedAt = timePtr(publishedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func encodePostJSON(p *model.Post) (content, tags string, err error) {
	blocks := p.Content
	if blocks == nil {
		blocks = []model.Block{}
	}
	c, err := json.Marshal(blocks)
	if err != nil {
		return "", "", fmt.Errorf("encoding content: %w", err)
	}
	list := p.Tags
	if list == nil {
		list = []string{}
	}
	t, err := json.Marshal(list)
	if err != nil {
		return "", "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(c), string(t), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
