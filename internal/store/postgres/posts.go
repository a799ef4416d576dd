// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
)

const postSelect = `SELECT p.id, p.author_id, p.title, p.slug, p.content, p.excerpt, p.cover_image,
	p.tags, p.published, p.published_at, p.reading_time, p.created_at, p.updated_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')
	FROM posts p LEFT JOIN users u ON u.id = p.author_id`

const postOrder = ` ORDER BY p.published_at DESC NULLS LAST, p.created_at ASC, p.id ASC`

// PostStore persists posts in PostgreSQL.
type PostStore struct {
	db *pgxpool.Pool
}

// NewPostStore creates a PostStore.
func NewPostStore(db *pgxpool.Pool) *PostStore {
	return &PostStore{db: db}
}

// Create inserts a post.
func (s *PostStore) Create(ctx context.Context, p *model.Post) error {
	content, err := encodeContent(p.Content)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO posts (
		id, author_id, title, slug, content, excerpt, cover_image, tags, search_text,
		published, published_at, reading_time, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.AuthorID, p.Title, p.Slug, content, p.Excerpt, p.CoverImage, tagsOrEmpty(p.Tags),
		query.SearchText(p), p.Published, p.PublishedAt, p.ReadingTime, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", translate(err))
	}
	return nil
}

// Update overwrites every mutable column of the post with the given id.
func (s *PostStore) Update(ctx context.Context, p *model.Post) error {
	content, err := encodeContent(p.Content)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE posts SET
		title = $1, slug = $2, content = $3, excerpt = $4, cover_image = $5, tags = $6,
		search_text = $7, published = $8, published_at = $9, reading_time = $10, updated_at = $11
		WHERE id = $12`,
		p.Title, p.Slug, content, p.Excerpt, p.CoverImage, tagsOrEmpty(p.Tags),
		query.SearchText(p), p.Published, p.PublishedAt, p.ReadingTime, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating post: %w", translate(err))
	}
	return requireRow(tag)
}

// Delete removes the post with the given id.
func (s *PostStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return requireRow(tag)
}

// GetByID returns the post with the given id.
func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return scanPost(s.db.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
}

// GetBySlug returns the post with the given slug.
func (s *PostStore) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return scanPost(s.db.QueryRow(ctx, postSelect+` WHERE p.slug = $1`, slug))
}

// SlugTaken reports whether another post than exceptID uses slug.
func (s *PostStore) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var taken bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1 AND id <> $2)`, slug, exceptID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("checking slug: %w", err)
	}
	return taken, nil
}

// ListPublished returns one page of published posts matching params and
// the total number of matches.
func (s *PostStore) ListPublished(ctx context.Context, params query.Params) ([]model.Post, int, error) {
	params = params.Normalize()

	where := ` WHERE p.published`
	var args []any
	if tag := params.TagNeedle(); tag != "" {
		args = append(args, tag)
		where += ` AND $` + strconv.Itoa(len(args)) + ` = ANY(p.tags)`
	}
	if needle := params.SearchNeedle(); needle != "" {
		args = append(args, needle)
		where += ` AND strpos(p.search_text, $` + strconv.Itoa(len(args)) + `) > 0`
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting posts: %w", err)
	}

	n := len(args)
	stmt := postSelect + where + postOrder +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := s.db.Query(ctx, stmt, append(args, params.Limit, params.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

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

// ImageURLs returns every image URL referenced by any post.
func (s *PostStore) ImageURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT content, cover_image FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("reading post images: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var (
			content []byte
			p       model.Post
		)
		if err := rows.Scan(&content, &p.CoverImage); err != nil {
			return nil, fmt.Errorf("reading post images: %w", err)
		}
		if err := json.Unmarshal(content, &p.Content); err != nil {
			return nil, fmt.Errorf("decoding content: %w", err)
		}
		for _, u := range p.ImageURLs() {
			urls[u] = struct{}{}
		}
	}
	return urls, rows.Err()
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var (
		p       model.Post
		content []byte
	)
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Slug, &content, &p.Excerpt, &p.CoverImage,
		&p.Tags, &p.Published, &p.PublishedAt, &p.ReadingTime, &p.CreatedAt, &p.UpdatedAt,
		&p.Author.Name, &p.Author.Email)
	if err != nil {
		return nil, translate(err)
	}
	if err := json.Unmarshal(content, &p.Content); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	p.Author.ID = p.AuthorID
	if p.PublishedAt != nil {
		t := p.PublishedAt.UTC()
		p.PublishedAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func encodeContent(blocks []model.Block) ([]byte, error) {
	if blocks == nil {
		blocks = []model.Block{}
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding content: %w", err)
	}
	return b, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
