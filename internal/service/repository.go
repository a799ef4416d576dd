// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"time"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
)

// Repositories are satisfied by both internal/store (SQLite) and
// internal/store/postgres.

// PostRepository persists posts.
type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	Update(ctx context.Context, p *model.Post) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	GetBySlug(ctx context.Context, slug string) (*model.Post, error)
	SlugTaken(ctx context.Context, slug, exceptID string) (bool, error)
	ListPublished(ctx context.Context, params query.Params) ([]model.Post, int, error)
	ImageURLs(ctx context.Context) (map[string]struct{}, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string, now time.Time) error
	CountAdmins(ctx context.Context) (int, error)
}

// ImageRepository persists uploaded image records.
type ImageRepository interface {
	Create(ctx context.Context, img *model.Image) error
	Get(ctx context.Context, publicID string) (*model.Image, error)
	GetByURL(ctx context.Context, url string) (*model.Image, error)
	MarkPromoted(ctx context.Context, publicID, url string) error
	Delete(ctx context.Context, publicID string) error
	ListDrafts(ctx context.Context, before time.Time) ([]model.Image, error)
}

// EventRepository persists the event log.
type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	List(ctx context.Context, level string, limit, offset int) ([]model.Event, int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher announces domain events to webhooks and brokers.
type Publisher interface {
	DispatchEvent(ctx context.Context, eventType string, data any) error
}

// ListCache caches public listing pages.
type ListCache interface {
	Page(ctx context.Context, params query.Params, load func() (*query.Page, error)) (*query.Page, error)
	Invalidate(ctx context.Context) error
}

// nopPublisher discards events.
type nopPublisher struct{}

func (nopPublisher) DispatchEvent(context.Context, string, any) error { return nil }

// nopCache always loads.
type nopCache struct{}

func (nopCache) Page(_ context.Context, _ query.Params, load func() (*query.Page, error)) (*query.Page, error) {
	return load()
}

func (nopCache) Invalidate(context.Context) error { return nil }
