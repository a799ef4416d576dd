// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
	"github.com/olegiv/blockpress/internal/validation"
	"github.com/olegiv/blockpress/internal/webhook"
)

// ImagePromoter moves draft images into post storage.
type ImagePromoter interface {
	Promote(ctx context.Context, userID string, blocks []model.Block) []model.Block
	PromoteURL(ctx context.Context, userID, url string) string
}

// PostService implements post authoring and the public feed. Concurrent
// updates to the same post are not detected: the last write wins.
type PostService struct {
	posts     PostRepository
	images    ImagePromoter
	cache     ListCache
	publisher Publisher
	audit     *EventService
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewPostService creates a post service. images, cache and publisher may be
// nil: drafts then stay where they are, listings are not cached and no
// events are sent.
func NewPostService(posts PostRepository, images ImagePromoter, cache ListCache, publisher Publisher, logger *slog.Logger) *PostService {
	if cache == nil {
		cache = nopCache{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		posts:     posts,
		images:    images,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetAuditLog records post writes in the event log.
func (s *PostService) SetAuditLog(events *EventService) { s.audit = events }

// Create stores a new post authored by actor. Only admins may create posts.
func (s *PostService) Create(ctx context.Context, actor *model.AuthUser, in model.PostInput) (*model.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	if err := newValidationError(validation.CreatePost(in)); err != nil {
		return nil, err
	}
	in.Tags = validation.NormalizeTags(in.Tags)

	if err := s.ensureSlugFree(ctx, in.Slug, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &model.Post{
		ID:         s.newID(),
		Title:      strings.TrimSpace(in.Title),
		Slug:       in.Slug,
		Excerpt:    strings.TrimSpace(in.Excerpt),
		CoverImage: in.CoverImage,
		AuthorID:   actor.ID,
		Author:     model.AuthorRef{ID: actor.ID, Email: actor.Email},
		Tags:       in.Tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.ApplyContent(in.Content)
	p.EnsureExcerpt()
	p.SetPublished(in.Published, now)

	if err := s.posts.Create(ctx, p); err != nil {
		return nil, fromStore("create post", err)
	}
	if err := s.promoteImages(ctx, actor.ID, p); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, webhook.EventPostCreated, p, "Post created")
	return p, nil
}

// Update applies a partial update. The post's author and admins may update it.
// Reading time is recomputed only when content is supplied.
func (s *PostService) Update(ctx context.Context, actor *model.AuthUser, id string, upd model.PostUpdate) (*model.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore("get post", err)
	}
	if !canEdit(actor, p) {
		return nil, ErrForbidden
	}

	if err := newValidationError(validation.UpdatePost(upd)); err != nil {
		return nil, err
	}

	if upd.Slug != nil && *upd.Slug != p.Slug {
		if err := s.ensureSlugFree(ctx, *upd.Slug, p.ID); err != nil {
			return nil, err
		}
		p.Slug = *upd.Slug
	}
	if upd.Title != nil {
		p.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Excerpt != nil {
		p.Excerpt = strings.TrimSpace(*upd.Excerpt)
	}
	if upd.CoverImage != nil {
		p.CoverImage = *upd.CoverImage
	}
	if upd.Tags != nil {
		p.Tags = validation.NormalizeTags(*upd.Tags)
	}
	if upd.Content != nil {
		p.ApplyContent(upd.Content)
	}
	p.EnsureExcerpt()

	now := s.now().UTC()
	if upd.Published != nil {
		p.SetPublished(*upd.Published, now)
	}
	p.UpdatedAt = now

	if err := s.posts.Update(ctx, p); err != nil {
		return nil, fromStore("update post", err)
	}
	if err := s.promoteImages(ctx, actor.ID, p); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, webhook.EventPostUpdated, p, "Post updated")
	return p, nil
}

// promoteImages moves the actor's draft images referenced by a stored post
// into post storage and saves the new URLs. It runs after the post write so
// that a rejected write leaves the drafts where the client expects them.
func (s *PostService) promoteImages(ctx context.Context, actorID string, p *model.Post) error {
	if s.images == nil {
		return nil
	}
	content := s.images.Promote(ctx, actorID, p.Content)
	cover := s.images.PromoteURL(ctx, actorID, p.CoverImage)
	if cover == p.CoverImage && slices.EqualFunc(content, p.Content, sameURL) {
		return nil
	}

	p.CoverImage = cover
	p.ApplyContent(content)
	if err := s.posts.Update(ctx, p); err != nil {
		return fromStore("save promoted image urls", err)
	}
	return nil
}

func sameURL(a, b model.Block) bool { return a.URL == b.URL }

// Delete removes a post. The post's author and admins may delete it.
func (s *PostService) Delete(ctx context.Context, actor *model.AuthUser, id string) error {
	if actor == nil {
		return ErrUnauthenticated
	}

	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return fromStore("get post", err)
	}
	if !canEdit(actor, p) {
		return ErrForbidden
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return fromStore("delete post", err)
	}

	s.afterWrite(ctx, webhook.EventPostDeleted, p, "Post deleted")
	return nil
}

// List returns a page of published posts. When params.Slug is set the
// matching published post is returned as a one-element page and the other
// filters are ignored.
func (s *PostService) List(ctx context.Context, params query.Params) (*query.Page, error) {
	params = params.Normalize()

	if params.Slug != "" {
		p, err := s.posts.GetBySlug(ctx, params.Slug)
		if err != nil {
			return nil, fromStore("get post by slug", err)
		}
		if !p.Published {
			return nil, ErrNotFound
		}
		page := query.Single(*p)
		return &page, nil
	}

	page, err := s.cache.Page(ctx, params, func() (*query.Page, error) {
		posts, total, err := s.posts.ListPublished(ctx, params)
		if err != nil {
			return nil, err
		}
		if posts == nil {
			posts = []model.Post{}
		}
		return &query.Page{
			Data:       posts,
			Pagination: query.NewPagination(params.Page, params.Limit, total),
		}, nil
	})
	if err != nil {
		return nil, fromStore("list posts", err)
	}
	return page, nil
}

// Get returns a post by id or slug. A UUID-shaped key is looked up as an id,
// anything else as a slug. Drafts are visible only to their author and admins.
func (s *PostService) Get(ctx context.Context, actor *model.AuthUser, idOrSlug string) (*model.Post, error) {
	var (
		p   *model.Post
		err error
	)
	if isID(idOrSlug) {
		p, err = s.posts.GetByID(ctx, idOrSlug)
	} else {
		p, err = s.posts.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, fromStore("get post", err)
	}

	if !p.Published && !canEdit(actor, p) {
		return nil, ErrNotFound
	}
	return p, nil
}

// ensureSlugFree returns ErrConflict when another post uses slug.
func (s *PostService) ensureSlugFree(ctx context.Context, slug, exceptID string) error {
	taken, err := s.posts.SlugTaken(ctx, slug, exceptID)
	if err != nil {
		return fromStore("check slug", err)
	}
	if taken {
		return fmt.Errorf("%w: slug %q is already in use", ErrConflict, slug)
	}
	return nil
}

// afterWrite drops cached listings, announces the change and records it.
// None of these can fail the write that already happened.
func (s *PostService) afterWrite(ctx context.Context, eventType string, p *model.Post, message string) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate post cache", "error", err)
	}

	data := webhook.PostEventData{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		AuthorID:    p.AuthorID,
		Published:   p.Published,
		PublishedAt: p.PublishedAt,
	}
	if err := s.publisher.DispatchEvent(ctx, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", "event_type", eventType, "error", err)
	}

	if s.audit != nil {
		_ = s.audit.LogInfo(ctx, model.EventCategoryPost, message, map[string]any{
			"postId": p.ID,
			"slug":   p.Slug,
		})
	}
}

// canEdit reports whether actor may see drafts of, update or delete p.
func canEdit(actor *model.AuthUser, p *model.Post) bool {
	return actor.IsAdmin() || actor.Owns(p.AuthorID)
}

// isID reports whether key looks like a post id rather than a slug.
func isID(key string) bool {
	return uuid.Validate(key) == nil && strings.Count(key, "-") == 4
}
