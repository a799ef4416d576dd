// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/blockpress/internal/imaging"
	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/validation"
	"github.com/olegiv/blockpress/internal/webhook"
)

// Upload and cleanup limits
const (
	MaxUploadSize    = 10 * 1024 * 1024 // 10MB
	DraftMaxAge      = 7 * 24 * time.Hour
	CleanupBatchSize = 100
)

// Upload validation messages
const (
	msgImageRequired   = "Image is required"
	msgImageNameNeeded = "Image name is required"
	msgImageType       = "Only JPEG, PNG, GIF, or WEBP images are allowed"
	msgImageUnreadable = "Image could not be processed"
)

// AllowedMimeTypes defines the MIME types that can be uploaded.
var AllowedMimeTypes = map[string]bool{
	model.MimeTypeJPEG: true,
	model.MimeTypeJPG:  true,
	model.MimeTypePNG:  true,
	model.MimeTypeGIF:  true,
	model.MimeTypeWebP: true,
}

// MediaService handles image uploads and the draft image lifecycle.
type MediaService struct {
	images    ImageRepository
	posts     PostRepository
	processor *imaging.Processor
	publisher Publisher
	logger    *slog.Logger
	maxSize   int64
	now       func() time.Time
	newID     func() string
}

// NewMediaService creates a new media service. A nil publisher discards events.
func NewMediaService(images ImageRepository, posts PostRepository, processor *imaging.Processor, publisher Publisher, logger *slog.Logger) *MediaService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaService{
		images:    images,
		posts:     posts,
		processor: processor,
		publisher: publisher,
		logger:    logger,
		maxSize:   MaxUploadSize,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// SetMaxUploadSize overrides the upload size limit.
func (s *MediaService) SetMaxUploadSize(n int64) {
	if n > 0 {
		s.maxSize = n
	}
}

// MaxUploadSize returns the upload size limit in bytes.
func (s *MediaService) MaxUploadSize() int64 { return s.maxSize }

func (s *MediaService) sizeMessage() string {
	return fmt.Sprintf("Image size must be less than %dMB", s.maxSize/(1024*1024))
}

// Upload stores an image as a draft owned by actor. size is the size the
// client declared; the stream itself is also capped.
func (s *MediaService) Upload(ctx context.Context, actor *model.AuthUser, filename, contentType string, size int64, r io.Reader) (*model.ImageUpload, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if r == nil {
		return nil, invalidField("image", msgImageRequired)
	}

	mimeType := normalizeMimeType(contentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = getMimeTypeFromExtension(filename)
	}

	var errs validation.Errors
	if strings.TrimSpace(filename) == "" {
		errs = append(errs, validation.FieldError{Field: "name", Message: msgImageNameNeeded})
	}
	if !AllowedMimeTypes[mimeType] {
		errs = append(errs, validation.FieldError{Field: "type", Message: msgImageType})
	}
	if size > s.maxSize {
		errs = append(errs, validation.FieldError{Field: "size", Message: s.sizeMessage()})
	}
	if err := newValidationError(errs); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, &UpstreamError{Op: "read upload", Err: err}
	}
	if int64(len(data)) > s.maxSize {
		return nil, invalidField("size", s.sizeMessage())
	}
	if len(data) == 0 {
		return nil, invalidField("image", msgImageRequired)
	}

	publicID := s.newID()
	res, err := s.processor.Process(bytes.NewReader(data), model.FolderDrafts, actor.ID, publicID)
	switch {
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return nil, invalidField("type", msgImageType)
	case errors.Is(err, imaging.ErrInvalidImage):
		return nil, invalidField("image", msgImageUnreadable)
	case err != nil:
		return nil, &UpstreamError{Op: "store image", Err: err}
	}

	img := &model.Image{
		PublicID:  publicID,
		OwnerID:   actor.ID,
		Filename:  sanitizeFilename(filename),
		MimeType:  res.MimeType,
		Size:      res.Size,
		Width:     res.Width,
		Height:    res.Height,
		URL:       s.processor.URL(res.Key),
		Draft:     true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.images.Create(ctx, img); err != nil {
		_ = s.processor.Remove(res.Key)
		return nil, fromStore("create image record", err)
	}

	s.publish(ctx, webhook.EventImageUploaded, webhook.ImageEventData{
		PublicID: img.PublicID,
		URL:      img.URL,
		OwnerID:  img.OwnerID,
		MimeType: img.MimeType,
		Size:     img.Size,
	})

	return &model.ImageUpload{URL: img.URL, PublicID: img.PublicID, Width: img.Width, Height: img.Height}, nil
}

// Delete removes an image record and its file. Only the owner or an admin
// may delete an image.
func (s *MediaService) Delete(ctx context.Context, actor *model.AuthUser, publicID string) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	img, err := s.images.Get(ctx, publicID)
	if err != nil {
		return fromStore("get image", err)
	}
	if !actor.Owns(img.OwnerID) && !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.remove(ctx, img)
}

// remove deletes the record first, then the file. A file that cannot be
// removed is logged and left behind.
func (s *MediaService) remove(ctx context.Context, img *model.Image) error {
	if err := s.images.Delete(ctx, img.PublicID); err != nil {
		return fromStore("delete image record", err)
	}
	if key, ok := s.processor.KeyFromURL(img.URL); ok {
		if err := s.processor.Remove(key); err != nil {
			s.logger.Warn("failed to remove image file", "public_id", img.PublicID, "error", err)
		}
	}
	return nil
}

// Promote moves the draft images referenced by image blocks into post
// storage and returns blocks with updated URLs. A block whose image cannot
// be moved is returned unchanged.
func (s *MediaService) Promote(ctx context.Context, userID string, blocks []model.Block) []model.Block {
	out := slices.Clone(blocks)
	for i := range out {
		if out[i].Type != model.BlockImage {
			continue
		}
		out[i].URL = s.PromoteURL(ctx, userID, out[i].URL)
	}
	return out
}

// PromoteURL moves a single draft image owned by userID and returns its new
// URL. Any other URL, or a failed move, is returned unchanged.
func (s *MediaService) PromoteURL(ctx context.Context, userID, url string) string {
	if !strings.Contains(url, "/"+model.FolderDrafts+"/") {
		return url
	}
	key, ok := s.processor.KeyFromURL(url)
	if !ok || userID == "" || !strings.HasPrefix(key, path.Join(model.FolderDrafts, userID)+"/") {
		return url
	}

	newKey, err := s.processor.Move(key, model.FolderPosts)
	if err != nil {
		s.logger.Warn("image migration failed", "url", url, "error", err)
		return url
	}
	newURL := s.processor.URL(newKey)

	img, err := s.images.GetByURL(ctx, url)
	if err != nil {
		s.logger.Warn("promoted image has no record", "url", url, "error", err)
		return newURL
	}
	if err := s.images.MarkPromoted(ctx, img.PublicID, newURL); err != nil {
		s.logger.Warn("failed to mark image promoted", "public_id", img.PublicID, "error", err)
	}
	return newURL
}

// PublicIDForURL returns the publicId of the uploaded image served at url,
// or "" when url is not one of ours.
func (s *MediaService) PublicIDForURL(ctx context.Context, url string) string {
	if _, ok := s.processor.KeyFromURL(url); !ok {
		return ""
	}
	img, err := s.images.GetByURL(ctx, url)
	if err != nil {
		return ""
	}
	return img.PublicID
}

// CleanupDetail reports the outcome for one draft image.
type CleanupDetail struct {
	PublicID string `json:"publicId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// CleanupResult summarises a draft cleanup run. Total counts every draft
// examined, including the ones still too young or still referenced.
type CleanupResult struct {
	Deleted int             `json:"deleted"`
	Failed  int             `json:"failed"`
	Total   int             `json:"total"`
	Details []CleanupDetail `json:"details"`
}

// CleanupDrafts deletes draft images older than olderThan that no post
// references, in batches of CleanupBatchSize.
func (s *MediaService) CleanupDrafts(ctx context.Context, olderThan time.Duration) (*CleanupResult, error) {
	used, err := s.posts.ImageURLs(ctx)
	if err != nil {
		return nil, fromStore("collect used image URLs", err)
	}
	drafts, err := s.images.ListDrafts(ctx, s.now().UTC())
	if err != nil {
		return nil, fromStore("list draft images", err)
	}

	cutoff := s.now().UTC().Add(-olderThan)
	var unused []model.Image
	for _, img := range drafts {
		if _, ok := used[img.URL]; ok || !img.CreatedAt.Before(cutoff) {
			continue
		}
		unused = append(unused, img)
	}

	result := &CleanupResult{Total: len(drafts), Details: []CleanupDetail{}}
	for batch := range slices.Chunk(unused, CleanupBatchSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		for i := range batch {
			detail := CleanupDetail{PublicID: batch[i].PublicID, Success: true}
			if err := s.remove(ctx, &batch[i]); err != nil {
				detail.Success = false
				detail.Error = err.Error()
				result.Failed++
			} else {
				result.Deleted++
			}
			result.Details = append(result.Details, detail)
		}
	}

	if result.Deleted > 0 || result.Failed > 0 {
		s.logger.Info("draft image cleanup finished",
			"deleted", result.Deleted, "failed", result.Failed, "total", result.Total)
	}
	return result, nil
}

// CleanupDraftsAs runs CleanupDrafts on behalf of an admin.
func (s *MediaService) CleanupDraftsAs(ctx context.Context, actor *model.AuthUser) (*CleanupResult, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.CleanupDrafts(ctx, DraftMaxAge)
}

func (s *MediaService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.DispatchEvent(ctx, eventType, data); err != nil {
		s.logger.Warn("failed to publish event", "event_type", eventType, "error", err)
	}
}

// normalizeMimeType strips parameters and lower-cases a Content-Type value.
func normalizeMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	replacer := strings.NewReplacer(
		" ", "-",
		"'", "",
		"\"", "",
		"<", "",
		">", "",
		"&", "",
		"#", "",
		"?", "",
		"%", "",
	)
	filename = replacer.Replace(filename)
	if filename == "." || filename == "/" {
		filename = ""
	}
	return filename
}

func getMimeTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return model.MimeTypeJPEG
	case ".png":
		return model.MimeTypePNG
	case ".gif":
		return model.MimeTypeGIF
	case ".webp":
		return model.MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}
