// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the business rules of blockpress: post authoring,
// image uploads, authentication and the audit event log. Callers pass the
// acting user explicitly; a nil *model.AuthUser is an anonymous visitor.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/query"
)

// EventService provides event logging functionality.
type EventService struct {
	repo   EventRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(repo EventRepository, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{repo: repo, logger: logger, now: time.Now}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.repo.Create(ctx, &model.Event{
		Level:     level,
		Category:  category,
		Message:   message,
		Metadata:  metadataJSON,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Debug("failed to log event", "error", err)
		return err
	}
	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, metadata)
}

// List returns one page of the event log, newest first. Admin only.
func (s *EventService) List(ctx context.Context, actor *model.AuthUser, level string, params query.Params) ([]model.Event, query.Pagination, error) {
	if actor == nil {
		return nil, query.Pagination{}, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, query.Pagination{}, ErrForbidden
	}
	if level != "" && !model.IsValidEventLevel(level) {
		return nil, query.Pagination{}, invalidField("level", "Level must be one of info, warning, error")
	}

	params = params.Normalize()
	events, total, err := s.repo.List(ctx, level, params.Limit, params.Offset())
	if err != nil {
		return nil, query.Pagination{}, fromStore("list events", err)
	}
	return events, query.NewPagination(params.Page, params.Limit, total), nil
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.repo.DeleteBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fromStore("delete old events", err)
	}
	return n, nil
}
