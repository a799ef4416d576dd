// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook fans post and image events out to HTTP webhooks and NATS.
package webhook

import (
	"time"
)

// Event types
const (
	EventPostCreated   = "post.created"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
	EventImageUploaded = "image.uploaded"
)

// Event represents an event to be delivered.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new event.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// PostEventData contains data for post events.
type PostEventData struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Slug        string     `json:"slug,omitempty"`
	AuthorID    string     `json:"authorId,omitempty"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// ImageEventData contains data for image events.
type ImageEventData struct {
	PublicID string `json:"publicId"`
	URL      string `json:"url"`
	OwnerID  string `json:"ownerId"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}
