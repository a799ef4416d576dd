// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Supported upload MIME types
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypeJPG  = "image/jpg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// Image storage folders
const (
	FolderDrafts = "drafts"
	FolderPosts  = "posts"
)

// Image is an uploaded file tracked by its public identifier.
type Image struct {
	PublicID  string    `json:"publicId"`
	OwnerID   string    `json:"ownerId"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	URL       string    `json:"url"`
	Draft     bool      `json:"draft"`
	CreatedAt time.Time `json:"createdAt"`
}

// ImageUpload is returned to the client after a successful upload.
type ImageUpload struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
