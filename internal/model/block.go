// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// BlockType discriminates the content block variants.
type BlockType string

// Content block types
const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockQuote     BlockType = "quote"
	BlockCode      BlockType = "code"
	BlockImage     BlockType = "image"
	BlockVideo     BlockType = "video"
	BlockEmbed     BlockType = "embed"
	BlockDivider   BlockType = "divider"
)

// BlockTypes returns every known block type in canonical order.
func BlockTypes() []BlockType {
	return []BlockType{
		BlockParagraph, BlockImage, BlockVideo, BlockHeading,
		BlockQuote, BlockCode, BlockDivider, BlockEmbed,
	}
}

// Valid reports whether t is one of the known block types.
func (t BlockType) Valid() bool {
	switch t {
	case BlockParagraph, BlockHeading, BlockQuote, BlockCode,
		BlockImage, BlockVideo, BlockEmbed, BlockDivider:
		return true
	}
	return false
}


// RequiresURL reports whether blocks of this type point at external media.
func (t BlockType) RequiresURL() bool {
	return t == BlockImage || t == BlockVideo || t == BlockEmbed
}

// EmbedType names the platform an embed points at.
type EmbedType string

// Embed platforms
const (
	EmbedYouTube EmbedType = "youtube"
	EmbedTikTok  EmbedType = "tiktok"
	EmbedUnknown EmbedType = "unknown"
)

// EmbedTypes returns the accepted embed platforms.
func EmbedTypes() []EmbedType {
	return []EmbedType{EmbedYouTube, EmbedTikTok, EmbedUnknown}
}

// Valid reports whether e is an accepted embed platform.
func (e EmbedType) Valid() bool {
	switch e {
	case EmbedYouTube, EmbedTikTok, EmbedUnknown:
		return true
	}
	return false
}

// DetectEmbedType guesses the platform from a media URL.
func DetectEmbedType(url string) EmbedType {
	switch {
	case strings.Contains(url, "youtube.com"), strings.Contains(url, "youtu.be"):
		return EmbedYouTube
	case strings.Contains(url, "tiktok.com"):
		return EmbedTikTok
	default:
		return EmbedUnknown
	}
}

// Block is one typed unit of post body content. Which fields are
// meaningful depends on Type.
type Block struct {
	Type      BlockType `json:"type"`
	Content   string    `json:"content,omitempty"`
	URL       string    `json:"url,omitempty"`
	PublicID  string    `json:"publicId,omitempty"`
	AltText   string    `json:"altText,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	Language  string    `json:"language,omitempty"`
	Author    string    `json:"author,omitempty"`
	EmbedType EmbedType `json:"embedType,omitempty"`
}

// WordCount returns the number of whitespace-delimited tokens in the block content.
func (b Block) WordCount() int {
	return len(strings.Fields(b.Content))
}
