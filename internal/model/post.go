// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Post limits
const (
	TitleMaxLength   = 120
	ExcerptMaxLength = 300
	TagMaxLength     = 25
	MaxTags          = 10
	WordsPerMinute   = 265
)

// AuthorRef is the author summary embedded in post responses.
type AuthorRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Post is the aggregate root for blog content.
type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Content     []Block    `json:"content"`
	Excerpt     string     `json:"excerpt"`
	CoverImage  string     `json:"coverImage,omitempty"`
	AuthorID    string     `json:"-"`
	Author      AuthorRef  `json:"author"`
	Tags        []string   `json:"tags"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ReadingTime int        `json:"readingTime"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PostInput carries the fields of a new post.
type PostInput struct {
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Content    []Block  `json:"content"`
	Excerpt    string   `json:"excerpt,omitempty"`
	CoverImage string   `json:"coverImage,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Published  bool     `json:"published"`
}

// PostUpdate carries a partial post update. Nil fields are left unchanged.
type PostUpdate struct {
	Title      *string   `json:"title,omitempty"`
	Slug       *string   `json:"slug,omitempty"`
	Content    []Block   `json:"content,omitempty"`
	Excerpt    *string   `json:"excerpt,omitempty"`
	CoverImage *string   `json:"coverImage,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Published  *bool     `json:"published,omitempty"`
}

// DeriveExcerpt returns the trimmed text of the first paragraph or heading
// block, truncated to ExcerptMaxLength characters.
func DeriveExcerpt(blocks []Block) string {
	for _, b := range blocks {
		if b.Type != BlockParagraph && b.Type != BlockHeading {
			continue
		}
		text := strings.TrimSpace(b.Content)
		if utf8.RuneCountInString(text) > ExcerptMaxLength {
			text = strings.TrimSpace(string([]rune(text)[:ExcerptMaxLength]))
		}
		return text
	}
	return ""
}

// ComputeReadingTime returns ceil(words / WordsPerMinute) summed over all blocks.
func ComputeReadingTime(blocks []Block) int {
	words := 0
	for _, b := range blocks {
		words += b.WordCount()
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}

// ApplyContent replaces the post body and recomputes reading time.
func (p *Post) ApplyContent(blocks []Block) {
	p.Content = blocks
	p.ReadingTime = ComputeReadingTime(blocks)
}

// EnsureExcerpt derives the excerpt from content when none was supplied.
func (p *Post) EnsureExcerpt() {
	if strings.TrimSpace(p.Excerpt) == "" {
		p.Excerpt = DeriveExcerpt(p.Content)
	}
}

// SetPublished updates the publication flag. PublishedAt records the first
// publication only and is never cleared or moved afterwards.
func (p *Post) SetPublished(published bool, now time.Time) {
	if published && !p.Published && p.PublishedAt == nil {
		t := now.UTC()
		p.PublishedAt = &t
	}
	p.Published = published
}

// HasTag reports whether the post carries tag, ignoring case.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ImageURLs returns the URLs of all image blocks and the cover image.
func (p *Post) ImageURLs() []string {
	var urls []string
	if p.CoverImage != "" {
		urls = append(urls, p.CoverImage)
	}
	for _, b := range p.Content {
		if b.Type == BlockImage && b.URL != "" {
			urls = append(urls, b.URL)
		}
	}
	return urls
}
