// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package validation checks post and content block input before it is
// persisted. Every violation is collected and reported with a field path
// such as "content.2.language"; nothing is applied partially.
package validation

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/util"
)

// FieldError is a single violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a batch of violations. A nil or empty Errors means valid input.
type Errors []FieldError

// Error implements error.
func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Map returns the violations keyed by field path. The first message per
// field wins.
func (e Errors) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, fe := range e {
		if _, ok := m[fe.Field]; !ok {
			m[fe.Field] = fe.Message
		}
	}
	return m
}

// Has reports whether field has at least one violation.
func (e Errors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the sorted, de-duplicated field paths.
func (e Errors) Fields() []string {
	m := e.Map()
	out := make([]string, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Err returns e as an error, or nil when there are no violations.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func (e *Errors) add(field, format string, args ...any) {
	*e = append(*e, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Messages follow "<Label> <rule>" wording shared with the editor client.
func (e *Errors) required(field, label string) {
	e.add(field, "%s is required", label)
}

func (e *Errors) maxLength(field, label string, limit int) {
	e.add(field, "%s must be less than or equal to %d characters", label, limit)
}

// IsAbsoluteURL reports whether s parses as an absolute http or https URL.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CreatePost validates a new post. Title, slug and content are required.
func CreatePost(in model.PostInput) Errors {
	var errs Errors
	checkTitle(&errs, in.Title)
	checkSlug(&errs, in.Slug)
	checkContent(&errs, in.Content)
	checkExcerpt(&errs, in.Excerpt)
	checkCoverImage(&errs, in.CoverImage)
	checkTags(&errs, in.Tags)
	return errs
}

// UpdatePost validates a partial update. Only supplied fields are checked,
// but each supplied field must be well formed.
func UpdatePost(in model.PostUpdate) Errors {
	var errs Errors
	if in.Title != nil {
		checkTitle(&errs, *in.Title)
	}
	if in.Slug != nil {
		checkSlug(&errs, *in.Slug)
	}
	if in.Content != nil {
		checkContent(&errs, in.Content)
	}
	if in.Excerpt != nil {
		checkExcerpt(&errs, *in.Excerpt)
	}
	if in.CoverImage != nil {
		checkCoverImage(&errs, *in.CoverImage)
	}
	if in.Tags != nil {
		checkTags(&errs, *in.Tags)
	}
	return errs
}

// Blocks validates a content sequence on its own.
func Blocks(blocks []model.Block) Errors {
	var errs Errors
	checkContent(&errs, blocks)
	return errs
}

func checkTitle(errs *Errors, title string) {
	switch {
	case strings.TrimSpace(title) == "":
		errs.required("title", "Title")
	case utf8.RuneCountInString(title) > model.TitleMaxLength:
		errs.maxLength("title", "Title", model.TitleMaxLength)
	}
}

func checkSlug(errs *Errors, slug string) {
	switch {
	case slug == "":
		errs.required("slug", "Slug")
	case !util.IsValidSlug(slug):
		errs.add("slug", "Slug must be valid")
	}
}

func checkContent(errs *Errors, blocks []model.Block) {
	if len(blocks) == 0 {
		errs.add("content", "Content must contain at least one item")
		return
	}
	for i, b := range blocks {
		checkBlock(errs, fmt.Sprintf("content.%d", i), b)
	}
}

func checkExcerpt(errs *Errors, excerpt string) {
	if utf8.RuneCountInString(excerpt) > model.ExcerptMaxLength {
		errs.maxLength("excerpt", "Excerpt", model.ExcerptMaxLength)
	}
}

func checkCoverImage(errs *Errors, cover string) {
	if cover != "" && !IsAbsoluteURL(cover) {
		errs.add("coverImage", "Cover image must be a valid URL")
	}
}

func checkTags(errs *Errors, tags []string) {
	if len(tags) > model.MaxTags {
		errs.add("tags", "Tags must contain at most %d items", model.MaxTags)
	}
	for i, tag := range tags {
		field := fmt.Sprintf("tags.%d", i)
		switch {
		case strings.TrimSpace(tag) == "":
			errs.required(field, "Tag")
		case utf8.RuneCountInString(strings.TrimSpace(tag)) > model.TagMaxLength:
			errs.maxLength(field, "Tag", model.TagMaxLength)
		}
	}
}

// NormalizeTags trims and lower-cases tags and drops empties and duplicates,
// preserving first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
