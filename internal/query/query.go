// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package query turns listing parameters into filters and pagination
// metadata. Matches and Sort define the listing semantics; store
// implementations translate them into SQL and must agree with them.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/olegiv/blockpress/internal/model"
)

// Listing bounds
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 50
)

// searchSeparator joins fields in SearchText so a needle cannot span two fields.
const searchSeparator = "\x1f"

// Params selects a page of published posts.
type Params struct {
	Page   int
	Limit  int
	Tag    string
	Search string
	Slug   string // single-post lookup, bypasses pagination
}

// ParseParams reads page, limit, tag, search and slug from a query string.
// Missing or malformed numbers fall back to the defaults.
func ParseParams(v url.Values) Params {
	return Params{
		Page:   atoiDefault(v.Get("page"), DefaultPage),
		Limit:  atoiDefault(v.Get("limit"), DefaultLimit),
		Tag:    v.Get("tag"),
		Search: v.Get("search"),
		Slug:   v.Get("slug"),
	}.Normalize()
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// Normalize clamps Page to >= 1 and Limit to [1, MaxLimit], and trims the
// text filters.
func (p Params) Normalize() Params {
	p.Page = max(p.Page, 1)
	p.Limit = min(max(p.Limit, 1), MaxLimit)
	p.Tag = strings.TrimSpace(p.Tag)
	p.Search = strings.TrimSpace(p.Search)
	p.Slug = strings.TrimSpace(p.Slug)
	return p
}

// Offset returns the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TagNeedle returns the lower-cased tag filter.
func (p Params) TagNeedle() string {
	return strings.ToLower(p.Tag)
}

// SearchNeedle returns the lower-cased search filter.
func (p Params) SearchNeedle() string {
	return strings.ToLower(p.Search)
}

// CacheKey returns a stable key for the normalized parameters.
func (p Params) CacheKey() string {
	p = p.Normalize()
	return fmt.Sprintf("posts:list:p=%d:l=%d:t=%s:q=%s:s=%s",
		p.Page, p.Limit, url.QueryEscape(p.TagNeedle()), url.QueryEscape(p.SearchNeedle()), url.QueryEscape(p.Slug))
}

// SearchText is the lower-cased haystack that search matches against:
// title, excerpt and tags.
func SearchText(p *model.Post) string {
	parts := make([]string, 0, 2+len(p.Tags))
	parts = append(parts, strings.ToLower(p.Title), strings.ToLower(p.Excerpt))
	for _, t := range p.Tags {
		parts = append(parts, strings.ToLower(t))
	}
	return strings.Join(parts, searchSeparator)
}

// Matches reports whether a post belongs in a public listing for params.
// Tag and search filters combine conjunctively.
func Matches(p *model.Post, params Params) bool {
	if !p.Published {
		return false
	}
	if params.Tag != "" && !p.HasTag(params.Tag) {
		return false
	}
	if needle := params.SearchNeedle(); needle != "" && !strings.Contains(SearchText(p), needle) {
		return false
	}
	return true
}

// Sort orders posts by publish time, newest first. Ties keep their
// existing relative order.
func Sort(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes TotalPages as ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// Page is a listing result.
type Page struct {
	Data       []model.Post `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// Single wraps one post as a one-element page.
func Single(p model.Post) Page {
	return Page{
		Data:       []model.Post{p},
		Pagination: Pagination{Page: 1, Limit: 1, Total: 1, TotalPages: 1},
	}
}

// Apply filters, sorts and pages posts in memory. posts must be in
// insertion order.
func Apply(posts []model.Post, params Params) Page {
	params = params.Normalize()

	matched := make([]model.Post, 0, len(posts))
	for i := range posts {
		if Matches(&posts[i], params) {
			matched = append(matched, posts[i])
		}
	}
	Sort(matched)

	total := len(matched)
	start := min(params.Offset(), total)
	end := min(start+params.Limit, total)

	return Page{
		Data:       matched[start:end],
		Pagination: NewPagination(params.Page, params.Limit, total),
	}
}
