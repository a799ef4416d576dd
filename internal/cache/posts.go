// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/olegiv/blockpress/internal/query"
)

// postsPrefix namespaces every cached listing.
const postsPrefix = "posts:"

// PostCache caches public listing pages by their normalized parameters.
// Any post write drops every cached page.
//
// Keys carry a generation that Invalidate advances, so a page loaded while
// a write was in flight is stored under a key no later read uses. With a
// shared Redis cache the generation is per instance: another instance's
// overlapping load can still serve a stale page until the TTL expires.
type PostCache struct {
	pages *TypedCache[query.Page]
	base  Cacher
	gen   atomic.Uint64
}

// NewPostCache creates a PostCache over c.
func NewPostCache(c Cacher, ttl time.Duration) *PostCache {
	return &PostCache{pages: NewTypedCache[query.Page](c, ttl), base: c}
}

func (pc *PostCache) key(params query.Params) string {
	return postsPrefix + "g" + strconv.FormatUint(pc.gen.Load(), 10) + ":" +
		strings.TrimPrefix(params.CacheKey(), postsPrefix)
}

// Page returns the cached page for params, or loads and caches it.
func (pc *PostCache) Page(ctx context.Context, params query.Params, load func() (*query.Page, error)) (*query.Page, error) {
	return pc.pages.GetOrSet(ctx, pc.key(params), load)
}

// Invalidate drops all cached listings.
func (pc *PostCache) Invalidate(ctx context.Context) error {
	pc.gen.Add(1)
	return pc.base.DeleteByPrefix(ctx, postsPrefix)
}
