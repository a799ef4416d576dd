// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/blockpress/internal/cache"
)

func TestClearCache(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	require.NoError(t, f.cache.Set(ctx, "posts:list:p=1", []byte("{}"), 0))
	_, _ = f.cache.Get(ctx, "posts:list:p=1")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, "/api/v1/cache", f.authorToken, nil).Code)

	rr := f.do(t, http.MethodDelete, "/api/v1/cache", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := decodeData[struct {
		Cleared bool        `json:"cleared"`
		Stats   cache.Stats `json:"stats"`
	}](t, rr)
	assert.True(t, body.Cleared)
	assert.Zero(t, body.Stats.Hits)
	assert.Zero(t, body.Stats.Items)

	_, err := f.cache.Get(ctx, "posts:list:p=1")
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))
}
