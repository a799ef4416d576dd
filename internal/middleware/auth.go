// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, rate limiting and response hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/olegiv/blockpress/internal/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyUser holds the authenticated caller.
const ContextKeyUser ContextKey = "user"

// TokenCookieName is the httpOnly cookie carrying the session token.
const TokenCookieName = "token"

// TokenVerifier resolves a session token to its caller.
type TokenVerifier interface {
	Verify(token string) (*model.AuthUser, error)
}

// Authenticate loads the caller from a Bearer token or the token cookie.
// Requests without a valid token continue anonymously; RequireAuth and
// RequireAdmin decide whether that is acceptable.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := v.Verify(token)
			if err != nil {
				slog.Debug("ignoring invalid token", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// TokenFromRequest returns the Bearer token, falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if token, ok := BearerToken(r); ok {
		return token
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.AuthUser) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// GetUser retrieves the current caller from the request context.
// Returns nil for anonymous requests.
func GetUser(r *http.Request) *model.AuthUser {
	user, _ := r.Context().Value(ContextKeyUser).(*model.AuthUser)
	return user
}

// GetUserID returns the current caller's ID, or "" when anonymous.
func GetUserID(r *http.Request) string {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return ""
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r) == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
			return
		}
		if !user.IsAdmin() {
			slog.Warn("access denied",
				"status", http.StatusForbidden,
				"method", r.Method,
				"path", r.URL.Path,
				"user_id", user.ID,
				"user_role", user.Role,
				"remote_addr", r.RemoteAddr,
			)
			WriteAPIError(w, http.StatusForbidden, "forbidden", "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
