// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/blockpress/internal/model"
)

// stubVerifier accepts a fixed set of tokens.
type stubVerifier map[string]*model.AuthUser

func (s stubVerifier) Verify(token string) (*model.AuthUser, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid token")
}

var (
	testAdmin  = &model.AuthUser{ID: "admin1", Email: "admin@example.com", Role: model.RoleAdmin}
	testAuthor = &model.AuthUser{ID: "author1", Email: "author@example.com", Role: model.RoleUser}
	verifier   = stubVerifier{"admin-token": testAdmin, "author-token": testAuthor}
)

// captureUser records the caller seen by the final handler.
func captureUser(got **model.AuthUser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetUser(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   *model.AuthUser
	}{
		{"no credentials", "", "", nil},
		{"bearer", "Bearer admin-token", "", testAdmin},
		{"bearer lower case scheme", "bearer author-token", "", testAuthor},
		{"cookie", "", "author-token", testAuthor},
		{"bearer wins over cookie", "Bearer admin-token", "author-token", testAdmin},
		{"invalid bearer", "Bearer nope", "", nil},
		{"basic scheme ignored", "Basic admin-token", "", nil},
		{"invalid cookie", "", "nope", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.AuthUser
			handler := Authenticate(verifier)(captureUser(&got))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if got != tt.want {
				t.Errorf("user = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	var got *model.AuthUser
	handler := Authenticate(verifier)(RequireAuth(captureUser(&got)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/images", nil)
	req.Header.Set("Authorization", "Bearer author-token")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("author status = %d, want 200", rr.Code)
	}
	if got != testAuthor {
		t.Errorf("user = %+v", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"author", "author-token", http.StatusForbidden},
		{"admin", "admin-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *model.AuthUser
			handler := Authenticate(verifier)(RequireAdmin(captureUser(&got)))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestGetUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetUserID(req); id != "" {
		t.Errorf("anonymous GetUserID = %q", id)
	}
	req = req.WithContext(WithUser(req.Context(), testAuthor))
	if id := GetUserID(req); id != "author1" {
		t.Errorf("GetUserID = %q, want author1", id)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		got, ok := BearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
