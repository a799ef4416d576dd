// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/olegiv/blockpress/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssueVerify(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, 24*time.Hour)
	user := &model.User{ID: "u1", Email: "a@example.com", Role: model.RoleAdmin}

	tok, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != "u1" || got.Email != "a@example.com" || !got.IsAdmin() {
		t.Errorf("Verify = %+v", got)
	}
}

func TestTokenVerify_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	user := &model.User{ID: "u1", Email: "a@example.com", Role: model.RoleUser}

	good, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	expired := NewTokenIssuer(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue(user)

	otherKey, _ := NewTokenIssuer("another-secret-another-secret-xx", time.Hour).Issue(user)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", old},
		{"wrong key", otherKey},
		{"alg none", none},
		{"tampered", good + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
