// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for blockpress.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/olegiv/blockpress/internal/auth"
	"github.com/olegiv/blockpress/internal/model"
	"github.com/olegiv/blockpress/internal/store"
)

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent creates a completely silent test logger (error level only).
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestDB creates a migrated SQLite database in the test's temp directory.
// It is closed when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "blockpress-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(t.Context(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with the given role and password.
func CreateUser(t *testing.T, db *sql.DB, id, email, password, role string) *model.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Now().UTC()
	u := &model.User{
		ID:           id,
		Email:        email,
		Name:         id,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.NewUserStore(db).Create(context.Background(), u); err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return u
}

// Admin returns an admin caller with the given id.
func Admin(id string) *model.AuthUser {
	return &model.AuthUser{ID: id, Email: id + "@example.com", Role: model.RoleAdmin}
}

// Author returns a non-admin caller.
func Author(id string) *model.AuthUser {
	return &model.AuthUser{ID: id, Email: id + "@example.com", Role: model.RoleUser}
}
