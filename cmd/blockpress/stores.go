// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/olegiv/blockpress/internal/config"
	"github.com/olegiv/blockpress/internal/service"
	"github.com/olegiv/blockpress/internal/store"
	"github.com/olegiv/blockpress/internal/store/postgres"
)

// repositories groups the storage backends chosen by BLOCKPRESS_DB_DRIVER.
type repositories struct {
	users  service.UserRepository
	posts  service.PostRepository
	images service.ImageRepository
	events service.EventRepository

	ping  func(ctx context.Context) error
	close func()
}

// openRepositories connects to the configured database and runs migrations.
func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.UsePostgres() {
		slog.Info("initializing database", "driver", "postgres")
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("running database migrations")
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		return &repositories{
			users:  postgres.NewUserStore(pool),
			posts:  postgres.NewPostStore(pool),
			images: postgres.NewImageStore(pool),
			events: postgres.NewEventStore(pool),
			ping:   pool.Ping,
			close:  pool.Close,
		}, nil
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "driver", "sqlite", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	slog.Info("running database migrations")
	if err := store.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &repositories{
		users:  store.NewUserStore(db),
		posts:  store.NewPostStore(db),
		images: store.NewImageStore(db),
		events: store.NewEventStore(db),
		ping:   db.PingContext,
		close: func() {
			if err := db.Close(); err != nil {
				slog.Error("error closing database connection", "error", err)
			}
		},
	}, nil
}
