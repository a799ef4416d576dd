// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/olegiv/blockpress/internal/model"
)

// EventStore persists the audit event log.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates an EventStore.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// Create appends an event and sets its id.
func (s *EventStore) Create(ctx context.Context, e *model.Event) error {
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (level, category, message, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Level, e.Category, e.Message, e.Metadata, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading event id: %w", err)
	}
	e.ID = id
	return nil
}

// List returns events newest first, optionally filtered by level, and the
// total count for that filter.
func (s *EventStore) List(ctx context.Context, level string, limit, offset int) ([]model.Event, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE (? = '' OR level = ?)`, level, level,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, category, message, metadata, created_at FROM events
		WHERE (? = '' OR level = ?) ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		level, level, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// DeleteBefore removes events created before cutoff.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return res.RowsAffected()
}
