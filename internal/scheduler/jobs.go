// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/blockpress/internal/service"
)

// Names of the built-in maintenance jobs.
const (
	JobDraftCleanup = "draft-image-cleanup"
	JobEventPrune   = "event-log-prune"
)

const jobTimeout = 10 * time.Minute

// DraftCleaner deletes unreferenced draft images.
type DraftCleaner interface {
	CleanupDrafts(ctx context.Context, olderThan time.Duration) (*service.CleanupResult, error)
}

// EventPruner deletes old event log entries.
type EventPruner interface {
	DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceConfig configures the built-in jobs. A nil dependency or a
// zero age disables the matching job.
type MaintenanceConfig struct {
	Schedule       string
	Drafts         DraftCleaner
	DraftMaxAge    time.Duration
	Events         EventPruner
	EventRetention time.Duration
}

// RegisterMaintenance adds the draft image cleanup and event pruning jobs.
func RegisterMaintenance(r *Registry, cfg MaintenanceConfig, logger *slog.Logger) error {
	if cfg.Drafts != nil && cfg.DraftMaxAge > 0 {
		err := r.Register(JobDraftCleanup, "Delete draft images no post refers to", cfg.Schedule, jobTimeout,
			func(ctx context.Context) error {
				res, err := cfg.Drafts.CleanupDrafts(ctx, cfg.DraftMaxAge)
				if err != nil {
					return err
				}
				logger.Info("draft images cleaned up", "deleted", res.Deleted, "failed", res.Failed, "total", res.Total)
				if res.Failed > 0 {
					return fmt.Errorf("%d draft images could not be deleted", res.Failed)
				}
				return nil
			})
		if err != nil {
			return err
		}
	}

	if cfg.Events != nil && cfg.EventRetention > 0 {
		err := r.Register(JobEventPrune, "Delete event log entries past retention", cfg.Schedule, jobTimeout,
			func(ctx context.Context) error {
				n, err := cfg.Events.DeleteOldEvents(ctx, cfg.EventRetention)
				if err != nil {
					return err
				}
				logger.Info("old events pruned", "deleted", n)
				return nil
			})
		if err != nil {
			return err
		}
	}
	return nil
}
