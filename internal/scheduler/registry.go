// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Registry errors
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidSchedule = errors.New("invalid cron expression")
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	name            string
	description     string
	defaultSchedule string
	schedule        string // effective schedule
	entryID         cron.EntryID
	run             JobFunc
	timeout         time.Duration

	mu      sync.Mutex
	lastErr error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"defaultSchedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"isOverridden"`
	LastRun         time.Time `json:"lastRun"`
	NextRun         time.Time `json:"nextRun"`
	LastError       string    `json:"lastError,omitempty"`
}

// Registry keeps track of the jobs added to a cron instance.
type Registry struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *slog.Logger
	mu     sync.RWMutex
	jobs   map[string]*registeredJob
}

// NewRegistry creates a registry that schedules jobs on c.
func NewRegistry(c *cron.Cron, logger *slog.Logger) *Registry {
	return &Registry{
		cron:   c,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger: logger,
		jobs:   make(map[string]*registeredJob),
	}
}

// Register schedules run under name. Each run gets its own context bounded
// by timeout; zero means no limit.
func (r *Registry) Register(name, description, schedule string, timeout time.Duration, run JobFunc) error {
	if err := r.validate(schedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[name]; ok {
		return fmt.Errorf("job %q is already registered", name)
	}

	job := &registeredJob{
		name:            name,
		description:     description,
		defaultSchedule: schedule,
		schedule:        schedule,
		run:             run,
		timeout:         timeout,
	}
	id, err := r.cron.AddFunc(schedule, func() { _ = r.execute(job) })
	if err != nil {
		return fmt.Errorf("scheduling job %q: %w", name, err)
	}
	job.entryID = id
	r.jobs[name] = job

	r.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

func (r *Registry) validate(schedule string) error {
	if _, err := r.parser.Parse(schedule); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, schedule, err)
	}
	return nil
}

// execute runs a job once and records its outcome.
func (r *Registry) execute(job *registeredJob) error {
	ctx := context.Background()
	if job.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.run(ctx)

	job.mu.Lock()
	job.lastErr = err
	job.mu.Unlock()

	if err != nil {
		r.logger.Error("scheduled job failed", "name", job.name, "error", err, "duration", time.Since(start))
		return err
	}
	r.logger.Info("scheduled job finished", "name", job.name, "duration", time.Since(start))
	return nil
}

// List returns all registered jobs sorted by name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, r.info(job))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Job returns one registered job.
func (r *Registry) Job(name string) (JobInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[name]
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return r.info(job), nil
}

// info must be called with r.mu held.
func (r *Registry) info(job *registeredJob) JobInfo {
	entry := r.cron.Entry(job.entryID)
	info := JobInfo{
		Name:            job.name,
		Description:     job.description,
		DefaultSchedule: job.defaultSchedule,
		Schedule:        job.schedule,
		IsOverridden:    job.schedule != job.defaultSchedule,
		LastRun:         entry.Prev,
		NextRun:         entry.Next,
	}
	job.mu.Lock()
	if job.lastErr != nil {
		info.LastError = job.lastErr.Error()
	}
	job.mu.Unlock()
	return info
}

// TriggerNow runs a job immediately on the calling goroutine.
func (r *Registry) TriggerNow(name string) error {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	r.logger.Info("manually triggering job", "name", name)
	return r.execute(job)
}

// UpdateSchedule moves a job onto a new schedule. The old schedule is
// restored when the new one cannot be applied.
func (r *Registry) UpdateSchedule(name, schedule string) error {
	if err := r.validate(schedule); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	r.cron.Remove(job.entryID)
	id, err := r.cron.AddFunc(schedule, func() { _ = r.execute(job) })
	if err != nil {
		fallbackID, fallbackErr := r.cron.AddFunc(job.schedule, func() { _ = r.execute(job) })
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}

	job.entryID = id
	job.schedule = schedule
	r.logger.Info("updated job schedule", "name", name, "schedule", schedule)
	return nil
}

// ResetSchedule restores the schedule a job was registered with.
func (r *Registry) ResetSchedule(name string) error {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if job.schedule == job.defaultSchedule {
		return nil
	}
	return r.UpdateSchedule(name, job.defaultSchedule)
}
