// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

// testLogger creates a test logger that only prints errors.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	c := cron.New()
	t.Cleanup(func() { c.Stop() })
	return NewRegistry(c, testLogger())
}

func noop(context.Context) error { return nil }

func TestRegister(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register("cleanup", "Clean up", "@every 1h", 0, noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	jobs := r.List()
	if len(jobs) != 1 {
		t.Fatalf("List() returned %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.Name != "cleanup" || job.Description != "Clean up" {
		t.Errorf("job = %+v", job)
	}
	if job.Schedule != "@every 1h" || job.DefaultSchedule != "@every 1h" {
		t.Errorf("Schedule = %q, DefaultSchedule = %q", job.Schedule, job.DefaultSchedule)
	}
	if job.IsOverridden {
		t.Error("IsOverridden should be false")
	}
}

func TestRegister_Errors(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register("bad", "", "not a schedule", 0, noop); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := r.Register("job", "", "0 3 * * *", 0, noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("job", "", "0 4 * * *", 0, noop); err == nil {
		t.Error("expected error for duplicate name")
	}
}

func TestList_Sorted(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(name, "", "@daily", 0, noop); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	jobs := r.List()
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if jobs[i].Name != name {
			t.Errorf("jobs[%d] = %q, want %q", i, jobs[i].Name, name)
		}
	}
}

func TestTriggerNow(t *testing.T) {
	r := newTestRegistry(t)

	calls := 0
	fail := errors.New("boom")
	err := r.Register("job", "", "@daily", 0, func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return fail
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.TriggerNow("job"); err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}
	if err := r.TriggerNow("job"); !errors.Is(err, fail) {
		t.Fatalf("TriggerNow() error = %v, want %v", err, fail)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if got := r.List()[0].LastError; got != "boom" {
		t.Errorf("LastError = %q, want boom", got)
	}

	if err := r.TriggerNow("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("TriggerNow(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestTriggerNow_Timeout(t *testing.T) {
	r := newTestRegistry(t)

	var hasDeadline bool
	err := r.Register("job", "", "@daily", 5*time.Minute, func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.TriggerNow("job"); err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}
	if !hasDeadline {
		t.Error("job context has no deadline")
	}
}

func TestUpdateSchedule(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("job", "", "@daily", 0, noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.UpdateSchedule("job", "*/5 * * * *"); err != nil {
		t.Fatalf("UpdateSchedule() error = %v", err)
	}
	job := r.List()[0]
	if job.Schedule != "*/5 * * * *" || !job.IsOverridden {
		t.Errorf("after update: %+v", job)
	}

	if err := r.UpdateSchedule("job", "bogus"); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("UpdateSchedule(bogus) error = %v, want ErrInvalidSchedule", err)
	}
	if err := r.UpdateSchedule("missing", "@daily"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("UpdateSchedule(missing) error = %v", err)
	}

	if err := r.ResetSchedule("job"); err != nil {
		t.Fatalf("ResetSchedule() error = %v", err)
	}
	job = r.List()[0]
	if job.Schedule != "@daily" || job.IsOverridden {
		t.Errorf("after reset: %+v", job)
	}
}

func TestJob(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Register("job", "does things", "@hourly", 0, noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	info, err := r.Job("job")
	if err != nil {
		t.Fatalf("Job() error = %v", err)
	}
	if info.Description != "does things" || info.Schedule != "@hourly" {
		t.Errorf("Job() = %+v", info)
	}
	if _, err := r.Job("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Job(missing) error = %v", err)
	}
}
