// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/blockpress/internal/scheduler"
)

// JobRegistry is the part of the scheduler the admin endpoints drive.
type JobRegistry interface {
	List() []scheduler.JobInfo
	Job(name string) (scheduler.JobInfo, error)
	TriggerNow(name string) error
	UpdateSchedule(name, schedule string) error
	ResetSchedule(name string) error
}

// UpdateJobRequest is the body of PUT /api/v1/jobs/{name}. An empty
// schedule restores the default.
type UpdateJobRequest struct {
	Schedule string `json:"schedule"`
}

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, h.jobs.List(), nil)
}

// RunJob handles POST /api/v1/jobs/{name}/run. The job runs to completion
// before the response; a failed run is reported in lastError.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.jobs.TriggerNow(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			WriteNotFound(w, "Job not found")
			return
		}
		h.logger.Warn("manual job run failed", "name", name, "error", err)
	}
	h.writeJob(w, r, name)
}

// UpdateJob handles PUT /api/v1/jobs/{name}.
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var req UpdateJobRequest
	if !requireJSON(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "name")
	var err error
	if req.Schedule == "" {
		err = h.jobs.ResetSchedule(name)
	} else {
		err = h.jobs.UpdateSchedule(name, req.Schedule)
	}
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		WriteNotFound(w, "Job not found")
		return
	case errors.Is(err, scheduler.ErrInvalidSchedule):
		WriteValidationError(w, map[string]string{"schedule": "Schedule must be a valid cron expression"})
		return
	case err != nil:
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJob(w, r, name)
}

func (h *Handler) writeJob(w http.ResponseWriter, r *http.Request, name string) {
	info, err := h.jobs.Job(name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, info, nil)
}
