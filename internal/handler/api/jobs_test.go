// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/blockpress/internal/scheduler"
)

func TestListJobs(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/jobs", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	jobs, _ := decodeData[[]scheduler.JobInfo](t, rr)
	require.Len(t, jobs, 2)
	assert.Equal(t, "always-fails", jobs[0].Name)
	assert.Equal(t, "count-runs", jobs[1].Name)
	assert.Equal(t, "@daily", jobs[1].Schedule)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/v1/jobs", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/jobs", f.authorToken, nil).Code)
}

func TestRunJob(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/jobs/count-runs/run", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	job, _ := decodeData[scheduler.JobInfo](t, rr)
	assert.Equal(t, "count-runs", job.Name)
	assert.Empty(t, job.LastError)
	assert.Equal(t, int32(1), f.jobRuns.Load())

	// A failing run is reported, not turned into a server error.
	rr = f.do(t, http.MethodPost, "/api/v1/jobs/always-fails/run", f.adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	job, _ = decodeData[scheduler.JobInfo](t, rr)
	assert.Equal(t, "disk full", job.LastError)

	rr = f.do(t, http.MethodPost, "/api/v1/jobs/missing/run", f.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/jobs/count-runs/run", f.authorToken, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, int32(1), f.jobRuns.Load())
}

func TestUpdateJob(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPut, "/api/v1/jobs/count-runs", f.adminToken, UpdateJobRequest{Schedule: "*/10 * * * *"})
	require.Equal(t, http.StatusOK, rr.Code)
	job, _ := decodeData[scheduler.JobInfo](t, rr)
	assert.Equal(t, "*/10 * * * *", job.Schedule)
	assert.True(t, job.IsOverridden)

	rr = f.do(t, http.MethodPut, "/api/v1/jobs/count-runs", f.adminToken, UpdateJobRequest{Schedule: "every tuesday"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Details, "schedule")

	// An empty schedule restores the default.
	rr = f.do(t, http.MethodPut, "/api/v1/jobs/count-runs", f.adminToken, UpdateJobRequest{})
	require.Equal(t, http.StatusOK, rr.Code)
	job, _ = decodeData[scheduler.JobInfo](t, rr)
	assert.Equal(t, "@daily", job.Schedule)
	assert.False(t, job.IsOverridden)

	rr = f.do(t, http.MethodPut, "/api/v1/jobs/missing", f.adminToken, UpdateJobRequest{Schedule: "@daily"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
