// Package api wires the scheduler's REST surface onto rest/server, using
// the catalog store, dispatch core, and execution core reachable through
// internal/registry.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nandlabs/jobsched/internal/catalog"
	"github.com/nandlabs/jobsched/internal/cron"
	"github.com/nandlabs/jobsched/internal/registry"
	"github.com/nandlabs/jobsched/l3"
	"github.com/nandlabs/jobsched/rest"
	"github.com/nandlabs/jobsched/rest/server"
	"github.com/nandlabs/jobsched/uuid"
)

func newPlaceholderID() (string, error) {
	id, err := uuid.V4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var logger = l3.Get()

// jobResponse is the wire representation of a Job, carrying the
// spec-mandated derived next_run_time alongside a human-readable
// description of the schedule.
type jobResponse struct {
	JobID         string `json:"job_id"`
	Schedule      string `json:"schedule"`
	ScheduleDesc  string `json:"schedule_description"`
	APIURL        string `json:"api_url"`
	ExecutionType string `json:"execution_type"`
	Active        bool   `json:"active"`
	NextRunTime   string `json:"next_run_time,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toJobResponse(j *catalog.Job) *jobResponse {
	resp := &jobResponse{
		JobID:         j.JobID,
		Schedule:      j.Schedule,
		ScheduleDesc:  cron.Describe(j.Schedule),
		APIURL:        j.APIURL,
		ExecutionType: string(j.ExecutionType),
		Active:        j.Active,
		CreatedAt:     j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     j.UpdatedAt.Format(time.RFC3339),
	}
	if next, err := cron.Next(j.Schedule, time.Now()); err == nil {
		resp.NextRunTime = next.Format(time.RFC3339)
	}
	return resp
}

type executionResponse struct {
	ExecutionID     string  `json:"execution_id"`
	JobID           string  `json:"job_id"`
	ScheduledTime   string  `json:"scheduled_time"`
	ActualStartTime string  `json:"actual_start_time"`
	Status          string  `json:"status"`
	HTTPStatus      *int    `json:"http_status,omitempty"`
	DurationMs      *int64  `json:"duration_ms,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	DriftMs         int64   `json:"drift_ms"`
}

func toExecutionResponse(e *catalog.Execution) *executionResponse {
	return &executionResponse{
		ExecutionID:     e.ExecutionID,
		JobID:           e.JobID,
		ScheduledTime:   e.ScheduledTime.Format(time.RFC3339),
		ActualStartTime: e.ActualStartTime.Format(time.RFC3339),
		Status:          string(e.Status),
		HTTPStatus:      e.HTTPStatus,
		DurationMs:      e.DurationMs,
		ErrorMessage:    e.ErrorMessage,
		DriftMs:         e.DriftMs(),
	}
}

func writeJSON(ctx server.Context, status int, v interface{}) {
	ctx.SetContentType(rest.JSONContentType)
	ctx.SetStatusCode(status)
	if v != nil {
		if err := ctx.Write(v, rest.JSONContentType); err != nil {
			logger.ErrorF("api: failed to write response body: %v", err)
		}
	}
}

func writeError(ctx server.Context, status int, message string) {
	writeJSON(ctx, status, map[string]string{"error": message})
}

// RegisterRoutes wires every route in the REST surface, including the
// supplemental synchronous debug endpoint, onto srv.
func RegisterRoutes(srv server.Server) error {
	routes := []struct {
		method  string
		path    string
		handler server.HandlerFunc
	}{
		{http.MethodPost, "/jobs", createJob},
		{http.MethodGet, "/jobs", listJobs},
		{http.MethodGet, "/jobs/:id", getJob},
		{http.MethodPut, "/jobs/:id", updateJob},
		{http.MethodDelete, "/jobs/:id", deleteJob},
		{http.MethodGet, "/executions/:job_id", listExecutions},
		{http.MethodGet, "/executions/:job_id/latest", latestExecution},
		{http.MethodGet, "/executions/:job_id/stats", executionStats},
		{http.MethodPost, "/debug/execute", debugExecute},
		{http.MethodPost, "/debug/execute_sync", debugExecuteSync},
		{http.MethodPost, "/debug/refresh_schedule", debugRefreshSchedule},
	}

	for _, r := range routes {
		if err := srv.AddRoute(r.path, r.handler, r.method); err != nil {
			return err
		}
	}
	return nil
}

type createJobRequest struct {
	Schedule      string `json:"schedule"`
	APIURL        string `json:"api_url"`
	ExecutionType string `json:"execution_type,omitempty"`
}

func createJob(ctx server.Context) {
	var req createJobRequest
	if err := ctx.Read(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}

	job, err := registry.CatalogStore().Create(ctx.GetRequest().Context(), req.Schedule, req.APIURL, catalog.ExecutionType(req.ExecutionType))
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, http.StatusCreated, toJobResponse(job))
}

func listJobs(ctx server.Context) {
	jobs, err := registry.CatalogStore().ListActive(ctx.GetRequest().Context())
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]*jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	writeJSON(ctx, http.StatusOK, resp)
}

func getJob(ctx server.Context) {
	id, err := ctx.GetParam("id", server.PathParam)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "missing id")
		return
	}
	job, err := registry.CatalogStore().Get(ctx.GetRequest().Context(), id)
	if err == catalog.ErrJobNotFound {
		writeError(ctx, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, http.StatusOK, toJobResponse(job))
}

type updateJobRequest struct {
	Schedule *string `json:"schedule,omitempty"`
	APIURL   *string `json:"api_url,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

func updateJob(ctx server.Context) {
	id, err := ctx.GetParam("id", server.PathParam)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "missing id")
		return
	}
	var req updateJobRequest
	if err := ctx.Read(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}

	job, err := registry.CatalogStore().Update(ctx.GetRequest().Context(), id, catalog.JobUpdate{
		Schedule: req.Schedule,
		APIURL:   req.APIURL,
		Active:   req.Active,
	})
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}
	if job == nil {
		writeError(ctx, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(ctx, http.StatusOK, toJobResponse(job))
}

func deleteJob(ctx server.Context) {
	id, err := ctx.GetParam("id", server.PathParam)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "missing id")
		return
	}
	ok, err := registry.CatalogStore().Delete(ctx.GetRequest().Context(), id)
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(ctx, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(ctx, http.StatusNoContent, nil)
}

func listExecutions(ctx server.Context) {
	jobID, err := ctx.GetParam("job_id", server.PathParam)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "missing job_id")
		return
	}
	if _, err := registry.CatalogStore().Get(ctx.GetRequest().Context(), jobID); err == catalog.ErrJobNotFound {
		writeError(ctx, http.StatusNotFound, "job not found")
		return
	}

	limit := 0
	if raw, err := ctx.GetParam("limit", server.QueryParam); err == nil && raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			limit = n
		}
	}

	execs, err := registry.CatalogStore().ListExecutions(ctx.GetRequest().Context(), jobID, limit)
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]*executionResponse, 0, len(execs))
	for _, e := range execs {
		resp = append(resp, toExecutionResponse(e))
	}
	writeJSON(ctx, http.StatusOK, resp)
}

func latestExecution(ctx server.Context) {
	jobID, err := ctx.GetParam("job_id", server.PathParam)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "missing job_id")
		return
	}
	exec, err := registry.CatalogStore().GetLatestExecution(ctx.GetRequest().Context(), jobID)
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	if exec == nil {
		writeError(ctx, http.StatusNotFound, "no executions for job")
		return
	}
	writeJSON(ctx, http.StatusOK, toExecutionResponse(exec))
}

func executionStats(ctx server.Context) {
	jobID, err := ctx.GetParam("job_id", server.PathParam)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, "missing job_id")
		return
	}
	stats, err := registry.CatalogStore().Stats(ctx.GetRequest().Context(), jobID)
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, http.StatusOK, stats)
}

type debugExecuteRequest struct {
	APIURL string `json:"api_url"`
}

type debugExecuteResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// debugExecute creates an inactive placeholder job (so the firing's
// Execution row has a satisfiable foreign key, per spec's ad-hoc-firing
// note) and submits exactly one asynchronous firing against it.
func debugExecute(ctx server.Context) {
	var req debugExecuteRequest
	if err := ctx.Read(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}

	if !registry.Ready() {
		writeError(ctx, http.StatusServiceUnavailable, "scheduler not ready")
		return
	}

	placeholderID, err := newPlaceholderID()
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	job, err := registry.CatalogStore().CreatePlaceholder(ctx.GetRequest().Context(), placeholderID, req.APIURL)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	if !registry.ExecutionCore().Submit(job.JobID, job.APIURL, now) {
		writeError(ctx, http.StatusServiceUnavailable, "execution queue full")
		return
	}
	writeJSON(ctx, http.StatusAccepted, debugExecuteResponse{JobID: job.JobID, Status: "SUBMITTED"})
}

// debugExecuteSync mirrors debugExecute but performs exactly one attempt
// synchronously and returns the resulting Execution inline.
func debugExecuteSync(ctx server.Context) {
	var req debugExecuteRequest
	if err := ctx.Read(&req); err != nil {
		writeError(ctx, http.StatusBadRequest, "malformed request body")
		return
	}

	if !registry.Ready() {
		writeError(ctx, http.StatusServiceUnavailable, "scheduler not ready")
		return
	}

	placeholderID, err := newPlaceholderID()
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	job, err := registry.CatalogStore().CreatePlaceholder(ctx.GetRequest().Context(), placeholderID, req.APIURL)
	if err != nil {
		writeError(ctx, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	exec, err := registry.ExecutionCore().ExecuteSync(ctx.GetRequest().Context(), job.JobID, job.APIURL, now)
	if err != nil {
		writeError(ctx, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, http.StatusOK, toExecutionResponse(exec))
}

func debugRefreshSchedule(ctx server.Context) {
	if !registry.Ready() {
		writeError(ctx, http.StatusServiceUnavailable, "scheduler not ready")
		return
	}
	registry.DispatchCore().RefreshNow()
	writeJSON(ctx, http.StatusOK, map[string]string{"status": "refreshed"})
}
