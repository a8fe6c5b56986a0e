package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/escossio/sandbox-orchestrator/internal/idgen"
	"github.com/escossio/sandbox-orchestrator/internal/jobstate"
	"github.com/escossio/sandbox-orchestrator/internal/model"
	"github.com/escossio/sandbox-orchestrator/internal/store"
)

func (a *api) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, r, validationErr("command is required and must be non-empty", "command"))
		return
	}
	if req.Policy != nil {
		if err := checkAllowlist(req.Command, req.Policy.AllowlistDomains); err != nil {
			writeError(w, r, err)
			return
		}
	}

	jobID := idgen.Job()
	createdAt := time.Now().UTC().Truncate(time.Second)

	row := model.Row{
		JobID:           jobID,
		Status:          model.StatusQueued,
		Command:         req.Command,
		CreatedAt:       createdAt,
		RunnerRequested: req.Runner,
	}
	if err := a.store.InsertQueued(r.Context(), row); err != nil {
		a.log.Error("insert queued job failed", "error", err)
		writeError(w, r, internalErr("failed to create job"))
		return
	}

	links := model.Links{
		Self:      "/api/jobs/" + jobID,
		Logs:      "/api/jobs/" + jobID + "/logs",
		Artifacts: "/api/jobs/" + jobID + "/artifacts",
	}
	doc := &model.Document{
		JobVersion: model.JobVersion,
		JobID:      jobID,
		Command:    req.Command,
		Status:     model.StatusQueued,
		CreatedAt:  createdAt,
		Policy:     req.Policy,
		RunnerInfo: model.RunnerInfo{Requested: req.Runner},
		Attempts:   []model.Attempt{},
		Links:      links,
	}

	dir := jobstate.New(a.jobsRoot, jobID)
	if err := dir.Ensure(); err != nil {
		a.log.Error("create job directory failed", "job_id", jobID, "error", err)
		writeError(w, r, internalErr("failed to initialize job state"))
		return
	}
	if err := dir.WriteDocument(doc); err != nil {
		a.log.Error("write initial job document failed", "job_id", jobID, "error", err)
		writeError(w, r, internalErr("failed to initialize job state"))
		return
	}

	writeEnvelope(w, r, http.StatusCreated, jobSummary{
		JobID:     jobID,
		Status:    model.StatusQueued,
		Command:   req.Command,
		CreatedAt: createdAt,
		Links:     links,
	})
}

func (a *api) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 {
		writeError(w, r, validationErr("GET /api/jobs does not accept a request body", ""))
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, r, validationErr("limit must be an integer between 1 and 200", "limit"))
			return
		}
		limit = n
	}

	filter := store.Filter{
		Status: r.URL.Query().Get("status"),
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
	}

	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cur, err := store.DecodeCursor(raw)
		if err != nil {
			writeError(w, r, validationErr("cursor is malformed", "cursor"))
			return
		}
		filter.Cursor = &cur
	}

	rows, next, err := a.store.List(r.Context(), filter)
	if err != nil {
		a.log.Error("list jobs failed", "error", err)
		writeError(w, r, internalErr("failed to list jobs"))
		return
	}

	items := make([]jobSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, jobSummary{
			JobID:     row.JobID,
			Status:    row.Status,
			Command:   row.Command,
			CreatedAt: row.CreatedAt,
			Links: model.Links{
				Self:      "/api/jobs/" + row.JobID,
				Logs:      "/api/jobs/" + row.JobID + "/logs",
				Artifacts: "/api/jobs/" + row.JobID + "/artifacts",
			},
		})
	}

	var nextToken *string
	if next != nil {
		token := store.EncodeCursor(*next)
		nextToken = &token
	}

	writeEnvelope(w, r, http.StatusOK, listResponse{Items: items, NextCursor: nextToken})
}

func (a *api) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	if _, err := a.store.GetByID(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, notFoundErr("job not found"))
			return
		}
		a.log.Error("get job row failed", "job_id", jobID, "error", err)
		writeError(w, r, internalErr("failed to load job"))
		return
	}

	doc, err := jobstate.New(a.jobsRoot, jobID).ReadDocument()
	if err != nil {
		writeError(w, r, notFoundErr("job document not found"))
		return
	}

	writeEnvelope(w, r, http.StatusOK, toJobDetail(doc))
}
