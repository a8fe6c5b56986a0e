package api

import (
	"time"

	"github.com/escossio/sandbox-orchestrator/internal/model"
)

// createJobRequest is the strict POST /api/jobs body.
type createJobRequest struct {
	Command string         `json:"command"`
	Policy  *model.Policy  `json:"policy,omitempty"`
	Runner  *model.Runner  `json:"runner,omitempty"`
}

// jobSummary is the public view returned by POST /api/jobs and embedded in
// GET /api/jobs listings.
type jobSummary struct {
	JobID     string      `json:"job_id"`
	Status    model.Status `json:"status"`
	Command   string      `json:"command"`
	CreatedAt time.Time   `json:"created_at"`
	Links     model.Links `json:"links"`
}

// listResponse is the GET /api/jobs envelope.
type listResponse struct {
	Items      []jobSummary `json:"items"`
	NextCursor *string      `json:"next_cursor"`
}

// flatPolicy is the GET /api/jobs/{id} policy projection: limits flattened
// with the max_runtime_seconds/time_limit_seconds fallback already applied.
type flatPolicy struct {
	AllowlistDomains []string `json:"allowlist_domains,omitempty"`
	MaxRuntimeSeconds *int    `json:"max_runtime_seconds,omitempty"`
	MaxOutputMB       *int    `json:"max_output_mb,omitempty"`
}

type attemptView struct {
	AttemptID  string     `json:"attempt_id"`
	Status     model.Status `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type manifestView struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type jobDetail struct {
	JobVersion        string          `json:"job_version"`
	JobID             string          `json:"job_id"`
	Command           string          `json:"command"`
	Status            model.Status    `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	Policy            *flatPolicy     `json:"policy,omitempty"`
	Runner            model.RunnerInfo `json:"runner"`
	Attempts          []attemptView   `json:"attempts"`
	ArtifactsManifest []manifestView  `json:"artifacts_manifest"`
	Links             model.Links     `json:"links"`
}

func toJobDetail(doc *model.Document) jobDetail {
	d := jobDetail{
		JobVersion:  doc.JobVersion,
		JobID:       doc.JobID,
		Command:     doc.Command,
		Status:      doc.Status,
		CreatedAt:   doc.CreatedAt,
		CompletedAt: doc.CompletedAt,
		Runner:      doc.RunnerInfo,
		Links:       doc.Links,
	}
	if doc.Policy != nil {
		fp := &flatPolicy{AllowlistDomains: doc.Policy.AllowlistDomains}
		if doc.Policy.Limits != nil {
			fp.MaxRuntimeSeconds = doc.Policy.Limits.EffectiveMaxRuntimeSeconds()
			fp.MaxOutputMB = doc.Policy.Limits.MaxOutputMB
		}
		d.Policy = fp
	}
	for _, a := range doc.Attempts {
		d.Attempts = append(d.Attempts, attemptView{
			AttemptID:  a.AttemptID,
			Status:     a.Status,
			StartedAt:  a.StartedAt,
			FinishedAt: a.FinishedAt,
		})
	}
	for _, m := range doc.ArtifactsManifest {
		d.ArtifactsManifest = append(d.ArtifactsManifest, manifestView{
			Name:        m.Name,
			ContentType: m.ContentType,
			SizeBytes:   m.SizeBytes,
		})
	}
	return d
}
