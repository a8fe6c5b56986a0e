// Package model holds the data types shared by the store, job state
// directory, worker, and API packages: the Store row, the Job Document,
// and the small value types both accrete over a job's lifetime.
package model

import "time"

// JobVersion is the schema tag stamped into every Job Document.
const JobVersion = "1.0"

// Status is a job or attempt's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Runner is the execution strategy label for a job. Only RunnerShell is
// actually implemented; docker and vm are accepted as requests but always
// resolve to shell.
type Runner string

const (
	RunnerShell  Runner = "shell"
	RunnerDocker Runner = "docker"
	RunnerVM     Runner = "vm"
)

// Row is the authoritative Store record for a job: the minimal set of
// columns needed for queue ordering and lifecycle state.
type Row struct {
	JobID           string
	Status          Status
	Command         string
	CreatedAt       time.Time
	RunnerRequested *Runner
	RunnerSelected  *Runner
}

// PolicyLimits bounds a job's execution. Either field may be absent;
// MaxRuntimeSeconds takes precedence over the legacy TimeLimitSeconds name.
type PolicyLimits struct {
	MaxRuntimeSeconds *int `json:"max_runtime_seconds,omitempty"`
	TimeLimitSeconds  *int `json:"time_limit_seconds,omitempty"`
	MaxOutputMB       *int `json:"max_output_mb,omitempty"`
}

// EffectiveMaxRuntimeSeconds resolves the fallback named in spec.md §4.4:
// limits.max_runtime_seconds falls back to limits.time_limit_seconds.
func (l *PolicyLimits) EffectiveMaxRuntimeSeconds() *int {
	if l == nil {
		return nil
	}
	if l.MaxRuntimeSeconds != nil {
		return l.MaxRuntimeSeconds
	}
	return l.TimeLimitSeconds
}

// Policy is the job's submit-time policy: an optional domain allowlist and
// optional runtime limits.
type Policy struct {
	AllowlistDomains []string      `json:"allowlist_domains,omitempty"`
	Limits           *PolicyLimits `json:"limits,omitempty"`
}

// RunnerInfo records what runner was requested, what was actually selected,
// and why.
type RunnerInfo struct {
	Requested      *Runner `json:"requested,omitempty"`
	Selected       *Runner `json:"selected,omitempty"`
	SelectionReason string `json:"selection_reason,omitempty"`
}

const (
	SelectionReasonRequested = "requested by user"
	SelectionReasonDefault   = "default shell runner"
)

// Attempt is one execution of a job's command.
type Attempt struct {
	AttemptID    string     `json:"attempt_id"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	ErrorSummary string     `json:"error_summary,omitempty"`
}

// ManifestEntry describes one file under a job's artifacts/ tree.
type ManifestEntry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	SHA256      string    `json:"sha256"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Links is the set of API-relative paths a job's views link to.
type Links struct {
	Self      string `json:"self"`
	Logs      string `json:"logs,omitempty"`
	Artifacts string `json:"artifacts,omitempty"`
}

// Document is the full, mutable, on-disk Job Document (job.json).
type Document struct {
	JobVersion         string          `json:"job_version"`
	JobID              string          `json:"job_id"`
	Command            string          `json:"command"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	Policy             *Policy         `json:"policy,omitempty"`
	RunnerInfo         RunnerInfo      `json:"runner"`
	Attempts           []Attempt       `json:"attempts"`
	ArtifactsManifest  []ManifestEntry `json:"artifacts_manifest"`
	Links              Links           `json:"links"`
}

// LastAttempt returns a pointer to the last attempt, or nil if there are none.
func (d *Document) LastAttempt() *Attempt {
	if len(d.Attempts) == 0 {
		return nil
	}
	return &d.Attempts[len(d.Attempts)-1]
}

// LogLine is one NDJSON record in a per-attempt log file.
type LogLine struct {
	TS        time.Time `json:"ts"`
	JobID     string    `json:"job_id"`
	AttemptID string    `json:"attempt_id"`
	Stream    string    `json:"stream"`
	Line      string    `json:"line"`
}

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)
