// Package worker implements the poll loop from spec.md §4.3: claim the
// oldest queued job, run its command under a wall-clock timeout, and
// persist the result to both the Store and the Job State Directory.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/escossio/sandbox-orchestrator/internal/idgen"
	"github.com/escossio/sandbox-orchestrator/internal/jobstate"
	"github.com/escossio/sandbox-orchestrator/internal/model"
	"github.com/escossio/sandbox-orchestrator/internal/store"
)

// Mirror is the optional write-behind artifact mirror. A nil Mirror is a
// no-op; pkg/artifactmirror.S3Mirror is the only production implementation.
type Mirror interface {
	MirrorDir(ctx context.Context, jobID, artifactsDir string) error
}

// Worker drives the poll loop. Build one with New and run it with Run.
type Worker struct {
	store         store.Store
	jobsRoot      string
	pollInterval  time.Duration
	runnerTimeout time.Duration
	log           *slog.Logger
	runnerLog     *jobstate.RunnerLog
	workerLog     *jobstate.WorkerLog
	mirror        Mirror

	newAttemptID func() string
	clock        func() time.Time
}

// Config bundles Worker's construction parameters.
type Config struct {
	Store         store.Store
	JobsRoot      string
	LogDir        string
	PollInterval  time.Duration
	RunnerTimeout time.Duration
	Logger        *slog.Logger
	Mirror        Mirror
}

// New builds a Worker ready for Run.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:         cfg.Store,
		jobsRoot:      cfg.JobsRoot,
		pollInterval:  cfg.PollInterval,
		runnerTimeout: cfg.RunnerTimeout,
		log:           logger,
		runnerLog:     jobstate.NewRunnerLog(cfg.LogDir),
		workerLog:     jobstate.NewWorkerLog(cfg.LogDir),
		mirror:        cfg.Mirror,
		newAttemptID:  idgen.Attempt,
		clock:         func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Run polls until ctx is cancelled, the way
// _examples/KevTiv-alieze-erp/pkg/queue/worker.go's Start loop does: a
// ticker for the idle case, a direct retry of Tick on anything it claims.
func (w *Worker) Run(ctx context.Context) {
	w.logEvent("runner_start", nil)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logEvent("runner_stop", nil)
			return
		case <-ticker.C:
			for w.Tick(ctx) {
				// Drain the queue without waiting a full poll interval
				// between consecutive claims.
			}
		}
	}
}

// Tick attempts one claim-and-execute cycle. It returns true when a job
// was claimed (so Run can immediately try for another), false when the
// queue was empty.
func (w *Worker) Tick(ctx context.Context) bool {
	jobID, command, ok, err := w.store.ClaimOldestQueued(ctx)
	if err != nil {
		w.logEvent("claim_error", map[string]any{"error": err.Error()})
		return false
	}
	if !ok {
		return false
	}

	w.logEvent("job_claimed", map[string]any{"job_id": jobID})
	w.processClaim(ctx, jobID, command)
	return true
}

func (w *Worker) processClaim(ctx context.Context, jobID, command string) {
	dir := jobstate.New(w.jobsRoot, jobID)
	if err := dir.Ensure(); err != nil {
		w.failClaim(ctx, jobID, err)
		return
	}

	doc, err := dir.ReadDocument()
	if err != nil {
		doc = w.synthesizeDocument(ctx, jobID, command)
	}

	attemptID := w.newAttemptID()
	startedAt := w.clock()

	selected := model.RunnerShell
	if doc.RunnerInfo.Selected == nil {
		doc.RunnerInfo.Selected = &selected
		if doc.RunnerInfo.SelectionReason == "" {
			doc.RunnerInfo.SelectionReason = model.SelectionReasonDefault
			if doc.RunnerInfo.Requested != nil {
				doc.RunnerInfo.SelectionReason = model.SelectionReasonRequested
			}
		}
	}

	doc.Status = model.StatusRunning
	doc.Attempts = append(doc.Attempts, model.Attempt{
		AttemptID: attemptID,
		Status:    model.StatusRunning,
		StartedAt: startedAt,
	})
	if err := dir.WriteDocument(doc); err != nil {
		w.failClaim(ctx, jobID, err)
		return
	}

	w.logEvent("job_running", map[string]any{"job_id": jobID, "command": command, "attempt_id": attemptID})

	timeout := w.runnerTimeout
	if doc.Policy != nil {
		if limit := doc.Policy.Limits.EffectiveMaxRuntimeSeconds(); limit != nil && *limit > 0 {
			timeout = time.Duration(*limit) * time.Second
		}
	}

	result := run(ctx, jobID, dir.ArtifactsDir(), command, timeout)

	if err := dir.AppendLogLines(attemptID, jobID, model.StreamStdout, result.Stdout); err != nil {
		w.log.Error("append stdout log failed", "job_id", jobID, "error", err)
	}
	if err := dir.AppendLogLines(attemptID, jobID, model.StreamStderr, result.Stderr); err != nil {
		w.log.Error("append stderr log failed", "job_id", jobID, "error", err)
	}
	if err := w.workerLog.Append(jobID, model.StreamStdout, result.Stdout); err != nil {
		w.log.Error("append shared worker log failed", "job_id", jobID, "error", err)
	}
	if err := w.workerLog.Append(jobID, model.StreamStderr, result.Stderr); err != nil {
		w.log.Error("append shared worker log failed", "job_id", jobID, "error", err)
	}

	finishedAt := w.clock()
	finalStatus := model.StatusSucceeded
	if result.ExitCode != 0 || result.TimedOut {
		finalStatus = model.StatusFailed
	}

	attempt := doc.LastAttempt()
	attempt.Status = finalStatus
	attempt.FinishedAt = &finishedAt
	exitCode := result.ExitCode
	attempt.ExitCode = &exitCode
	if finalStatus == model.StatusFailed {
		attempt.ErrorSummary = errorSummary(result)
	}

	doc.Status = finalStatus
	doc.CompletedAt = &finishedAt

	manifest, err := dir.BuildManifest()
	if err != nil {
		w.log.Error("build artifact manifest failed", "job_id", jobID, "error", err)
	} else {
		doc.ArtifactsManifest = manifest
	}

	if err := dir.WriteDocument(doc); err != nil {
		w.log.Error("final job document write failed", "job_id", jobID, "error", err)
	}

	if err := w.store.UpdateStatus(ctx, jobID, finalStatus); err != nil {
		w.log.Error("store status update failed", "job_id", jobID, "error", err)
	}

	w.logEvent("job_finished", map[string]any{
		"job_id":      jobID,
		"status":      string(finalStatus),
		"exit_code":   result.ExitCode,
		"duration_ms": result.DurationMS,
		"timed_out":   result.TimedOut,
	})

	if w.mirror != nil {
		if err := w.mirror.MirrorDir(ctx, jobID, dir.ArtifactsDir()); err != nil {
			w.log.Warn("artifact mirror failed", "job_id", jobID, "error", err)
		}
	}
}

func (w *Worker) synthesizeDocument(ctx context.Context, jobID, command string) *model.Document {
	doc := &model.Document{
		JobVersion: model.JobVersion,
		JobID:      jobID,
		Command:    command,
		Status:     model.StatusRunning,
		CreatedAt:  w.clock(),
		Attempts:   []model.Attempt{},
		Links: model.Links{
			Self:      "/api/jobs/" + jobID,
			Logs:      "/api/jobs/" + jobID + "/logs",
			Artifacts: "/api/jobs/" + jobID + "/artifacts",
		},
	}
	if row, err := w.store.GetByID(ctx, jobID); err == nil {
		doc.CreatedAt = row.CreatedAt
		doc.RunnerInfo.Requested = row.RunnerRequested
		doc.RunnerInfo.Selected = row.RunnerSelected
	}
	return doc
}

func (w *Worker) failClaim(ctx context.Context, jobID string, cause error) {
	w.log.Error("claim processing failed before execution", "job_id", jobID, "error", cause)
	if err := w.store.UpdateStatus(ctx, jobID, model.StatusFailed); err != nil {
		w.log.Error("failed to mark job failed after claim error", "job_id", jobID, "error", err)
	}
	w.logEvent("job_error", map[string]any{"job_id": jobID, "error": cause.Error()})
}

func (w *Worker) logEvent(event string, extra map[string]any) {
	if err := w.runnerLog.Event(event, extra); err != nil {
		w.log.Error("runner log write failed", "event", event, "error", err)
	}
}

func errorSummary(r execResult) string {
	if r.TimedOut {
		return "command exceeded its runtime limit"
	}
	tail := r.Stderr
	const maxLen = 300
	if len(tail) > maxLen {
		tail = tail[len(tail)-maxLen:]
	}
	if tail == "" {
		return "command exited with a non-zero status"
	}
	return tail
}
