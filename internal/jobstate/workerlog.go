package jobstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WorkerLog is the shared tail of every attempt's stdout/stderr, written to
// logs/worker.ndjson at the process-wide RUNNER_LOG_DIR root — distinct
// from both the per-attempt logs/attempt_<id>.ndjson files (the API-facing
// record) and runner.ndjson (the Worker's own operational events).
// Grounded on original_source/app/runner.py's _log_worker_output, which
// writes every job's captured output to one shared file keyed by job_id.
type WorkerLog struct {
	mu   sync.Mutex
	path string
}

// NewWorkerLog returns a WorkerLog writing under logDir/worker.ndjson.
func NewWorkerLog(logDir string) *WorkerLog {
	return &WorkerLog{path: filepath.Join(logDir, "worker.ndjson")}
}

// Append writes one NDJSON record per line of content, the way
// _log_worker_output splits on newlines and drops the trailing blank
// segment. Blank lines inside content are written as empty records.
func (w *WorkerLog) Append(jobID, stream, content string) error {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("jobstate: create log dir: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jobstate: open worker log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, line := range lines {
		rec := map[string]any{
			"ts":     defaultNow(),
			"job_id": jobID,
			"stream": stream,
			"line":   line,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("jobstate: write worker log line: %w", err)
		}
	}
	return nil
}
