package jobstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RunnerLog appends operational events to logs/runner.ndjson, the worker
// process's own event log, distinct from the per-attempt stdout/stderr
// capture files. Grounded on original_source/app/runner.py's _log_runner.
type RunnerLog struct {
	mu   sync.Mutex
	path string
}

// NewRunnerLog returns a RunnerLog writing under logDir/runner.ndjson.
func NewRunnerLog(logDir string) *RunnerLog {
	return &RunnerLog{path: filepath.Join(logDir, "runner.ndjson")}
}

// Event appends one NDJSON record: {"ts": ..., "event": event, <extra...>}.
func (r *RunnerLog) Event(event string, extra map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("jobstate: create log dir: %w", err)
	}

	payload := map[string]any{"ts": defaultNow(), "event": event}
	for k, v := range extra {
		payload[k] = v
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("jobstate: open runner log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(payload); err != nil {
		return fmt.Errorf("jobstate: write runner log event: %w", err)
	}
	return nil
}
