package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/escossio/sandbox-orchestrator/internal/jobstate"
	"github.com/escossio/sandbox-orchestrator/internal/model"
	"github.com/escossio/sandbox-orchestrator/internal/store"
)

// logView is the public shape of one NDJSON record: spec.md §4.4 maps
// stream "stderr" to level "error" and everything else to level "info".
type logView struct {
	TS      string `json:"ts"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (a *api) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	if _, err := a.store.GetByID(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, notFoundErr("job not found"))
			return
		}
		writeError(w, r, internalErr("failed to load job"))
		return
	}

	doc, err := jobstate.New(a.jobsRoot, jobID).ReadDocument()
	if err != nil {
		writeError(w, r, notFoundErr("job document not found"))
		return
	}
	if len(doc.Attempts) == 0 {
		writeError(w, r, logsUnavailableErr("job has no attempts yet"))
		return
	}

	attemptID := r.URL.Query().Get("attempt_id")
	if attemptID == "" {
		attemptID = doc.LastAttempt().AttemptID
	}

	tail := 200
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10000 {
			writeError(w, r, validationErr("tail must be an integer between 1 and 10000", "tail"))
			return
		}
		tail = n
	}

	stream := 0
	if raw := r.URL.Query().Get("stream"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || (n != 0 && n != 1) {
			writeError(w, r, validationErr("stream must be 0 or 1", "stream"))
			return
		}
		stream = n
	}

	dir := jobstate.New(a.jobsRoot, jobID)
	logPath := dir.AttemptLogPath(attemptID)
	if _, err := os.Stat(logPath); err != nil {
		writeError(w, r, logsUnavailableErr("log file for this attempt does not exist yet"))
		return
	}

	lines, err := jobstate.ReadAttemptLog(logPath)
	if err != nil {
		a.log.Error("read attempt log failed", "job_id", jobID, "error", err)
		writeError(w, r, internalErr("failed to read logs"))
		return
	}
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}

	views := make([]logView, 0, len(lines))
	for _, l := range lines {
		views = append(views, toLogView(l))
	}

	if stream == 1 {
		a.streamLogsSSE(w, views)
		return
	}

	writeEnvelope(w, r, http.StatusOK, map[string]any{
		"lines":  views,
		"cursor": fmt.Sprintf("logcur_%d", len(views)),
	})
}

func toLogView(l model.LogLine) logView {
	level := "info"
	if l.Stream == model.StreamStderr {
		level = "error"
	}
	return logView{
		TS:      l.TS.UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:   level,
		Message: l.Line,
	}
}

func (a *api) streamLogsSSE(w http.ResponseWriter, views []logView) {
	flusher, ok := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for _, v := range views {
		fmt.Fprint(w, "data: ")
		_ = enc.Encode(v)
		fmt.Fprint(w, "\n")
		if ok {
			flusher.Flush()
		}
	}
}
