package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/escossio/sandbox-orchestrator/internal/idgen"
)

// errorBody is the envelope from spec.md §9: {error:{code,message,details?},
// request_id, server_time_utc}.
type errorBody struct {
	Error struct {
		Code    Code           `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
	RequestID     string `json:"request_id"`
	ServerTimeUTC string `json:"server_time_utc"`
}

type requestIDKey struct{}

// withRequestID mints this request's req_<32 hex> identifier (spec.md §6)
// once and attaches it to the request context, so every envelope written
// for the same request — success or error — reports the same value.
func withRequestID(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDKey{}, idgen.Request()))
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return idgen.Request()
}

func serverTimeUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// writeJSON writes body as-is, with no envelope fields added. Only
// handleHealth uses this directly (its envelope is server_time_utc alone,
// per spec.md §4.4).
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeEnvelope wraps any success body with the mandatory request_id and
// server_time_utc fields (spec.md §4.4) before writing it. body must
// marshal to a JSON object.
func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		writeError(w, r, internalErr("failed to encode response"))
		return
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		writeError(w, r, internalErr("failed to encode response"))
		return
	}
	fields["request_id"] = requestIDFrom(r)
	fields["server_time_utc"] = serverTimeUTC()
	writeJSON(w, status, fields)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = internalErr("internal server error")
	}

	body := errorBody{}
	body.Error.Code = appErr.Code
	body.Error.Message = appErr.Message
	if appErr.Field != "" {
		body.Error.Details = map[string]any{"field": appErr.Field}
	}
	body.RequestID = requestIDFrom(r)
	body.ServerTimeUTC = serverTimeUTC()

	writeJSON(w, appErr.httpStatus(), body)
}
