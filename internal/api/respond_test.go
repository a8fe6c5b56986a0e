package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteEnvelopeAddsRequestIDAndServerTime(t *testing.T) {
	req := withRequestID(httptest.NewRequest("GET", "/api/jobs", nil))
	rec := httptest.NewRecorder()

	writeEnvelope(rec, req, 200, map[string]any{"items": []string{}})

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Regexp(t, `^req_[0-9a-f]{32}$`, body["request_id"])
	require.NotEmpty(t, body["server_time_utc"])
	require.Equal(t, requestIDFrom(req), body["request_id"])
}

func TestWriteErrorUsesSameRequestIDAsEnvelope(t *testing.T) {
	req := withRequestID(httptest.NewRequest("GET", "/api/jobs", nil))
	rec := httptest.NewRecorder()

	writeError(rec, req, notFoundErr("job not found"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, requestIDFrom(req), body["request_id"])
}

func TestRequestIDFromMintsFallbackOutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/jobs", nil)
	id := requestIDFrom(req)
	require.Regexp(t, `^req_[0-9a-f]{32}$`, id)
}
