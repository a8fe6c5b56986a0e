package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/escossio/sandbox-orchestrator/internal/jobstate"
	"github.com/escossio/sandbox-orchestrator/internal/store"
)

func (a *api) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
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

	views := make([]manifestView, 0, len(doc.ArtifactsManifest))
	for _, m := range doc.ArtifactsManifest {
		views = append(views, manifestView{Name: m.Name, ContentType: m.ContentType, SizeBytes: m.SizeBytes})
	}
	writeEnvelope(w, r, http.StatusOK, map[string]any{
		"items": views,
		"links": map[string]string{"download_base": "/api/jobs/" + jobID + "/artifacts"},
	})
}

func (a *api) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	name := chi.URLParam(r, "*")

	if _, err := a.store.GetByID(r.Context(), jobID); err != nil {
		writeError(w, r, notFoundErr("job not found"))
		return
	}

	dir := jobstate.New(a.jobsRoot, jobID)
	path, err := dir.ResolveArtifact(name)
	if err != nil {
		writeError(w, r, notFoundErr("artifact not found"))
		return
	}

	contentType := contentTypeFromManifest(dir, name)
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, r, path)
}

func contentTypeFromManifest(dir jobstate.Dir, name string) string {
	doc, err := dir.ReadDocument()
	if err != nil {
		return ""
	}
	for _, m := range doc.ArtifactsManifest {
		if m.Path == name || m.Name == name {
			return m.ContentType
		}
	}
	return ""
}
