package http

import (
	"net/http"
	"strconv"
)

// GetArtifact serves the cached bytes for an artifact with its content type.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	a, data, err := h.artifacts.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "artifact not found or expired")
		return
	}

	w.Header().Set("Content-Type", a.MIME)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("ETag", `"`+a.Checksum+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListTaskArtifacts returns the artifact descriptors fetched for a task.
func (h *Handlers) ListTaskArtifacts(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.tasks.Get(id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifacts": h.artifacts.ForTask(id),
	})
}
