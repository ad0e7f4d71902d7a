package http

import (
	"net/http"

	"github.com/lumigen/lumigen/internal/adapter/ws"
	"github.com/lumigen/lumigen/internal/domain/task"
	"github.com/lumigen/lumigen/internal/resilience"
	"github.com/lumigen/lumigen/internal/service"
)

// Handlers bundles the services the API exposes.
type Handlers struct {
	generation *service.GenerationService
	tasks      *service.TaskService
	artifacts  *service.ArtifactService
	hub        *ws.Hub

	resultPoll resilience.PollConfig
	version    string
}

// NewHandlers creates the API handler set. resultPoll controls how long the
// blocking result endpoints wait for a task to finish.
func NewHandlers(generation *service.GenerationService, tasks *service.TaskService, artifacts *service.ArtifactService, hub *ws.Hub, resultPoll resilience.PollConfig, version string) *Handlers {
	return &Handlers{
		generation: generation,
		tasks:      tasks,
		artifacts:  artifacts,
		hub:        hub,
		resultPoll: resultPoll,
		version:    version,
	}
}

// Health reports liveness and basic component state.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    h.version,
		"tasks":      h.tasks.Counts(),
		"ws_clients": h.hub.ConnectionCount(),
		"vendors":    len(h.generation.Vendors()),
	})
}

// ListTasks returns tasks, optionally filtered by status and kind.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	kind := task.Kind(r.URL.Query().Get("kind"))

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": h.tasks.List(status, kind),
	})
}

// GetTask returns one task by ID.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GetTaskResult blocks until the task reaches a terminal state, then returns
// it. 504 when the wait budget runs out first.
func (h *Handlers) GetTaskResult(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Wait(r.Context(), urlParam(r, "id"), h.resultPoll)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListTaskEvents returns the lifecycle event log for a task.
func (h *Handlers) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.tasks.Get(id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": h.tasks.Events(id),
	})
}

// CancelTask aborts a running task.
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if !h.tasks.Cancel(id) {
		if _, err := h.tasks.Get(id); err != nil {
			writeDomainError(w, err, "task not found")
			return
		}
		writeError(w, http.StatusConflict, "task already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// DeleteTask removes a terminal task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVendors returns the configured vendor backends and their load.
func (h *Handlers) ListVendors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"vendors": h.generation.Vendors(),
	})
}

// GetQuota reports available tokens per quota domain.
func (h *Handlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"quota": h.generation.Quota(),
	})
}
