package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Generation
		r.Post("/generate", h.Generate)
		r.Post("/generate/sync", h.GenerateSync)
		r.Post("/batch", h.Batch)
		r.Post("/enhance", h.Enhance)

		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/tasks/{id}/result", h.GetTaskResult)
		r.Get("/tasks/{id}/events", h.ListTaskEvents)
		r.Get("/tasks/{id}/artifacts", h.ListTaskArtifacts)
		r.Post("/tasks/{id}/cancel", h.CancelTask)
		r.Delete("/tasks/{id}", h.DeleteTask)

		// Introspection
		r.Get("/vendors", h.ListVendors)
		r.Get("/quota", h.GetQuota)

		// Artifacts
		r.Get("/artifacts/{id}", h.GetArtifact)
	})
}
