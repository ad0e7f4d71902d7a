package http

import (
	"net/http"

	"github.com/lumigen/lumigen/internal/domain/generate"
)

// generateRequest is the wire shape for generation submissions.
type generateRequest struct {
	Vendor     string         `json:"vendor"`
	Operation  string         `json:"operation"`
	Modality   string         `json:"modality,omitempty"`
	Prompt     string         `json:"prompt"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Enhance    bool           `json:"enhance,omitempty"` // enrich the prompt first
}

func (req generateRequest) toDomain() *generate.Request {
	return &generate.Request{
		Vendor:     req.Vendor,
		Operation:  req.Operation,
		Modality:   generate.Modality(req.Modality),
		Prompt:     req.Prompt,
		Parameters: req.Parameters,
	}
}

// Generate submits an asynchronous generation task and returns its ID.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[generateRequest](w, r)
	if !ok {
		return
	}

	domReq := req.toDomain()
	if req.Enhance {
		enhanced, err := h.generation.Enhance(r.Context(), domReq.Prompt)
		if err != nil {
			writeDomainError(w, err, "prompt enhancement unavailable")
			return
		}
		domReq.Prompt = enhanced
	}

	t, err := h.generation.Generate(r.Context(), domReq)
	if err != nil {
		writeDomainError(w, err, "vendor not found")
		return
	}
	writeJSON(w, http.StatusAccepted, t)
}

// GenerateSync runs a generation inline and returns the terminal result.
func (h *Handlers) GenerateSync(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[generateRequest](w, r)
	if !ok {
		return
	}

	res, err := h.generation.GenerateSync(r.Context(), req.toDomain())
	if err != nil {
		writeDomainError(w, err, "vendor not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// batchRequest is the wire shape for batch submissions.
type batchRequest struct {
	Requests       []generateRequest `json:"requests"`
	MaxConcurrency int               `json:"max_concurrency,omitempty"`
	StopOnError    bool              `json:"stop_on_error,omitempty"`
}

// Batch runs many generations with bounded concurrency and returns the
// aggregate outcome.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[batchRequest](w, r)
	if !ok {
		return
	}
	if len(req.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "requests is required")
		return
	}

	reqs := make([]*generate.Request, len(req.Requests))
	for i, gr := range req.Requests {
		reqs[i] = gr.toDomain()
	}

	res := h.generation.Batch(r.Context(), reqs, req.MaxConcurrency, req.StopOnError)
	writeJSON(w, http.StatusOK, res)
}

// enhanceRequest is the wire shape for prompt enhancement.
type enhanceRequest struct {
	Prompt string `json:"prompt"`
}

// Enhance rewrites a prompt through the configured enhancer.
func (h *Handlers) Enhance(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[enhanceRequest](w, r)
	if !ok {
		return
	}

	enhanced, err := h.generation.Enhance(r.Context(), req.Prompt)
	if err != nil {
		writeDomainError(w, err, "prompt enhancement unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"prompt":   req.Prompt,
		"enhanced": enhanced,
	})
}
