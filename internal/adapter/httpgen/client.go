// Package httpgen implements the vendor backend port against a generic
// JSON-over-HTTP generation API: POST to submit, GET to poll, POST to cancel.
// Most hosted media vendors fit this shape with only BaseURL and key differences.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumigen/lumigen/internal/domain"
	"github.com/lumigen/lumigen/internal/domain/generate"
	"github.com/lumigen/lumigen/internal/port/mediabackend"
	"github.com/lumigen/lumigen/internal/resilience"
)

const defaultTimeout = 30 * time.Second

// Client talks to a JSON generation API.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	modalities []generate.Modality
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a backend for the given vendor config.
func NewClient(cfg mediabackend.Config, modalities []generate.Modality) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return &Client{
		name:       cfg.Name,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		modalities: modalities,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Name returns the vendor identifier.
func (c *Client) Name() string { return c.name }

// Capabilities reports the configured modalities. The generic API is
// asynchronous: submissions return a job to poll.
func (c *Client) Capabilities() mediabackend.Capabilities {
	return mediabackend.Capabilities{Modalities: c.modalities, Async: true}
}

// jobPayload is the wire shape shared by the submit and status endpoints.
type jobPayload struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress int      `json:"progress,omitempty"`
	Outputs  []output `json:"outputs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type output struct {
	URL      string `json:"url"`
	MIME     string `json:"mime_type,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Duration int    `json:"duration_seconds,omitempty"`
}

// Generate submits a request and returns a job token to poll, or the
// terminal result if the vendor completed synchronously.
func (c *Client) Generate(ctx context.Context, req *generate.Request) (*generate.Outcome, error) {
	body, err := json.Marshal(map[string]any{
		"operation":  req.Operation,
		"modality":   req.Modality,
		"prompt":     req.Prompt,
		"parameters": req.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/generate", body)
	if err != nil {
		return nil, err
	}
	return c.decodeJob(data)
}

// Status reports the current state of a previously submitted job.
func (c *Client) Status(ctx context.Context, jobID string) (*generate.Outcome, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeJob(data)
}

// Cancel asks the vendor to stop a running job.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/v1/jobs/"+jobID+"/cancel", nil)
	return err
}

func (c *Client) decodeJob(data []byte) (*generate.Outcome, error) {
	var p jobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	out := &generate.Outcome{
		JobID:    p.ID,
		Progress: p.Progress,
		Message:  p.Error,
	}
	switch p.Status {
	case "succeeded", "completed":
		out.State = generate.JobSucceeded
	case "failed", "error":
		out.State = generate.JobFailed
	case "cancelled", "canceled":
		out.State = generate.JobCancelled
	default:
		out.State = generate.JobRunning
	}
	for _, o := range p.Outputs {
		out.Outputs = append(out.Outputs, generate.Output{
			URL:      o.URL,
			MIME:     o.MIME,
			Width:    o.Width,
			Height:   o.Height,
			Duration: o.Duration,
		})
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func(ctx context.Context) error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &domain.VendorError{Code: domain.CodeNetwork, Message: err.Error()}
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return domain.ClassifyHTTPStatus(resp.StatusCode, vendorMessage(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Do(ctx, call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// vendorMessage extracts the error text from a failed response body,
// falling back to the raw body when it is not the expected JSON shape.
func vendorMessage(data []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &e); err == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return string(data)
}
