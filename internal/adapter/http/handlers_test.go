package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumigen/lumigen/internal/adapter/memcache"
	"github.com/lumigen/lumigen/internal/adapter/memevents"
	"github.com/lumigen/lumigen/internal/adapter/ws"
	"github.com/lumigen/lumigen/internal/domain/generate"
	"github.com/lumigen/lumigen/internal/gate"
	"github.com/lumigen/lumigen/internal/port/mediabackend"
	"github.com/lumigen/lumigen/internal/quota"
	"github.com/lumigen/lumigen/internal/resilience"
	"github.com/lumigen/lumigen/internal/service"
)

// syncBackend completes every submission immediately.
type syncBackend struct{}

func (syncBackend) Name() string { return "instant" }

func (syncBackend) Capabilities() mediabackend.Capabilities {
	return mediabackend.Capabilities{Modalities: []generate.Modality{generate.ModalityImage}, Async: true}
}

func (syncBackend) Generate(ctx context.Context, req *generate.Request) (*generate.Outcome, error) {
	return &generate.Outcome{
		JobID:   "job-1",
		State:   generate.JobSucceeded,
		Outputs: []generate.Output{{URL: "https://cdn.example/out.png", MIME: "image/png"}},
	}, nil
}

func (syncBackend) Status(ctx context.Context, jobID string) (*generate.Outcome, error) {
	return &generate.Outcome{JobID: jobID, State: generate.JobSucceeded}, nil
}

func (syncBackend) Cancel(ctx context.Context, jobID string) error { return nil }

type echoEnhancer struct{}

func (echoEnhancer) Enhance(ctx context.Context, prompt string) (string, error) {
	return prompt + ", enhanced", nil
}

func fastPoll() resilience.PollConfig {
	return resilience.PollConfig{MaxAttempts: 100, InitialDelay: 2 * time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 1.1}
}

func newTestRouter(t *testing.T) (*chi.Mux, *Handlers) {
	t.Helper()

	vendors := map[string]*service.Vendor{
		"instant": {
			Backend:  syncBackend{},
			Rate:     1000,
			Burst:    100,
			Gate:     gate.New(4),
			Throttle: gate.NewThrottle(0),
		},
	}
	tasks := service.NewTaskService(20, time.Hour, memevents.NewLog(100), nil, nil)
	gen := service.NewGenerationService(vendors, quota.NewRegistry(), memcache.New(100, time.Minute), tasks, service.GenerationConfig{
		Retry: resilience.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, Multiplier: 2},
		Poll:  fastPoll(),
	}, echoEnhancer{}, nil)
	artifacts := service.NewArtifactService(memByteCache{m: map[string][]byte{}}, 2, resilience.DefaultRetry(), time.Minute)

	h := NewHandlers(gen, tasks, artifacts, ws.NewHub(), fastPoll(), "test")
	r := chi.NewRouter()
	MountRoutes(r, h)
	return r, h
}

type memByteCache struct{ m map[string][]byte }

func (c memByteCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.m[key]
	return v, ok, nil
}

func (c memByteCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}

func (c memByteCache) Delete(_ context.Context, key string) error {
	delete(c.m, key)
	return nil
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("health body = %v", body)
	}
}

func TestGenerateAsyncLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/generate", `{"vendor":"instant","operation":"text_to_image","prompt":"a lighthouse"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]any](t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("no task id in %v", created)
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/tasks/"+id+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d: %s", rec.Code, rec.Body.String())
	}
	final := decode[map[string]any](t, rec)
	if final["status"] != "completed" {
		t.Errorf("final status = %v", final["status"])
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/tasks/"+id+"/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("events status = %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodDelete, "/api/v1/tasks/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, r, http.MethodGet, "/api/v1/tasks/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestGenerateSyncEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(t, r, http.MethodPost, "/api/v1/generate/sync", `{"vendor":"instant","operation":"text_to_image","prompt":"a lighthouse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[generate.Result](t, rec)
	if len(res.Outputs) != 1 {
		t.Errorf("outputs = %+v", res.Outputs)
	}
}

func TestGenerateValidationErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/generate", `{"vendor":"instant","operation":"op"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing prompt = %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/generate", `{"vendor":"nope","operation":"op","prompt":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown vendor = %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/generate", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body = %d", rec.Code)
	}
}

func TestBatchEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	body := `{"requests":[
		{"vendor":"instant","operation":"text_to_image","prompt":"one"},
		{"vendor":"missing","operation":"text_to_image","prompt":"two"}
	]}`
	rec := doRequest(t, r, http.MethodPost, "/api/v1/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[map[string]any](t, rec)
	if res["total"] != float64(2) || res["succeeded"] != float64(1) || res["failed"] != float64(1) {
		t.Errorf("batch result = %v", res)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/batch", `{"requests":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch = %d", rec.Code)
	}
}

func TestCancelAndConflict(t *testing.T) {
	r, h := newTestRouter(t)

	created, err := h.tasks.Submit("generation", nil, func(ctx context.Context, report func(int)) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec := doRequest(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/tasks/"+created.ID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel = %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/api/v1/tasks/unknown/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown = %d", rec.Code)
	}
}

func TestVendorsAndQuota(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/vendors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("vendors = %d", rec.Code)
	}
	body := decode[map[string][]service.VendorInfo](t, rec)
	if len(body["vendors"]) != 1 || body["vendors"][0].Name != "instant" {
		t.Errorf("vendors body = %v", body)
	}

	rec = doRequest(t, r, http.MethodGet, "/api/v1/quota", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("quota = %d", rec.Code)
	}
}

func TestEnhanceEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(t, r, http.MethodPost, "/api/v1/enhance", `{"prompt":"lighthouse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if body["enhanced"] != "lighthouse, enhanced" {
		t.Errorf("enhanced = %q", body["enhanced"])
	}
}

func TestArtifactNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(t, r, http.MethodGet, "/api/v1/artifacts/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}
