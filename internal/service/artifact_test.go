package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumigen/lumigen/internal/domain"
	"github.com/lumigen/lumigen/internal/domain/artifact"
	"github.com/lumigen/lumigen/internal/domain/generate"
	"github.com/lumigen/lumigen/internal/resilience"
)

// memByteCache is a trivial cache.Cache for tests; the real one is ristretto,
// whose asynchronous admission makes assertions racy.
type memByteCache struct {
	m map[string][]byte
}

func newMemByteCache() *memByteCache { return &memByteCache{m: make(map[string][]byte)} }

func (c *memByteCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memByteCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}

func (c *memByteCache) Delete(_ context.Context, key string) error {
	delete(c.m, key)
	return nil
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetry()
	cfg.MaxRetries = 2
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestFetchStoresArtifact(t *testing.T) {
	payload := []byte("\x89PNG\r\n\x1a\nfakeimagedata")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer srv.Close()

	s := NewArtifactService(newMemByteCache(), 2, fastRetry(), time.Minute)
	a, err := s.Fetch(context.Background(), "task-1", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if a.MIME != "image/png" {
		t.Errorf("MIME = %q", a.MIME)
	}
	if a.Size != int64(len(payload)) {
		t.Errorf("Size = %d, want %d", a.Size, len(payload))
	}
	if a.Checksum != artifact.Checksum(payload) {
		t.Error("checksum mismatch")
	}

	got, data, err := s.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TaskID != "task-1" {
		t.Errorf("TaskID = %q", got.TaskID)
	}
	if string(data) != string(payload) {
		t.Error("bytes mismatch")
	}
}

func TestFetchDetectsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("\x89PNG\r\n\x1a\n" + "0123456789"))
	}))
	defer srv.Close()

	s := NewArtifactService(newMemByteCache(), 2, fastRetry(), time.Minute)
	a, err := s.Fetch(context.Background(), "task-1", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if a.MIME != "image/png" {
		t.Errorf("MIME = %q, want sniffed image/png", a.MIME)
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("media"))
	}))
	defer srv.Close()

	s := NewArtifactService(newMemByteCache(), 2, fastRetry(), time.Minute)
	if _, err := s.Fetch(context.Background(), "task-1", srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewArtifactService(newMemByteCache(), 2, fastRetry(), time.Minute)
	if _, err := s.Fetch(context.Background(), "task-1", srv.URL); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (404 is not retryable)", calls.Load())
	}
}

func TestGetUnknownArtifact(t *testing.T) {
	s := NewArtifactService(newMemByteCache(), 2, fastRetry(), time.Minute)
	if _, _, err := s.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetEvictedBytesDropsDescriptor(t *testing.T) {
	cache := newMemByteCache()
	s := NewArtifactService(cache, 2, fastRetry(), time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media"))
	}))
	defer srv.Close()

	a, err := s.Fetch(context.Background(), "task-1", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Simulate cache eviction.
	cache.Delete(context.Background(), a.ID)

	if _, _, err := s.Get(context.Background(), a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after eviction", err)
	}
}

func TestFetchOutputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-" + r.URL.Path))
	}))
	defer srv.Close()

	s := NewArtifactService(newMemByteCache(), 2, fastRetry(), time.Minute)
	outputs := []generate.Output{
		{URL: srv.URL + "/a"},
		{URL: srv.URL + "/b"},
		{URL: srv.URL + "/c"},
	}
	arts, err := s.FetchOutputs(context.Background(), "task-1", outputs)
	if err != nil {
		t.Fatalf("FetchOutputs: %v", err)
	}
	if len(arts) != 3 {
		t.Fatalf("artifacts = %d, want 3", len(arts))
	}
	for i, a := range arts {
		if a.SourceURL != outputs[i].URL {
			t.Errorf("artifact %d url = %q, want %q", i, a.SourceURL, outputs[i].URL)
		}
	}
	if got := s.ForTask("task-1"); len(got) != 3 {
		t.Errorf("ForTask = %d, want 3", len(got))
	}
}
