package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	otelx "github.com/lumigen/lumigen/internal/adapter/otel"
	"github.com/lumigen/lumigen/internal/batch"
	"github.com/lumigen/lumigen/internal/domain"
	"github.com/lumigen/lumigen/internal/domain/artifact"
	"github.com/lumigen/lumigen/internal/domain/generate"
	"github.com/lumigen/lumigen/internal/gate"
	"github.com/lumigen/lumigen/internal/port/cache"
	"github.com/lumigen/lumigen/internal/resilience"
)

// maxArtifactBytes caps a single download. Vendor output URLs serve static
// media; anything larger is almost certainly a misbehaving endpoint.
const maxArtifactBytes = 512 << 20

// ArtifactService downloads generated media from vendor output URLs and
// serves the bytes from a cost-bounded cache. Descriptors are kept alongside;
// a descriptor whose bytes were evicted reports not found.
type ArtifactService struct {
	bytes cache.Cache
	fetch *gate.Gate
	retry resilience.RetryConfig
	ttl   time.Duration

	mu          sync.RWMutex
	descriptors map[string]artifact.Artifact

	httpClient *http.Client
}

// NewArtifactService creates an artifact fetcher. maxConcurrent bounds
// simultaneous downloads; ttl is how long fetched bytes stay cached.
func NewArtifactService(bytes cache.Cache, maxConcurrent int, retry resilience.RetryConfig, ttl time.Duration) *ArtifactService {
	return &ArtifactService{
		bytes:       bytes,
		fetch:       gate.New(maxConcurrent),
		retry:       retry,
		ttl:         ttl,
		descriptors: make(map[string]artifact.Artifact),
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Fetch downloads one output URL and caches the bytes, returning the
// descriptor. The download runs under the fetch gate and the retry policy.
func (s *ArtifactService) Fetch(ctx context.Context, taskID, url string) (*artifact.Artifact, error) {
	if url == "" {
		return nil, fmt.Errorf("artifact url is required: %w", domain.ErrValidation)
	}

	id := uuid.NewString()
	ctx, span := otelx.StartFetchSpan(ctx, id, url)
	defer span.End()

	var data []byte
	var mime string
	err := s.fetch.Run(ctx, func() error {
		var err error
		data, mime, err = resilienceDownload(ctx, s.httpClient, s.retry, url)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}

	a := artifact.Artifact{
		ID:        id,
		TaskID:    taskID,
		SourceURL: url,
		MIME:      mime,
		Size:      int64(len(data)),
		Checksum:  artifact.Checksum(data),
		FetchedAt: time.Now().UTC(),
	}

	if err := s.bytes.Set(ctx, id, data, s.ttl); err != nil {
		return nil, fmt.Errorf("cache artifact: %w", err)
	}
	s.mu.Lock()
	s.descriptors[id] = a
	s.mu.Unlock()

	return &a, nil
}

// FetchOutputs downloads all outputs of a completed generation concurrently.
// The first failure aborts the remaining downloads.
func (s *ArtifactService) FetchOutputs(ctx context.Context, taskID string, outputs []generate.Output) ([]artifact.Artifact, error) {
	arts, err := batch.Map(ctx, outputs, func(ctx context.Context, out generate.Output) (artifact.Artifact, error) {
		a, err := s.Fetch(ctx, taskID, out.URL)
		if err != nil {
			return artifact.Artifact{}, err
		}
		return *a, nil
	}, s.fetch.Limit())
	if err != nil {
		return nil, err
	}
	return arts, nil
}

// Get returns the descriptor and bytes for a cached artifact.
// domain.ErrNotFound when unknown or evicted.
func (s *ArtifactService) Get(ctx context.Context, id string) (*artifact.Artifact, []byte, error) {
	s.mu.RLock()
	a, ok := s.descriptors[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}

	data, found, err := s.bytes.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		// Bytes were evicted; drop the stale descriptor.
		s.mu.Lock()
		delete(s.descriptors, id)
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	return &a, data, nil
}

// ForTask returns descriptors for all artifacts fetched for a task.
func (s *ArtifactService) ForTask(taskID string) []artifact.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []artifact.Artifact
	for _, a := range s.descriptors {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out
}

// resilienceDownload GETs the URL with retries, classifying HTTP failures so
// transient vendor CDN errors are retried and permanent ones are not.
func resilienceDownload(ctx context.Context, client *http.Client, retry resilience.RetryConfig, url string) ([]byte, string, error) {
	type payload struct {
		data []byte
		mime string
	}
	p, err := resilience.Retry(ctx, retry, func(ctx context.Context) (payload, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return payload{}, fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return payload{}, &domain.VendorError{Code: domain.CodeNetwork, Message: err.Error()}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			return payload{}, domain.ClassifyHTTPStatus(resp.StatusCode, "artifact download failed")
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
		if err != nil {
			return payload{}, fmt.Errorf("read body: %w", err)
		}

		mime := resp.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		return payload{data: data, mime: mime}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return p.data, p.mime, nil
}
