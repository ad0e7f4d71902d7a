package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	otelx "github.com/lumigen/lumigen/internal/adapter/otel"
	"github.com/lumigen/lumigen/internal/batch"
	"github.com/lumigen/lumigen/internal/domain"
	"github.com/lumigen/lumigen/internal/domain/artifact"
	"github.com/lumigen/lumigen/internal/domain/generate"
	"github.com/lumigen/lumigen/internal/domain/task"
	"github.com/lumigen/lumigen/internal/gate"
	"github.com/lumigen/lumigen/internal/port/cache"
	"github.com/lumigen/lumigen/internal/port/mediabackend"
	"github.com/lumigen/lumigen/internal/quota"
	"github.com/lumigen/lumigen/internal/resilience"
)

// PromptEnhancer rewrites a terse prompt into a richer one.
type PromptEnhancer interface {
	Enhance(ctx context.Context, prompt string) (string, error)
}

// ArtifactFetcher mirrors a completed generation's outputs into the local
// artifact cache so they can be served by ID.
type ArtifactFetcher interface {
	FetchOutputs(ctx context.Context, taskID string, outputs []generate.Output) ([]artifact.Artifact, error)
}

// Vendor bundles a backend with its resource controls: outbound quota
// parameters, a concurrency gate, and an optional start-interval throttle.
type Vendor struct {
	Backend  mediabackend.Backend
	Rate     float64
	Burst    int
	Gate     *gate.Gate
	Throttle *gate.Throttle
}

// GenerationService runs generation requests through the full resource
// pipeline: response cache, throttle, token bucket, concurrency gate, retry,
// submit, and long-poll.
type GenerationService struct {
	vendors map[string]*Vendor
	quota   *quota.Registry
	cache   cache.Store
	tasks   *TaskService

	retry       resilience.RetryConfig
	poll        resilience.PollConfig
	responseTTL time.Duration
	batchLimit  int

	enhancer  PromptEnhancer
	artifacts ArtifactFetcher
	metrics   *otelx.Metrics
}

// GenerationConfig carries the tunables for NewGenerationService.
type GenerationConfig struct {
	Retry          resilience.RetryConfig
	Poll           resilience.PollConfig
	ResponseTTL    time.Duration
	BatchMaxConcur int
}

// NewGenerationService wires the generation pipeline. enhancer and metrics
// may be nil; the corresponding features degrade gracefully.
func NewGenerationService(vendors map[string]*Vendor, reg *quota.Registry, store cache.Store, tasks *TaskService, cfg GenerationConfig, enhancer PromptEnhancer, metrics *otelx.Metrics) *GenerationService {
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = time.Hour
	}
	if cfg.BatchMaxConcur < 1 {
		cfg.BatchMaxConcur = 5
	}
	return &GenerationService{
		vendors:     vendors,
		quota:       reg,
		cache:       store,
		tasks:       tasks,
		retry:       cfg.Retry,
		poll:        cfg.Poll,
		responseTTL: cfg.ResponseTTL,
		batchLimit:  cfg.BatchMaxConcur,
		enhancer:    enhancer,
		metrics:     metrics,
	}
}

// SetArtifacts wires the fetcher that downloads completed outputs into the
// artifact cache. Without it, results carry vendor URLs only.
func (s *GenerationService) SetArtifacts(f ArtifactFetcher) {
	s.artifacts = f
}

// Generate validates the request and submits it as a managed task. The
// caller polls the task (or listens on the WebSocket feed) for the result.
func (s *GenerationService) Generate(ctx context.Context, req *generate.Request) (*task.Task, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	meta := map[string]any{
		"vendor":    req.Vendor,
		"operation": req.Operation,
		"modality":  string(req.Modality),
	}
	t, err := s.tasks.Create(task.KindGeneration, meta)
	if err != nil {
		return nil, err
	}
	s.tasks.Start(t.ID, func(taskCtx context.Context, report func(int)) (any, error) {
		return s.execute(taskCtx, t.ID, req, report)
	})
	return t, nil
}

// GenerateSync runs the request inline and blocks until the terminal result.
// Intended for fast operations; slow jobs should go through Generate.
func (s *GenerationService) GenerateSync(ctx context.Context, req *generate.Request) (*generate.Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.execute(ctx, "", req, func(int) {})
}

// Batch runs many requests with bounded concurrency. Invalid requests fail
// individually without aborting the batch unless stopOnError is set.
func (s *GenerationService) Batch(ctx context.Context, reqs []*generate.Request, maxConcurrency int, stopOnError bool) batch.Result[*generate.Request, *generate.Result] {
	if maxConcurrency < 1 {
		maxConcurrency = s.batchLimit
	}
	return batch.Process(ctx, reqs, func(ctx context.Context, req *generate.Request) (*generate.Result, error) {
		return s.GenerateSync(ctx, req)
	}, batch.Options{
		MaxConcurrency: maxConcurrency,
		StopOnError:    stopOnError,
	})
}

// Enhance rewrites a prompt through the configured enhancer, memoizing the
// result and rate limiting the model calls under their own quota domain.
func (s *GenerationService) Enhance(ctx context.Context, prompt string) (string, error) {
	if s.enhancer == nil {
		return "", fmt.Errorf("prompt enhancement: %w", domain.ErrNotFound)
	}
	if prompt == "" {
		return "", fmt.Errorf("empty prompt: %w", domain.ErrValidation)
	}

	key := "enhance:" + generate.Fingerprint("enhance", map[string]any{"prompt": prompt})
	v, err := s.cache.GetOrSet(ctx, key, s.responseTTL, func(ctx context.Context) (any, error) {
		if err := s.quota.Acquire(ctx, "enhancer", 1, 3); err != nil {
			return nil, err
		}
		return resilience.Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
			return s.enhancer.Enhance(ctx, prompt)
		})
	})
	if err != nil {
		return "", err
	}
	enhanced, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected cached type %T for enhanced prompt", v)
	}
	return enhanced, nil
}

// VendorInfo describes one configured vendor for the listing endpoint.
type VendorInfo struct {
	Name         string                    `json:"name"`
	Capabilities mediabackend.Capabilities `json:"capabilities"`
	InFlight     int                       `json:"in_flight"`
	MaxInFlight  int                       `json:"max_in_flight"`
}

// Vendors lists the configured vendors and their current load.
func (s *GenerationService) Vendors() []VendorInfo {
	out := make([]VendorInfo, 0, len(s.vendors))
	for name, v := range s.vendors {
		out = append(out, VendorInfo{
			Name:         name,
			Capabilities: v.Backend.Capabilities(),
			InFlight:     v.Gate.InFlight(),
			MaxInFlight:  v.Gate.Limit(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Quota reports available tokens per quota domain.
func (s *GenerationService) Quota() map[string]float64 {
	return s.quota.Snapshot()
}

func (s *GenerationService) validate(req *generate.Request) error {
	if req == nil || req.Prompt == "" {
		return fmt.Errorf("prompt is required: %w", domain.ErrValidation)
	}
	if req.Operation == "" {
		return fmt.Errorf("operation is required: %w", domain.ErrValidation)
	}
	v, ok := s.vendors[req.Vendor]
	if !ok {
		return fmt.Errorf("unknown vendor %q: %w", req.Vendor, domain.ErrNotFound)
	}
	if req.Modality != "" {
		for _, m := range v.Backend.Capabilities().Modalities {
			if m == req.Modality {
				return nil
			}
		}
		return fmt.Errorf("vendor %q does not support modality %q: %w", req.Vendor, req.Modality, domain.ErrValidation)
	}
	return nil
}

// execute runs one request end to end. Identical requests within the
// response TTL are served from cache without touching the vendor. taskID
// tags fetched artifacts; it is empty for synchronous calls.
func (s *GenerationService) execute(ctx context.Context, taskID string, req *generate.Request, report func(int)) (*generate.Result, error) {
	key := req.Fingerprint()

	if cached, ok := s.cache.Get(ctx, key); ok {
		if res, ok := cached.(*generate.Result); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Add(ctx, 1)
			}
			report(100)
			hit := *res
			hit.Cached = true
			return &hit, nil
		}
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Add(ctx, 1)
	}

	res, err := s.invoke(ctx, req, report)
	if err != nil {
		return nil, err
	}
	if s.artifacts != nil && len(res.Outputs) > 0 {
		arts, err := s.artifacts.FetchOutputs(ctx, taskID, res.Outputs)
		if err != nil {
			// Vendor URLs stay in the result; mirroring bytes is best effort.
			slog.Warn("fetch generation outputs", "vendor", req.Vendor, "job_id", res.JobID, "error", err)
		} else {
			res.Artifacts = arts
		}
	}
	s.cache.Set(ctx, key, res, s.responseTTL)
	return res, nil
}

// invoke drives the vendor call: throttle, token bucket, gate, retried
// submission, then the long poll for asynchronous jobs.
func (s *GenerationService) invoke(ctx context.Context, req *generate.Request, report func(int)) (*generate.Result, error) {
	v := s.vendors[req.Vendor]
	started := time.Now()

	if err := v.Throttle.Wait(ctx); err != nil {
		return nil, err
	}
	if err := s.quota.Acquire(ctx, req.Vendor, v.Rate, v.Burst); err != nil {
		return nil, err
	}

	var result *generate.Result
	err := v.Gate.Run(ctx, func() error {
		ctx, span := otelx.StartGenerateSpan(ctx, "", req.Vendor, req.Operation)
		defer span.End()

		outcome, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) (*generate.Outcome, error) {
			return v.Backend.Generate(ctx, req)
		})
		if err != nil {
			return fmt.Errorf("submit to %s: %w", req.Vendor, err)
		}

		if !outcome.State.Terminal() {
			outcome, err = s.pollJob(ctx, v, req.Vendor, outcome.JobID, report)
			if err != nil {
				return err
			}
		}

		switch outcome.State {
		case generate.JobSucceeded:
			result = &generate.Result{
				Vendor:    req.Vendor,
				Operation: req.Operation,
				JobID:     outcome.JobID,
				Outputs:   outcome.Outputs,
				FetchedAt: time.Now().UTC(),
			}
			return nil
		case generate.JobCancelled:
			return fmt.Errorf("job %s cancelled by vendor", outcome.JobID)
		default:
			return &domain.VendorError{Code: domain.CodeUnknown, Message: outcome.Message}
		}
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.VendorDuration.Record(ctx, time.Since(started).Seconds())
	}
	return result, nil
}

// pollJob long-polls the vendor until the job is terminal. Status checks
// pass through the vendor's token bucket so polling observes the same
// outbound budget as submissions, retried individually so one flaky check
// does not abandon the job.
func (s *GenerationService) pollJob(ctx context.Context, v *Vendor, vendorName, jobID string, report func(int)) (*generate.Outcome, error) {
	ctx, span := otelx.StartPollSpan(ctx, "", jobID)
	defer span.End()

	attempts := 0
	poller := resilience.Poller[*generate.Outcome, *generate.Outcome]{
		Check: func(ctx context.Context) (*generate.Outcome, error) {
			attempts++
			if err := s.quota.Acquire(ctx, vendorName, v.Rate, v.Burst); err != nil {
				return nil, err
			}
			out, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) (*generate.Outcome, error) {
				return v.Backend.Status(ctx, jobID)
			})
			if err != nil {
				return nil, err
			}
			if !out.State.Terminal() {
				report(task.ClampProgress(out.Progress))
			}
			return out, nil
		},
		Done: func(out *generate.Outcome) bool {
			return out.State.Terminal()
		},
		Extract: func(out *generate.Outcome) (*generate.Outcome, error) {
			return out, nil
		},
	}

	out, err := poller.Run(ctx, s.poll)
	if s.metrics != nil {
		s.metrics.PollAttempts.Record(ctx, int64(attempts))
	}
	if err != nil {
		// The job may still be running remotely; tell the vendor to stop.
		if cancelErr := v.Backend.Cancel(context.WithoutCancel(ctx), jobID); cancelErr != nil {
			slog.Warn("cancel abandoned job", "vendor", vendorName, "job_id", jobID, "error", cancelErr)
		}
		return nil, err
	}
	return out, nil
}
