package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumigen/lumigen/internal/adapter/gemini"
	lumhttp "github.com/lumigen/lumigen/internal/adapter/http"
	"github.com/lumigen/lumigen/internal/adapter/memcache"
	"github.com/lumigen/lumigen/internal/adapter/memevents"
	otelx "github.com/lumigen/lumigen/internal/adapter/otel"
	lumristretto "github.com/lumigen/lumigen/internal/adapter/ristretto"
	"github.com/lumigen/lumigen/internal/adapter/ws"
	"github.com/lumigen/lumigen/internal/config"
	"github.com/lumigen/lumigen/internal/gate"
	"github.com/lumigen/lumigen/internal/logger"
	"github.com/lumigen/lumigen/internal/middleware"
	"github.com/lumigen/lumigen/internal/port/mediabackend"
	"github.com/lumigen/lumigen/internal/quota"
	"github.com/lumigen/lumigen/internal/resilience"
	"github.com/lumigen/lumigen/internal/service"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"vendors", len(cfg.Vendors),
		"auth", cfg.Auth.Enabled,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := otelx.InitProviders(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint, cfg.Telemetry.Enabled)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := otelx.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Resource control ---
	quotaReg := quota.NewRegistry()
	defer quotaReg.StartSweep(cfg.Quota.SweepInterval, cfg.Quota.MaxIdleTime)()

	responseCache := memcache.New(cfg.Cache.MaxEntries, cfg.Cache.ResponseTTL)
	defer responseCache.StartSweep(cfg.Cache.SweepInterval)()

	artifactCache, err := lumristretto.New(cfg.Cache.ArtifactSizeMB << 20)
	if err != nil {
		return fmt.Errorf("artifact cache: %w", err)
	}
	defer artifactCache.Close()

	// --- Services ---
	hub := ws.NewHub()
	events := memevents.NewLog(cfg.Tasks.MaxEvents)

	taskSvc := service.NewTaskService(cfg.Tasks.MaxConcurrent, cfg.Tasks.Retention, events, hub, metrics)
	defer taskSvc.StartSweep(cfg.Tasks.SweepInterval)()

	vendors, err := buildVendors(cfg)
	if err != nil {
		return fmt.Errorf("vendors: %w", err)
	}

	var enhancer service.PromptEnhancer
	if cfg.Enhancer.APIKey != "" {
		gem, err := gemini.New(ctx, cfg.Enhancer.APIKey, cfg.Enhancer.Model)
		if err != nil {
			return fmt.Errorf("enhancer: %w", err)
		}
		enhancer = gem
		slog.Info("prompt enhancer enabled", "model", cfg.Enhancer.Model)
	}

	genSvc := service.NewGenerationService(vendors, quotaReg, responseCache, taskSvc, service.GenerationConfig{
		Retry:          retryFromConfig(cfg.Retry),
		Poll:           pollFromConfig(cfg.Poll),
		ResponseTTL:    cfg.Cache.ResponseTTL,
		BatchMaxConcur: cfg.Batch.MaxConcurrency,
	}, enhancer, metrics)

	artifactSvc := service.NewArtifactService(artifactCache, cfg.Batch.MaxConcurrency, retryFromConfig(cfg.Retry), cfg.Cache.ArtifactTTL)
	genSvc.SetArtifacts(artifactSvc)

	// --- HTTP ---
	rl := middleware.NewRateLimiter(cfg.Inbound.RequestsPerSecond, cfg.Inbound.Burst)
	defer rl.StartCleanup(cfg.Inbound.CleanupInterval, cfg.Inbound.MaxIdleTime)()

	handlers := lumhttp.NewHandlers(genSvc, taskSvc, artifactSvc, hub, pollFromConfig(cfg.Poll), version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(rl.Handler)
	r.Use(middleware.APIKeyAuth(cfg.Auth.APIKeyHashes, cfg.Auth.Enabled))
	r.Use(lumhttp.SecurityHeaders)
	r.Use(lumhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(lumhttp.Logger)
	r.Use(lumhttp.Recoverer)
	r.Use(chimw.Timeout(5 * time.Minute))
	r.Use(otelx.HTTPMiddleware("lumigen"))

	lumhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // sync generation can long-poll
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildVendors constructs the vendor backends declared in config, attaching
// a circuit breaker to those that support one.
func buildVendors(cfg *config.Config) (map[string]*service.Vendor, error) {
	vendors := make(map[string]*service.Vendor, len(cfg.Vendors))
	for _, vc := range cfg.Vendors {
		backend, err := mediabackend.New(vc.Kind, mediabackend.Config{
			Name:        vc.Name,
			BaseURL:     vc.BaseURL,
			APIKey:      vc.APIKey,
			TimeoutSecs: int(vc.Timeout / time.Second),
			Extra:       vc.Extra,
		})
		if err != nil {
			return nil, fmt.Errorf("vendor %s: %w", vc.Name, err)
		}

		if b, ok := backend.(interface{ SetBreaker(*resilience.Breaker) }); ok {
			b.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown))
		}

		rate := vc.Rate
		if rate <= 0 {
			rate = cfg.Quota.DefaultRate
		}
		burst := vc.Burst
		if burst < 1 {
			burst = cfg.Quota.DefaultBurst
		}

		vendors[vc.Name] = &service.Vendor{
			Backend:  backend,
			Rate:     rate,
			Burst:    burst,
			Gate:     gate.New(vc.MaxConcurrent),
			Throttle: gate.NewThrottle(vc.MinInterval),
		}
		slog.Info("vendor registered", "name", vc.Name, "kind", vc.Kind, "rate", rate, "burst", burst)
	}
	return vendors, nil
}

func retryFromConfig(c config.Retry) resilience.RetryConfig {
	cfg := resilience.DefaultRetry()
	cfg.MaxRetries = c.MaxRetries
	cfg.InitialDelay = c.InitialDelay
	cfg.MaxDelay = c.MaxDelay
	cfg.Multiplier = c.Multiplier
	return cfg
}

func pollFromConfig(c config.Poll) resilience.PollConfig {
	return resilience.PollConfig{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
	}
}
