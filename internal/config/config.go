// Package config provides hierarchical configuration loading for Lumigen.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Lumigen gateway.
type Config struct {
	Server    Server         `yaml:"server"`
	Auth      Auth           `yaml:"auth"`
	Logging   Logging        `yaml:"logging"`
	Quota     Quota          `yaml:"quota"`
	Retry     Retry          `yaml:"retry"`
	Poll      Poll           `yaml:"poll"`
	Breaker   Breaker        `yaml:"breaker"`
	Cache     Cache          `yaml:"cache"`
	Tasks     Tasks          `yaml:"tasks"`
	Batch     Batch          `yaml:"batch"`
	Inbound   Inbound        `yaml:"inbound"`
	Telemetry Telemetry      `yaml:"telemetry"`
	Vendors   []VendorConfig `yaml:"vendors"`
	Enhancer  Enhancer       `yaml:"enhancer"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Auth holds caller authentication configuration. APIKeyHashes are bcrypt
// hashes produced by `lumigen admin hash-key`.
type Auth struct {
	Enabled      bool     `yaml:"enabled"`
	APIKeyHashes []string `yaml:"api_key_hashes"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Quota holds outbound token bucket defaults, applied to vendors that do not
// configure their own.
type Quota struct {
	DefaultRate   float64       `yaml:"default_rate"` // tokens per second
	DefaultBurst  int           `yaml:"default_burst"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxIdleTime   time.Duration `yaml:"max_idle_time"`
}

// Retry holds the vendor-call retry policy.
type Retry struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// Poll holds the long-poll schedule for asynchronous vendor jobs.
type Poll struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// Breaker holds circuit breaker configuration for vendor endpoints.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Cache holds response and artifact cache configuration.
type Cache struct {
	ResponseTTL    time.Duration `yaml:"response_ttl"`
	MaxEntries     int           `yaml:"max_entries"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	ArtifactSizeMB int64         `yaml:"artifact_size_mb"`
	ArtifactTTL    time.Duration `yaml:"artifact_ttl"`
}

// Tasks holds task manager configuration.
type Tasks struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxEvents     int           `yaml:"max_events"` // per-task event log bound
}

// Batch holds batch processor defaults.
type Batch struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	MinInterval    time.Duration `yaml:"min_interval"`
}

// Inbound holds per-IP rate limiting for the gateway's own API.
type Inbound struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP gRPC collector, host:port
}

// VendorConfig declares one remote generation vendor.
type VendorConfig struct {
	Name          string        `yaml:"name"` // logical instance name, also the quota domain
	Kind          string        `yaml:"kind"` // registered backend kind, e.g. "httpgen"
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Rate          float64       `yaml:"rate"`  // 0 = quota defaults
	Burst         int           `yaml:"burst"` // 0 = quota defaults
	MaxConcurrent int           `yaml:"max_concurrent"`
	MinInterval   time.Duration `yaml:"min_interval"`
	Timeout       time.Duration `yaml:"timeout"`

	// Extra carries backend-kind specific settings, e.g. "modalities".
	Extra map[string]string `yaml:"extra"`
}

// Enhancer holds prompt enhancement configuration.
type Enhancer struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Auth: Auth{
			Enabled: false,
		},
		Logging: Logging{
			Level:   "info",
			Service: "lumigen",
		},
		Quota: Quota{
			DefaultRate:   2,
			DefaultBurst:  5,
			SweepInterval: 10 * time.Minute,
			MaxIdleTime:   time.Hour,
		},
		Retry: Retry{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
		Poll: Poll{
			MaxAttempts:  60,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   1.5,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
		Cache: Cache{
			ResponseTTL:    time.Hour,
			MaxEntries:     1000,
			SweepInterval:  5 * time.Minute,
			ArtifactSizeMB: 256,
			ArtifactTTL:    time.Hour,
		},
		Tasks: Tasks{
			MaxConcurrent: 50,
			Retention:     time.Hour,
			SweepInterval: 5 * time.Minute,
			MaxEvents:     100,
		},
		Batch: Batch{
			MaxConcurrency: 5,
		},
		Inbound: Inbound{
			RequestsPerSecond: 10,
			Burst:             100,
			CleanupInterval:   10 * time.Minute,
			MaxIdleTime:       time.Hour,
		},
		Telemetry: Telemetry{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
		Enhancer: Enhancer{
			Model: "gemini-2.0-flash",
		},
	}
}
