package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "lumigen.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "LUMIGEN_PORT")
	setString(&cfg.Server.CORSOrigin, "LUMIGEN_CORS_ORIGIN")
	setBool(&cfg.Auth.Enabled, "LUMIGEN_AUTH_ENABLED")
	setString(&cfg.Logging.Level, "LUMIGEN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "LUMIGEN_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "LUMIGEN_LOG_ASYNC")
	setFloat64(&cfg.Quota.DefaultRate, "LUMIGEN_QUOTA_RATE")
	setInt(&cfg.Quota.DefaultBurst, "LUMIGEN_QUOTA_BURST")
	setDuration(&cfg.Quota.SweepInterval, "LUMIGEN_QUOTA_SWEEP_INTERVAL")
	setDuration(&cfg.Quota.MaxIdleTime, "LUMIGEN_QUOTA_MAX_IDLE_TIME")
	setInt(&cfg.Retry.MaxRetries, "LUMIGEN_RETRY_MAX")
	setDuration(&cfg.Retry.InitialDelay, "LUMIGEN_RETRY_INITIAL_DELAY")
	setDuration(&cfg.Retry.MaxDelay, "LUMIGEN_RETRY_MAX_DELAY")
	setFloat64(&cfg.Retry.Multiplier, "LUMIGEN_RETRY_MULTIPLIER")
	setInt(&cfg.Poll.MaxAttempts, "LUMIGEN_POLL_MAX_ATTEMPTS")
	setDuration(&cfg.Poll.InitialDelay, "LUMIGEN_POLL_INITIAL_DELAY")
	setDuration(&cfg.Poll.MaxDelay, "LUMIGEN_POLL_MAX_DELAY")
	setFloat64(&cfg.Poll.Multiplier, "LUMIGEN_POLL_MULTIPLIER")
	setInt(&cfg.Breaker.MaxFailures, "LUMIGEN_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Cooldown, "LUMIGEN_BREAKER_COOLDOWN")
	setDuration(&cfg.Cache.ResponseTTL, "LUMIGEN_CACHE_TTL")
	setInt(&cfg.Cache.MaxEntries, "LUMIGEN_CACHE_MAX_ENTRIES")
	setDuration(&cfg.Cache.SweepInterval, "LUMIGEN_CACHE_SWEEP_INTERVAL")
	setInt64(&cfg.Cache.ArtifactSizeMB, "LUMIGEN_CACHE_ARTIFACT_SIZE_MB")
	setDuration(&cfg.Cache.ArtifactTTL, "LUMIGEN_CACHE_ARTIFACT_TTL")
	setInt(&cfg.Tasks.MaxConcurrent, "LUMIGEN_TASKS_MAX_CONCURRENT")
	setDuration(&cfg.Tasks.Retention, "LUMIGEN_TASKS_RETENTION")
	setDuration(&cfg.Tasks.SweepInterval, "LUMIGEN_TASKS_SWEEP_INTERVAL")
	setInt(&cfg.Tasks.MaxEvents, "LUMIGEN_TASKS_MAX_EVENTS")
	setInt(&cfg.Batch.MaxConcurrency, "LUMIGEN_BATCH_MAX_CONCURRENCY")
	setDuration(&cfg.Batch.MinInterval, "LUMIGEN_BATCH_MIN_INTERVAL")
	setFloat64(&cfg.Inbound.RequestsPerSecond, "LUMIGEN_INBOUND_RPS")
	setInt(&cfg.Inbound.Burst, "LUMIGEN_INBOUND_BURST")
	setDuration(&cfg.Inbound.CleanupInterval, "LUMIGEN_INBOUND_CLEANUP_INTERVAL")
	setDuration(&cfg.Inbound.MaxIdleTime, "LUMIGEN_INBOUND_MAX_IDLE_TIME")
	setBool(&cfg.Telemetry.Enabled, "LUMIGEN_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "LUMIGEN_TELEMETRY_ENDPOINT")
	setString(&cfg.Enhancer.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Enhancer.Model, "LUMIGEN_ENHANCER_MODEL")
}

// validate checks that required fields are set and ranges are sane.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeyHashes) == 0 {
		return errors.New("auth.api_key_hashes is required when auth is enabled")
	}
	if cfg.Quota.DefaultRate <= 0 {
		return errors.New("quota.default_rate must be > 0")
	}
	if cfg.Quota.DefaultBurst < 1 {
		return errors.New("quota.default_burst must be >= 1")
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if cfg.Poll.MaxAttempts < 1 {
		return errors.New("poll.max_attempts must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}
	if cfg.Tasks.MaxConcurrent < 1 {
		return errors.New("tasks.max_concurrent must be >= 1")
	}
	if cfg.Inbound.Burst < 1 {
		return errors.New("inbound.burst must be >= 1")
	}
	for i, v := range cfg.Vendors {
		if v.Name == "" {
			return fmt.Errorf("vendors[%d].name is required", i)
		}
		if v.Kind == "" {
			return fmt.Errorf("vendors[%d].kind is required", i)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
