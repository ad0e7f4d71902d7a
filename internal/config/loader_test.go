package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Tasks.MaxConcurrent != 50 {
		t.Errorf("expected max_concurrent 50, got %d", cfg.Tasks.MaxConcurrent)
	}
	if cfg.Tasks.Retention != time.Hour {
		t.Errorf("expected 1h retention, got %v", cfg.Tasks.Retention)
	}
	if cfg.Cache.ResponseTTL != time.Hour {
		t.Errorf("expected 1h response TTL, got %v", cfg.Cache.ResponseTTL)
	}
	if cfg.Poll.MaxAttempts != 60 {
		t.Errorf("expected 60 poll attempts, got %d", cfg.Poll.MaxAttempts)
	}
	if cfg.Breaker.Cooldown != 30*time.Second {
		t.Errorf("expected breaker cooldown 30s, got %v", cfg.Breaker.Cooldown)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
tasks:
  max_concurrent: 10
logging:
  level: "debug"
vendors:
  - name: replicate
    kind: httpgen
    base_url: https://api.replicate.test
    api_key: secret
    rate: 5
    burst: 10
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Tasks.MaxConcurrent != 10 {
		t.Errorf("expected max_concurrent 10, got %d", cfg.Tasks.MaxConcurrent)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if len(cfg.Vendors) != 1 || cfg.Vendors[0].Name != "replicate" || cfg.Vendors[0].Rate != 5 {
		t.Errorf("unexpected vendors: %+v", cfg.Vendors)
	}
	// Unchanged fields keep defaults
	if cfg.Quota.DefaultBurst != 5 {
		t.Errorf("expected default quota burst, got %d", cfg.Quota.DefaultBurst)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("LUMIGEN_PORT", "7070")
	t.Setenv("LUMIGEN_LOG_LEVEL", "warn")
	t.Setenv("LUMIGEN_QUOTA_RATE", "7.5")
	t.Setenv("LUMIGEN_TASKS_RETENTION", "30m")
	t.Setenv("LUMIGEN_TELEMETRY_ENABLED", "true")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Quota.DefaultRate != 7.5 {
		t.Errorf("expected rate 7.5, got %g", cfg.Quota.DefaultRate)
	}
	if cfg.Tasks.Retention != 30*time.Minute {
		t.Errorf("expected 30m retention, got %v", cfg.Tasks.Retention)
	}
	if !cfg.Telemetry.Enabled {
		t.Error("expected telemetry enabled")
	}
}

func TestEnvIgnoresInvalidValues(t *testing.T) {
	cfg := Defaults()

	t.Setenv("LUMIGEN_TASKS_MAX_CONCURRENT", "not-a-number")
	t.Setenv("LUMIGEN_TASKS_RETENTION", "garbage")

	loadEnv(&cfg)

	if cfg.Tasks.MaxConcurrent != 50 {
		t.Errorf("expected default kept for invalid int, got %d", cfg.Tasks.MaxConcurrent)
	}
	if cfg.Tasks.Retention != time.Hour {
		t.Errorf("expected default kept for invalid duration, got %v", cfg.Tasks.Retention)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}

	bad := Defaults()
	bad.Server.Port = ""
	if err := validate(&bad); err == nil {
		t.Error("expected error for missing port")
	}

	bad = Defaults()
	bad.Auth.Enabled = true
	if err := validate(&bad); err == nil {
		t.Error("expected error for auth enabled without key hashes")
	}

	bad = Defaults()
	bad.Vendors = []VendorConfig{{Kind: "httpgen"}}
	if err := validate(&bad); err == nil {
		t.Error("expected error for vendor without name")
	}

	bad = Defaults()
	bad.Cache.MaxEntries = 0
	if err := validate(&bad); err == nil {
		t.Error("expected error for zero cache entries")
	}
}

func TestLoadFromFullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "lumigen.yaml")
	content := `
server:
  port: "9000"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Env beats YAML.
	t.Setenv("LUMIGEN_PORT", "9001")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9001" {
		t.Errorf("expected env to override yaml, got %s", cfg.Server.Port)
	}
}
