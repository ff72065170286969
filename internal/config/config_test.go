package config

import (
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("VANIR_DB_BACKEND", "postgres")
	t.Setenv("VANIR_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("VANIR_PLANNER_URL", "http://planner:8000")
	t.Setenv("VANIR_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabasePostgres {
		t.Fatalf("unexpected db backend: %q", cfg.DBBackend)
	}
	if cfg.PlannerBaseURL != "http://planner:8000" {
		t.Fatalf("unexpected planner url: %q", cfg.PlannerBaseURL)
	}
	if cfg.PlannerTimeout != 15*time.Second {
		t.Fatalf("unexpected planner timeout: %v", cfg.PlannerTimeout)
	}
}

func TestLoadAcceptsLegacyEnvKeys(t *testing.T) {
	t.Setenv("NRG_DB_BACKEND", "sqlite")
	t.Setenv("NRG_DB_DSN", "state.db")
	t.Setenv("NRG_PLANNER_URL", "http://planner:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN != "state.db" {
		t.Fatalf("unexpected dsn: %q", cfg.DBDSN)
	}
	if cfg.PlannerBaseURL != "http://planner:9000" {
		t.Fatalf("unexpected planner url: %q", cfg.PlannerBaseURL)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("VANIR_DB_DSN", "vanir.db")
	t.Setenv("PLANNER_URL", "http://legacy:8000")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VANIR_DB_BACKEND", "oracle")
	t.Setenv("VANIR_DB_DSN", "whatever")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for unknown backend")
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("VANIR_PLANNER_TIMEOUT_SECONDS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for zero planner timeout")
	}
}
