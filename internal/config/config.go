/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://192.168.195.6:8080)
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Planner backend (the simulation service this dashboard edits plans for)
	PlannerBaseURL string
	PlannerTimeout time.Duration

	// Cache configuration
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event bridge configuration
	NATSEnabled bool
	NATSURL     string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"VANIR_ENV", "NRG_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"VANIR_HTTP_BIND", "NRG_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"VANIR_HTTP_PORT", "NRG_HTTP_PORT"}, 8080),
		BaseURL:     getEnvAny([]string{"VANIR_BASE_URL", "NRG_BASE_URL"}, ""),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"VANIR_DB_BACKEND", "NRG_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"VANIR_DB_DSN", "NRG_DB_DSN"}, "vanir.db"),
		MetricsBind: getEnvAny([]string{"VANIR_METRICS_BIND", "NRG_METRICS_BIND"}, "127.0.0.1:9000"),

		// Planner backend
		PlannerBaseURL: getEnvAny([]string{"VANIR_PLANNER_URL", "NRG_PLANNER_URL"}, "http://localhost:8000"),
		PlannerTimeout: time.Duration(getEnvIntAny([]string{"VANIR_PLANNER_TIMEOUT_SECONDS", "NRG_PLANNER_TIMEOUT_SECONDS"}, 15)) * time.Second,

		// Cache configuration
		CacheEnabled:  getEnvBoolAny([]string{"VANIR_CACHE_ENABLED", "NRG_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"VANIR_REDIS_ADDR", "NRG_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"VANIR_REDIS_PASSWORD", "NRG_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"VANIR_REDIS_DB", "NRG_REDIS_DB"}, 0),

		// Event bridge configuration
		NATSEnabled: getEnvBoolAny([]string{"VANIR_NATS_ENABLED", "NRG_NATS_ENABLED"}, false),
		NATSURL:     getEnvAny([]string{"VANIR_NATS_URL", "NRG_NATS_URL"}, "nats://localhost:4222"),

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"VANIR_TRACING_ENABLED", "NRG_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"VANIR_OTLP_ENDPOINT", "NRG_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"VANIR_TRACING_SAMPLE_RATE", "NRG_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("VANIR_DB_DSN or NRG_DB_DSN must be provided")
	}

	if cfg.PlannerBaseURL == "" {
		return nil, fmt.Errorf("VANIR_PLANNER_URL or NRG_PLANNER_URL must be provided")
	}

	if cfg.PlannerTimeout <= 0 {
		return nil, fmt.Errorf("VANIR_PLANNER_TIMEOUT_SECONDS must be positive")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":         "use VANIR_ENV (or NRG_ENV)",
		"PLANNER_URL":         "use VANIR_PLANNER_URL (or NRG_PLANNER_URL)",
		"TRACING_ENABLED":     "use VANIR_TRACING_ENABLED (or NRG_TRACING_ENABLED)",
		"OTLP_ENDPOINT":       "use VANIR_OTLP_ENDPOINT (or NRG_OTLP_ENDPOINT)",
		"TRACING_SAMPLE_RATE": "use VANIR_TRACING_SAMPLE_RATE (or NRG_TRACING_SAMPLE_RATE)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
