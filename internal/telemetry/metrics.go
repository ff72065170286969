/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exports Prometheus metrics and OpenTelemetry tracing for
// the planning service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP API requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vanir_api_requests_total",
		Help: "Total HTTP API requests",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP API request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vanir_api_request_duration_seconds",
		Help:    "HTTP API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vanir_api_active_connections",
		Help: "In-flight HTTP API requests",
	})

	// TimelineSessionsActive gauges live editing sessions.
	TimelineSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vanir_timeline_sessions_active",
		Help: "Live timeline editing sessions",
	})

	// ApplyTotal counts apply attempts by outcome
	// (applied, rejected, transport_failure).
	ApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vanir_timeline_apply_total",
		Help: "Apply attempts by outcome",
	}, []string{"outcome"})

	// ConstraintViolationsTotal counts individual constraint violations
	// reported by the validator during apply.
	ConstraintViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vanir_constraint_violations_total",
		Help: "Constraint violations reported during apply validation",
	})

	// SimulateDuration observes simulate round-trip latency.
	SimulateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vanir_simulate_duration_seconds",
		Help:    "Planner simulate round-trip duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// FetchFailuresTotal counts collaborator fetch failures by source
	// (schedule, schedule_history, config).
	FetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vanir_fetch_failures_total",
		Help: "Collaborator fetch failures by source",
	}, []string{"source"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
