/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner is the HTTP client for the planner backend: schedule and
// config fetches plus the simulate round-trip used by manual block edits.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/friendsincode/vanir_energy/internal/cache"
	"github.com/friendsincode/vanir_energy/internal/models"
)

// Config holds client configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		RequestTimeout: 15 * time.Second,
	}
}

// Client talks to the planner backend. The cache is optional; when present,
// schedule and config fetches are read-through.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Cache
	logger  zerolog.Logger
}

// New creates a planner client.
func New(cfg Config, planCache *cache.Cache, logger zerolog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:  planCache,
		logger: logger.With().Str("component", "planner_client").Logger(),
	}
}

type scheduleResponse struct {
	Schedule []models.ScheduleSlot `json:"schedule"`
}

// FetchSchedule returns the planner's current forecast schedule.
func (c *Client) FetchSchedule(ctx context.Context) ([]models.ScheduleSlot, error) {
	if c.cache != nil {
		if slots, ok := c.cache.GetSchedule(ctx); ok {
			return slots, nil
		}
	}

	var resp scheduleResponse
	if err := c.getJSON(ctx, "/api/schedule/current", &resp); err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.SetSchedule(ctx, resp.Schedule)
	}
	return resp.Schedule, nil
}

// FetchScheduleWithHistory returns the schedule with historical actuals
// overlaid onto planned slots.
func (c *Client) FetchScheduleWithHistory(ctx context.Context) ([]models.ScheduleSlot, error) {
	if c.cache != nil {
		if slots, ok := c.cache.GetHistory(ctx); ok {
			return slots, nil
		}
	}

	var resp scheduleResponse
	if err := c.getJSON(ctx, "/api/schedule/with_history", &resp); err != nil {
		return nil, fmt.Errorf("fetch schedule with history: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.SetHistory(ctx, resp.Schedule)
	}
	return resp.Schedule, nil
}

// FetchConstraints fetches the planner config document and coerces its
// battery limits into a constraint snapshot.
func (c *Client) FetchConstraints(ctx context.Context) (*models.PlanningConstraints, error) {
	if c.cache != nil {
		if constraints, ok := c.cache.GetConstraints(ctx); ok {
			return constraints, nil
		}
	}

	var doc map[string]any
	if err := c.getJSON(ctx, "/api/config", &doc); err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}

	constraints := ConstraintsFromConfig(doc)
	if c.cache != nil {
		_ = c.cache.SetConstraints(ctx, constraints)
	}
	return constraints, nil
}

type simulateRequest struct {
	Actions []models.SimulateAction `json:"actions"`
}

// Simulate submits the proposed manual actions and returns the authoritative
// re-planned schedule.
func (c *Client) Simulate(ctx context.Context, actions []models.SimulateAction) ([]models.ScheduleSlot, error) {
	body, err := json.Marshal(simulateRequest{Actions: actions})
	if err != nil {
		return nil, fmt.Errorf("marshal simulate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/simulate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build simulate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("simulate: unexpected status %d: %s", httpResp.StatusCode, snippet)
	}

	var resp scheduleResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode simulate response: %w", err)
	}

	c.logger.Debug().Int("actions", len(actions)).Int("slots", len(resp.Schedule)).Msg("simulate round-trip complete")
	return resp.Schedule, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}
