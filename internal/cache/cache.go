/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for planner fetches.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/vanir_energy/internal/models"
)

// Default TTL values for different cache types
const (
	DefaultScheduleTTL    = 1 * time.Minute
	DefaultHistoryTTL     = 5 * time.Minute
	DefaultConstraintsTTL = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeySchedule    = "vanir:cache:schedule"
	KeyHistory     = "vanir:cache:schedule_history"
	KeyConstraints = "vanir:cache:constraints"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ScheduleTTL    time.Duration
	HistoryTTL     time.Duration
	ConstraintsTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ScheduleTTL:    DefaultScheduleTTL,
		HistoryTTL:     DefaultHistoryTTL,
		ConstraintsTTL: DefaultConstraintsTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// GetSchedule retrieves the cached current schedule.
func (c *Cache) GetSchedule(ctx context.Context) ([]models.ScheduleSlot, bool) {
	var slots []models.ScheduleSlot
	found, err := c.get(ctx, KeySchedule, &slots)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(slots)).Msg("schedule cache hit")
	return slots, true
}

// SetSchedule caches the current schedule.
func (c *Cache) SetSchedule(ctx context.Context, slots []models.ScheduleSlot) error {
	c.logger.Debug().Int("count", len(slots)).Msg("caching schedule")
	return c.set(ctx, KeySchedule, slots, c.config.ScheduleTTL)
}

// GetHistory retrieves the cached schedule-with-history.
func (c *Cache) GetHistory(ctx context.Context) ([]models.ScheduleSlot, bool) {
	var slots []models.ScheduleSlot
	found, err := c.get(ctx, KeyHistory, &slots)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(slots)).Msg("history cache hit")
	return slots, true
}

// SetHistory caches the schedule-with-history.
func (c *Cache) SetHistory(ctx context.Context, slots []models.ScheduleSlot) error {
	c.logger.Debug().Int("count", len(slots)).Msg("caching history")
	return c.set(ctx, KeyHistory, slots, c.config.HistoryTTL)
}

// GetConstraints retrieves the cached constraint snapshot.
func (c *Cache) GetConstraints(ctx context.Context) (*models.PlanningConstraints, bool) {
	var constraints models.PlanningConstraints
	found, err := c.get(ctx, KeyConstraints, &constraints)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Msg("constraints cache hit")
	return &constraints, true
}

// SetConstraints caches the constraint snapshot.
func (c *Cache) SetConstraints(ctx context.Context, constraints *models.PlanningConstraints) error {
	c.logger.Debug().Msg("caching constraints")
	return c.set(ctx, KeyConstraints, constraints, c.config.ConstraintsTTL)
}

// Invalidate removes all planner fetch caches, used after a successful apply.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating planner caches")
	for _, key := range []string{KeySchedule, KeyHistory, KeyConstraints} {
		if err := c.delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
